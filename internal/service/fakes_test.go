package service

import (
	"bytes"
	"context"
	"io"
	"sort"
	"sync"

	"stenagrafist-go/internal/model"
	"stenagrafist-go/pkg/tasks"

	"gorm.io/gorm"
)

// recorder 按调用顺序记录各个依赖被访问的情况。
type recorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *recorder) add(call string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call)
}

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

type fakeUserRepo struct {
	rec     *recorder
	users   map[string]*model.User
	nextID  uint
	findErr error
}

func newFakeUserRepo(rec *recorder, users ...*model.User) *fakeUserRepo {
	r := &fakeUserRepo{rec: rec, users: map[string]*model.User{}, nextID: 1}
	for _, u := range users {
		r.users[u.Username] = u
		if u.ID >= r.nextID {
			r.nextID = u.ID + 1
		}
	}
	return r
}

func (r *fakeUserRepo) Create(_ context.Context, user *model.User) error {
	r.rec.add("user.create")
	user.ID = r.nextID
	r.nextID++
	r.users[user.Username] = user
	return nil
}

func (r *fakeUserRepo) FindByUsername(_ context.Context, username string) (*model.User, error) {
	r.rec.add("user.find")
	if r.findErr != nil {
		return nil, r.findErr
	}
	u, ok := r.users[username]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return u, nil
}

type fakeTaskRepo struct {
	rec       *recorder
	rows      []model.Task
	createErr error
	findErr   error
	// findBlocks 让 FindByID 一直阻塞到 ctx 结束
	findBlocks bool
}

func (r *fakeTaskRepo) Create(_ context.Context, task *model.Task) error {
	r.rec.add("task.create")
	if r.createErr != nil {
		return r.createErr
	}
	task.ID = uint(len(r.rows) + 1)
	r.rows = append(r.rows, *task)
	return nil
}

func (r *fakeTaskRepo) FindByID(ctx context.Context, id uint) (*model.Task, error) {
	r.rec.add("task.find")
	if r.findBlocks {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if r.findErr != nil {
		return nil, r.findErr
	}
	for i := range r.rows {
		if r.rows[i].ID == id {
			t := r.rows[i]
			return &t, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeTaskRepo) FindByUserID(_ context.Context, userID uint) ([]model.Task, error) {
	r.rec.add("task.list")
	var out []model.Task
	for _, t := range r.rows {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	return out, nil
}

type fakePendingRepo struct {
	rec       *recorder
	entries   map[uint]string
	removeErr error
}

func newFakePendingRepo(rec *recorder) *fakePendingRepo {
	return &fakePendingRepo{rec: rec, entries: map[uint]string{}}
}

func (r *fakePendingRepo) Add(_ context.Context, msg tasks.JobMessage) error {
	r.rec.add("pending.add")
	r.entries[msg.TaskID] = msg.ObjectKey
	return nil
}

func (r *fakePendingRepo) List(_ context.Context) ([]tasks.JobMessage, error) {
	r.rec.add("pending.list")
	msgs := make([]tasks.JobMessage, 0, len(r.entries))
	for id, key := range r.entries {
		msgs = append(msgs, tasks.JobMessage{TaskID: id, ObjectKey: key})
	}
	sort.Slice(msgs, func(i, j int) bool { return msgs[i].TaskID < msgs[j].TaskID })
	return msgs, nil
}

func (r *fakePendingRepo) Remove(_ context.Context, taskID uint) error {
	r.rec.add("pending.remove")
	if r.removeErr != nil {
		return r.removeErr
	}
	delete(r.entries, taskID)
	return nil
}

type fakeStore struct {
	rec     *recorder
	objects map[string][]byte
	sizes   map[string]int64
	err     error
	onPut   func()
	// blocks 让 PutObject 一直阻塞到 ctx 结束
	blocks bool
}

func newFakeStore(rec *recorder) *fakeStore {
	return &fakeStore{rec: rec, objects: map[string][]byte{}, sizes: map[string]int64{}}
}

func (s *fakeStore) PutObject(ctx context.Context, key string, r io.Reader, size int64, _ string) error {
	s.rec.add("store.put")
	if s.onPut != nil {
		s.onPut()
	}
	if s.blocks {
		<-ctx.Done()
		return ctx.Err()
	}
	if s.err != nil {
		return s.err
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return err
	}
	s.objects[key] = buf.Bytes()
	s.sizes[key] = size
	return nil
}

type published struct {
	topic     string
	partition int
	payload   []byte
}

type fakePublisher struct {
	rec        *recorder
	partitions []int
	err        error
	sent       []published
}

func (p *fakePublisher) Partitions() []int {
	return p.partitions
}

func (p *fakePublisher) Publish(_ context.Context, topic string, partition int, payload []byte) error {
	p.rec.add("publish")
	if p.err != nil {
		return p.err
	}
	p.sent = append(p.sent, published{topic: topic, partition: partition, payload: payload})
	return nil
}
