package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"stenagrafist-go/internal/model"
	"stenagrafist-go/internal/repository"
	"stenagrafist-go/pkg/kafka"
	"stenagrafist-go/pkg/log"
	"stenagrafist-go/pkg/metrics"
	"stenagrafist-go/pkg/tasks"

	"gorm.io/gorm"
)

// 流水线步骤名，用于日志和指标。
const (
	stepLookup  = "lookup_user"
	stepStore   = "store_object"
	stepCreate  = "create_task"
	stepPublish = "publish_job"
)

// ObjectStore 是上传流程依赖的对象存储写入能力，由 storage.Client 实现。
type ObjectStore interface {
	PutObject(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
}

// JobPublisher 是上传流程依赖的消息发布能力，由 kafka.Producer 实现。
type JobPublisher interface {
	Partitions() []int
	Publish(ctx context.Context, topic string, partition int, payload []byte) error
}

// UploadRequest 描述一次上传。Size 小于 0 表示长度未知，会先完整读入内存。
type UploadRequest struct {
	Username    string
	OrderName   string
	File        io.Reader
	Size        int64
	ContentType string
}

// UploadOptions 是上传流程的静态配置。
type UploadOptions struct {
	Topic         string
	FileExtension string
	StepTimeout   time.Duration
}

// UploadService 接口定义了上传编排相关的业务操作。
type UploadService interface {
	// SubmitUpload 依次写对象存储、创建任务、发布任务消息，全部成功后返回任务 ID。
	SubmitUpload(ctx context.Context, req UploadRequest) (uint, error)
	// RepublishPending 重新发布此前发布失败并记录在案的任务消息。
	RepublishPending(ctx context.Context) (int, error)
}

type uploadService struct {
	userRepo    repository.UserRepository
	taskRepo    repository.TaskRepository
	pendingRepo repository.PendingJobRepository
	store       ObjectStore
	publisher   JobPublisher
	policy      kafka.PartitionPolicy
	metrics     *metrics.Metrics
	opts        UploadOptions
}

// NewUploadService 创建一个新的 UploadService 实例。pendingRepo 和 m 可以为 nil。
func NewUploadService(
	userRepo repository.UserRepository,
	taskRepo repository.TaskRepository,
	pendingRepo repository.PendingJobRepository,
	store ObjectStore,
	publisher JobPublisher,
	policy kafka.PartitionPolicy,
	m *metrics.Metrics,
	opts UploadOptions,
) UploadService {
	return &uploadService{
		userRepo:    userRepo,
		taskRepo:    taskRepo,
		pendingRepo: pendingRepo,
		store:       store,
		publisher:   publisher,
		policy:      policy,
		metrics:     m,
		opts:        opts,
	}
}

// ObjectKeyFor 由用户 ID 推导对象 key。同一用户的每次上传得到相同的 key，后一次覆盖前一次。
func ObjectKeyFor(userID uint, ext string) string {
	if ext == "" {
		return fmt.Sprintf("files/%d", userID)
	}
	return fmt.Sprintf("files/%d.%s", userID, ext)
}

// SubmitUpload 处理一次上传请求。
//
// 三个副作用严格按 写对象 -> 建任务 -> 发消息 的顺序执行，任何一步失败都会中止后续步骤，
// 已完成的步骤不会回滚：建任务失败时对象保留（key 被该用户所有上传共享，删除会影响旧任务），
// 发消息失败时任务保持 pending，并记录到待重放列表。
func (s *uploadService) SubmitUpload(ctx context.Context, req UploadRequest) (uint, error) {
	const op = "SubmitUpload"
	log.Infof("[SubmitUpload] 开始处理上传, 用户名: %s, 订单名: %s", req.Username, req.OrderName)

	if req.File == nil {
		return 0, &Error{Kind: KindValidation, Op: op, Err: errors.New("file is required")}
	}

	// 1. 解析用户
	user, err := s.lookupUser(ctx, req.Username)
	s.metrics.Step(stepLookup, err)
	if err != nil {
		return 0, err
	}

	// 2. 确定文件长度
	body, size, err := withKnownLength(req.File, req.Size)
	if err != nil {
		return 0, &Error{Kind: KindInternal, Op: op, Err: fmt.Errorf("read upload: %w", err)}
	}

	// 3. 写入对象存储
	objectKey := ObjectKeyFor(user.ID, s.opts.FileExtension)
	err = s.withStepTimeout(ctx, func(stepCtx context.Context) error {
		return s.store.PutObject(stepCtx, objectKey, body, size, req.ContentType)
	})
	s.metrics.Step(stepStore, err)
	if err != nil {
		log.Errorf("[SubmitUpload] 写入对象存储失败, key: %s, error: %v", objectKey, err)
		return 0, dependencyError(op, 0, err)
	}
	log.Infof("[SubmitUpload] 文件已写入对象存储, key: %s, 大小: %d", objectKey, size)

	// 4. 创建任务记录
	task := &model.Task{
		UserID:    user.ID,
		Status:    model.TaskStatusPending,
		ObjectKey: objectKey,
		Name:      req.OrderName,
	}
	if err := createTask(ctx, s.taskRepo, s.opts.StepTimeout, s.metrics, task); err != nil {
		log.Warnf("[SubmitUpload] 任务创建失败，对象 %s 已写入但无任务引用", objectKey)
		return 0, &Error{Kind: KindTaskCreation, Op: op, Err: err}
	}

	// 5. 发布任务消息
	msg := tasks.JobMessage{TaskID: task.ID, ObjectKey: objectKey}
	if err := ctx.Err(); err != nil {
		log.Warnf("[SubmitUpload] 请求已取消，不发布任务消息, 任务ID: %d", task.ID)
		s.recordUnpublished(context.WithoutCancel(ctx), msg)
		return 0, &Error{Kind: KindCanceled, Op: op, TaskID: task.ID, Err: err}
	}
	partition, err := s.publish(ctx, msg)
	s.metrics.Step(stepPublish, err)
	if err != nil {
		log.Errorf("[SubmitUpload] 发布任务消息失败, 任务ID: %d, error: %v", task.ID, err)
		s.recordUnpublished(context.WithoutCancel(ctx), msg)
		return 0, dependencyError(op, task.ID, err)
	}

	log.Infof("[SubmitUpload] 上传流程完成, 任务ID: %d, 分区: %d", task.ID, partition)
	return task.ID, nil
}

// RepublishPending 逐条重放待发布的任务消息，成功的条目从列表中移除，遇到第一个失败即停止。
func (s *uploadService) RepublishPending(ctx context.Context) (int, error) {
	const op = "RepublishPending"
	if s.pendingRepo == nil {
		return 0, nil
	}

	msgs, err := s.pendingRepo.List(ctx)
	if err != nil {
		return 0, dependencyError(op, 0, err)
	}
	log.Infof("[RepublishPending] 待重放消息数: %d", len(msgs))

	republished := 0
	for _, msg := range msgs {
		if err := ctx.Err(); err != nil {
			return republished, &Error{Kind: KindCanceled, Op: op, Err: err}
		}
		_, err := s.publish(ctx, msg)
		s.metrics.Step(stepPublish, err)
		if err != nil {
			return republished, dependencyError(op, msg.TaskID, err)
		}
		republished++
		if err := s.pendingRepo.Remove(ctx, msg.TaskID); err != nil {
			// 消息已发出但记录仍在，再次重放会重复投递
			return republished, dependencyError(op, msg.TaskID, err)
		}
		log.Infof("[RepublishPending] 任务消息已重新发布, 任务ID: %d", msg.TaskID)
	}
	return republished, nil
}

func (s *uploadService) lookupUser(ctx context.Context, username string) (*model.User, error) {
	const op = "LookupUser"
	var user *model.User
	err := s.withStepTimeout(ctx, func(stepCtx context.Context) error {
		var err error
		user, err = s.userRepo.FindByUsername(stepCtx, username)
		return err
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		log.Infof("[SubmitUpload] 用户不存在: %s", username)
		return nil, &Error{Kind: KindNotFound, Op: op, Err: ErrUserNotFound}
	}
	if err != nil {
		return nil, dependencyError(op, 0, err)
	}
	return user, nil
}

// createTask 是上传和状态变更共用的任务创建路径。
func createTask(ctx context.Context, repo repository.TaskRepository, timeout time.Duration, m *metrics.Metrics, task *model.Task) error {
	err := runStep(ctx, timeout, func(stepCtx context.Context) error {
		return repo.Create(stepCtx, task)
	})
	m.Step(stepCreate, err)
	if err != nil {
		log.Errorf("[CreateTask] 创建任务记录失败, 用户ID: %d, error: %v", task.UserID, err)
		return fmt.Errorf("%w: %w", ErrTaskCreationFailed, err)
	}
	return nil
}

// publish 选择分区并发布一条任务消息，返回所选分区。
func (s *uploadService) publish(ctx context.Context, msg tasks.JobMessage) (int, error) {
	partitions := s.publisher.Partitions()
	if len(partitions) == 0 {
		return 0, ErrNoPartitions
	}
	payload, err := msg.Encode()
	if err != nil {
		return 0, err
	}
	partition := s.policy.Select(partitions)
	err = s.withStepTimeout(ctx, func(stepCtx context.Context) error {
		return s.publisher.Publish(stepCtx, s.opts.Topic, partition, payload)
	})
	return partition, err
}

func (s *uploadService) recordUnpublished(ctx context.Context, msg tasks.JobMessage) {
	if s.pendingRepo == nil {
		return
	}
	err := s.withStepTimeout(ctx, func(stepCtx context.Context) error {
		return s.pendingRepo.Add(stepCtx, msg)
	})
	if err != nil {
		log.Errorw("记录未发布的任务消息失败", "taskID", msg.TaskID, "objectKey", msg.ObjectKey, "error", err)
	}
}

func (s *uploadService) withStepTimeout(ctx context.Context, fn func(context.Context) error) error {
	return runStep(ctx, s.opts.StepTimeout, fn)
}

// runStep 在单步超时内执行一次外部调用。timeout <= 0 表示不额外限时。
func runStep(ctx context.Context, timeout time.Duration, fn func(context.Context) error) error {
	if timeout <= 0 {
		return fn(ctx)
	}
	stepCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(stepCtx)
}

// withKnownLength 返回一个可读取的 body 及其字节长度。
// 长度未知时把内容完整读入内存，因为对象存储要求预先声明长度。
func withKnownLength(r io.Reader, size int64) (io.Reader, int64, error) {
	if size >= 0 {
		return r, size, nil
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, 0, err
	}
	return bytes.NewReader(b), int64(len(b)), nil
}
