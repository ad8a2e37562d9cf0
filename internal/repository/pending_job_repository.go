package repository

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"stenagrafist-go/pkg/tasks"

	"github.com/go-redis/redis/v8"
)

// pendingJobsKey 是记录发布失败任务消息的 Redis hash，field 为任务 ID，value 为对象 key。
const pendingJobsKey = "jobs:unpublished"

// PendingJobRepository 记录已创建任务但发布到 Kafka 失败的消息，供运维手动重放。
type PendingJobRepository interface {
	Add(ctx context.Context, msg tasks.JobMessage) error
	List(ctx context.Context) ([]tasks.JobMessage, error)
	Remove(ctx context.Context, taskID uint) error
}

type redisPendingJobRepository struct {
	redisClient *redis.Client
}

// NewPendingJobRepository 创建一个基于 Redis 的 PendingJobRepository。
func NewPendingJobRepository(redisClient *redis.Client) PendingJobRepository {
	return &redisPendingJobRepository{redisClient: redisClient}
}

// Add 写入（或覆盖）一条待重放消息。
func (r *redisPendingJobRepository) Add(ctx context.Context, msg tasks.JobMessage) error {
	field := strconv.FormatUint(uint64(msg.TaskID), 10)
	if err := r.redisClient.HSet(ctx, pendingJobsKey, field, msg.ObjectKey).Err(); err != nil {
		return fmt.Errorf("failed to record unpublished job %d: %w", msg.TaskID, err)
	}
	return nil
}

// List 返回所有待重放消息，按任务 ID 升序。
func (r *redisPendingJobRepository) List(ctx context.Context) ([]tasks.JobMessage, error) {
	entries, err := r.redisClient.HGetAll(ctx, pendingJobsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list unpublished jobs: %w", err)
	}
	msgs := make([]tasks.JobMessage, 0, len(entries))
	for field, key := range entries {
		id, err := strconv.ParseUint(field, 10, 64)
		if err != nil {
			// 非法 field 不可能由 Add 写入，跳过
			continue
		}
		msgs = append(msgs, tasks.JobMessage{TaskID: uint(id), ObjectKey: key})
	}
	sort.Slice(msgs, func(i, j int) bool { return msgs[i].TaskID < msgs[j].TaskID })
	return msgs, nil
}

// Remove 删除一条待重放消息。
func (r *redisPendingJobRepository) Remove(ctx context.Context, taskID uint) error {
	field := strconv.FormatUint(uint64(taskID), 10)
	if err := r.redisClient.HDel(ctx, pendingJobsKey, field).Err(); err != nil {
		return fmt.Errorf("failed to remove unpublished job %d: %w", taskID, err)
	}
	return nil
}
