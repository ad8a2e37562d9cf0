package service

import (
	"context"
	"errors"
	"time"

	"stenagrafist-go/internal/model"
	"stenagrafist-go/internal/repository"
	"stenagrafist-go/pkg/log"
	"stenagrafist-go/pkg/metrics"

	"gorm.io/gorm"
)

// TaskService 接口定义了任务状态变更相关的业务操作。
type TaskService interface {
	// Transition 以追加一条新记录的方式变更任务状态，返回新记录的 ID。
	// 不访问对象存储和消息队列。
	Transition(ctx context.Context, userID, taskID uint, status string) (uint, error)
}

type taskService struct {
	taskRepo    repository.TaskRepository
	metrics     *metrics.Metrics
	stepTimeout time.Duration
}

// NewTaskService 创建一个新的 TaskService 实例。
func NewTaskService(taskRepo repository.TaskRepository, m *metrics.Metrics, stepTimeout time.Duration) TaskService {
	return &taskService{taskRepo: taskRepo, metrics: m, stepTimeout: stepTimeout}
}

// Transition 派生出的新记录继承原任务的名称和对象 key，PreviousID 指向原任务。
func (s *taskService) Transition(ctx context.Context, userID, taskID uint, status string) (uint, error) {
	const op = "Transition"

	// 1. 先校验状态，非法值不会触达存储层
	newStatus, err := model.ParseTaskStatus(status)
	if err != nil {
		log.Warnf("[Transition] 非法的任务状态: %q", status)
		return 0, &Error{Kind: KindValidation, Op: op, Err: ErrInvalidStatus}
	}

	// 2. 查找原任务
	var existing *model.Task
	err = runStep(ctx, s.stepTimeout, func(stepCtx context.Context) error {
		var err error
		existing, err = s.taskRepo.FindByID(stepCtx, taskID)
		return err
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		log.Infof("[Transition] 任务不存在, 任务ID: %d", taskID)
		return 0, &Error{Kind: KindNotFound, Op: op, Err: ErrTaskNotFound}
	}
	if err != nil {
		return 0, dependencyError(op, 0, err)
	}

	// 3. 追加新记录
	previousID := existing.ID
	next := &model.Task{
		UserID:     userID,
		Status:     newStatus,
		ObjectKey:  existing.ObjectKey,
		Name:       existing.Name,
		PreviousID: &previousID,
	}
	if err := createTask(ctx, s.taskRepo, s.stepTimeout, s.metrics, next); err != nil {
		return 0, &Error{Kind: KindTaskCreation, Op: op, Err: err}
	}

	log.Infof("[Transition] 任务状态已变更, 原任务ID: %d, 新任务ID: %d, 状态: %s", existing.ID, next.ID, newStatus)
	return next.ID, nil
}
