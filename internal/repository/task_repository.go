package repository

import (
	"context"

	"stenagrafist-go/internal/model"

	"gorm.io/gorm"
)

// TaskRepository 接口定义了任务记录的持久化操作。
// 只追加，不提供更新：状态变更以新记录的形式写入。
type TaskRepository interface {
	Create(ctx context.Context, task *model.Task) error
	FindByID(ctx context.Context, id uint) (*model.Task, error)
	FindByUserID(ctx context.Context, userID uint) ([]model.Task, error)
}

type taskRepository struct {
	db *gorm.DB
}

// NewTaskRepository 创建一个新的 TaskRepository 实例。
func NewTaskRepository(db *gorm.DB) TaskRepository {
	return &taskRepository{db: db}
}

// Create 插入任务记录，成功后 task.ID 被回填。
func (r *taskRepository) Create(ctx context.Context, task *model.Task) error {
	return r.db.WithContext(ctx).Create(task).Error
}

// FindByID 按主键查找任务，不存在时返回 gorm.ErrRecordNotFound。
func (r *taskRepository) FindByID(ctx context.Context, id uint) (*model.Task, error) {
	var task model.Task
	if err := r.db.WithContext(ctx).First(&task, id).Error; err != nil {
		return nil, err
	}
	return &task, nil
}

// FindByUserID 查找用户拥有的所有任务，按 ID 升序。
func (r *taskRepository) FindByUserID(ctx context.Context, userID uint) ([]model.Task, error) {
	var tasks []model.Task
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("id asc").Find(&tasks).Error
	return tasks, err
}
