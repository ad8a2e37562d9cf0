package model

import (
	"fmt"
	"time"
)

// TaskStatus 是任务状态的枚举值，按原样存入数据库。
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusDone       TaskStatus = "done"
	TaskStatusFailed     TaskStatus = "failed"
)

// TaskStatuses 按生命周期顺序列出所有合法状态。
var TaskStatuses = []TaskStatus{
	TaskStatusPending,
	TaskStatusInProgress,
	TaskStatusDone,
	TaskStatusFailed,
}

// ParseTaskStatus 校验并转换外部传入的状态字符串。
func ParseTaskStatus(s string) (TaskStatus, error) {
	for _, st := range TaskStatuses {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown task status %q", s)
}

// Task 对应 tasks 表，一条记录代表一个等待下游处理的上传文件（即订单）。
//
// 状态变更不会原地修改记录，而是追加一条新记录，PreviousID 指向它派生自的记录。
// ObjectKey 在创建时写入，之后不再改变。
type Task struct {
	ID         uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID     uint       `gorm:"not null;index" json:"userId"`
	Status     TaskStatus `gorm:"type:varchar(32);not null;default:pending" json:"status"`
	ObjectKey  string     `gorm:"type:varchar(255);not null" json:"objectKey"`
	Name       string     `gorm:"type:varchar(255)" json:"name"`
	PreviousID *uint      `gorm:"index;default:null" json:"previousId,omitempty"`
	CreatedAt  time.Time  `gorm:"autoCreateTime" json:"createdAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (Task) TableName() string {
	return "tasks"
}
