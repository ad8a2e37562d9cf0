// Package service 包含了应用的业务逻辑层。
package service

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind 是业务错误的分类，由 handler 层映射为 HTTP 状态码。
type ErrorKind int

const (
	// KindInternal 未分类的内部错误。
	KindInternal ErrorKind = iota
	// KindNotFound 用户或任务不存在。
	KindNotFound
	// KindValidation 输入不合法，在访问任何存储之前被拒绝。
	KindValidation
	// KindConflict 唯一性冲突，例如重复的用户名。
	KindConflict
	// KindTaskCreation 任务记录写入失败。
	KindTaskCreation
	// KindDependency 对象存储、数据库或消息队列调用失败或超时。
	KindDependency
	// KindCanceled 调用方已取消请求。
	KindCanceled
)

func (k ErrorKind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindTaskCreation:
		return "task_creation"
	case KindDependency:
		return "dependency"
	case KindCanceled:
		return "canceled"
	default:
		return "internal"
	}
}

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrTaskNotFound       = errors.New("task not found")
	ErrInvalidStatus      = errors.New("invalid task status")
	ErrInvalidToken       = errors.New("invalid token")
	ErrUserExists         = errors.New("username already exists")
	ErrTaskCreationFailed = errors.New("task creation failed")
	ErrNoPartitions       = errors.New("no partitions available")
)

// Error 携带错误分类、操作名，以及已创建但未完成发布的任务 ID（若有）。
type Error struct {
	Kind   ErrorKind
	Op     string
	TaskID uint
	Err    error
}

func (e *Error) Error() string {
	if e.TaskID != 0 {
		return fmt.Sprintf("%s [%s, task %d]: %v", e.Op, e.Kind, e.TaskID, e.Err)
	}
	return fmt.Sprintf("%s [%s]: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf 返回 err 链上第一个 *Error 的分类；没有则为 KindInternal。
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// dependencyError 把外部调用的失败归类，调用方取消时归为 KindCanceled，超时仍属于依赖失败。
func dependencyError(op string, taskID uint, err error) *Error {
	kind := KindDependency
	if errors.Is(err, context.Canceled) {
		kind = KindCanceled
	}
	return &Error{Kind: kind, Op: op, TaskID: taskID, Err: err}
}
