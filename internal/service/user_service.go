package service

import (
	"context"
	"errors"

	"stenagrafist-go/internal/model"
	"stenagrafist-go/internal/repository"
	"stenagrafist-go/pkg/hash"
	"stenagrafist-go/pkg/log"
	"stenagrafist-go/pkg/token"

	"gorm.io/gorm"
)

// UserService 接口定义了所有与用户相关的业务操作。
type UserService interface {
	Register(ctx context.Context, username, password string) (*model.User, error)
	Authenticate(ctx context.Context, username, password string) (*model.User, error)
	Login(ctx context.Context, username, password string) (string, error)
	ListOrders(ctx context.Context, accessToken string) ([]model.Task, error)
}

// userService 是 UserService 接口的实现。
type userService struct {
	userRepo   repository.UserRepository
	taskRepo   repository.TaskRepository
	jwtManager *token.JWTManager
}

// NewUserService 创建一个新的 UserService 实例。
func NewUserService(userRepo repository.UserRepository, taskRepo repository.TaskRepository, jwtManager *token.JWTManager) UserService {
	return &userService{
		userRepo:   userRepo,
		taskRepo:   taskRepo,
		jwtManager: jwtManager,
	}
}

// Register 处理用户注册的业务逻辑。
func (s *userService) Register(ctx context.Context, username, password string) (*model.User, error) {
	const op = "Register"

	// 1. 检查用户名是否已存在
	_, err := s.userRepo.FindByUsername(ctx, username)
	if err == nil {
		return nil, &Error{Kind: KindConflict, Op: op, Err: ErrUserExists}
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, dependencyError(op, 0, err)
	}

	// 2. 对密码进行哈希处理
	hashed, err := hash.HashPassword(password)
	if err != nil {
		return nil, &Error{Kind: KindInternal, Op: op, Err: err}
	}

	// 3. 写入数据库
	user := &model.User{Username: username, CredentialHash: hashed}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, dependencyError(op, 0, err)
	}
	log.Infof("[UserService] 用户创建成功, username: %s, id: %d", username, user.ID)
	return user, nil
}

// Authenticate 校验用户名和密码。用户不存在和密码错误都返回 ErrUserNotFound。
func (s *userService) Authenticate(ctx context.Context, username, password string) (*model.User, error) {
	const op = "Authenticate"
	user, err := s.userRepo.FindByUsername(ctx, username)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &Error{Kind: KindNotFound, Op: op, Err: ErrUserNotFound}
	}
	if err != nil {
		return nil, dependencyError(op, 0, err)
	}
	if !hash.CheckPasswordHash(password, user.CredentialHash) {
		return nil, &Error{Kind: KindNotFound, Op: op, Err: ErrUserNotFound}
	}
	return user, nil
}

// Login 校验凭证并签发 access token。
func (s *userService) Login(ctx context.Context, username, password string) (string, error) {
	user, err := s.Authenticate(ctx, username, password)
	if err != nil {
		return "", err
	}
	accessToken, err := s.jwtManager.GenerateToken(user.ID, user.Username)
	if err != nil {
		return "", &Error{Kind: KindInternal, Op: "Login", Err: err}
	}
	return accessToken, nil
}

// ListOrders 解析 token 中的用户名，返回该用户的全部任务。
func (s *userService) ListOrders(ctx context.Context, accessToken string) ([]model.Task, error) {
	const op = "ListOrders"
	claims, err := s.jwtManager.VerifyToken(accessToken)
	if err != nil {
		return nil, &Error{Kind: KindValidation, Op: op, Err: errors.Join(ErrInvalidToken, err)}
	}

	user, err := s.userRepo.FindByUsername(ctx, claims.Subject)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &Error{Kind: KindNotFound, Op: op, Err: ErrUserNotFound}
	}
	if err != nil {
		return nil, dependencyError(op, 0, err)
	}

	orders, err := s.taskRepo.FindByUserID(ctx, user.ID)
	if err != nil {
		return nil, dependencyError(op, 0, err)
	}
	return orders, nil
}
