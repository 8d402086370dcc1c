package service

import (
	"context"
	"errors"

	"axtro-go/internal/model"
	"axtro-go/internal/repository"
	"axtro-go/pkg/hash"
	"axtro-go/pkg/token"

	"gorm.io/gorm"
)

// UserService 接口定义了用户认证相关的业务操作。
// 认证是回合管线的外围协作方，只保留最小接口。
type UserService interface {
	Register(ctx context.Context, username, password, name string) (*model.User, error)
	Login(ctx context.Context, username, password string) (accessToken, refreshToken string, err error)
	GetByID(ctx context.Context, userID uint) (*model.User, error)
}

// userService 是 UserService 接口的实现。
type userService struct {
	userRepo   repository.UserRepository
	jwtManager *token.JWTManager
}

// NewUserService 创建一个新的 UserService 实例。
func NewUserService(userRepo repository.UserRepository, jwtManager *token.JWTManager) UserService {
	return &userService{
		userRepo:   userRepo,
		jwtManager: jwtManager,
	}
}

// Register 处理用户注册的业务逻辑。
func (s *userService) Register(ctx context.Context, username, password, name string) (*model.User, error) {
	// 1. 检查用户名是否已存在
	_, err := s.userRepo.FindByUsername(ctx, username)
	if err == nil {
		return nil, errors.New("用户名已存在")
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	// 2. 对密码进行哈希处理
	hashedPassword, err := hash.HashPassword(password)
	if err != nil {
		return nil, err
	}

	// 3. 创建用户，初始额度使用模型默认值
	user := &model.User{
		Username: username,
		Password: hashedPassword,
		Name:     name,
		Credits:  50,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Login 校验凭证并签发 access/refresh token。
func (s *userService) Login(ctx context.Context, username, password string) (string, string, error) {
	user, err := s.userRepo.FindByUsername(ctx, username)
	if err != nil {
		return "", "", errors.New("无效的凭证")
	}
	if !hash.CheckPassword(password, user.Password) {
		return "", "", errors.New("无效的凭证")
	}

	accessToken, err := s.jwtManager.GenerateToken(user.ID, user.Username)
	if err != nil {
		return "", "", err
	}
	refreshToken, err := s.jwtManager.GenerateRefreshToken(user.ID, user.Username)
	if err != nil {
		return "", "", err
	}
	return accessToken, refreshToken, nil
}

// GetByID 按主键获取用户。
func (s *userService) GetByID(ctx context.Context, userID uint) (*model.User, error) {
	return s.userRepo.FindByID(ctx, userID)
}
