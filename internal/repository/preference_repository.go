package repository

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
)

// PreferenceRepository 定义了按用户维度存取设置数据块的接口。
// 数据块按命名空间隔离（如 "ui"、"notifications"），内容对服务端不透明。
type PreferenceRepository interface {
	Load(ctx context.Context, userID uint, namespace string) ([]byte, error)
	Save(ctx context.Context, userID uint, namespace string, blob []byte) error
}

type redisPreferenceRepository struct {
	redisClient *redis.Client
}

// NewPreferenceRepository 创建一个新的 PreferenceRepository 实例。
func NewPreferenceRepository(redisClient *redis.Client) PreferenceRepository {
	return &redisPreferenceRepository{redisClient: redisClient}
}

func preferenceKey(userID uint, namespace string) string {
	return fmt.Sprintf("user:%d:prefs:%s", userID, namespace)
}

// Load 读取指定命名空间的设置数据块；不存在时返回空数据块而非错误。
func (r *redisPreferenceRepository) Load(ctx context.Context, userID uint, namespace string) ([]byte, error) {
	blob, err := r.redisClient.Get(ctx, preferenceKey(userID, namespace)).Bytes()
	if err == redis.Nil {
		return []byte("{}"), nil
	}
	if err != nil {
		return nil, fmt.Errorf("读取用户设置失败: %w", err)
	}
	return blob, nil
}

// Save 覆盖写入指定命名空间的设置数据块。
func (r *redisPreferenceRepository) Save(ctx context.Context, userID uint, namespace string, blob []byte) error {
	if err := r.redisClient.Set(ctx, preferenceKey(userID, namespace), blob, 0).Err(); err != nil {
		return fmt.Errorf("保存用户设置失败: %w", err)
	}
	return nil
}
