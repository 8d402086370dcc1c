package storage

import (
	"context"

	"axtro-go/internal/config"
)

// ImageStore 是基于 MinIO 的图片存储实现，供回合管线转存生成的图片。
type ImageStore struct {
	cfg config.MinIOConfig
}

// NewImageStore 创建一个新的 ImageStore 实例。
func NewImageStore(cfg config.MinIOConfig) *ImageStore {
	return &ImageStore{cfg: cfg}
}

// Upload 上传图片字节并返回稳定的可访问 URL。
func (s *ImageStore) Upload(ctx context.Context, objectName string, data []byte) (string, error) {
	return UploadImage(ctx, s.cfg, objectName, data)
}
