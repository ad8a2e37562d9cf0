// Package storage 提供了与对象存储服务（MinIO）交互的功能。
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"stenagrafist-go/internal/config"
	"stenagrafist-go/pkg/log"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Client 绑定到单个存储桶的 MinIO 客户端，可被多个请求并发使用。
type Client struct {
	mc     *minio.Client
	bucket string
}

// NewMinIO 创建 MinIO 客户端。不会访问网络，存储桶由 EnsureBucket 检查。
func NewMinIO(cfg config.MinIOConfig) (*Client, error) {
	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("初始化 MinIO 客户端失败: %w", err)
	}
	log.Info("MinIO 客户端初始化成功")
	return &Client{mc: mc, bucket: cfg.BucketName}, nil
}

// Bucket 返回客户端绑定的存储桶名称。
func (c *Client) Bucket() string {
	return c.bucket
}

// EnsureBucket 检查存储桶是否存在，如果不存在则创建。
func (c *Client) EnsureBucket(ctx context.Context) error {
	exists, err := c.mc.BucketExists(ctx, c.bucket)
	if err != nil {
		return fmt.Errorf("检查 MinIO 存储桶失败: %w", err)
	}
	if exists {
		log.Infof("存储桶 '%s' 已存在", c.bucket)
		return nil
	}

	log.Infof("存储桶 '%s' 不存在，正在创建...", c.bucket)
	if err := c.mc.MakeBucket(ctx, c.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("创建 MinIO 存储桶失败: %w", err)
	}
	log.Infof("存储桶 '%s' 创建成功", c.bucket)
	return nil
}

// PutObject 以已知长度写入对象，同名对象会被覆盖。
func (c *Client) PutObject(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	if size < 0 {
		return errors.New("storage: object size must be known before upload")
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	_, err := c.mc.PutObject(ctx, c.bucket, key, r, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("storage: put %s/%s: %w", c.bucket, key, err)
	}
	return nil
}
