package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"sync"
	"time"

	"github.com/bitfantasy/nimo-bom/internal/config"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ExportArchiver 导出文件归档
type ExportArchiver interface {
	Archive(ctx context.Context, name string, data []byte, contentType string) (string, error)
}

// objectStore MinIO 客户端中归档用到的部分
type objectStore interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// MinIOArchiver 把导出文件写入 MinIO
type MinIOArchiver struct {
	client objectStore
	bucket string
	prefix string

	mu    sync.Mutex
	ready bool
}

// NewMinIOArchiver 根据配置创建归档器
func NewMinIOArchiver(cfg config.MinIOConfig) (*MinIOArchiver, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	return &MinIOArchiver{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix}, nil
}

// ensureBucket 检查并创建桶，失败时下次调用重试
func (a *MinIOArchiver) ensureBucket(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.ready {
		return nil
	}
	exists, err := a.client.BucketExists(ctx, a.bucket)
	if err != nil {
		return fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		if err := a.client.MakeBucket(ctx, a.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("create bucket: %w", err)
		}
	}
	a.ready = true
	return nil
}

// Archive 上传文件，返回对象路径
func (a *MinIOArchiver) Archive(ctx context.Context, name string, data []byte, contentType string) (string, error) {
	if err := a.ensureBucket(ctx); err != nil {
		return "", err
	}
	object := archiveObjectName(a.prefix, name, time.Now())
	_, err := a.client.PutObject(ctx, a.bucket, object, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", object, err)
	}
	return a.bucket + "/" + object, nil
}

// archiveObjectName prefix/2006/01/02/150405_name
func archiveObjectName(prefix, name string, at time.Time) string {
	return path.Join(prefix, at.Format("2006/01/02"), at.Format("150405")+"_"+name)
}
