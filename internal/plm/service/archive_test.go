package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
)

func TestArchiveObjectName(t *testing.T) {
	at := time.Date(2025, 3, 7, 9, 4, 5, 0, time.UTC)
	got := archiveObjectName("exports", "EVT_r3.xlsx", at)
	if got != "exports/2025/03/07/090405_EVT_r3.xlsx" {
		t.Errorf("Unexpected object name %s", got)
	}
	if got := archiveObjectName("", "a.csv", at); got != "2025/03/07/090405_a.csv" {
		t.Errorf("Unexpected object name without prefix %s", got)
	}
}

type fakeObjectStore struct {
	existsErrs []error
	exists     bool
	checks     int
	made       int
	objects    map[string][]byte
}

func (f *fakeObjectStore) BucketExists(_ context.Context, _ string) (bool, error) {
	f.checks++
	if len(f.existsErrs) > 0 {
		err := f.existsErrs[0]
		f.existsErrs = f.existsErrs[1:]
		if err != nil {
			return false, err
		}
	}
	return f.exists, nil
}

func (f *fakeObjectStore) MakeBucket(_ context.Context, _ string, _ minio.MakeBucketOptions) error {
	f.made++
	f.exists = true
	return nil
}

func (f *fakeObjectStore) PutObject(_ context.Context, _, objectName string, reader io.Reader, _ int64, _ minio.PutObjectOptions) (minio.UploadInfo, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return minio.UploadInfo{}, err
	}
	if f.objects == nil {
		f.objects = map[string][]byte{}
	}
	f.objects[objectName] = data
	return minio.UploadInfo{Key: objectName, Size: int64(len(data))}, nil
}

func TestMinIOArchiverRetriesBucketCheck(t *testing.T) {
	store := &fakeObjectStore{existsErrs: []error{errors.New("connection refused")}}
	a := &MinIOArchiver{client: store, bucket: "bom-exports", prefix: "exports"}
	ctx := context.Background()

	if _, err := a.Archive(ctx, "a.csv", []byte("x"), "text/csv"); err == nil {
		t.Fatal("Expected the first archive to fail")
	}
	if len(store.objects) != 0 {
		t.Errorf("Expected nothing uploaded, got %d objects", len(store.objects))
	}

	got, err := a.Archive(ctx, "b.csv", []byte("level"), "text/csv")
	if err != nil {
		t.Fatalf("Expected retry to succeed: %v", err)
	}
	if !strings.HasPrefix(got, "bom-exports/exports/") || !strings.HasSuffix(got, "_b.csv") {
		t.Errorf("Unexpected archive path %s", got)
	}
	if store.made != 1 {
		t.Errorf("Expected bucket created once, got %d", store.made)
	}

	if _, err := a.Archive(ctx, "c.csv", []byte("y"), "text/csv"); err != nil {
		t.Fatalf("Archive: %v", err)
	}
	if store.checks != 2 {
		t.Errorf("Expected bucket checked twice, got %d", store.checks)
	}
	if len(store.objects) != 2 {
		t.Errorf("Expected 2 objects, got %d", len(store.objects))
	}
}
