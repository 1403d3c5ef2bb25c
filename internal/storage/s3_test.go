package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/friendbook/backend/internal/models"
)

type uploaderStub struct {
	input *s3.PutObjectInput
	body  string
	err   error
}

func (u *uploaderStub) Upload(_ context.Context, input *s3.PutObjectInput, _ ...func(*manager.Uploader)) (*manager.UploadOutput, error) {
	if u.err != nil {
		return nil, u.err
	}
	u.input = input
	data, err := io.ReadAll(input.Body)
	if err != nil {
		return nil, err
	}
	u.body = string(data)
	return &manager.UploadOutput{Key: input.Key}, nil
}

func TestS3StorageSave(t *testing.T) {
	uploader := &uploaderStub{}
	store := NewS3StorageWithUploader(uploader, "media", "https://cdn.example.com/")

	location, err := store.Save(context.Background(), "/users/u1/banner/a.png", "image/png", strings.NewReader("png-bytes"))
	if err != nil {
		t.Fatalf("save: %v", err)
	}

	if location != "https://cdn.example.com/users/u1/banner/a.png" {
		t.Fatalf("unexpected location %q", location)
	}
	if aws.ToString(uploader.input.Bucket) != "media" || aws.ToString(uploader.input.Key) != "users/u1/banner/a.png" {
		t.Fatalf("unexpected upload target %s/%s", aws.ToString(uploader.input.Bucket), aws.ToString(uploader.input.Key))
	}
	if aws.ToString(uploader.input.ContentType) != "image/png" {
		t.Fatalf("expected content type to be forwarded, got %q", aws.ToString(uploader.input.ContentType))
	}
	if uploader.body != "png-bytes" {
		t.Fatalf("unexpected body %q", uploader.body)
	}
}

func TestS3StorageSaveWithoutBaseURLReturnsKey(t *testing.T) {
	store := NewS3StorageWithUploader(&uploaderStub{}, "media", "")

	location, err := store.Save(context.Background(), "users/u1/picture/b.jpg", "", strings.NewReader("x"))
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if location != "users/u1/picture/b.jpg" {
		t.Fatalf("expected bare key, got %q", location)
	}
}

func TestS3StorageSaveErrors(t *testing.T) {
	store := NewS3StorageWithUploader(&uploaderStub{}, "media", "")
	if _, err := store.Save(context.Background(), "/", "image/png", strings.NewReader("x")); !errors.Is(err, ErrEmptyKey) {
		t.Fatalf("expected ErrEmptyKey, got %v", err)
	}

	boom := errors.New("access denied")
	store = NewS3StorageWithUploader(&uploaderStub{err: boom}, "media", "")
	if _, err := store.Save(context.Background(), "k", "image/png", strings.NewReader("x")); !errors.Is(err, boom) {
		t.Fatalf("expected upload error to be wrapped, got %v", err)
	}
}

func TestMediaKey(t *testing.T) {
	key := MediaKey("u1", models.MediaProfilePicture, "image/webp")
	if !strings.HasPrefix(key, "users/u1/profile_picture/") || !strings.HasSuffix(key, ".webp") {
		t.Fatalf("unexpected key %q", key)
	}
	if MediaKey("u1", models.MediaBanner, "image/webp") == key {
		t.Fatal("expected keys to be unique")
	}
}
