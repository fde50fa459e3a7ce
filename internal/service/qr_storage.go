package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const (
	qrObjectPrefix  = "qr-codes"
	qrPresignedTTL  = 15 * time.Minute
	qrContentType   = "image/png"
	maxQRObjectSize = 1 << 20
)

var (
	ErrQRBucketUnavailable = errors.New("qr storage bucket unavailable")
	ErrQRUploadFailed      = errors.New("failed to upload qr image")
	ErrQRDeleteFailed      = errors.New("failed to delete qr image")
	ErrQRURLFailed         = errors.New("failed to generate qr image url")
	ErrQRObjectKeyInvalid  = errors.New("invalid qr object key")
)

// QRStorage keeps a copy of each card's QR PNG in object storage.
type QRStorage interface {
	PutQRCode(ctx context.Context, cardID string, png []byte) (string, error)
	DeleteQRCode(ctx context.Context, objectKey string) error
	QRCodeURL(ctx context.Context, objectKey string) (string, error)
	Ping(ctx context.Context) error
}

// NoopQRStorage is used when QR_STORAGE_ENABLED is false. QR images then only
// live in the qr_codes table.
type NoopQRStorage struct{}

func (NoopQRStorage) PutQRCode(context.Context, string, []byte) (string, error) { return "", nil }
func (NoopQRStorage) DeleteQRCode(context.Context, string) error { return nil }
func (NoopQRStorage) QRCodeURL(context.Context, string) (string, error) { return "", nil }
func (NoopQRStorage) Ping(context.Context) error { return nil }

type MinIOQRStorage struct {
	client     *minio.Client
	bucketName string
	initOnce   sync.Once
	initErr    error
}

// NewMinIOQRStorage builds the client without touching the network. The bucket
// is created on first use so startup does not block on MinIO.
func NewMinIOQRStorage(endpoint, accessKey, secretKey, bucketName string, useSSL bool) (*MinIOQRStorage, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	return &MinIOQRStorage{client: client, bucketName: bucketName}, nil
}

func (s *MinIOQRStorage) lazyInit(ctx context.Context) error {
	s.initOnce.Do(func() {
		s.initErr = s.ensureBucketExists(ctx)
	})
	return s.initErr
}

func (s *MinIOQRStorage) ensureBucketExists(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucketName)
	if err != nil {
		return fmt.Errorf("%w: check bucket: %v", ErrQRBucketUnavailable, err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucketName, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("%w: create bucket: %v", ErrQRBucketUnavailable, err)
		}
	}
	return nil
}

func (s *MinIOQRStorage) PutQRCode(ctx context.Context, cardID string, png []byte) (string, error) {
	if _, err := uuid.Parse(cardID); err != nil {
		return "", ErrQRObjectKeyInvalid
	}
	if len(png) == 0 || len(png) > maxQRObjectSize {
		return "", fmt.Errorf("%w: image size %d", ErrQRUploadFailed, len(png))
	}
	if err := s.lazyInit(ctx); err != nil {
		return "", err
	}

	objectKey := qrObjectKey(cardID)
	_, err := s.client.PutObject(ctx, s.bucketName, objectKey, bytes.NewReader(png), int64(len(png)), minio.PutObjectOptions{
		ContentType: qrContentType,
		UserMetadata: map[string]string{
			"Card-ID":   cardID,
			"Issued-At": time.Now().UTC().Format(time.RFC3339),
		},
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrQRUploadFailed, err)
	}
	return objectKey, nil
}

func (s *MinIOQRStorage) DeleteQRCode(ctx context.Context, objectKey string) error {
	if strings.TrimSpace(objectKey) == "" {
		return nil
	}
	if !validQRObjectKey(objectKey) {
		return ErrQRObjectKeyInvalid
	}
	if err := s.lazyInit(ctx); err != nil {
		return err
	}
	if err := s.client.RemoveObject(ctx, s.bucketName, objectKey, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("%w: %v", ErrQRDeleteFailed, err)
	}
	return nil
}

func (s *MinIOQRStorage) QRCodeURL(ctx context.Context, objectKey string) (string, error) {
	if !validQRObjectKey(objectKey) {
		return "", ErrQRObjectKeyInvalid
	}
	if err := s.lazyInit(ctx); err != nil {
		return "", err
	}
	u, err := s.client.PresignedGetObject(ctx, s.bucketName, objectKey, qrPresignedTTL, url.Values{})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrQRURLFailed, err)
	}
	return u.String(), nil
}

// Ping checks the bucket is reachable. Readiness uses it.
func (s *MinIOQRStorage) Ping(ctx context.Context) error {
	if _, err := s.client.BucketExists(ctx, s.bucketName); err != nil {
		return fmt.Errorf("%w: %v", ErrQRBucketUnavailable, err)
	}
	return nil
}

func qrObjectKey(cardID string) string {
	return qrObjectPrefix + "/" + cardID + ".png"
}

func validQRObjectKey(objectKey string) bool {
	if strings.Contains(objectKey, "..") || !strings.HasPrefix(objectKey, qrObjectPrefix+"/") {
		return false
	}
	id := strings.TrimSuffix(strings.TrimPrefix(objectKey, qrObjectPrefix+"/"), ".png")
	_, err := uuid.Parse(id)
	return err == nil && strings.HasSuffix(objectKey, ".png")
}
