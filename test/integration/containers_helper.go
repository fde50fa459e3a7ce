package integration

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/whitecard/whitecard-backend/internal/service"
)

const (
	defaultMinioTestImage    = "docker.io/minio/minio:RELEASE.2025-09-07T16-13-09Z"
	defaultRedisTestImage    = "docker.io/library/redis:7-alpine"
	defaultPostgresTestImage = "docker.io/library/postgres:16-alpine"
)

func imageFromEnv(key, fallback string) string {
	if image := strings.TrimSpace(os.Getenv(key)); image != "" {
		return image
	}
	return fallback
}

// startContainer skips when no container runtime is reachable so the rest of
// the suite still runs on machines without docker.
func startContainer(t *testing.T, req testcontainers.ContainerRequest, port string) (testcontainers.Container, string) {
	t.Helper()
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("start %s test container: %v", req.Image, err)
	}
	t.Cleanup(func() {
		_ = container.Terminate(ctx)
	})

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("resolve %s host: %v", req.Image, err)
	}
	mappedPort, err := container.MappedPort(ctx, nat.Port(port))
	if err != nil {
		t.Fatalf("resolve %s port: %v", req.Image, err)
	}
	return container, net.JoinHostPort(host, mappedPort.Port())
}

func newRedisClient(t *testing.T) redis.UniversalClient {
	t.Helper()
	_, addr := startContainer(t, testcontainers.ContainerRequest{
		Image:        imageFromEnv("REDIS_TEST_IMAGE", defaultRedisTestImage),
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
	}, "6379/tcp")

	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Fatalf("ping redis container: %v", err)
	}
	return client
}

func newPostgresURL(t *testing.T) string {
	t.Helper()
	_, addr := startContainer(t, testcontainers.ContainerRequest{
		Image: imageFromEnv("POSTGRES_TEST_IMAGE", defaultPostgresTestImage),
		Env: map[string]string{
			"POSTGRES_USER":     "whitecard",
			"POSTGRES_PASSWORD": "whitecard",
			"POSTGRES_DB":       "whitecard",
		},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}, "5432/tcp")
	return fmt.Sprintf("postgres://whitecard:whitecard@%s/whitecard?sslmode=disable", addr)
}

type minioIntegrationEnv struct {
	endpoint string
	bucket   string

	storage *service.MinIOQRStorage
	client  *minio.Client
}

func newMinIOIntegrationEnv(t *testing.T) *minioIntegrationEnv {
	t.Helper()
	_, endpoint := startContainer(t, testcontainers.ContainerRequest{
		Image: imageFromEnv("MINIO_TEST_IMAGE", defaultMinioTestImage),
		Env: map[string]string{
			"MINIO_ROOT_USER":     "minioadmin",
			"MINIO_ROOT_PASSWORD": "minioadmin",
		},
		ExposedPorts: []string{"9000/tcp"},
		Cmd:          []string{"server", "/data", "--address", ":9000"},
		WaitingFor: wait.ForListeningPort("9000/tcp").
			WithStartupTimeout(45 * time.Second),
	}, "9000/tcp")
	bucket := fmt.Sprintf("qr-it-%d", time.Now().UnixNano())

	storage, err := service.NewMinIOQRStorage(endpoint, "minioadmin", "minioadmin", bucket, false)
	if err != nil {
		t.Fatalf("create minio qr storage: %v", err)
	}
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4("minioadmin", "minioadmin", ""),
		Secure: false,
	})
	if err != nil {
		t.Fatalf("create minio verification client: %v", err)
	}
	waitForMinIOReady(t, client)

	return &minioIntegrationEnv{
		endpoint: endpoint,
		bucket:   bucket,
		storage:  storage,
		client:   client,
	}
}

func waitForMinIOReady(t *testing.T, client *minio.Client) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	for {
		_, err := client.ListBuckets(ctx)
		if err == nil {
			return
		}
		select {
		case <-ctx.Done():
			t.Fatalf("minio readiness check timed out: %v", err)
		case <-ticker.C:
		}
	}
}

func (e *minioIntegrationEnv) objectExists(t *testing.T, objectKey string) bool {
	t.Helper()
	_, err := e.client.StatObject(context.Background(), e.bucket, objectKey, minio.StatObjectOptions{})
	if err == nil {
		return true
	}
	if isObjectNotFound(err) {
		return false
	}
	t.Fatalf("stat minio object %q: %v", objectKey, err)
	return false
}

func (e *minioIntegrationEnv) mustStatObject(t *testing.T, objectKey string) minio.ObjectInfo {
	t.Helper()
	obj, err := e.client.StatObject(context.Background(), e.bucket, objectKey, minio.StatObjectOptions{})
	if err != nil {
		t.Fatalf("stat minio object %q: %v", objectKey, err)
	}
	return obj
}

func isObjectNotFound(err error) bool {
	var errResp minio.ErrorResponse
	if errors.As(err, &errResp) {
		return errResp.Code == "NoSuchKey" || errResp.Code == "NoSuchBucket"
	}
	return strings.Contains(strings.ToLower(err.Error()), "not found")
}
