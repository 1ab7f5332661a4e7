// internal/services/storage_service.go
package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	minioCredentials "github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/sirupsen/logrus"

	"github.com/pactwise/pactwise-backend/internal/config"
	"github.com/pactwise/pactwise-backend/internal/utils"
)

// Storage drivers
const (
	StorageDriverLocal = "local"
	StorageDriverS3    = "s3"
	StorageDriverMinio = "minio"
)

var contractDocumentTypes = []string{".pdf", ".doc", ".docx", ".txt", ".rtf", ".odt"}

type StorageService struct {
	store  objectStore
	config *config.Config
	now    func() time.Time
}

// objectStore is one storage backend.
type objectStore interface {
	Put(ctx context.Context, key string, body []byte, contentType string) error
	Delete(ctx context.Context, key string) error
	PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error)
	URL(key string) string
}

type UploadResult struct {
	URL      string `json:"url"`
	Key      string `json:"key"`
	Size     int64  `json:"size"`
	MimeType string `json:"mime_type"`
	Checksum string `json:"checksum"`
}

type UploadOptions struct {
	Folder       string
	MaxSize      int64 // in bytes
	AllowedTypes []string
}

func NewStorageService(config *config.Config) (*StorageService, error) {
	var (
		store objectStore
		err   error
	)

	switch config.Storage.Driver {
	case StorageDriverS3:
		store, err = newS3Store(config.Storage)
	case StorageDriverMinio:
		store, err = newMinioStore(config.Storage)
	default:
		store = newLocalStore(config.Storage.LocalBaseURL)
	}
	if err != nil {
		return nil, err
	}

	logrus.WithField("driver", config.Storage.Driver).Info("Storage initialized")
	return &StorageService{store: store, config: config, now: time.Now}, nil
}

func (s *StorageService) Upload(ctx context.Context, r io.Reader, filename string, size int64, contentType string, options UploadOptions) (*UploadResult, error) {
	if options.MaxSize > 0 && size > options.MaxSize {
		return nil, invalidInput("file size %d bytes exceeds maximum allowed size %d bytes", size, options.MaxSize)
	}

	if len(options.AllowedTypes) > 0 {
		fileExt := strings.ToLower(filepath.Ext(filename))
		allowed := false
		for _, allowedType := range options.AllowedTypes {
			if fileExt == allowedType {
				allowed = true
				break
			}
		}
		if !allowed {
			return nil, invalidInput("file type %q is not allowed", fileExt)
		}
	}

	limit := options.MaxSize
	if limit <= 0 {
		limit = 1 << 30
	}
	fileBytes, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	if int64(len(fileBytes)) > limit {
		return nil, invalidInput("file exceeds maximum allowed size %d bytes", limit)
	}
	if len(fileBytes) == 0 {
		return nil, invalidInput("file is empty")
	}

	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(fileBytes)
	}

	key := s.generateFileName(filename, options.Folder)
	if err := s.store.Put(ctx, key, fileBytes, contentType); err != nil {
		return nil, err
	}

	return &UploadResult{
		URL:      s.store.URL(key),
		Key:      key,
		Size:     int64(len(fileBytes)),
		MimeType: contentType,
		Checksum: utils.HashBytes(fileBytes),
	}, nil
}

func (s *StorageService) DeleteFile(ctx context.Context, key string) error {
	return s.store.Delete(ctx, key)
}

// GeneratePresignedURL returns a time-limited download link. A zero
// expiration uses the configured default.
func (s *StorageService) GeneratePresignedURL(ctx context.Context, key string, expiration time.Duration) (string, error) {
	if expiration <= 0 {
		expiration = s.config.Storage.PresignExpiry
	}
	return s.store.PresignGet(ctx, key, expiration)
}

// ContractUploadOptions limits uploads to document formats under the tenant's folder.
func (s *StorageService) ContractUploadOptions(enterpriseID uuid.UUID) UploadOptions {
	maxMB := s.config.Storage.MaxUploadMB
	if maxMB <= 0 {
		maxMB = 25
	}
	return UploadOptions{
		Folder:       "contracts/" + enterpriseID.String(),
		MaxSize:      int64(maxMB) * 1024 * 1024,
		AllowedTypes: contractDocumentTypes,
	}
}

func (s *StorageService) generateFileName(originalName, folder string) string {
	id := uuid.New()
	ext := strings.ToLower(filepath.Ext(originalName))

	timestamp := s.now().Format("20060102")
	filename := fmt.Sprintf("%s_%s%s", timestamp, id.String()[:8], ext)

	if folder != "" {
		return fmt.Sprintf("%s/%s", folder, filename)
	}
	return filename
}

type s3Store struct {
	client        *s3.S3
	bucket        string
	region        string
	cloudFrontURL string
}

func newS3Store(cfg config.StorageConfig) (*s3Store, error) {
	awsConfig := &aws.Config{Region: aws.String(cfg.S3Region)}
	if cfg.S3AccessKeyID != "" {
		awsConfig.Credentials = credentials.NewStaticCredentials(cfg.S3AccessKeyID, cfg.S3SecretKey, "")
	}

	sess, err := session.NewSession(awsConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	return &s3Store{
		client:        s3.New(sess),
		bucket:        cfg.Bucket,
		region:        cfg.S3Region,
		cloudFrontURL: cfg.CloudFrontURL,
	}, nil
}

func (s *s3Store) Put(ctx context.Context, key string, body []byte, contentType string) error {
	_, err := s.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:               aws.String(s.bucket),
		Key:                  aws.String(key),
		Body:                 bytes.NewReader(body),
		ContentType:          aws.String(contentType),
		ContentLength:        aws.Int64(int64(len(body))),
		ServerSideEncryption: aws.String(s3.ServerSideEncryptionAes256),
	})
	if err != nil {
		return fmt.Errorf("failed to upload to S3: %w", err)
	}
	return nil
}

func (s *s3Store) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete file from S3: %w", err)
	}
	return nil
}

func (s *s3Store) PresignGet(_ context.Context, key string, expiry time.Duration) (string, error) {
	req, _ := s.client.GetObjectRequest(&s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})

	url, err := req.Presign(expiry)
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned URL: %w", err)
	}
	return url, nil
}

func (s *s3Store) URL(key string) string {
	if s.cloudFrontURL != "" {
		return fmt.Sprintf("%s/%s", s.cloudFrontURL, key)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, key)
}

type minioStore struct {
	client   *minio.Client
	bucket   string
	endpoint string
	useSSL   bool
}

func newMinioStore(cfg config.StorageConfig) (*minioStore, error) {
	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  minioCredentials.NewStaticV4(cfg.MinioAccess, cfg.MinioSecret, ""),
		Secure: cfg.MinioUseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	store := &minioStore{client: client, bucket: cfg.Bucket, endpoint: cfg.MinioEndpoint, useSSL: cfg.MinioUseSSL}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := store.ensureBucket(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

func (s *minioStore) ensureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket: %w", err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("failed to create bucket: %w", err)
		}
	}
	return nil
}

func (s *minioStore) Put(ctx context.Context, key string, body []byte, contentType string) error {
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(body), int64(len(body)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("failed to upload file: %w", err)
	}
	return nil
}

func (s *minioStore) Delete(ctx context.Context, key string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

func (s *minioStore) PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error) {
	url, err := s.client.PresignedGetObject(ctx, s.bucket, key, expiry, nil)
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned URL: %w", err)
	}
	return url.String(), nil
}

func (s *minioStore) URL(key string) string {
	protocol := "http"
	if s.useSSL {
		protocol = "https"
	}
	return fmt.Sprintf("%s://%s/%s/%s", protocol, s.endpoint, s.bucket, key)
}

// localStore keeps objects in process memory for development and tests.
type localStore struct {
	mu      sync.RWMutex
	baseURL string
	objects map[string][]byte
}

func newLocalStore(baseURL string) *localStore {
	if baseURL == "" {
		baseURL = "http://localhost:8080/uploads"
	}
	return &localStore{baseURL: strings.TrimRight(baseURL, "/"), objects: make(map[string][]byte)}
}

func (s *localStore) Put(_ context.Context, key string, body []byte, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = append([]byte(nil), body...)
	return nil
}

func (s *localStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

func (s *localStore) PresignGet(_ context.Context, key string, expiry time.Duration) (string, error) {
	s.mu.RLock()
	_, ok := s.objects[key]
	s.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("object %s not found", key)
	}
	return fmt.Sprintf("%s?expires=%d", s.URL(key), int64(expiry.Seconds())), nil
}

func (s *localStore) URL(key string) string {
	return fmt.Sprintf("%s/%s", s.baseURL, key)
}

func (s *localStore) has(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.objects[key]
	return ok
}
