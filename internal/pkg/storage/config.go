package storage

import (
	"errors"
	"fmt"
	"strings"

	"github.com/clearmarkhq/clearmark/internal/pkg/env"
	"github.com/google/uuid"
)

// Config holds S3 video storage configuration
type Config struct {
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	BucketName      string
	EndpointURL     string // Optional for S3-compatible services
	PublicBaseURL   string // Base for buyer-facing download links
}

// LoadConfig loads S3 configuration from environment variables
func LoadConfig() (*Config, error) {
	config := &Config{
		AccessKeyID:     env.GetEnv("S3_ACCESS_KEY_ID", ""),
		SecretAccessKey: env.GetEnv("S3_SECRET_ACCESS_KEY", ""),
		Region:          env.GetEnv("S3_REGION", "us-east-1"),
		BucketName:      env.GetEnv("S3_BUCKET_NAME", ""),
		EndpointURL:     env.GetEnv("S3_ENDPOINT_URL", ""),
		PublicBaseURL:   env.GetEnv("S3_PUBLIC_BASE_URL", ""),
	}

	if config.AccessKeyID == "" {
		return nil, errors.New("S3_ACCESS_KEY_ID is required")
	}
	if config.SecretAccessKey == "" {
		return nil, errors.New("S3_SECRET_ACCESS_KEY is required")
	}
	if config.BucketName == "" {
		return nil, errors.New("S3_BUCKET_NAME is required")
	}

	return config, nil
}

// OriginalObjectKey generates the object key for a freshly uploaded video
func (c *Config) OriginalObjectKey(userID uint) string {
	return fmt.Sprintf("original/%d/%s.mp4", userID, uuid.New().String())
}

// CleanedObjectKey generates the object key for a processed video
func (c *Config) CleanedObjectKey(taskID string) string {
	return fmt.Sprintf("cleaned/%s.mp4", taskID)
}

// PublicURL builds the buyer-facing URL for an object. The base may carry
// {bucket}/{key} placeholders, already include the bucket, or be a plain
// host.
func (c *Config) PublicURL(key string) string {
	base := strings.TrimRight(c.PublicBaseURL, "/")
	if base == "" {
		return fmt.Sprintf("https://%s.s3.amazonaws.com/%s", c.BucketName, key)
	}
	if strings.Contains(base, "{bucket}") || strings.Contains(base, "{key}") {
		return strings.ReplaceAll(strings.ReplaceAll(base, "{bucket}", c.BucketName), "{key}", key)
	}
	if strings.Contains(base, c.BucketName) {
		return base + "/" + key
	}
	return base + "/" + c.BucketName + "/" + key
}
