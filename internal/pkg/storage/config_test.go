package storage

import (
	"strings"
	"testing"
)

func TestPublicURL(t *testing.T) {
	tests := []struct {
		name string
		base string
		want string
	}{
		{"empty base falls back to aws", "", "https://videos.s3.amazonaws.com/cleaned/t1.mp4"},
		{"templated base", "https://cdn.example/{bucket}/{key}", "https://cdn.example/videos/cleaned/t1.mp4"},
		{"base with bucket", "https://videos.cdn.example", "https://videos.cdn.example/cleaned/t1.mp4"},
		{"plain host", "https://cdn.example/", "https://cdn.example/videos/cleaned/t1.mp4"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{BucketName: "videos", PublicBaseURL: tt.base}
			if got := cfg.PublicURL("cleaned/t1.mp4"); got != tt.want {
				t.Fatalf("PublicURL = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestObjectKeys(t *testing.T) {
	cfg := &Config{BucketName: "videos"}

	key := cfg.OriginalObjectKey(42)
	if !strings.HasPrefix(key, "original/42/") || !strings.HasSuffix(key, ".mp4") {
		t.Fatalf("original key = %q", key)
	}

	other := cfg.OriginalObjectKey(42)
	if key == other {
		t.Fatal("original keys must be unique per upload")
	}

	if got := cfg.CleanedObjectKey("task-9"); got != "cleaned/task-9.mp4" {
		t.Fatalf("cleaned key = %q", got)
	}
}
