package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalFileStorage_SaveDelete(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, err := NewLocalFileStorage(filepath.Join(dir, "archive"), "https://files.example.com/archive/")
	require.NoError(t, err)

	url, err := s.SaveFile(ctx, strings.NewReader("{\"id\":1}\n"), "notifications-20240502T000000.jsonl", "application/x-ndjson")
	require.NoError(t, err)
	assert.Equal(t, "https://files.example.com/archive/notifications-20240502T000000.jsonl", url)

	data, err := os.ReadFile(filepath.Join(dir, "archive", "notifications-20240502T000000.jsonl"))
	require.NoError(t, err)
	assert.Equal(t, "{\"id\":1}\n", string(data))

	require.NoError(t, s.DeleteFile(ctx, url))
	_, err = os.Stat(filepath.Join(dir, "archive", "notifications-20240502T000000.jsonl"))
	assert.True(t, os.IsNotExist(err))

	// deleting twice is not an error
	assert.NoError(t, s.DeleteFile(ctx, url))
}

func TestLocalFileStorage_StaysInsideBasePath(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	base := filepath.Join(dir, "archive")
	s, err := NewLocalFileStorage(base, "file://archive")
	require.NoError(t, err)

	url, err := s.SaveFile(ctx, strings.NewReader("x"), "../../escape.jsonl", "text/plain")
	require.NoError(t, err)
	assert.Equal(t, "file://archive/escape.jsonl", url)

	_, err = os.Stat(filepath.Join(base, "escape.jsonl"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "escape.jsonl"))
	assert.True(t, os.IsNotExist(err))

	_, err = s.SaveFile(ctx, strings.NewReader("x"), "/", "text/plain")
	assert.Error(t, err)
}

func TestS3Storage_URLs(t *testing.T) {
	tests := []struct {
		name      string
		publicURL string
		wantURL   string
	}{
		{name: "public url", publicURL: "https://cdn.example.com", wantURL: "https://cdn.example.com/archive/a.jsonl"},
		{name: "bucket url", wantURL: "s3://isp-archive/archive/a.jsonl"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &S3Storage{bucket: "isp-archive", publicURL: tt.publicURL}
			url := s.urlFor(archivePrefix + "a.jsonl")
			assert.Equal(t, tt.wantURL, url)
			assert.Equal(t, "archive/a.jsonl", s.keyFor(url))
		})
	}
}
