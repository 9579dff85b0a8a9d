package s3

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBackend_MissingBucket(t *testing.T) {
	_, err := NewBackend(map[string]string{"region": "us-east-1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bucket")

	_, err = NewBackend(map[string]string{"bucket": ""})
	assert.Error(t, err)
}

func TestNewBackend_Defaults(t *testing.T) {
	b, err := NewBackend(map[string]string{
		"bucket":           "deploy-history",
		"endpoint":         "http://127.0.0.1:9000",
		"access_key":       "test-key",
		"secret_key":       "test-secret",
		"force_path_style": "true",
		"key":              "prod",
	})
	require.NoError(t, err)

	s3b := b.(*Backend)
	assert.Equal(t, "s3", s3b.Type())
	assert.Equal(t, "us-east-1", s3b.region)
	assert.Equal(t, "deploy-history", s3b.bucket)
	assert.Equal(t, "prod", s3b.prefix)
}

func TestBackend_fullPath(t *testing.T) {
	tests := []struct {
		name     string
		prefix   string
		path     string
		expected string
	}{
		{name: "no prefix", path: "deploy-history.json", expected: "deploy-history.json"},
		{name: "with prefix", prefix: "teams/web", path: "deploy-history.json", expected: "teams/web/deploy-history.json"},
		{name: "trailing slash prefix", prefix: "teams/", path: "h.json", expected: "teams/h.json"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &Backend{prefix: tt.prefix}
			assert.Equal(t, tt.expected, b.fullPath(tt.path))
		})
	}
}
