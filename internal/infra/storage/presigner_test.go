package storage

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPresignGetUsesPathStyleEndpoint(t *testing.T) {
	p, err := NewPresigner(context.Background(), Config{
		Endpoint:        "https://objects.example.test",
		Bucket:          "sprites",
		AccessKeyID:     "AKIDEXAMPLE",
		SecretAccessKey: "secret",
	})
	require.NoError(t, err)

	raw, err := p.PresignGet(context.Background(), "projects/p1/export.png", 10*time.Minute)
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "objects.example.test", u.Host)
	assert.Equal(t, "/sprites/projects/p1/export.png", u.Path)
	assert.Equal(t, "600", u.Query().Get("X-Amz-Expires"))
	assert.NotEmpty(t, u.Query().Get("X-Amz-Signature"))
}

func TestNewPresignerRequiresBucketAndCredentials(t *testing.T) {
	_, err := NewPresigner(context.Background(), Config{Bucket: "b"})
	assert.ErrorIs(t, err, ErrNotConfigured)
}
