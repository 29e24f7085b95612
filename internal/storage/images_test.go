package storage

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/property-marketplace/internal/config"
)

func TestObjectKey(t *testing.T) {
	k := ObjectKey("p1", "image/png")
	assert.True(t, strings.HasPrefix(k, "properties/p1/"))
	assert.True(t, strings.HasSuffix(k, ".png"))
	assert.NotEqual(t, k, ObjectKey("p1", "image/png"))
}

func TestNewImageStore(t *testing.T) {
	_, err := NewImageStore(config.StorageConfig{Endpoint: "localhost:9000"})
	assert.Error(t, err)

	s, err := NewImageStore(config.StorageConfig{
		Endpoint: "localhost:9000", AccessKey: "k", SecretKey: "s", Bucket: "imgs",
	})
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:9000/imgs", s.publicBase)

	s, err = NewImageStore(config.StorageConfig{
		Endpoint: "localhost:9000", AccessKey: "k", SecretKey: "s", Bucket: "imgs", PublicBase: "https://cdn.example.com/",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com", s.publicBase)
}
