package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartcrm/internal/config"
)

func TestLocal(t *testing.T) {
	ctx := context.Background()
	b, err := New(ctx, config.StorageConfig{Driver: "local", RootDir: t.TempDir()})
	require.NoError(t, err)

	require.NoError(t, b.Put(ctx, "reports/7/a.pdf", "application/pdf", []byte("%PDF-1.4")))

	data, err := b.Get(ctx, "reports/7/a.pdf")
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-1.4"), data)

	require.NoError(t, b.Delete(ctx, "reports/7/a.pdf"))
	_, err = b.Get(ctx, "reports/7/a.pdf")
	assert.ErrorIs(t, err, ErrNotFound)

	// deleting twice is fine
	assert.NoError(t, b.Delete(ctx, "reports/7/a.pdf"))
}

func TestCleanKey(t *testing.T) {
	cases := map[string]string{
		"photos/x.png":         "photos/x.png",
		"/photos/x.png":        "photos/x.png",
		"../../etc/passwd":     "etc/passwd",
		"reports/1/../2/a.pdf": "reports/2/a.pdf",
	}
	for in, want := range cases {
		got, err := cleanKey(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
	_, err := cleanKey("  ")
	assert.Error(t, err)
}

func TestNewUnknownDriver(t *testing.T) {
	_, err := New(context.Background(), config.StorageConfig{Driver: "ftp"})
	assert.Error(t, err)
}
