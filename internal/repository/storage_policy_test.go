package repository

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoragePolicy_Check(t *testing.T) {
	p := NewStoragePolicy(0)
	require.Equal(t, int64(DefaultMaxImageBytes), p.MaxBytes)

	assert.NoError(t, p.Check(1024, "image/jpeg"))
	assert.NoError(t, p.Check(DefaultMaxImageBytes, "image/png; charset=binary"))
	assert.ErrorIs(t, p.Check(DefaultMaxImageBytes+1, "image/png"), ErrObjectTooLarge)
	assert.ErrorIs(t, p.Check(10, "application/pdf"), ErrUnsupportedMimeType)
	assert.ErrorIs(t, p.Check(10, ""), ErrUnsupportedMimeType)
}

func TestStoragePolicy_Limit(t *testing.T) {
	p := NewStoragePolicy(8)

	data, err := io.ReadAll(p.Limit(bytes.NewReader([]byte("12345678"))))
	require.NoError(t, err)
	assert.Equal(t, "12345678", string(data))

	_, err = io.ReadAll(p.Limit(bytes.NewReader([]byte("123456789"))))
	assert.ErrorIs(t, err, ErrObjectTooLarge)
}
