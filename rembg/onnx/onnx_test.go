package onnx

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	assert.Equal(t, 320, cfg.InputSize)
	assert.Equal(t, []Provider{ProviderCUDA, ProviderCPU}, cfg.Providers)
	assert.Equal(t, "input.1", cfg.InputName)
}

func TestEnsureModel_Existing(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "u2netp.onnx")
	require.NoError(t, os.WriteFile(path, []byte("model"), 0644))

	got, err := ensureModel(path, "")
	require.NoError(t, err)
	assert.Equal(t, path, got)
}

func TestEnsureModel_Download(t *testing.T) {
	t.Parallel()

	payload := []byte("fake onnx model bytes")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(payload)
	}))
	defer server.Close()

	path := filepath.Join(t.TempDir(), "models", "u2netp.onnx")
	got, err := ensureModel(path, server.URL)
	require.NoError(t, err)
	assert.Equal(t, path, got)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, payload, data)
}

func TestEnsureModel_BadStatus(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	path := filepath.Join(t.TempDir(), "u2netp.onnx")
	_, err := ensureModel(path, server.URL)
	assert.Error(t, err)

	// 失败时不留半成品文件
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestEnsureModel_NoURL(t *testing.T) {
	t.Parallel()

	_, err := ensureModel(filepath.Join(t.TempDir(), "missing.onnx"), "")
	assert.Error(t, err)
}
