package server

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPurgeExpired(t *testing.T) {
	s := newTestServer(t, &mockEngine{value: 1.0})
	dir := t.TempDir()
	s.cfg.Upload.OutputDir = dir
	s.cfg.Upload.Retention = time.Hour

	oldFile := filepath.Join(dir, "old.png")
	newFile := filepath.Join(dir, "new.png")
	require.NoError(t, os.WriteFile(oldFile, []byte("x"), 0644))
	require.NoError(t, os.WriteFile(newFile, []byte("x"), 0644))

	// 把 old.png 的修改时间拨到留存期之前
	past := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(oldFile, past, past))

	s.purgeExpired()

	_, err := os.Stat(oldFile)
	assert.True(t, os.IsNotExist(err), "expired file should be removed")

	_, err = os.Stat(newFile)
	assert.NoError(t, err, "recent file should survive")
}

func TestPurgeExpired_Disabled(t *testing.T) {
	s := newTestServer(t, &mockEngine{value: 1.0})
	s.cfg.Upload.OutputDir = ""

	// 未配置输出目录时直接返回
	s.purgeExpired()
}
