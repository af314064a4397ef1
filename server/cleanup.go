package server

import (
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

// purgeExpired 清理超过留存期的抠图结果
func (s *Server) purgeExpired() {
	dir := s.cfg.Upload.OutputDir
	retention := s.cfg.Upload.Retention
	if dir == "" || retention <= 0 {
		return
	}

	cutoff := time.Now().Add(-retention)
	removed := 0

	entries, err := os.ReadDir(dir)
	if err != nil {
		s.logger.Warn("read output dir failed", zap.String("dir", dir), zap.Error(err))
		return
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(filepath.Join(dir, entry.Name())); err != nil {
				s.logger.Warn("remove expired result failed", zap.String("file", entry.Name()), zap.Error(err))
				continue
			}
			removed++
		}
	}

	if removed > 0 {
		s.logger.Info("purged expired results", zap.Int("removed", removed), zap.String("dir", dir))
	}
}
