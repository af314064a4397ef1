package util

import (
	"log/slog"
	"time"
)

// Trace 计时打点，用法：defer Trace("remove background")()
func Trace(msg string) func() {
	start := time.Now()
	return func() {
		slog.Info("trace", "msg", msg, "cost", time.Since(start))
	}
}
