package utils

import (
	"io"

	"github.com/MrSnakeDoc/qrlink/internal/logger"
)

// Close closes c and ignores any error.
// Use for best-effort cleanup in defer, e.g. sql.Rows whose errors surface through Err().
func Close(c io.Closer) {
	_ = c.Close()
}

// CloseOrWarn closes c and logs a failure naming what was being closed.
// Nil closers are skipped so shutdown paths can close optional backends blindly.
func CloseOrWarn(c io.Closer, what string, log logger.Logger) {
	if c == nil {
		return
	}
	if err := c.Close(); err != nil {
		log.Warn("failed to close "+what, logger.Error(err))
		return
	}
	log.Info("✅ " + what + " closed")
}
