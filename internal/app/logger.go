package app

import (
	"os"

	"github.com/yitethio/liyt-driver/internal/config"
	"github.com/yitethio/liyt-driver/internal/logx"
)

// NewLogger builds the process-wide JSON logger at the configured level.
func NewLogger(cfg *config.Config) logx.Logger {
	return logx.New(os.Stdout, cfg.LogLevel)
}
