package logger

import (
	"os"

	"gitlab.com/autoserver-2025.net/internal/adapter/logging"
)

var Logger = logging.NewZapLogger(os.Getenv("LOG_LEVEL"))

// SetLevel replaces the global logger once configuration is known
func SetLevel(level string) {
	Logger = logging.NewZapLogger(level)
}

func Info(msg string, args ...interface{}) {
	Logger.Info(msg, args...)
}

func Error(msg string, args ...interface{}) {
	Logger.Error(msg, args...)
}

func Debug(msg string, args ...interface{}) {
	Logger.Debug(msg, args...)
}

func Warn(msg string, args ...interface{}) {
	Logger.Warn(msg, args...)
}
