// internal/logging/logger.go
package logging

import (
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Log formats
const (
	FormatJSON    = "json"
	FormatConsole = "console"
)

// LoggerConfig configures a logger
type LoggerConfig struct {
	Level  string    `json:"level"`
	Format string    `json:"format"`
	Output io.Writer `json:"-"`
}

// ApplyDefaults fills in default values. Output defaults to stderr so stdout
// stays free for progress and the report.
func (c *LoggerConfig) ApplyDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
	if c.Format == "" {
		c.Format = FormatJSON
	}
	if c.Output == nil {
		c.Output = os.Stderr
	}
}

// Validate checks configuration
func (c *LoggerConfig) Validate() error {
	if _, err := zapcore.ParseLevel(c.Level); err != nil {
		return fmt.Errorf("logging: invalid level: %s", c.Level)
	}
	if c.Format != FormatJSON && c.Format != FormatConsole {
		return fmt.Errorf("logging: invalid format: %s", c.Format)
	}
	return nil
}

// NewLogger builds a zap logger from config.
func NewLogger(config *LoggerConfig) (*zap.Logger, error) {
	if config == nil {
		config = &LoggerConfig{}
	}
	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}

	level, _ := zapcore.ParseLevel(config.Level)

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var enc zapcore.Encoder
	if config.Format == FormatConsole {
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	} else {
		enc = zapcore.NewJSONEncoder(encCfg)
	}

	core := zapcore.NewCore(enc, zapcore.AddSync(config.Output), zap.NewAtomicLevelAt(level))
	return zap.New(core, zap.AddCaller()), nil
}
