package logger

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config selects how logs are encoded and where they go.
type Config struct {
	JSON  bool
	Debug bool
	// Output is stdout, stderr or a file path. Empty means stdout.
	Output string
	// Fields are attached to every entry.
	Fields []zap.Field
}

func New(json bool, debug bool) (*zap.Logger, error) {
	return Build(Config{JSON: json, Debug: debug})
}

func Build(c Config) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	encoding := "console"

	if c.JSON {
		encoding = "json"
	}

	if c.Debug {
		level = zapcore.DebugLevel
	}

	output := strings.TrimSpace(c.Output)
	if output == "" {
		output = "stdout"
	}

	cfg := zap.Config{
		Encoding:          encoding,
		Level:             zap.NewAtomicLevelAt(level),
		OutputPaths:       []string{output},
		ErrorOutputPaths:  []string{"stderr"},
		DisableStacktrace: !c.Debug,
		EncoderConfig: zapcore.EncoderConfig{
			MessageKey: "step",

			LevelKey:    "level",
			EncodeLevel: zapcore.LowercaseLevelEncoder,

			TimeKey:    "time",
			EncodeTime: zapcore.RFC3339TimeEncoder,

			CallerKey:    "caller",
			EncodeCaller: zapcore.ShortCallerEncoder,

			EncodeDuration: zapcore.StringDurationEncoder,
		},
	}
	logger, err := cfg.Build(zap.Fields(c.Fields...))
	if err != nil {
		return nil, err
	}

	return logger, nil
}
