package logger

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"tradesignal/internal/config"
)

func New(cfg config.LogConfig) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if err := level.Set(strings.ToLower(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	if cfg.Encoding == "console" {
		encoderCfg = zap.NewDevelopmentEncoderConfig()
	}

	if strings.TrimSpace(cfg.File) == "" {
		zc := zap.Config{
			Level:             zap.NewAtomicLevelAt(level),
			Development:       cfg.Development,
			Encoding:          cfg.Encoding,
			DisableCaller:     cfg.DisableCaller,
			DisableStacktrace: cfg.DisableStacktrace,
			Sampling:          nil,
			EncoderConfig:     encoderCfg,
			OutputPaths:       []string{"stdout"},
			ErrorOutputPaths:  []string{"stderr"},
		}
		if cfg.Sampling {
			zc.Sampling = &zap.SamplingConfig{
				Initial:    100,
				Thereafter: 100,
			}
		}
		return zc.Build()
	}

	// File output: stdout plus a rotated file, both through the same encoder.
	rotator := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   true,
	}
	var encoder zapcore.Encoder
	if cfg.Encoding == "console" {
		encoder = zapcore.NewConsoleEncoder(encoderCfg)
	} else {
		encoder = zapcore.NewJSONEncoder(encoderCfg)
	}
	atom := zap.NewAtomicLevelAt(level)
	core := zapcore.NewTee(
		zapcore.NewCore(encoder, zapcore.Lock(os.Stdout), atom),
		zapcore.NewCore(encoder, zapcore.AddSync(rotator), atom),
	)
	if cfg.Sampling {
		core = zapcore.NewSamplerWithOptions(core, 1e9, 100, 100)
	}

	opts := []zap.Option{zap.ErrorOutput(zapcore.Lock(os.Stderr))}
	if !cfg.DisableCaller {
		opts = append(opts, zap.AddCaller())
	}
	if !cfg.DisableStacktrace {
		opts = append(opts, zap.AddStacktrace(zapcore.ErrorLevel))
	}
	if cfg.Development {
		opts = append(opts, zap.Development())
	}
	return zap.New(core, opts...), nil
}
