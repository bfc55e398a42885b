package logger

import (
	"fmt"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	cfgpkg "github.com/fatflowers/marketplace/pkg/config"
)

// New builds the JSON production logger with an ISO8601 "time" key. The
// level comes from log_level; dev adds caller stack traces at warn.
func New(cfg *cfgpkg.Config) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zc.EncoderConfig.TimeKey = "time"
	if cfg.LogLevel != "" {
		lvl, err := zapcore.ParseLevel(cfg.LogLevel)
		if err != nil {
			return nil, fmt.Errorf("log_level: %w", err)
		}
		zc.Level = zap.NewAtomicLevelAt(lvl)
	}
	opts := []zap.Option{zap.Fields(zap.String("env", string(cfg.Env)))}
	if cfg.Env == cfgpkg.EnvDev {
		opts = append(opts, zap.AddStacktrace(zapcore.WarnLevel))
	}
	return zc.Build(opts...)
}

func Sugar(l *zap.Logger) *zap.SugaredLogger { return l.Sugar() }

var Module = fx.Options(
	fx.Provide(New, Sugar),
	fx.WithLogger(func(l *zap.Logger) fxevent.Logger {
		return &fxevent.ZapLogger{Logger: l.Named("fx")}
	}),
	fx.Invoke(func(lc fx.Lifecycle, l *zap.Logger) {
		lc.Append(fx.StopHook(func() { _ = l.Sync() }))
	}),
)
