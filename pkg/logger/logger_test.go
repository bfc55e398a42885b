package logger

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	cfgpkg "github.com/fatflowers/marketplace/pkg/config"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		level   string
		want    zapcore.Level
		wantErr bool
	}{
		{"default", "", zapcore.InfoLevel, false},
		{"debug", "debug", zapcore.DebugLevel, false},
		{"warn", "warn", zapcore.WarnLevel, false},
		{"bad", "loud", zapcore.InfoLevel, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := New(&cfgpkg.Config{Env: cfgpkg.EnvProd, LogLevel: tt.level})
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.True(t, l.Core().Enabled(tt.want))
			require.False(t, l.Core().Enabled(tt.want-1))
		})
	}
}
