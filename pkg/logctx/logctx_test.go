package logctx

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestFromCtx(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	base := zap.New(core).Sugar()

	require.Same(t, base, FromCtx(context.Background(), base))

	FromCtx(WithTraceID(context.Background(), "t-1"), base).Info("traced")
	require.Equal(t, "t-1", logs.All()[0].ContextMap()["trace_id"])

	attached := base.With("route", "/x")
	ctx := WithLogger(WithTraceID(context.Background(), "t-2"), attached)
	require.Same(t, attached, FromCtx(ctx, base))
	require.Equal(t, "t-2", TraceID(ctx))
}

func TestFromGin(t *testing.T) {
	gin.SetMode(gin.TestMode)
	base := zap.NewNop().Sugar()
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("GET", "/", nil)

	require.Same(t, base, FromGin(c, base))

	attached := base.With("trace_id", "t-3")
	c.Set(LoggerKey, attached)
	require.Same(t, attached, FromGin(c, base))
	require.Same(t, base, FromGin(nil, base))
}
