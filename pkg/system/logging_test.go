package system

import (
	"bytes"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewCLILoggerLevels(t *testing.T) {
	buf := &bytes.Buffer{}
	quiet := NewCLILogger(buf, false)
	quiet.Debugw("hidden debug")
	quiet.Warnw("visible warning", "key", "value")
	_ = quiet.Sync()
	assert.NotContains(t, buf.String(), "hidden debug")
	assert.Contains(t, buf.String(), "visible warning")

	buf.Reset()
	verbose := NewCLILogger(buf, true)
	verbose.Debugw("shown debug")
	_ = verbose.Sync()
	assert.Contains(t, buf.String(), "shown debug")
}

func TestGetReqLoggerFallbackWhenContextNil(t *testing.T) {
	fallback := zap.NewNop().Sugar()
	require.Same(t, fallback, GetReqLogger(nil, fallback))
}

func TestGetReqLoggerFromContext(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ctx, _ := gin.CreateTestContext(httptest.NewRecorder())
	fallback := zap.NewNop().Sugar()
	stored := zap.NewNop().Sugar()
	ctx.Set(ReqLoggerKey, stored)
	require.Same(t, stored, GetReqLogger(ctx, fallback))
}

func TestGetReqLoggerIgnoresInvalidTypes(t *testing.T) {
	ctx, _ := gin.CreateTestContext(httptest.NewRecorder())
	fallback := zap.NewNop().Sugar()
	ctx.Set(ReqLoggerKey, "not-a-logger")
	require.Same(t, fallback, GetReqLogger(ctx, fallback))
}

func TestEnrichReqLoggerWithUser(t *testing.T) {
	ctx, _ := gin.CreateTestContext(httptest.NewRecorder())
	ctx.Set(UserIDKey, "user-42")

	core, recorded := observer.New(zap.DebugLevel)
	logger := EnrichReqLoggerWithUser(ctx, zap.New(core).Sugar())
	logger.Infow("handled")

	entries := recorded.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "user-42", entries[0].ContextMap()["userID"])
}

func TestEnrichReqLoggerWithUserHandlesNil(t *testing.T) {
	require.Nil(t, EnrichReqLoggerWithUser(nil, nil))
	fallback := zap.NewNop().Sugar()
	require.Same(t, fallback, EnrichReqLoggerWithUser(nil, fallback))
}
