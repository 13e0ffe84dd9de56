package system

import (
	"io"
	"os"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ReqLoggerKey is the context key used to store request-scoped logger in gin context.
const ReqLoggerKey = "reqLogger"

// UserIDKey is the gin context key holding the authenticated user id.
const UserIDKey = "userID"

// NewCLILogger builds the logger used by the command line client. Output goes
// to w (stderr when nil) so it never mixes with command output on stdout.
// Only warnings and errors are shown unless verbose is set.
func NewCLILogger(w io.Writer, verbose bool) *zap.SugaredLogger {
	if w == nil {
		w = os.Stderr
	}
	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.TimeKey = ""
	encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	level := zapcore.WarnLevel
	if verbose {
		level = zapcore.DebugLevel
	}
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.AddSync(w), level)
	return zap.New(core).Sugar()
}

// GetReqLogger returns the request-scoped sugared logger from gin.Context if present,
// otherwise returns the fallback.
func GetReqLogger(c *gin.Context, fallback *zap.SugaredLogger) *zap.SugaredLogger {
	if c == nil {
		return fallback
	}
	if v, ok := c.Get(ReqLoggerKey); ok {
		if l, ok2 := v.(*zap.SugaredLogger); ok2 {
			return l
		}
	}
	return fallback
}

// EnrichReqLoggerWithUser annotates the request-scoped logger with the user id
// set by the auth middleware, if any.
func EnrichReqLoggerWithUser(c *gin.Context, reqLogger *zap.SugaredLogger) *zap.SugaredLogger {
	if c == nil || reqLogger == nil {
		return reqLogger
	}
	if v, ok := c.Get(UserIDKey); ok {
		if id, ok2 := v.(string); ok2 && id != "" {
			reqLogger = reqLogger.With("userID", id)
		}
	}
	return reqLogger
}
