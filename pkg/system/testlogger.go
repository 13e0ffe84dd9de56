package system

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

// NewTestLogger returns a sugared logger that writes through t.Log, so output
// only shows up for failing or verbose test runs.
func NewTestLogger(t testing.TB) *zap.SugaredLogger {
	return NewTestZapLogger(t).Sugar()
}

// NewTestZapLogger is the unsugared variant, used where a *zap.Logger is
// required (for example the gin logging middleware).
func NewTestZapLogger(t testing.TB) *zap.Logger {
	return zaptest.NewLogger(t, zaptest.Level(zap.DebugLevel), zaptest.WrapOptions(zap.AddCaller()))
}
