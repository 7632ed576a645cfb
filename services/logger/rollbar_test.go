package logsvc

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/trezcool/kumbukumbu/core"
	"github.com/trezcool/kumbukumbu/core/user"
)

func newObservedLogger(t *testing.T) (*RollbarLogger, *observer.ObservedLogs) {
	t.Helper()
	core_, logs := observer.New(zapcore.DebugLevel)
	l := NewRollbarLogger(zap.New(core_), core.NewTestConfig())
	return l, logs
}

func TestRollbarLogger_fields(t *testing.T) {
	l, logs := newObservedLogger(t)
	usr := user.User{ID: "u1", Name: "Ana", Email: "ana@test.cd"}

	l.Error("boom", errors.New("db down"), map[string]interface{}{"path": "/v1/x"}, usr, user.User{ID: "u2"})

	entries := logs.All()
	if assert.Len(t, entries, 1) {
		e := entries[0]
		assert.Equal(t, "boom", e.Message)
		assert.Equal(t, zapcore.ErrorLevel, e.Level)
		ctx := e.ContextMap()
		assert.Equal(t, "db down", ctx["error"])
		assert.Equal(t, "/v1/x", ctx["path"])
		assert.Equal(t, "u1", ctx["user_id"], "only the first user is kept")
	}
}

func TestRollbarLogger_levels(t *testing.T) {
	l, logs := newObservedLogger(t)

	l.Debug("d")
	l.Info("i")
	l.Warn("w")

	levels := make([]zapcore.Level, 0, 3)
	for _, e := range logs.All() {
		levels = append(levels, e.Level)
	}
	assert.Equal(t, []zapcore.Level{zapcore.DebugLevel, zapcore.InfoLevel, zapcore.WarnLevel}, levels)
}
