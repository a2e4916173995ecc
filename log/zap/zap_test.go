package zap

import (
	"errors"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/unkn0wn-root/revalcache"
)

func TestZapLoggerFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := New(zap.New(core))

	l.Warn("refresh failed", revalcache.Fields{"key": "page:/", "err": errors.New("boom")})
	l.Debug("skipped", nil)

	if logs.Len() != 2 {
		t.Fatalf("want 2 entries, got %d", logs.Len())
	}
	e := logs.All()[0]
	if e.Level != zapcore.WarnLevel || e.LoggerName != "revalcache" {
		t.Fatalf("unexpected entry: %+v", e.Entry)
	}
	m := e.ContextMap()
	if m["key"] != "page:/" || m["err"] != "boom" {
		t.Fatalf("unexpected fields: %v", m)
	}
}
