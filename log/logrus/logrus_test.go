package logrus

import (
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/unkn0wn-root/revalcache"
)

func TestLogrusLoggerFields(t *testing.T) {
	base, hook := test.NewNullLogger()
	base.SetLevel(logrus.DebugLevel)
	l := New(base)

	boom := errors.New("boom")
	l.Warn("refresh failed", revalcache.Fields{"key": "page:/", "err": boom})

	e := hook.LastEntry()
	if e == nil || e.Level != logrus.WarnLevel || e.Message != "refresh failed" {
		t.Fatalf("unexpected entry: %+v", e)
	}
	if e.Data["key"] != "page:/" || e.Data["component"] != "revalcache" {
		t.Fatalf("unexpected data: %v", e.Data)
	}
	if e.Data[logrus.ErrorKey] != boom {
		t.Fatalf("err not mapped to %q: %v", logrus.ErrorKey, e.Data)
	}
}
