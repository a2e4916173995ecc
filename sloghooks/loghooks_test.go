package sloghooks

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/unkn0wn-root/revalcache"
)

func newBufLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})), &buf
}

func TestRedactsKeysByDefault(t *testing.T) {
	l, buf := newBufLogger()
	h := New(l, Options{})
	h.BackgroundWriteFailed("call:secret-token", errors.New("down"))

	out := buf.String()
	if strings.Contains(out, "secret-token") {
		t.Fatalf("key leaked: %s", out)
	}
	if !strings.Contains(out, "revalcache.background_write_failed") || !strings.Contains(out, "err=down") {
		t.Fatalf("unexpected output: %s", out)
	}
}

func TestLookupSampling(t *testing.T) {
	l, buf := newBufLogger()
	h := New(l, Options{LookupEvery: 3, Redact: func(s string) string { return s }})
	for i := 0; i < 9; i++ {
		h.Lookup(revalcache.KindPage, "page:/", revalcache.StatusHit)
	}
	if n := strings.Count(buf.String(), "revalcache.lookup"); n != 3 {
		t.Fatalf("want 3 sampled lookups, got %d", n)
	}
}

func TestRegenerationLevels(t *testing.T) {
	l, buf := newBufLogger()
	h := New(l, Options{})
	h.Regeneration("page:/", time.Millisecond, nil)
	h.Regeneration("page:/", time.Millisecond, errors.New("render failed"))

	out := buf.String()
	if !strings.Contains(out, "level=INFO msg=revalcache.regenerated") {
		t.Fatalf("missing success line: %s", out)
	}
	if !strings.Contains(out, "level=WARN msg=revalcache.regeneration_failed") {
		t.Fatalf("missing failure line: %s", out)
	}
}

func TestNilLoggerIsSafe(t *testing.T) {
	h := New(nil, Options{})
	h.Lookup(revalcache.KindCall, "k", revalcache.StatusMiss)
	h.RegenerationSkipped("k")
	h.Regeneration("k", 0, nil)
	h.BackgroundWriteFailed("k", nil)
	h.RegistryEvicted("k")
}
