// Package logrus adapts a *logrus.Entry to revalcache.Logger.
package logrus

import (
	"github.com/sirupsen/logrus"

	"github.com/unkn0wn-root/revalcache"
)

var _ revalcache.Logger = LogrusLogger{}

type LogrusLogger struct{ E *logrus.Entry }

// New tags every entry with component=revalcache.
func New(l *logrus.Logger) LogrusLogger {
	return LogrusLogger{E: l.WithField("component", "revalcache")}
}

func (l LogrusLogger) Debug(msg string, f revalcache.Fields) { l.with(f).Debug(msg) }
func (l LogrusLogger) Info(msg string, f revalcache.Fields)  { l.with(f).Info(msg) }
func (l LogrusLogger) Warn(msg string, f revalcache.Fields)  { l.with(f).Warn(msg) }
func (l LogrusLogger) Error(msg string, f revalcache.Fields) { l.with(f).Error(msg) }

// with maps an "err" field onto logrus' error key.
func (l LogrusLogger) with(f revalcache.Fields) *logrus.Entry {
	if len(f) == 0 {
		return l.E
	}
	lf := make(logrus.Fields, len(f))
	for k, v := range f {
		if err, ok := v.(error); ok && k == "err" {
			lf[logrus.ErrorKey] = err
			continue
		}
		lf[k] = v
	}
	return l.E.WithFields(lf)
}
