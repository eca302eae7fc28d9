// Package logrus adapts a logrus entry to entcache.Logger.
package logrus

import (
	"github.com/sirupsen/logrus"
	"github.com/unkn0wn-root/entcache"
)

var _ entcache.Logger = Logger{}

type Logger struct{ E *logrus.Entry }

// New wraps l, tagging every line with component=entcache.
func New(l *logrus.Logger) Logger {
	if l == nil {
		l = logrus.StandardLogger()
	}
	return Logger{E: l.WithField("component", "entcache")}
}

func (l Logger) Debug(msg string, f entcache.Fields) { l.with(f).Debug(msg) }
func (l Logger) Info(msg string, f entcache.Fields)  { l.with(f).Info(msg) }
func (l Logger) Warn(msg string, f entcache.Fields)  { l.with(f).Warn(msg) }
func (l Logger) Error(msg string, f entcache.Fields) { l.with(f).Error(msg) }

func (l Logger) with(f entcache.Fields) *logrus.Entry {
	if len(f) == 0 {
		return l.E
	}
	// logrus expects errors under logrus.ErrorKey
	out := make(logrus.Fields, len(f))
	for k, v := range f {
		if err, ok := v.(error); ok && k == "err" {
			out[logrus.ErrorKey] = err
			continue
		}
		out[k] = v
	}
	return l.E.WithFields(out)
}
