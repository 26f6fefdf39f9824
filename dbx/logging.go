package dbx

import (
	"github.com/go-pkgz/lgr"
	"github.com/quintans/toolkit/log"
)

var logger = log.LoggerFor("github.com/samterrell/SQLProcessor/dbx")

var (
	_ Logger = NopLogger{}
	_ Logger = (*funcLogger)(nil)
)

type NopLogger struct{}

func (NopLogger) Info(string)        {}
func (NopLogger) Warn(string, error)  {}
func (NopLogger) Error(string, error) {}

type funcLogger struct {
	info  func(text string)
	warn  func(text string, cause error)
	error func(text string, cause error)
}

func (l *funcLogger) Info(text string) {
	l.info(text)
}

func (l *funcLogger) Warn(text string, cause error) {
	l.warn(text, cause)
}

func (l *funcLogger) Error(text string, cause error) {
	l.error(text, cause)
}

// NewToolkitLogger writes through the toolkit logger registered for name.
func NewToolkitLogger(name string) Logger {
	l := log.LoggerFor(name)
	return &funcLogger{
		info: func(text string) {
			l.Infof("%s", text)
		},
		warn: func(text string, cause error) {
			if cause != nil {
				l.Warnf("%s: %+v", text, cause)
				return
			}
			l.Warnf("%s", text)
		},
		error: func(text string, cause error) {
			if cause != nil {
				l.Errorf("%s: %+v", text, cause)
				return
			}
			l.Errorf("%s", text)
		},
	}
}

// NewLgrLogger writes through an lgr logger using its level prefixes.
func NewLgrLogger(l lgr.L) Logger {
	if l == nil {
		l = lgr.Default()
	}
	return &funcLogger{
		info: func(text string) {
			l.Logf("[INFO] %s", text)
		},
		warn: func(text string, cause error) {
			if cause != nil {
				l.Logf("[WARN] %s: %v", text, cause)
				return
			}
			l.Logf("[WARN] %s", text)
		},
		error: func(text string, cause error) {
			if cause != nil {
				l.Logf("[ERROR] %s: %v", text, cause)
				return
			}
			l.Logf("[ERROR] %s", text)
		},
	}
}
