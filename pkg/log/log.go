// Package log builds the structured logger every long-lived engine
// subsystem takes at construction, grounded directly on the teacher's
// pkg/log.NewLogger: a development logger (JSON formatter, level from
// LOG_LEVEL, writes to a log file under the config directory) versus a
// production logger (io.Discard, ErrorLevel).
package log

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/christophe-duc/lslengine/pkg/config"
	"github.com/sirupsen/logrus"
)

// NewLogger returns a logger pre-populated with build/debug fields every
// subsystem's log lines carry.
func NewLogger(cfg *config.AppConfig) *logrus.Entry {
	var l *logrus.Logger
	if cfg.Debug || os.Getenv("DEBUG") == "TRUE" {
		l = newDevelopmentLogger(cfg)
	} else {
		l = newProductionLogger()
	}

	l.Formatter = &logrus.JSONFormatter{}

	return l.WithFields(logrus.Fields{
		"debug":     cfg.Debug,
		"version":   cfg.Version,
		"commit":    cfg.Commit,
		"buildDate": cfg.BuildDate,
	})
}

func getLogLevel() logrus.Level {
	level, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil {
		return logrus.DebugLevel
	}
	return level
}

func newDevelopmentLogger(cfg *config.AppConfig) *logrus.Logger {
	l := logrus.New()
	l.SetLevel(getLogLevel())
	file, err := os.OpenFile(filepath.Join(cfg.ConfigDir, "development.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o666)
	if err != nil {
		fmt.Println("unable to log to file")
		os.Exit(1)
	}
	l.SetOutput(file)
	return l
}

func newProductionLogger() *logrus.Logger {
	l := logrus.New()
	l.Out = io.Discard
	l.SetLevel(logrus.ErrorLevel)
	return l
}
