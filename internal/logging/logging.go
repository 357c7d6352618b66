// Package logging builds the structured logger every component of
// dicezapd logs through: logrus with a prefixed text formatter and
// optional rotation to disk.
package logging

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
	"gopkg.in/natefinch/lumberjack.v2"
)

// New builds the root logger. When logFile is non-empty, output is
// duplicated to stdout and a lumberjack-rotated file; otherwise it goes
// to stdout only.
func New(level logrus.Level, logFile string) *logrus.Logger {
	l := logrus.New()
	l.SetLevel(level)
	l.SetFormatter(&prefixed.TextFormatter{
		FullTimestamp:   true,
		ForceFormatting: true,
	})

	var out io.Writer = os.Stdout
	if logFile != "" {
		out = io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   logFile,
			MaxSize:    50, // megabytes
			MaxBackups: 5,
			MaxAge:     30, // days
			Compress:   true,
		})
	}
	l.SetOutput(out)
	return l
}

// Component returns an entry prefixed with name, the way every
// component that takes a logger (nonce manager, settlement, payout
// dispatcher, HTTP server, social poster, LND client, transports)
// identifies its log lines.
func Component(l *logrus.Logger, name string) *logrus.Entry {
	return l.WithField("prefix", name)
}
