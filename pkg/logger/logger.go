package logger

import (
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Init configures the process-wide logrus logger: JSON output at the
// configured level, to stdout and optionally a rotating file.
func Init(level, file string) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logrus.SetLevel(lvl)
	logrus.SetFormatter(&logrus.JSONFormatter{})

	writers := []io.Writer{os.Stdout}

	if file != "" {
		if err := os.MkdirAll(filepath.Dir(file), 0o755); err != nil {
			logrus.WithError(err).Warn("cannot create log directory")
		} else {
			writers = append(writers, &lumberjack.Logger{
				Filename:   file,
				MaxSize:    100, // MB
				MaxAge:     14,  // days
				MaxBackups: 5,
				Compress:   true,
			})
		}
	}

	logrus.SetOutput(io.MultiWriter(writers...))
}
