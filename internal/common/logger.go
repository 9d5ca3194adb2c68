package common

import (
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

var Log *logrus.Logger

func init() {
	Log = logrus.New()

	Log.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: "2006-01-02 15:04:05",
	})

	logFile := filepath.Join("logs", "app.log")
	if err := os.MkdirAll("logs", 0755); err != nil {
		Log.SetOutput(os.Stdout)
		Log.WithError(err).Warn("cannot create log directory, logging to stdout only")
		return
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		Log.SetOutput(os.Stdout)
		Log.WithError(err).Warn("cannot open log file, logging to stdout only")
		return
	}

	// File plus console.
	Log.SetOutput(file)
	Log.AddHook(&ConsoleHook{})

	Log.SetLevel(logrus.InfoLevel)
}

// ConsoleHook mirrors every entry to stdout.
type ConsoleHook struct{}

func (hook *ConsoleHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (hook *ConsoleHook) Fire(entry *logrus.Entry) error {
	line, err := entry.String()
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write([]byte(line))
	return err
}

// SetLogLevel adjusts the global level; unknown values fall back to info.
func SetLogLevel(level string) {
	switch level {
	case "debug":
		Log.SetLevel(logrus.DebugLevel)
	case "info":
		Log.SetLevel(logrus.InfoLevel)
	case "warn":
		Log.SetLevel(logrus.WarnLevel)
	case "error":
		Log.SetLevel(logrus.ErrorLevel)
	default:
		Log.SetLevel(logrus.InfoLevel)
	}
}
