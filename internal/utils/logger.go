package utils

import (
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
)

var logger = newLogger()

func newLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stdout)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: time.RFC3339})
	l.SetLevel(logrus.InfoLevel)
	return l
}

// SetupLogger настраивает формат (json|text) и уровень логирования.
func SetupLogger(format, level string) {
	if format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: time.RFC3339})
	}
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		logger.Warnf("неизвестный уровень логирования %q, используется info", level)
		parsed = logrus.InfoLevel
	}
	logger.SetLevel(parsed)
}

// Logger отдаёт базовый логгер, например для подмены вывода в тестах.
func Logger() *logrus.Logger {
	return logger
}

func format(message string, args ...interface{}) string {
	if len(args) > 0 {
		return fmt.Sprintf(message, args...)
	}
	return message
}

func component(name string) *logrus.Entry {
	return logger.WithField("component", name)
}

func LogInfo(name, message string, args ...interface{}) {
	component(name).Info(format(message, args...))
}

func LogSuccess(name, message string, args ...interface{}) {
	component(name).WithField("outcome", "success").Info(format(message, args...))
}

func LogWarning(name, message string, args ...interface{}) {
	component(name).Warn(format(message, args...))
}

func LogError(name, message string, err error) {
	entry := component(name)
	if err != nil {
		entry = entry.WithError(err)
	}
	entry.Error(message)
}

func LogDebug(name, message string, args ...interface{}) {
	component(name).Debug(format(message, args...))
}

func LogRequest(method, path, userID string) {
	logger.WithFields(logrus.Fields{
		"component": "HTTP",
		"method":    method,
		"path":      path,
		"user_id":   userID,
	}).Info("request")
}

func LogResponse(path string, statusCode int, duration time.Duration) {
	entry := logger.WithFields(logrus.Fields{
		"component": "HTTP",
		"path":      path,
		"status":    statusCode,
		"duration":  duration.String(),
	})
	switch {
	case statusCode >= 500:
		entry.Error("response")
	case statusCode >= 400:
		entry.Warn("response")
	default:
		entry.Info("response")
	}
}

func LogDB(operation, query string) {
	logger.WithFields(logrus.Fields{
		"component": "DB",
		"operation": operation,
	}).Debug(query)
}
