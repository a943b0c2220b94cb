package logging

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

type Logger = logrus.FieldLogger

func New() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)
	logger.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	return logger
}

// Nop returns a logger that discards everything, useful for tests.
func Nop() Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}
