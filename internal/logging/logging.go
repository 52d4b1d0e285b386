package logging

import (
	"github.com/sirupsen/logrus"
)

// New builds the process logger. format is "text" or "json"; anything else
// falls back to text.
func New(format string) *logrus.Logger {
	log := logrus.New()
	if format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
		return log
	}
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	return log
}
