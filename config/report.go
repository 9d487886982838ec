package config

import (
	"errors"

	"github.com/sirupsen/logrus"
)

// Report logs a Load failure, one entry per violated variable. With a nil
// logger it writes JSON to stderr, since the application logger depends on
// the configuration that just failed.
func Report(log logrus.FieldLogger, err error) {
	if log == nil {
		l := logrus.New()
		l.SetFormatter(&logrus.JSONFormatter{})
		log = l
	}
	var verr *ValidationError
	if !errors.As(err, &verr) {
		log.WithError(err).Error("configuration could not be loaded")
		return
	}
	for _, v := range verr.Violations {
		log.WithFields(logrus.Fields{"field": v.Field, "reason": v.Message}).Error("invalid configuration")
	}
	log.WithField("count", len(verr.Violations)).Error("refusing to start")
}
