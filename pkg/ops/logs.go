package ops

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
	"github.com/sirupsen/logrus"
)

// LogHandlerFunc logs requests and responses.
func LogHandlerFunc(logger logrus.FieldLogger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			meth := c.Request().Method
			path := c.Request().URL
			BEGIN := time.Now()
			logger.Debugf("< request @[%s] %s %s", BEGIN, meth, path)

			err := next(c)

			END := time.Now()
			entry := logger.WithFields(logrus.Fields{
				"method":  meth,
				"path":    path.Path,
				"status":  c.Response().Status,
				"elapsed": END.Sub(BEGIN),
			})
			if err != nil {
				entry = entry.WithError(err)
			}
			entry.Infof("> response (for request @[%s] %s %s)", BEGIN, meth, path)
			return err
		}
	}
}

// SetLevel aligns the log level of echo to the level of logrus.
func SetLevel(e *echo.Echo, level logrus.Level) {
	switch level {
	case logrus.TraceLevel, logrus.DebugLevel:
		e.Logger.SetLevel(log.DEBUG)
	case logrus.InfoLevel:
		e.Logger.SetLevel(log.INFO)
	case logrus.WarnLevel:
		e.Logger.SetLevel(log.WARN)
	case logrus.ErrorLevel:
		e.Logger.SetLevel(log.ERROR)
	default:
		e.Logger.SetLevel(log.OFF)
	}
}
