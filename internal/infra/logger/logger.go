package logger

import (
	"io"
	"os"
	"strings"

	"terratrack_notifier/internal/infra/config"

	"github.com/sirupsen/logrus"
)

const serviceName = "terratrack-notifier"

// Log is the global logger instance
var Log = logrus.New()

// Init configures the global logger from the application configuration and writes to stdout.
func Init(cfg *config.AppConfig) {
	InitWithOutput(cfg, os.Stdout)
}

// InitWithOutput is Init with an explicit destination.
func InitWithOutput(cfg *config.AppConfig, out io.Writer) {
	Log.SetOutput(out)
	Log.ReplaceHooks(make(logrus.LevelHooks))

	level, err := logrus.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil {
		Log.Warnf("Invalid log level '%s', defaulting to 'info'. Error: %v", cfg.LogLevel, err)
		level = logrus.InfoLevel
	}
	Log.SetLevel(level)

	if cfg.Environment == "production" || cfg.Environment == "staging" {
		Log.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00", // ISO8601
		})
	} else {
		Log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
			DisableColors:   out != os.Stdout,
		})
	}
	Log.AddHook(&serviceHook{environment: cfg.Environment})

	Log.Debugf("Log level set to: %s", Log.GetLevel().String())
}

// Component returns an entry tagged with the component name.
func Component(name string) *logrus.Entry {
	return Log.WithField("component", name)
}

// serviceHook stamps every entry with the service and environment unless already set.
type serviceHook struct {
	environment string
}

func (h *serviceHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *serviceHook) Fire(e *logrus.Entry) error {
	if _, ok := e.Data["service"]; !ok {
		e.Data["service"] = serviceName
	}
	if _, ok := e.Data["environment"]; !ok {
		e.Data["environment"] = h.environment
	}
	return nil
}
