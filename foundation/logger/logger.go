// Package logger builds the logrus logger shared by the whole process. The
// business packages only see its Printf method.
package logger

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// New returns a text logger at the given level ("debug", "info", ...) that
// stamps every entry with the app name
func New(appID, logLevel string) (*logrus.Logger, error) {
	return NewWithOutput(os.Stdout, appID, logLevel)
}

func NewWithOutput(out io.Writer, appID, logLevel string) (*logrus.Logger, error) {
	if logLevel == "" {
		logLevel = logrus.InfoLevel.String()
	}
	lvl, err := logrus.ParseLevel(logLevel)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}

	log := &logrus.Logger{
		Level: lvl,
		Out:   out,
		Hooks: make(logrus.LevelHooks),
		Formatter: &formatter{
			Formatter:     &logrus.TextFormatter{FullTimestamp: true},
			defaultFields: logrus.Fields{"app": appID},
		},
		ExitFunc: os.Exit,
	}
	return log, nil
}

type formatter struct {
	logrus.Formatter
	defaultFields logrus.Fields
}

func (f *formatter) Format(entry *logrus.Entry) ([]byte, error) {
	for k, v := range f.defaultFields {
		entry.Data[k] = v
	}
	return f.Formatter.Format(entry)
}
