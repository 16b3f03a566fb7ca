package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/shibukawa/configdir"
	"github.com/sirupsen/logrus"

	"github.com/lunixbochs/trapgate/go/models"
)

const configName = "config.toml"

type strslice []string

func (s *strslice) String() string {
	return fmt.Sprintf("%v", *s)
}

func (s *strslice) Set(value string) error {
	*s = append(*s, value)
	return nil
}

// StrSlice is a repeatable string flag.
type StrSlice = strslice

// LoadConfig reads path, or the first config.toml found in the user and
// system config folders when path is empty. With neither, it returns the
// defaults.
func LoadConfig(path string) (*models.Config, error) {
	if path != "" {
		return models.LoadConfig(path)
	}
	configDirs := configdir.New("trapgate", "")
	if folder := configDirs.QueryFolderContainsFile(configName); folder != nil {
		data, err := folder.ReadFile(configName)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read %s", configName)
		}
		logrus.WithField("path", folder.Path).Debug("using config")
		return models.DecodeConfig(string(data))
	}
	return models.DefaultConfig(), nil
}

// SetupLogging sends logs to stderr at Warn, or Debug when verbose.
func SetupLogging(verbose bool) *logrus.Logger {
	log := logrus.StandardLogger()
	log.Out = os.Stderr
	log.SetLevel(logrus.WarnLevel)
	if verbose {
		log.SetLevel(logrus.DebugLevel)
	}
	return log
}

type stackTracer interface {
	StackTrace() errors.StackTrace
}

func PrintError(err error) {
	// print an error, and a stacktrace if available
	fmt.Fprintf(os.Stderr, "%s\n", strings.Repeat("-", 40))
	fmt.Fprintf(os.Stderr, "Error: %s\n", err)
	if err, ok := err.(stackTracer); ok {
		for _, f := range err.StackTrace() {
			method := fmt.Sprintf("%n", f)
			fmt.Fprintf(os.Stderr, "%s:%d | %s()\n", f, f, method)
			if method == "main" {
				break
			}
		}
	}
}
