// Package logging sets up the leveled logger used by the command line tools.
package logging

import (
	"fmt"
	"io"
	"os"

	"github.com/op/go-logging"
)

// Log is the shared logger. It satisfies mlx9064x.Logger.
var Log = logging.MustGetLogger("mlx9064x")

var LogBackendLvl logging.LeveledBackend

var format = logging.MustStringFormatter(
	"%{time:15:04:05.000} %{level:.4s} [%{shortfunc}] %{message}",
)

// InitializeLogging sends log records to stderr at INFO level.
func InitializeLogging() {
	InitializeLoggingTo(os.Stderr)
}

// InitializeLoggingTo sends log records to w at INFO level.
func InitializeLoggingTo(w io.Writer) {
	backend := logging.NewLogBackend(w, "", 0)
	backendFormatter := logging.NewBackendFormatter(backend, format)
	LogBackendLvl = logging.AddModuleLevel(backendFormatter)
	LogBackendLvl.SetLevel(logging.INFO, "")
	logging.SetBackend(LogBackendLvl)
}

// ConfigureLogging changes the level of every module. An unknown level is
// reported and leaves the level unchanged.
func ConfigureLogging(level string) error {
	lvl, err := logging.LogLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	LogBackendLvl.SetLevel(lvl, "")
	return nil
}
