package observability_test

import (
	"testing"

	"github.com/fulmenhq/gofulmen/crucible"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/backlogsync/backlogsync/internal/observability"
)

func TestInitCLILogger(t *testing.T) {
	t.Run("default", func(t *testing.T) {
		observability.InitCLILogger("backlogsync-test", false)
		require.NotNil(t, observability.CLILogger)
		observability.CLILogger.Info("cli logger ready", zap.String("test", "value"))
	})

	t.Run("verbose", func(t *testing.T) {
		observability.InitCLILogger("backlogsync-test", true)
		require.NotNil(t, observability.CLILogger)
		observability.CLILogger.Debug("debug enabled")
	})

	t.Run("explicit level", func(t *testing.T) {
		observability.InitCLILogger("backlogsync-test", false, "warn")
		require.NotNil(t, observability.CLILogger)
		observability.CLILogger.Warn("warn level")
	})
}

func TestAPILoggerToleratesNil(t *testing.T) {
	var logger observability.APILogger
	logger.Debug("dropped")
	logger.Warn("dropped")

	observability.InitCLILogger("backlogsync-test", false)
	logger = observability.APILogger{Logger: observability.CLILogger}
	logger.Warn("Rate limit hit", zap.String("category", "read"))
}

func TestCrucibleVersionAvailable(t *testing.T) {
	version := crucible.GetVersion()
	require.NotEmpty(t, version.Gofulmen)
}
