package cmd

import (
	"os"
	"testing"

	"github.com/xkilldash9x/banner-cli/internal/config"
	"github.com/xkilldash9x/banner-cli/internal/observability"
)

// TestMain silences the global logger once; the root command's own
// initialization is a no-op afterwards.
func TestMain(m *testing.M) {
	observability.ResetForTest()
	observability.InitializeLogger(config.LoggerConfig{Level: "fatal", Format: "console", ServiceName: "test"})

	code := m.Run()

	observability.Sync()
	os.Exit(code)
}
