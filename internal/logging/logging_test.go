package logging_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/born-ml/srgan/internal/logging"
	"github.com/born-ml/srgan/internal/types"
)

func TestSetupJSONAddsSubsystem(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	var buf bytes.Buffer
	require.NoError(t, logging.Setup("info", "json", &buf))
	logging.Info("Remove pixel loss.", types.Model, "iter", 3)
	logging.Debug("hidden", types.Model)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	require.Equal(t, "Remove pixel loss.", rec["msg"])
	require.Equal(t, "model", rec["subsystem"])
	require.EqualValues(t, 3, rec["iter"])
}

func TestSetupRejectsBadInput(t *testing.T) {
	var buf bytes.Buffer
	require.Error(t, logging.Setup("loud", "text", &buf))
	require.Error(t, logging.Setup("info", "xml", &buf))
}

func TestWithNoopLoggerRestoresDefault(t *testing.T) {
	prev := slog.Default()
	out, err := logging.WithNoopLogger(func() (any, error) {
		require.NotSame(t, prev, slog.Default())
		logging.Warn("silenced", types.Train)
		return 42, nil
	})
	require.NoError(t, err)
	require.Equal(t, 42, out)
	require.Same(t, prev, slog.Default())
}
