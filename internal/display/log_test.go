package display

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogDisplayLifecycle(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.InfoLevel)
	d := NewLog(zap.New(core))

	h, err := d.Create(8, "crunching", nil)
	require.NoError(t, err)
	require.NoError(t, d.Refresh(h, 2, 8, "crunching"))
	require.NoError(t, d.Close(h))
	require.NoError(t, d.Close(h))
	require.NoError(t, d.Refresh(h, 8, 8, "ignored"))

	require.Equal(t, 1, logs.FilterMessage("stage started").Len())
	progress := logs.FilterMessage("stage progress").All()
	require.Len(t, progress, 1)
	require.Equal(t, int64(25), progress[0].ContextMap()["percent"])
	closed := logs.FilterMessage("stage closed").All()
	require.Len(t, closed, 1)
	require.Equal(t, int64(2), closed[0].ContextMap()["completed"])
}
