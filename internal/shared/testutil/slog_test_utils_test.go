package testutil

import (
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBufferedSlogHandler(t *testing.T) {
	t.Run("captures records and attributes", func(t *testing.T) {
		logger, h := NewTestLogger(t)

		logger.Info("stage-1 complete", slog.Int("estimated", 198))
		logger.Warn("entity skipped", slog.String("reason", "insufficient_data"))

		require.Equal(t, 2, h.Count())
		assert.True(t, h.ContainsMessage("stage-1"))
		assert.True(t, h.ContainsAttr("reason", "insufficient_data"))
		assert.Len(t, h.GetRecordsByLevel(slog.LevelWarn), 1)
	})

	t.Run("derived loggers share records", func(t *testing.T) {
		logger, h := NewTestLogger(t)

		logger.With("methodology", "SMB_50").Info("stage-2 complete")
		logger.WithGroup("fit").Info("loading", slog.Float64("r2", 0.5))

		assert.Equal(t, 2, h.Count())
		AssertLogAttr(t, h, "methodology", "SMB_50")
		AssertLogAttr(t, h, "fit.r2", 0.5)
	})

	t.Run("clear", func(t *testing.T) {
		logger, h := NewTestLogger(t)
		logger.Info("one")
		h.Clear()
		assert.Zero(t, h.Count())
	})

	t.Run("assertion helpers", func(t *testing.T) {
		logger, h := NewTestLogger(t)
		logger.Info("premium aggregated", slog.String("factor", "size"))

		AssertLogContains(t, h, slog.LevelInfo, "premium")
		AssertNoErrors(t, h)
		assert.Len(t, h.Find("premium"), 1)
	})

	t.Run("concurrent logging", func(t *testing.T) {
		logger, h := NewTestLogger(nil)

		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func(n int) {
				defer wg.Done()
				logger.Info("fit", slog.Int("worker", n))
			}(i)
		}
		wg.Wait()
		assert.Equal(t, 10, h.Count())
	})
}
