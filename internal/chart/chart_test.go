package chart

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

var pngMagic = []byte{0x89, 'P', 'N', 'G'}

func TestRender(t *testing.T) {
	dir := t.TempDir()
	r := NewRenderer(dir, "chart_", zap.NewNop().Sugar())
	r.now = func() time.Time { return time.Unix(1714550400, 123) }

	history := []Point{
		{Date: "2024-05-01", Rate: 39.4},
		{Date: "2024-05-02", Rate: 39.6},
		{Date: "2024-05-03", Rate: 39.55},
	}

	path, ok := r.Render(history, "USD", 42)
	require.True(t, ok)
	assert.Equal(t, filepath.Join(dir, "chart_USD_42_1714550400000000123.png"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, pngMagic))

	path, ok = r.Render(history[:1], "EUR", 0)
	require.True(t, ok)
	assert.Equal(t, "chart_EUR_1714550400000000123.png", filepath.Base(path))
}

func TestRender_UniqueNames(t *testing.T) {
	r := NewRenderer(t.TempDir(), "chart_", zap.NewNop().Sugar())
	history := []Point{{Date: "2024-05-01", Rate: 39.4}, {Date: "2024-05-02", Rate: 39.6}}

	a, ok := r.Render(history, "USD", 1)
	require.True(t, ok)
	b, ok := r.Render(history, "USD", 1)
	require.True(t, ok)
	assert.NotEqual(t, a, b)
}

func TestRender_Failures(t *testing.T) {
	t.Run("empty history", func(t *testing.T) {
		r := NewRenderer(t.TempDir(), "chart_", zap.NewNop().Sugar())
		path, ok := r.Render(nil, "USD", 0)
		assert.False(t, ok)
		assert.Empty(t, path)
	})

	t.Run("unwritable directory", func(t *testing.T) {
		blocker := filepath.Join(t.TempDir(), "file")
		require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

		r := NewRenderer(filepath.Join(blocker, "charts"), "chart_", zap.NewNop().Sugar())
		path, ok := r.Render([]Point{{Date: "2024-05-01", Rate: 1}}, "USD", 0)
		assert.False(t, ok)
		assert.Empty(t, path)
	})
}

func TestSweepStale(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()
	r := NewRenderer(dir, "chart_", zap.NewNop().Sugar())
	r.now = func() time.Time { return now }

	touch := func(name string, age time.Duration) {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte("x"), 0o644))
		mt := now.Add(-age)
		require.NoError(t, os.Chtimes(p, mt, mt))
	}
	touch("chart_USD_1.png", 2*time.Hour)
	touch("chart_EUR_7_2.png", 90*time.Minute)
	touch("chart_USD_3.png", 10*time.Minute)
	touch("chart_USD_4.txt", 2*time.Hour)
	touch("other_USD_5.png", 2*time.Hour)
	require.NoError(t, os.Mkdir(filepath.Join(dir, "chart_dir.png"), 0o755))

	removed := r.SweepStale(dir, "chart_", time.Hour)
	assert.Equal(t, 2, removed)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var left []string
	for _, e := range entries {
		left = append(left, e.Name())
	}
	assert.ElementsMatch(t, []string{"chart_USD_3.png", "chart_USD_4.txt", "other_USD_5.png", "chart_dir.png"}, left)
}

func TestSweepStale_ContinuesAfterRemoveError(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()
	core, logs := observer.New(zapcore.WarnLevel)
	r := NewRenderer(dir, "chart_", zap.New(core).Sugar())
	r.now = func() time.Time { return now }

	for _, name := range []string{"chart_USD_1.png", "chart_USD_2.png", "chart_USD_3.png"} {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte("x"), 0o644))
		mt := now.Add(-2 * time.Hour)
		require.NoError(t, os.Chtimes(p, mt, mt))
	}

	locked := filepath.Join(dir, "chart_USD_2.png")
	r.remove = func(path string) error {
		if path == locked {
			return os.ErrPermission
		}
		return os.Remove(path)
	}

	assert.Equal(t, 2, r.SweepStale(dir, "chart_", time.Hour))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "chart_USD_2.png", entries[0].Name())

	warned := logs.FilterMessage("Chart sweep failed to remove file").All()
	require.Len(t, warned, 1)
	assert.Equal(t, "chart_USD_2.png", warned[0].ContextMap()["file"])
}

func TestSweepStale_MissingDir(t *testing.T) {
	r := NewRenderer("", "chart_", zap.NewNop().Sugar())
	missing := filepath.Join(t.TempDir(), "nope")
	assert.Equal(t, 0, r.SweepStale(missing, "chart_", time.Hour))
}

func TestFilename(t *testing.T) {
	r := NewRenderer("charts", "", zap.NewNop().Sugar())
	r.now = func() time.Time { return time.Unix(0, 5) }
	assert.Equal(t, "chart_PLN_5.png", r.filename("PLN", 0))
	assert.True(t, strings.HasPrefix(r.filename("PLN", 9), "chart_PLN_9_"))
}
