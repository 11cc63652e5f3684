package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestLogBufferRecentOrder(t *testing.T) {
	buf, err := NewLogBuffer(3, "", zap.NewNop())
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		require.NoError(t, buf.Add("info", fmt.Sprintf("m%d", i), nil))
	}

	var msgs []string
	for _, e := range buf.Recent(0) {
		msgs = append(msgs, e.Message)
	}
	assert.Equal(t, []string{"m2", "m3", "m4"}, msgs)

	last := buf.Recent(2)
	require.Len(t, last, 2)
	assert.Equal(t, "m3", last[0].Message)
	assert.Equal(t, "m4", last[1].Message)

	total, spilled := buf.GetStats()
	assert.Equal(t, uint64(5), total)
	assert.Equal(t, uint64(0), spilled)
}

func TestLogBufferRecentBeforeWrap(t *testing.T) {
	buf, err := NewLogBuffer(10, "", zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, buf.Add("info", "a", nil))
	require.NoError(t, buf.Add("info", "b", nil))

	got := buf.Recent(5)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].Message)
	assert.Equal(t, "b", got[1].Message)
}

func TestLogBufferSpill(t *testing.T) {
	spill := filepath.Join(t.TempDir(), "logs", "spill.log")
	buf, err := NewLogBuffer(2, spill, zap.NewNop())
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		require.NoError(t, buf.Add("info", fmt.Sprintf("m%d", i), nil))
	}
	require.NoError(t, buf.Close())

	_, spilled := buf.GetStats()
	assert.Equal(t, uint64(2), spilled)

	data, err := os.ReadFile(spill)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"m0"`)
	assert.Contains(t, lines[1], `"m1"`)
}

func TestLogBufferAsZapSink(t *testing.T) {
	buf, err := NewLogBuffer(10, "", zap.NewNop())
	require.NoError(t, err)

	core := zapcore.NewCore(jsonEncoder(), buf, zapcore.DebugLevel)
	log := zap.New(core)
	log.Info("Swap executed", zap.String("listing", "7"))
	log.Warn("Operation rejected")

	got := buf.Recent(0)
	require.Len(t, got, 2)
	assert.Equal(t, "info", got[0].Level)
	assert.Equal(t, "Swap executed", got[0].Message)
	assert.Equal(t, "7", got[0].Fields["listing"])
	assert.False(t, got[0].Timestamp.IsZero())
	assert.Equal(t, "warn", got[1].Level)
	assert.Nil(t, got[1].Fields)
}

func TestLogBufferNonJSONLine(t *testing.T) {
	buf, err := NewLogBuffer(10, "", zap.NewNop())
	require.NoError(t, err)

	n, err := buf.Write([]byte("plain text\n"))
	require.NoError(t, err)
	assert.Equal(t, 11, n)

	got := buf.Recent(0)
	require.Len(t, got, 1)
	assert.Equal(t, "plain text", got[0].Message)
}

func TestLogBufferConcurrentAccess(t *testing.T) {
	buf, err := NewLogBuffer(100, filepath.Join(t.TempDir(), "spill.log"), zap.NewNop())
	require.NoError(t, err)
	defer buf.Close()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = buf.Add("info", fmt.Sprintf("g%d-%d", id, j), map[string]any{"g": id})
				_ = buf.Recent(10)
			}
		}(i)
	}
	wg.Wait()

	total, spilled := buf.GetStats()
	assert.Equal(t, uint64(1000), total)
	assert.Equal(t, uint64(900), spilled)
	assert.Len(t, buf.Recent(0), 100)
}

func TestNewForTUIRequiresBuffer(t *testing.T) {
	_, _, err := NewForTUI(Config{Level: "info"}, nil)
	assert.Error(t, err)
}

func TestNewForTUIWritesToBuffer(t *testing.T) {
	buf, err := NewLogBuffer(10, "", zap.NewNop())
	require.NoError(t, err)

	log, cleanup, err := NewForTUI(Config{Level: "warn"}, buf)
	require.NoError(t, err)
	log.Info("hidden")
	log.Warn("shown")
	require.NoError(t, cleanup())

	got := buf.Recent(0)
	require.Len(t, got, 1)
	assert.Equal(t, "shown", got[0].Message)
}

func TestNewWithFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "launchpad.log")
	log, cleanup, err := New(Config{Level: "debug", File: path})
	require.NoError(t, err)
	log.Debug("Listing created", zap.Uint64("listing", 1))
	require.NoError(t, cleanup())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"Listing created"`)
}

func TestParseLevel(t *testing.T) {
	lvl, err := ParseLevel("WARN")
	require.NoError(t, err)
	assert.Equal(t, zapcore.WarnLevel, lvl)

	_, err = ParseLevel("loud")
	assert.Error(t, err)
}

func TestFormatMessage(t *testing.T) {
	assert.Contains(t, FormatMessage("Listing graduated"), "🎉")
	assert.Equal(t, "something else", FormatMessage("something else"))
}
