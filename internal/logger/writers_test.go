package logger

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSafeFileWriterConcurrentWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "safe.log")
	writer, err := NewSafeFileWriter(path, 50*time.Millisecond, zap.NewNop())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				assert.NoError(t, writer.WriteLine(fmt.Sprintf("goroutine %d line %d", id, j)))
			}
		}(i)
	}
	wg.Wait()
	require.NoError(t, writer.Close())

	lines, _ := writer.GetStats()
	assert.Equal(t, uint64(500), lines)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimSpace(string(data)), "\n"), 500)
}

func TestSafeFileWriterPeriodicFlush(t *testing.T) {
	path := filepath.Join(t.TempDir(), "slow.log")
	writer, err := NewSafeFileWriter(path, 10*time.Millisecond, zap.NewNop())
	require.NoError(t, err)
	defer writer.Close()

	require.NoError(t, writer.WriteLine("first"))
	assert.Eventually(t, func() bool {
		data, err := os.ReadFile(path)
		return err == nil && strings.Contains(string(data), "first")
	}, time.Second, 10*time.Millisecond)
}

func TestSafeCSVWriterHeaderOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.csv")
	header := []string{"time", "type", "listing"}

	w, err := NewSafeCSVWriter(path, header, time.Second, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, w.WriteRecord([]string{"t1", "sale.purchase", "1"}))
	require.NoError(t, w.Close())

	// reopening an existing file must not repeat the header
	w, err = NewSafeCSVWriter(path, header, time.Second, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, w.WriteRecord([]string{"t2", "pool.swap", "1"}))
	require.NoError(t, w.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, header, rows[0])
	assert.Equal(t, "pool.swap", rows[2][1])
}

func TestSafeCSVWriterRejectsWidthMismatch(t *testing.T) {
	w, err := NewSafeCSVWriter(filepath.Join(t.TempDir(), "j.csv"), []string{"a", "b"}, time.Second, zap.NewNop())
	require.NoError(t, err)
	defer w.Close()

	assert.Error(t, w.WriteRecord([]string{"only"}))
	records, _ := w.GetStats()
	assert.Zero(t, records)
}

func TestSafeCSVWriterConcurrentWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "concurrent.csv")
	w, err := NewSafeCSVWriter(path, []string{"worker", "seq"}, 20*time.Millisecond, zap.NewNop())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				assert.NoError(t, w.WriteRecord([]string{fmt.Sprint(id), fmt.Sprint(j)}))
				if j%10 == 0 {
					assert.NoError(t, w.Flush())
				}
			}
		}(i)
	}
	wg.Wait()
	require.NoError(t, w.Close())

	records, flushes := w.GetStats()
	assert.Equal(t, uint64(250), records)
	assert.GreaterOrEqual(t, flushes, uint64(25))
}
