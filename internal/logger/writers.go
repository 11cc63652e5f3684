package logger

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
)

// openAppend creates the parent directory and opens path for appending.
func openAppend(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	return file, nil
}

// flushLoop calls flush every interval until done is closed.
type flushLoop struct {
	ticker *time.Ticker
	done   chan struct{}
	once   sync.Once
}

func startFlushLoop(interval time.Duration, flush func() error, onErr func(error)) *flushLoop {
	if interval <= 0 {
		interval = time.Second
	}
	fl := &flushLoop{ticker: time.NewTicker(interval), done: make(chan struct{})}
	go func() {
		for {
			select {
			case <-fl.ticker.C:
				if err := flush(); err != nil {
					onErr(err)
				}
			case <-fl.done:
				return
			}
		}
	}()
	return fl
}

func (fl *flushLoop) stop() {
	fl.once.Do(func() {
		fl.ticker.Stop()
		close(fl.done)
	})
}

// SafeFileWriter is a buffered, mutex-guarded file writer flushed on a
// ticker. It backs the JSON log file core.
type SafeFileWriter struct {
	mu       sync.Mutex
	writer   *bufio.Writer
	file     *os.File
	loop     *flushLoop
	logger   *zap.Logger
	filePath string

	writtenLines uint64
	flushCount   uint64
}

// NewSafeFileWriter opens filePath for appending.
func NewSafeFileWriter(filePath string, flushInterval time.Duration, logger *zap.Logger) (*SafeFileWriter, error) {
	file, err := openAppend(filePath)
	if err != nil {
		return nil, err
	}

	sfw := &SafeFileWriter{
		writer:   bufio.NewWriter(file),
		file:     file,
		logger:   logger,
		filePath: filePath,
	}
	sfw.loop = startFlushLoop(flushInterval, sfw.Flush, func(err error) {
		sfw.logger.Error("Periodic flush failed", zap.String("file", sfw.filePath), zap.Error(err))
	})
	return sfw, nil
}

func (sfw *SafeFileWriter) Write(data []byte) (int, error) {
	sfw.mu.Lock()
	defer sfw.mu.Unlock()

	n, err := sfw.writer.Write(data)
	if err != nil {
		return n, fmt.Errorf("failed to write data: %w", err)
	}
	sfw.writtenLines++
	return n, nil
}

// WriteLine writes line followed by a newline.
func (sfw *SafeFileWriter) WriteLine(line string) error {
	_, err := sfw.Write([]byte(line + "\n"))
	return err
}

// Flush pushes buffered data to disk.
func (sfw *SafeFileWriter) Flush() error {
	sfw.mu.Lock()
	defer sfw.mu.Unlock()

	if err := sfw.writer.Flush(); err != nil {
		return fmt.Errorf("failed to flush buffer: %w", err)
	}
	if err := sfw.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync file: %w", err)
	}
	sfw.flushCount++
	return nil
}

// Sync implements zapcore.WriteSyncer.
func (sfw *SafeFileWriter) Sync() error {
	return sfw.Flush()
}

// Close stops the flush loop, flushes and closes the file.
func (sfw *SafeFileWriter) Close() error {
	sfw.loop.stop()

	sfw.mu.Lock()
	defer sfw.mu.Unlock()

	if err := sfw.writer.Flush(); err != nil {
		return fmt.Errorf("failed to flush on close: %w", err)
	}
	if err := sfw.file.Close(); err != nil {
		return fmt.Errorf("failed to close file: %w", err)
	}

	sfw.logger.Debug("Safe file writer closed",
		zap.String("file", sfw.filePath),
		zap.Uint64("written_lines", sfw.writtenLines),
		zap.Uint64("flush_count", sfw.flushCount))
	return nil
}

// GetStats returns writes and flushes so far.
func (sfw *SafeFileWriter) GetStats() (lines, flushes uint64) {
	sfw.mu.Lock()
	defer sfw.mu.Unlock()
	return sfw.writtenLines, sfw.flushCount
}

// SafeCSVWriter is the CSV counterpart of SafeFileWriter. The event journal
// streams through it.
type SafeCSVWriter struct {
	mu       sync.Mutex
	writer   *csv.Writer
	file     *os.File
	loop     *flushLoop
	logger   *zap.Logger
	filePath string
	header   []string

	writtenRecords uint64
	flushCount     uint64
}

// NewSafeCSVWriter opens filePath for appending. header is written only
// when the file is new.
func NewSafeCSVWriter(filePath string, header []string, flushInterval time.Duration, logger *zap.Logger) (*SafeCSVWriter, error) {
	file, err := openAppend(filePath)
	if err != nil {
		return nil, err
	}

	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	scw := &SafeCSVWriter{
		writer:   csv.NewWriter(file),
		file:     file,
		logger:   logger,
		filePath: filePath,
		header:   header,
	}

	// the header does not count as a record
	if stat.Size() == 0 && len(header) > 0 {
		if err := scw.writer.Write(header); err != nil {
			file.Close()
			return nil, fmt.Errorf("failed to write header: %w", err)
		}
		scw.writer.Flush()
	}

	scw.loop = startFlushLoop(flushInterval, scw.Flush, func(err error) {
		scw.logger.Error("Periodic CSV flush failed", zap.String("file", scw.filePath), zap.Error(err))
	})
	return scw, nil
}

// WriteRecord appends one row. Rows must match the header width when a
// header was given.
func (scw *SafeCSVWriter) WriteRecord(record []string) error {
	scw.mu.Lock()
	defer scw.mu.Unlock()

	if len(scw.header) > 0 && len(record) != len(scw.header) {
		return fmt.Errorf("record has %d fields, header has %d", len(record), len(scw.header))
	}
	if err := scw.writer.Write(record); err != nil {
		return fmt.Errorf("failed to write record: %w", err)
	}
	scw.writtenRecords++
	return nil
}

// Flush pushes buffered rows to disk.
func (scw *SafeCSVWriter) Flush() error {
	scw.mu.Lock()
	defer scw.mu.Unlock()

	scw.writer.Flush()
	if err := scw.writer.Error(); err != nil {
		return fmt.Errorf("CSV writer error: %w", err)
	}
	if err := scw.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync file: %w", err)
	}
	scw.flushCount++
	return nil
}

// Close stops the flush loop, flushes and closes the file.
func (scw *SafeCSVWriter) Close() error {
	scw.loop.stop()

	scw.mu.Lock()
	defer scw.mu.Unlock()

	scw.writer.Flush()
	if err := scw.writer.Error(); err != nil {
		return fmt.Errorf("CSV writer error on close: %w", err)
	}
	if err := scw.file.Close(); err != nil {
		return fmt.Errorf("failed to close file: %w", err)
	}

	scw.logger.Debug("Safe CSV writer closed",
		zap.String("file", scw.filePath),
		zap.Uint64("written_records", scw.writtenRecords),
		zap.Uint64("flush_count", scw.flushCount))
	return nil
}

// GetStats returns records written and flushes so far.
func (scw *SafeCSVWriter) GetStats() (records, flushes uint64) {
	scw.mu.Lock()
	defer scw.mu.Unlock()
	return scw.writtenRecords, scw.flushCount
}
