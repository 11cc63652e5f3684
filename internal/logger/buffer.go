package logger

import (
	"bytes"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"
)

// LogEntry is one decoded log line kept for the dashboard.
type LogEntry struct {
	Timestamp time.Time      `json:"timestamp"`
	Level     string         `json:"level"`
	Message   string         `json:"message"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// LogBuffer is a ring of recent log entries. It is a zapcore.WriteSyncer
// fed by a JSON core, so the TUI can show logs without a terminal sink.
// Evicted entries go to an optional spill file.
type LogBuffer struct {
	mu      sync.Mutex
	ring    []LogEntry
	next    int
	wrapped bool
	spill   *SafeFileWriter
	logger  *zap.Logger

	total   uint64
	spilled uint64
}

// NewLogBuffer keeps the last size entries. spillPath may be empty.
func NewLogBuffer(size int, spillPath string, logger *zap.Logger) (*LogBuffer, error) {
	if size <= 0 {
		size = 200
	}
	lb := &LogBuffer{ring: make([]LogEntry, size), logger: logger}
	if spillPath != "" {
		w, err := NewSafeFileWriter(spillPath, time.Second, logger)
		if err != nil {
			return nil, err
		}
		lb.spill = w
	}
	return lb, nil
}

// Add records an entry directly.
func (lb *LogBuffer) Add(level, message string, fields map[string]any) error {
	return lb.add(LogEntry{Timestamp: time.Now(), Level: level, Message: message, Fields: fields})
}

func (lb *LogBuffer) add(entry LogEntry) error {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	var evicted *LogEntry
	if lb.wrapped {
		old := lb.ring[lb.next]
		evicted = &old
	}
	lb.ring[lb.next] = entry
	lb.next = (lb.next + 1) % len(lb.ring)
	if lb.next == 0 {
		lb.wrapped = true
	}
	lb.total++

	if evicted != nil && lb.spill != nil {
		data, err := json.Marshal(evicted)
		if err != nil {
			return err
		}
		if _, err := lb.spill.Write(append(data, '\n')); err != nil {
			return err
		}
		lb.spilled++
	}
	return nil
}

// Write decodes zap JSON lines. Lines that are not JSON are kept verbatim
// as info messages.
func (lb *LogBuffer) Write(p []byte) (int, error) {
	for _, line := range bytes.Split(bytes.TrimSpace(p), []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		if err := lb.add(decodeLine(line)); err != nil {
			return 0, err
		}
	}
	return len(p), nil
}

// Sync implements zapcore.WriteSyncer.
func (lb *LogBuffer) Sync() error {
	if lb.spill == nil {
		return nil
	}
	return lb.spill.Flush()
}

func decodeLine(line []byte) LogEntry {
	raw := map[string]any{}
	if err := json.Unmarshal(line, &raw); err != nil {
		return LogEntry{Timestamp: time.Now(), Level: "info", Message: string(line)}
	}

	entry := LogEntry{Timestamp: time.Now()}
	if v, ok := raw["level"].(string); ok {
		entry.Level = v
	}
	if v, ok := raw["msg"].(string); ok {
		entry.Message = v
	}
	if v, ok := raw["ts"].(string); ok {
		if ts, err := time.Parse(time.RFC3339Nano, v); err == nil {
			entry.Timestamp = ts
		}
	}
	delete(raw, "level")
	delete(raw, "msg")
	delete(raw, "ts")
	if len(raw) > 0 {
		entry.Fields = raw
	}
	return entry
}

// Recent returns up to limit entries, oldest first. limit <= 0 means all.
func (lb *LogBuffer) Recent(limit int) []LogEntry {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	count, start := lb.next, 0
	if lb.wrapped {
		count, start = len(lb.ring), lb.next
	}
	if limit > 0 && limit < count {
		start += count - limit
		count = limit
	}

	out := make([]LogEntry, 0, count)
	for i := 0; i < count; i++ {
		out = append(out, lb.ring[(start+i)%len(lb.ring)])
	}
	return out
}

// GetStats returns entries seen and entries spilled to disk.
func (lb *LogBuffer) GetStats() (total, spilled uint64) {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	return lb.total, lb.spilled
}

// Close flushes and closes the spill file.
func (lb *LogBuffer) Close() error {
	if lb.spill == nil {
		return nil
	}
	return lb.spill.Close()
}
