// Package journal keeps an append-only record of engine events: a bounded
// in-memory window for the dashboard plus an optional CSV stream.
package journal

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/launchpad/internal/domain"
	"github.com/rovshanmuradov/launchpad/internal/events"
	"github.com/rovshanmuradov/launchpad/internal/logger"
)

// Journal implements events.Handler.
type Journal struct {
	mu        sync.RWMutex
	csvWriter *logger.SafeCSVWriter
	entries   []Entry
	maxSize   int
	seq       uint64
	logger    *zap.Logger

	byType      map[events.EventType]int
	listings    map[domain.ListingID]struct{}
	volume      *uint256.Int
	rewardPaid  *uint256.Int
	feesOut     *uint256.Int
	graduations int
}

// Stats summarizes everything journaled so far, including entries already
// evicted from memory.
type Stats struct {
	Events      uint64
	ByType      map[events.EventType]int
	Listings    int
	Purchases   int
	Graduations int
	Swaps       int
	// Volume is currency moved through purchases and swaps.
	Volume         *uint256.Int
	RewardsClaimed *uint256.Int
	FeesWithdrawn  *uint256.Int
}

// New creates a journal keeping maxSize entries in memory. csvPath may be
// empty to disable the CSV stream.
func New(maxSize int, csvPath string, flushInterval time.Duration, zapLogger *zap.Logger) (*Journal, error) {
	if maxSize <= 0 {
		return nil, fmt.Errorf("journal size must be positive, got %d", maxSize)
	}

	j := &Journal{
		entries:    make([]Entry, 0, maxSize),
		maxSize:    maxSize,
		logger:     zapLogger.Named("journal"),
		byType:     make(map[events.EventType]int),
		listings:   make(map[domain.ListingID]struct{}),
		volume:     new(uint256.Int),
		rewardPaid: new(uint256.Int),
		feesOut:    new(uint256.Int),
	}

	if csvPath != "" {
		w, err := logger.NewSafeCSVWriter(csvPath, CSVHeaders(), flushInterval, zapLogger)
		if err != nil {
			return nil, fmt.Errorf("failed to create CSV writer: %w", err)
		}
		j.csvWriter = w
	}

	j.logger.Info("Journal initialized",
		zap.String("csv_file", csvPath),
		zap.Int("max_memory_entries", maxSize))
	return j, nil
}

// Handle records the event.
func (j *Journal) Handle(_ context.Context, event events.Event) error {
	_, err := j.Record(event)
	return err
}

// Record appends event and returns the stored entry.
func (j *Journal) Record(event events.Event) (Entry, error) {
	attrs := event.Attrs()
	data := make(map[string]string, len(attrs))
	for _, a := range attrs {
		data[a.Key] = a.Value
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	j.seq++
	entry := Entry{
		ID:      uuid.NewString(),
		Seq:     j.seq,
		Time:    event.Timestamp(),
		Type:    event.Type(),
		Listing: event.Listing(),
		Attrs:   attrs,
		Data:    data,
	}

	if j.csvWriter != nil {
		if err := j.csvWriter.WriteRecord(entry.ToCSV()); err != nil {
			j.logger.Error("Failed to write entry to CSV",
				zap.Uint64("seq", entry.Seq),
				zap.Error(err))
			return entry, fmt.Errorf("failed to write entry: %w", err)
		}
	}

	if len(j.entries) >= j.maxSize {
		j.entries = j.entries[1:]
	}
	j.entries = append(j.entries, entry)
	j.account(entry)

	j.logger.Debug("Event journaled",
		zap.Uint64("seq", entry.Seq),
		zap.String("type", string(entry.Type)),
		zap.Uint64("listing", uint64(entry.Listing)))
	return entry, nil
}

func (j *Journal) account(e Entry) {
	j.byType[e.Type]++
	if e.Listing != 0 {
		j.listings[e.Listing] = struct{}{}
	}

	switch e.Type {
	case events.Purchase:
		addAttr(j.volume, e.Data["cost"])
	case events.Swapped:
		if events.Direction(e.Data["direction"]) == events.CurrencyToToken {
			addAttr(j.volume, e.Data["amount_in"])
		} else {
			addAttr(j.volume, e.Data["amount_out"])
		}
	case events.Graduated:
		j.graduations++
	case events.RewardClaimed:
		addAttr(j.rewardPaid, e.Data["amount"])
	case events.FeesWithdrawn:
		addAttr(j.feesOut, e.Data["amount"])
	}
}

// addAttr adds a decimal attribute to sum, saturating on overflow.
func addAttr(sum *uint256.Int, value string) {
	v, err := uint256.FromDecimal(value)
	if err != nil {
		return
	}
	if _, overflow := sum.AddOverflow(sum, v); overflow {
		sum.SetAllOne()
	}
}

// Recent returns up to limit most recent entries, oldest first.
func (j *Journal) Recent(limit int) []Entry {
	j.mu.RLock()
	defer j.mu.RUnlock()

	if limit <= 0 || limit > len(j.entries) {
		limit = len(j.entries)
	}
	out := make([]Entry, limit)
	copy(out, j.entries[len(j.entries)-limit:])
	return out
}

// ByListing returns the in-memory entries of one listing.
func (j *Journal) ByListing(id domain.ListingID) []Entry {
	return j.filter(func(e Entry) bool { return e.Listing == id })
}

// ByType returns the in-memory entries of one event type.
func (j *Journal) ByType(t events.EventType) []Entry {
	return j.filter(func(e Entry) bool { return e.Type == t })
}

func (j *Journal) filter(keep func(Entry) bool) []Entry {
	j.mu.RLock()
	defer j.mu.RUnlock()

	var out []Entry
	for _, e := range j.entries {
		if keep(e) {
			out = append(out, e)
		}
	}
	return out
}

// Statistics returns running totals.
func (j *Journal) Statistics() Stats {
	j.mu.RLock()
	defer j.mu.RUnlock()

	byType := make(map[events.EventType]int, len(j.byType))
	for k, v := range j.byType {
		byType[k] = v
	}
	return Stats{
		Events:         j.seq,
		ByType:         byType,
		Listings:       len(j.listings),
		Purchases:      j.byType[events.Purchase],
		Graduations:    j.graduations,
		Swaps:          j.byType[events.Swapped],
		Volume:         new(uint256.Int).Set(j.volume),
		RewardsClaimed: new(uint256.Int).Set(j.rewardPaid),
		FeesWithdrawn:  new(uint256.Int).Set(j.feesOut),
	}
}

// Flush forces buffered CSV rows to disk.
func (j *Journal) Flush() error {
	if j.csvWriter == nil {
		return nil
	}
	return j.csvWriter.Flush()
}

// Close flushes and closes the CSV stream.
func (j *Journal) Close() error {
	if j.csvWriter == nil {
		return nil
	}
	return j.csvWriter.Close()
}
