package export

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/rovshanmuradov/launchpad/internal/domain"
	"github.com/rovshanmuradov/launchpad/internal/events"
	"github.com/rovshanmuradov/launchpad/internal/journal"
)

var base = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestExporter() *Exporter {
	ex := NewExporter(zap.NewNop())
	ex.now = func() time.Time { return base }
	return ex
}

func entry(seq uint64, typ events.EventType, listing domain.ListingID, offset time.Duration) journal.Entry {
	attrs := []events.Attr{{Key: "amount", Value: "100"}}
	return journal.Entry{
		ID:      "id",
		Seq:     seq,
		Time:    base.Add(offset),
		Type:    typ,
		Listing: listing,
		Attrs:   attrs,
		Data:    map[string]string{"amount": "100"},
	}
}

func generateTestEntries() []journal.Entry {
	return []journal.Entry{
		entry(3, events.Purchase, 1, 2*time.Minute),
		entry(1, events.ListingCreated, 1, 0),
		entry(2, events.ListingCreated, 2, time.Minute),
		entry(4, events.Graduated, 1, 3*time.Minute),
		entry(5, events.Swapped, 1, 4*time.Minute),
		entry(6, events.Purchase, 2, 5*time.Minute),
		entry(7, events.FeesWithdrawn, 0, 6*time.Minute),
	}
}

func TestExportCSV(t *testing.T) {
	outputPath, err := newTestExporter().Export(generateTestEntries(), Options{
		Format:    FormatCSV,
		OutputDir: t.TempDir(),
	})
	if err != nil {
		t.Fatalf("Failed to export events: %v", err)
	}
	if !strings.HasSuffix(outputPath, "events_all_20240301_120000.csv") {
		t.Errorf("unexpected file name %s", outputPath)
	}

	f, err := os.Open(outputPath)
	if err != nil {
		t.Fatalf("Failed to open export: %v", err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("Failed to parse CSV: %v", err)
	}
	if len(rows) != 8 {
		t.Fatalf("expected header + 7 rows, got %d", len(rows))
	}
	// sorted by sequence
	if rows[1][1] != "1" || rows[7][1] != "7" {
		t.Errorf("rows not ordered by seq: first %s last %s", rows[1][1], rows[7][1])
	}
}

func TestExportJSON(t *testing.T) {
	outputPath, err := newTestExporter().Export(generateTestEntries(), Options{
		Format:    FormatJSON,
		OutputDir: t.TempDir(),
		Listing:   1,
	})
	if err != nil {
		t.Fatalf("Failed to export events: %v", err)
	}

	content, err := os.ReadFile(outputPath)
	if err != nil {
		t.Fatalf("Failed to read export file: %v", err)
	}

	var decoded struct {
		EventCount int             `json:"event_count"`
		Events     []journal.Entry `json:"events"`
		Summary    Summary         `json:"summary"`
	}
	if err := json.Unmarshal(content, &decoded); err != nil {
		t.Fatalf("Failed to decode JSON: %v", err)
	}
	if decoded.EventCount != 4 {
		t.Errorf("expected 4 events for listing 1, got %d", decoded.EventCount)
	}
	if decoded.Summary.Listings != 1 {
		t.Errorf("expected 1 listing, got %d", decoded.Summary.Listings)
	}
	if decoded.Events[0].Data["amount"] != "100" {
		t.Errorf("payload not exported: %v", decoded.Events[0].Data)
	}
}

func TestExportFilters(t *testing.T) {
	entries := generateTestEntries()

	tests := []struct {
		name    string
		options Options
		want    int
	}{
		{"all", Options{}, 7},
		{"listing", Options{Listing: 2}, 2},
		{"types", Options{Types: []events.EventType{events.Purchase, events.Swapped}}, 3},
		{"window", Options{StartTime: base.Add(time.Minute), EndTime: base.Add(3 * time.Minute)}, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := len(filterEntries(entries, tt.options)); got != tt.want {
				t.Errorf("expected %d entries, got %d", tt.want, got)
			}
		})
	}
}

func TestExportErrors(t *testing.T) {
	ex := newTestExporter()

	if _, err := ex.Export(generateTestEntries(), Options{Format: FormatCSV, OutputDir: t.TempDir(), Listing: 99}); err == nil {
		t.Error("expected error for empty selection")
	}
	if _, err := ex.Export(generateTestEntries(), Options{Format: "xml", OutputDir: t.TempDir()}); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestBreakdownAndReport(t *testing.T) {
	rows := Breakdown(generateTestEntries())
	if len(rows) != 2 {
		t.Fatalf("expected 2 listings, got %d", len(rows))
	}
	first := rows[0]
	if first.Listing != 1 || first.Events != 4 || first.Purchases != 1 || first.Swaps != 1 || !first.Graduated {
		t.Errorf("unexpected breakdown for listing 1: %+v", first)
	}
	if rows[1].Graduated {
		t.Error("listing 2 did not graduate")
	}

	path, err := newTestExporter().ExportListingReport(generateTestEntries(), t.TempDir())
	if err != nil {
		t.Fatalf("Failed to export report: %v", err)
	}
	if !strings.HasSuffix(path, "listings_20240301_120000.json") {
		t.Errorf("unexpected report name %s", path)
	}
}

func TestSummarizeEmpty(t *testing.T) {
	s := Summarize(nil)
	if s.TotalEvents != 0 || !s.StartDate.IsZero() {
		t.Errorf("unexpected summary %+v", s)
	}
}
