// Package export writes journal entries to CSV or JSON files.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/rovshanmuradov/launchpad/internal/domain"
	"github.com/rovshanmuradov/launchpad/internal/events"
	"github.com/rovshanmuradov/launchpad/internal/journal"
)

// Format represents the export file format
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// Options configures the export behavior
type Options struct {
	Format    Format
	StartTime time.Time
	EndTime   time.Time
	// Listing zero means every listing.
	Listing domain.ListingID
	// Types empty means every event type.
	Types     []events.EventType
	OutputDir string
}

// Summary is attached to JSON exports.
type Summary struct {
	TotalEvents int                      `json:"total_events"`
	Listings    int                      `json:"listings"`
	ByType      map[events.EventType]int `json:"by_type"`
	StartDate   time.Time                `json:"start_date"`
	EndDate     time.Time                `json:"end_date"`
}

// ListingBreakdown is one row of a listing report.
type ListingBreakdown struct {
	Listing   domain.ListingID `json:"listing_id"`
	Events    int              `json:"events"`
	Purchases int              `json:"purchases"`
	Swaps     int              `json:"swaps"`
	Graduated bool             `json:"graduated"`
}

// Exporter handles journal export functionality
type Exporter struct {
	logger *zap.Logger
	now    func() time.Time
}

func NewExporter(logger *zap.Logger) *Exporter {
	return &Exporter{logger: logger.Named("export"), now: time.Now}
}

// Export writes the entries matching options and returns the file path.
func (ex *Exporter) Export(entries []journal.Entry, options Options) (string, error) {
	filtered := filterEntries(entries, options)
	if len(filtered) == 0 {
		return "", fmt.Errorf("no events match the export criteria")
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].Seq < filtered[j].Seq
	})

	if err := os.MkdirAll(options.OutputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	outputPath := filepath.Join(options.OutputDir, ex.generateFilename(options))

	var err error
	switch options.Format {
	case FormatCSV:
		err = exportToCSV(filtered, outputPath)
	case FormatJSON:
		err = ex.exportToJSON(filtered, outputPath)
	default:
		err = fmt.Errorf("unsupported format: %s", options.Format)
	}
	if err != nil {
		return "", err
	}

	ex.logger.Info("Events exported",
		zap.String("file", outputPath),
		zap.Int("count", len(filtered)),
		zap.String("format", string(options.Format)))
	return outputPath, nil
}

func filterEntries(entries []journal.Entry, options Options) []journal.Entry {
	var filtered []journal.Entry
	for _, e := range entries {
		if !options.StartTime.IsZero() && e.Time.Before(options.StartTime) {
			continue
		}
		if !options.EndTime.IsZero() && e.Time.After(options.EndTime) {
			continue
		}
		if options.Listing != 0 && e.Listing != options.Listing {
			continue
		}
		if len(options.Types) > 0 && !slices.Contains(options.Types, e.Type) {
			continue
		}
		filtered = append(filtered, e)
	}
	return filtered
}

func (ex *Exporter) generateFilename(options Options) string {
	prefix := "events_all"
	if options.Listing != 0 {
		prefix = fmt.Sprintf("events_listing%d", options.Listing)
	}
	return fmt.Sprintf("%s_%s.%s", prefix, ex.now().Format("20060102_150405"), options.Format)
}

func exportToCSV(entries []journal.Entry, outputPath string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(journal.CSVHeaders()); err != nil {
		return fmt.Errorf("failed to write CSV headers: %w", err)
	}
	for _, e := range entries {
		if err := writer.Write(e.ToCSV()); err != nil {
			return fmt.Errorf("failed to write event: %w", err)
		}
	}
	writer.Flush()
	return writer.Error()
}

func (ex *Exporter) exportToJSON(entries []journal.Entry, outputPath string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create JSON file: %w", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")

	exportData := struct {
		ExportTime time.Time       `json:"export_time"`
		EventCount int             `json:"event_count"`
		Events     []journal.Entry `json:"events"`
		Summary    Summary         `json:"summary"`
	}{
		ExportTime: ex.now(),
		EventCount: len(entries),
		Events:     entries,
		Summary:    Summarize(entries),
	}

	if err := encoder.Encode(exportData); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

// Summarize counts entries by type and listing. entries must be in order.
func Summarize(entries []journal.Entry) Summary {
	summary := Summary{TotalEvents: len(entries), ByType: make(map[events.EventType]int)}
	if len(entries) == 0 {
		return summary
	}
	summary.StartDate = entries[0].Time
	summary.EndDate = entries[len(entries)-1].Time

	listings := make(map[domain.ListingID]struct{})
	for _, e := range entries {
		summary.ByType[e.Type]++
		if e.Listing != 0 {
			listings[e.Listing] = struct{}{}
		}
	}
	summary.Listings = len(listings)
	return summary
}

// Breakdown groups entries per listing, ordered by listing id.
func Breakdown(entries []journal.Entry) []ListingBreakdown {
	rows := make(map[domain.ListingID]*ListingBreakdown)
	for _, e := range entries {
		if e.Listing == 0 {
			continue
		}
		row, ok := rows[e.Listing]
		if !ok {
			row = &ListingBreakdown{Listing: e.Listing}
			rows[e.Listing] = row
		}
		row.Events++
		switch e.Type {
		case events.Purchase:
			row.Purchases++
		case events.Swapped:
			row.Swaps++
		case events.Graduated:
			row.Graduated = true
		}
	}

	out := make([]ListingBreakdown, 0, len(rows))
	for _, row := range rows {
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Listing < out[j].Listing })
	return out
}

// ExportListingReport writes the per-listing breakdown as JSON.
func (ex *Exporter) ExportListingReport(entries []journal.Entry, outputDir string) (string, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	outputPath := filepath.Join(outputDir, fmt.Sprintf("listings_%s.json", ex.now().Format("20060102_150405")))

	file, err := os.Create(outputPath)
	if err != nil {
		return "", fmt.Errorf("failed to create report file: %w", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	report := struct {
		GeneratedAt time.Time          `json:"generated_at"`
		Listings    []ListingBreakdown `json:"listings"`
		Summary     Summary            `json:"summary"`
	}{
		GeneratedAt: ex.now(),
		Listings:    Breakdown(entries),
		Summary:     Summarize(entries),
	}
	if err := encoder.Encode(report); err != nil {
		return "", fmt.Errorf("failed to encode report: %w", err)
	}

	ex.logger.Info("Listing report exported", zap.String("file", outputPath))
	return outputPath, nil
}
