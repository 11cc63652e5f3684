package journal

import (
	"strconv"
	"strings"
	"time"

	"github.com/rovshanmuradov/launchpad/internal/domain"
	"github.com/rovshanmuradov/launchpad/internal/events"
)

// Entry is one journaled event.
type Entry struct {
	ID      string            `json:"id"`
	Seq     uint64            `json:"seq"`
	Time    time.Time         `json:"time"`
	Type    events.EventType  `json:"type"`
	Listing domain.ListingID  `json:"listing_id"`
	Attrs   []events.Attr     `json:"-"`
	Data    map[string]string `json:"data"`
}

// Attr returns the payload value for key, or "".
func (e Entry) Attr(key string) string {
	for _, a := range e.Attrs {
		if a.Key == key {
			return a.Value
		}
	}
	return ""
}

// CSVHeaders returns the column names of the journal CSV.
func CSVHeaders() []string {
	return []string{"id", "seq", "time", "type", "listing_id", "payload"}
}

// ToCSV renders the entry as a CSV row. The payload keeps attribute order
// as key=value pairs separated by spaces.
func (e Entry) ToCSV() []string {
	pairs := make([]string, 0, len(e.Attrs))
	for _, a := range e.Attrs {
		pairs = append(pairs, a.Key+"="+a.Value)
	}
	return []string{
		e.ID,
		strconv.FormatUint(e.Seq, 10),
		e.Time.UTC().Format(time.RFC3339Nano),
		string(e.Type),
		strconv.FormatUint(uint64(e.Listing), 10),
		strings.Join(pairs, " "),
	}
}
