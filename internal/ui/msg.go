package ui

import (
	"time"

	"github.com/rovshanmuradov/launchpad/internal/events"
	"github.com/rovshanmuradov/launchpad/internal/report"
)

// Tea message types for UI communication

// SnapshotMsg carries a fresh engine snapshot.
type SnapshotMsg struct {
	Snapshot *report.Snapshot
	Err      error
}

// EventMsg wraps an engine event forwarded from the bus.
type EventMsg struct {
	Event events.Event
}

// ScenarioDoneMsg is sent when the driving scenario finishes.
type ScenarioDoneMsg struct {
	Err      error
	Duration time.Duration
}

type tickMsg time.Time
