package telemetry

import (
	"time"

	"github.com/aabaaiaaa/SourceNet-sub005/internal/event"
)

// Stats summarises a window of event history for the debug/stats surface.
type Stats struct {
	Since             string             `json:"since"`
	EventCounts       map[event.Name]int `json:"event_counts"`
	MissionsCompleted int                `json:"missions_completed"`
	ObjectivesCleared int                `json:"objectives_cleared"`
	Downloads         int                `json:"downloads"`
	Scans             int                `json:"scans"`
	FileOperations    int                `json:"file_operations"`
	ForcedDisconnects int                `json:"forced_disconnects"`
	SpeedChanges      int                `json:"speed_changes"`
}

// CalculateStats folds event records at or after since into counters.
func CalculateStats(records []event.Record, since time.Time) Stats {
	stats := Stats{
		Since:       since.UTC().Format(time.RFC3339),
		EventCounts: make(map[event.Name]int),
	}

	for _, rec := range records {
		if rec.At.Before(since) {
			continue
		}
		stats.EventCounts[rec.Name]++

		switch rec.Name {
		case event.MissionCompleted:
			stats.MissionsCompleted++
		case event.ObjectiveComplete:
			stats.ObjectivesCleared++
		case event.DownloadComplete:
			stats.Downloads++
		case event.NetworkScanComplete:
			stats.Scans++
		case event.FileOperationComplete:
			stats.FileOperations++
		case event.SpeedChanged:
			stats.SpeedChanges++
		case event.NetworkDisconnected:
			if p, ok := rec.Payload.(event.DisconnectPayload); ok && p.Forced {
				stats.ForcedDisconnects++
			}
		}
	}

	return stats
}
