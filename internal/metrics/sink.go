package metrics

import "github.com/alexanderramin/sitesync/internal/report"

// FailureCounter is a report.Sink that counts failures by kind.
type FailureCounter struct{}

func (FailureCounter) Report(f report.Failure) {
	SyncFailures.WithLabelValues(string(f.Kind)).Inc()
}
