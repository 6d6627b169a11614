package recorder

import (
	"context"
	"time"

	"PortfolioSentinel/internal/model"
)

// NoopRecorder is a no-op implementation used when SQLite is not configured.
type NoopRecorder struct{}

func NewNoopRecorder() *NoopRecorder { return &NoopRecorder{} }

func (n *NoopRecorder) RecordSnapshot(_ context.Context, _ string, _ *model.PortfolioSnapshot) (string, error) {
	return "", nil
}
func (n *NoopRecorder) RecordAlert(_ context.Context, _ model.AlertEvent, _ time.Time) error {
	return nil
}
func (n *NoopRecorder) AlertFiredSince(_ context.Context, _ string, _ model.AlertKind, _ time.Time) (bool, error) {
	return false, nil
}
func (n *NoopRecorder) RecentAlerts(_ context.Context, _ int) ([]AlertRecord, error) { return nil, nil }
func (n *NoopRecorder) RecentSnapshots(_ context.Context, _ int) ([]SnapshotRecord, error) {
	return nil, nil
}
func (n *NoopRecorder) Close() error { return nil }
