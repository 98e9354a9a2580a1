package context

import (
	"freshkeeper/pkg/config"
	"freshkeeper/pkg/metrics"
)

// OperationContext holds run-scoped data for a single scan operation.
type OperationContext struct {
	Config   *config.Config    // The scanner configuration
	Recorder *metrics.Recorder // The metrics recorder for the current run.
}

// NewContext creates a new OperationContext.
func NewContext(config *config.Config, rec *metrics.Recorder) *OperationContext {
	return &OperationContext{
		Config:   config,
		Recorder: rec,
	}
}
