// Package pipeline tracks ingested images through their transformation
// lifecycle: pending → processing → ready|failed.
package pipeline

import (
	"time"

	"github.com/chaos-io/clearpic/asset"
)

type Stage string

const (
	StagePending    Stage = "pending"
	StageProcessing Stage = "processing"
	StageReady      Stage = "ready"
	StageFailed     Stage = "failed"
)

// ImageRecord is one tracked image. Original is set once at ingest and only
// released when the record is removed; Processed is replaced (old handle
// released) whenever a transform succeeds.
type ImageRecord struct {
	ID         string
	Name       string
	Original   asset.Handle
	Processed  asset.Handle
	Stage      Stage
	LastError  string
	LastPrompt string
	Expanded   bool
	IngestedAt time.Time
}

// Current returns the handle a chained transform should read from:
// the latest processed result when there is one, else the original.
func (r ImageRecord) Current() asset.Handle {
	if r.Processed != nil {
		return r.Processed
	}
	return r.Original
}
