package pipeline

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/ksuid"

	"github.com/chaos-io/clearpic/asset"
)

// IngestItem is one normalized file handed to the store together with its
// already-registered handle. The store takes ownership of the handle.
type IngestItem struct {
	Name   string
	Handle asset.Handle
}

// Store is the single source of truth for image records. Every mutation
// replaces the affected record wholesale under the lock and every read hands
// out value copies, so a reader never observes a record mid-mutation.
type Store struct {
	mu      sync.Mutex
	records []*ImageRecord
	log     zerolog.Logger
}

func NewStore(log zerolog.Logger) *Store {
	return &Store{log: log.With().Str("component", "record-store").Logger()}
}

// Ingest appends one record per item in arrival order and assigns ids.
func (s *Store) Ingest(items []IngestItem) []ImageRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	added := make([]ImageRecord, 0, len(items))
	for _, it := range items {
		rec := &ImageRecord{
			ID:         ksuid.New().String(),
			Name:       it.Name,
			Original:   it.Handle,
			Stage:      StagePending,
			IngestedAt: time.Now(),
		}
		s.records = append(s.records, rec)
		added = append(added, *rec)
	}
	s.log.Info().Int("count", len(added)).Int("total", len(s.records)).Msg("ingested images")
	return added
}

// List returns a snapshot of all records in arrival order.
func (s *Store) List() []ImageRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]ImageRecord, len(s.records))
	for i, rec := range s.records {
		out[i] = *rec
	}
	return out
}

func (s *Store) Get(id string) (ImageRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec := s.find(id); rec != nil {
		return *rec, true
	}
	return ImageRecord{}, false
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// Begin transitions a record into Processing and returns its snapshot. A
// record that is already Processing is rejected, which makes the
// at-most-one-in-flight-operation invariant structural rather than a caller
// convention.
func (s *Store) Begin(id string) (ImageRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.find(id)
	if rec == nil {
		return ImageRecord{}, ErrRecordNotFound
	}
	if rec.Stage == StageProcessing {
		return ImageRecord{}, ErrAlreadyProcessing
	}

	next := *rec
	next.Stage = StageProcessing
	s.replace(id, &next)
	return next, nil
}

// CompleteSuccess installs a freshly produced handle, releasing the one it
// supersedes. If the record was removed while the operation was in flight
// the result is discarded and the new handle released, never leaked.
func (s *Store) CompleteSuccess(id string, processed asset.Handle, prompt string) (ImageRecord, bool) {
	s.mu.Lock()
	rec := s.find(id)
	if rec == nil {
		s.mu.Unlock()
		processed.Release()
		s.log.Warn().Str("record_id", id).Msg("record removed mid-operation, result discarded")
		return ImageRecord{}, false
	}

	old := rec.Processed
	next := *rec
	next.Processed = processed
	next.Stage = StageReady
	next.LastError = ""
	if prompt != "" {
		next.LastPrompt = prompt
	}
	s.replace(id, &next)
	s.mu.Unlock()

	if old != nil {
		old.Release()
	}
	return next, true
}

// CompleteFailure marks the record Failed. Returns false when the record was
// removed mid-operation.
func (s *Store) CompleteFailure(id, cause string) (ImageRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.find(id)
	if rec == nil {
		s.log.Warn().Str("record_id", id).Msg("record removed mid-operation, failure discarded")
		return ImageRecord{}, false
	}

	next := *rec
	next.Stage = StageFailed
	next.LastError = cause
	s.replace(id, &next)
	return next, true
}

// SetExpanded toggles the UI detail flag.
func (s *Store) SetExpanded(id string, expanded bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.find(id)
	if rec == nil {
		return false
	}
	next := *rec
	next.Expanded = expanded
	s.replace(id, &next)
	return true
}

// Remove deletes the record and releases both of its handles.
func (s *Store) Remove(id string) bool {
	s.mu.Lock()
	var removed *ImageRecord
	kept := make([]*ImageRecord, 0, len(s.records))
	for _, rec := range s.records {
		if rec.ID == id {
			removed = rec
			continue
		}
		kept = append(kept, rec)
	}
	s.records = kept
	s.mu.Unlock()

	if removed == nil {
		return false
	}
	releaseRecord(removed)
	s.log.Info().Str("record_id", id).Msg("removed image record")
	return true
}

// Clear releases every handle, then empties the store.
func (s *Store) Clear() int {
	s.mu.Lock()
	removed := s.records
	s.records = nil
	s.mu.Unlock()

	for _, rec := range removed {
		releaseRecord(rec)
	}
	s.log.Info().Int("count", len(removed)).Msg("cleared all image records")
	return len(removed)
}

func releaseRecord(rec *ImageRecord) {
	if rec.Original != nil {
		rec.Original.Release()
	}
	if rec.Processed != nil {
		rec.Processed.Release()
	}
}

// find and replace assume s.mu is held.
func (s *Store) find(id string) *ImageRecord {
	for _, rec := range s.records {
		if rec.ID == id {
			return rec
		}
	}
	return nil
}

func (s *Store) replace(id string, next *ImageRecord) {
	for i, rec := range s.records {
		if rec.ID == id {
			s.records[i] = next
			return
		}
	}
}
