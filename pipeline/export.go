package pipeline

import (
	"archive/zip"
	"bytes"
	"fmt"

	"github.com/rs/zerolog"
)

// ArchiveName is the deterministic name of the export artifact.
const ArchiveName = "clearpic-export.zip"

// Packager bundles processed images into a single archive.
type Packager struct {
	store *Store
	log   zerolog.Logger
}

func NewPackager(store *Store, log zerolog.Logger) *Packager {
	return &Packager{
		store: store,
		log:   log.With().Str("component", "packager").Logger(),
	}
}

// ExportAll zips every record that currently has a processed result, one
// entry per record named "<id>.png". The selection is a snapshot: records
// still processing when the export starts are ignored, never awaited. A
// failure reading any entry aborts the whole archive — a silently
// incomplete download is worse than a clear failure.
func (p *Packager) ExportAll() ([]byte, error) {
	snapshot := p.store.List()

	eligible := snapshot[:0]
	for _, rec := range snapshot {
		if rec.Processed != nil {
			eligible = append(eligible, rec)
		}
	}
	if len(eligible) == 0 {
		return nil, ErrNothingToExport
	}

	buf := &bytes.Buffer{}
	zw := zip.NewWriter(buf)
	for _, rec := range eligible {
		data := rec.Processed.Bytes()
		if data == nil {
			_ = zw.Close()
			return nil, &PackagingError{Err: fmt.Errorf("image %s was released during export", rec.ID)}
		}
		w, err := zw.Create(rec.ID + ".png")
		if err != nil {
			_ = zw.Close()
			return nil, &PackagingError{Err: err}
		}
		if _, err := w.Write(data); err != nil {
			_ = zw.Close()
			return nil, &PackagingError{Err: err}
		}
	}
	if err := zw.Close(); err != nil {
		return nil, &PackagingError{Err: err}
	}

	p.log.Info().Int("images", len(eligible)).Int("bytes", buf.Len()).Msg("export archive assembled")
	return buf.Bytes(), nil
}
