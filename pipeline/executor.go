package pipeline

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"github.com/chaos-io/clearpic/asset"
	"github.com/chaos-io/clearpic/inference"
	"github.com/chaos-io/clearpic/util"
)

// TransformAPI is the slice of the inference client the executor needs.
type TransformAPI interface {
	RemoveBackground(ctx context.Context, name string, img []byte) ([]byte, error)
	ReplaceBackground(ctx context.Context, name string, img []byte, prompt string) ([]byte, error)
	RewritePrompt(ctx context.Context, prompt string) (string, error)
}

// Executor runs the two remote transformations against a single record,
// updating its stage and handles through the store.
type Executor struct {
	store  *Store
	assets *asset.Registry
	api    TransformAPI
	log    zerolog.Logger
}

func NewExecutor(store *Store, assets *asset.Registry, api TransformAPI, log zerolog.Logger) *Executor {
	return &Executor{
		store:  store,
		assets: assets,
		api:    api,
		log:    log.With().Str("component", "executor").Logger(),
	}
}

// RemoveBackground sends the record's original image through /remove-bg.
// On success the previous processed handle (if any) is released and the new
// result installed; on failure the record is marked Failed with the cause,
// leaving the original untouched so a retry stays possible.
func (e *Executor) RemoveBackground(ctx context.Context, id string) (ImageRecord, error) {
	rec, err := e.store.Begin(id)
	if err != nil {
		return ImageRecord{}, err
	}

	src := rec.Original.Bytes()
	if !util.IsImage(src) {
		return e.fail(id, "remove-bg", &ValidationError{Reason: "source is not an image"})
	}

	out, err := e.api.RemoveBackground(ctx, rec.Name, src)
	if err != nil {
		return e.fail(id, "remove-bg", err)
	}

	updated, ok := e.store.CompleteSuccess(id, e.assets.New(out), "")
	if !ok {
		return ImageRecord{}, ErrRecordNotFound
	}
	e.log.Info().Str("record_id", id).Int("bytes", len(out)).Msg("background removed")
	return updated, nil
}

// ReplaceBackground sends the record's current image (the latest processed
// result when present, else the original) through /replace-bg. An empty or
// whitespace-only prompt is rejected before any network or record activity.
func (e *Executor) ReplaceBackground(ctx context.Context, id, prompt string) (ImageRecord, error) {
	if strings.TrimSpace(prompt) == "" {
		return ImageRecord{}, &ValidationError{Reason: "prompt must not be empty"}
	}

	rec, err := e.store.Begin(id)
	if err != nil {
		return ImageRecord{}, err
	}

	src := rec.Current().Bytes()
	if !util.IsImage(src) {
		return e.fail(id, "replace-bg", &ValidationError{Reason: "source is not an image"})
	}

	out, err := e.api.ReplaceBackground(ctx, rec.Name, src, prompt)
	if err != nil {
		return e.fail(id, "replace-bg", err)
	}

	updated, ok := e.store.CompleteSuccess(id, e.assets.New(out), prompt)
	if !ok {
		return ImageRecord{}, ErrRecordNotFound
	}
	e.log.Info().Str("record_id", id).Msg("background replaced")
	return updated, nil
}

// RewritePrompt forwards a background description to the rewrite endpoint.
func (e *Executor) RewritePrompt(ctx context.Context, prompt string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", &ValidationError{Reason: "prompt must not be empty"}
	}
	return e.api.RewritePrompt(ctx, prompt)
}

func (e *Executor) fail(id, op string, cause error) (ImageRecord, error) {
	e.log.Error().Err(cause).Str("record_id", id).Str("operation", op).Msg("transform failed")
	updated, ok := e.store.CompleteFailure(id, failureMessage(cause))
	if !ok {
		return ImageRecord{}, cause
	}
	return updated, cause
}

// failureMessage keeps LastError human-readable: the extracted server detail
// for remote failures, the bare reason for validation ones.
func failureMessage(err error) string {
	var remoteErr *inference.RemoteProcessingError
	if errors.As(err, &remoteErr) {
		return remoteErr.Message
	}
	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		return validationErr.Reason
	}
	return err.Error()
}
