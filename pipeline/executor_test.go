package pipeline

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chaos-io/clearpic/asset"
	"github.com/chaos-io/clearpic/inference"
)

// pngBytes sniffs as image/png.
var pngBytes = []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a, 0, 0, 0, 0, 'I', 'H', 'D', 'R'}

// fakeAPI scripts per-call outcomes and counts requests, standing in for
// the remote inference service.
type fakeAPI struct {
	calls      atomic.Int64
	removeFn   func(name string, img []byte) ([]byte, error)
	replaceFn  func(name string, img []byte, prompt string) ([]byte, error)
	rewritten  string
	rewriteErr error
}

func (f *fakeAPI) RemoveBackground(_ context.Context, name string, img []byte) ([]byte, error) {
	f.calls.Add(1)
	if f.removeFn != nil {
		return f.removeFn(name, img)
	}
	return append([]byte("removed:"), img...), nil
}

func (f *fakeAPI) ReplaceBackground(_ context.Context, name string, img []byte, prompt string) ([]byte, error) {
	f.calls.Add(1)
	if f.replaceFn != nil {
		return f.replaceFn(name, img, prompt)
	}
	return append([]byte("replaced:"), img...), nil
}

func (f *fakeAPI) RewritePrompt(_ context.Context, prompt string) (string, error) {
	f.calls.Add(1)
	return f.rewritten, f.rewriteErr
}

func newTestExecutor(api TransformAPI) (*Executor, *Store, *asset.Registry) {
	store := NewStore(zerolog.Nop())
	reg := asset.NewRegistry(zerolog.Nop())
	return NewExecutor(store, reg, api, zerolog.Nop()), store, reg
}

func TestExecutor_RemoveBackground_Success(t *testing.T) {
	api := &fakeAPI{}
	exec, store, reg := newTestExecutor(api)
	rec := ingestOne(t, store, reg, "cat.png", pngBytes)

	got, err := exec.RemoveBackground(context.Background(), rec.ID)
	require.NoError(t, err)

	assert.Equal(t, StageReady, got.Stage)
	assert.Empty(t, got.LastError)
	require.NotNil(t, got.Processed)
	assert.Equal(t, append([]byte("removed:"), pngBytes...), got.Processed.Bytes())
	assert.Equal(t, pngBytes, got.Original.Bytes(), "original untouched")
}

func TestExecutor_RemoveBackground_RemoteFailure(t *testing.T) {
	api := &fakeAPI{
		removeFn: func(string, []byte) ([]byte, error) {
			return nil, &inference.RemoteProcessingError{Status: 500, Message: "model overloaded"}
		},
	}
	exec, store, reg := newTestExecutor(api)
	rec := ingestOne(t, store, reg, "cat.png", pngBytes)

	got, err := exec.RemoveBackground(context.Background(), rec.ID)
	require.Error(t, err)

	var remoteErr *inference.RemoteProcessingError
	require.True(t, errors.As(err, &remoteErr))
	assert.Equal(t, StageFailed, got.Stage)
	assert.Equal(t, "model overloaded", got.LastError)
	assert.Nil(t, got.Processed)
	assert.Equal(t, pngBytes, got.Original.Bytes(), "retry stays possible")
	assert.Equal(t, 1, reg.Live())
}

func TestExecutor_RemoveBackground_FailureThenRetrySucceeds(t *testing.T) {
	failing := true
	api := &fakeAPI{
		removeFn: func(_ string, img []byte) ([]byte, error) {
			if failing {
				return nil, &inference.NetworkError{Err: errors.New("connection refused")}
			}
			return append([]byte("removed:"), img...), nil
		},
	}
	exec, store, reg := newTestExecutor(api)
	rec := ingestOne(t, store, reg, "cat.png", pngBytes)

	_, err := exec.RemoveBackground(context.Background(), rec.ID)
	require.Error(t, err)

	failing = false
	got, err := exec.RemoveBackground(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.Equal(t, StageReady, got.Stage)
}

func TestExecutor_RemoveBackground_NonImageSource(t *testing.T) {
	api := &fakeAPI{}
	exec, store, reg := newTestExecutor(api)
	rec := ingestOne(t, store, reg, "notes.txt", []byte("just some text, honestly"))

	got, err := exec.RemoveBackground(context.Background(), rec.ID)
	require.Error(t, err)

	var validationErr *ValidationError
	assert.True(t, errors.As(err, &validationErr))
	assert.Equal(t, StageFailed, got.Stage)
	assert.Equal(t, int64(0), api.calls.Load(), "validation failures never reach the network")
}

func TestExecutor_ReplaceBackground_EmptyPrompt(t *testing.T) {
	api := &fakeAPI{}
	exec, store, reg := newTestExecutor(api)
	rec := ingestOne(t, store, reg, "cat.png", pngBytes)

	for _, prompt := range []string{"", "   ", "\t\n"} {
		_, err := exec.ReplaceBackground(context.Background(), rec.ID, prompt)
		var validationErr *ValidationError
		require.True(t, errors.As(err, &validationErr), "prompt %q", prompt)
	}
	assert.Equal(t, int64(0), api.calls.Load())

	// The record was never begun, so its stage is untouched.
	got, ok := store.Get(rec.ID)
	require.True(t, ok)
	assert.Equal(t, StagePending, got.Stage)
}

func TestExecutor_ReplaceBackground_ChainsOntoProcessed(t *testing.T) {
	var replacedInput []byte
	api := &fakeAPI{
		replaceFn: func(_ string, img []byte, _ string) ([]byte, error) {
			replacedInput = img
			return pngBytes, nil
		},
	}
	exec, store, reg := newTestExecutor(api)
	rec := ingestOne(t, store, reg, "cat.png", pngBytes)

	first, err := exec.RemoveBackground(context.Background(), rec.ID)
	require.NoError(t, err)
	removed := first.Processed.Bytes()

	got, err := exec.ReplaceBackground(context.Background(), rec.ID, "sunset beach")
	require.NoError(t, err)

	assert.Equal(t, removed, replacedInput, "replacement chains onto the last successful transform")
	assert.Equal(t, "sunset beach", got.LastPrompt)
	assert.Equal(t, StageReady, got.Stage)
	// original + current processed; the intermediate was released.
	assert.Equal(t, 2, reg.Live())
	assert.Equal(t, 0, reg.DoubleReleases())
}

func TestExecutor_ReplaceBackground_FromOriginalWhenUnprocessed(t *testing.T) {
	var replacedInput []byte
	api := &fakeAPI{
		replaceFn: func(_ string, img []byte, _ string) ([]byte, error) {
			replacedInput = img
			return pngBytes, nil
		},
	}
	exec, store, reg := newTestExecutor(api)
	rec := ingestOne(t, store, reg, "cat.png", pngBytes)

	_, err := exec.ReplaceBackground(context.Background(), rec.ID, "forest")
	require.NoError(t, err)
	assert.Equal(t, pngBytes, replacedInput)
}

func TestExecutor_UnknownRecord(t *testing.T) {
	exec, _, _ := newTestExecutor(&fakeAPI{})

	_, err := exec.RemoveBackground(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrRecordNotFound)

	_, err = exec.ReplaceBackground(context.Background(), "missing", "beach")
	assert.ErrorIs(t, err, ErrRecordNotFound)
}

func TestExecutor_RewritePrompt(t *testing.T) {
	api := &fakeAPI{rewritten: "a lush tropical beach at golden hour"}
	exec, _, _ := newTestExecutor(api)

	got, err := exec.RewritePrompt(context.Background(), "beach")
	require.NoError(t, err)
	assert.Equal(t, "a lush tropical beach at golden hour", got)

	_, err = exec.RewritePrompt(context.Background(), "  ")
	var validationErr *ValidationError
	assert.True(t, errors.As(err, &validationErr))
}
