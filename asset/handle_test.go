package asset

import (
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_LiveAccounting(t *testing.T) {
	reg := NewRegistry(zerolog.Nop())

	h1 := reg.New([]byte("one"))
	h2 := reg.New([]byte("two"))
	assert.Equal(t, 2, reg.Live())
	assert.Equal(t, 2, reg.Created())

	h1.Release()
	assert.Equal(t, 1, reg.Live())

	h2.Release()
	assert.Equal(t, 0, reg.Live())
	assert.Equal(t, 0, reg.DoubleReleases())
}

func TestHandle_BytesNilAfterRelease(t *testing.T) {
	reg := NewRegistry(zerolog.Nop())

	h := reg.New([]byte("payload"))
	require.Equal(t, []byte("payload"), h.Bytes())
	require.Equal(t, 7, h.Len())

	h.Release()
	assert.Nil(t, h.Bytes())
	assert.Equal(t, 0, h.Len())
}

func TestHandle_DoubleReleaseIsCountedNotFatal(t *testing.T) {
	reg := NewRegistry(zerolog.Nop())

	h := reg.New([]byte("x"))
	h.Release()
	h.Release()
	h.Release()

	assert.Equal(t, 0, reg.Live())
	assert.Equal(t, 2, reg.DoubleReleases())
}

func TestRegistry_ConcurrentRelease(t *testing.T) {
	reg := NewRegistry(zerolog.Nop())

	const n = 200
	handles := make([]Handle, n)
	for i := range handles {
		handles[i] = reg.New([]byte{byte(i)})
	}

	var wg sync.WaitGroup
	for _, h := range handles {
		wg.Add(1)
		go func(h Handle) {
			defer wg.Done()
			h.Release()
		}(h)
	}
	wg.Wait()

	assert.Equal(t, 0, reg.Live())
	assert.Equal(t, 0, reg.DoubleReleases())
}
