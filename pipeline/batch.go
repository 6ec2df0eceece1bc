package pipeline

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// BatchResult summarizes one fan-out. Failures stay on their records; the
// batch itself always settles.
type BatchResult struct {
	Launched  int
	Succeeded int
	Failed    int
}

// Coordinator fans bulk operations out across records concurrently.
type Coordinator struct {
	store *Store
	exec  *Executor
	log   zerolog.Logger
}

func NewCoordinator(store *Store, exec *Executor, log zerolog.Logger) *Coordinator {
	return &Coordinator{
		store: store,
		exec:  exec,
		log:   log.With().Str("component", "coordinator").Logger(),
	}
}

// ProcessAll launches one background removal per record that is not already
// Ready, skipping records with an operation in flight. Fan-out is unbounded:
// the bottleneck is remote latency, not local compute. It returns once every
// launched call has settled; one record's failure never cancels a sibling.
func (c *Coordinator) ProcessAll(ctx context.Context) BatchResult {
	snapshot := c.store.List()

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		res BatchResult
	)
	for _, rec := range snapshot {
		if rec.Stage == StageReady || rec.Stage == StageProcessing {
			continue
		}
		res.Launched++
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := c.exec.RemoveBackground(ctx, id)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				res.Failed++
			} else {
				res.Succeeded++
			}
		}(rec.ID)
	}
	wg.Wait()

	c.log.Info().
		Int("launched", res.Launched).
		Int("succeeded", res.Succeeded).
		Int("failed", res.Failed).
		Msg("batch settled")
	return res
}
