package worker

import (
	"context"
	"log/slog"
	"sync"

	"github.com/mr1hm/go-disaster-warehouse/internal/config"
	"github.com/mr1hm/go-disaster-warehouse/internal/logging"
	"github.com/mr1hm/go-disaster-warehouse/internal/models"
)

// ProcessFunc handles one fetched record, typically by writing it to staging.
type ProcessFunc func(ctx context.Context, ev *models.StagingEvent) error

// Pool fans fetched records out to a fixed set of workers so a slow insert
// never stalls a poller mid-fetch.
type Pool struct {
	size    int
	jobs    chan *models.StagingEvent
	process ProcessFunc
	log     *slog.Logger
	wg      sync.WaitGroup
}

func NewPool(cfg config.WorkerConfig, process ProcessFunc) *Pool {
	return &Pool{
		size:    cfg.Count,
		jobs:    make(chan *models.StagingEvent, cfg.BufferSize),
		process: process,
		log:     logging.Component("worker"),
	}
}

func (p *Pool) Start(ctx context.Context) {
	for i := 1; i <= p.size; i++ {
		p.wg.Add(1)
		go p.run(ctx, i)
	}
}

func (p *Pool) run(ctx context.Context, id int) {
	defer p.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-p.jobs:
			if !ok {
				return
			}
			if err := p.process(ctx, ev); err != nil {
				p.log.Error("error processing record",
					"worker", id,
					"source", ev.SourceName,
					"source_event_id", ev.SourceEventID,
					"error", err)
			}
		}
	}
}

// Submit blocks when the buffer is full, so backpressure lands on the
// pollers instead of growing memory.
func (p *Pool) Submit(ev *models.StagingEvent) {
	p.jobs <- ev
}

func (p *Pool) Stop() {
	close(p.jobs)
	p.wg.Wait()
}
