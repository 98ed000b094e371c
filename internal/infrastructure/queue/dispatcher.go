// Package queue delivers audit events to storage off the request path.
package queue

import (
	"context"
	"hash/fnv"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/sewerwatch/portal/internal/core/domain"
	"github.com/sewerwatch/portal/internal/core/ports"
)

const (
	defaultWorkers = 4
	channelBuffer  = 256
	insertTimeout  = 5 * time.Second
)

// Dispatcher routes audit events to a fixed set of workers, sharded on the
// client namespace so the events of one client are stored in order.
type Dispatcher struct {
	workers []chan domain.AuditEvent
	repo    ports.AuditRepository
	log     zerolog.Logger
	wg      sync.WaitGroup
	onDrop  func(worker string)
	onDepth func(worker string, depth int)
}

var _ ports.AuditSink = (*Dispatcher)(nil)

type Option func(*Dispatcher)

// WithDropHook is called when an event is discarded because its worker is full.
func WithDropHook(fn func(worker string)) Option {
	return func(d *Dispatcher) { d.onDrop = fn }
}

// WithDepthHook reports the backlog of a worker after each delivery.
func WithDepthHook(fn func(worker string, depth int)) Option {
	return func(d *Dispatcher) { d.onDepth = fn }
}

// NewDispatcher creates a Dispatcher with numWorkers sharded workers.
// If numWorkers <= 0, defaultWorkers is used.
func NewDispatcher(numWorkers int, repo ports.AuditRepository, log zerolog.Logger, opts ...Option) *Dispatcher {
	if numWorkers <= 0 {
		numWorkers = defaultWorkers
	}
	d := &Dispatcher{
		workers: make([]chan domain.AuditEvent, numWorkers),
		repo:    repo,
		log:     log,
		onDrop:  func(string) {},
		onDepth: func(string, int) {},
	}
	for i := range d.workers {
		d.workers[i] = make(chan domain.AuditEvent, channelBuffer)
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Start launches the workers. They drain their queues and exit once ctx
// is cancelled; Wait blocks until they are done.
func (d *Dispatcher) Start(ctx context.Context) {
	for i, ch := range d.workers {
		d.wg.Add(1)
		go d.runWorker(ctx, i, ch)
	}
}

// Wait blocks until every worker has exited.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Record queues an event without blocking. When the worker queue is full
// the event is dropped and logged.
func (d *Dispatcher) Record(event domain.AuditEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	idx := d.shardIndex(event.Client)
	select {
	case d.workers[idx] <- event:
	default:
		worker := strconv.Itoa(idx)
		d.onDrop(worker)
		d.log.Warn().
			Str("kind", string(event.Kind)).
			Str("worker_id", worker).
			Msg("audit queue full, event dropped")
	}
}

// shardIndex maps a client namespace deterministically to a worker index.
func (d *Dispatcher) shardIndex(client string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(client))
	return int(h.Sum32() % uint32(len(d.workers)))
}

func (d *Dispatcher) runWorker(ctx context.Context, id int, ch chan domain.AuditEvent) {
	defer d.wg.Done()
	worker := strconv.Itoa(id)
	for {
		select {
		case <-ctx.Done():
			d.drain(worker, ch)
			return
		case event := <-ch:
			d.store(context.WithoutCancel(ctx), worker, event)
			d.onDepth(worker, len(ch))
		}
	}
}

// drain flushes what is already queued at shutdown.
func (d *Dispatcher) drain(worker string, ch chan domain.AuditEvent) {
	for {
		select {
		case event := <-ch:
			d.store(context.Background(), worker, event)
		default:
			return
		}
	}
}

func (d *Dispatcher) store(ctx context.Context, worker string, event domain.AuditEvent) {
	ctx, cancel := context.WithTimeout(ctx, insertTimeout)
	defer cancel()
	if err := d.repo.Insert(ctx, &event); err != nil {
		d.log.Error().Err(err).
			Str("kind", string(event.Kind)).
			Str("client", event.Client).
			Str("worker_id", worker).
			Msg("audit event insert failed")
	}
}

// Discard is an AuditSink that drops every event, used when no audit
// database is configured.
type Discard struct{}

func (Discard) Record(domain.AuditEvent) {}
