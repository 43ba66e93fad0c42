package worker

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/parkpal-server/internal/metrics"
	"github.com/parkpal-server/internal/queue"
)

// Dequeuer is the consuming side of the job queue
type Dequeuer interface {
	Dequeue(ctx context.Context, timeout time.Duration) (*queue.Job, error)
}

// HandlerFunc processes one job
type HandlerFunc func(ctx context.Context, job *queue.Job) error

// Pool runs a fixed number of goroutines pulling jobs from the queue
// and dispatching them by name
type Pool struct {
	queue       Dequeuer
	handlers    map[queue.JobName]HandlerFunc
	concurrency int
	pollTimeout time.Duration
	stopChan    chan struct{}
	wg          sync.WaitGroup
}

// NewPool creates a new worker pool
func NewPool(q Dequeuer, concurrency int) *Pool {
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Pool{
		queue:       q,
		handlers:    make(map[queue.JobName]HandlerFunc),
		concurrency: concurrency,
		pollTimeout: 2 * time.Second,
		stopChan:    make(chan struct{}),
	}
}

// Handle registers the handler for a job name. Must be called before Start.
func (p *Pool) Handle(name queue.JobName, h HandlerFunc) {
	p.handlers[name] = h
}

// Handles reports whether a handler is registered for name
func (p *Pool) Handles(name queue.JobName) bool {
	_, ok := p.handlers[name]
	return ok
}

// Start launches the workers and returns immediately
func (p *Pool) Start() {
	log.Printf("[Worker] pool started with %d workers", p.concurrency)
	for i := 0; i < p.concurrency; i++ {
		p.wg.Add(1)
		go p.run(i)
	}
}

// Stop signals the workers and waits for in-flight jobs to finish
func (p *Pool) Stop() {
	close(p.stopChan)
	p.wg.Wait()
	log.Println("[Worker] pool stopped")
}

func (p *Pool) run(id int) {
	defer p.wg.Done()
	ctx := context.Background()

	for {
		select {
		case <-p.stopChan:
			return
		default:
		}

		job, err := p.queue.Dequeue(ctx, p.pollTimeout)
		if err != nil {
			log.Printf("[Worker %d] dequeue failed: %v", id, err)
			select {
			case <-time.After(time.Second):
			case <-p.stopChan:
				return
			}
			continue
		}
		if job == nil {
			continue
		}
		p.dispatch(ctx, id, job)
	}
}

func (p *Pool) dispatch(ctx context.Context, id int, job *queue.Job) {
	h, ok := p.handlers[job.Name]
	if !ok {
		log.Printf("[Worker %d] no handler for job %s (%s)", id, job.Name, job.ID)
		metrics.Jobs.WithLabelValues(string(job.Name), "unknown").Inc()
		return
	}

	defer func() {
		if r := recover(); r != nil {
			log.Printf("[Worker %d] job %s (%s) panicked: %v", id, job.Name, job.ID, r)
			metrics.Jobs.WithLabelValues(string(job.Name), "failed").Inc()
		}
	}()

	if err := h(ctx, job); err != nil {
		log.Printf("[Worker %d] job %s (%s) failed: %v", id, job.Name, job.ID, err)
		metrics.Jobs.WithLabelValues(string(job.Name), "failed").Inc()
		return
	}
	metrics.Jobs.WithLabelValues(string(job.Name), "ok").Inc()
}
