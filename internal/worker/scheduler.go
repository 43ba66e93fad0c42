package worker

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/parkpal-server/internal/queue"
)

// Enqueuer is the producing side of the job queue
type Enqueuer interface {
	Enqueue(ctx context.Context, name queue.JobName, reservationID uint) (*queue.Job, error)
}

// Scheduler enqueues periodic jobs on independent tickers
type Scheduler struct {
	queue    Enqueuer
	periodic map[queue.JobName]time.Duration
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewScheduler creates a scheduler for the daily reminder and monthly report jobs
func NewScheduler(q Enqueuer, reminderInterval, reportInterval time.Duration) *Scheduler {
	if reminderInterval <= 0 {
		reminderInterval = 10 * time.Minute
	}
	if reportInterval <= 0 {
		reportInterval = 10 * time.Minute
	}
	return &Scheduler{
		queue: q,
		periodic: map[queue.JobName]time.Duration{
			queue.JobDailyReminders: reminderInterval,
			queue.JobMonthlyReports: reportInterval,
		},
		stopChan: make(chan struct{}),
	}
}

// Start launches one ticker per periodic job and returns immediately
func (s *Scheduler) Start() {
	for name, interval := range s.periodic {
		s.wg.Add(1)
		go s.loop(name, interval)
	}
}

// Stop stops all tickers
func (s *Scheduler) Stop() {
	close(s.stopChan)
	s.wg.Wait()
	log.Println("[Scheduler] stopped")
}

func (s *Scheduler) loop(name queue.JobName, interval time.Duration) {
	defer s.wg.Done()
	log.Printf("[Scheduler] %s every %v", name, interval)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := s.queue.Enqueue(context.Background(), name, 0); err != nil {
				log.Printf("[Scheduler] failed to enqueue %s: %v", name, err)
			}
		case <-s.stopChan:
			return
		}
	}
}
