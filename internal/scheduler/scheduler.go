package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/go-co-op/gocron"

	"owm2mqtt/internal/bridge"
)

// Scheduler drives the bridge at a fixed interval. The interval is constant
// regardless of cycle outcome; there is no backoff or jitter, the next
// scheduled cycle is the retry mechanism.
type Scheduler struct {
	scheduler *gocron.Scheduler
	bridge    *bridge.Bridge
	interval  time.Duration
}

// New creates a Scheduler for the given bridge and poll interval.
func New(b *bridge.Bridge, interval time.Duration) *Scheduler {
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		bridge:    b,
		interval:  interval,
	}
}

// Start schedules the poll job and starts the underlying scheduler. The job
// runs in singleton mode so a slow cycle is never overlapped by the next
// one, and the first cycle fires immediately.
func (s *Scheduler) Start(ctx context.Context) error {
	seconds := int(s.interval.Seconds())
	if seconds <= 0 {
		seconds = 300
	}

	s.scheduler.SingletonModeAll()

	_, err := s.scheduler.Every(seconds).Seconds().StartImmediately().Do(func() {
		log.Printf("scheduler: running poll cycle")
		s.bridge.RunCycle(ctx)
	})
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	return nil
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
