// Package snapshot periodically publishes the event collection as an ICS
// file so external calendar clients can subscribe to it.
package snapshot

import (
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"eventcal/internal/ics"
	appLog "eventcal/internal/log"
	"eventcal/internal/model"
	"eventcal/internal/store"
)

// Source is the read side of the store the publisher needs.
type Source interface {
	All() []model.Event
}

// Publisher writes ICS exports of a Source to a file.
type Publisher struct {
	src  Source
	path string
	cron *cron.Cron

	// Now stamps each export. Tests pin it.
	Now func() time.Time
}

func NewPublisher(src Source, path string) *Publisher {
	return &Publisher{
		src:  src,
		path: path,
		cron: cron.New(),
		Now:  time.Now,
	}
}

// RunOnce exports the current collection and atomically replaces the file.
func (p *Publisher) RunOnce() error {
	if p.path == "" {
		return errors.New("snapshot: path is empty")
	}
	events := p.src.All()
	doc := ics.Export(events, p.Now().UTC())
	if err := store.WriteFileAtomic(p.path, []byte(doc)); err != nil {
		return fmt.Errorf("snapshot: write %s: %w", p.path, err)
	}
	appLog.Info("snapshot: published", "path", p.path, "event_count", len(events))
	return nil
}

// Start runs RunOnce on a standard 5-field cron schedule. Failed
// runs are logged and retried on the next tick.
func (p *Publisher) Start(schedule string) error {
	_, err := p.cron.AddFunc(schedule, func() {
		if err := p.RunOnce(); err != nil {
			appLog.Error("snapshot: scheduled run failed", err, "path", p.path)
		}
	})
	if err != nil {
		return fmt.Errorf("snapshot: invalid schedule %q: %w", schedule, err)
	}
	p.cron.Start()
	appLog.Info("snapshot: scheduler started", "cron", schedule, "path", p.path)
	return nil
}

// Stop halts the scheduler and waits for a running export to finish.
func (p *Publisher) Stop() {
	<-p.cron.Stop().Done()
}
