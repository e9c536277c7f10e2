// Package sink exports dashboard snapshots to external destinations.
package sink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/Zachdehooge/flood-dashboard/internal/dashboard"
)

// Destination receives encoded snapshots.
type Destination interface {
	WriteMessage(ctx context.Context, topic string, msg []byte) error
	Close() error
}

// Publisher fans snapshots out to every destination.
// Failures are logged and reported but never stop the other destinations.
type Publisher struct {
	mu           sync.Mutex
	destinations []Destination
}

func NewPublisher(destinations ...Destination) *Publisher {
	return &Publisher{destinations: destinations}
}

// Len returns the number of configured destinations.
func (p *Publisher) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.destinations)
}

// Publish encodes snap and writes it to every destination under topic.
func (p *Publisher) Publish(ctx context.Context, topic string, snap dashboard.Snapshot) error {
	msg, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	var errs []error
	for _, d := range p.destinations {
		if err := d.WriteMessage(ctx, topic, msg); err != nil {
			log.Printf("[sink] %T: write %s failed: %v", d, topic, err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every destination.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var errs []error
	for _, d := range p.destinations {
		if err := d.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	p.destinations = nil
	return errors.Join(errs...)
}
