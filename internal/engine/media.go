package engine

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/edgemeet/huddle/internal/core"
	"github.com/edgemeet/huddle/internal/domain"
)

type producer struct {
	id        string
	kind      domain.MediaKind
	appData   domain.AppData
	transport *transport
	closed    atomic.Bool
}

func (p *producer) ID() string              { return p.id }
func (p *producer) Kind() domain.MediaKind  { return p.kind }
func (p *producer) AppData() domain.AppData { return p.appData }

func (p *producer) Close() error {
	if p.closed.Swap(true) {
		return nil
	}
	p.transport.removeProducer(p.id)

	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	if err := p.transport.router.worker.conn.Call(ctx, methodCloseProducer, closeObjectRequest{ID: p.id}, nil); err != nil {
		return fmt.Errorf("close producer %q: %w", p.id, err)
	}
	return nil
}

type consumer struct {
	id            string
	producerID    string
	kind          domain.MediaKind
	rtpParameters core.RawMessage
	transport     *transport
	closed        atomic.Bool
}

func (c *consumer) ID() string                     { return c.id }
func (c *consumer) ProducerID() string             { return c.producerID }
func (c *consumer) Kind() domain.MediaKind         { return c.kind }
func (c *consumer) RtpParameters() core.RawMessage { return c.rtpParameters }

func (c *consumer) Pause(ctx context.Context) error {
	if c.closed.Load() {
		return ErrTransportClosed
	}
	if err := c.transport.router.worker.conn.Call(ctx, methodPauseConsumer, closeObjectRequest{ID: c.id}, nil); err != nil {
		return fmt.Errorf("pause consumer %q: %w", c.id, err)
	}
	return nil
}

func (c *consumer) Resume(ctx context.Context) error {
	if c.closed.Load() {
		return ErrTransportClosed
	}
	if err := c.transport.router.worker.conn.Call(ctx, methodResumeConsumer, closeObjectRequest{ID: c.id}, nil); err != nil {
		return fmt.Errorf("resume consumer %q: %w", c.id, err)
	}
	return nil
}

func (c *consumer) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	c.transport.removeConsumer(c.id)

	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	if err := c.transport.router.worker.conn.Call(ctx, methodCloseConsumer, closeObjectRequest{ID: c.id}, nil); err != nil {
		return fmt.Errorf("close consumer %q: %w", c.id, err)
	}
	return nil
}
