package queue

import (
	"context"
	"fmt"
	"sync"

	"github.com/erain9/clobreplay/pkg/messaging"
	"github.com/rs/zerolog/log"
)

// DefaultPoolSize is the number of producers kept by a SenderPool
const DefaultPoolSize = 8

// SenderFactory creates one pooled sender
type SenderFactory func() (messaging.MessageSender, error)

// SenderPool spreads sends over several producers. A sender that fails is closed and
// replaced lazily by the factory.
type SenderPool struct {
	senders chan messaging.MessageSender
	factory SenderFactory
	size    int

	closeOnce sync.Once
	closed    chan struct{}
}

// NewSenderPool pre-populates size senders. It fails if none can be created.
func NewSenderPool(size int, factory SenderFactory) (*SenderPool, error) {
	if size <= 0 {
		size = DefaultPoolSize
	}
	p := &SenderPool{
		senders: make(chan messaging.MessageSender, size),
		factory: factory,
		size:    size,
		closed:  make(chan struct{}),
	}

	var lastErr error
	for i := 0; i < size; i++ {
		sender, err := factory()
		if err != nil {
			lastErr = err
			log.Warn().Err(err).Msg("Error creating pooled sender")
			continue
		}
		p.senders <- sender
	}
	if len(p.senders) == 0 {
		return nil, fmt.Errorf("failed to create any message sender: %w", lastErr)
	}
	return p, nil
}

// NewSaramaSenderPool pools QueueMessageSenders for brokers and topic
func NewSaramaSenderPool(size int, brokers []string, topic string) (*SenderPool, error) {
	return NewSenderPool(size, func() (messaging.MessageSender, error) {
		return NewQueueMessageSender(brokers, topic)
	})
}

// Len returns the number of idle senders
func (p *SenderPool) Len() int {
	return len(p.senders)
}

func (p *SenderPool) get(ctx context.Context) (messaging.MessageSender, error) {
	select {
	case sender := <-p.senders:
		return sender, nil
	default:
	}

	// Refill a slot lost to a failed sender
	if sender, err := p.factory(); err == nil {
		return sender, nil
	}

	select {
	case sender := <-p.senders:
		return sender, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-p.closed:
		return nil, fmt.Errorf("sender pool is closed")
	}
}

func (p *SenderPool) put(sender messaging.MessageSender) {
	select {
	case <-p.closed:
		_ = sender.Close()
		return
	default:
	}

	select {
	case p.senders <- sender:
	default:
		_ = sender.Close()
	}
}

// SendReport sends a message using a pooled sender
func (p *SenderPool) SendReport(ctx context.Context, msg *messaging.ReportMessage) error {
	sender, err := p.get(ctx)
	if err != nil {
		return fmt.Errorf("failed to get message sender from pool: %w", err)
	}

	if err := sender.SendReport(ctx, msg); err != nil {
		// A failed producer is not returned to the pool
		_ = sender.Close()
		return err
	}

	p.put(sender)
	return nil
}

// Close closes every idle sender
func (p *SenderPool) Close() error {
	p.closeOnce.Do(func() { close(p.closed) })
	for {
		select {
		case sender := <-p.senders:
			_ = sender.Close()
		default:
			return nil
		}
	}
}

var _ messaging.MessageSender = (*SenderPool)(nil)
