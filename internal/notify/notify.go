// Package notify publishes run-completion events.
package notify

import (
	"context"
	"fmt"
	"sync"
)

// Provider is the notification abstraction.
type Provider interface {
	// Publish sends the payload to topic and returns a message ID.
	Publish(ctx context.Context, topic string, payload any) (string, error)
	// Close releases the provider's resources.
	Close() error
}

// NoOpProvider drops all notifications; the default when no broker is
// configured.
type NoOpProvider struct{}

// Publish discards the payload.
func (NoOpProvider) Publish(context.Context, string, any) (string, error) { return "", nil }

// Close is a no-op.
func (NoOpProvider) Close() error { return nil }

// MemoryProvider records published payloads for inspection in tests.
type MemoryProvider struct {
	mu       sync.RWMutex
	messages []Message
}

// Message captures one publish call.
type Message struct {
	Topic   string
	Payload any
}

// NewMemory returns a MemoryProvider.
func NewMemory() *MemoryProvider {
	return &MemoryProvider{}
}

// Publish records the message and returns a pseudo ID.
func (p *MemoryProvider) Publish(_ context.Context, topic string, payload any) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, Message{Topic: topic, Payload: payload})
	return fmt.Sprintf("memory-%d", len(p.messages)), nil
}

// Messages returns the recorded publishes.
func (p *MemoryProvider) Messages() []Message {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]Message, len(p.messages))
	copy(out, p.messages)
	return out
}

// Close is a no-op.
func (p *MemoryProvider) Close() error { return nil }
