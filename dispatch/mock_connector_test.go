package dispatch

import (
	"context"
	"errors"
	"sync"
)

// MockConnector implements connectors.Connector for testing
type MockConnector struct {
	mu           sync.Mutex
	SentMessages []SentMessage
	ShouldFail   bool
}

type SentMessage struct {
	Token   string
	Payload []byte
}

func NewMockConnector() *MockConnector {
	return &MockConnector{}
}

func (m *MockConnector) Send(ctx context.Context, token string, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ShouldFail {
		return errors.New("mock send error")
	}

	m.SentMessages = append(m.SentMessages, SentMessage{
		Token:   token,
		Payload: payload,
	})
	return nil
}

// BlockingConnector holds every Send until Release is closed or the
// context given to Send ends.
type BlockingConnector struct {
	Entered chan struct{}
	Release chan struct{}

	mu       sync.Mutex
	contexts []context.Context
}

func NewBlockingConnector() *BlockingConnector {
	return &BlockingConnector{
		Entered: make(chan struct{}, 16),
		Release: make(chan struct{}),
	}
}

func (b *BlockingConnector) Send(ctx context.Context, token string, payload []byte) error {
	b.mu.Lock()
	b.contexts = append(b.contexts, ctx)
	b.mu.Unlock()

	b.Entered <- struct{}{}
	select {
	case <-b.Release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *BlockingConnector) Contexts() []context.Context {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]context.Context(nil), b.contexts...)
}
