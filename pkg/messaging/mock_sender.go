package messaging

import (
	"context"
	"sync"
)

// MockMessageSender records reports in memory for tests
type MockMessageSender struct {
	mu       sync.Mutex
	messages []*ReportMessage
	// Err, when set, is returned by SendReport
	Err    error
	closed bool
}

// NewMockMessageSender creates a new MockMessageSender.
func NewMockMessageSender() *MockMessageSender {
	return &MockMessageSender{}
}

// SendReport records msg
func (m *MockMessageSender) SendReport(_ context.Context, msg *ReportMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.messages = append(m.messages, msg)
	return nil
}

// Messages returns a copy of the recorded reports
func (m *MockMessageSender) Messages() []*ReportMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*ReportMessage(nil), m.messages...)
}

// Close marks the sender closed
func (m *MockMessageSender) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Closed reports whether Close was called
func (m *MockMessageSender) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Ensure MockMessageSender implements MessageSender
var _ MessageSender = (*MockMessageSender)(nil)
