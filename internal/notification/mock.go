package notification

import (
	"context"
	"fmt"
	"sync"
)

// MockProvider records outbound mail instead of sending it. Used in
// tests and when no SMTP relay is configured.
type MockProvider struct {
	mu         sync.Mutex
	sent       []Email
	failOnSend bool
}

// NewMockProvider creates a recording email provider
func NewMockProvider() *MockProvider {
	return &MockProvider{}
}

// FailOnSend makes every subsequent Send return an error
func (p *MockProvider) FailOnSend(fail bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failOnSend = fail
}

func (p *MockProvider) Send(_ context.Context, email Email) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failOnSend {
		return fmt.Errorf("mock provider configured to fail")
	}
	p.sent = append(p.sent, email)
	return nil
}

// Sent returns a copy of everything recorded so far
func (p *MockProvider) Sent() []Email {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Email, len(p.sent))
	copy(out, p.sent)
	return out
}

// Reset clears the recorded mail
func (p *MockProvider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = nil
}
