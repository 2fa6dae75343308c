package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/Kevin-Teran/acuaponia-sub001/types"
)

// Published records one broker publish.
type Published struct {
	Topic   string
	Payload []byte
	QoS     byte
}

// MockPublisher captures publishes instead of sending them anywhere.
type MockPublisher struct {
	mu sync.Mutex

	PublishFunc func(topic string, payload []byte, qos byte) error

	Messages []Published
}

// Publish records the message.
func (m *MockPublisher) Publish(topic string, payload []byte, qos byte) error {
	m.mu.Lock()
	fn := m.PublishFunc
	m.mu.Unlock()
	if fn != nil {
		return fn(topic, payload, qos)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.Messages = append(m.Messages, Published{Topic: topic, Payload: payload, QoS: qos})
	return nil
}

// Count returns the number of captured publishes.
func (m *MockPublisher) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Messages)
}

// Last returns the most recent publish, or false when none happened.
func (m *MockPublisher) Last() (Published, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Messages) == 0 {
		return Published{}, false
	}
	return m.Messages[len(m.Messages)-1], true
}

// Sent records one mail delivery attempt.
type Sent struct {
	To      string
	Subject string
	Body    string
}

// MockMailer captures outbound mail.
type MockMailer struct {
	mu sync.Mutex

	SendFunc func(ctx context.Context, to, subject, body string) error

	Deliveries []Sent
}

// Send records the delivery.
func (m *MockMailer) Send(ctx context.Context, to, subject, body string) error {
	m.mu.Lock()
	fn := m.SendFunc
	m.mu.Unlock()
	if fn != nil {
		return fn(ctx, to, subject, body)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.Deliveries = append(m.Deliveries, Sent{To: to, Subject: subject, Body: body})
	return nil
}

// Count returns the number of captured deliveries.
func (m *MockMailer) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Deliveries)
}

// MockDirectory resolves credentials from a static token table.
type MockDirectory struct {
	VerifyFunc func(ctx context.Context, token string) (types.Principal, error)

	Principals map[string]types.Principal
	Err        error
}

// VerifyCredential looks the token up in the table.
func (m *MockDirectory) VerifyCredential(ctx context.Context, token string) (types.Principal, error) {
	if m.VerifyFunc != nil {
		return m.VerifyFunc(ctx, token)
	}
	if m.Err != nil {
		return types.Principal{}, m.Err
	}
	p, ok := m.Principals[token]
	if !ok {
		return types.Principal{}, fmt.Errorf("unknown token")
	}
	return p, nil
}

// CaptureSink records readings and alerts handed to the live fan-out.
type CaptureSink struct {
	mu sync.Mutex

	Readings []types.Reading
	Alerts   []types.Alert
}

// EmitReading records the reading.
func (c *CaptureSink) EmitReading(r types.Reading) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Readings = append(c.Readings, r)
}

// EmitAlert records the alert.
func (c *CaptureSink) EmitAlert(a types.Alert) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Alerts = append(c.Alerts, a)
}

// AlertCount returns the number of captured alerts.
func (c *CaptureSink) AlertCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.Alerts)
}

// ReadingCount returns the number of captured readings.
func (c *CaptureSink) ReadingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.Readings)
}

// CapturedNotifier records alerts handed to the notification path.
type CapturedNotifier struct {
	mu     sync.Mutex
	Alerts []types.Alert
}

// Notify records the alert.
func (n *CapturedNotifier) Notify(a types.Alert) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Alerts = append(n.Alerts, a)
}

// Count returns the number of notified alerts.
func (n *CapturedNotifier) Count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.Alerts)
}
