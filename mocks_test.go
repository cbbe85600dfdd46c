package identity_test

import (
	"context"
	"sync"
	"time"

	identity "github.com/ostravan/go-identity"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// MockAccountTracker implements identity.AccountTracker
type MockAccountTracker struct {
	mock.Mock
}

func (m *MockAccountTracker) GetByEmail(ctx context.Context, email string, criteria ...repository.SelectCriteria) (*identity.Account, error) {
	args := m.Called(ctx, email)
	account, _ := args.Get(0).(*identity.Account)
	return account, args.Error(1)
}

func (m *MockAccountTracker) TrackFailedSignIn(ctx context.Context, account *identity.Account) error {
	args := m.Called(ctx, account)
	return args.Error(0)
}

func (m *MockAccountTracker) TrackSuccessfulSignIn(ctx context.Context, account *identity.Account) error {
	args := m.Called(ctx, account)
	return args.Error(0)
}

func (m *MockAccountTracker) Lock(ctx context.Context, id uuid.UUID, until time.Time) error {
	args := m.Called(ctx, id, until)
	return args.Error(0)
}

// MockSessionIssuer implements identity.SessionIssuer
type MockSessionIssuer struct {
	mock.Mock
}

func (m *MockSessionIssuer) SignIn(ctx context.Context, account *identity.Account, persistent bool) (string, error) {
	args := m.Called(ctx, account, persistent)
	return args.String(0), args.Error(1)
}

func (m *MockSessionIssuer) SignOut(ctx context.Context, accountID string) error {
	args := m.Called(ctx, accountID)
	return args.Error(0)
}

// MockRememberedDevices implements identity.RememberedDevices
type MockRememberedDevices struct {
	mock.Mock
}

func (m *MockRememberedDevices) Remember(ctx context.Context, accountID, deviceID string, ttl time.Duration) error {
	args := m.Called(ctx, accountID, deviceID, ttl)
	return args.Error(0)
}

func (m *MockRememberedDevices) IsRemembered(ctx context.Context, accountID, deviceID string) (bool, error) {
	args := m.Called(ctx, accountID, deviceID)
	return args.Bool(0), args.Error(1)
}

func (m *MockRememberedDevices) Forget(ctx context.Context, accountID, deviceID string) error {
	args := m.Called(ctx, accountID, deviceID)
	return args.Error(0)
}

// captureNotifier records every message so tests can read back delivered
// codes and token ids.
type captureNotifier struct {
	mu     sync.Mutex
	emails []capturedMessage
	sms    []capturedMessage
}

type capturedMessage struct {
	To      string
	Subject string
	Body    string
}

func (n *captureNotifier) SendEmail(_ context.Context, address, subject, body string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.emails = append(n.emails, capturedMessage{To: address, Subject: subject, Body: body})
	return nil
}

func (n *captureNotifier) SendSMS(_ context.Context, number, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sms = append(n.sms, capturedMessage{To: number, Body: text})
	return nil
}

func (n *captureNotifier) lastEmail() (capturedMessage, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.emails) == 0 {
		return capturedMessage{}, false
	}
	return n.emails[len(n.emails)-1], true
}

func (n *captureNotifier) lastSMS() (capturedMessage, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.sms) == 0 {
		return capturedMessage{}, false
	}
	return n.sms[len(n.sms)-1], true
}

// memorySink collects activity events in order.
type memorySink struct {
	mu     sync.Mutex
	events []identity.ActivityEvent
}

func (s *memorySink) Record(_ context.Context, event identity.ActivityEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *memorySink) has(eventType identity.ActivityEventType) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.events {
		if e.EventType == eventType {
			return true
		}
	}
	return false
}

// fakePrincipal implements identity.Principal
type fakePrincipal struct {
	id     string
	role   string
	tenant string
}

func (p fakePrincipal) ID() string       { return p.id }
func (p fakePrincipal) Role() string     { return p.role }
func (p fakePrincipal) TenantID() string { return p.tenant }
