package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kevin-Teran/acuaponia-sub001/testutil"
	"github.com/Kevin-Teran/acuaponia-sub001/types"
)

var criticalAlert = types.Alert{
	ID:         "al-1",
	SensorID:   "s-1",
	SensorName: "tank 3 temp",
	TankName:   "tank 3",
	Kind:       types.KindTemperature,
	Type:       "TEMPERATURE_HIGH",
	Severity:   types.SeverityCritical,
	Message:    "temperature on sensor tank 3 temp is 40.00°C, above threshold 32.00°C",
	Value:      40,
	Threshold:  32,
	CreatedAt:  time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC),
}

func adminStore(admins ...types.Principal) *testutil.MockStore {
	st := testutil.NewMockStore()
	st.Users = admins
	return st
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func TestDispatcher_NotifiesEveryAdmin(t *testing.T) {
	st := adminStore(
		types.Principal{ID: "u-1", Email: "a@example.com", Role: types.RoleAdmin},
		types.Principal{ID: "u-2", Email: "b@example.com", Role: types.RoleAdmin},
		types.Principal{ID: "u-3", Email: "c@example.com", Role: types.RoleUser},
	)
	mailer := &testutil.MockMailer{}
	d := NewDispatcher(DefaultConfig(), st, mailer, nil, nil)

	d.Notify(criticalAlert)
	waitFor(t, func() bool { return mailer.Count() == 2 })

	assert.Contains(t, mailer.Deliveries[0].Subject, "CRITICAL")
	assert.Contains(t, mailer.Deliveries[0].Subject, "tank 3")
	assert.Contains(t, mailer.Deliveries[0].Body, "40.00")
}

func TestDispatcher_OneBounceDoesNotStarveTheRest(t *testing.T) {
	st := adminStore(
		types.Principal{ID: "u-1", Email: "a@example.com", Role: types.RoleAdmin},
		types.Principal{ID: "u-2", Email: "b@example.com", Role: types.RoleAdmin},
	)
	var (
		mu        sync.Mutex
		delivered []string
	)
	mailer := &testutil.MockMailer{}
	mailer.SendFunc = func(_ context.Context, to, _, _ string) error {
		if to == "a@example.com" {
			return errors.New("mailbox full")
		}
		mu.Lock()
		delivered = append(delivered, to)
		mu.Unlock()
		return nil
	}
	d := NewDispatcher(DefaultConfig(), st, mailer, nil, nil)

	d.Notify(criticalAlert)
	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(delivered) == 1
	})
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"b@example.com"}, delivered)
}

func TestDispatcher_SkipsAdminsWithoutEmail(t *testing.T) {
	st := adminStore(
		types.Principal{ID: "u-1", Role: types.RoleAdmin},
		types.Principal{ID: "u-2", Email: "b@example.com", Role: types.RoleAdmin},
	)
	mailer := &testutil.MockMailer{}
	d := NewDispatcher(DefaultConfig(), st, mailer, nil, nil)

	d.Notify(criticalAlert)
	waitFor(t, func() bool { return mailer.Count() == 1 })
	assert.Equal(t, "b@example.com", mailer.Deliveries[0].To)
}

func TestDispatcher_SaturationDropsInsteadOfStacking(t *testing.T) {
	st := adminStore(types.Principal{ID: "u-1", Email: "a@example.com", Role: types.RoleAdmin})

	started := make(chan struct{}, 1)
	release := make(chan struct{})
	mailer := &testutil.MockMailer{}
	mailer.SendFunc = func(_ context.Context, to, _, _ string) error {
		started <- struct{}{}
		<-release
		return nil
	}

	cfg := DefaultConfig()
	cfg.MaxInFlight = 1
	d := NewDispatcher(cfg, st, mailer, nil, nil)

	first := criticalAlert
	d.Notify(first)
	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("first dispatch never started")
	}

	// The bound is taken; alerts two and three must be dropped without
	// spawning dispatch goroutines or recipient lookups.
	second := criticalAlert
	second.ID = "al-2"
	d.Notify(second)
	third := criticalAlert
	third.ID = "al-3"
	d.Notify(third)

	close(release)
	time.Sleep(50 * time.Millisecond)

	select {
	case <-started:
		t.Fatal("a dropped alert was dispatched anyway")
	default:
	}
}

func TestDispatcher_DisabledDoesNothing(t *testing.T) {
	st := adminStore(types.Principal{ID: "u-1", Email: "a@example.com", Role: types.RoleAdmin})
	mailer := &testutil.MockMailer{}
	d := NewDispatcher(Config{Enabled: false}, st, mailer, nil, nil)

	d.Notify(criticalAlert)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, mailer.Count())
}

func TestDispatcher_RecipientLookupFailure(t *testing.T) {
	st := testutil.NewMockStore()
	st.ListUsersByRoleFunc = func(context.Context, types.Role) ([]types.Principal, error) {
		return nil, errors.New("store down")
	}
	mailer := &testutil.MockMailer{}
	d := NewDispatcher(DefaultConfig(), st, mailer, nil, nil)

	// Must not panic or deliver; failure is logged and swallowed.
	d.Notify(criticalAlert)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, mailer.Count())
}

func TestNewSMTPMailer_Validation(t *testing.T) {
	_, err := NewSMTPMailer(SMTPConfig{})
	require.Error(t, err)

	m, err := NewSMTPMailer(SMTPConfig{Host: "mail.example.com", From: "alerts@example.com"})
	require.NoError(t, err)
	assert.NotNil(t, m)
}
