// Package notify delivers out-of-band alert notifications. Delivery is
// best effort: a mail failure is logged and counted, never propagated
// back into the ingestion path.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Kevin-Teran/acuaponia-sub001/metric"
	"github.com/Kevin-Teran/acuaponia-sub001/store"
	"github.com/Kevin-Teran/acuaponia-sub001/types"
)

// Mailer sends a single message to one recipient.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// Config controls the dispatcher. MaxInFlight bounds concurrent
// dispatches; alerts arriving past the bound are dropped with a log,
// they are not queued.
type Config struct {
	Enabled     bool          `json:"enabled"`
	SendTimeout time.Duration `json:"send_timeout"`
	MaxInFlight int           `json:"max_in_flight"`
}

// DefaultConfig returns the default dispatcher settings.
func DefaultConfig() Config {
	return Config{Enabled: true, SendTimeout: 10 * time.Second, MaxInFlight: 8}
}

// Dispatcher fans an alert out to every administrator. It satisfies the
// alerting engine's Notifier contract.
type Dispatcher struct {
	cfg     Config
	store   store.Store
	mailer  Mailer
	logger  *slog.Logger
	metrics *metric.Metrics
	sem     chan struct{}
}

// NewDispatcher wires the dispatcher. A nil mailer disables delivery.
func NewDispatcher(cfg Config, st store.Store, mailer Mailer, logger *slog.Logger, metrics *metric.Metrics) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = DefaultConfig().SendTimeout
	}
	if cfg.MaxInFlight <= 0 {
		cfg.MaxInFlight = DefaultConfig().MaxInFlight
	}
	return &Dispatcher{
		cfg:     cfg,
		store:   st,
		mailer:  mailer,
		logger:  logger,
		metrics: metrics,
		sem:     make(chan struct{}, cfg.MaxInFlight),
	}
}

// Notify dispatches the alert on a detached goroutine and returns
// immediately so the caller never waits on mail delivery. A sustained
// breach can produce one alert per reading; once MaxInFlight dispatches
// are running, further alerts are dropped rather than stacking
// goroutines and recipient lookups.
func (d *Dispatcher) Notify(alert types.Alert) {
	if !d.cfg.Enabled || d.mailer == nil {
		return
	}
	select {
	case d.sem <- struct{}{}:
		go d.dispatch(alert)
	default:
		d.counted(false)
		d.logger.Warn("notification dropped, dispatcher saturated",
			"component", "notify", "alert_id", alert.ID, "max_in_flight", d.cfg.MaxInFlight)
	}
}

func (d *Dispatcher) dispatch(alert types.Alert) {
	defer func() { <-d.sem }()

	ctx, cancel := context.WithTimeout(context.Background(), d.cfg.SendTimeout)
	defer cancel()

	admins, err := d.store.ListUsersByRole(ctx, types.RoleAdmin)
	if err != nil {
		d.logger.Error("notification recipient lookup failed",
			"component", "notify", "alert_id", alert.ID, "error", err)
		return
	}
	if len(admins) == 0 {
		d.logger.Warn("no administrators to notify", "component", "notify", "alert_id", alert.ID)
		return
	}

	subject := subjectFor(alert)
	body := bodyFor(alert)

	// Each recipient is attempted independently; one bounce must not
	// starve the rest of the list.
	for _, admin := range admins {
		if admin.Email == "" {
			continue
		}
		if err := d.mailer.Send(ctx, admin.Email, subject, body); err != nil {
			d.counted(false)
			d.logger.Error("notification delivery failed",
				"component", "notify", "alert_id", alert.ID, "recipient", admin.Email, "error", err)
			continue
		}
		d.counted(true)
		d.logger.Debug("notification sent",
			"component", "notify", "alert_id", alert.ID, "recipient", admin.Email)
	}
}

func (d *Dispatcher) counted(ok bool) {
	if d.metrics == nil {
		return
	}
	if ok {
		d.metrics.NotificationsSent.Inc()
	} else {
		d.metrics.NotificationsFailed.Inc()
	}
}

func subjectFor(alert types.Alert) string {
	return fmt.Sprintf("[%s] %s on %s", alert.Severity, alert.Type, alert.TankName)
}

func bodyFor(alert types.Alert) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Alert %s\n\n", alert.Type)
	fmt.Fprintf(&b, "Severity:  %s\n", alert.Severity)
	fmt.Fprintf(&b, "Tank:      %s\n", alert.TankName)
	fmt.Fprintf(&b, "Sensor:    %s\n", alert.SensorName)
	fmt.Fprintf(&b, "Value:     %.2f\n", alert.Value)
	fmt.Fprintf(&b, "Timestamp: %s\n", alert.CreatedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "\n%s\n", alert.Message)
	return b.String()
}
