package alert

import (
	"context"
	"fmt"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"smokewatch-backend/config"
	"smokewatch-backend/internal/dispatchsvc"
	"smokewatch-backend/internal/push"
	"smokewatch-backend/internal/store"
)

// EventAlarm is the only alarm class the dispatcher reacts to.
const EventAlarm = "AlarmTest"

// Event is one inbound telemetry event as delivered by the ingestion bridge.
type Event struct {
	Tenant    string         `json:"tenant"`
	User      string         `json:"user"`
	EventName string         `json:"eventName"`
	DeviceID  string         `json:"deviceId"`
	Data      map[string]any `json:"data"`
	MessageID string         `json:"messageId"`
}

// Dispatcher routes inbound alarm events to the owning user's push tokens
// and optionally escalates to the emergency dispatch service after a grace
// window. All outbound work runs as background units so the ingestion call
// returns immediately; unit failures are logged, never surfaced to the
// bridge. Per event: Received -> Notified -> {Waiting -> Escalated |
// Waiting -> Suppressed}.
type Dispatcher struct {
	store        store.Store
	push         push.Gateway
	dispatch     dispatchsvc.Gateway
	pushCfg      *config.PushConfig
	grace        time.Duration
	tenantPrefix string

	group  *errgroup.Group
	ctx    context.Context
	cancel context.CancelFunc
}

// NewDispatcher creates the alert dispatcher. Background units are bounded
// by maxTasks; when the bound is hit new units are dropped rather than
// queued, keeping the alert path at-most-once.
func NewDispatcher(s store.Store, pushGw push.Gateway, dispatchGw dispatchsvc.Gateway,
	pushCfg *config.PushConfig, grace time.Duration, tenantPrefix string, maxTasks int) *Dispatcher {

	ctx, cancel := context.WithCancel(context.Background())
	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(maxTasks)

	return &Dispatcher{
		store:        s,
		push:         pushGw,
		dispatch:     dispatchGw,
		pushCfg:      pushCfg,
		grace:        grace,
		tenantPrefix: tenantPrefix,
		group:        group,
		ctx:          gctx,
		cancel:       cancel,
	}
}

// Close cancels in-flight background units and waits for them to finish.
func (d *Dispatcher) Close() {
	d.cancel()
	d.group.Wait()
}

// HandleEvent processes one inbound event. It returns before any outbound
// delivery happens; a nil return only acknowledges receipt.
func (d *Dispatcher) HandleEvent(ctx context.Context, ev Event) error {
	userID := ev.User
	if userID == "" {
		stripped, ok := stripPrefix(ev.Tenant, d.tenantPrefix)
		if !ok {
			return fmt.Errorf("event %s: tenant %q carries no recognized prefix", ev.MessageID, ev.Tenant)
		}
		userID = stripped
	}

	if ev.EventName != EventAlarm {
		log.Printf("Ignoring event %q for device %s (message %s)", ev.EventName, ev.DeviceID, ev.MessageID)
		return nil
	}

	dev, err := d.store.DeviceByOwner(ctx, userID, ev.DeviceID)
	if err != nil {
		return fmt.Errorf("event %s: %w", ev.MessageID, err)
	}
	if dev == nil {
		log.Printf("Alarm for unregistered device %s (user %s), dropping", ev.DeviceID, userID)
		return nil
	}

	tokens, err := d.store.TokensForUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("event %s: %w", ev.MessageID, err)
	}
	if len(tokens) == 0 {
		log.Printf("Alarm for device %s: user %s has no notification tokens", dev.UUID, userID)
		return nil
	}

	name := dev.DisplayName
	if name == "" {
		name = dev.UUID
	}

	d.spawn(fmt.Sprintf("notify %s", ev.MessageID), func(ctx context.Context) {
		d.push.Deliver(ctx, tokens,
			"Smoke alarm",
			fmt.Sprintf("Sensor %s reported a smoke alarm.", name),
			d.pushCfg.AlarmSound, d.pushCfg.AlarmChannel)
	})

	deviceUUID := dev.UUID
	d.spawn(fmt.Sprintf("escalate %s", ev.MessageID), func(ctx context.Context) {
		d.escalate(ctx, deviceUUID, name, tokens)
	})

	return nil
}

// escalate waits out the grace window, then re-reads the dispatch config so
// a user reacting to the first notification can still suppress the dispatch.
func (d *Dispatcher) escalate(ctx context.Context, deviceUUID, name string, tokens []string) {
	timer := time.NewTimer(d.grace)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		log.Printf("Escalation check for device %s abandoned: %v", deviceUUID, ctx.Err())
		return
	case <-timer.C:
	}

	cfg, err := d.store.DispatchConfigForDevice(ctx, deviceUUID)
	if err != nil {
		log.Printf("Escalation check for device %s failed: %v", deviceUUID, err)
		return
	}
	if cfg == nil || !cfg.Enabled {
		// Suppressed: either never configured or disabled during the window.
		return
	}

	if err := d.dispatch.RequestDispatch(ctx, cfg.Address); err != nil {
		log.Printf("Emergency dispatch for device %s failed: %v", deviceUUID, err)
		return
	}
	log.Printf("Emergency dispatch requested for device %s", deviceUUID)

	d.push.Deliver(ctx, tokens,
		"Emergency services notified",
		fmt.Sprintf("Emergency dispatch was requested for sensor %s.", name),
		d.pushCfg.EscalationSound, d.pushCfg.EscalationChannel)
}

// spawn runs fn as a supervised background unit. Units never propagate
// errors into the group; they log and return nil so one failure cannot
// cancel the siblings.
func (d *Dispatcher) spawn(label string, fn func(ctx context.Context)) {
	started := d.group.TryGo(func() error {
		fn(d.ctx)
		return nil
	})
	if !started {
		log.Printf("Background task limit reached, dropping unit %q", label)
	}
}

func stripPrefix(tenant, prefix string) (string, bool) {
	if len(tenant) <= len(prefix) || tenant[:len(prefix)] != prefix {
		return "", false
	}
	return tenant[len(prefix):], true
}
