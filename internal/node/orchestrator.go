package node

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sweeney/scan-node/internal/button"
	"github.com/sweeney/scan-node/internal/network"
	"github.com/sweeney/scan-node/internal/power"
	"github.com/sweeney/scan-node/internal/scan"
	"github.com/sweeney/scan-node/internal/status"
	"github.com/sweeney/scan-node/internal/store"
)

// downlinkQueue bounds downlinks waiting for the loop.
const downlinkQueue = 8

// Deps are the orchestrator's collaborators.
type Deps struct {
	Store    PayloadStore
	Scanner  scan.Scanner
	Network  network.Stack
	Activity button.Source
	Power    power.Controller

	// Tracker is optional; a private one is created when nil.
	Tracker *status.Tracker
	Logger  *zap.Logger

	// Tick drives the idle countdown, one decrement per tick. The
	// orchestrator resets and stops it.
	Tick Ticker
	// Now stamps records. Defaults to time.Now.
	Now func() time.Time
}

// Orchestrator runs one wake cycle. It owns all cycle state; collaborator
// calls happen one at a time on the goroutine that called Run.
type Orchestrator struct {
	cfg Config

	store    PayloadStore
	scanner  scan.Scanner
	net      network.Stack
	activity button.Source
	power    power.Controller
	tracker  *status.Tracker
	logger   *zap.Logger
	tick     Ticker
	now      func() time.Time

	// maxResults is the scan cap: the configured maximum, limited to what
	// one uplink can carry.
	maxResults int

	state  State
	intent Intent
	joined bool

	// record is the payload owed this cycle, nil once delivered.
	record *store.Record
	// latest is the most recent scan, reported on double click.
	latest []scan.AccessPoint

	countdown *countdown
	events    <-chan button.Kind
	downlinks chan network.Downlink
}

// New validates cfg and deps. A missing tick source or a non-positive
// countdown or sleep duration fails with ErrTimerCreation.
func New(cfg Config, deps Deps) (*Orchestrator, error) {
	if deps.Tick == nil {
		return nil, fmt.Errorf("%w: no tick source", ErrTimerCreation)
	}
	if cfg.IdleTicks <= 0 {
		return nil, fmt.Errorf("%w: idle ticks must be positive, got %d", ErrTimerCreation, cfg.IdleTicks)
	}
	if cfg.Sleep <= 0 {
		return nil, fmt.Errorf("%w: sleep duration must be positive, got %v", ErrTimerCreation, cfg.Sleep)
	}
	if deps.Store == nil || deps.Scanner == nil || deps.Network == nil || deps.Activity == nil || deps.Power == nil {
		return nil, errors.New("node: store, scanner, network, activity and power are required")
	}
	if cfg.MTU < MinMTU {
		return nil, fmt.Errorf("node: mtu %d below minimum %d", cfg.MTU, MinMTU)
	}
	if cfg.MaxResults <= 0 {
		return nil, fmt.Errorf("node: max results must be positive, got %d", cfg.MaxResults)
	}

	o := &Orchestrator{
		cfg:        cfg,
		maxResults: min(cfg.MaxResults, UplinkCapacity(cfg.MTU)),
		store:      deps.Store,
		scanner:    deps.Scanner,
		net:        deps.Network,
		activity:   deps.Activity,
		power:      deps.Power,
		tracker:    deps.Tracker,
		logger:     deps.Logger,
		tick:       deps.Tick,
		now:        deps.Now,
		state:      StateBooting,
		countdown:  newCountdown(cfg.IdleTicks),
		events:     deps.Activity.Events(),
		downlinks:  make(chan network.Downlink, downlinkQueue),
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	if o.now == nil {
		o.now = time.Now
	}
	if o.tracker == nil {
		o.tracker = status.NewTracker(o.now(), status.Config{})
	}
	if o.maxResults < cfg.MaxResults {
		o.logger.Warn("scan capped to uplink capacity",
			zap.Int("max_results", cfg.MaxResults),
			zap.Int("mtu", cfg.MTU),
			zap.Int("cap", o.maxResults))
	}
	return o, nil
}

// State returns the current state. Only meaningful from the Run goroutine
// or after Run has returned.
func (o *Orchestrator) State() State {
	return o.state
}

// Run executes the wake cycle. It returns after Suspend (which does not
// return on hardware) or when ctx is cancelled while idle.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.boot()

	o.decide()
	if o.intent == IntentFreshScan {
		o.freshScan(ctx)
	}
	o.drainEvents(ctx)

	o.join(ctx)
	o.drainEvents(ctx)

	switch {
	case !o.joined:
		o.logger.Info("not joined, delivery deferred to next wake")
	case !o.record.Owed():
		o.logger.Info("nothing to deliver")
	default:
		o.transmit(ctx)
		o.drainEvents(ctx)
	}

	return o.idle(ctx)
}

func (o *Orchestrator) boot() {
	cause := o.power.LastWakeCause()
	o.tracker.SetWakeCause(string(cause))
	switch cause {
	case power.WakeTimer:
		o.logger.Info("wakeup caused by timer")
	case power.WakeExternal:
		o.logger.Info("wakeup caused by external signal")
	default:
		o.logger.Info("wakeup was not caused by deep sleep", zap.String("cause", string(cause)))
	}

	o.net.OnMessage(func(dl network.Downlink) {
		select {
		case o.downlinks <- dl:
		default:
			o.logger.Warn("downlink queue full, dropping", zap.Uint8("port", dl.Port))
		}
	})
}

// decide publishes Deciding once, together with the intent it settles on.
func (o *Orchestrator) decide() {
	o.state = StateDeciding

	rec, err := o.store.Load()
	if err != nil {
		o.logger.Warn("store unreadable, treating as empty", zap.Error(err))
		rec = nil
	}

	o.intent = DecideIntent(rec)
	if o.intent == IntentResend {
		o.record = rec
		o.latest = rec.Results
		o.tracker.SetLatestScan(rec.Results)
		o.logger.Info("previous payload not delivered, resending",
			zap.Int("count", rec.Count),
			zap.Time("scanned_at", rec.ScannedAt))
	} else {
		o.logger.Info("no pending payload, scanning")
	}
	o.tracker.SetPending(o.record.Owed())
	o.tracker.SetState(string(o.state), string(o.intent))
}

func (o *Orchestrator) freshScan(ctx context.Context) {
	o.setState(StateScanning)

	rec, ok := o.runScan(ctx)
	if !ok {
		return
	}
	if len(rec.Results) == 0 {
		o.logger.Info("scan found no access points, nothing to buffer")
		return
	}

	o.record = &rec
	if err := o.store.Save(rec); err != nil {
		o.logger.Error("failed to persist scan, delivering from memory", zap.Error(err))
	} else {
		o.logger.Info("scan buffered", zap.Int("count", rec.Count))
	}
	o.tracker.SetPending(true)
}

// runScan performs a scan and updates the latest results.
func (o *Orchestrator) runScan(ctx context.Context) (store.Record, bool) {
	res, err := o.scanner.Scan(ctx, o.maxResults)
	if err != nil {
		o.logger.Error("scan failed", zap.Error(err))
		o.tracker.Record("scan", "failed: "+err.Error())
		return store.Record{}, false
	}
	o.logger.Info("scan done", zap.Int("found", res.Total), zap.Int("kept", len(res.APs)))
	o.tracker.Record("scan", fmt.Sprintf("%d found, %d kept", res.Total, len(res.APs)))

	o.latest = res.APs
	o.tracker.SetLatestScan(res.APs)
	return store.NewRecord(res, o.now()), true
}

func (o *Orchestrator) join(ctx context.Context) {
	o.setState(StateJoining)

	err := o.net.Join(ctx)
	o.joined = err == nil
	o.tracker.SetJoined(o.joined)
	o.event(Event{Kind: EventJoinResult, OK: o.joined, Err: err})
}

func (o *Orchestrator) transmit(ctx context.Context) {
	o.setState(StateTransmitting)

	payload := EncodeUplink(*o.record, o.cfg.MTU)
	err := o.net.Transmit(ctx, payload, o.cfg.Port, o.cfg.Confirmed)
	o.event(Event{Kind: EventTransmitResult, OK: err == nil, Err: err})
	if err != nil {
		return
	}

	o.record = nil
	o.tracker.SetPending(false)
	o.tracker.AddDelivered()
	if err := o.store.ErasePayload(); err != nil {
		o.logger.Error("failed to clear delivered payload", zap.Error(err))
	}
}

// drainEvents handles user actions that queued up while a blocking step
// was running.
func (o *Orchestrator) drainEvents(ctx context.Context) {
	for {
		select {
		case k, ok := <-o.events:
			if !ok {
				o.events = nil
				return
			}
			o.userAction(ctx, k)
		case dl := <-o.downlinks:
			o.downlink(dl)
		default:
			return
		}
	}
}

func (o *Orchestrator) idle(ctx context.Context) error {
	o.restartCountdown()
	o.setState(StateIdle)

	for {
		select {
		case <-ctx.Done():
			o.logger.Info("shutting down", zap.Error(ctx.Err()))
			return nil

		case k, ok := <-o.events:
			if !ok {
				o.events = nil
				continue
			}
			o.userAction(ctx, k)

		case dl := <-o.downlinks:
			o.downlink(dl)

		case <-o.tick.C():
			if !o.countdown.Live() {
				continue
			}
			o.logger.Debug("countdown", zap.Int("remaining", o.countdown.Remaining()))
			expired := o.countdown.tick()
			o.tracker.SetCountdown(o.countdown.Remaining())
			if expired {
				o.event(Event{Kind: EventTimerExpired, OK: true})
				return o.sleep()
			}
		}
	}
}

// restartCountdown starts a full-length countdown. The tick phase is reset
// and a tick that queued up while the loop was busy is discarded.
func (o *Orchestrator) restartCountdown() {
	o.tick.Reset()
	for drained := false; !drained; {
		select {
		case <-o.tick.C():
		default:
			drained = true
		}
	}
	o.countdown.restart()
	o.tracker.SetCountdown(o.countdown.Remaining())
	o.logger.Debug("countdown restarted",
		zap.Int("ticks", o.cfg.IdleTicks),
		zap.Duration("tick", o.cfg.Tick))
}

func (o *Orchestrator) userAction(ctx context.Context, k button.Kind) {
	o.event(Event{Kind: EventUserAction, Action: k, OK: true})

	switch k {
	case button.SingleClick:
		o.adHocScan(ctx)
	case button.DoubleClick:
		scan.Report(o.logger, o.latest)
	case button.LongPressStart:
		o.eraseAll()
	default:
		o.logger.Debug("ignoring button event", zap.String("kind", string(k)))
		return
	}

	if o.state == StateIdle {
		o.restartCountdown()
	}
}

// adHocScan scans on demand. The result only fills the slot when nothing
// is owed, so a pending record is never overwritten.
func (o *Orchestrator) adHocScan(ctx context.Context) {
	rec, ok := o.runScan(ctx)
	if !ok {
		return
	}
	scan.Report(o.logger, rec.Results)

	if len(rec.Results) == 0 {
		return
	}
	if o.record.Owed() {
		o.logger.Info("pending payload kept, ad-hoc scan not buffered")
		return
	}
	stored, err := o.store.Load()
	if err != nil {
		o.logger.Warn("store unreadable, ad-hoc scan not buffered", zap.Error(err))
		return
	}
	if stored.Owed() {
		o.logger.Info("pending payload kept, ad-hoc scan not buffered")
		return
	}
	if err := o.store.Save(rec); err != nil {
		o.logger.Error("failed to persist ad-hoc scan", zap.Error(err))
		return
	}
	o.tracker.SetPending(true)
	o.logger.Info("ad-hoc scan buffered for the next wake", zap.Int("count", rec.Count))
}

func (o *Orchestrator) eraseAll() {
	o.logger.Warn("erasing store")
	if err := o.store.EraseAll(); err != nil {
		o.logger.Error("store erase failed", zap.Error(err))
		return
	}
	o.record = nil
	o.tracker.SetPending(false)
	o.logger.Info("store erased")
	o.logger.Warn("dev nonce sequence reset, a server that tracks nonces must forget this device")
}

func (o *Orchestrator) downlink(dl network.Downlink) {
	o.event(Event{Kind: EventDownlink, OK: true, Downlink: dl})
}

func (o *Orchestrator) sleep() error {
	o.setState(StateSleeping)
	o.tick.Stop()

	if err := o.activity.Close(); err != nil {
		o.logger.Warn("closing button source", zap.Error(err))
	}
	if err := o.net.Close(); err != nil {
		o.logger.Warn("closing network", zap.Error(err))
	}

	o.power.ArmTimer(o.cfg.Sleep)
	o.power.ArmExternalWake(o.cfg.WakeLine, o.cfg.WakeActiveLevel)
	o.logger.Info("going to sleep",
		zap.Duration("sleep", o.cfg.Sleep),
		zap.Int("wake_line", o.cfg.WakeLine))

	if err := o.power.Suspend(); err != nil {
		return fmt.Errorf("suspend: %w", err)
	}
	return nil
}

func (o *Orchestrator) setState(s State) {
	o.state = s
	o.tracker.SetState(string(s), string(o.intent))
}

// event logs ev and adds it to the activity history.
func (o *Orchestrator) event(ev Event) {
	fields := []zap.Field{zap.String("event", string(ev.Kind)), zap.Bool("ok", ev.OK)}
	var detail string

	switch ev.Kind {
	case EventUserAction:
		fields = append(fields, zap.String("action", string(ev.Action)))
		detail = string(ev.Action)
	case EventDownlink:
		fields = append(fields,
			zap.Uint8("port", ev.Downlink.Port),
			zap.Binary("payload", ev.Downlink.Payload),
			zap.Bool("ack", ev.Downlink.Ack))
		detail = fmt.Sprintf("port %d, %d bytes", ev.Downlink.Port, len(ev.Downlink.Payload))
	default:
		detail = "ok"
		if !ev.OK {
			detail = "failed"
		}
	}
	if ev.Err != nil {
		fields = append(fields, zap.Error(ev.Err))
		detail += ": " + ev.Err.Error()
	}

	if ev.OK {
		o.logger.Info("event", fields...)
	} else {
		o.logger.Warn("event", fields...)
	}
	o.tracker.Record(string(ev.Kind), detail)
}
