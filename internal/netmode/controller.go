package netmode

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// subscriberBuffer is the per-subscriber event queue length. Events for a
// subscriber whose queue is full are dropped.
const subscriberBuffer = 32

// Controller owns the current network mode and is the only thing that
// changes it. Transitions are serialized: at most one is in flight.
type Controller struct {
	configurator Configurator
	logger       *zap.Logger

	// transition is held for the full duration of a mode change, including
	// the AP fallback performed by Provision.
	transition sync.Mutex

	// mu protects the fields below
	mu        sync.RWMutex
	mode      Mode
	lastStage Stage
	lastErr   error
	updatedAt time.Time
	subs      map[int]chan Event
	nextSub   int

	now func() time.Time
}

// NewController creates a controller in access point mode, the mode the
// device boots into.
func NewController(configurator Configurator, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		configurator: configurator,
		logger:       logger,
		mode:         ModeAccessPoint,
		updatedAt:    time.Now(),
		subs:         make(map[int]chan Event),
		now:          time.Now,
	}
}

// CurrentMode returns the current mode
func (c *Controller) CurrentMode() Mode {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.mode
}

// Status returns a snapshot of the controller state
func (c *Controller) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()

	st := Status{
		Mode:      c.mode,
		LastStage: c.lastStage,
		UpdatedAt: c.updatedAt,
	}
	if c.lastErr != nil {
		st.LastError = c.lastErr.Error()
	}
	return st
}

// EnterAccessPointMode brings up the access point described by cfg. It is
// safe to call repeatedly; it is both the startup path and the recovery path.
// On failure the returned *ModeError names the stage and the mode becomes
// ModeUnknown. Cancelling ctx does not interrupt a transition once it has
// started.
func (c *Controller) EnterAccessPointMode(ctx context.Context, cfg AccessPointConfig) error {
	c.transition.Lock()
	defer c.transition.Unlock()

	return c.enterAccessPoint(context.WithoutCancel(ctx), cfg)
}

// EnterStationMode tears down the access point and joins the network in
// creds. On failure the mode becomes ModeUnknown and the caller is
// responsible for re-entering AP mode; Provision does exactly that.
func (c *Controller) EnterStationMode(ctx context.Context, creds StationCredentials) error {
	c.transition.Lock()
	defer c.transition.Unlock()

	return c.enterStation(context.WithoutCancel(ctx), creds)
}

// Provision attempts to join the network in creds and, if that fails,
// re-enters AP mode with fallback before returning. A failed join never
// leaves the device without a management interface unless the fallback
// itself fails. The whole sequence runs under the transition lock.
func (c *Controller) Provision(ctx context.Context, creds StationCredentials, fallback AccessPointConfig) *ProvisionResult {
	c.transition.Lock()
	defer c.transition.Unlock()

	ctx = context.WithoutCancel(ctx)
	result := &ProvisionResult{}

	err := c.enterStation(ctx, creds)
	if err == nil {
		result.Joined = true
		return result
	}
	result.StationErr = err

	c.logger.Warn("station join failed, re-entering access point mode",
		zap.String("target", creds.String()),
		zap.Error(err),
	)

	result.FallbackAttempted = true
	if err := c.enterAccessPoint(ctx, fallback); err != nil {
		result.FallbackErr = err
		c.logger.Error("access point fallback failed",
			zap.String("ap", fallback.String()),
			zap.Error(err),
		)
	}

	return result
}

func (c *Controller) enterAccessPoint(ctx context.Context, cfg AccessPointConfig) error {
	c.logger.Info("entering access point mode", zap.String("ap", cfg.String()))

	return c.run(ctx, ModeAccessPoint, AccessPointPlan, func(stage Stage) Action {
		ap := cfg
		return Action{Stage: stage, AccessPoint: &ap}
	})
}

func (c *Controller) enterStation(ctx context.Context, creds StationCredentials) error {
	c.logger.Info("entering station mode", zap.String("target", creds.String()))

	return c.run(ctx, ModeStation, StationPlan, func(stage Stage) Action {
		sta := creds
		return Action{Stage: stage, Station: &sta}
	})
}

// run executes plan in order. The first failing non-optional stage aborts
// the transition and leaves the mode unknown.
func (c *Controller) run(ctx context.Context, target Mode, plan []Stage, action func(Stage) Action) error {
	c.publish(Event{Mode: target, Phase: PhaseStarted})

	for _, stage := range plan {
		err := c.configurator.Apply(ctx, action(stage))
		if err != nil && stage.Optional() {
			c.logger.Warn("optional stage failed, continuing",
				zap.Stringer("mode", target),
				zap.String("stage", string(stage)),
				zap.Error(err),
			)
			err = nil
		}

		if err != nil {
			modeErr := &ModeError{Mode: target, Stage: stage, Err: err}
			c.record(ModeUnknown, stage, modeErr)
			c.publish(Event{Mode: target, Stage: stage, Phase: PhaseFailed, Error: modeErr.Error()})
			return modeErr
		}

		c.logger.Debug("stage complete",
			zap.Stringer("mode", target),
			zap.String("stage", string(stage)),
		)
		c.publish(Event{Mode: target, Stage: stage, Phase: PhaseStep})
	}

	c.record(target, plan[len(plan)-1], nil)
	c.publish(Event{Mode: target, Phase: PhaseSucceeded})
	c.logger.Info("mode transition complete", zap.Stringer("mode", target))
	return nil
}

func (c *Controller) record(mode Mode, stage Stage, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.mode = mode
	c.lastStage = stage
	c.lastErr = err
	c.updatedAt = c.now()
}

// Subscribe returns a channel of transition events and a function that
// unsubscribes and closes it. Slow subscribers lose events rather than
// stalling transitions.
func (c *Controller) Subscribe() (<-chan Event, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextSub
	c.nextSub++
	ch := make(chan Event, subscriberBuffer)
	c.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			delete(c.subs, id)
			close(ch)
		})
	}
	return ch, cancel
}

func (c *Controller) publish(ev Event) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ev.At = c.now()
	for _, ch := range c.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
