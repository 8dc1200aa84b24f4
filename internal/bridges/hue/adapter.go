package hue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/gray-logic-hue/internal/bus"
	"github.com/nerrad567/gray-logic-hue/internal/device"
	"github.com/nerrad567/gray-logic-hue/internal/infrastructure/config"
)

const (
	defaultCommandTimeout = 5 * time.Second
	defaultMaxConcurrency = 8
)

// Hardware operation names used in logs and metrics.
const (
	opSetLight    = "set_light"
	opSetGroup    = "set_group"
	opLightStatus = "light_status"
	opGroupStatus = "group_status"
)

// Logger is the logging interface used by the adapter.
// It is satisfied by logging.Logger and *slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// DeviceLookup provides the devices registered for a plugin instance.
type DeviceLookup interface {
	GetDevicesByPluginID(ctx context.Context, pluginID string) ([]device.Device, error)
}

// AdapterOptions holds the collaborators for NewAdapter.
type AdapterOptions struct {
	// Config is the loaded configuration (required).
	Config *config.Config

	// Hardware talks to the Hue bridge (required).
	Hardware HardwareClient

	// Bus carries inbound signals and outbound broadcasts (required).
	Bus *bus.Bus

	// Registry supplies the devices to refresh (required).
	Registry DeviceLookup

	// HealthPublisher enables the health reporter when set.
	HealthPublisher HealthPublisher

	// Metrics is optional.
	Metrics *Metrics

	// Logger is optional.
	Logger Logger

	// Version is reported in health messages.
	Version string
}

// Adapter connects the signal bus to a Hue bridge.
//
// Inbound signals are applied as commands; device state is broadcast after
// each acknowledged command and after each status query.
type Adapter struct {
	pluginID string
	hw       HardwareClient
	bus      *bus.Bus
	lookup   DeviceLookup
	health   *HealthReporter
	metrics  *Metrics

	commandTimeout time.Duration
	startupDelay   time.Duration
	pollInterval   time.Duration
	maxConcurrency int

	commands   atomic.Uint64
	broadcasts atomic.Uint64
	errs       atomic.Uint64

	// hwFailing is set when every query of the last refresh failed to reach
	// the bridge. A successful command clears it.
	hwFailing atomic.Bool

	// Lifecycle. stopped guards wg.Add against a concurrent Stop.
	ctx          context.Context
	ctxCancel    context.CancelFunc
	done         chan struct{}
	wg           sync.WaitGroup
	stopOnce     sync.Once
	stopMu       sync.RWMutex
	stopped      bool
	started      atomic.Bool
	unsubSignals func()

	logger   Logger
	loggerMu sync.RWMutex
}

// NewAdapter validates opts and creates an adapter. Call Start to run it.
func NewAdapter(opts AdapterOptions) (*Adapter, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if opts.Hardware == nil {
		return nil, fmt.Errorf("hardware client is required")
	}
	if opts.Bus == nil {
		return nil, fmt.Errorf("bus is required")
	}
	if opts.Registry == nil {
		return nil, fmt.Errorf("device registry is required")
	}

	cfg := opts.Config
	ctx, cancel := context.WithCancel(context.Background())

	a := &Adapter{
		pluginID:       cfg.Plugin.ID,
		hw:             opts.Hardware,
		bus:            opts.Bus,
		lookup:         opts.Registry,
		metrics:        opts.Metrics,
		commandTimeout: cfg.Hue.CommandTimeout,
		startupDelay:   cfg.Polling.StartupDelay,
		pollInterval:   cfg.Polling.Interval,
		maxConcurrency: cfg.Polling.MaxConcurrency,
		ctx:            ctx,
		ctxCancel:      cancel,
		done:           make(chan struct{}),
		logger:         opts.Logger,
	}
	if a.commandTimeout <= 0 {
		a.commandTimeout = defaultCommandTimeout
	}
	if a.maxConcurrency <= 0 {
		a.maxConcurrency = defaultMaxConcurrency
	}

	if opts.HealthPublisher != nil {
		a.health = NewHealthReporter(HealthReporterConfig{
			BridgeID:  cfg.Bridge.ID,
			Version:   opts.Version,
			Interval:  cfg.GetHealthInterval(),
			Publisher: opts.HealthPublisher,
			Stats:     a,
		})
		if opts.Logger != nil {
			a.health.SetLogger(opts.Logger)
		}
	}

	return a, nil
}

// Start subscribes to bus signals, begins health reporting and schedules
// the startup refresh and the optional periodic poller.
func (a *Adapter) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !a.started.CompareAndSwap(false, true) {
		return fmt.Errorf("adapter already started")
	}

	if a.health != nil {
		if err := a.health.PublishStarting(); err != nil {
			a.logError("failed to publish starting status", err)
		}
	}

	a.unsubSignals = a.bus.SubscribeSignals(a.HandleSignal)

	if a.health != nil {
		a.health.Start(a.ctx)
		if err := a.health.PublishNow(); err != nil {
			a.logError("failed to publish health", err)
		}
	}

	a.wg.Add(1)
	go a.pollLoop()

	a.logInfo("hue adapter started",
		"plugin_id", a.pluginID,
		"startup_delay", a.startupDelay,
		"poll_interval", a.pollInterval,
	)
	return nil
}

// Stop cancels in-flight work and waits for it to finish.
// Safe to call multiple times.
func (a *Adapter) Stop() {
	a.stopOnce.Do(func() {
		a.stopMu.Lock()
		a.stopped = true
		a.stopMu.Unlock()

		close(a.done)
		if a.unsubSignals != nil {
			a.unsubSignals()
		}
		a.ctxCancel()

		if a.health != nil {
			a.health.Stop()
		}

		a.wg.Wait()
		a.logInfo("hue adapter stopped")
	})
}

// HandleSignal applies an inbound signal asynchronously.
//
// Signals with an unrecognised state are dropped. Errors from the hardware
// are logged by ApplyState and go no further.
func (a *Adapter) HandleSignal(s bus.Signal) {
	desired, ok := ParseDesiredState(s.State)
	if !ok {
		a.logDebug("ignoring signal with unrecognised state", "device_id", s.DeviceID, "state", s.State)
		return
	}

	a.stopMu.RLock()
	defer a.stopMu.RUnlock()
	if a.stopped {
		return
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		_ = a.ApplyState(a.ctx, s.DeviceID, desired) //nolint:errcheck // logged and counted in ApplyState
	}()
}

// ApplyState switches a device and broadcasts its new state once the bridge
// has acknowledged the command.
//
// Unclassifiable identifiers and invalid states are no-ops returning nil.
// A hardware failure is logged and counted, nothing is broadcast, and the
// wrapped error is returned.
func (a *Adapter) ApplyState(ctx context.Context, id string, desired DesiredState) error {
	target := Classify(id)
	if target.Kind == KindUnknown {
		a.logDebug("skipping unclassifiable device", "device_id", id)
		return nil
	}
	if !desired.Valid() {
		a.logDebug("skipping invalid desired state", "device_id", id, "state", string(desired))
		return nil
	}

	callCtx, cancel := context.WithTimeout(ctx, a.commandTimeout)
	defer cancel()

	cmd := LightCommand{On: desired.On()}
	op := opSetLight
	var err error
	switch target.Kind {
	case KindLight:
		err = a.hw.SetLightState(callCtx, target.Address, cmd)
	case KindGroup:
		op = opSetGroup
		err = a.hw.SetGroupLightState(callCtx, target.Address, cmd)
	}
	a.commands.Add(1)

	if err != nil {
		a.metrics.commandResult(target.Kind, resultError)
		err = a.hardwareFailure(op, id, err)
		return fmt.Errorf("setting %s %s: %w", id, desired, err)
	}

	a.hwFailing.Store(false)
	a.metrics.commandResult(target.Kind, resultOK)
	a.broadcast(id, target.Kind, desired, bus.SourceCommand)
	return nil
}

// RefreshAll queries the state of every registered device and broadcasts
// each result.
//
// Queries run concurrently, at most polling.max_concurrency at a time. A
// failing device is logged and counted without affecting the others.
// Only a registry lookup failure is returned.
func (a *Adapter) RefreshAll(ctx context.Context) error {
	devices, err := a.lookup.GetDevicesByPluginID(ctx, a.pluginID)
	if err != nil {
		return fmt.Errorf("looking up devices for plugin %s: %w", a.pluginID, err)
	}

	if a.health != nil {
		a.health.SetDeviceCount(len(devices))
	}
	a.metrics.setDevices(len(devices))

	var g errgroup.Group
	g.SetLimit(a.maxConcurrency)

	var queried, unreachable atomic.Int64
	for _, d := range devices {
		target := Classify(d.DeviceID)
		if target.Kind == KindUnknown {
			a.logDebug("skipping unclassifiable device", "device_id", d.DeviceID)
			continue
		}

		g.Go(func() error {
			switch a.refreshDevice(ctx, d.DeviceID, target) {
			case queryOK, queryMissing:
				queried.Add(1)
			case queryUnreachable:
				queried.Add(1)
				unreachable.Add(1)
			}
			return nil
		})
	}

	//nolint:errcheck // refreshDevice never returns an error to the group
	g.Wait()

	if n := queried.Load(); n > 0 && ctx.Err() == nil {
		a.hwFailing.Store(unreachable.Load() == n)
	}
	return nil
}

// Stats returns the adapter's running counters.
func (a *Adapter) Stats() AdapterStatistics {
	return AdapterStatistics{
		Commands:   a.commands.Load(),
		Broadcasts: a.broadcasts.Load(),
		Errors:     a.errs.Load(),
		HardwareOK: !a.hwFailing.Load(),
	}
}

// Health returns the adapter's current health status.
func (a *Adapter) Health() (HealthStatus, string) {
	if a.health == nil {
		if a.hwFailing.Load() {
			return HealthDegraded, "hue bridge unreachable"
		}
		return HealthHealthy, ""
	}
	return a.health.Status()
}

// SetLogger sets the logger for the adapter.
func (a *Adapter) SetLogger(logger Logger) {
	a.loggerMu.Lock()
	a.logger = logger
	a.loggerMu.Unlock()

	if a.health != nil {
		a.health.SetLogger(logger)
	}
}

// queryOutcome classifies a single status query for health accounting.
type queryOutcome int

const (
	querySkipped queryOutcome = iota
	queryOK
	queryMissing     // bridge answered, resource unknown
	queryUnreachable // transport failure, rejection or timeout
)

func (a *Adapter) refreshDevice(ctx context.Context, id string, target Target) queryOutcome {
	if ctx.Err() != nil {
		return querySkipped
	}

	callCtx, cancel := context.WithTimeout(ctx, a.commandTimeout)
	defer cancel()

	var on bool
	var err error
	op := opLightStatus
	switch target.Kind {
	case KindLight:
		a.logDebug("getting status for light", "device_id", id)
		on, err = a.hw.LightStatus(callCtx, target.Address)
	case KindGroup:
		op = opGroupStatus
		a.logDebug("getting status for group", "device_id", id)
		var gs GroupState
		gs, err = a.hw.GroupStatus(callCtx, target.Address)
		on = gs.LastAction.On
	}

	if err != nil {
		if ctx.Err() != nil {
			return querySkipped
		}
		//nolint:errcheck // logged and counted; a poll failure is not propagated
		a.hardwareFailure(op, id, err)
		if errors.Is(err, ErrNoData) {
			return queryMissing
		}
		return queryUnreachable
	}

	a.broadcast(id, target.Kind, stateFromBool(on), bus.SourcePoll)
	return queryOK
}

func (a *Adapter) pollLoop() {
	defer a.wg.Done()

	timer := time.NewTimer(a.startupDelay)
	defer timer.Stop()

	select {
	case <-a.done:
		return
	case <-timer.C:
	}
	a.runRefresh()

	if a.pollInterval <= 0 {
		return
	}

	ticker := time.NewTicker(a.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-a.done:
			return
		case <-ticker.C:
			a.runRefresh()
		}
	}
}

func (a *Adapter) runRefresh() {
	if err := a.RefreshAll(a.ctx); err != nil {
		a.logError("status refresh failed", err)
	}
}

func (a *Adapter) broadcast(id string, kind Kind, state DesiredState, source string) {
	a.broadcasts.Add(1)
	a.metrics.broadcast(source)

	a.bus.PublishState(bus.StateBroadcast{
		DeviceID:  id,
		State:     string(state),
		Kind:      kind.String(),
		Source:    source,
		Timestamp: time.Now().UTC(),
	})
}

// hardwareFailure records a failed hardware call and returns err, with
// deadline expiry mapped to ErrTimeout.
func (a *Adapter) hardwareFailure(op, id string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		err = fmt.Errorf("%w: %w", ErrTimeout, err)
	}

	a.errs.Add(1)
	a.metrics.hardwareError(op)
	a.logError("hue call failed", err, "operation", op, "device_id", id)
	return err
}

func (a *Adapter) logInfo(msg string, keysAndValues ...any) {
	a.loggerMu.RLock()
	logger := a.logger
	a.loggerMu.RUnlock()

	if logger != nil {
		logger.Info(msg, keysAndValues...)
	}
}

func (a *Adapter) logError(msg string, err error, keysAndValues ...any) {
	a.loggerMu.RLock()
	logger := a.logger
	a.loggerMu.RUnlock()

	if logger != nil {
		logger.Error(msg, append([]any{"error", err}, keysAndValues...)...)
	}
}

func (a *Adapter) logDebug(msg string, keysAndValues ...any) {
	a.loggerMu.RLock()
	logger := a.logger
	a.loggerMu.RUnlock()

	if logger != nil {
		logger.Debug(msg, keysAndValues...)
	}
}
