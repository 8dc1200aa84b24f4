package hue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/nerrad567/gray-logic-hue/internal/bus"
	"github.com/nerrad567/gray-logic-hue/internal/device"
	"github.com/nerrad567/gray-logic-hue/internal/infrastructure/config"
)

// FakeHardware implements HardwareClient for testing.
type FakeHardware struct {
	mu     sync.Mutex
	lights map[string]bool
	groups map[string]bool
	fail   map[string]error
	calls  []hwCall

	// block makes every call wait for ctx to end.
	block bool
	delay time.Duration

	inFlight    int
	maxInFlight int
}

type hwCall struct {
	Op      string
	Address string
	On      bool
}

func NewFakeHardware() *FakeHardware {
	return &FakeHardware{
		lights: make(map[string]bool),
		groups: make(map[string]bool),
		fail:   make(map[string]error),
	}
}

func (f *FakeHardware) enter(ctx context.Context, op, address string, on bool) error {
	f.mu.Lock()
	f.calls = append(f.calls, hwCall{Op: op, Address: address, On: on})
	f.inFlight++
	if f.inFlight > f.maxInFlight {
		f.maxInFlight = f.inFlight
	}
	block, delay, err := f.block, f.delay, f.fail[address]
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.inFlight--
		f.mu.Unlock()
	}()

	if block {
		<-ctx.Done()
		return ctx.Err()
	}
	if delay > 0 {
		time.Sleep(delay)
	}
	return err
}

func (f *FakeHardware) SetLightState(ctx context.Context, address string, cmd LightCommand) error {
	if err := f.enter(ctx, opSetLight, address, cmd.On); err != nil {
		return err
	}
	f.mu.Lock()
	f.lights[address] = cmd.On
	f.mu.Unlock()
	return nil
}

func (f *FakeHardware) SetGroupLightState(ctx context.Context, address string, cmd LightCommand) error {
	if err := f.enter(ctx, opSetGroup, address, cmd.On); err != nil {
		return err
	}
	f.mu.Lock()
	f.groups[address] = cmd.On
	f.mu.Unlock()
	return nil
}

func (f *FakeHardware) LightStatus(ctx context.Context, address string) (bool, error) {
	if err := f.enter(ctx, opLightStatus, address, false); err != nil {
		return false, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lights[address], nil
}

func (f *FakeHardware) GroupStatus(ctx context.Context, address string) (GroupState, error) {
	if err := f.enter(ctx, opGroupStatus, address, false); err != nil {
		return GroupState{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return GroupState{LastAction: LastAction{On: f.groups[address]}}, nil
}

func (f *FakeHardware) GetCalls() []hwCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]hwCall, len(f.calls))
	copy(out, f.calls)
	return out
}

// MockLookup implements DeviceLookup for testing.
type MockLookup struct {
	devices []device.Device
	err     error
}

func (m *MockLookup) GetDevicesByPluginID(_ context.Context, pluginID string) ([]device.Device, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []device.Device
	for _, d := range m.devices {
		if d.PluginID == pluginID {
			out = append(out, d)
		}
	}
	return out, nil
}

func newLookup(ids ...string) *MockLookup {
	m := &MockLookup{}
	for _, id := range ids {
		m.devices = append(m.devices, device.Device{ID: "uuid-" + id, PluginID: "hue-test", DeviceID: id})
	}
	return m
}

// MockHealthPublisher implements HealthPublisher for testing.
type MockHealthPublisher struct {
	mu        sync.Mutex
	published []HealthMessage
	connected bool
}

func (m *MockHealthPublisher) Publish(topic string, payload []byte, _ byte, retained bool) error {
	if topic != HealthTopic() || !retained {
		return fmt.Errorf("unexpected publish to %s retained=%v", topic, retained)
	}
	var msg HealthMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return err
	}
	m.mu.Lock()
	m.published = append(m.published, msg)
	m.mu.Unlock()
	return nil
}

func (m *MockHealthPublisher) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

func (m *MockHealthPublisher) GetPublished() []HealthMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]HealthMessage, len(m.published))
	copy(out, m.published)
	return out
}

func createTestConfig() *config.Config {
	return &config.Config{
		Plugin: config.PluginConfig{ID: "hue-test"},
		Bridge: config.BridgeConfig{ID: "hue-bridge-test", HealthInterval: 30},
		Hue: config.HueConfig{
			IP:             "192.168.1.2",
			Username:       "test-key",
			CommandTimeout: time.Second,
		},
		Polling: config.PollingConfig{
			StartupDelay:   time.Hour,
			MaxConcurrency: 4,
		},
	}
}

type testRig struct {
	adapter    *Adapter
	hw         *FakeHardware
	bus        *bus.Bus
	broadcasts chan bus.StateBroadcast
	metrics    *Metrics
	registry   *prometheus.Registry
}

func newTestRig(t *testing.T, cfg *config.Config, lookup DeviceLookup) *testRig {
	t.Helper()

	b := bus.New()
	hw := NewFakeHardware()
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)

	a, err := NewAdapter(AdapterOptions{
		Config:   cfg,
		Hardware: hw,
		Bus:      b,
		Registry: lookup,
		Metrics:  metrics,
	})
	if err != nil {
		t.Fatalf("NewAdapter() error = %v", err)
	}

	broadcasts := make(chan bus.StateBroadcast, 32)
	unsub := b.SubscribeStates(func(s bus.StateBroadcast) { broadcasts <- s })
	t.Cleanup(func() {
		a.Stop()
		unsub()
	})

	return &testRig{adapter: a, hw: hw, bus: b, broadcasts: broadcasts, metrics: metrics, registry: reg}
}

func (r *testRig) next(t *testing.T) bus.StateBroadcast {
	t.Helper()
	select {
	case s := <-r.broadcasts:
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for broadcast")
		return bus.StateBroadcast{}
	}
}

func (r *testRig) expectNone(t *testing.T) {
	t.Helper()
	select {
	case s := <-r.broadcasts:
		t.Fatalf("unexpected broadcast %+v", s)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestNewAdapterValidation(t *testing.T) {
	cfg := createTestConfig()
	hw := NewFakeHardware()
	b := bus.New()
	lookup := newLookup()

	tests := []struct {
		name string
		opts AdapterOptions
	}{
		{"missing config", AdapterOptions{Hardware: hw, Bus: b, Registry: lookup}},
		{"missing hardware", AdapterOptions{Config: cfg, Bus: b, Registry: lookup}},
		{"missing bus", AdapterOptions{Config: cfg, Hardware: hw, Registry: lookup}},
		{"missing registry", AdapterOptions{Config: cfg, Hardware: hw, Bus: b}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewAdapter(tt.opts); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestNewAdapterDefaults(t *testing.T) {
	cfg := createTestConfig()
	cfg.Hue.CommandTimeout = 0
	cfg.Polling.MaxConcurrency = 0

	a, err := NewAdapter(AdapterOptions{Config: cfg, Hardware: NewFakeHardware(), Bus: bus.New(), Registry: newLookup()})
	if err != nil {
		t.Fatalf("NewAdapter() error = %v", err)
	}
	if a.commandTimeout != defaultCommandTimeout {
		t.Errorf("commandTimeout = %v", a.commandTimeout)
	}
	if a.maxConcurrency != defaultMaxConcurrency {
		t.Errorf("maxConcurrency = %d", a.maxConcurrency)
	}
}

func TestApplyStateLight(t *testing.T) {
	r := newTestRig(t, createTestConfig(), newLookup())

	if err := r.adapter.ApplyState(context.Background(), "L3", StateOn); err != nil {
		t.Fatalf("ApplyState() error = %v", err)
	}

	calls := r.hw.GetCalls()
	if len(calls) != 1 || calls[0] != (hwCall{Op: opSetLight, Address: "3", On: true}) {
		t.Fatalf("calls = %+v", calls)
	}

	s := r.next(t)
	if s.DeviceID != "L3" || s.State != "on" || s.Source != bus.SourceCommand || s.Kind != "light" {
		t.Errorf("broadcast = %+v", s)
	}
	if got := testutil.ToFloat64(r.metrics.commands.WithLabelValues("light", resultOK)); got != 1 {
		t.Errorf("commands{light,ok} = %v", got)
	}
}

func TestApplyStateGroup(t *testing.T) {
	r := newTestRig(t, createTestConfig(), newLookup())

	if err := r.adapter.ApplyState(context.Background(), "G1", StateOff); err != nil {
		t.Fatalf("ApplyState() error = %v", err)
	}

	calls := r.hw.GetCalls()
	if len(calls) != 1 || calls[0] != (hwCall{Op: opSetGroup, Address: "1", On: false}) {
		t.Fatalf("calls = %+v", calls)
	}

	s := r.next(t)
	if s.DeviceID != "G1" || s.State != "off" || s.Kind != "group" {
		t.Errorf("broadcast = %+v", s)
	}
}

func TestApplyStateUnknownIdentifier(t *testing.T) {
	r := newTestRig(t, createTestConfig(), newLookup())

	for _, id := range []string{"X5", ""} {
		if err := r.adapter.ApplyState(context.Background(), id, StateOn); err != nil {
			t.Errorf("ApplyState(%q) error = %v, want nil", id, err)
		}
	}
	if calls := r.hw.GetCalls(); len(calls) != 0 {
		t.Errorf("hardware called for unknown ids: %+v", calls)
	}
	r.expectNone(t)
}

func TestApplyStateInvalidState(t *testing.T) {
	r := newTestRig(t, createTestConfig(), newLookup())

	if err := r.adapter.ApplyState(context.Background(), "L1", DesiredState("dim")); err != nil {
		t.Errorf("ApplyState() error = %v, want nil", err)
	}
	if calls := r.hw.GetCalls(); len(calls) != 0 {
		t.Errorf("hardware called for invalid state: %+v", calls)
	}
	r.expectNone(t)
}

func TestApplyStateHardwareFailure(t *testing.T) {
	r := newTestRig(t, createTestConfig(), newLookup())
	r.hw.fail["4"] = fmt.Errorf("%w: bridge said no", ErrHardware)

	err := r.adapter.ApplyState(context.Background(), "L4", StateOn)
	if !errors.Is(err, ErrHardware) {
		t.Fatalf("ApplyState() error = %v, want ErrHardware", err)
	}
	r.expectNone(t)

	stats := r.adapter.Stats()
	if stats.Errors != 1 || stats.Broadcasts != 0 {
		t.Errorf("stats = %+v", stats)
	}
	if got := testutil.ToFloat64(r.metrics.hardwareErrors.WithLabelValues(opSetLight)); got != 1 {
		t.Errorf("hardware_errors{set_light} = %v", got)
	}
}

func TestCommandFailuresDoNotFlipHealth(t *testing.T) {
	r := newTestRig(t, createTestConfig(), newLookup())
	r.hw.fail["9"] = fmt.Errorf("%w: bridge said no", ErrHardware)

	for _, id := range []string{"L9", "L1", "L9"} {
		_ = r.adapter.ApplyState(context.Background(), id, StateOn) //nolint:errcheck // outcome checked via Health
		if status, reason := r.adapter.Health(); status != HealthHealthy {
			t.Fatalf("Health() after %s = %v (%s), want healthy", id, status, reason)
		}
	}
}

func TestRefreshAllHealth(t *testing.T) {
	unreachable := errors.New("dial tcp: connection refused")
	missing := fmt.Errorf("%w: get light 7", ErrNoData)

	tests := []struct {
		name string
		fail map[string]error
		want HealthStatus
	}{
		{"all reachable", nil, HealthHealthy},
		{"one device unreachable", map[string]error{"1": unreachable}, HealthHealthy},
		{"missing devices only", map[string]error{"1": missing, "2": missing}, HealthHealthy},
		{"every device unreachable", map[string]error{"1": unreachable, "2": unreachable}, HealthDegraded},
		{"timeout and missing", map[string]error{"1": ErrTimeout, "2": missing}, HealthHealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRig(t, createTestConfig(), newLookup("L1", "G2"))
			for addr, err := range tt.fail {
				r.hw.fail[addr] = err
			}

			// Repeat to show the outcome does not depend on completion order.
			for range 5 {
				if err := r.adapter.RefreshAll(context.Background()); err != nil {
					t.Fatalf("RefreshAll() error = %v", err)
				}
				if status, _ := r.adapter.Health(); status != tt.want {
					t.Fatalf("Health() = %v, want %v", status, tt.want)
				}
			}
		})
	}
}

func TestRefreshAllRecoversHealth(t *testing.T) {
	r := newTestRig(t, createTestConfig(), newLookup("L1", "L2"))
	r.hw.fail["1"] = errors.New("no route to host")
	r.hw.fail["2"] = errors.New("no route to host")

	if err := r.adapter.RefreshAll(context.Background()); err != nil {
		t.Fatalf("RefreshAll() error = %v", err)
	}
	if r.adapter.Stats().HardwareOK {
		t.Fatal("HardwareOK = true with every device unreachable")
	}

	// A successful command proves the bridge reachable again.
	if err := r.adapter.ApplyState(context.Background(), "L5", StateOn); err != nil {
		t.Fatalf("ApplyState() error = %v", err)
	}
	if !r.adapter.Stats().HardwareOK {
		t.Error("HardwareOK still false after successful command")
	}

	r.hw.mu.Lock()
	delete(r.hw.fail, "2")
	r.hw.mu.Unlock()
	if err := r.adapter.RefreshAll(context.Background()); err != nil {
		t.Fatalf("RefreshAll() error = %v", err)
	}
	if status, _ := r.adapter.Health(); status != HealthHealthy {
		t.Errorf("Health() = %v, want healthy", status)
	}
}

func TestApplyStateTimeout(t *testing.T) {
	cfg := createTestConfig()
	cfg.Hue.CommandTimeout = 30 * time.Millisecond
	r := newTestRig(t, cfg, newLookup())
	r.hw.block = true

	err := r.adapter.ApplyState(context.Background(), "G7", StateOn)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("ApplyState() error = %v, want ErrTimeout", err)
	}
	r.expectNone(t)
}

func TestRefreshAll(t *testing.T) {
	lookup := newLookup("L1", "G2", "X9", "L3")
	lookup.devices = append(lookup.devices, device.Device{PluginID: "other", DeviceID: "L8"})
	r := newTestRig(t, createTestConfig(), lookup)

	r.hw.lights["1"] = true
	r.hw.groups["2"] = false
	r.hw.fail["3"] = errors.New("unreachable")

	if err := r.adapter.RefreshAll(context.Background()); err != nil {
		t.Fatalf("RefreshAll() error = %v", err)
	}

	got := map[string]string{}
	for range 2 {
		s := r.next(t)
		if s.Source != bus.SourcePoll {
			t.Errorf("source = %q, want poll", s.Source)
		}
		got[s.DeviceID] = s.State
	}
	r.expectNone(t)

	if got["L1"] != "on" || got["G2"] != "off" {
		t.Errorf("broadcasts = %v", got)
	}
	for _, c := range r.hw.GetCalls() {
		if c.Address == "9" || c.Address == "8" {
			t.Errorf("unexpected hardware call %+v", c)
		}
	}
	if stats := r.adapter.Stats(); stats.Errors != 1 {
		t.Errorf("Errors = %d, want 1", stats.Errors)
	}
	if got := testutil.ToFloat64(r.metrics.devices); got != 4 {
		t.Errorf("devices_managed = %v, want 4", got)
	}
}

func TestRefreshAllGroupUsesLastAction(t *testing.T) {
	r := newTestRig(t, createTestConfig(), newLookup("G5"))
	r.hw.groups["5"] = true

	if err := r.adapter.RefreshAll(context.Background()); err != nil {
		t.Fatalf("RefreshAll() error = %v", err)
	}

	s := r.next(t)
	if s.DeviceID != "G5" || s.State != "on" {
		t.Errorf("broadcast = %+v", s)
	}
	calls := r.hw.GetCalls()
	if len(calls) != 1 || calls[0].Op != opGroupStatus || calls[0].Address != "5" {
		t.Errorf("calls = %+v", calls)
	}
}

func TestRefreshAllLookupError(t *testing.T) {
	lookup := &MockLookup{err: errors.New("db closed")}
	r := newTestRig(t, createTestConfig(), lookup)

	if err := r.adapter.RefreshAll(context.Background()); err == nil {
		t.Fatal("RefreshAll() should return lookup error")
	}
	if calls := r.hw.GetCalls(); len(calls) != 0 {
		t.Errorf("hardware called after lookup failure: %+v", calls)
	}
}

func TestRefreshAllEmpty(t *testing.T) {
	r := newTestRig(t, createTestConfig(), newLookup())

	if err := r.adapter.RefreshAll(context.Background()); err != nil {
		t.Fatalf("RefreshAll() error = %v", err)
	}
	r.expectNone(t)
}

func TestRefreshAllConcurrencyLimit(t *testing.T) {
	cfg := createTestConfig()
	cfg.Polling.MaxConcurrency = 2
	r := newTestRig(t, cfg, newLookup("L1", "L2", "L3", "L4", "L5", "L6"))
	r.hw.delay = 20 * time.Millisecond

	if err := r.adapter.RefreshAll(context.Background()); err != nil {
		t.Fatalf("RefreshAll() error = %v", err)
	}

	r.hw.mu.Lock()
	maxInFlight := r.hw.maxInFlight
	r.hw.mu.Unlock()
	if maxInFlight > 2 {
		t.Errorf("max in-flight = %d, want <= 2", maxInFlight)
	}
	if maxInFlight < 2 {
		t.Errorf("max in-flight = %d, queries did not overlap", maxInFlight)
	}
	if n := len(r.hw.GetCalls()); n != 6 {
		t.Errorf("calls = %d, want 6", n)
	}
}

func TestHandleSignal(t *testing.T) {
	r := newTestRig(t, createTestConfig(), newLookup())
	if err := r.adapter.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	r.bus.PublishSignal(bus.Signal{DeviceID: "L2", State: "on"})

	s := r.next(t)
	if s.DeviceID != "L2" || s.State != "on" || s.Source != bus.SourceCommand {
		t.Errorf("broadcast = %+v", s)
	}
}

func TestHandleSignalIgnoresBadState(t *testing.T) {
	r := newTestRig(t, createTestConfig(), newLookup())

	r.adapter.HandleSignal(bus.Signal{DeviceID: "L2", State: "blink"})
	r.expectNone(t)
	if calls := r.hw.GetCalls(); len(calls) != 0 {
		t.Errorf("calls = %+v", calls)
	}
}

func TestHandleSignalFailureDoesNotBlock(t *testing.T) {
	r := newTestRig(t, createTestConfig(), newLookup())
	r.hw.fail["1"] = errors.New("boom")

	r.adapter.HandleSignal(bus.Signal{DeviceID: "L1", State: "on"})
	r.adapter.HandleSignal(bus.Signal{DeviceID: "L2", State: "off"})

	s := r.next(t)
	if s.DeviceID != "L2" {
		t.Errorf("broadcast = %+v, want L2", s)
	}
	r.expectNone(t)
}

func TestHandleSignalAfterStop(t *testing.T) {
	r := newTestRig(t, createTestConfig(), newLookup())
	if err := r.adapter.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	r.adapter.Stop()

	r.adapter.HandleSignal(bus.Signal{DeviceID: "L1", State: "on"})
	r.expectNone(t)
}

func TestStartupRefresh(t *testing.T) {
	cfg := createTestConfig()
	cfg.Polling.StartupDelay = 10 * time.Millisecond
	r := newTestRig(t, cfg, newLookup("L1"))
	r.hw.lights["1"] = true

	if err := r.adapter.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	s := r.next(t)
	if s.DeviceID != "L1" || s.State != "on" || s.Source != bus.SourcePoll {
		t.Errorf("broadcast = %+v", s)
	}
	r.expectNone(t)
}

func TestPeriodicRefresh(t *testing.T) {
	cfg := createTestConfig()
	cfg.Polling.StartupDelay = time.Millisecond
	cfg.Polling.Interval = 20 * time.Millisecond
	r := newTestRig(t, cfg, newLookup("G1"))

	if err := r.adapter.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	for range 3 {
		if s := r.next(t); s.DeviceID != "G1" {
			t.Errorf("broadcast = %+v", s)
		}
	}
}

func TestAdapterStartStop(t *testing.T) {
	cfg := createTestConfig()
	health := &MockHealthPublisher{connected: true}

	a, err := NewAdapter(AdapterOptions{
		Config:          cfg,
		Hardware:        NewFakeHardware(),
		Bus:             bus.New(),
		Registry:        newLookup(),
		HealthPublisher: health,
		Version:         "test",
	})
	if err != nil {
		t.Fatalf("NewAdapter() error = %v", err)
	}

	if err := a.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := a.Start(context.Background()); err == nil {
		t.Error("second Start() should fail")
	}

	a.Stop()
	a.Stop()

	published := health.GetPublished()
	if len(published) < 3 {
		t.Fatalf("published %d health messages, want >= 3", len(published))
	}
	if published[0].Status != HealthStarting {
		t.Errorf("first status = %s, want starting", published[0].Status)
	}
	if published[1].Status != HealthHealthy {
		t.Errorf("second status = %s, want healthy", published[1].Status)
	}
	last := published[len(published)-1]
	if last.Status != HealthStopping || last.Bridge != "hue-bridge-test" || last.Version != "test" {
		t.Errorf("last message = %+v", last)
	}
}

func TestAdapterStartCancelledContext(t *testing.T) {
	r := newTestRig(t, createTestConfig(), newLookup())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := r.adapter.Start(ctx); err == nil {
		t.Error("Start() with cancelled context should fail")
	}
}
