package device

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Logger defines the logging interface used by the Registry.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Registry provides device management with caching and thread safety.
// It wraps a Repository and adds an in-memory cache for fast lookups.
//
// The cache is populated via RefreshCache() and kept in sync by the
// registry's own write operations. Every returned Device is a deep copy.
//
// All public methods are thread-safe.
type Registry struct {
	repo   Repository
	logger Logger

	cacheMu sync.RWMutex
	cache   map[string]*Device // by registry ID
	loaded  bool
}

// NewRegistry creates a new device registry.
func NewRegistry(repo Repository) *Registry {
	return &Registry{
		repo:   repo,
		cache:  make(map[string]*Device),
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	r.logger = logger
}

// RefreshCache reloads all devices from the repository into the cache.
func (r *Registry) RefreshCache(ctx context.Context) error {
	devices, err := r.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("loading devices: %w", err)
	}

	cache := make(map[string]*Device, len(devices))
	for i := range devices {
		cache[devices[i].ID] = devices[i].DeepCopy()
	}

	r.cacheMu.Lock()
	r.cache = cache
	r.loaded = true
	r.cacheMu.Unlock()

	r.logger.Info("device cache refreshed", "count", len(devices))
	return nil
}

// GetDevice retrieves a device by registry ID.
// Returns ErrDeviceNotFound if the device does not exist.
func (r *Registry) GetDevice(ctx context.Context, id string) (*Device, error) {
	r.cacheMu.RLock()
	cached, ok := r.cache[id]
	r.cacheMu.RUnlock()
	if ok {
		return cached.DeepCopy(), nil
	}

	device, err := r.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	r.cacheMu.Lock()
	r.cache[id] = device.DeepCopy()
	r.cacheMu.Unlock()

	return device, nil
}

// ListDevices retrieves all devices ordered by plugin and device_id.
func (r *Registry) ListDevices(ctx context.Context) ([]Device, error) {
	return r.filter(ctx, func(*Device) bool { return true }, r.repo.List)
}

// GetDevicesByPluginID returns every device registered for an adapter
// instance, ordered by device_id. An unknown plugin yields an empty list.
func (r *Registry) GetDevicesByPluginID(ctx context.Context, pluginID string) ([]Device, error) {
	return r.filter(ctx,
		func(d *Device) bool { return d.PluginID == pluginID },
		func(ctx context.Context) ([]Device, error) { return r.repo.ListByPlugin(ctx, pluginID) },
	)
}

// FindByDeviceID looks up a plugin's device by its tagged identifier.
func (r *Registry) FindByDeviceID(ctx context.Context, pluginID, deviceID string) (*Device, error) {
	devices, err := r.GetDevicesByPluginID(ctx, pluginID)
	if err != nil {
		return nil, err
	}
	for i := range devices {
		if devices[i].DeviceID == deviceID {
			return &devices[i], nil
		}
	}
	return nil, ErrDeviceNotFound
}

// filter serves from the cache once loaded, otherwise from the repository.
func (r *Registry) filter(ctx context.Context, keep func(*Device) bool, fallback func(context.Context) ([]Device, error)) ([]Device, error) {
	r.cacheMu.RLock()
	if !r.loaded {
		r.cacheMu.RUnlock()
		return fallback(ctx)
	}
	devices := make([]Device, 0, len(r.cache))
	for _, d := range r.cache {
		if keep(d) {
			devices = append(devices, *d.DeepCopy())
		}
	}
	r.cacheMu.RUnlock()

	sortDevices(devices)
	return devices, nil
}

// CreateDevice validates and persists a new device.
func (r *Registry) CreateDevice(ctx context.Context, device *Device) error {
	if device.ID == "" {
		device.ID = GenerateID()
	}
	if err := ValidateDevice(device); err != nil {
		return err
	}
	if err := r.repo.Create(ctx, device); err != nil {
		return err
	}

	r.cacheMu.Lock()
	r.cache[device.ID] = device.DeepCopy()
	r.cacheMu.Unlock()

	r.logger.Info("device created", "plugin_id", device.PluginID, "device_id", device.DeviceID, "name", device.Name)
	return nil
}

// RenameDevice changes the display name of a device.
func (r *Registry) RenameDevice(ctx context.Context, id, name string) error {
	device, err := r.GetDevice(ctx, id)
	if err != nil {
		return err
	}
	device.Name = name
	if err := ValidateDevice(device); err != nil {
		return err
	}
	if err := r.repo.Update(ctx, device); err != nil {
		return err
	}

	r.cacheMu.Lock()
	r.cache[id] = device.DeepCopy()
	r.cacheMu.Unlock()

	r.logger.Info("device renamed", "device_id", device.DeviceID, "name", name)
	return nil
}

// DeleteDevice removes a device.
func (r *Registry) DeleteDevice(ctx context.Context, id string) error {
	if err := r.repo.Delete(ctx, id); err != nil {
		return err
	}

	r.cacheMu.Lock()
	delete(r.cache, id)
	r.cacheMu.Unlock()

	r.logger.Info("device deleted", "id", id)
	return nil
}

// SetDeviceState records the last broadcast state of a plugin's device.
// Returns ErrDeviceNotFound if the device is not registered.
func (r *Registry) SetDeviceState(ctx context.Context, pluginID, deviceID, state, source string, at time.Time) error {
	if state != StateOn && state != StateOff {
		return fmt.Errorf("%w: state %q", ErrInvalidDevice, state)
	}

	device, err := r.FindByDeviceID(ctx, pluginID, deviceID)
	if err != nil {
		return err
	}
	if err := r.repo.UpdateState(ctx, device.ID, state, source, at); err != nil {
		return err
	}

	ts := at.UTC()
	r.cacheMu.Lock()
	if cached, ok := r.cache[device.ID]; ok {
		updated := cached.DeepCopy()
		updated.State = &state
		updated.StateSource = source
		updated.StateUpdatedAt = &ts
		r.cache[device.ID] = updated
	}
	r.cacheMu.Unlock()

	r.logger.Debug("device state updated", "device_id", deviceID, "state", state, "source", source)
	return nil
}

// SyncPlugin reconciles a plugin's registered devices with seeds.
//
// Missing devices are created, renamed ones updated and devices no longer
// declared deleted. Devices of other plugins are untouched. Errors are
// collected so one bad row does not block the rest.
func (r *Registry) SyncPlugin(ctx context.Context, pluginID string, seeds []Seed) (SyncResult, error) {
	var result SyncResult

	existing, err := r.GetDevicesByPluginID(ctx, pluginID)
	if err != nil {
		return result, fmt.Errorf("listing plugin devices: %w", err)
	}
	byDeviceID := make(map[string]Device, len(existing))
	for _, d := range existing {
		byDeviceID[d.DeviceID] = d
	}

	var errs []error
	declared := make(map[string]bool, len(seeds))
	for _, seed := range seeds {
		declared[seed.DeviceID] = true

		current, ok := byDeviceID[seed.DeviceID]
		switch {
		case !ok:
			err := r.CreateDevice(ctx, &Device{PluginID: pluginID, DeviceID: seed.DeviceID, Name: seed.Name})
			if err != nil {
				errs = append(errs, fmt.Errorf("creating %s: %w", seed.DeviceID, err))
				continue
			}
			result.Created++
		case current.Name != seed.Name:
			if err := r.RenameDevice(ctx, current.ID, seed.Name); err != nil {
				errs = append(errs, fmt.Errorf("renaming %s: %w", seed.DeviceID, err))
				continue
			}
			result.Updated++
		}
	}

	for _, d := range existing {
		if declared[d.DeviceID] {
			continue
		}
		if err := r.DeleteDevice(ctx, d.ID); err != nil && !errors.Is(err, ErrDeviceNotFound) {
			errs = append(errs, fmt.Errorf("deleting %s: %w", d.DeviceID, err))
			continue
		}
		result.Deleted++
	}

	r.logger.Info("plugin devices synced",
		"plugin_id", pluginID,
		"created", result.Created,
		"updated", result.Updated,
		"deleted", result.Deleted,
	)
	return result, errors.Join(errs...)
}

// GetDeviceCount returns the number of cached devices.
func (r *Registry) GetDeviceCount() int {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()
	return len(r.cache)
}

func sortDevices(devices []Device) {
	sort.Slice(devices, func(i, j int) bool {
		if devices[i].PluginID != devices[j].PluginID {
			return devices[i].PluginID < devices[j].PluginID
		}
		return devices[i].DeviceID < devices[j].DeviceID
	})
}
