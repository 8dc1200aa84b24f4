// Package device is the registry of Hue lights and groups an adapter instance manages.
//
// Each row belongs to one adapter instance (plugin_id) and names a device by
// its tagged identifier (device_id), e.g. "L3" for light 3 or "G1" for
// group 1. The registry is the source of the device list the status poller
// walks, and it records the last broadcast on/off state of each device.
//
// # Architecture
//
// Registry wraps a Repository with an in-memory cache:
//
//	Poller / API ─► Registry (cache, thread-safe) ─► SQLiteRepository ─► devices table
//
// Devices declared in the adapter config are reconciled into the registry
// with SyncPlugin at start-up and on every config reload.
//
// # Usage
//
//	repo := device.NewSQLiteRepository(db.DB)
//	registry := device.NewRegistry(repo)
//	if err := registry.RefreshCache(ctx); err != nil {
//	    return err
//	}
//	devices, err := registry.GetDevicesByPluginID(ctx, "hue")
package device
