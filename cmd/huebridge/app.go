package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/nerrad567/gray-logic-hue/internal/api"
	"github.com/nerrad567/gray-logic-hue/internal/bridges/hue"
	"github.com/nerrad567/gray-logic-hue/internal/bus"
	"github.com/nerrad567/gray-logic-hue/internal/device"
	"github.com/nerrad567/gray-logic-hue/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-hue/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-hue/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-hue/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-hue/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-hue/migrations"
)

// onceDrainTimeout bounds how long one-shot commands wait for broadcasts
// to reach their subscribers.
const onceDrainTimeout = 2 * time.Second

// newHardwareClient builds the Hue client. Tests replace it with a fake.
var newHardwareClient = func(cfg config.HueConfig, log *logging.Logger) (hue.HardwareClient, error) {
	client, err := hue.NewOpenHueClient(cfg, log)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// runServe runs the adapter until ctx is cancelled.
func runServe(ctx context.Context, configPath string) error {
	log := logging.Default()
	log.Info("starting Gray Logic Hue bridge",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log = logging.New(cfg.Logging, version)
	log.Info("configuration loaded", "path", configPath, "plugin_id", cfg.Plugin.ID)

	db, registry, err := openRegistry(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeDatabase(db, log)

	mqttClient, err := mqtt.Connect(cfg.MQTT, cfg.Bridge.ID)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	mqttClient.SetLogger(log)
	mqttClient.SetOnConnect(func() { log.Info("MQTT reconnected") })
	mqttClient.SetOnDisconnect(func(err error) { log.Warn("MQTT disconnected", "error", err) })
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	influxClient := connectInflux(ctx, cfg, log)
	if influxClient != nil {
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
	}

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	signals := bus.New()
	unsubSinks := attachStateSinks(signals, cfg.Plugin.ID, registry, influxClient, log)
	defer unsubSinks()

	binding, err := bus.NewMQTTBinding(bus.MQTTBindingOptions{
		Bus:    signals,
		Client: mqttClient,
		QoS:    byte(cfg.MQTT.QoS), // #nosec G115 -- validated to 0..2
		Logger: log,
	})
	if err != nil {
		return fmt.Errorf("creating MQTT binding: %w", err)
	}
	if err := binding.Start(); err != nil {
		return fmt.Errorf("starting MQTT binding: %w", err)
	}
	defer binding.Stop()

	hw, err := newHardwareClient(cfg.Hue, log)
	if err != nil {
		return fmt.Errorf("creating Hue client: %w", err)
	}

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	adapter, err := hue.NewAdapter(hue.AdapterOptions{
		Config:          cfg,
		Hardware:        hw,
		Bus:             signals,
		Registry:        registry,
		HealthPublisher: mqttClient,
		Metrics:         hue.NewMetrics(promRegistry),
		Logger:          log,
		Version:         version,
	})
	if err != nil {
		return fmt.Errorf("creating Hue adapter: %w", err)
	}
	if err := adapter.Start(ctx); err != nil {
		return fmt.Errorf("starting Hue adapter: %w", err)
	}
	defer adapter.Stop()

	if cfg.API.Enabled {
		server, err := api.New(api.Deps{
			Config:   cfg.API,
			PluginID: cfg.Plugin.ID,
			Logger:   log,
			Adapter:  adapter,
			Devices:  registry,
			Bus:      signals,
			Gatherer: promRegistry,
			Version:  version,
		})
		if err != nil {
			return fmt.Errorf("creating API server: %w", err)
		}
		if err := server.Start(ctx); err != nil {
			return fmt.Errorf("starting API server: %w", err)
		}
		defer func() {
			if closeErr := server.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	}

	watcher := config.NewWatcher(configPath, 0, log.Logger)
	reload := newReloader(cfg, registry, adapter, log)
	watcher.OnReload(func(newCfg *config.Config) {
		reload.apply(ctx, newCfg)
	})
	if err := watcher.Start(); err != nil {
		log.Warn("config watcher disabled", "error", err)
	} else {
		defer watcher.Stop() //nolint:errcheck // shutdown path
	}

	notifySystemd(log, daemon.SdNotifyReady)
	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")
	notifySystemd(log, daemon.SdNotifyStopping)
	return nil
}

// runOnce runs fn against a freshly built adapter, prints every resulting
// broadcast to out and persists it to the registry.
func runOnce(ctx context.Context, configPath string, publish bool, out io.Writer, fn func(*hue.Adapter) error) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log := logging.New(cfg.Logging, version)

	db, registry, err := openRegistry(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeDatabase(db, log)

	signals := bus.New()

	var mu sync.Mutex
	received := 0
	unsubPrint := signals.SubscribeStates(func(s bus.StateBroadcast) {
		printBroadcast(out, s)
		mu.Lock()
		received++
		mu.Unlock()
	})
	defer unsubPrint()

	unsubSinks := attachStateSinks(signals, cfg.Plugin.ID, registry, nil, log)
	defer unsubSinks()

	if publish {
		mqttClient, err := mqtt.Connect(cfg.MQTT, cfg.Bridge.ID)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer mqttClient.Close() //nolint:errcheck // one-shot command exit path

		binding, err := bus.NewMQTTBinding(bus.MQTTBindingOptions{Bus: signals, Client: mqttClient, Logger: log})
		if err != nil {
			return err
		}
		if err := binding.Start(); err != nil {
			return err
		}
		defer binding.Stop()
	}

	hw, err := newHardwareClient(cfg.Hue, log)
	if err != nil {
		return fmt.Errorf("creating Hue client: %w", err)
	}
	adapter, err := hue.NewAdapter(hue.AdapterOptions{
		Config:   cfg,
		Hardware: hw,
		Bus:      signals,
		Registry: registry,
		Logger:   log,
		Version:  version,
	})
	if err != nil {
		return fmt.Errorf("creating Hue adapter: %w", err)
	}
	defer adapter.Stop()

	runErr := fn(adapter)

	// Broadcasts are delivered asynchronously; wait until all have been printed.
	want := adapter.Stats().Broadcasts
	deadline := time.Now().Add(onceDrainTimeout)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := received
		mu.Unlock()
		if uint64(n) >= want {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	return runErr
}

// openRegistry opens the database, applies migrations and seeds the device
// registry from the config's device list.
func openRegistry(ctx context.Context, cfg *config.Config, log *logging.Logger) (*database.DB, *device.Registry, error) {
	db, err := database.Open(ctx, cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Migrate(ctx, migrations.FS); err != nil {
		db.Close() //nolint:errcheck // already failing
		return nil, nil, fmt.Errorf("running migrations: %w", err)
	}

	registry := device.NewRegistry(device.NewSQLiteRepository(db.DB))
	registry.SetLogger(log)
	if err := registry.RefreshCache(ctx); err != nil {
		db.Close() //nolint:errcheck // already failing
		return nil, nil, fmt.Errorf("loading device registry: %w", err)
	}

	result, err := registry.SyncPlugin(ctx, cfg.Plugin.ID, seedsFromConfig(cfg))
	if err != nil {
		log.Warn("device seeding incomplete", "error", err)
	}
	log.Info("device registry initialised",
		"devices", registry.GetDeviceCount(),
		"created", result.Created,
		"updated", result.Updated,
		"deleted", result.Deleted,
	)
	return db, registry, nil
}

func seedsFromConfig(cfg *config.Config) []device.Seed {
	seeds := make([]device.Seed, 0, len(cfg.Devices))
	for _, d := range cfg.Devices {
		seeds = append(seeds, device.Seed{DeviceID: d.DeviceID, Name: d.Name})
	}
	return seeds
}

// connectInflux returns nil when history is disabled or unreachable; the
// adapter runs without it.
func connectInflux(ctx context.Context, cfg *config.Config, log *logging.Logger) *influxdb.Client {
	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
	if errors.Is(err, influxdb.ErrDisabled) {
		log.Info("InfluxDB disabled")
		return nil
	}
	if err != nil {
		log.Warn("InfluxDB unavailable, state history disabled", "error", err)
		return nil
	}

	client.SetOnError(func(err error) {
		log.Error("InfluxDB write error", "error", err)
	})
	log.Info("InfluxDB connected",
		"url", cfg.InfluxDB.URL,
		"org", cfg.InfluxDB.Org,
		"bucket", cfg.InfluxDB.Bucket,
	)
	return client
}

// deviceSyncer re-seeds the registry from a device list.
type deviceSyncer interface {
	SyncPlugin(ctx context.Context, pluginID string, seeds []device.Seed) (device.SyncResult, error)
}

// refresher re-queries every registered device.
type refresher interface {
	RefreshAll(ctx context.Context) error
}

// reloader re-seeds the registry and refreshes state after the config file
// changes. Connection settings need a restart; a change to them is reported
// once, against the previously seen file.
type reloader struct {
	pluginID string
	last     *config.Config
	registry deviceSyncer
	adapter  refresher
	log      *logging.Logger
}

func newReloader(running *config.Config, registry deviceSyncer, adapter refresher, log *logging.Logger) *reloader {
	return &reloader{
		pluginID: running.Plugin.ID,
		last:     running,
		registry: registry,
		adapter:  adapter,
		log:      log,
	}
}

// apply is called from the watcher goroutine only.
func (r *reloader) apply(ctx context.Context, next *config.Config) {
	prev := r.last
	r.last = next

	if next.Hue.IP != prev.Hue.IP || next.Hue.Username != prev.Hue.Username {
		r.log.Warn("hue connection settings changed; restart to apply")
	}
	if next.Plugin.ID != prev.Plugin.ID {
		r.log.Warn("plugin id changed; restart to apply", "running", r.pluginID, "new", next.Plugin.ID)
	}

	result, err := r.registry.SyncPlugin(ctx, r.pluginID, seedsFromConfig(next))
	if err != nil {
		r.log.Error("re-seeding devices failed", "error", err)
	}
	r.log.Info("config reloaded",
		"created", result.Created,
		"updated", result.Updated,
		"deleted", result.Deleted,
	)

	if err := r.adapter.RefreshAll(ctx); err != nil {
		r.log.Error("refresh after reload failed", "error", err)
	}
}

func closeDatabase(db *database.DB, log *logging.Logger) {
	log.Info("closing database")
	if err := db.Close(); err != nil {
		log.Error("error closing database", "error", err)
	}
}

// healthCheck verifies the infrastructure connections. influxClient may be nil.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}
	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}
	return nil
}

func notifySystemd(log *logging.Logger, state string) {
	sent, err := daemon.SdNotify(false, state)
	if err != nil {
		log.Warn("systemd notify failed", "error", err)
		return
	}
	if sent {
		log.Debug("systemd notified", "state", state)
	}
}
