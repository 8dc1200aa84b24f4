package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nerrad567/gray-logic-hue/internal/bridges/hue"
	"github.com/nerrad567/gray-logic-hue/internal/bus"
	"github.com/nerrad567/gray-logic-hue/internal/device"
	"github.com/nerrad567/gray-logic-hue/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-hue/internal/infrastructure/logging"
)

const (
	gracefulShutdownTimeout = 10 * time.Second
	readTimeout             = 10 * time.Second
	writeTimeout            = 30 * time.Second
	idleTimeout             = 60 * time.Second
)

// Controller is the adapter surface the API drives.
type Controller interface {
	ApplyState(ctx context.Context, id string, desired hue.DesiredState) error
	RefreshAll(ctx context.Context) error
	Health() (hue.HealthStatus, string)
}

// DeviceLister returns the devices registered for a plugin.
type DeviceLister interface {
	GetDevicesByPluginID(ctx context.Context, pluginID string) ([]device.Device, error)
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	PluginID string
	Logger   *logging.Logger
	Adapter  Controller
	Devices  DeviceLister

	// Bus is optional; without it the WebSocket stream stays silent.
	Bus *bus.Bus

	// Gatherer serves /metrics. Defaults to prometheus.DefaultGatherer.
	Gatherer prometheus.Gatherer

	Version string
}

// Server is the admin HTTP server.
type Server struct {
	cfg      config.APIConfig
	pluginID string
	logger   *logging.Logger
	adapter  Controller
	devices  DeviceLister
	bus      *bus.Bus
	gatherer prometheus.Gatherer
	version  string

	hub         *Hub
	server      *http.Server
	listener    net.Listener
	cancel      context.CancelFunc
	unsubStates func()
}

// New creates an API server. It does not listen until Start is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Adapter == nil {
		return nil, fmt.Errorf("adapter is required")
	}
	if deps.Devices == nil {
		return nil, fmt.Errorf("device registry is required")
	}

	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	return &Server{
		cfg:      deps.Config,
		pluginID: deps.PluginID,
		logger:   deps.Logger,
		adapter:  deps.Adapter,
		devices:  deps.Devices,
		bus:      deps.Bus,
		gatherer: gatherer,
		version:  deps.Version,
		hub:      NewHub(deps.Logger),
	}, nil
}

// Start relays bus broadcasts to WebSocket clients and begins serving HTTP
// in the background.
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)
	go s.hub.Run(srvCtx)

	if s.bus != nil {
		s.unsubStates = s.bus.SubscribeStates(func(sb bus.StateBroadcast) {
			s.hub.Broadcast(ChannelStateChanged, bus.NewStateMessage(sb))
		})
	}

	ln, err := net.Listen("tcp", fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port))
	if err != nil {
		s.cancel()
		return fmt.Errorf("listening on %s:%d: %w", s.cfg.Host, s.cfg.Port, err)
	}
	s.listener = ln

	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadTimeout:       readTimeout,
		ReadHeaderTimeout: readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	s.logger.Info("API server started", "address", ln.Addr().String())
	return nil
}

// Addr returns the listening address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Close gracefully shuts down the server, waiting up to 10 seconds for
// in-flight requests.
func (s *Server) Close() error {
	if s.unsubStates != nil {
		s.unsubStates()
		s.unsubStates = nil
	}
	if s.cancel != nil {
		s.cancel()
	}
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}
