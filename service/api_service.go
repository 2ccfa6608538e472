package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/vocdoni/zk-ballotbox/api"
	"github.com/vocdoni/zk-ballotbox/election"
	"github.com/vocdoni/zk-ballotbox/log"
)

// ShutdownTimeout bounds how long Stop waits for in-flight requests.
var ShutdownTimeout = 10 * time.Second

// APIService represents a service that manages the HTTP API server.
type APIService struct {
	manager     *election.Manager
	API         *api.API
	mu          sync.Mutex
	cancel      context.CancelFunc
	stopped     chan struct{}
	host        string
	port        int
	strictPaths bool
}

// NewAPI creates a new APIService instance.
func NewAPI(manager *election.Manager, host string, port int, strictPaths, disableLogging bool) *APIService {
	if disableLogging {
		api.DisabledLogging = disableLogging
		log.Debugw("API logging is disabled")
	}
	return &APIService{
		manager:     manager,
		host:        host,
		port:        port,
		strictPaths: strictPaths,
	}
}

// Start begins the API server. It returns an error if the service
// is already running or if it fails to start. The server is stopped when
// ctx is done.
func (as *APIService) Start(ctx context.Context) error {
	as.mu.Lock()
	defer as.mu.Unlock()

	if as.cancel != nil {
		return fmt.Errorf("service already running")
	}

	a, err := api.New(&api.APIConfig{
		Host:        as.host,
		Port:        as.port,
		Manager:     as.manager,
		StrictPaths: as.strictPaths,
	})
	if err != nil {
		return fmt.Errorf("failed to create API server: %w", err)
	}
	if err := a.Start(); err != nil {
		return fmt.Errorf("failed to start API server: %w", err)
	}
	as.API = a

	var sctx context.Context
	sctx, as.cancel = context.WithCancel(ctx)
	as.stopped = make(chan struct{})
	go func(stopped chan struct{}) {
		defer close(stopped)
		<-sctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		if err := a.Stop(shutdownCtx); err != nil {
			log.Warnw("API server shutdown", "error", err)
		}
		log.Infow("API server stopped", "addr", a.Addr())
	}(as.stopped)
	return nil
}

// Stop halts the API server and waits for in-flight requests, up to
// ShutdownTimeout.
func (as *APIService) Stop() {
	as.mu.Lock()
	defer as.mu.Unlock()

	if as.cancel != nil {
		as.cancel()
		<-as.stopped
		as.cancel = nil
	}
}

// HostPort returns the host and port of the API server.
func (as *APIService) HostPort() (string, int) {
	return as.host, as.port
}

// Addr returns the address the server listens on.
func (as *APIService) Addr() string {
	as.mu.Lock()
	defer as.mu.Unlock()
	if as.API == nil {
		return ""
	}
	return as.API.Addr()
}
