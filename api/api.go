package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/vocdoni/zk-ballotbox/election"
	"github.com/vocdoni/zk-ballotbox/log"
)

const (
	maxRequestBodyLog = 512 // Maximum length of request body to log
)

// APIConfig type represents the configuration for the API HTTP server.
type APIConfig struct {
	Host    string
	Port    int
	Manager *election.Manager
	// StrictPaths is applied to new elections that do not set it.
	StrictPaths bool
}

// API type represents the HTTP server of the ballot box.
type API struct {
	router      *chi.Mux
	manager     *election.Manager
	strictPaths bool
	addr        string
	server      *http.Server
	listener    net.Listener
}

// New creates a new API instance with the given configuration. The server
// does not listen until Start is called.
func New(conf *APIConfig) (*API, error) {
	if conf == nil {
		return nil, fmt.Errorf("missing API configuration")
	}
	if conf.Manager == nil {
		return nil, fmt.Errorf("missing election manager")
	}
	a := &API{
		manager:     conf.Manager,
		strictPaths: conf.StrictPaths,
		addr:        net.JoinHostPort(conf.Host, fmt.Sprint(conf.Port)),
	}
	a.initRouter()
	return a, nil
}

// Start binds the listen address and serves the API in the background.
func (a *API) Start() error {
	ln, err := net.Listen("tcp", a.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", a.addr, err)
	}
	a.listener = ln
	a.server = &http.Server{
		Handler:           a.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Infow("starting API server", "addr", ln.Addr().String())
		if err := a.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorw(err, "API server stopped")
		}
	}()
	return nil
}

// Addr returns the address the server listens on, once started.
func (a *API) Addr() string {
	if a.listener == nil {
		return a.addr
	}
	return a.listener.Addr().String()
}

// Stop shuts the server down, waiting for in-flight requests until ctx is
// done.
func (a *API) Stop(ctx context.Context) error {
	if a.server == nil {
		return nil
	}
	return a.server.Shutdown(ctx)
}

// Router returns the chi router for testing purposes
func (a *API) Router() *chi.Mux {
	return a.router
}

// registerHandlers registers all the HTTP handlers for the API endpoints.
func (a *API) registerHandlers() {
	log.Infow("register handler", "endpoint", PingEndpoint, "method", "GET")
	a.router.Get(PingEndpoint, func(w http.ResponseWriter, r *http.Request) {
		httpWriteOK(w)
	})
	// elections endpoints
	log.Infow("register handler", "endpoint", ElectionsEndpoint, "method", "POST")
	a.router.Post(ElectionsEndpoint, a.newElection)
	log.Infow("register handler", "endpoint", ElectionsEndpoint, "method", "GET")
	a.router.Get(ElectionsEndpoint, a.listElections)

	// every route below resolves its election first
	a.router.Group(func(r chi.Router) {
		r.Use(electionMiddleware(a.manager))

		log.Infow("register handler", "endpoint", ElectionEndpoint, "method", "GET")
		r.Get(ElectionEndpoint, a.electionInfo)
		log.Infow("register handler", "endpoint", ElectionRootEndpoint, "method", "GET")
		r.Get(ElectionRootEndpoint, a.electionRoot)
		// registration endpoints
		log.Infow("register handler", "endpoint", PathEndpoint, "method", "GET", "parameters", IndexQueryParam)
		r.Get(PathEndpoint, a.electionPath)
		log.Infow("register handler", "endpoint", RegisterEndpoint, "method", "POST")
		r.Post(RegisterEndpoint, a.register)
		// votes endpoints
		log.Infow("register handler", "endpoint", VotesEndpoint, "method", "POST")
		r.Post(VotesEndpoint, a.newVote)
		log.Infow("register handler", "endpoint", NullifierEndpoint, "method", "GET")
		r.Get(NullifierEndpoint, a.nullifierStatus)
		// ballot ledger endpoints
		log.Infow("register handler", "endpoint", BallotsEndpoint, "method", "GET",
			"parameters", FromQueryParam+","+ToQueryParam)
		r.Get(BallotsEndpoint, a.ballots)
		log.Infow("register handler", "endpoint", BallotEndpoint, "method", "GET")
		r.Get(BallotEndpoint, a.ballot)
		// results endpoints
		log.Infow("register handler", "endpoint", ResultsEndpoint, "method", "GET")
		r.Get(ResultsEndpoint, a.results)
		log.Infow("register handler", "endpoint", ResultsEndpoint, "method", "POST")
		r.Post(ResultsEndpoint, a.submitResults)
	})
}

// initRouter creates the router with all the routes and middleware.
func (a *API) initRouter() {
	a.router = chi.NewRouter()
	a.router.Use(cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}).Handler)
	a.router.Use(loggingMiddleware(maxRequestBodyLog))
	a.router.Use(middleware.Recoverer)
	a.router.Use(middleware.Throttle(100))
	a.router.Use(middleware.ThrottleBacklog(5000, 40000, 60*time.Second))
	a.router.Use(middleware.Timeout(45 * time.Second))
	a.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		ErrResourceNotFound.Withf("%s %s", r.Method, r.URL.Path).Write(w)
	})

	a.registerHandlers()
}
