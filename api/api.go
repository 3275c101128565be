package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/vocdoni/zkpoll/log"
	"github.com/vocdoni/zkpoll/poll"
)

const (
	maxRequestBodyLog = 512 // Maximum length of request body to log
)

// APIConfig type represents the configuration for the API HTTP server.
// It includes the host, port and the poll manager instance to serve.
type APIConfig struct {
	Host    string
	Port    int
	Manager *poll.Manager
}

// API type represents the API HTTP server on top of a poll manager.
type API struct {
	router     *chi.Mux
	manager    *poll.Manager
	instanceID uuid.UUID
	startTime  time.Time
}

// New creates a new API instance with the given configuration and starts the
// HTTP server.
func New(conf *APIConfig) (*API, error) {
	if conf == nil {
		return nil, fmt.Errorf("missing API configuration")
	}
	if conf.Manager == nil {
		return nil, fmt.Errorf("missing poll manager instance")
	}
	a := &API{
		manager:    conf.Manager,
		instanceID: uuid.New(),
		startTime:  time.Now(),
	}

	// Initialize router
	a.initRouter()
	go func() {
		log.Infow("starting API server", "host", conf.Host, "port", conf.Port)
		if err := http.ListenAndServe(fmt.Sprintf("%s:%d", conf.Host, conf.Port), a.router); err != nil {
			log.Fatalf("failed to start the API server: %v", err)
		}
	}()
	return a, nil
}

// Router returns the chi router for testing purposes
func (a *API) Router() *chi.Mux {
	return a.router
}

// registerHandlers registers all the HTTP handlers for the API endpoints.
func (a *API) registerHandlers() {
	// The following endpoints are registered:
	// - GET /ping: No parameters
	// - POST /polls: No parameters
	// - GET /polls: No parameters
	// - GET /polls/<pollId>: No parameters
	// - GET /polls/<pollId>/results: No parameters
	// - POST /polls/<pollId>/votes: No parameters
	// - POST /polls/<pollId>/end: No parameters
	// - GET /polls/<pollId>/nullifiers/<nullifier>: No parameters
	// - POST /verification-key: No parameters
	// - GET /verification-key: No parameters
	log.Infow("register handler", "endpoint", PingEndpoint, "method", "GET")
	a.router.Get(PingEndpoint, a.ping)
	// poll endpoints
	log.Infow("register handler", "endpoint", PollsEndpoint, "method", "POST")
	a.router.Post(PollsEndpoint, a.newPoll)
	log.Infow("register handler", "endpoint", PollsEndpoint, "method", "GET")
	a.router.Get(PollsEndpoint, a.listPolls)
	log.Infow("register handler", "endpoint", PollEndpoint, "method", "GET")
	a.router.Get(PollEndpoint, a.pollInfo)
	log.Infow("register handler", "endpoint", PollResultsEndpoint, "method", "GET")
	a.router.Get(PollResultsEndpoint, a.pollResults)
	log.Infow("register handler", "endpoint", PollEndEndpoint, "method", "POST")
	a.router.Post(PollEndEndpoint, a.endPoll)
	// vote endpoints
	log.Infow("register handler", "endpoint", PollVotesEndpoint, "method", "POST")
	a.router.Post(PollVotesEndpoint, a.newVote)
	log.Infow("register handler", "endpoint", PollNullifierEndpoint, "method", "GET")
	a.router.Get(PollNullifierEndpoint, a.nullifierStatus)
	// verification key endpoints
	log.Infow("register handler", "endpoint", VerificationKeyEndpoint, "method", "POST")
	a.router.Post(VerificationKeyEndpoint, a.setVerificationKey)
	log.Infow("register handler", "endpoint", VerificationKeyEndpoint, "method", "GET")
	a.router.Get(VerificationKeyEndpoint, a.verificationKey)
}

// initRouter creates the router with all the routes and middleware.
func (a *API) initRouter() {
	a.router = chi.NewRouter()
	a.router.Use(cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		AllowCredentials: true,
		MaxAge:           300,
	}).Handler)
	a.router.Use(loggingMiddleware(maxRequestBodyLog))
	a.router.Use(middleware.Recoverer)
	a.router.Use(middleware.Throttle(100))
	a.router.Use(middleware.ThrottleBacklog(5000, 40000, 60*time.Second))
	a.router.Use(middleware.Timeout(45 * time.Second))

	a.registerHandlers()
}

// ping handles the health check endpoint, reporting the instance id and
// uptime.
func (a *API) ping(w http.ResponseWriter, _ *http.Request) {
	httpWriteJSON(w, PingResponse{
		InstanceID: a.instanceID.String(),
		Uptime:     time.Since(a.startTime).String(),
	})
}
