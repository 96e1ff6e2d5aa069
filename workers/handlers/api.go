package handlers

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi"
	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-metrics"

	"lzbridge/bridge"
	"lzbridge/deploy"
)

// API serves the bridge environment over HTTP
type API struct {
	Env   *deploy.Environment
	Store bridge.OperationStore
	// Health reports backing services, nil means always healthy
	Health     func() error
	AdminToken string
	// lzReceive gas used when a request does not name one
	DefaultGas uint64
	// spent nonces of signed requests
	Nonces SignatureNonces
	// served on /metrics when set
	Metrics *metrics.InmemSink
	Logger  hclog.Logger
	// clock for signature deadlines, time.Now when nil
	Now func() time.Time
}

func (api *API) now() time.Time {
	if api.Now != nil {
		return api.Now()
	}
	return time.Now()
}

func (api *API) contract(w http.ResponseWriter, name string) (*deploy.Contract, bool) {
	c, ok := api.Env.Contract(name)
	if !ok {
		responseError(w, "contract", "Unknown contract", http.StatusNotFound)
	}
	return c, ok
}

// adminOnly rejects requests without the configured bearer token
func (api *API) adminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if api.AdminToken == "" || subtle.ConstantTimeCompare([]byte(token), []byte(api.AdminToken)) != 1 {
			responseError(w, "", "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Routes mounts every handler on r
func (api *API) Routes(r chi.Router) {
	r.Get("/state", api.State)
	r.Get("/health", api.HealthCheck)

	r.Get("/peers/{contract}", api.Peers)
	r.Get("/balance/{contract}/{address}", api.Balance)
	r.Get("/quote", api.Quote)

	r.Post("/approve", api.Approve)
	r.Post("/bridge", api.Bridge)

	r.Get("/operations/{guid}", api.Operation)
	r.Get("/stats/{status}", api.Stats)

	if api.Metrics != nil {
		r.Get("/metrics", api.MetricsSnapshot)
	}

	r.Group(func(r chi.Router) {
		r.Use(api.adminOnly)
		r.Post("/admin/verify", api.Verify)
		r.Post("/admin/mint", api.Mint)
	})
}
