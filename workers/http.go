package workers

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/hashicorp/go-hclog"

	"lzbridge/config"
	"lzbridge/workers/handlers"
)

func NewRouter(api *handlers.API) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Options("/*", CORSHeaders)

	api.Routes(r)

	return r
}

// Worker_HTTP serves the API until ctx is cancelled
func Worker_HTTP(ctx context.Context, api *handlers.API, logger hclog.Logger) error {
	logger = logger.Named("http")
	logger.Info("starting HTTP service")

	var server *http.Server

	if config.Config.Server.UseSSL {
		cert, err := tls.LoadX509KeyPair("certchain.pem", "privatekey.pem")
		if err != nil {
			return fmt.Errorf("cannot load TLS key pair: %w", err)
		}
		server = &http.Server{
			Addr:    ":443",
			Handler: NewRouter(api),
			TLSConfig: &tls.Config{
				Certificates: []tls.Certificate{cert},
				MinVersion:   tls.VersionTLS12,
			},
			ReadHeaderTimeout: 10 * time.Second,
		}
	} else {
		server = &http.Server{
			Addr:              fmt.Sprintf(":%d", config.Config.Server.Port),
			Handler:           NewRouter(api),
			ReadHeaderTimeout: 10 * time.Second,
		}
	}

	errs := make(chan error, 1)
	go func() {
		var err error
		if config.Config.Server.UseSSL {
			err = server.ListenAndServeTLS("", "")
		} else {
			err = server.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			errs <- err
		}
		close(errs)
	}()
	logger.Info("HTTP service started", "addr", server.Addr)

	select {
	case err := <-errs:
		if err != nil {
			return fmt.Errorf("error listening to %s: %w", server.Addr, err)
		}
	case <-ctx.Done():
	}
	logger.Info("HTTP service stopped")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("HTTP service shutdown error: %w", err)
	}
	logger.Info("HTTP service shutdown normal")

	return nil
}

func CORSHeaders(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, Authorization, Origin, X-Requested-With")
}
