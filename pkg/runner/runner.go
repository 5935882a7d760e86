// Package runner wires configuration, metrics, health, and the
// listener together into one running instance, the way
// proxy/pkg/runner.RunMain wires up the teacher's proxy.
package runner

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/nsgate/nsgate/pkg/config"
	"github.com/nsgate/nsgate/pkg/gateway"
	"github.com/nsgate/nsgate/pkg/health"
	"github.com/nsgate/nsgate/pkg/metrics/prommetrics"
	"github.com/nsgate/nsgate/pkg/validator"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

// SetupHandlers registers the HTTP surface spec.md's ambient operations
// expect: metrics, liveness, and readiness, the same three endpoints
// proxy/pkg/runner.SetupHandlers registers, served on their own mux
// rather than http.DefaultServeMux so a second Run in the same process
// (tests) does not panic on a duplicate registration.
func SetupHandlers(listener *gateway.Listener, registry *prometheus.Registry) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.Handle("/health/readiness", health.ReadinessHandler(listener))
	mux.Handle("/health/liveness", health.LivenessHandler())
	return mux
}

// Run loads no configuration of its own - the caller (cmd/nsgate) has
// already done that - and blocks until ctx is cancelled, then tears
// everything down in order: stop accepting new sessions, drain the
// metrics server, return. In-flight sessions are not waited on here;
// each one tears itself down independently per spec.md §5's
// per-session cancellation rule.
func Run(ctx context.Context, conf *config.Config) error {
	tokenValidator, err := validator.ConnectGocql(validator.GocqlConfig{
		Hostname: conf.UpstreamAddr,
		Port:     conf.UpstreamPort,
		Username: conf.RootUsername,
		Password: conf.RootPassword,
		UseTLS:   conf.UseTLS,
	})
	if err != nil {
		return fmt.Errorf("could not connect token validator: %w", err)
	}
	defer tokenValidator.Close()

	registry := prometheus.NewRegistry()
	factory := prommetrics.NewPrometheusFactory(registry, "nsgate")

	opts := gateway.NewSessionOptions(
		tokenValidator,
		conf.TokenLength,
		int32(conf.MaxFrameLength),
		time.Duration(conf.ReadTimeoutMs)*time.Millisecond,
		factory,
	)

	listener := &gateway.Listener{
		ListenAddr:   fmt.Sprintf("%s:%d", conf.ListenAddr, conf.ListenPort),
		UpstreamAddr: fmt.Sprintf("%s:%d", conf.UpstreamAddr, conf.UpstreamPort),
		Options:      opts,
	}
	if err := listener.Listen(); err != nil {
		return err
	}

	mux := SetupHandlers(listener, registry)
	metricsAddr := fmt.Sprintf("%s:%d", conf.ProxyMetricsAddress, conf.ProxyMetricsPort)
	httpSrv := &http.Server{Addr: metricsAddr, Handler: mux}
	go func() {
		log.Infof("serving metrics and health on %s", metricsAddr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorf("metrics server error: %v", err)
		}
	}()

	serveErrCh := make(chan error, 1)
	go func() {
		log.Infof("accepting sessions on %s, forwarding to %s", listener.ListenAddr, listener.UpstreamAddr)
		serveErrCh <- listener.Serve(ctx)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, closing listener")
	case serveErr = <-serveErrCh:
		if serveErr != nil {
			log.Errorf("listener stopped with error: %v", serveErr)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Errorf("could not gracefully shut down metrics server: %v", err)
	}

	return serveErr
}
