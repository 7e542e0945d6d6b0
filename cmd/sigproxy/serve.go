package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	"github.com/vitalvas/cavage/config"
	"github.com/vitalvas/cavage/httpsig"
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Verify signed requests and forward them upstream",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "listen",
				Usage: "proxy listen address (overrides SIGPROXY_LISTEN)",
			},
			&cli.StringFlag{
				Name:  "upstream",
				Usage: "upstream base URL (overrides SIGPROXY_UPSTREAM)",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			s, err := loadSettings(cmd)
			if err != nil {
				return err
			}

			if cmd.IsSet("listen") {
				s.ListenAddr = cmd.String("listen")
			}

			if cmd.IsSet("upstream") {
				s.Upstream = cmd.String("upstream")
			}

			logger, err := newLogger(os.Stderr, s.LogLevel)
			if err != nil {
				return err
			}

			return runServe(ctx, s, logger)
		},
	}
}

func runServe(ctx context.Context, s config.Settings, logger *logrus.Logger) error {
	cfg, err := config.Load(s.ConfigPath, nil)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	metrics, err := httpsig.NewMetrics(reg)
	if err != nil {
		return err
	}

	handler, err := newProxyHandler(cfg, s, logger, metrics)
	if err != nil {
		return err
	}

	servers := []*http.Server{{
		Addr:              s.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: s.ReadHeaderTimeout,
	}}

	if s.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

		servers = append(servers, &http.Server{
			Addr:              s.MetricsAddr,
			Handler:           mux,
			ReadHeaderTimeout: s.ReadHeaderTimeout,
		})
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	for _, srv := range servers {
		g.Go(func() error {
			logger.WithField("addr", srv.Addr).Info("listening")

			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("%s: %w", srv.Addr, err)
			}

			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.ShutdownTimeout)
		defer cancel()

		var errs []error
		for _, srv := range servers {
			if err := srv.Shutdown(shutdownCtx); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", srv.Addr, err))
			}
		}

		return errors.Join(errs...)
	})

	return g.Wait()
}

// newProxyHandler builds the chain recovery -> body size limit ->
// verification -> rate limiting -> response signing -> reverse proxy. Forwarded requests are
// re-signed when an upstream target is configured.
func newProxyHandler(cfg *config.Config, s config.Settings, logger logrus.FieldLogger, metrics *httpsig.Metrics) (http.Handler, error) {
	if s.Upstream == "" {
		return nil, errors.New("upstream is not configured")
	}

	upstream, err := url.Parse(s.Upstream)
	if err != nil {
		return nil, fmt.Errorf("upstream: %w", err)
	}

	proxy := &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(upstream)
			pr.SetXForwarded()
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			logger.WithError(err).WithField("path", r.URL.Path).Error("upstream request failed")
			w.WriteHeader(http.StatusBadGateway)
		},
	}

	if s.UpstreamTarget != "" {
		target, err := cfg.Target(s.UpstreamTarget)
		if err != nil {
			return nil, err
		}

		proxy.Transport = httpsig.NewTransport(nil, target).WithMetrics(metrics)
		proxy.Rewrite = func(pr *httputil.ProxyRequest) {
			pr.SetURL(upstream)
			pr.SetXForwarded()
			stripSignature(pr.Out.Header)
		}
	}

	var handler http.Handler = proxy

	if s.ResponseTarget != "" {
		target, err := cfg.Target(s.ResponseTarget)
		if err != nil {
			return nil, err
		}

		handler = httpsig.ResponseSigner(target, logger, metrics)(handler)
	}

	if s.RateLimit > 0 {
		handler = rateLimitMiddleware(s.RateLimit, s.RateBurst, logger)(handler)
	}

	verify, err := httpsig.Middleware(httpsig.MiddlewareConfig{
		Authenticator: &httpsig.Authenticator{
			Store:         cfg.Clients,
			Policy:        cfg.Policy,
			Canonical:     cfg.Canonical,
			RequireDigest: s.RequireDigest,
		},
		AllowUnsigned: s.AllowUnsigned,
		Realm:         s.Realm,
		Logger:        logger,
		Metrics:       metrics,
	})
	if err != nil {
		return nil, err
	}

	handler = verify(handler)

	if s.MaxBodyBytes > 0 {
		limit, err := requestSizeLimitMiddleware(s.MaxBodyBytes)
		if err != nil {
			return nil, err
		}

		handler = limit(handler)
	}

	return recoveryMiddleware(logger)(handler), nil
}

// stripSignature removes the inbound signature before the request is
// signed again for the upstream.
func stripSignature(h http.Header) {
	h.Del("Signature")

	values := h.Values("Authorization")
	kept := values[:0]

	for _, v := range values {
		if len(v) > len("Signature ") && strings.EqualFold(v[:len("Signature ")], "Signature ") {
			continue
		}

		kept = append(kept, v)
	}

	if len(kept) == 0 {
		h.Del("Authorization")
		return
	}

	h["Authorization"] = kept
}
