// main.go — ViralClip edge delivery gateway entrypoint.
// Authorizes and streams protected clip media with signed capability tokens.
// Port: 8117 (env: DELIVERY_PORT).
//
// Routes:
//   GET /v/{clipID}?sig=…  — video bytes (200/206, or 401/403/404/500)
//   GET /t/{clipID}?sig=…  — thumbnail bytes (same vocabulary)
//   GET /health            — liveness (no auth)
//   GET /metrics           — Prometheus scrape endpoint
//   OPTIONS *              — CORS preflight (204 or 403)
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/vmatresu/viralclipai-sub000/internal/config"
	"github.com/vmatresu/viralclipai-sub000/internal/cors"
	"github.com/vmatresu/viralclipai-sub000/internal/gateway"
	"github.com/vmatresu/viralclipai-sub000/internal/logger"
	"github.com/vmatresu/viralclipai-sub000/internal/store"
	"github.com/vmatresu/viralclipai-sub000/pkg/telemetry"
)

const version = "0.3.0"

func main() {
	// Local development convenience; no-op when the file is absent.
	_ = godotenv.Load()

	log := logger.New("delivery")

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("configuration")
	}

	if err := telemetry.InitSentry(cfg.SentryDSN, "delivery", version); err != nil {
		log.WithError(err).Fatal("sentry init")
	}
	defer telemetry.Flush()

	r2, err := store.NewR2(cfg.R2Endpoint, cfg.R2Bucket, cfg.R2AccessKey, cfg.R2SecretKey)
	if err != nil {
		log.WithError(err).Fatal("object store init")
	}

	gw := gateway.New(cfg.Secret, r2, cors.New(cfg.AllowedOrigins), log)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: telemetry.PanicRecoveryMiddleware("delivery")(gw.Router()),
		// Streaming responses: no WriteTimeout. Request lifetime is
		// bounded by the hosting platform, not re-implemented here.
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.WithField("port", cfg.Port).Info("delivery gateway listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("server")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.WithError(err).Error("shutdown")
	}
}
