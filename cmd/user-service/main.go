// cmd/user-service/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tvm/internal/users"
	"tvm/pkg/config"
	"tvm/pkg/db"
	"tvm/pkg/identity"
	"tvm/pkg/logger"
	"tvm/pkg/middleware"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.Env, "user-service")

	if cfg.UserPoolID == "" {
		log.Fatalw("COGNITO_USER_POOL_ID is required")
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background())
	if err != nil {
		log.Fatalw("aws config", "err", err)
	}
	rdb := db.MustRedis(cfg, log)
	ext := identity.NewExtractor(cfg)

	svc := users.NewService(cognitoidentityprovider.NewFromConfig(awsCfg), cfg.UserPoolID, log)

	r := chi.NewRouter()
	r.Use(middleware.RequestID())
	r.Use(middleware.Recover(log))
	r.Use(middleware.Tracing("user-service"))
	r.Use(middleware.Metrics())
	r.Use(middleware.Auth(ext, log))
	r.Use(middleware.RateLimit(cfg.RateLimitPerMin, rdb))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.Write([]byte("ok")) })
	users.RegisterHTTP(r, svc)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: r}
	go func() {
		log.Infow("user-service listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("ListenAndServe", "err", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
	fmt.Println("user-service stopped")
}
