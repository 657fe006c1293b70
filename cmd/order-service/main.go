// cmd/order-service/main.go
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
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tvm/internal/orders"
	"tvm/pkg/broker"
	"tvm/pkg/clientfactory"
	"tvm/pkg/config"
	"tvm/pkg/credcache"
	"tvm/pkg/db"
	"tvm/pkg/identity"
	"tvm/pkg/logger"
	"tvm/pkg/middleware"
	"tvm/pkg/policy"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.Env, "order-service")

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background())
	if err != nil {
		log.Fatalw("aws config", "err", err)
	}
	store, err := policy.NewStore(cfg.PolicyTemplates)
	if err != nil {
		log.Fatalw("policy templates", "err", err)
	}
	rdb := db.MustRedis(cfg, log)

	vendor := broker.NewClient(sts.NewFromConfig(awsCfg), cfg.RoleArn, cfg.BrokerTimeout, cfg.BrokerMaxRetries, cfg.CredMaxDuration, log)
	factory := clientfactory.New(awsCfg, cfg, policy.NewRenderer(store), credcache.New(cfg.SafetyMargin), vendor, log)
	ext := identity.NewExtractor(cfg)

	svc := orders.NewService(func(ctx context.Context, id identity.TenantIdentity) (orders.DynamoAPI, error) {
		return factory.DynamoDB(ctx, id)
	}, cfg.TableName, log)

	r := chi.NewRouter()
	r.Use(middleware.RequestID())
	r.Use(middleware.Recover(log))
	r.Use(middleware.Tracing("order-service"))
	r.Use(middleware.Metrics())
	r.Use(middleware.Auth(ext, log))
	r.Use(middleware.RateLimit(cfg.RateLimitPerMin, rdb))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.Write([]byte("ok")) })
	orders.RegisterHTTP(r, svc)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: r}
	go func() {
		log.Infow("order-service listening", "addr", cfg.HTTPAddr)
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
	fmt.Println("order-service stopped")
}
