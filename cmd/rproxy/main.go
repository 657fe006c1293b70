// cmd/rproxy/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tvm/pkg/config"
	"tvm/pkg/logger"
	"tvm/pkg/middleware"
)

// rproxy fronts the per-tenant APIs behind one host. It forwards the bearer
// token untouched; each backend validates it and vends its own credentials.
func main() {
	cfg := config.Load()
	log := logger.New(cfg.Env, "rproxy")
	if cfg.Namespace == "" {
		log.Fatalw("NAMESPACE is required")
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID())
	r.Use(middleware.Recover(log))
	r.Use(middleware.Tracing("rproxy"))
	r.Use(middleware.Metrics())

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.Write([]byte("ok")) })
	r.Handle("/orders", proxyTo(cfg, "orders-api", log))
	r.Handle("/orders/*", proxyTo(cfg, "orders-api", log))
	r.Handle("/products", proxyTo(cfg, "products-api", log))
	r.Handle("/products/*", proxyTo(cfg, "products-api", log))
	r.Handle("/users", proxyTo(cfg, "users-api", log))
	r.Handle("/users/*", proxyTo(cfg, "users-api", log))
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: r}
	go func() {
		log.Infow("rproxy listening", "addr", cfg.HTTPAddr, "namespace", cfg.Namespace)
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
	fmt.Println("rproxy stopped")
}

// proxyTo targets {service}.{namespace}.sc:3010, the service-discovery
// pattern of the deployment.
func proxyTo(cfg config.Config, service string, log logger.Sugared) http.Handler {
	target, _ := url.Parse(fmt.Sprintf("http://%s.%s.sc:3010", service, cfg.Namespace))
	proxy := httputil.NewSingleHostReverseProxy(target)
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		log.Errorw("proxy error", "service", service, "err", err)
		http.Error(w, "service unavailable", http.StatusServiceUnavailable)
	}
	director := proxy.Director
	proxy.Director = func(req *http.Request) {
		director(req)
		req.Header.Set("X-Forwarded-Proto", "http")
		req.Header.Set("X-Real-IP", clientIP(req))
	}
	return proxy
}

func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return strings.TrimSpace(strings.Split(xff, ",")[0])
	}
	ip := r.RemoteAddr
	if i := strings.LastIndex(ip, ":"); i != -1 {
		ip = ip[:i]
	}
	return ip
}
