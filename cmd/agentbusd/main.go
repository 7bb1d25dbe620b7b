// Command agentbusd runs the AgentBus service: the gRPC Propose/Poll
// boundary (spec.md §6), a Decider and Voter driving one bus, and an
// HTTP side-channel for health, Prometheus metrics, and a live verdict
// tail. Adapted from the teacher's cmd/server/main.go (wire up the
// domain services, hand them to an API gateway, listen) and
// cmd/probe/main.go (signal.NotifyContext lifecycle, grpc.NewServer
// with chained interceptors run from a goroutine alongside an HTTP
// listener).
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"

	"github.com/ocx/agentbus/internal/bus"
	"github.com/ocx/agentbus/internal/config"
	"github.com/ocx/agentbus/internal/decider"
	"github.com/ocx/agentbus/internal/envx"
	"github.com/ocx/agentbus/internal/grpcserver"
	"github.com/ocx/agentbus/internal/livetail"
	"github.com/ocx/agentbus/internal/llmclient"
	"github.com/ocx/agentbus/internal/metrics"
	"github.com/ocx/agentbus/internal/notify"
	"github.com/ocx/agentbus/internal/voter"
	"github.com/ocx/agentbus/internal/woas"
	"github.com/ocx/agentbus/internal/woas/woasmem"
	"github.com/ocx/agentbus/internal/woas/woasredis"
	"github.com/ocx/agentbus/internal/woas/woasspanner"
	"github.com/ocx/agentbus/pb"

	"github.com/redis/go-redis/v9"
)

func main() {
	cfg := config.Get()
	logger := newLogger(cfg.Logging.Level)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openWOAS(ctx, cfg)
	if err != nil {
		logger.Error("failed to open WOAS backend", "backend", cfg.WOAS.Backend, "error", err)
		os.Exit(1)
	}

	log := bus.NewWriteOnceAgentBus(store)
	mts := metrics.New()

	notifier, events, closeNotifier := newNotifier(ctx, cfg, logger)
	defer closeNotifier()

	busID := cfg.Bus.DefaultID
	env := envx.NewProduction()

	dec := decider.New(log, env, busID,
		decider.WithNotifier(notifier),
		decider.WithLogger(logger.With("component", "decider")),
	)
	go func() {
		if err := dec.Run(ctx, int64(cfg.Bus.PollIntervalMs)); err != nil && ctx.Err() == nil {
			logger.Error("decider loop exited", "error", err)
		}
	}()

	evaluator := llmclient.New(cfg.LLM.APIKey, llmclient.WithLogger(logger.With("component", "llmclient")))
	v := voter.New(log, env.Sleep, busID, cfg.LLM.Model, evaluator,
		voter.WithLogger(logger.With("component", "voter")),
	)
	go func() {
		if err := v.Run(ctx, time.Duration(cfg.Voter.PollIntervalMs)*time.Millisecond); err != nil && ctx.Err() == nil {
			logger.Error("voter loop exited", "error", err)
		}
	}()

	grpcSrv := newGRPCServer(log, logger)
	lis, err := net.Listen("tcp", fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port))
	if err != nil {
		logger.Error("failed to listen", "error", err)
		os.Exit(1)
	}
	go func() {
		logger.Info("agentbus gRPC listening", "addr", lis.Addr().String())
		if err := grpcSrv.Serve(lis); err != nil {
			logger.Warn("gRPC server stopped", "error", err)
		}
	}()

	tail := livetail.New(logger.With("component", "livetail"))
	go tail.Run()
	go tail.Bridge(events.Subscribe())

	httpSrv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.HTTPPort),
		Handler: newHTTPRouter(mts, tail),
	}
	go func() {
		logger.Info("agentbus HTTP side-channel listening", "addr", httpSrv.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Warn("HTTP server stopped", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer cancel()

	grpcSrv.GracefulStop()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP shutdown error", "error", err)
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

func openWOAS(ctx context.Context, cfg *config.Config) (woas.Store, error) {
	switch cfg.WOAS.Backend {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.WOAS.Redis.Addr,
			Password: cfg.WOAS.Redis.Password,
			DB:       cfg.WOAS.Redis.DB,
		})
		return woasredis.New(client, ""), nil
	case "spanner":
		return woasspanner.Open(ctx, cfg.WOAS.Spanner.ProjectID, cfg.WOAS.Spanner.InstanceID, cfg.WOAS.Spanner.DatabaseID)
	default:
		return woasmem.New(), nil
	}
}

// eventBus is satisfied by both *notify.Bus and *notify.PubSubBus (the
// latter through its embedded *Bus), letting the HTTP tail handler stay
// agnostic of whether Pub/Sub fan-out is enabled.
type eventBus interface {
	Subscribe(eventTypes ...string) chan *notify.CloudEvent
	Unsubscribe(ch chan *notify.CloudEvent)
}

func newNotifier(ctx context.Context, cfg *config.Config, logger *slog.Logger) (decider.Notifier, eventBus, func()) {
	if cfg.PubSub.Enabled {
		psb, err := notify.NewPubSubBus(ctx, cfg.PubSub.ProjectID, cfg.PubSub.TopicID, "agentbusd:"+cfg.Bus.DefaultID)
		if err != nil {
			logger.Warn("pubsub notifier unavailable, falling back to in-memory", "error", err)
		} else {
			return psb, psb, func() { _ = psb.Close() }
		}
	}
	b := notify.NewBus("agentbusd:" + cfg.Bus.DefaultID)
	return b, b, func() {}
}

func newGRPCServer(log bus.Log, logger *slog.Logger) *grpc.Server {
	rl := grpcserver.NewRateLimiter(grpcserver.RateLimitConfig{})
	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			grpcserver.BusIDValidationInterceptor(),
			grpcserver.RateLimitInterceptor(rl),
		),
	)
	srv.RegisterService(&pb.ServiceDesc, grpcserver.New(log, logger))
	return srv
}

func newHTTPRouter(mts *metrics.Metrics, tail *livetail.Streamer) *mux.Router {
	_ = mts // registered against the default Prometheus registry at construction

	r := mux.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
			if req.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}
			next.ServeHTTP(w, req)
		})
	})

	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)

	r.HandleFunc("/tail/stats", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(tail.Stats())
	}).Methods(http.MethodGet)

	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	r.HandleFunc("/tail", tail.HandleWebSocket).Methods(http.MethodGet)

	return r
}
