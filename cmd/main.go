package main

import (
	"context"
	"log"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/cwrk-planet/chat-relay/config"
	"github.com/cwrk-planet/chat-relay/internal/broadcast"
	"github.com/cwrk-planet/chat-relay/internal/cache"
	"github.com/cwrk-planet/chat-relay/internal/domain"
	grpcserver "github.com/cwrk-planet/chat-relay/internal/server/grpc"
	httpserver "github.com/cwrk-planet/chat-relay/internal/server/http"
	"github.com/cwrk-planet/chat-relay/internal/service"
	grpcx "github.com/cwrk-planet/chat-relay/internal/transport/grpc"
	httpx "github.com/cwrk-planet/chat-relay/internal/transport/http"
	"github.com/cwrk-planet/chat-relay/internal/transport/ws"
	"github.com/cwrk-planet/chat-relay/pkg/logger"

	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
)

func main() {
	// --- config ---
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	var env logger.Env
	if cfg.Logging.Env != "" {
		env = logger.ParseEnv(cfg.Logging.Env)
	}
	logger.Init(logger.Config{
		Env:       env,
		Service:   cfg.Logging.Service,
		Version:   cfg.Logging.Version,
		Backend:   logger.Backend(cfg.Logging.Backend),
		Level:     logger.ParseLevel(cfg.Logging.Level),
		AddSource: cfg.Logging.AddSource,
		Debug:     cfg.Logging.Debug,
	})
	slog.Info("starting chat-relay",
		"env", cfg.Logging.Env, "version", cfg.Logging.Version,
		"history_limit", cfg.Relay.HistoryLimit, "buffer_size", cfg.Relay.BufferSize)

	// --- relay core ---
	messages := cache.New(cfg.Relay.HistoryLimit)
	hub := broadcast.New[domain.Message](cfg.Relay.BufferSize)
	relay := service.NewRelayService(messages, hub, logger.L())

	// --- HTTP + WS ---
	wsServer := ws.NewServer(relay, ws.Options{
		PingEvery: cfg.WS.PingEvery,
		ReadLimit: cfg.WS.ReadLimit,
	})
	router := httpx.NewRouter(httpx.NewHandler(relay), wsServer.HandleWS, httpx.CORSConfig{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowCredentials: *cfg.CORS.AllowCredentials,
		MaxAge:           cfg.CORS.MaxAge,
	})
	httpSrv := httpserver.New(httpserver.Config{
		Addr:         cfg.HTTP.Addr,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}, router)

	// --- run ---
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error { return httpSrv.Run(ctx) })

	if cfg.GRPCEnabled() {
		grpcServer := grpc.NewServer(
			grpc.ChainUnaryInterceptor(grpcx.UnaryServerInterceptor()),
			grpc.ChainStreamInterceptor(grpcx.StreamServerInterceptor()),
		)
		grpcx.Register(grpcServer, grpcx.NewServer(relay))
		grpcSrv := grpcserver.New(cfg.GRPC.Addr, grpcServer)
		eg.Go(func() error { return grpcSrv.Run(ctx) })
	}

	// Open streams only end once the broadcaster is closed, so close it
	// as soon as shutdown starts.
	eg.Go(func() error {
		<-ctx.Done()
		relay.Close()
		return nil
	})

	if err := eg.Wait(); err != nil {
		slog.Error("server error", "err", err)
	}
	slog.Info("stopped")
}
