package main

import (
	"context"
	"net"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"storefront-system/config"
	"storefront-system/internal/app"
	"storefront-system/internal/jobs"
)

const overdueServiceName = "storefront.jobs.OverdueInvoices"

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	app.SetupLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := app.OpenStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open store")
	}
	defer closeStore()

	svc, err := app.NewCheckoutService(store, nil, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build checkout service")
	}

	overdue := jobs.NewOverdueJob(svc, cfg.Jobs.OverdueAfter, 0)
	scheduler, err := jobs.NewScheduler(cfg.Jobs.OverdueSchedule, overdue)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to schedule overdue sweep")
	}
	scheduler.Start()
	defer scheduler.Stop()
	log.Info().Str("schedule", cfg.Jobs.OverdueSchedule).Dur("overdue_after", cfg.Jobs.OverdueAfter).Msg("overdue invoice sweep scheduled")

	lis, err := net.Listen("tcp", ":"+cfg.GRPC.Port)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to listen")
	}

	s := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(s, hs)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(overdueServiceName, healthpb.HealthCheckResponse_SERVING)
	reflection.Register(s)

	go func() {
		<-ctx.Done()
		log.Info().Msg("Shutting down jobs worker")
		hs.Shutdown()
		s.GracefulStop()
	}()

	log.Info().Str("addr", lis.Addr().String()).Msg("jobs worker listening")
	if err := s.Serve(lis); err != nil {
		log.Fatal().Err(err).Msg("Failed to serve")
	}
}
