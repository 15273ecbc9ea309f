package main

import (
	"net"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"google.golang.org/grpc"

	"webtoonhub/internal/grpcserver"
	"webtoonhub/internal/webtoon"
	"webtoonhub/pkg/database"
	"webtoonhub/pkg/logger"
	"webtoonhub/pkg/utils"
)

const defaultAddr = ":9090"

func main() {
	cfg := utils.Load()
	log := logger.Must(cfg.Debug).Named("grpc")
	defer func() { _ = log.Sync() }()

	db := database.MustOpen(cfg.DB, log)
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatal("db migrate failed", zap.Error(err))
	}

	addr := cfg.Server.GRPCAddr
	if addr == "" {
		addr = defaultAddr
	}
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		log.Fatal("grpc listen failed", zap.String("addr", addr), zap.Error(err))
	}

	srv := grpc.NewServer(grpc.UnaryInterceptor(grpcserver.LoggingInterceptor(log)))
	grpcserver.RegisterCatalogServer(srv, grpcserver.NewServer(webtoon.NewRepo(db)))

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		log.Info("stopping grpc server")
		srv.GracefulStop()
	}()

	log.Info("grpc server listening", zap.String("addr", addr))
	if err := srv.Serve(listener); err != nil {
		log.Fatal("grpc server stopped", zap.Error(err))
	}
}
