package main

import (
	"context"
	"database/sql"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"webtoonhub/internal/auth"
	"webtoonhub/internal/covers"
	"webtoonhub/internal/grpcserver"
	"webtoonhub/internal/ingest"
	"webtoonhub/internal/metrics"
	synchub "webtoonhub/internal/sync"
	"webtoonhub/internal/webtoon"
	"webtoonhub/pkg/database"
	"webtoonhub/pkg/logger"
	"webtoonhub/pkg/utils"
)

const sweepInterval = time.Minute

func main() {
	cfg := utils.Load()
	log := logger.Must(cfg.Debug)
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("api server stopped", zap.Error(err))
	}
	log.Info("servers stopped")
}

func run(cfg utils.Config, log *zap.Logger) error {
	db := database.MustOpen(cfg.DB, log)
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), accessLog(log))
	_ = router.SetTrustedProxies([]string{"127.0.0.1"})

	m := metrics.New()
	router.Use(m.Middleware())
	router.GET("/metrics", gin.WrapH(m.Handler()))

	hub := synchub.NewHub(log.Named("sync"))
	tcpSrv := synchub.NewServer(cfg.Server.SyncAddr, hub, log.Named("tcp-sync"))
	if _, err := tcpSrv.Listen(); err != nil {
		return err
	}

	tokens := auth.TokenService{
		Secret:   []byte(cfg.Auth.JWTSecret),
		Issuer:   cfg.Auth.JWTIssuer,
		Duration: cfg.Auth.JWTDuration,
	}
	authRepo := auth.NewRepo(db)

	router.GET("/ws", synchub.WSHandler(hub, auth.Identify(tokens, authRepo), log.Named("ws")))
	registerProbes(router, db, hub, cfg.DB.Path)

	auth.NewWebhookHandler(authRepo, cfg.Auth.WebhookSecret, log.Named("webhook")).
		RegisterRoutes(router.Group("/webhooks"))

	uploads := newUploadRegistry(cfg.Upload, hub, log.Named("ingest"))
	m.Gauge("ingest", "sessions", "Open upload sessions", func() float64 { return float64(uploads.Len()) })
	m.Gauge("sync", "clients", "Connected event subscribers", func() float64 {
		s := hub.Stats()
		return float64(s.TCPClients + s.WSClients)
	})

	store := coverStore(ctx, cfg.S3, log.Named("covers"))
	webtoonRepo := webtoon.NewRepo(db)

	protected := router.Group("/users")
	protected.Use(auth.AuthMiddleware(tokens, authRepo))
	auth.NewHandler(authRepo).RegisterRoutes(protected)
	ingest.NewHandler(uploads, m).RegisterRoutes(protected)
	webtoon.NewHandler(webtoonRepo, hub, uploads, store, log.Named("webtoon")).RegisterRoutes(protected)

	httpSrv := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	var grpcSrv *grpc.Server
	if cfg.Server.GRPCAddr != "" {
		grpcSrv = grpc.NewServer(grpc.UnaryInterceptor(grpcserver.LoggingInterceptor(log.Named("grpc"))))
		grpcserver.RegisterCatalogServer(grpcSrv, grpcserver.NewServer(webtoonRepo))
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(tcpSrv.Run)

	g.Go(func() error {
		log.Info("http api listening", zap.String("addr", cfg.Server.HTTPAddr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if grpcSrv != nil {
		g.Go(func() error {
			lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
			if err != nil {
				return err
			}
			log.Info("grpc listening", zap.String("addr", cfg.Server.GRPCAddr))
			if err := grpcSrv.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				return err
			}
			return nil
		})
	}

	g.Go(func() error {
		uploads.RunSweeper(gctx, sweepInterval, cfg.Upload.SessionIdle, func(n int) {
			m.RecordSweep(n)
			log.Debug("idle upload sessions released", zap.Int("count", n))
		})
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down servers")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			log.Warn("http shutdown error", zap.Error(err))
		}
		if err := tcpSrv.Close(); err != nil {
			log.Warn("tcp shutdown error", zap.Error(err))
		}
		if grpcSrv != nil {
			grpcSrv.GracefulStop()
		}
		return nil
	})

	return g.Wait()
}

func newUploadRegistry(cfg utils.UploadConfig, hub *synchub.Hub, log *zap.Logger) *ingest.Registry {
	accept := ingest.ParseAccept(cfg.Accept)
	maxSize := ingest.MaxSizeOrDefault(cfg.MaxSize)
	fetcher := ingest.NewHTTPFetcher(cfg.FetchTimeout, maxSize)

	return ingest.NewRegistry(func(k ingest.Key) *ingest.Engine {
		return ingest.New(ingest.Config{
			Accept:  accept,
			MaxSize: maxSize,
			Fetcher: fetcher,
			Logger:  log.With(zap.String("user", k.UserID), zap.String("form", k.Form)),
			OnUpload: func(cs []ingest.Candidate) {
				c := cs[0]
				go hub.BroadcastJSON(synchub.UploadEvent{
					Type:        "upload.accepted",
					UserID:      k.UserID,
					Form:        k.Form,
					CandidateID: c.ID,
					Name:        c.Source.Name,
					MediaType:   c.Source.Type,
					Size:        c.Source.Size,
					At:          time.Now().UTC(),
				})
			},
		})
	})
}

func coverStore(ctx context.Context, cfg utils.S3Config, log *zap.Logger) covers.Store {
	if !cfg.Enabled() {
		return covers.Inline{}
	}

	s := covers.NewS3Store(cfg, log)
	ensureCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := s.EnsureBucket(ensureCtx); err != nil {
		log.Warn("cover bucket check failed", zap.String("bucket", cfg.Bucket), zap.Error(err))
	}
	log.Info("covers stored in s3", zap.String("bucket", cfg.Bucket))
	return s
}

func registerProbes(router *gin.Engine, db *sql.DB, hub *synchub.Hub, dbPath string) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "db": dbPath})
	})

	router.GET("/ready", func(c *gin.Context) {
		stats := hub.Stats()
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := db.PingContext(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":      "not_ready",
				"db_error":    err.Error(),
				"tcp_clients": stats.TCPClients,
				"ws_clients":  stats.WSClients,
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":      "ready",
			"db":          "ok",
			"tcp_clients": stats.TCPClients,
			"ws_clients":  stats.WSClients,
		})
	})
}

func accessLog(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("took", time.Since(start)),
			zap.String("client", c.ClientIP()))
	}
}
