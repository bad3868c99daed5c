package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/dhsingh07/ensureu-sub002/internal/app"
	"github.com/dhsingh07/ensureu-sub002/internal/config"
	"github.com/dhsingh07/ensureu-sub002/internal/infra/memory"
	pgstore "github.com/dhsingh07/ensureu-sub002/internal/infra/postgres"
	rediscache "github.com/dhsingh07/ensureu-sub002/internal/infra/redis"
	transport "github.com/dhsingh07/ensureu-sub002/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the analytics server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}
	redisTTL := config.TTLDuration(cfg.Redis.TTL, 10*time.Minute)

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	var (
		results    app.ResultStore
		aggregates app.AggregateStore
		timeseries app.TimeSeriesStore
	)
	if pool != nil {
		results = pgstore.NewResultStore(pool)
		aggregates = pgstore.NewAggregateStore(pool)
		timeseries = pgstore.NewTimeSeriesStore(pool)
	} else {
		results = memory.NewResultStore()
		aggregates = memory.NewAggregateStore()
		timeseries = memory.NewTimeSeriesStore()
	}
	if redisClient != nil {
		aggregates = rediscache.NewAggregateStore(redisClient, aggregates, redisTTL)
	}

	feed := app.NewPaperFeed()
	ingest := app.NewIngestService(results, aggregates, feed)
	analytics := app.NewAnalyticsService(results, aggregates, timeseries, feed, cfg.Analytics.GrowthLimit)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	transport.NewHandler(ingest, analytics).Register(mux)
	mux.HandleFunc("/ws", transport.NewWSHandler(analytics).ServeWS)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting analytics service on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
