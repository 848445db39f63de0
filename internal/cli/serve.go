package cli

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/therealkaiharper-wq/openclaw-mission-control/internal/api"
	"github.com/therealkaiharper-wq/openclaw-mission-control/internal/config"
	"github.com/therealkaiharper-wq/openclaw-mission-control/internal/feed"
	"github.com/therealkaiharper-wq/openclaw-mission-control/internal/ingest"
	"github.com/therealkaiharper-wq/openclaw-mission-control/internal/observability"
	"github.com/therealkaiharper-wq/openclaw-mission-control/internal/state"
	"github.com/therealkaiharper-wq/openclaw-mission-control/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the mission control daemon",
	Run:   runServe,
}

func runServe(cmd *cobra.Command, args []string) {
	printHeader("🛰️ Mission Control")

	log := observability.Logger()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Config error: %v\n", err)
		os.Exit(1)
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		log.Error("create data dir", "err", err)
		os.Exit(1)
	}

	db, err := state.Open(cfg.DBPath)
	if err != nil {
		log.Error("open db", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	store := state.NewStore(db)
	activityFeed := feed.New()
	ingestHandler := ingest.NewHandler(store, activityFeed,
		ingest.WithSystemAgentName(cfg.SystemAgent),
		ingest.WithLogger(log),
	)

	apiServer := &api.Server{
		Store:     store,
		Ingest:    ingestHandler,
		Feed:      activityFeed,
		StartedAt: time.Now().UTC(),
	}
	webServer := &web.Server{Dir: cfg.WebDir}

	mux := http.NewServeMux()
	mux.Handle("/api/", apiServer.Handler())
	mux.Handle("/", webServer.Handler())

	listener, err := net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		log.Error("listen", "addr", cfg.HTTPAddr, "err", err)
		os.Exit(1)
	}

	serverCtx, serverCancel := context.WithCancel(context.Background())
	httpServer := &http.Server{
		Handler:           loggingMiddleware(mux),
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext: func(_ net.Listener) context.Context {
			return serverCtx
		},
	}

	go func() {
		log.Info("missiond listening", "addr", listener.Addr().String(), "db", cfg.DBPath)
		if err := httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Error("http server error", "err", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	serverCancel()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Warn("server shutdown error", "err", err)
	}
	_ = httpServer.Close()
}

func loggingMiddleware(next http.Handler) http.Handler {
	log := observability.Logger()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Info("request", "method", r.Method, "path", r.URL.Path, "dur", time.Since(start).String())
	})
}
