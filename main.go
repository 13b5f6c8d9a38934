package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"saythat-server/api"
	"saythat-server/config"
	"saythat-server/game"
	"saythat-server/loghandler"
	"saythat-server/observe"
	"saythat-server/profanity"
	"saythat-server/speech"
	"saythat-server/store"
	"saythat-server/translate"
	"saythat-server/triggers"
	"saythat-server/ws"
)

// app is the wired service: engine, change-feed router, projector hub and
// the HTTP handler exposing them.
type app struct {
	engine  *game.Engine
	router  *triggers.Router
	hub     *ws.Hub
	handler http.Handler
}

func newApp(ctx context.Context, cfg *config.Config, st store.Store, rec speech.Recognizer, tr translate.Translator, metrics *observe.Metrics, metricsHandler http.Handler) *app {
	engine := game.New(st, rec, tr, profanity.New(cfg.ProfanityWords...),
		game.WithMetrics(metrics),
		game.WithEncoding(cfg.Speech.Encoding),
		game.WithFanoutLimit(cfg.Translate.FanoutLimit),
	)
	hub := ws.NewHub(engine, metrics)
	router := triggers.NewRouter(ctx, engine, hub, metrics)
	st.Subscribe(router.Handle)
	st.Watch(router.Forward)

	h := api.NewHandler(engine, st)
	return &app{
		engine:  engine,
		router:  router,
		hub:     hub,
		handler: h.Routes(http.HandlerFunc(hub.ServeWS), metricsHandler),
	}
}

func openStore(ctx context.Context, cfg *config.Config, metrics *observe.Metrics) (store.Store, error) {
	opts := []store.Option{
		store.WithMaxRetries(cfg.StoreMaxRetries),
		store.WithConflictHook(metrics.StoreConflict),
	}
	if cfg.DatabaseURL == "" {
		slog.Warn("DATABASE_URL is not set, using the in-memory store; state is lost on restart", "tag", "main")
		return store.NewMemoryStore(opts...), nil
	}
	return store.NewPostgresStore(ctx, cfg.DatabaseURL, opts...)
}

func run() error {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found; using environment variables", "tag", "main")
	}

	cfg := config.Load()
	slog.SetDefault(slog.New(loghandler.NewCompactHandler(os.Stdout, loghandler.ParseLevel(cfg.LogLevel))))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mp, shutdownMetrics, err := observe.InitProvider(ctx, "saythat-server")
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}
	defer shutdownMetrics(context.Background())
	metrics, err := observe.NewMetrics(mp)
	if err != nil {
		return fmt.Errorf("create instruments: %w", err)
	}

	st, err := openStore(ctx, cfg, metrics)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	rec, err := speech.New(cfg.Speech.APIKey, speech.WithEndpoint(cfg.Speech.Endpoint))
	if err != nil {
		return fmt.Errorf("speech client (set SPEECH_API_KEY): %w", err)
	}
	tr, err := translate.New(cfg.Translate.APIKey,
		translate.WithEndpoint(cfg.Translate.Endpoint),
		translate.WithRateLimit(cfg.Translate.QPS, cfg.Translate.Burst),
	)
	if err != nil {
		return fmt.Errorf("translate client (set TRANSLATE_API_KEY): %w", err)
	}

	a := newApp(ctx, cfg, st, rec, tr, metrics, promhttp.Handler())
	go a.hub.Run(ctx)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Warn("http shutdown", "tag", "main", "error", err)
		}
	}()

	slog.Info("SayThat server listening", "tag", "main", "addr", srv.Addr,
		"store", storeKind(cfg), "translate_qps", cfg.Translate.QPS)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	a.router.Wait()
	slog.Info("server stopped", "tag", "main")
	return nil
}

func storeKind(cfg *config.Config) string {
	if cfg.DatabaseURL == "" {
		return "memory"
	}
	return "postgres"
}

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "tag", "main", "error", err)
		os.Exit(1)
	}
}
