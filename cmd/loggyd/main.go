package main

import (
	"context"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	appanalysis "github.com/iotecha/loggy/internal/application/analysis"
	"github.com/iotecha/loggy/internal/application/sessions"
	"github.com/iotecha/loggy/internal/config"
	"github.com/iotecha/loggy/internal/infra/executor"
	"github.com/iotecha/loggy/internal/infra/httpserver"
	"github.com/iotecha/loggy/internal/signatures"
)

func main() {
	path := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		path = v
	}

	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	if err := os.MkdirAll(cfg.UploadDir(), 0o755); err != nil {
		log.Fatalf("upload dir error: %v", err)
	}
	store, err := sessions.NewStore(cfg.SessionsDir())
	if err != nil {
		log.Fatalf("sessions dir error: %v", err)
	}

	catalog := signatures.NewCatalog(cfg.SignaturesFile(), cfg.RegistryFile())
	runner := executor.NewRunner(cfg.Analyzer.Path)

	svc := &appanalysis.Service{
		Store:  store,
		Runner: runner,
		Timeouts: appanalysis.Timeouts{
			Check:   cfg.CheckTimeout(),
			Analyze: cfg.AnalyzeTimeout(),
			Compare: cfg.CompareTimeout(),
			Fleet:   cfg.FleetTimeout(),
		},
	}

	mux := chi.NewRouter()
	mux.Mount("/", httpserver.New(svc, store, catalog, cfg.UploadDir(), cfg.Analyzer.Path))

	addr := cfg.Addr()
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		log.Printf("cannot bind to %s — %v", addr, err)
		log.Fatalf("tip: pick a free port with LOGGY_PORT=9090")
	}

	srv := &http.Server{
		Handler:     mux,
		ReadTimeout: 15 * time.Second,
		// Analysis requests block until the analyzer finishes; the
		// write timeout must outlast the longest (fleet) run.
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("serving on http://%s (analyzer=%s)", addr, cfg.Analyzer.Path)
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	// graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	log.Println("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
