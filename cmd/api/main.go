package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"medicore.org/internal/access"
	"medicore.org/internal/admission"
	"medicore.org/internal/audit"
	"medicore.org/internal/billing"
	"medicore.org/internal/config"
	"medicore.org/internal/httpapi"
	"medicore.org/internal/inventory"
	"medicore.org/internal/obs"
	"medicore.org/internal/report"
	"medicore.org/internal/store/pg"
)

var (
	version = "0.3.0"
	commit  = "dev"
)

func main() {
	cfg := config.Load()

	obs.Init()
	obs.InitBuildInfo(version, commit)

	apiCfg := httpapi.Config{
		Version:        version,
		TokenTTL:       cfg.TokenTTL,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
	}

	var store *pg.Store
	if cfg.DatabaseDSN != "" {
		var err error
		store, err = pg.Open(cfg.DatabaseDSN)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		apiCfg.Inventory = store
		apiCfg.Billing = store
		apiCfg.Admissions = store
		apiCfg.Access = store
		apiCfg.Activity = store
		apiCfg.Reports = report.NewService(store, report.WithBackupDir(cfg.BackupDir))
		apiCfg.ReadyProbe = httpapi.ReadyProbe{DB: store.DB()}
	} else {
		// No DSN configured: run fully in memory for local development.
		log.Println("MEDICORE_PG_DSN not set, using in-memory services")
		inv := inventory.NewInMemory()
		bil := billing.NewInMemory()
		adm := admission.NewInMemory()
		act := audit.NewInMemory()
		apiCfg.Inventory = inv
		apiCfg.Billing = bil
		apiCfg.Admissions = adm
		apiCfg.Access = access.NewInMemory()
		apiCfg.Activity = act
		apiCfg.Reports = report.NewService(&report.LocalSource{
			Inventory:  inv,
			Billing:    bil,
			Admissions: adm,
			Activity:   act,
		}, report.WithBackupDir(cfg.BackupDir))
	}

	api := httpapi.New(apiCfg)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting medicore-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	_ = srv.Shutdown(ctx)
	if store != nil {
		_ = store.Close()
	}
	log.Println("Stopped")
}
