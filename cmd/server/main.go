package main

import (
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/ostrand/battlemap-engine/internal/config"
	"github.com/ostrand/battlemap-engine/internal/display"
	"github.com/ostrand/battlemap-engine/internal/fog"
	"github.com/ostrand/battlemap-engine/internal/session"
	"github.com/ostrand/battlemap-engine/internal/storage/sqlite"
	"github.com/ostrand/battlemap-engine/internal/uvtt"
)

func main() {
	log := logrus.New()

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("loading configuration failed")
	}
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	}

	store, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		log.WithError(err).Fatal("opening store failed")
	}
	defer store.Close()

	loader := uvtt.NewLoader(log)
	fogSvc := fog.NewService(store)
	displays := display.NewSynchronizer(log)
	notifier := NewDMNotifier(log)
	manager := session.NewManager(log, store, loader, fogSvc, displays, notifier, cfg.MapDir)

	srv := &server{
		log:      log,
		manager:  manager,
		displays: displays,
		notifier: notifier,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws/control/{mapID}", srv.handleControlSocket)
	mux.HandleFunc("GET /ws/display/{mapID}", srv.handleDisplaySocket)

	log.WithField("addr", cfg.ListenAddr).Info("battlemap engine listening")
	if err := http.ListenAndServe(cfg.ListenAddr, mux); err != nil {
		log.WithError(err).Fatal("server exited")
	}
}
