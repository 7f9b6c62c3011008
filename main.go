package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/godwinm8/Stateless-2D-Editor/config"
	"github.com/godwinm8/Stateless-2D-Editor/core"
	"github.com/godwinm8/Stateless-2D-Editor/handlers/api/checkpoints"
	"github.com/godwinm8/Stateless-2D-Editor/handlers/api/scenes"
	"github.com/godwinm8/Stateless-2D-Editor/handlers/view"
	"github.com/godwinm8/Stateless-2D-Editor/handlers/websocket"
	sharemw "github.com/godwinm8/Stateless-2D-Editor/middleware"
	"github.com/godwinm8/Stateless-2D-Editor/stores"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"
)

func setupRouter(cfg *config.Config, store core.SceneStore, hub *websocket.Hub) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Logger)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	guard := sharemw.ShareToken([]byte(cfg.Share.Secret))

	var (
		notifier scenes.Notifier
		viewers  scenes.Viewers
	)
	if hub != nil {
		notifier, viewers = hub, hub
	}
	index, _ := store.(core.SceneIndex)

	r.Get("/", view.HandleNew)
	r.With(guard).Get("/canvas/{id}", view.HandleCanvas(store, cfg.Persist))

	r.Route("/api/"+core.SceneCollection, func(r chi.Router) {
		r.Get("/", scenes.HandleList(index, viewers))
		r.Route("/{id}", func(r chi.Router) {
			r.Use(guard)
			r.Get("/", scenes.HandleGet(store))
			r.Put("/", scenes.HandlePut(store, notifier))

			if cps, ok := store.(core.CheckpointStore); ok {
				r.Route("/checkpoints", func(r chi.Router) {
					r.Post("/", checkpoints.HandleCreate(cps, store))
					r.Get("/", checkpoints.HandleList(cps))
					r.Get("/count", checkpoints.HandleCount(cps))
				})
				r.Get("/settings", checkpoints.HandleGetSettings(cps))
				r.Put("/settings", checkpoints.HandleUpdateSettings(cps))
			}
		})
	})

	if cps, ok := store.(core.CheckpointStore); ok {
		r.Route("/api/checkpoints/{checkpointId}", func(r chi.Router) {
			r.Use(guard)
			r.Get("/", checkpoints.HandleGet(cps))
			r.Put("/", checkpoints.HandleUpdate(cps))
			r.Delete("/", checkpoints.HandleDelete(cps))
		})
		logrus.Info("Checkpoint API routes registered")
	} else {
		logrus.Warn("Checkpoint API not available with this storage type")
	}

	return r
}

func waitForShutdown(srv *http.Server, hub *websocket.Hub, store core.SceneStore) {
	signalC := make(chan os.Signal, 1)
	signal.Notify(signalC, os.Interrupt, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	s := <-signalC
	logrus.WithField("signal", s.String()).Info("Shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logrus.WithError(err).Warn("Server shutdown")
	}
	hub.Close()
	if c, ok := store.(io.Closer); ok {
		if err := c.Close(); err != nil {
			logrus.WithError(err).Warn("Closing storage")
		}
	}
}

func main() {
	configFile := flag.String("config", "", "Path to a config file (json, yaml or toml)")
	logLevel := flag.String("loglevel", "", "Set the logging level: debug, info, warn, error, fatal, panic")
	listenAddr := flag.String("listen", "", "Set the server listen address")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}
	if *logLevel != "" {
		if _, err := logrus.ParseLevel(*logLevel); err != nil {
			fmt.Fprintf(os.Stderr, "Invalid log level: %v\n", err)
			os.Exit(1)
		}
		cfg.LogLevel = *logLevel
	}
	if *listenAddr != "" {
		cfg.Listen = *listenAddr
	}
	cfg.ApplyLogging()

	if cfg.Storage.Type == "remote" {
		logrus.Fatal("The document service cannot use the remote storage type")
	}
	store, err := stores.GetStore(context.Background(), cfg.Storage)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to open storage")
	}

	hub := websocket.NewHub(cfg.CORSOrigins)
	r := setupRouter(cfg, store, hub)
	r.Handle("/socket.io/", hub.Server().ServeHandler(nil))

	srv := &http.Server{Addr: cfg.Listen, Handler: r}
	logrus.WithField("addr", cfg.Listen).Info("starting server")
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithField("event", "start server").Fatal(err)
		}
	}()

	logrus.Debug("Server is running in the background")
	waitForShutdown(srv, hub, store)
}
