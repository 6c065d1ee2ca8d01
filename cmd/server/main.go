package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/inkboard/inkboard/internal/config"
	"github.com/inkboard/inkboard/internal/database"
	postgresrepo "github.com/inkboard/inkboard/internal/repository/postgres"
	"github.com/inkboard/inkboard/internal/repository/redisboard"
	"github.com/inkboard/inkboard/internal/service"
	"github.com/inkboard/inkboard/internal/transport/ws"
)

func main() {
	cfg := config.Load()

	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logrus.SetLevel(level)
	}
	log := logrus.WithField("component", "server")

	// Stores
	pool, err := database.Connect(cfg)
	if err != nil {
		log.WithError(err).Fatal("database connection failed")
	}
	defer pool.Close()
	log.Info("connected to database")

	rdb, err := database.ConnectRedis(cfg)
	if err != nil {
		log.WithError(err).Fatal("redis connection failed")
	}
	defer rdb.Close()
	log.Info("connected to redis")

	// Repositories
	userRepo := postgresrepo.NewUserRepo(pool)
	roomRepo := postgresrepo.NewRoomRepo(pool)
	chatRepo := postgresrepo.NewChatRepo(pool)
	deletionFeed := postgresrepo.NewDeletionFeed(pool)
	boardCache := redisboard.NewBoardCache(rdb, "ink:")

	// Services
	verifier := service.NewIdentityVerifier(userRepo, cfg.JWTSecret)
	roomSvc := service.NewRoomService(roomRepo, cfg.RoomTTL)
	chatSvc := service.NewChatService(chatRepo)
	boards := service.NewBoardSync(roomRepo, boardCache, cfg.SnapshotFlush)
	defer boards.Close()
	lifecycle := service.NewLifecycle(deletionFeed, chatRepo, boards)

	hub := ws.NewHub(roomSvc, chatSvc, boards)

	// Routes
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status": "ok"}`))
	})
	mux.Handle("GET /ws", ws.ServeWS(hub, verifier))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.ServerPort),
		Handler: mux,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.WithField("addr", srv.Addr).Info("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	// Cascade watcher: reacts to rooms removed by the TTL reaper.
	g.Go(func() error {
		err := lifecycle.Run(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	// TTL reaper: the store-side sweep that triggers the deletion feed.
	g.Go(func() error {
		ticker := time.NewTicker(cfg.ReapInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				reaped, err := roomRepo.DeleteExpired(ctx)
				if err != nil {
					log.WithError(err).Warn("room reap failed")
				} else if reaped > 0 {
					log.WithField("rooms", reaped).Info("reaped expired rooms")
				}
			case <-ctx.Done():
				return nil
			}
		}
	})

	if err := g.Wait(); err != nil {
		log.WithError(err).Fatal("server exited")
	}
	log.Info("server stopped")
}
