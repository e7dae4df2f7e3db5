// @title           Drive API
// @version         1.0
// @description     Personal cloud storage: folders, file uploads, listings and recursive deletes.
// @host            localhost:8080
// @schemes         http https
// @BasePath        /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"drive-api/internal/api"
	"drive-api/internal/auth"
	"drive-api/internal/cleanup"
	"drive-api/internal/config"
	"drive-api/internal/database"
	"drive-api/internal/logging"
	"drive-api/internal/mongostore"
	"drive-api/internal/storage"
	"drive-api/internal/tree"
	"drive-api/internal/websocket"

	"github.com/rs/zerolog/log"

	_ "drive-api/docs"
)

// blobBackend is what the server needs from a blob store beyond the tree.
type blobBackend interface {
	tree.BlobStore
	Ping(ctx context.Context) error
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

type checkedBlobs struct {
	tree.BlobStore
	pingFunc
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	logging.Init(cfg.Log.Level, cfg.Log.Format)

	if err := run(cfg); err != nil {
		log.Fatal().Err(err).Msg("Server stopped with error")
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := database.Connect(ctx, cfg.DB.Source)
	if err != nil {
		return err
	}
	defer pool.Close()
	log.Info().Msg("Connected to database")

	store := database.NewStore(pool)

	blobs, err := openBlobs(ctx, cfg)
	if err != nil {
		return err
	}

	nodes, closeNodes, err := openTreeStore(ctx, cfg, store)
	if err != nil {
		return err
	}
	defer closeNodes()

	wsHub := websocket.NewHub()
	treeService, err := tree.NewService(nodes, blobs,
		tree.WithMaxDepth(cfg.Tree.MaxDepth),
		tree.WithNotifier(websocket.NewNotifier(store, wsHub)),
		tree.WithOrphanRecorder(store),
	)
	if err != nil {
		return err
	}

	guard := auth.NewGuard(cfg.JWT.Secret, cfg.JWT.AccessTTL)
	server, err := api.NewServer(cfg, store, treeService, blobs, wsHub, guard)
	if err != nil {
		return err
	}
	server.AddHealthCheck("storage", blobs)
	if p, ok := nodes.(api.Pinger); ok && cfg.Tree.Backend == "mongo" {
		server.AddHealthCheck("tree", p)
	}

	scheduler := cleanup.NewScheduler(5 * time.Minute)
	sweeper := cleanup.NewSweeper(store, blobs, cfg.Cleanup.BatchSize)
	err = scheduler.Add("orphan-sweep", cfg.Cleanup.Schedule, func(ctx context.Context) error {
		_, err := sweeper.Sweep(ctx)
		return err
	})
	if err != nil {
		return err
	}
	err = scheduler.Add("session-purge", cfg.Cleanup.SessionSchedule, func(ctx context.Context) error {
		n, err := store.DeleteExpiredSessions(ctx)
		if n > 0 {
			log.Info().Int64("sessions", n).Msg("Expired sessions purged")
		}
		return err
	})
	if err != nil {
		return err
	}
	scheduler.Start()

	httpServer := &http.Server{
		Addr:              cfg.Listen,
		Handler:           server.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Listen).Str("tree", cfg.Tree.Backend).Str("storage", cfg.Storage.Backend).Msg("Starting server")
		serverErr <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		log.Info().Msg("Shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	scheduler.Stop(shutdownCtx)
	return httpServer.Shutdown(shutdownCtx)
}

func openBlobs(ctx context.Context, cfg *config.Config) (blobBackend, error) {
	switch cfg.Storage.Backend {
	case "s3":
		s3cfg := cfg.Storage.S3
		s3Storage, err := storage.NewS3Storage(ctx, storage.S3Options{
			Bucket:          s3cfg.Bucket,
			Region:          s3cfg.Region,
			Endpoint:        s3cfg.Endpoint,
			AccessKeyID:     s3cfg.AccessKeyID,
			SecretAccessKey: s3cfg.SecretAccessKey,
			KeyPrefix:       s3cfg.KeyPrefix,
			PublicURL:       s3cfg.PublicURL,
			URLExpiry:       s3cfg.PresignTTL,
		})
		if err != nil {
			return nil, err
		}
		if err := s3Storage.CheckBucket(ctx); err != nil {
			return nil, err
		}
		log.Info().Str("bucket", s3cfg.Bucket).Msg("Files will be stored in S3")
		return checkedBlobs{BlobStore: s3Storage, pingFunc: s3Storage.CheckBucket}, nil
	default:
		localStorage, err := storage.NewLocalStorage(cfg.Storage.Path, cfg.AppHost)
		if err != nil {
			return nil, err
		}
		log.Info().Str("path", cfg.Storage.Path).Msg("Files will be stored on local disk")
		return checkedBlobs{
			BlobStore: localStorage,
			pingFunc: func(context.Context) error {
				_, err := os.Stat(cfg.Storage.Path)
				return err
			},
		}, nil
	}
}

// openTreeStore picks where node metadata lives. Accounts, sessions and the
// event journal always stay in Postgres.
func openTreeStore(ctx context.Context, cfg *config.Config, store *database.Store) (tree.Store, func(), error) {
	switch cfg.Tree.Backend {
	case "mongo":
		mongo, err := mongostore.Open(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open mongo tree store: %w", err)
		}
		closeFn := func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := mongo.Close(closeCtx); err != nil {
				log.Warn().Err(err).Msg("Failed to close mongo connection")
			}
		}
		return mongo, closeFn, nil
	case "memory":
		log.Warn().Msg("Tree metadata is kept in memory and lost on restart")
		return tree.NewMemoryStore(), func() {}, nil
	default:
		return store, func() {}, nil
	}
}
