package api

import (
	"context"
	"fmt"

	"drive-api/internal/auth"
	"drive-api/internal/config"
	"drive-api/internal/database"
	"drive-api/internal/logging"
	"drive-api/internal/tree"
	"drive-api/internal/websocket"

	"github.com/jaevor/go-nanoid"
)

const refreshTokenLength = 40

// Pinger is a dependency reported by the health endpoint.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Server struct {
	config          *config.Config
	store           *database.Store
	tree            *tree.Service
	blobs           tree.BlobStore
	wsHub           *websocket.Hub
	guard           *auth.Guard
	checks          map[string]Pinger
	newRefreshToken func() string
	log             logging.Logger
}

func NewServer(cfg *config.Config, store *database.Store, treeService *tree.Service, blobs tree.BlobStore, wsHub *websocket.Hub, guard *auth.Guard) (*Server, error) {
	generateToken, err := nanoid.Standard(refreshTokenLength)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize refresh token generator: %w", err)
	}

	return &Server{
		config:          cfg,
		store:           store,
		tree:            treeService,
		blobs:           blobs,
		wsHub:           wsHub,
		guard:           guard,
		checks:          map[string]Pinger{"database": store},
		newRefreshToken: generateToken,
		log:             logging.Component("api"),
	}, nil
}

// AddHealthCheck registers an extra dependency for GET /health.
func (s *Server) AddHealthCheck(name string, p Pinger) {
	s.checks[name] = p
}
