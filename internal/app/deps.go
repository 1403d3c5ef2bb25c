package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/friendbook/backend/internal/auth"
	"github.com/friendbook/backend/internal/config"
	"github.com/friendbook/backend/internal/db"
	"github.com/friendbook/backend/internal/events"
	"github.com/friendbook/backend/internal/friends"
	"github.com/friendbook/backend/internal/handlers"
	"github.com/friendbook/backend/internal/middleware"
	"github.com/friendbook/backend/internal/repositories"
	"github.com/friendbook/backend/internal/storage"
)

const (
	loginAttempts    = 5
	loginWindow      = time.Minute
	eventSinkTimeout = 5 * time.Second
)

// userBackend is served by both the postgres and the mongo repositories.
type userBackend interface {
	handlers.UserStore
	friends.Store
}

// dataStore bundles everything a backing database provides to the service.
type dataStore struct {
	users    userBackend
	sessions auth.SessionStore
	health   handlers.Pinger
	close    func(context.Context) error
}

func openStore(ctx context.Context, cfg config.Config) (dataStore, error) {
	switch cfg.Store {
	case config.StoreMongo:
		client, err := repositories.ConnectMongo(ctx, cfg.MongoURI)
		if err != nil {
			return dataStore{}, err
		}
		users := repositories.NewMongoUserRepository(client, cfg.MongoDatabase)
		if err := users.EnsureIndexes(ctx); err != nil {
			_ = client.Disconnect(context.Background())
			return dataStore{}, err
		}
		return newMongoStore(client, users, cfg.MongoDatabase), nil
	default:
		pool, err := db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return dataStore{}, err
		}
		return newPostgresStore(pool), nil
	}
}

func newPostgresStore(pool db.Pool) dataStore {
	// *pgxpool.Pool answers Ping; test doubles may not.
	health, _ := pool.(handlers.Pinger)
	return dataStore{
		users:    repositories.NewPostgresUserRepository(pool),
		sessions: repositories.NewPostgresSessionStore(pool),
		health:   health,
		close: func(context.Context) error {
			pool.Close()
			return nil
		},
	}
}

func newMongoStore(client *mongo.Client, users *repositories.MongoUserRepository, database string) dataStore {
	return dataStore{
		users:    users,
		sessions: repositories.NewMongoSessionStore(client, database),
		health:   mongoPinger{client: client},
		close:    client.Disconnect,
	}
}

type mongoPinger struct {
	client *mongo.Client
}

func (p mongoPinger) Ping(ctx context.Context) error {
	return p.client.Ping(ctx, readpref.Primary())
}

// openPublisher returns the relationship event publisher. Without a Redis
// address events are dropped.
func openPublisher(ctx context.Context, cfg config.EventsConfig, logger *slog.Logger) (events.Publisher, func(context.Context) error, error) {
	if cfg.RedisAddr == "" {
		return events.Nop{}, nil, nil
	}

	client, err := events.ConnectRedis(ctx, cfg.RedisAddr, cfg.RedisDB)
	if err != nil {
		return nil, nil, err
	}

	dispatcher := events.NewDispatcher(
		events.NewRedisPublisher(client, cfg.Queue),
		events.DispatcherConfig{QueueSize: cfg.QueueSize, Workers: cfg.Workers, Timeout: eventSinkTimeout},
		logger.With("component", "events"),
	)

	cleanup := func(ctx context.Context) error {
		shutdownErr := dispatcher.Shutdown(ctx)
		if err := client.Close(); err != nil && shutdownErr == nil {
			return fmt.Errorf("close redis: %w", err)
		}
		return shutdownErr
	}
	return dispatcher, cleanup, nil
}

// openMediaStorage returns nil when no bucket is configured.
func openMediaStorage(ctx context.Context, cfg config.ObjectStoreConfig) (handlers.MediaStorage, error) {
	if cfg.Bucket == "" {
		return nil, nil
	}
	objects, err := storage.NewS3Storage(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return objects, nil
}

// buildDependencies wires together concrete implementations used by the HTTP handlers.
func buildDependencies(store dataStore, publisher events.Publisher, media handlers.MediaStorage, cfg config.Config) handlers.Dependencies {
	sessions := auth.NewManager(cfg.AccessTokenTTL, cfg.RefreshTokenTTL, store.sessions, []byte(cfg.JWTSecret))

	return handlers.Dependencies{
		Users:          store.users,
		Sessions:       sessions,
		Tokens:         sessions,
		Friends:        friends.NewManager(store.users, publisher),
		Media:          media,
		Health:         store.health,
		LoginLimiter:   middleware.NewIPRateLimiter(loginAttempts, loginWindow, loginAttempts, 0),
		MaxUploadBytes: cfg.MaxUploadBytes,
	}
}
