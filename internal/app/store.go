package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/five82/giftlist/internal/config"
	"github.com/five82/giftlist/internal/store"
	"github.com/five82/giftlist/internal/store/dynamostore"
	"github.com/five82/giftlist/internal/store/memstore"
	"github.com/five82/giftlist/internal/store/mongostore"
)

type closeFunc func(context.Context) error

func noClose(context.Context) error { return nil }

// openStore connects the configured backend.
func openStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (store.GiftStore, closeFunc, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		return memstore.New(cfg.Gifts...), noClose, nil

	case config.BackendMongo:
		s, err := mongostore.Connect(ctx, cfg.Mongo.URI, cfg.Mongo.Database, cfg.Mongo.Collection,
			mongostore.WithLogger(logger.With("component", "mongostore")),
			mongostore.WithRetryBase(cfg.PollInterval),
		)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil

	case config.BackendDynamoDB:
		s, err := dynamostore.Connect(ctx, cfg.DynamoDB.Table, cfg.DynamoDB.Region, cfg.DynamoDB.Endpoint,
			dynamostore.WithLogger(logger.With("component", "dynamostore")),
			dynamostore.WithPollInterval(cfg.PollInterval),
		)
		if err != nil {
			return nil, nil, err
		}
		return s, noClose, nil

	default:
		return nil, nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}

// seedCatalog inserts the gifts listed in path.
func seedCatalog(ctx context.Context, ins store.Inserter, path string, logger *slog.Logger) error {
	catalog, err := config.LoadCatalog(path)
	if err != nil {
		return err
	}
	ids, err := ins.Insert(ctx, catalog)
	if err != nil {
		return fmt.Errorf("seed gifts: %w", err)
	}
	logger.Info("seeded gifts", "path", path, "count", len(ids))
	return nil
}
