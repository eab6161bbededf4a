package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/fjod/go_shop/internal/config"
	"github.com/fjod/go_shop/internal/events"
	"github.com/fjod/go_shop/internal/repository"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"
)

// resources are the storage handles opened once per process and passed to
// everything that needs them.
type resources struct {
	mongo     *mongo.Database
	orders    *repository.PostgresOrderRepository
	redis     *redis.Client
	publisher events.Publisher
}

func openResources(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*resources, error) {
	res := &resources{}

	db, err := repository.ConnectMongoDB(ctx, cfg.MongoURI, cfg.MongoDBName)
	if err != nil {
		return nil, err
	}
	res.mongo = db
	logger.Info().Str("database", cfg.MongoDBName).Msg("connected to MongoDB")

	res.orders, err = repository.NewOrderRepository(ctx, &repository.Credentials{
		Host:     cfg.PostgresHost,
		Port:     cfg.PostgresPort,
		User:     cfg.PostgresUser,
		Password: cfg.PostgresPassword,
		DBName:   cfg.PostgresDB,
	})
	if err != nil {
		res.Close(context.WithoutCancel(ctx))
		return nil, err
	}
	logger.Info().Str("host", cfg.PostgresHost).Msg("connected to Postgres")

	res.redis = redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := res.redis.Ping(ctx).Err(); err != nil {
		res.Close(context.WithoutCancel(ctx))
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	logger.Info().Str("addr", cfg.RedisAddr).Msg("redis ping succeeded")

	if len(cfg.KafkaBrokers) > 0 {
		res.publisher = events.NewKafkaPublisher(cfg.KafkaTopic, cfg.KafkaBrokers...)
		logger.Info().Strs("brokers", cfg.KafkaBrokers).Str("topic", cfg.KafkaTopic).Msg("publishing events to Kafka")
	} else {
		res.publisher = events.NopPublisher{}
		logger.Warn().Msg("no Kafka brokers configured, events are dropped")
	}

	return res, nil
}

// Close releases every handle that was opened.
func (r *resources) Close(ctx context.Context) error {
	var errs []error
	if r.publisher != nil {
		errs = append(errs, r.publisher.Close())
	}
	if r.redis != nil {
		errs = append(errs, r.redis.Close())
	}
	if r.orders != nil {
		errs = append(errs, r.orders.Close())
	}
	if r.mongo != nil {
		errs = append(errs, r.mongo.Client().Disconnect(ctx))
	}
	return errors.Join(errs...)
}
