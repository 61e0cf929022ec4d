package store

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/redis/go-redis/v9"
)

// Backend names accepted by Open.
const (
	BackendFile     = "file"
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendDynamo   = "dynamodb"
)

// Options selects and configures a storage backend.
type Options struct {
	Backend     string
	Dir         string
	RedisURL    string
	PostgresDSN string
	DynamoTable string
	Profile     string
	// Secret enables at-rest encryption when non-empty.
	Secret string
}

// Open builds the configured store. The returned close function releases
// any connection the backend holds and is never nil.
func Open(ctx context.Context, opts Options) (KV, func() error, error) {
	kv, closeFn, err := openBackend(ctx, opts)
	if err != nil {
		return nil, nil, err
	}
	if opts.Secret == "" {
		return kv, closeFn, nil
	}

	sealed, err := NewSealed(kv, opts.Secret)
	if err != nil {
		closeFn()
		return nil, nil, err
	}
	return sealed, closeFn, nil
}

func openBackend(ctx context.Context, opts Options) (KV, func() error, error) {
	noop := func() error { return nil }

	switch opts.Backend {
	case "", BackendFile:
		fs, err := NewFileStore(opts.Dir, opts.Profile)
		if err != nil {
			return nil, nil, err
		}
		return fs, noop, nil
	case BackendMemory:
		return NewMemoryStore(), noop, nil
	case BackendRedis:
		redisOpts, err := redis.ParseURL(opts.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid redis url: %w", err)
		}
		client := redis.NewClient(redisOpts)
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		return NewRedisStore(client, opts.Profile), client.Close, nil
	case BackendPostgres:
		db, err := ConnectPostgres(opts.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		ps, err := NewPostgresStore(ctx, db, opts.Profile)
		if err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("failed to prepare postgres storage: %w", err)
		}
		return ps, db.Close, nil
	case BackendDynamo:
		cfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load aws config: %w", err)
		}
		return NewDynamoStore(dynamodb.NewFromConfig(cfg), opts.DynamoTable, opts.Profile), noop, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", opts.Backend)
	}
}
