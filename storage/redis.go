package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis provides a Redis implementation of the Journal interface.
// Entries are stored as JSON strings under KeyPrefix followed by the fingerprint.
type Redis struct {
	Client    *redis.Client
	KeyPrefix string
	// TTL expires entries after the given duration. Zero keeps them forever.
	TTL time.Duration
}

const defaultRedisKeyPrefix = "docsum:answer:"

// NewRedis creates a new Redis client connection with the provided configuration.
// It returns an initialized Redis struct and any error encountered during connection setup.
func NewRedis(addr, password string, db int) (Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := client.Ping(ctx).Result()
	if err != nil {
		return Redis{}, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return Redis{
		Client:    client,
		KeyPrefix: defaultRedisKeyPrefix,
	}, nil
}

// Record stores entry under its fingerprint, replacing any earlier entry.
func (r Redis) Record(ctx context.Context, entry Entry) error {
	data, err := encodeEntry(entry)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := r.Client.Set(ctx, r.key(entry.Fingerprint), data, r.TTL).Err(); err != nil {
		return fmt.Errorf("failed to set entry: %w", err)
	}

	return nil
}

// Lookup returns the entry stored under fingerprint, or ErrEntryNotFound.
func (r Redis) Lookup(ctx context.Context, fingerprint string) (Entry, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	data, err := r.Client.Get(ctx, r.key(fingerprint)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Entry{}, ErrEntryNotFound
		}
		return Entry{}, fmt.Errorf("failed to get entry: %w", err)
	}

	return decodeEntry(data)
}

// Close closes the client connection.
func (r Redis) Close() error {
	return r.Client.Close()
}

func (r Redis) key(fingerprint string) string {
	prefix := r.KeyPrefix
	if prefix == "" {
		prefix = defaultRedisKeyPrefix
	}
	return prefix + fingerprint
}
