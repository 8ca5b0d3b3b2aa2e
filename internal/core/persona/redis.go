package persona

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/redis/go-redis/v9"
)

// ErrConflict is returned when an optimistic update keeps losing to
// concurrent writers.
var ErrConflict = errors.New("persona update conflict")

const defaultUpdateAttempts = 5

// RedisStore shares one persona record between processes. Updates run in a
// WATCH/MULTI transaction and retry on conflict.
type RedisStore struct {
	Client *redis.Client
	Key    string
	Domain string
	// Attempts bounds the optimistic retries of Update.
	Attempts int
}

func NewRedisStore(client *redis.Client, key, domain string) (*RedisStore, error) {
	if _, err := Default(domain); err != nil {
		return nil, err
	}
	return &RedisStore{Client: client, Key: key, Domain: domain, Attempts: defaultUpdateAttempts}, nil
}

// NewRedisStoreFromURL dials url and checks the connection.
func NewRedisStoreFromURL(ctx context.Context, url, key, domain string) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return NewRedisStore(client, key, domain)
}

func (s *RedisStore) Close() error {
	return s.Client.Close()
}

func (s *RedisStore) Load(ctx context.Context) (Config, error) {
	data, err := s.Client.Get(ctx, s.Key).Bytes()
	if errors.Is(err, redis.Nil) {
		return s.Reset(ctx)
	}
	if err != nil {
		return Config{}, fmt.Errorf("failed to read persona: %w", err)
	}
	c, err := Decode(data)
	if err != nil {
		log.Warn("stored persona unreadable, writing defaults", "key", s.Key, "err", err)
		return s.Reset(ctx)
	}
	return c, nil
}

func (s *RedisStore) Save(ctx context.Context, c Config) error {
	data, err := Encode(c)
	if err != nil {
		return fmt.Errorf("failed to marshal persona: %w", err)
	}
	if err := s.Client.Set(ctx, s.Key, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to save persona: %w", err)
	}
	return nil
}

func (s *RedisStore) Reset(ctx context.Context) (Config, error) {
	c, err := Default(s.Domain)
	if err != nil {
		return Config{}, err
	}
	if err := s.Save(ctx, c); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (s *RedisStore) Update(ctx context.Context, fn func(*Config) error) (Config, error) {
	attempts := s.Attempts
	if attempts <= 0 {
		attempts = defaultUpdateAttempts
	}

	var updated Config
	txf := func(tx *redis.Tx) error {
		c, err := s.current(ctx, tx)
		if err != nil {
			return err
		}
		if err := fn(&c); err != nil {
			return err
		}
		data, err := Encode(c)
		if err != nil {
			return fmt.Errorf("failed to marshal persona: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, s.Key, data, 0)
			return nil
		})
		if err == nil {
			updated = c
		}
		return err
	}

	for i := 0; i < attempts; i++ {
		err := s.Client.Watch(ctx, txf, s.Key)
		if err == nil {
			return updated, nil
		}
		if !errors.Is(err, redis.TxFailedErr) {
			return Config{}, err
		}
		log.Debug("persona update conflict, retrying", "attempt", i+1)
	}
	return Config{}, ErrConflict
}

// current reads the watched record, falling back to defaults.
func (s *RedisStore) current(ctx context.Context, tx *redis.Tx) (Config, error) {
	data, err := tx.Get(ctx, s.Key).Bytes()
	if errors.Is(err, redis.Nil) {
		return Default(s.Domain)
	}
	if err != nil {
		return Config{}, fmt.Errorf("failed to read persona: %w", err)
	}
	c, err := Decode(data)
	if err != nil {
		log.Warn("stored persona unreadable, updating defaults", "key", s.Key, "err", err)
		return Default(s.Domain)
	}
	return c, nil
}
