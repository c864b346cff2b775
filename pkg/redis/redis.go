package redis

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const sentenceKeyPrefix = "vsl:sentence:"

// ErrCacheMiss is returned when no sentence is cached for a gloss string.
var ErrCacheMiss = errors.New("sentence not cached")

type IRedis interface {
	SetSentence(ctx context.Context, glosses string, sentence string, expiration time.Duration) error
	GetSentence(ctx context.Context, glosses string) (string, error)
	DeleteSentence(ctx context.Context, glosses string) error
	Ping(ctx context.Context) error
}

type redisClient struct {
	client *redis.Client
}

func New() IRedis {
	db, _ := strconv.Atoi(os.Getenv("REDIS_DB"))
	redisAddr := os.Getenv("REDIS_ADDRESS")
	redisPassword := os.Getenv("REDIS_PASSWORD")

	logrus.Info(fmt.Sprintf("Connecting to Redis at %s...", redisAddr))

	client := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		Password: redisPassword,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		logrus.Error(fmt.Sprintf("Failed to connect to Redis: %v", err))
	} else {
		logrus.Info("Successfully connected to Redis")
	}

	return &redisClient{client: client}
}

func NewWithClient(client *redis.Client) IRedis {
	return &redisClient{client: client}
}

func sentenceKey(glosses string) string {
	return sentenceKeyPrefix + strings.ToLower(strings.TrimSpace(glosses))
}

func (r *redisClient) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *redisClient) SetSentence(ctx context.Context, glosses string, sentence string, expiration time.Duration) error {
	key := sentenceKey(glosses)
	logrus.Debug(fmt.Sprintf("Caching sentence for key %s with expiration %v", key, expiration))

	if err := r.client.Set(ctx, key, sentence, expiration).Err(); err != nil {
		logrus.Error(fmt.Sprintf("Error caching sentence for key %s: %v", key, err))
		return err
	}
	return nil
}

func (r *redisClient) GetSentence(ctx context.Context, glosses string) (string, error) {
	key := sentenceKey(glosses)

	val, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		logrus.Debug(fmt.Sprintf("Sentence not cached for key %s", key))
		return "", ErrCacheMiss
	} else if err != nil {
		logrus.Error(fmt.Sprintf("Error getting sentence for key %s: %v", key, err))
		return "", err
	}

	logrus.Debug(fmt.Sprintf("Sentence cache hit for key %s", key))
	return val, nil
}

func (r *redisClient) DeleteSentence(ctx context.Context, glosses string) error {
	key := sentenceKey(glosses)

	result, err := r.client.Del(ctx, key).Result()
	if err != nil {
		logrus.Error(fmt.Sprintf("Error deleting sentence for key %s: %v", key, err))
		return err
	}

	if result == 0 {
		logrus.Debug(fmt.Sprintf("Sentence key %s not found for deletion", key))
	}
	return nil
}
