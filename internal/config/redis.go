package config

// This file defines the Redis client constructor. The server uses Redis for
// distributed rate limiting and the per-family response cache; the sync
// engine can keep its local mirror there. If the connection fails during
// startup the constructor returns nil and callers degrade gracefully.

import (
	"context"
	"crypto/tls"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// NewRedisClient instantiates a Redis client using environment variables.
// Supported variables are:
//
//   - REDIS_HOST and REDIS_PORT – hostname and port of the Redis server
//   - REDIS_ADDR – host:port shorthand (host/port win when both are set)
//   - REDIS_PASSWORD – optional password
//   - REDIS_DB – database number (default 0)
//   - REDIS_TLS – enable TLS when "true" or "1"
//
// The returned client is nil if a connection cannot be established.
func NewRedisClient() *redis.Client {
	addr := os.Getenv("REDIS_ADDR")
	if host, port := os.Getenv("REDIS_HOST"), os.Getenv("REDIS_PORT"); host != "" && port != "" {
		addr = host + ":" + port
	}
	if addr == "" {
		addr = "localhost:6379"
	}
	dbNum := 0
	if dbStr := os.Getenv("REDIS_DB"); dbStr != "" {
		if n, err := strconv.Atoi(dbStr); err == nil {
			dbNum = n
		}
	}
	var tlsConf *tls.Config
	if tlsEnv := os.Getenv("REDIS_TLS"); strings.EqualFold(tlsEnv, "true") || tlsEnv == "1" {
		tlsConf = &tls.Config{InsecureSkipVerify: true}
	}
	return dial(&redis.Options{
		Addr:      addr,
		Password:  os.Getenv("REDIS_PASSWORD"),
		DB:        dbNum,
		TLSConfig: tlsConf,
	})
}

// NewRedisClientAddr connects to a plain addr, as used by the kitchen CLI's
// KITCHEN_CACHE_REDIS setting.
func NewRedisClientAddr(addr string) *redis.Client {
	return dial(&redis.Options{Addr: addr})
}

func dial(opts *redis.Options) *redis.Client {
	client := redis.NewClient(opts)
	// Ping the server with a short timeout. Return nil on failure.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil
	}
	return client
}
