package cache

import (
	"net"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/storage/redis"

	"github.com/ManuelReschke/PlayVerse/internal/pkg/env"
)

// Redis databases used next to the cache (DB 0).
const (
	LimiterDatabase = 2
)

// NewFiberStorage returns a fiber.Storage on the cache server using a
// separate Redis database. It is used by middlewares that keep their own
// counters, such as the API rate limiter.
func NewFiberStorage(database int) fiber.Storage {
	host := env.GetEnv("CACHE_HOST", "localhost")
	port := env.GetEnvInt("CACHE_PORT", 6379)
	password := env.GetEnv("CACHE_PASSWORD", "")

	// Prefer the address of the live client if the cache is already set up
	if client != nil {
		opts := client.Options()
		if h, p, err := net.SplitHostPort(opts.Addr); err == nil {
			host = h
			if v, err := strconv.Atoi(p); err == nil {
				port = v
			}
		}
		if opts.Password != "" {
			password = opts.Password
		}
	}

	return redis.New(redis.Config{
		Host:     host,
		Port:     port,
		Password: password,
		Database: database,
		Reset:    false,
	})
}
