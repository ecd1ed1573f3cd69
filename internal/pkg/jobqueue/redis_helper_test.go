package jobqueue

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ManuelReschke/PlayVerse/internal/pkg/cache"
	"github.com/ManuelReschke/PlayVerse/internal/pkg/env"
)

func unique(values ...string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// resolveTestRedis probes the usual dev endpoints and skips the test when
// none answers.
func resolveTestRedis(t *testing.T) (string, string, string) {
	t.Helper()

	var lastErr error
	for _, host := range unique(env.GetEnv("CACHE_HOST", "localhost"), "cache", "playverse-cache", "localhost") {
		for _, port := range unique(env.GetEnv("CACHE_PORT", "6379"), "6379") {
			for _, password := range unique(env.GetEnv("CACHE_PASSWORD", ""), "playverse", "") {
				client := redis.NewClient(&redis.Options{
					Addr:     fmt.Sprintf("%s:%s", host, port),
					Password: password,
				})
				ctx, cancel := context.WithTimeout(context.Background(), time.Second)
				err := client.Ping(ctx).Err()
				cancel()
				_ = client.Close()
				if err == nil {
					return host, port, password
				}
				lastErr = err
			}
		}
	}

	t.Skipf("Skipping Redis-dependent test: no reachable Redis endpoint (%v)", lastErr)
	return "", "", ""
}

func configureTestCache(t *testing.T, host, port, password string) {
	t.Helper()
	saved := env.Env
	t.Cleanup(func() { env.Env = saved })

	env.Env = map[string]string{
		"CACHE_HOST":     host,
		"CACHE_PORT":     port,
		"CACHE_PASSWORD": password,
	}
	cache.SetupCache()
}

func resetJobQueueRedis(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	client := cache.GetClient()

	keys := []string{JobQueueKey, JobProcessingKey, JobStatsKey}
	for _, pattern := range []string{JobKeyPrefix + "*", scheduleKeyPrefix + "*"} {
		iter := client.Scan(ctx, 0, pattern, 0).Iterator()
		for iter.Next(ctx) {
			keys = append(keys, iter.Val())
		}
		if err := iter.Err(); err != nil {
			t.Fatalf("failed to scan redis keys: %v", err)
		}
	}
	if err := client.Del(ctx, keys...).Err(); err != nil {
		t.Fatalf("failed to cleanup redis keys: %v", err)
	}
}
