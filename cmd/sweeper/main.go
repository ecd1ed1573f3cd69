// Command sweeper runs one background job inline and exits. It is meant for
// an external scheduler (cron, Kubernetes CronJob) when the in-process job
// manager is disabled.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ManuelReschke/PlayVerse/app/repository"
	"github.com/ManuelReschke/PlayVerse/internal/pkg/billing"
	"github.com/ManuelReschke/PlayVerse/internal/pkg/cache"
	"github.com/ManuelReschke/PlayVerse/internal/pkg/catalog"
	"github.com/ManuelReschke/PlayVerse/internal/pkg/catalogsync"
	"github.com/ManuelReschke/PlayVerse/internal/pkg/database"
	"github.com/ManuelReschke/PlayVerse/internal/pkg/env"
	"github.com/ManuelReschke/PlayVerse/internal/pkg/igdb"
)

func main() {
	var (
		jobFlag     string
		limitFlag   int
		timeoutFlag time.Duration
	)

	flag.StringVar(&jobFlag, "job", "expirations", "job to run (expirations, ratings)")
	flag.IntVar(&limitFlag, "limit", 0, "maximum number of games for the rating sync (0 uses IGDB_SYNC_BATCH_SIZE)")
	flag.DurationVar(&timeoutFlag, "timeout", 30*time.Minute, "abort the run after this duration")
	flag.Parse()

	job := strings.ToLower(strings.TrimSpace(jobFlag))
	switch job {
	case "expirations", "ratings":
	default:
		exitWithError(fmt.Errorf("unsupported job %q", job))
	}

	env.SetupEnvFile()
	database.SetupDatabase()

	ctx, cancel := context.WithTimeout(context.Background(), timeoutFlag)
	defer cancel()

	var (
		result interface{}
		err    error
	)
	switch job {
	case "expirations":
		result, err = billing.NewServiceFromDB(database.GetDB()).SweepExpirations(ctx)
	case "ratings":
		cache.SetupCache()
		client := igdb.NewClientFromEnv(cache.NewStore(cache.GetClient(), "playverse:"))
		if !client.Configured() {
			exitWithError(errors.New("IGDB_CLIENT_ID and IGDB_CLIENT_SECRET are required"))
		}
		games := catalog.NewService(repository.NewGameRepository(database.GetDB()))
		result, err = catalogsync.NewSyncer(client, games, catalogsync.ConfigFromEnv()).Run(ctx, limitFlag)
	}
	if err != nil {
		exitWithError(fmt.Errorf("%s failed: %w", job, err))
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		exitWithError(fmt.Errorf("failed to encode result: %w", err))
	}
	fmt.Println(string(out))
}

func exitWithError(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
