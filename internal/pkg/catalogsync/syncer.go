// Package catalogsync enriches catalog games with age ratings from IGDB.
package catalogsync

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ManuelReschke/PlayVerse/app/models"
	"github.com/ManuelReschke/PlayVerse/internal/pkg/env"
	"github.com/ManuelReschke/PlayVerse/internal/pkg/igdb"
	"github.com/ManuelReschke/PlayVerse/internal/pkg/ratings"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/datatypes"
)

// Source is the remote rating catalog.
type Source interface {
	FetchAgeRatings(ctx context.Context, igdbID int64) (*igdb.Game, error)
	FindGameID(ctx context.Context, title string) (int64, error)
}

// Store reads games due for a sync and writes the results back.
type Store interface {
	GamesDueForRatingSync(syncedBefore time.Time, limit int) ([]models.Game, error)
	ApplyAgeRating(id uint, igdbID int64, choice *ratings.Choice, metadata datatypes.JSONMap, syncedAt time.Time) error
	RecordSyncFailure(id uint, syncErr error, at time.Time) error
}

type Config struct {
	// Delay is waited between two IGDB requests.
	Delay time.Duration
	// ResyncAfter is how old a previous sync must be before it is repeated.
	ResyncAfter time.Duration
	// BatchSize caps a run when Run is called without a limit.
	BatchSize int
}

func ConfigFromEnv() Config {
	return Config{
		Delay:       time.Duration(env.GetEnvInt("IGDB_REQUEST_DELAY_MS", 300)) * time.Millisecond,
		ResyncAfter: time.Duration(env.GetEnvInt("IGDB_RESYNC_HOURS", 24*7)) * time.Hour,
		BatchSize:   env.GetEnvInt("IGDB_SYNC_BATCH_SIZE", 50),
	}
}

type Failure struct {
	GameID uint   `json:"game_id"`
	Title  string `json:"title"`
	Error  string `json:"error"`
}

type Report struct {
	Processed int       `json:"processed"`
	Rated     int       `json:"rated"`
	Unrated   int       `json:"unrated"`
	Failed    int       `json:"failed"`
	Failures  []Failure `json:"failures,omitempty"`
}

type Syncer struct {
	source Source
	store  Store
	cfg    Config
	now    func() time.Time
	sleep  func(ctx context.Context, d time.Duration) error
}

func NewSyncer(source Source, store Store, cfg Config) *Syncer {
	return &Syncer{
		source: source,
		store:  store,
		cfg:    cfg,
		now:    time.Now,
		sleep:  sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Run syncs up to limit due games one after another. A failing game is
// recorded on the game and in the report; the batch continues. Only store
// read errors and context cancellation abort the run.
func (s *Syncer) Run(ctx context.Context, limit int) (*Report, error) {
	if limit <= 0 {
		limit = s.cfg.BatchSize
	}
	if limit <= 0 {
		limit = 50
	}

	games, err := s.store.GamesDueForRatingSync(s.now().UTC().Add(-s.cfg.ResyncAfter), limit)
	if err != nil {
		return nil, fmt.Errorf("list games due for rating sync: %w", err)
	}

	report := &Report{}
	requests := 0
	for _, g := range games {
		report.Processed++

		choice, err := s.syncOne(ctx, g, &requests)
		if err != nil {
			if ctx.Err() != nil {
				return report, ctx.Err()
			}
			report.Failed++
			report.Failures = append(report.Failures, Failure{GameID: g.ID, Title: g.Title, Error: err.Error()})
			log.Warnf("[RatingSync] game %d (%s) failed: %v", g.ID, g.Title, err)
			if recErr := s.store.RecordSyncFailure(g.ID, err, s.now().UTC()); recErr != nil {
				log.Errorf("[RatingSync] could not record failure for game %d: %v", g.ID, recErr)
			}
			continue
		}
		if choice != nil {
			report.Rated++
		} else {
			report.Unrated++
		}
	}

	log.Infof("[RatingSync] processed=%d rated=%d unrated=%d failed=%d", report.Processed, report.Rated, report.Unrated, report.Failed)
	return report, nil
}

// throttle waits the configured delay before every request but the first.
func (s *Syncer) throttle(ctx context.Context, requests *int) error {
	if *requests > 0 {
		if err := s.sleep(ctx, s.cfg.Delay); err != nil {
			return err
		}
	}
	*requests++
	return nil
}

func (s *Syncer) syncOne(ctx context.Context, g models.Game, requests *int) (*ratings.Choice, error) {
	var igdbID int64
	if g.IGDBID != nil && *g.IGDBID > 0 {
		igdbID = *g.IGDBID
	} else {
		if err := s.throttle(ctx, requests); err != nil {
			return nil, err
		}
		id, err := s.source.FindGameID(ctx, g.Title)
		if err != nil {
			return nil, fmt.Errorf("resolve igdb id: %w", err)
		}
		igdbID = id
	}

	if err := s.throttle(ctx, requests); err != nil {
		return nil, err
	}
	remote, err := s.source.FetchAgeRatings(ctx, igdbID)
	if err != nil {
		return nil, fmt.Errorf("fetch age ratings: %w", err)
	}

	choice := ratings.PickAgeRating(remote.AgeRatings)

	var meta datatypes.JSONMap
	if len(remote.Raw) > 0 {
		if err := json.Unmarshal(remote.Raw, &meta); err != nil {
			meta = nil
		}
	}

	if err := s.store.ApplyAgeRating(g.ID, igdbID, choice, meta, s.now().UTC()); err != nil {
		return nil, fmt.Errorf("store age rating: %w", err)
	}
	return choice, nil
}
