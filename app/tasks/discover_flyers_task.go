package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/groceryroute/flyer-comb/app/config"
	"github.com/groceryroute/flyer-comb/app/database"
	"github.com/groceryroute/flyer-comb/app/flyer"
)

// DiscoverFlyersTask loads one site's listing page, enumerates the flyers
// on it and persists the ones not seen before with retrieved = false.
// Discovery is idempotent: known and blacklisted flyer ids are skipped.
type DiscoverFlyersTask struct {
	Task
	profile   *config.Profile
	fetcher   flyer.PageFetcher
	parser    *flyer.Parser
	flyerRepo database.FlyerRepository
}

func NewDiscoverFlyersTask(profile *config.Profile, fetcher flyer.PageFetcher,
	parser *flyer.Parser, flyerRepo database.FlyerRepository) *DiscoverFlyersTask {
	return &DiscoverFlyersTask{
		Task:      NewTask(TaskTypeDiscoverFlyers, profile.Name),
		profile:   profile,
		fetcher:   fetcher,
		parser:    parser,
		flyerRepo: flyerRepo,
	}
}

func (t *DiscoverFlyersTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	timeout := time.Duration(t.profile.Settings.PageTimeout) * time.Second

	html, err := t.fetcher.FetchHTML(ctx, t.profile.Site.ListingURL,
		t.profile.Selectors.FlyerListing, timeout)
	if err != nil {
		slog.Error("Task failed", "type", "DiscoverFlyers", "profile", t.profile.Name, "error", err)
		return fmt.Errorf("failed to load listing page: %w", err)
	}

	refs, err := t.parser.ParseListing(html)
	if err != nil {
		slog.Error("Task failed", "type", "DiscoverFlyers", "profile", t.profile.Name, "error", err)
		return fmt.Errorf("failed to parse listing page: %w", err)
	}

	newCount := 0
	knownCount := 0
	blacklistedCount := 0

	for _, ref := range refs {
		if t.profile.IsBlacklisted(ref.ID) {
			blacklistedCount++
			continue
		}

		exists, err := t.flyerRepo.FlyerExists(ref.ID)
		if err != nil {
			slog.Warn("Failed to check flyer existence, skipping", "flyer", ref.ID, "error", err)
			continue
		}
		if exists {
			knownCount++
			continue
		}

		if max := t.profile.Settings.MaxFlyers; max > 0 && newCount >= max {
			break
		}

		record := database.Flyer{
			FlyerID:    ref.ID,
			FlyerURL:   ref.URL,
			Profile:    t.profile.Name,
			StoreChain: ref.StoreChain,
			ValidUntil: ref.ValidUntil,
		}

		if err := t.flyerRepo.InsertFlyer(record); err != nil {
			slog.Warn("Failed to persist discovered flyer, skipping", "flyer", ref.ID, "error", err)
			continue
		}

		newCount++
	}

	slog.Info("Task completed",
		"type", "DiscoverFlyers",
		"profile", t.profile.Name,
		"duration", t.GetDuration(),
		"listed", len(refs),
		"new", newCount,
		"known", knownCount,
		"blacklisted", blacklistedCount)

	return nil
}
