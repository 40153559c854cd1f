package database

import (
	"context"
	"fmt"
	"log"
	"time"

	"hoa-ledger/internal/domain/poll"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SeedConfig holds configuration for seeding the database
type SeedConfig struct {
	CreatedBy string
	Now       time.Time
}

// DefaultSeedConfig returns default seed configuration
func DefaultSeedConfig() *SeedConfig {
	return &SeedConfig{
		CreatedBy: "seed",
		Now:       time.Now().UTC(),
	}
}

// SeedResult holds the result of the seeding operation
type SeedResult struct {
	Polls []*poll.Poll
}

type seedPoll struct {
	title       string
	description string
	kind        poll.Kind
	anonymous   bool
	preventDup  bool
	opensIn     time.Duration
	duration    time.Duration
	options     []string
}

var demoPolls = []seedPoll{
	{
		title:       "Repave the north parking lot",
		description: "Approve the 2026 resurfacing bid.",
		kind:        poll.KindBinding,
		preventDup:  true,
		opensIn:     -time.Hour,
		duration:    14 * 24 * time.Hour,
		options:     []string{"Approve", "Reject", "Abstain"},
	},
	{
		title:      "Pool opening weekend",
		kind:       poll.KindInformal,
		anonymous:  true,
		opensIn:    -time.Hour,
		duration:   7 * 24 * time.Hour,
		options:    []string{"Memorial Day", "First week of June"},
		preventDup: true,
	},
	{
		title:    "Holiday lights theme",
		kind:     poll.KindStrawPoll,
		opensIn:  24 * time.Hour,
		duration: 3 * 24 * time.Hour,
		options:  []string{"Classic white", "Multicolor", "No lights"},
	},
}

// Seed inserts a small set of demo polls. Polls whose title already exists
// are skipped, so running it twice is harmless.
func Seed(ctx context.Context, db *gorm.DB, cfg *SeedConfig) (*SeedResult, error) {
	if cfg == nil {
		cfg = DefaultSeedConfig()
	}

	result := &SeedResult{}
	log.Println("Starting database seeding...")

	for _, sp := range demoPolls {
		var count int64
		if err := db.WithContext(ctx).Model(&poll.Poll{}).Where("title = ?", sp.title).Count(&count).Error; err != nil {
			return nil, fmt.Errorf("failed to check poll %q: %w", sp.title, err)
		}
		if count > 0 {
			log.Printf("Poll %q already exists, skipping", sp.title)
			continue
		}

		p := &poll.Poll{
			ID:                uuid.New(),
			Title:             sp.title,
			Description:       sp.description,
			Kind:              sp.kind,
			Anonymous:         sp.anonymous,
			PreventDuplicates: sp.preventDup,
			OpensAt:           cfg.Now.Add(sp.opensIn),
			ClosesAt:          cfg.Now.Add(sp.opensIn + sp.duration),
			CreatedBy:         cfg.CreatedBy,
		}
		for i, text := range sp.options {
			p.Options = append(p.Options, poll.Option{
				ID:       uuid.New(),
				PollID:   p.ID,
				Text:     text,
				Position: i + 1,
			})
		}
		if err := db.WithContext(ctx).Create(p).Error; err != nil {
			return nil, fmt.Errorf("failed to seed poll %q: %w", sp.title, err)
		}
		result.Polls = append(result.Polls, p)
	}

	log.Printf("Seeded %d polls", len(result.Polls))
	return result, nil
}
