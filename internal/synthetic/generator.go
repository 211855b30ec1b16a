// Package synthetic produces placeholder platform data for when the upstream
// cannot be reached. Identities echo the request; everything else is random.
package synthetic

import (
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"

	"playergate/internal/platform"
)

var (
	adjectives = []string{"Swift", "Brave", "Clever", "Mighty", "Silent", "Lucky", "Cosmic", "Frosty"}
	nouns      = []string{"Builder", "Knight", "Ninja", "Pilot", "Wizard", "Ranger", "Panda", "Falcon"}
	genres     = []string{"Adventure", "Obby", "Roleplay", "Simulator", "Tycoon", "Fighting", "Horror"}
	eventKinds = []string{"Launch Party", "Double XP Weekend", "Build Contest", "Community Meetup"}
	statuses   = []string{"upcoming", "active", "ended"}
)

// Generator is safe for concurrent use.
type Generator struct {
	mu  sync.Mutex
	rng *rand.Rand
	now func() time.Time
}

type Option func(*Generator)

// WithSeed makes output reproducible.
func WithSeed(seed uint64) Option {
	return func(g *Generator) { g.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)) }
}

func WithClock(now func() time.Time) Option {
	return func(g *Generator) { g.now = now }
}

func New(opts ...Option) *Generator {
	g := &Generator{
		rng: rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		now: time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Generator) intn(n int) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rng.IntN(n)
}

func (g *Generator) int64Range(lo, hi int64) int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return lo + g.rng.Int64N(hi-lo+1)
}

func (g *Generator) pick(list []string) string { return list[g.intn(len(list))] }

// pastTime is a moment between minDays and maxDays ago.
func (g *Generator) pastTime(minDays, maxDays int64) time.Time {
	days := g.int64Range(minDays, maxDays)
	return g.now().Add(-time.Duration(days) * 24 * time.Hour).UTC().Truncate(time.Second)
}

func (g *Generator) handle() string {
	return fmt.Sprintf("%s%s%d", g.pick(adjectives), g.pick(nouns), g.intn(10000))
}

func (g *Generator) Player(userID int64) *platform.Player {
	name := g.handle()
	return &platform.Player{
		ID:          userID,
		Username:    name,
		DisplayName: name,
		Description: "Player profile unavailable.",
		Created:     g.pastTime(30, 3650),
	}
}

func (g *Generator) PlayerProfile(userID int64) *platform.PlayerProfile {
	count := int(g.int64Range(0, 200))
	return &platform.PlayerProfile{Player: *g.Player(userID), FriendCount: &count}
}

func (g *Generator) Avatar(userID int64, size string) *platform.Avatar {
	return &platform.Avatar{
		UserID:   userID,
		Size:     size,
		ImageURL: "",
		State:    "Pending",
	}
}

func (g *Generator) Game(universeID int64) *platform.Game {
	created := g.pastTime(30, 2000)
	return &platform.Game{
		UniverseID:  universeID,
		RootPlaceID: g.int64Range(1_000_000, 9_999_999_999),
		Name:        fmt.Sprintf("%s %s", g.pick(adjectives), g.pick(genres)),
		Description: "Game details unavailable.",
		Creator: platform.Creator{
			ID:   g.int64Range(1, 999_999_999),
			Name: g.handle(),
			Type: "User",
		},
		Playing:    g.int64Range(0, 5000),
		Visits:     g.int64Range(1000, 10_000_000),
		MaxPlayers: int(g.int64Range(2, 50)),
		Favorites:  g.int64Range(0, 100_000),
		Genre:      g.pick(genres),
		Created:    created,
		Updated:    created.Add(time.Duration(g.int64Range(1, 29)) * 24 * time.Hour),
	}
}

func (g *Generator) GameStats(universeID int64) *platform.GameStats {
	up := g.int64Range(0, 50_000)
	down := g.int64Range(0, 10_000)
	ratio := 0.0
	if up+down > 0 {
		ratio = float64(up*100/(up+down)) / 100
	}
	return &platform.GameStats{UniverseID: universeID, UpVotes: up, DownVotes: down, LikeRatio: ratio}
}

func (g *Generator) Group(groupID int64) *platform.Group {
	owner := g.handle()
	return &platform.Group{
		ID:          groupID,
		Name:        fmt.Sprintf("The %s %ss", g.pick(adjectives), g.pick(nouns)),
		Description: "Group details unavailable.",
		Owner: &platform.GroupOwner{
			UserID:      g.int64Range(1, 999_999_999),
			Username:    owner,
			DisplayName: owner,
		},
		MemberCount:        g.int64Range(1, 100_000),
		PublicEntryAllowed: true,
	}
}

func (g *Generator) Asset(assetID int64) *platform.Asset {
	created := g.pastTime(30, 3000)
	return &platform.Asset{
		ID:          assetID,
		Name:        fmt.Sprintf("%s %s", g.pick(adjectives), g.pick([]string{"Hat", "Shirt", "Sword", "Wings"})),
		Description: "Asset details unavailable.",
		AssetTypeID: 8,
		Creator: platform.Creator{
			ID:   g.int64Range(1, 999_999_999),
			Name: g.handle(),
			Type: "User",
		},
		PriceRobux: g.int64Range(0, 1000),
		Sales:      g.int64Range(0, 50_000),
		IsForSale:  g.intn(2) == 0,
		Created:    created,
		Updated:    created,
	}
}

// Leaderboard returns exactly limit entries in descending value order.
func (g *Generator) Leaderboard(universeID int64, name string, limit int) *platform.Leaderboard {
	entries := make([]platform.LeaderboardEntry, 0, limit)
	value := g.int64Range(int64(limit)*10, int64(limit)*1000)
	for i := 0; i < limit; i++ {
		entries = append(entries, platform.LeaderboardEntry{
			Rank:  i + 1,
			Key:   fmt.Sprintf("Player_%d", g.int64Range(1, 999_999_999)),
			Value: value,
		})
		value -= g.int64Range(0, 10)
		if value < 0 {
			value = 0
		}
	}
	return &platform.Leaderboard{UniverseID: universeID, Name: name, Entries: entries}
}

func (g *Generator) Events(universeID int64) *platform.Events {
	n := g.intn(3) + 1
	events := make([]platform.Event, 0, n)
	for i := 0; i < n; i++ {
		start := g.now().Add(time.Duration(g.int64Range(-72, 336)) * time.Hour).UTC().Truncate(time.Hour)
		events = append(events, platform.Event{
			ID:          uuid.NewString(),
			Title:       g.pick(eventKinds),
			Description: "Event details unavailable.",
			Status:      g.pick(statuses),
			StartTime:   start,
			EndTime:     start.Add(time.Duration(g.int64Range(1, 6)) * time.Hour),
		})
	}
	return &platform.Events{UniverseID: universeID, Events: events}
}
