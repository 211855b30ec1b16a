package platform

import (
	"context"
	"fmt"
	"math"
	"net/url"
	"strconv"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"playergate/internal/cache"
	"playergate/internal/fetch"
	"playergate/pkg/logging/logging"
)

func (c *Client) Player(ctx context.Context, userID int64) (*Player, error) {
	u := fmt.Sprintf("%s/v1/users/%d", c.hosts.Users, userID)
	doc, err := c.get(ctx, fetch.Request{URL: u, CacheKey: cache.PlayerKey(userID)})
	if err != nil {
		return nil, err
	}
	if !doc.Get("id").Exists() {
		return nil, malformed(u, "id")
	}

	return &Player{
		ID:               doc.Get("id").Int(),
		Username:         doc.Get("name").String(),
		DisplayName:      doc.Get("displayName").String(),
		Description:      doc.Get("description").String(),
		Created:          parseTime(doc.Get("created")),
		IsBanned:         doc.Get("isBanned").Bool(),
		HasVerifiedBadge: doc.Get("hasVerifiedBadge").Bool(),
	}, nil
}

// FriendCount is never cached.
func (c *Client) FriendCount(ctx context.Context, userID int64) (int, error) {
	u := fmt.Sprintf("%s/v1/users/%d/friends/count", c.hosts.Friends, userID)
	doc, err := fetch.Decode[struct {
		Count *int `json:"count"`
	}](ctx, c.fetcher, fetch.Request{URL: u})
	if err != nil {
		return 0, notFound(err)
	}
	if doc.Count == nil {
		return 0, malformed(u, "count")
	}
	return *doc.Count, nil
}

// PlayerProfile fails only when the player lookup fails. Both lookups run
// concurrently, so the profile waits at most one upstream timeout.
func (c *Client) PlayerProfile(ctx context.Context, userID int64) (*PlayerProfile, error) {
	var (
		player *Player
		count  *int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p, err := c.Player(gctx, userID)
		if err != nil {
			return err
		}
		player = p
		return nil
	})
	g.Go(func() error {
		n, err := c.FriendCount(gctx, userID)
		if err != nil {
			logging.L(ctx).Warn("friend_count_unavailable",
				zap.Int64("user_id", userID),
				zap.Error(err),
			)
			return nil
		}
		count = &n
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &PlayerProfile{Player: *player, FriendCount: count}, nil
}

func (c *Client) Avatar(ctx context.Context, userID int64, size string) (*Avatar, error) {
	q := url.Values{}
	q.Set("userIds", strconv.FormatInt(userID, 10))
	q.Set("size", size)
	q.Set("format", "Png")
	u := c.hosts.Thumbnails + "/v1/users/avatar?" + q.Encode()

	doc, err := c.get(ctx, fetch.Request{URL: u, CacheKey: cache.AvatarKey(userID, size)})
	if err != nil {
		return nil, err
	}
	item, err := firstOf(doc, u)
	if err != nil {
		return nil, err
	}

	return &Avatar{
		UserID:   userID,
		Size:     size,
		ImageURL: item.Get("imageUrl").String(),
		State:    item.Get("state").String(),
	}, nil
}

func (c *Client) Game(ctx context.Context, universeID int64) (*Game, error) {
	u := fmt.Sprintf("%s/v1/games?universeIds=%d", c.hosts.Games, universeID)
	doc, err := c.get(ctx, fetch.Request{URL: u, CacheKey: cache.GameKey(universeID)})
	if err != nil {
		return nil, err
	}
	item, err := firstOf(doc, u)
	if err != nil {
		return nil, err
	}

	return &Game{
		UniverseID:  item.Get("id").Int(),
		RootPlaceID: item.Get("rootPlaceId").Int(),
		Name:        item.Get("name").String(),
		Description: item.Get("description").String(),
		Creator: Creator{
			ID:   item.Get("creator.id").Int(),
			Name: item.Get("creator.name").String(),
			Type: item.Get("creator.type").String(),
		},
		Playing:    item.Get("playing").Int(),
		Visits:     item.Get("visits").Int(),
		MaxPlayers: int(item.Get("maxPlayers").Int()),
		Favorites:  item.Get("favoritedCount").Int(),
		Genre:      item.Get("genre").String(),
		Created:    parseTime(item.Get("created")),
		Updated:    parseTime(item.Get("updated")),
	}, nil
}

func (c *Client) GameStats(ctx context.Context, universeID int64) (*GameStats, error) {
	u := fmt.Sprintf("%s/v1/games/votes?universeIds=%d", c.hosts.Games, universeID)
	doc, err := c.get(ctx, fetch.Request{URL: u, CacheKey: cache.GameStatsKey(universeID)})
	if err != nil {
		return nil, err
	}
	item, err := firstOf(doc, u)
	if err != nil {
		return nil, err
	}

	stats := &GameStats{
		UniverseID: universeID,
		UpVotes:    item.Get("upVotes").Int(),
		DownVotes:  item.Get("downVotes").Int(),
	}
	stats.LikeRatio = likeRatio(stats.UpVotes, stats.DownVotes)
	return stats, nil
}

// likeRatio is the share of up votes, rounded to two decimals; 0 with no votes.
func likeRatio(up, down int64) float64 {
	total := up + down
	if total <= 0 {
		return 0
	}
	return math.Round(float64(up)/float64(total)*100) / 100
}

func (c *Client) Group(ctx context.Context, groupID int64) (*Group, error) {
	u := fmt.Sprintf("%s/v1/groups/%d", c.hosts.Groups, groupID)
	doc, err := c.get(ctx, fetch.Request{URL: u, CacheKey: cache.GroupKey(groupID)})
	if err != nil {
		return nil, err
	}
	if !doc.Get("id").Exists() {
		return nil, malformed(u, "id")
	}

	g := &Group{
		ID:                 doc.Get("id").Int(),
		Name:               doc.Get("name").String(),
		Description:        doc.Get("description").String(),
		MemberCount:        doc.Get("memberCount").Int(),
		IsLocked:           doc.Get("isLocked").Bool(),
		PublicEntryAllowed: doc.Get("publicEntryAllowed").Bool(),
		HasVerifiedBadge:   doc.Get("hasVerifiedBadge").Bool(),
	}
	// Ownerless groups carry "owner": null.
	if owner := doc.Get("owner"); owner.IsObject() {
		g.Owner = &GroupOwner{
			UserID:      owner.Get("userId").Int(),
			Username:    owner.Get("username").String(),
			DisplayName: owner.Get("displayName").String(),
		}
	}
	return g, nil
}

func (c *Client) Asset(ctx context.Context, assetID int64) (*Asset, error) {
	u := fmt.Sprintf("%s/v2/assets/%d/details", c.hosts.Economy, assetID)
	doc, err := c.get(ctx, fetch.Request{URL: u, CacheKey: cache.AssetKey(assetID)})
	if err != nil {
		return nil, err
	}
	if !doc.Get("AssetId").Exists() {
		return nil, malformed(u, "AssetId")
	}

	return &Asset{
		ID:          doc.Get("AssetId").Int(),
		Name:        doc.Get("Name").String(),
		Description: doc.Get("Description").String(),
		AssetTypeID: int(doc.Get("AssetTypeId").Int()),
		Creator: Creator{
			ID:   doc.Get("Creator.Id").Int(),
			Name: doc.Get("Creator.Name").String(),
			Type: doc.Get("Creator.CreatorType").String(),
		},
		PriceRobux: doc.Get("PriceInRobux").Int(),
		Sales:      doc.Get("Sales").Int(),
		IsForSale:  doc.Get("IsForSale").Bool(),
		IsLimited:  doc.Get("IsLimited").Bool(),
		Created:    parseTime(doc.Get("Created")),
		Updated:    parseTime(doc.Get("Updated")),
	}, nil
}

func (c *Client) Leaderboard(ctx context.Context, universeID int64, name string, limit int) (*Leaderboard, error) {
	q := url.Values{}
	q.Set("max_page_size", strconv.Itoa(limit))
	q.Set("order_by", "desc")
	u := fmt.Sprintf("%s/ordered-data-stores/v1/universes/%d/orderedDataStores/%s/scopes/global/entries?%s",
		c.hosts.APIs, universeID, url.PathEscape(name), q.Encode())

	doc, err := c.get(ctx, fetch.Request{
		URL:      u,
		CacheKey: cache.LeaderboardKey(universeID, name, limit),
		TTL:      LeaderboardTTL,
	})
	if err != nil {
		return nil, err
	}

	entries := doc.Get("entries")
	if !entries.IsArray() {
		return nil, malformed(u, "entries array")
	}

	lb := &Leaderboard{
		UniverseID:    universeID,
		Name:          name,
		Entries:       make([]LeaderboardEntry, 0, len(entries.Array())),
		NextPageToken: doc.Get("nextPageToken").String(),
	}
	for i, e := range entries.Array() {
		lb.Entries = append(lb.Entries, LeaderboardEntry{
			Rank:  i + 1,
			Key:   e.Get("id").String(),
			Value: e.Get("value").Int(),
		})
	}
	return lb, nil
}

func (c *Client) Events(ctx context.Context, universeID int64) (*Events, error) {
	u := fmt.Sprintf("%s/virtual-events/v1/universes/%d/virtual-events", c.hosts.APIs, universeID)
	doc, err := c.get(ctx, fetch.Request{
		URL:      u,
		CacheKey: cache.EventsKey(universeID),
		TTL:      EventsTTL,
	})
	if err != nil {
		return nil, err
	}

	data := doc.Get("data")
	if !data.IsArray() {
		return nil, malformed(u, "data array")
	}

	out := &Events{UniverseID: universeID, Events: make([]Event, 0, len(data.Array()))}
	data.ForEach(func(_, e gjson.Result) bool {
		title := e.Get("displayTitle").String()
		if title == "" {
			title = e.Get("title").String()
		}
		out.Events = append(out.Events, Event{
			ID:          e.Get("id").String(),
			Title:       title,
			Description: e.Get("description").String(),
			Status:      e.Get("eventStatus").String(),
			StartTime:   parseTime(e.Get("eventTime.startUtc")),
			EndTime:     parseTime(e.Get("eventTime.endUtc")),
		})
		return true
	})
	return out, nil
}
