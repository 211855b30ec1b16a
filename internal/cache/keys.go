package cache

import (
	"strconv"
	"strings"
)

// Key kinds. A cache key is "<kind>_<part>_<part>...", e.g. "avatar_42_150x150".
const (
	KindPlayer      = "player"
	KindAvatar      = "avatar"
	KindGame        = "game"
	KindGameStats   = "game_stats"
	KindGroup       = "group"
	KindAsset       = "asset"
	KindLeaderboard = "leaderboard"
	KindEvents      = "events"
)

func buildKey(kind string, parts ...string) string {
	var b strings.Builder
	b.WriteString(kind)
	for _, p := range parts {
		b.WriteByte('_')
		b.WriteString(strings.TrimSpace(p))
	}
	return b.String()
}

func id(v int64) string { return strconv.FormatInt(v, 10) }

func PlayerKey(userID int64) string { return buildKey(KindPlayer, id(userID)) }

func AvatarKey(userID int64, size string) string {
	return buildKey(KindAvatar, id(userID), size)
}

func GameKey(universeID int64) string { return buildKey(KindGame, id(universeID)) }

func GameStatsKey(universeID int64) string { return buildKey(KindGameStats, id(universeID)) }

func GroupKey(groupID int64) string { return buildKey(KindGroup, id(groupID)) }

func AssetKey(assetID int64) string { return buildKey(KindAsset, id(assetID)) }

// LeaderboardKey includes the page size: different limits are different documents.
func LeaderboardKey(universeID int64, name string, limit int) string {
	return buildKey(KindLeaderboard, id(universeID), name, strconv.Itoa(limit))
}

func EventsKey(universeID int64) string { return buildKey(KindEvents, id(universeID)) }

// KindOf returns the kind prefix of a key built by this package, used as a
// low-cardinality log and metric label.
func KindOf(key string) string {
	// game_stats is the only kind that itself contains an underscore.
	if strings.HasPrefix(key, KindGameStats+"_") {
		return KindGameStats
	}
	if i := strings.IndexByte(key, '_'); i > 0 {
		return key[:i]
	}
	return key
}
