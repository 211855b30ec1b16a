package platform

import "time"

type Player struct {
	ID               int64     `json:"id"`
	Username         string    `json:"username"`
	DisplayName      string    `json:"displayName"`
	Description      string    `json:"description"`
	Created          time.Time `json:"created"`
	IsBanned         bool      `json:"isBanned"`
	HasVerifiedBadge bool      `json:"hasVerifiedBadge"`
}

// PlayerProfile is a Player plus its friend count. FriendCount is nil when the
// count could not be fetched.
type PlayerProfile struct {
	Player
	FriendCount *int `json:"friendCount"`
}

type Avatar struct {
	UserID   int64  `json:"userId"`
	Size     string `json:"size"`
	ImageURL string `json:"imageUrl"`
	State    string `json:"state"`
}

type Creator struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

type Game struct {
	UniverseID  int64     `json:"universeId"`
	RootPlaceID int64     `json:"rootPlaceId"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Creator     Creator   `json:"creator"`
	Playing     int64     `json:"playing"`
	Visits      int64     `json:"visits"`
	MaxPlayers  int       `json:"maxPlayers"`
	Favorites   int64     `json:"favorites"`
	Genre       string    `json:"genre"`
	Created     time.Time `json:"created"`
	Updated     time.Time `json:"updated"`
}

type GameStats struct {
	UniverseID int64   `json:"universeId"`
	UpVotes    int64   `json:"upVotes"`
	DownVotes  int64   `json:"downVotes"`
	LikeRatio  float64 `json:"likeRatio"`
}

type GroupOwner struct {
	UserID      int64  `json:"userId"`
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
}

type Group struct {
	ID                 int64       `json:"id"`
	Name               string      `json:"name"`
	Description        string      `json:"description"`
	Owner              *GroupOwner `json:"owner"`
	MemberCount        int64       `json:"memberCount"`
	IsLocked           bool        `json:"isLocked"`
	PublicEntryAllowed bool        `json:"publicEntryAllowed"`
	HasVerifiedBadge   bool        `json:"hasVerifiedBadge"`
}

type Asset struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	AssetTypeID int       `json:"assetTypeId"`
	Creator     Creator   `json:"creator"`
	PriceRobux  int64     `json:"priceRobux"`
	Sales       int64     `json:"sales"`
	IsForSale   bool      `json:"isForSale"`
	IsLimited   bool      `json:"isLimited"`
	Created     time.Time `json:"created"`
	Updated     time.Time `json:"updated"`
}

type LeaderboardEntry struct {
	Rank  int    `json:"rank"`
	Key   string `json:"key"`
	Value int64  `json:"value"`
}

type Leaderboard struct {
	UniverseID    int64              `json:"universeId"`
	Name          string             `json:"name"`
	Entries       []LeaderboardEntry `json:"entries"`
	NextPageToken string             `json:"nextPageToken,omitempty"`
}

type Event struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Status      string    `json:"status"`
	StartTime   time.Time `json:"startTime"`
	EndTime     time.Time `json:"endTime"`
}

type Events struct {
	UniverseID int64   `json:"universeId"`
	Events     []Event `json:"events"`
}
