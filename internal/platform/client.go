// Package platform maps game-platform resources onto upstream URLs and cache
// keys, fetches them through the gateway, and reshapes the upstream JSON.
package platform

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"playergate/internal/fetch"
)

// ErrNotFound is returned when the upstream reports that a resource does not
// exist, either with a 404 or with an empty result set.
var ErrNotFound = errors.New("platform: resource not found")

const (
	LeaderboardTTL = 60 * time.Second
	EventsTTL      = 120 * time.Second
)

// Upstreams holds the base URL of each upstream host.
type Upstreams struct {
	Users      string
	Friends    string
	Thumbnails string
	Games      string
	Groups     string
	Economy    string
	APIs       string
}

func DefaultUpstreams() Upstreams {
	return Upstreams{
		Users:      "https://users.roblox.com",
		Friends:    "https://friends.roblox.com",
		Thumbnails: "https://thumbnails.roblox.com",
		Games:      "https://games.roblox.com",
		Groups:     "https://groups.roblox.com",
		Economy:    "https://economy.roblox.com",
		APIs:       "https://apis.roblox.com",
	}
}

// withDefaults fills empty hosts and strips trailing slashes.
func (u Upstreams) withDefaults() Upstreams {
	d := DefaultUpstreams()
	pick := func(v, def string) string {
		if v == "" {
			v = def
		}
		return strings.TrimRight(v, "/")
	}
	return Upstreams{
		Users:      pick(u.Users, d.Users),
		Friends:    pick(u.Friends, d.Friends),
		Thumbnails: pick(u.Thumbnails, d.Thumbnails),
		Games:      pick(u.Games, d.Games),
		Groups:     pick(u.Groups, d.Groups),
		Economy:    pick(u.Economy, d.Economy),
		APIs:       pick(u.APIs, d.APIs),
	}
}

type Client struct {
	fetcher fetch.Fetcher
	hosts   Upstreams
}

func NewClient(f fetch.Fetcher, hosts Upstreams) *Client {
	return &Client{fetcher: f, hosts: hosts.withDefaults()}
}

// get fetches req and parses the document. An upstream 404 is reported as
// ErrNotFound while still matching the gateway error.
func (c *Client) get(ctx context.Context, req fetch.Request) (gjson.Result, error) {
	raw, err := c.fetcher.Fetch(ctx, req)
	if err != nil {
		return gjson.Result{}, notFound(err)
	}
	return gjson.ParseBytes(raw), nil
}

func notFound(err error) error {
	if fetch.StatusOf(err) == http.StatusNotFound {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	return err
}

// malformed reports a document that parsed as JSON but lacks the expected shape.
func malformed(url, what string) error {
	return &fetch.Error{Kind: fetch.KindMalformed, URL: url, Err: fmt.Errorf("missing %s", what)}
}

// firstOf returns data[0] of a list response, or ErrNotFound when the list is empty.
func firstOf(doc gjson.Result, url string) (gjson.Result, error) {
	data := doc.Get("data")
	if !data.IsArray() {
		return gjson.Result{}, malformed(url, "data array")
	}
	first := data.Get("0")
	if !first.Exists() {
		return gjson.Result{}, ErrNotFound
	}
	return first, nil
}

func parseTime(r gjson.Result) time.Time {
	if !r.Exists() {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, r.String())
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}
