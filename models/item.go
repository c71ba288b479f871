package models

import (
	"regexp"
	"slices"
	"strings"
	"time"
)

const (
	MaxDescriptionLength = 255
	MaxLocationLength    = 64
)

// Regions a shard identifier can start with.
var Regions = []string{"EU", "US", "AP"}

// ValidRegion accepts a region prefix in any case.
func ValidRegion(r string) bool {
	return slices.Contains(Regions, strings.ToUpper(r))
}

var shardPattern = regexp.MustCompile(`^(EU|US|AP)[A-Z0-9]{1,8}-[0-9]{3}$`)

// ValidShardID reports whether id follows the regional shard naming, e.g. "EUE127-010".
func ValidShardID(id string) bool {
	return shardPattern.MatchString(id)
}

// Item is a location report tied to a patch version and a shard
type Item struct {
	ID             string    `json:"id"`
	PatchVersionID string    `json:"patchVersionId"`
	ShardID        string    `json:"shardId"`
	Location       string    `json:"location"`
	Description    string    `json:"description"`
	Image          *string   `json:"image,omitempty"`
	Public         bool      `json:"public"`
	UserID         string    `json:"userId"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// HasImage reports whether the image slot has already been filled.
func (i Item) HasImage() bool {
	return i.Image != nil && *i.Image != ""
}

// Owner is the public profile attached to items and responses.
type Owner struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Image         *string `json:"image,omitempty"`
	Discriminator *string `json:"discriminator,omitempty"`
}

// AggregatedItem is an item joined with its version name, owner, likes and
// the found/not-found tally of its latest public responses.
type AggregatedItem struct {
	Item
	PatchVersionName string `json:"patchVersionName"`
	Owner            Owner  `json:"owner"`
	LikeCount        int64  `json:"likeCount"`
	HasLiked         bool   `json:"hasLiked"`
	FoundCount       int64  `json:"foundCount"`
	NotFoundCount    int64  `json:"notFoundCount"`
}

// ItemSort selects the ordering of an item listing.
type ItemSort string

const (
	SortRecent ItemSort = "recent"
	SortLikes  ItemSort = "likes"
	SortFound  ItemSort = "found"
)

// ParseItemSort maps a query value onto an ItemSort, defaulting to recency.
func ParseItemSort(v string) (ItemSort, bool) {
	switch ItemSort(v) {
	case "", SortRecent:
		return SortRecent, true
	case SortLikes:
		return SortLikes, true
	case SortFound:
		return SortFound, true
	}
	return "", false
}

// ShardCount is the number of items reported on one shard.
type ShardCount struct {
	ShardID string `json:"shardId"`
	Count   int64  `json:"count"`
}
