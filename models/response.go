package models

import "time"

const MaxCommentLength = 255

// Response is a found/not found reply attached to an item
type Response struct {
	ID        string    `json:"id"`
	ItemID    string    `json:"itemId"`
	HasFound  bool      `json:"hasFound"`
	Comment   string    `json:"comment"`
	Image     *string   `json:"image,omitempty"`
	Public    bool      `json:"public"`
	UserID    string    `json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (r Response) HasImage() bool {
	return r.Image != nil && *r.Image != ""
}

// AggregatedResponse carries the response owner's profile and, for
// moderation lists, where the parent item was reported.
type AggregatedResponse struct {
	Response
	Owner        Owner  `json:"owner"`
	ItemShardID  string `json:"itemShardId,omitempty"`
	ItemLocation string `json:"itemLocation,omitempty"`
}

// ResponseImage is the image of a response removed together with its item.
type ResponseImage struct {
	ResponseID string
	Image      string
}
