package models

import "time"

// Like represents a user's like on an item. A user likes an item at most once.
type Like struct {
	ID        string    `json:"id"`
	ItemID    string    `json:"itemId"`
	UserID    string    `json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
}
