package models

import "time"

// PatchVersion is a game release that partitions items. Hidden versions stay
// readable but only admins can submit against them.
type PatchVersion struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Visible   bool      `json:"visible"`
	CreatedAt time.Time `json:"createdAt"`
}

// Category is an entry of the curated location list.
type Category struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
