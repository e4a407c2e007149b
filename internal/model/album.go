package model

import "time"

type Album struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Username    string    `json:"username"`
	Privacy     Privacy   `json:"privacy"`
	ImageCount  int       `json:"image_count"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (a Album) VisibleTo(viewer string, isAdmin bool) bool {
	if isAdmin || a.Username == viewer {
		return true
	}
	switch a.Privacy {
	case PrivacyPublic:
		return true
	case PrivacyCommunity:
		return viewer != ""
	default:
		return false
	}
}
