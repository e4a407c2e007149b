package model

import "time"

type Privacy string

const (
	PrivacyPublic    Privacy = "public"
	PrivacyCommunity Privacy = "community"
	PrivacyPrivate   Privacy = "private"
)

func ParsePrivacy(raw string) (Privacy, bool) {
	switch Privacy(raw) {
	case PrivacyPublic, PrivacyCommunity, PrivacyPrivate:
		return Privacy(raw), true
	}
	return "", false
}

type Post struct {
	ID        int64       `json:"id"`
	Username  string      `json:"username"`
	Message   string      `json:"message"`
	Privacy   Privacy     `json:"privacy"`
	Images    []PostImage `json:"images"`
	IsDeleted bool        `json:"-"`
	DeletedAt *time.Time  `json:"deleted_at,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// PostImage is the image reference embedded in post responses.
type PostImage struct {
	Filename string `json:"filename"`
	URL      string `json:"url"`
}

// VisibleTo reports whether a viewer may see this post. An empty viewer means
// anonymous. Admins see everything.
func (p Post) VisibleTo(viewer string, isAdmin bool) bool {
	if isAdmin || p.Username == viewer {
		return true
	}
	switch p.Privacy {
	case PrivacyPublic:
		return true
	case PrivacyCommunity:
		return viewer != ""
	default:
		return false
	}
}
