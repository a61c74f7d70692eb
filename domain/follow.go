package domain

import "time"

// Follow is a directed edge in the follow graph.
type Follow struct {
	FollowerID  UserID
	FollowingID UserID
	CreatedAt   time.Time
}

// ShelfKind distinguishes the two book lists a user keeps.
type ShelfKind string

const (
	ShelfFavorites ShelfKind = "fav"
	ShelfRead      ShelfKind = "read"
)

// ShelfEntry records one book on a user's favorites or read list.
// BookID is an opaque catalog identifier; the catalog itself lives outside
// this system.
type ShelfEntry struct {
	UserID  UserID
	BookID  string
	Kind    ShelfKind
	AddedAt time.Time
}
