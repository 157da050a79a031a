package model

import "time"

// Priority rank bounds.
const (
	MinRank     = 1
	MaxRank     = 10
	DefaultRank = 5
)

// Priority is a named, ranked tag linkable to many items. It replaces the
// earlier scalar weight/ranking fields and has its own lifecycle.
type Priority struct {
	ID        int64     `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Rank      int       `json:"rank" db:"rank"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// PriorityTier maps a [MinRank, MaxRank] range to a descriptive label.
// Purely descriptive; seeded once and never written by application logic.
type PriorityTier struct {
	ID          int64  `json:"id" db:"id"`
	MinRank     int    `json:"min_rank" db:"min_rank"`
	MaxRank     int    `json:"max_rank" db:"max_rank"`
	Label       string `json:"label" db:"label"`
	Description string `json:"description" db:"description"`
}

// ScoredItem is a top-priorities row: the item, its score (max linked rank,
// 0 when nothing is linked), topic display metadata, and the linked
// priority records.
type ScoredItem struct {
	Item
	Score      int        `json:"score" db:"score"`
	TopicName  string     `json:"topic_name,omitempty" db:"topic_name"`
	TopicColor string     `json:"topic_color,omitempty" db:"topic_color"`
	TopicIcon  string     `json:"topic_icon,omitempty" db:"topic_icon"`
	Priorities []Priority `json:"priorities,omitempty" db:"-"`
}

// ValidRank reports whether r is within the 1-10 priority scale.
func ValidRank(r int) bool {
	return r >= MinRank && r <= MaxRank
}
