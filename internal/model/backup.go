package model

import "time"

// BackupPrefix namespaces snapshot files on disk.
const BackupPrefix = "management_system_backup_"

// BackupKeep is how many snapshots are retained after pruning.
const BackupKeep = 10

// ItemLink is one row of the item_priorities junction table, carried in
// snapshots so restore can rebuild the links.
type ItemLink struct {
	ItemID     int64 `json:"item_id" db:"item_id"`
	PriorityID int64 `json:"priority_id" db:"priority_id"`
}

// BackupPayload is the full logical dataset of a snapshot. Current snapshots
// carry Items/Priorities/Links; snapshots taken before the unified-items
// migration carry the legacy Ideas/Topics shape instead.
type BackupPayload struct {
	Items      []Item     `json:"items,omitempty"`
	Priorities []Priority `json:"priorities,omitempty"`
	Links      []ItemLink `json:"links,omitempty"`

	// Legacy shape, produced by databases that predate unified items.
	Ideas  []LegacyIdea  `json:"ideas,omitempty"`
	Topics []LegacyTopic `json:"topics,omitempty"`
}

// BackupRecord is one stored snapshot: a label, a timestamp, and the
// serialized logical dataset.
type BackupRecord struct {
	Label     string        `json:"label"`
	Timestamp time.Time     `json:"timestamp"`
	Payload   BackupPayload `json:"payload"`
}

// LegacyTopic is a row of the flat topics table that predates unified items.
type LegacyTopic struct {
	ID       string  `json:"id" db:"id"`
	Name     string  `json:"name" db:"name"`
	Priority string  `json:"priority" db:"priority"`
	Color    string  `json:"color" db:"color"`
	Icon     *string `json:"icon,omitempty" db:"icon"`
	Weight   *int    `json:"weight,omitempty" db:"weight"`
}

// LegacyIdea is a row of the flat ideas table that predates unified items.
type LegacyIdea struct {
	ID              int64   `json:"id" db:"id"`
	Text            string  `json:"text" db:"text"`
	Topic           string  `json:"topic" db:"topic"`
	Ranking         int     `json:"ranking" db:"ranking"`
	Difficulty      string  `json:"difficulty" db:"difficulty"`
	Status          string  `json:"status" db:"status"`
	Order           int     `json:"order" db:"order"`
	Timestamp       string  `json:"timestamp" db:"timestamp"`
	StatusChangedAt *string `json:"status_changed_at,omitempty" db:"status_changed_at"`
	Weight          *int    `json:"weight,omitempty" db:"weight"`
}
