package model

import "time"

// Item type constants.
const (
	ItemTypeTopic    = "topic"
	ItemTypeIdea     = "idea"
	ItemTypeTask     = "task"
	ItemTypeProject  = "project"
	ItemTypeReminder = "reminder"
)

// Item status constants.
const (
	StatusNew     = "new"
	StatusBacklog = "backlog"
	StatusDone    = "done"
)

// Difficulty constants.
const (
	DifficultyEasy   = "easy"
	DifficultyMedium = "medium"
	DifficultyHard   = "hard"
)

// Item is the unified polymorphic entity: topics, ideas, tasks, projects,
// reminders all live in one table. Hierarchy via ParentID; TopicID is the
// denormalized root-topic ancestor (nil for topics themselves).
type Item struct {
	ID          int64      `json:"id" db:"id"`
	Text        string     `json:"text" db:"text"`
	ParentID    *int64     `json:"parent_id,omitempty" db:"parent_id"`
	TopicID     *int64     `json:"topic_id,omitempty" db:"topic_id"`
	ItemType    string     `json:"item_type" db:"item_type"`
	Status      string     `json:"status" db:"status"`
	Purpose     *string    `json:"purpose,omitempty" db:"purpose"`
	DueDate     *string    `json:"due_date,omitempty" db:"due_date"`
	Icon        *string    `json:"icon,omitempty" db:"icon"`
	Color       *string    `json:"color,omitempty" db:"color"`
	Difficulty  *string    `json:"difficulty,omitempty" db:"difficulty"`
	Order       int        `json:"order" db:"order"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty" db:"completed_at"`
}

// IsTopic reports whether the item is a root-level topic.
func (i Item) IsTopic() bool {
	return i.ItemType == ItemTypeTopic
}

// ItemDraft is the input to Create. Text is the only required field;
// everything else falls back to a default.
type ItemDraft struct {
	Text       string
	ParentID   *int64
	TopicID    *int64
	ItemType   string
	Status     string
	Purpose    *string
	DueDate    *string
	Icon       *string
	Color      *string
	Difficulty *string
}

// ItemUpdate carries the mutable fields for Update. Nil means "leave as is".
type ItemUpdate struct {
	Text       *string
	Status     *string
	Purpose    *string
	DueDate    *string
	Icon       *string
	Color      *string
	Difficulty *string
	Order      *int
}

// ValidItemType reports whether t is one of the known item types.
func ValidItemType(t string) bool {
	switch t {
	case ItemTypeTopic, ItemTypeIdea, ItemTypeTask, ItemTypeProject, ItemTypeReminder:
		return true
	}
	return false
}

// ValidStatus reports whether s is one of the known statuses.
func ValidStatus(s string) bool {
	switch s {
	case StatusNew, StatusBacklog, StatusDone:
		return true
	}
	return false
}

// ValidDifficulty reports whether d is one of the known difficulties.
func ValidDifficulty(d string) bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}
