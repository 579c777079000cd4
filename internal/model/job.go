package model

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Listing is a raw job posting as returned by the Fastwork job-board API.
// It is ephemeral: re-fetched every cycle and never stored except as the
// serialized Raw copy inside a JobRecord.
type Listing struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Name        string   `json:"name"` // some listings carry name instead of title
	Description string   `json:"description"`
	Budget      *float64 `json:"budget"`
	BudgetMin   *float64 `json:"budget_min"`
	Price       *float64 `json:"price"`
	BudgetText  string   `json:"budget_text"`
	TagID       string   `json:"tag_id"`
	CreatedAt   string   `json:"created_at"`
	InsertedAt  string   `json:"inserted_at"`
	DeadlineAt  string   `json:"deadline_at"`
	ExpiredAt   string   `json:"expired_at"`

	// Category is the English label of the partition the listing was fetched
	// from. Set by the client, not present in the API payload.
	Category string `json:"-"`

	// URL is the public board page for this listing, stamped by the client.
	URL string `json:"-"`

	// Raw is the listing exactly as the API returned it.
	Raw json.RawMessage `json:"-"`
}

// DisplayTitle returns the title field, falling back to name.
func (l Listing) DisplayTitle() string {
	if l.Title != "" {
		return l.Title
	}
	return l.Name
}

// JobRecord is the durable, locally-owned representation of a listing after
// classification. Keyed by the source ID, stable across runs.
type JobRecord struct {
	ID          string
	Title       string
	Description string
	Budget      float64
	Currency    string
	TagID       string
	Category    string
	CreatedAt   string
	InsertedAt  string
	URL         string
	RawData     string
	Status      Status
	Column      Column
	Notes       string
	Priority    int
	Analysis    string

	Synced       bool
	SyncedItemID string
	SyncedAt     *time.Time
}

// Status is the processing state of a JobRecord. Transitions are monotonic
// (pending → analyzed → notified) with error reachable from any state.
type Status string

const (
	StatusPending  Status = "pending"
	StatusAnalyzed Status = "analyzed"
	StatusNotified Status = "notified"
	StatusError    Status = "error"
)

// statusTransitions lists every allowed (from → to) pair.
var statusTransitions = map[Status][]Status{
	StatusPending:  {StatusAnalyzed, StatusError},
	StatusAnalyzed: {StatusNotified, StatusError},
	StatusNotified: {StatusError},
	StatusError:    {},
}

// ParseStatus converts a raw string to a Status, returning an error for
// unknown values.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	switch st {
	case StatusPending, StatusAnalyzed, StatusNotified, StatusError:
		return st, nil
	}
	return "", fmt.Errorf("unknown job status %q", s)
}

// CanTransition returns true when moving from → to is permitted.
func CanTransition(from, to Status) bool {
	for _, s := range statusTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Column is the user-facing kanban stage of a JobRecord. The ingestion path
// never moves a job between columns; only explicit user action does.
type Column string

const (
	ColumnInbox      Column = "inbox"
	ColumnInterested Column = "interested"
	ColumnProposed   Column = "proposed"
	ColumnArchived   Column = "archived"
)

// Columns is the fixed board order.
var Columns = []Column{ColumnInbox, ColumnInterested, ColumnProposed, ColumnArchived}

// ParseColumn converts a raw string to a Column, returning an error for
// unknown values.
func ParseColumn(s string) (Column, error) {
	c := Column(s)
	for _, known := range Columns {
		if c == known {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown board column %q", s)
}

// SizeBucket is the discrete classification derived from a budget.
type SizeBucket string

const (
	SizeXS SizeBucket = "XS"
	SizeS  SizeBucket = "S"
	SizeM  SizeBucket = "M"
	SizeL  SizeBucket = "L"
	SizeXL SizeBucket = "XL"
)

// CategoryInfo describes one job-board category partition.
type CategoryInfo struct {
	ID     string // Fastwork tag UUID
	Name   string // Thai name as shown on the board
	NameEn string // English label stored on records
}

// Source fetches listings from the job board, one call per category partition.
type Source interface {
	FetchCategory(ctx context.Context, category CategoryInfo, pageSize int) ([]Listing, error)
	Categories() []CategoryInfo
}

// Syncer mirrors a JobRecord into the external project-tracking board.
// Initialize must succeed before any CreateItem call.
type Syncer interface {
	Initialize(ctx context.Context) error
	CreateItem(ctx context.Context, job JobRecord) (ItemResult, error)
}

// ItemResult reports the external item created for a job.
type ItemResult struct {
	ItemID string
	Kind   ItemKind
}

// ItemKind distinguishes the two external item shapes.
type ItemKind string

const (
	ItemDraft ItemKind = "draft"
	ItemIssue ItemKind = "issue"
)
