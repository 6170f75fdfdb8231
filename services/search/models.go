package search

import (
	"errors"
	"fmt"
	"time"

	"github.com/meghashyamc/caseindex/db/searchdb"
)

const (
	SortByRelevance = "relevance"
	SortByDate      = "date"
	SortByTitle     = "title"

	SortAsc  = "asc"
	SortDesc = "desc"

	DefaultLimit = 20
	MaxLimit     = 100
)

// ErrInvalidQuery marks a query rejected before any lookup runs.
var ErrInvalidQuery = errors.New("invalid search query")

type DateRange struct {
	From *time.Time `json:"from,omitempty"`
	To   *time.Time `json:"to,omitempty" validate:"omitempty,valid_date_range"`
}

type Filters struct {
	EntityTypes []searchdb.EntityType `json:"entity_types,omitempty" validate:"valid_entity_types"`
	CaseIDs     []int64               `json:"case_ids,omitempty"`
	CaseStatus  string                `json:"case_status,omitempty" validate:"max=50"`
	DateRange   *DateRange            `json:"date_range,omitempty"`
	Tags        []string              `json:"tags,omitempty"`
}

type SearchQuery struct {
	Query     string  `json:"query" validate:"max=1000"`
	Filters   Filters `json:"filters"`
	SortBy    string  `json:"sort_by,omitempty" validate:"omitempty,oneof=relevance date title"`
	SortOrder string  `json:"sort_order,omitempty" validate:"omitempty,oneof=asc desc"`
	Limit     int     `json:"limit,omitempty" validate:"min=0,max=100"`
	Offset    int     `json:"offset,omitempty" validate:"min=0"`
}

type SearchResult struct {
	ID             int64          `json:"id"`
	Type           string         `json:"type"`
	Title          string         `json:"title"`
	Excerpt        string         `json:"excerpt"`
	RelevanceScore float64        `json:"relevance_score"`
	CaseID         *int64         `json:"case_id"`
	CaseTitle      string         `json:"case_title,omitempty"`
	CreatedAt      string         `json:"created_at"`
	Metadata       map[string]any `json:"metadata"`
}

type SearchResponse struct {
	Results       []SearchResult `json:"results"`
	Total         int            `json:"total"`
	HasMore       bool           `json:"has_more"`
	ExecutionTime time.Duration  `json:"execution_time"`
}

// normalize fills defaults and rejects values no search can run with.
func (q SearchQuery) normalize() (SearchQuery, error) {
	if q.Limit == 0 {
		q.Limit = DefaultLimit
	}
	if q.Limit < 1 || q.Limit > MaxLimit {
		return q, fmt.Errorf("%w: limit must be between 1 and %d", ErrInvalidQuery, MaxLimit)
	}
	if q.Offset < 0 {
		return q, fmt.Errorf("%w: offset must not be negative", ErrInvalidQuery)
	}

	switch q.SortBy {
	case "":
		q.SortBy = SortByRelevance
	case SortByRelevance, SortByDate, SortByTitle:
	default:
		return q, fmt.Errorf("%w: unknown sort_by %q", ErrInvalidQuery, q.SortBy)
	}

	switch q.SortOrder {
	case "":
		q.SortOrder = SortDesc
	case SortAsc, SortDesc:
	default:
		return q, fmt.Errorf("%w: unknown sort_order %q", ErrInvalidQuery, q.SortOrder)
	}

	if len(q.Filters.EntityTypes) == 0 {
		q.Filters.EntityTypes = searchdb.AllEntityTypes
	}
	for _, entityType := range q.Filters.EntityTypes {
		if !entityType.Valid() {
			return q, fmt.Errorf("%w: unknown entity type %q", ErrInvalidQuery, entityType)
		}
	}

	if r := q.Filters.DateRange; r != nil && r.From != nil && r.To != nil && r.From.After(*r.To) {
		return q, fmt.Errorf("%w: date range starts after it ends", ErrInvalidQuery)
	}

	return q, nil
}

func (q SearchQuery) wants(entityType searchdb.EntityType) bool {
	for _, wanted := range q.Filters.EntityTypes {
		if wanted == entityType {
			return true
		}
	}
	return false
}
