package searchdb

import (
	"fmt"
	"time"
)

type EntityType string

const (
	EntityCase         EntityType = "case"
	EntityEvidence     EntityType = "evidence"
	EntityConversation EntityType = "conversation"
	EntityNote         EntityType = "note"
)

// AllEntityTypes lists every indexable type in a stable order.
var AllEntityTypes = []EntityType{EntityCase, EntityEvidence, EntityConversation, EntityNote}

func (t EntityType) Valid() bool {
	switch t {
	case EntityCase, EntityEvidence, EntityConversation, EntityNote:
		return true
	}
	return false
}

// Entry is one index row. Text fields always hold plaintext.
type Entry struct {
	EntityType   EntityType `json:"entity_type"`
	EntityID     int64      `json:"entity_id"`
	UserID       int64      `json:"user_id"`
	CaseID       *int64     `json:"case_id,omitempty"`
	Title        string     `json:"title"`
	Content      string     `json:"content"`
	Tags         string     `json:"tags"`
	CreatedAt    time.Time  `json:"created_at"`
	Status       string     `json:"status,omitempty"`
	CaseType     string     `json:"case_type,omitempty"`
	EvidenceType string     `json:"evidence_type,omitempty"`
	FilePath     string     `json:"file_path,omitempty"`
	MessageCount int        `json:"message_count,omitempty"`
	IsPinned     bool       `json:"is_pinned,omitempty"`
}

// DocID is the index document id for an entity.
func DocID(entityType EntityType, entityID int64) string {
	return fmt.Sprintf("%s:%d", entityType, entityID)
}

func (e Entry) DocID() string {
	return DocID(e.EntityType, e.EntityID)
}

// Query is a ranked lookup scoped to one user. Terms are matched as
// prefixes; Phrase, when set, boosts documents containing it verbatim.
type Query struct {
	UserID      int64
	Terms       []string
	Phrase      string
	EntityTypes []EntityType
	CaseIDs     []int64
	From        *time.Time
	To          *time.Time
	Tags        []string
	Size        int
}

type Hit struct {
	Entry Entry
	Score float64
}

type Response struct {
	Hits       []Hit
	Total      uint64
	SearchTime time.Duration
}

type Stats struct {
	TotalDocuments uint64                `json:"total_documents"`
	ByEntityType   map[EntityType]uint64 `json:"by_entity_type"`
	LastIndexed    *time.Time            `json:"last_indexed"`
}
