package sourcedb

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("source record not found")

// Reader is the read side of the source repository used by indexing and
// fallback search.
type Reader interface {
	ListUserIDs(ctx context.Context) ([]int64, error)
	ListCasesByUser(ctx context.Context, userID int64) ([]CaseRow, error)
	ListEvidenceByUser(ctx context.Context, userID int64) ([]EvidenceRow, error)
	ListConversationsByUser(ctx context.Context, userID int64) ([]ConversationRow, error)
	ListNotesByUser(ctx context.Context, userID int64) ([]NoteRow, error)
	ListMessages(ctx context.Context, conversationID int64) ([]MessageRow, error)
	GetCase(ctx context.Context, id int64) (*CaseRow, error)
	GetEvidence(ctx context.Context, id int64) (*EvidenceRow, error)
	GetConversation(ctx context.Context, id int64) (*ConversationRow, error)
	GetNote(ctx context.Context, id int64) (*NoteRow, error)
}
