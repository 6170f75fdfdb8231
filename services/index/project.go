package index

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/meghashyamc/caseindex/db/searchdb"
	"github.com/meghashyamc/caseindex/db/sourcedb"
	"github.com/meghashyamc/caseindex/encryption"
)

// ErrOwnerMissing is returned for evidence whose case no longer exists.
var ErrOwnerMissing = errors.New("owning case not found")

// Projector turns source rows into plaintext index entries. Search uses the
// same projection when it has to read source tables directly.
type Projector struct {
	source    sourcedb.Reader
	decryptor encryption.Decryptor
}

func NewProjector(source sourcedb.Reader, decryptor encryption.Decryptor) *Projector {
	if decryptor == nil {
		decryptor = encryption.Passthrough{}
	}
	return &Projector{source: source, decryptor: decryptor}
}

func (p *Projector) Decrypt(raw string) string {
	return p.decryptor.DecryptIfNeeded(raw)
}

// Case entries carry their own id as case_id, so case filters match them.
func (p *Projector) Case(row sourcedb.CaseRow) searchdb.Entry {
	title := p.Decrypt(row.Title)
	content := joinNonEmpty(" ", p.Decrypt(row.Description), row.CaseType, row.Status)
	caseID := row.ID

	return searchdb.Entry{
		EntityType: searchdb.EntityCase,
		EntityID:   row.ID,
		UserID:     row.UserID,
		CaseID:     &caseID,
		Title:      title,
		Content:    content,
		Tags:       ExtractTags(joinNonEmpty(" ", title, content)),
		CreatedAt:  row.CreatedAt,
		Status:     row.Status,
		CaseType:   row.CaseType,
	}
}

// Evidence resolves the owning case to find the user. owners may carry
// already loaded cases and can be nil.
func (p *Projector) Evidence(ctx context.Context, row sourcedb.EvidenceRow, owners map[int64]int64) (searchdb.Entry, error) {
	userID, ok := owners[row.CaseID]
	if !ok {
		owningCase, err := p.source.GetCase(ctx, row.CaseID)
		if errors.Is(err, sourcedb.ErrNotFound) {
			return searchdb.Entry{}, ErrOwnerMissing
		}
		if err != nil {
			return searchdb.Entry{}, fmt.Errorf("failed to resolve case %d: %w", row.CaseID, err)
		}
		userID = owningCase.UserID
	}

	title := p.Decrypt(row.Title)
	content := joinNonEmpty(" ", p.Decrypt(row.Content), row.EvidenceType)
	caseID := row.CaseID

	return searchdb.Entry{
		EntityType:   searchdb.EntityEvidence,
		EntityID:     row.ID,
		UserID:       userID,
		CaseID:       &caseID,
		Title:        title,
		Content:      content,
		Tags:         ExtractTags(joinNonEmpty(" ", title, content)),
		CreatedAt:    row.CreatedAt,
		EvidenceType: row.EvidenceType,
		FilePath:     row.FilePath,
	}, nil
}

func (p *Projector) Conversation(ctx context.Context, row sourcedb.ConversationRow) (searchdb.Entry, error) {
	messages, err := p.source.ListMessages(ctx, row.ID)
	if err != nil {
		return searchdb.Entry{}, fmt.Errorf("failed to load messages: %w", err)
	}

	parts := make([]string, 0, len(messages))
	for _, message := range messages {
		parts = append(parts, p.Decrypt(message.Content))
	}

	title := p.Decrypt(row.Title)
	content := joinNonEmpty("\n", parts...)

	return searchdb.Entry{
		EntityType:   searchdb.EntityConversation,
		EntityID:     row.ID,
		UserID:       row.UserID,
		CaseID:       row.CaseID,
		Title:        title,
		Content:      content,
		Tags:         ExtractTags(joinNonEmpty(" ", title, content)),
		CreatedAt:    row.CreatedAt,
		MessageCount: row.MessageCount,
	}, nil
}

func (p *Projector) Note(row sourcedb.NoteRow) searchdb.Entry {
	title := p.Decrypt(row.Title)
	content := p.Decrypt(row.Content)

	return searchdb.Entry{
		EntityType: searchdb.EntityNote,
		EntityID:   row.ID,
		UserID:     row.UserID,
		CaseID:     row.CaseID,
		Title:      title,
		Content:    content,
		Tags:       ExtractTags(joinNonEmpty(" ", title, content)),
		CreatedAt:  row.CreatedAt,
		IsPinned:   row.IsPinned,
	}
}

func joinNonEmpty(sep string, parts ...string) string {
	var kept []string
	for _, part := range parts {
		if strings.TrimSpace(part) != "" {
			kept = append(kept, part)
		}
	}
	return strings.Join(kept, sep)
}
