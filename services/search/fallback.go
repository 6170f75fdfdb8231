package search

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/meghashyamc/caseindex/db/searchdb"
	"github.com/meghashyamc/caseindex/services/index"
)

const (
	scoreForPhrase      = 10
	scoreForTermHit     = 2
	scoreForEarlyPhrase = 5
	earlyPhraseWindow   = 100
)

// searchFallback scans the user's source rows directly. The user's cases are
// always read so owning cases resolve without further lookups.
func (s *Service) searchFallback(ctx context.Context, userID int64, q SearchQuery, terms []string, cases map[int64]*caseInfo) ([]candidate, error) {
	var entries []searchdb.Entry

	caseRows, err := s.source.ListCasesByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list cases: %w", err)
	}
	owners := make(map[int64]int64, len(caseRows))
	for _, row := range caseRows {
		entry := s.projector.Case(row)
		owners[row.ID] = row.UserID
		cases[row.ID] = &caseInfo{title: entry.Title, status: row.Status}
		if q.wants(searchdb.EntityCase) {
			entries = append(entries, entry)
		}
	}

	if q.wants(searchdb.EntityEvidence) {
		rows, err := s.source.ListEvidenceByUser(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("failed to list evidence: %w", err)
		}
		for _, row := range rows {
			entry, err := s.projector.Evidence(ctx, row, owners)
			if errors.Is(err, index.ErrOwnerMissing) {
				continue
			}
			if err != nil {
				return nil, err
			}
			entries = append(entries, entry)
		}
	}

	if q.wants(searchdb.EntityConversation) {
		rows, err := s.source.ListConversationsByUser(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("failed to list conversations: %w", err)
		}
		for _, row := range rows {
			entry, err := s.projector.Conversation(ctx, row)
			if err != nil {
				return nil, err
			}
			entries = append(entries, entry)
		}
	}

	if q.wants(searchdb.EntityNote) {
		rows, err := s.source.ListNotesByUser(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("failed to list notes: %w", err)
		}
		for _, row := range rows {
			entries = append(entries, s.projector.Note(row))
		}
	}

	phrase := strings.ToLower(strings.TrimSpace(q.Query))
	var candidates []candidate
	for _, entry := range entries {
		if !matchesFilters(entry, q.Filters) {
			continue
		}
		haystack := strings.ToLower(entry.Title + "\n" + entry.Content + "\n" + entry.Tags)
		if !containsAny(haystack, terms) {
			continue
		}
		candidates = append(candidates, candidate{entry: entry, score: fallbackRelevance(haystack, phrase, terms)})
	}
	return candidates, nil
}

func matchesFilters(entry searchdb.Entry, filters Filters) bool {
	if len(filters.CaseIDs) > 0 {
		if entry.CaseID == nil || !containsID(filters.CaseIDs, *entry.CaseID) {
			return false
		}
	}

	if r := filters.DateRange; r != nil {
		if r.From != nil && entry.CreatedAt.Before(*r.From) {
			return false
		}
		if r.To != nil && entry.CreatedAt.After(*r.To) {
			return false
		}
	}

	if len(filters.Tags) > 0 {
		tags := strings.Fields(strings.ToLower(entry.Tags))
		found := false
		for _, wanted := range filters.Tags {
			if containsString(tags, strings.ToLower(wanted)) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	return true
}

// fallbackRelevance rewards the whole query appearing verbatim, more so near
// the start, plus every occurrence of each term.
func fallbackRelevance(haystack string, phrase string, terms []string) float64 {
	score := 0
	if phrase != "" {
		if at := strings.Index(haystack, phrase); at >= 0 {
			score += scoreForPhrase
			if at < earlyPhraseWindow {
				score += scoreForEarlyPhrase
			}
		}
	}
	for _, term := range terms {
		score += scoreForTermHit * strings.Count(haystack, term)
	}
	return float64(score)
}

// containsAny reports whether any term starts a word of text, matching the
// prefix queries of the ranked path. No terms matches everything.
func containsAny(text string, terms []string) bool {
	if len(terms) == 0 {
		return true
	}
	for _, term := range terms {
		if hasWordPrefix(text, term) {
			return true
		}
	}
	return false
}

func hasWordPrefix(text string, term string) bool {
	if term == "" {
		return false
	}
	for offset := 0; offset < len(text); {
		at := strings.Index(text[offset:], term)
		if at < 0 {
			return false
		}
		at += offset
		if at == 0 {
			return true
		}
		if prev, _ := utf8.DecodeLastRuneInString(text[:at]); isTermSeparator(prev) {
			return true
		}
		_, size := utf8.DecodeRuneInString(text[at:])
		offset = at + size
	}
	return false
}

func containsID(ids []int64, id int64) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}

func containsString(values []string, value string) bool {
	for _, candidate := range values {
		if candidate == value {
			return true
		}
	}
	return false
}
