package search

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/meghashyamc/caseindex/audit"
	"github.com/meghashyamc/caseindex/db/searchdb"
	"github.com/meghashyamc/caseindex/db/sourcedb"
	"github.com/meghashyamc/caseindex/logger"
	"github.com/meghashyamc/caseindex/services/index"
)

// RankedIndex is the full-text engine the service prefers.
type RankedIndex interface {
	Search(ctx context.Context, q searchdb.Query) (*searchdb.Response, error)
	Available() bool
}

type Options struct {
	// MaxCandidates caps how many ranked hits are collected before sorting
	// and paging.
	MaxCandidates int
	RankedEnabled bool
}

type Service struct {
	logger        logger.Logger
	ranked        RankedIndex
	source        sourcedb.Reader
	projector     *index.Projector
	audit         audit.Sink
	maxCandidates int
	rankedEnabled bool
}

// candidate is an entry that matched, with a relevance already on the
// 0-100 scale.
type candidate struct {
	entry searchdb.Entry
	score float64
}

type caseInfo struct {
	title  string
	status string
}

func New(logger logger.Logger, ranked RankedIndex, source sourcedb.Reader, projector *index.Projector, sink audit.Sink, opts Options) *Service {
	if sink == nil {
		sink = audit.Nop{}
	}
	if opts.MaxCandidates <= 0 {
		opts.MaxCandidates = 10000
	}
	return &Service{
		logger:        logger,
		ranked:        ranked,
		source:        source,
		projector:     projector,
		audit:         sink,
		maxCandidates: opts.MaxCandidates,
		rankedEnabled: opts.RankedEnabled,
	}
}

// Search answers q for userID. The ranked index is used when it is up;
// otherwise the source tables are scanned directly.
func (s *Service) Search(ctx context.Context, userID int64, q SearchQuery) (*SearchResponse, error) {
	start := time.Now()

	normalized, err := q.normalize()
	if err != nil {
		searchRequestsTotal.WithLabelValues("none", outcomeInvalid).Inc()
		s.recordSearch(userID, q, "none", err)
		return nil, err
	}
	q = normalized
	terms := splitTerms(q.Query)

	path := pathFallback
	cases := make(map[int64]*caseInfo)
	var candidates []candidate
	if s.useRanked() {
		path = pathRanked
		candidates, err = s.searchRanked(ctx, userID, q, terms)
		if errors.Is(err, searchdb.ErrUnavailable) {
			s.logger.Warn("ranked search unavailable, scanning source tables", "user_id", userID, "err", err.Error())
			path = pathFallback
		}
	}
	if path == pathFallback {
		candidates, err = s.searchFallback(ctx, userID, q, terms, cases)
	}

	defer func() { searchDuration.WithLabelValues(path).Observe(time.Since(start).Seconds()) }()

	if err != nil {
		searchRequestsTotal.WithLabelValues(path, outcomeFailure).Inc()
		s.logger.Error("search failed", "user_id", userID, "path", path, "err", err.Error())
		s.recordSearch(userID, q, path, err)
		return nil, fmt.Errorf("search failed: %w", err)
	}

	results, err := s.toResults(ctx, q, terms, candidates, cases)
	if err != nil {
		searchRequestsTotal.WithLabelValues(path, outcomeFailure).Inc()
		s.logger.Error("could not build search results", "user_id", userID, "err", err.Error())
		s.recordSearch(userID, q, path, err)
		return nil, fmt.Errorf("search failed: %w", err)
	}

	sortResults(results, q.SortBy, q.SortOrder)

	total := len(results)
	page := paginate(results, q.Offset, q.Limit)

	searchRequestsTotal.WithLabelValues(path, outcomeSuccess).Inc()
	s.recordSearch(userID, q, path, nil)

	return &SearchResponse{
		Results:       page,
		Total:         total,
		HasMore:       total > q.Offset+q.Limit,
		ExecutionTime: time.Since(start),
	}, nil
}

func (s *Service) useRanked() bool {
	return s.rankedEnabled && s.ranked != nil && s.ranked.Available()
}

func (s *Service) recordSearch(userID int64, q SearchQuery, path string, err error) {
	event := audit.Event{
		Type:         audit.EventSearchQuery,
		UserID:       userID,
		ResourceType: "search",
		Action:       "search",
		Details:      map[string]any{"query": q.Query, "filters": q.Filters, "path": path},
		Success:      err == nil,
	}
	if err != nil {
		event.Error = err.Error()
	}
	s.audit.Record(event)
}

// splitTerms lower-cases text and splits it on anything that is not a
// letter or digit, the same boundaries the index tokenizer uses.
func splitTerms(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), isTermSeparator)
}

func isTermSeparator(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
}

// toResults applies the filters that need the owning case, then shapes each
// candidate for the caller.
func (s *Service) toResults(ctx context.Context, q SearchQuery, terms []string, candidates []candidate, cases map[int64]*caseInfo) ([]SearchResult, error) {
	wantStatus := strings.TrimSpace(q.Filters.CaseStatus)
	results := make([]SearchResult, 0, len(candidates))

	for _, c := range candidates {
		entry := c.entry

		caseID := entry.CaseID
		if entry.EntityType == searchdb.EntityCase {
			if _, ok := cases[entry.EntityID]; !ok {
				cases[entry.EntityID] = &caseInfo{title: entry.Title, status: entry.Status}
			}
		}

		var owner *caseInfo
		if caseID != nil {
			var err error
			if owner, err = s.resolveCase(ctx, *caseID, cases); err != nil {
				return nil, err
			}
		}

		if wantStatus != "" && (owner == nil || !strings.EqualFold(owner.status, wantStatus)) {
			continue
		}

		result := SearchResult{
			ID:             entry.EntityID,
			Type:           string(entry.EntityType),
			Title:          entry.Title,
			Excerpt:        extractExcerpt(entry.Content, terms),
			RelevanceScore: c.score,
			CaseID:         caseID,
			CreatedAt:      entry.CreatedAt.UTC().Format(time.RFC3339),
			Metadata:       metadataFor(entry),
		}
		if owner != nil {
			result.CaseTitle = owner.title
		}
		results = append(results, result)
	}

	return results, nil
}

func (s *Service) resolveCase(ctx context.Context, caseID int64, cases map[int64]*caseInfo) (*caseInfo, error) {
	if info, ok := cases[caseID]; ok {
		return info, nil
	}

	row, err := s.source.GetCase(ctx, caseID)
	if errors.Is(err, sourcedb.ErrNotFound) {
		cases[caseID] = nil
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve case %d: %w", caseID, err)
	}

	entry := s.projector.Case(*row)
	info := &caseInfo{title: entry.Title, status: row.Status}
	cases[caseID] = info
	return info, nil
}

func metadataFor(entry searchdb.Entry) map[string]any {
	switch entry.EntityType {
	case searchdb.EntityCase:
		return map[string]any{"status": entry.Status, "case_type": entry.CaseType}
	case searchdb.EntityEvidence:
		return map[string]any{"evidence_type": entry.EvidenceType, "file_path": entry.FilePath}
	case searchdb.EntityConversation:
		return map[string]any{"message_count": entry.MessageCount}
	case searchdb.EntityNote:
		return map[string]any{"is_pinned": entry.IsPinned}
	}
	return map[string]any{}
}

func paginate(results []SearchResult, offset int, limit int) []SearchResult {
	if offset >= len(results) {
		return []SearchResult{}
	}
	end := min(offset+limit, len(results))
	return results[offset:end]
}
