package search

import (
	"context"
	"strings"

	"github.com/meghashyamc/caseindex/db/searchdb"
)

func (s *Service) searchRanked(ctx context.Context, userID int64, q SearchQuery, terms []string) ([]candidate, error) {
	query := searchdb.Query{
		UserID:      userID,
		Terms:       terms,
		EntityTypes: q.Filters.EntityTypes,
		CaseIDs:     q.Filters.CaseIDs,
		Tags:        q.Filters.Tags,
		Size:        s.maxCandidates,
	}
	if len(terms) > 1 {
		query.Phrase = strings.Join(terms, " ")
	}
	if r := q.Filters.DateRange; r != nil {
		query.From, query.To = r.From, r.To
	}

	response, err := s.ranked.Search(ctx, query)
	if err != nil {
		return nil, err
	}

	candidates := make([]candidate, 0, len(response.Hits))
	for _, hit := range response.Hits {
		candidates = append(candidates, candidate{entry: hit.Entry, score: rankedRelevance(hit.Score)})
	}
	return candidates, nil
}

// rankedRelevance maps an engine score onto 0-100 keeping its order.
func rankedRelevance(score float64) float64 {
	if score <= 0 {
		return 100
	}
	return 100 * score / (1 + score)
}
