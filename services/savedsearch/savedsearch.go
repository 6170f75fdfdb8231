package savedsearch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/meghashyamc/caseindex/audit"
	"github.com/meghashyamc/caseindex/db/kvdb"
	"github.com/meghashyamc/caseindex/logger"
	"github.com/meghashyamc/caseindex/services/search"
)

const (
	DefaultSuggestionLimit = 10
	MaxSuggestionLimit     = 50
)

var (
	ErrNotFound    = errors.New("saved search not found")
	ErrInvalidName = errors.New("saved search name must not be empty")
)

type SavedSearch struct {
	ID         int64              `json:"id"`
	UserID     int64              `json:"user_id"`
	Name       string             `json:"name"`
	Query      search.SearchQuery `json:"query"`
	CreatedAt  time.Time          `json:"created_at"`
	LastUsedAt *time.Time         `json:"last_used_at"`
	UseCount   int                `json:"use_count"`
}

// Store is the key-value storage saved searches live in.
type Store interface {
	Set(bucket string, key string, value string) error
	Get(bucket string, key string) (string, error)
	Delete(bucket string, key string) error
	Modify(bucket string, key string, fn func(value string) (string, error)) (string, error)
	NextSequence(bucket string) (uint64, error)
	ForEachWithPrefix(bucket string, prefix string, fn func(key string, value string) error) error
}

type Searcher interface {
	Search(ctx context.Context, userID int64, q search.SearchQuery) (*search.SearchResponse, error)
}

type Service struct {
	logger   logger.Logger
	store    Store
	searcher Searcher
	audit    audit.Sink
	now      func() time.Time
}

func New(logger logger.Logger, store Store, searcher Searcher, sink audit.Sink) *Service {
	if sink == nil {
		sink = audit.Nop{}
	}
	return &Service{
		logger:   logger,
		store:    store,
		searcher: searcher,
		audit:    sink,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Keys sort by user, then id, so one prefix scan lists a user's searches.
func userPrefix(userID int64) string {
	return fmt.Sprintf("%020d:", userID)
}

func searchKey(userID int64, searchID int64) string {
	return fmt.Sprintf("%s%020d", userPrefix(userID), searchID)
}

func (s *Service) SaveSearch(ctx context.Context, userID int64, name string, query search.SearchQuery) (*SavedSearch, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrInvalidName
	}

	id, err := s.store.NextSequence(kvdb.SavedSearchesBucket)
	if err != nil {
		s.logger.Error("could not allocate saved search id", "err", err.Error())
		return nil, fmt.Errorf("could not allocate saved search id: %w", err)
	}

	saved := &SavedSearch{
		ID:        int64(id),
		UserID:    userID,
		Name:      name,
		Query:     query,
		CreatedAt: s.now(),
	}

	data, err := json.Marshal(saved)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal saved search: %w", err)
	}
	if err := s.store.Set(kvdb.SavedSearchesBucket, searchKey(userID, saved.ID), string(data)); err != nil {
		s.logger.Error("could not store saved search", "user_id", userID, "err", err.Error())
		s.record(userID, saved.ID, "create", err)
		return nil, fmt.Errorf("could not store saved search: %w", err)
	}

	s.record(userID, saved.ID, "create", nil)
	return saved, nil
}

// GetSavedSearches lists the user's searches, most recently used first, then
// newest first.
func (s *Service) GetSavedSearches(ctx context.Context, userID int64) ([]SavedSearch, error) {
	var searches []SavedSearch
	err := s.store.ForEachWithPrefix(kvdb.SavedSearchesBucket, userPrefix(userID), func(key string, value string) error {
		var saved SavedSearch
		if err := json.Unmarshal([]byte(value), &saved); err != nil {
			s.logger.Error("could not decode saved search", "key", key, "err", err.Error())
			return fmt.Errorf("could not decode saved search %s: %w", key, err)
		}
		searches = append(searches, saved)
		return nil
	})
	if err != nil {
		return nil, err
	}

	slices.SortStableFunc(searches, compareByRecency)
	return searches, nil
}

func compareByRecency(a, b SavedSearch) int {
	switch {
	case a.LastUsedAt != nil && b.LastUsedAt == nil:
		return -1
	case a.LastUsedAt == nil && b.LastUsedAt != nil:
		return 1
	case a.LastUsedAt != nil && !a.LastUsedAt.Equal(*b.LastUsedAt):
		return b.LastUsedAt.Compare(*a.LastUsedAt)
	}
	if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
		return c
	}
	if a.ID > b.ID {
		return -1
	}
	if a.ID < b.ID {
		return 1
	}
	return 0
}

// DeleteSavedSearch reports whether a search owned by userID was removed.
func (s *Service) DeleteSavedSearch(ctx context.Context, userID int64, searchID int64) (bool, error) {
	err := s.store.Delete(kvdb.SavedSearchesBucket, searchKey(userID, searchID))
	s.record(userID, searchID, "delete", err)
	if errors.Is(err, kvdb.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		s.logger.Error("could not delete saved search", "user_id", userID, "search_id", searchID, "err", err.Error())
		return false, fmt.Errorf("could not delete saved search: %w", err)
	}
	return true, nil
}

// ExecuteSavedSearch bumps the usage counters and runs the stored query.
func (s *Service) ExecuteSavedSearch(ctx context.Context, userID int64, searchID int64) (*search.SearchResponse, error) {
	var saved SavedSearch
	_, err := s.store.Modify(kvdb.SavedSearchesBucket, searchKey(userID, searchID), func(value string) (string, error) {
		if err := json.Unmarshal([]byte(value), &saved); err != nil {
			return "", fmt.Errorf("could not decode saved search: %w", err)
		}
		usedAt := s.now()
		saved.UseCount++
		saved.LastUsedAt = &usedAt

		data, err := json.Marshal(saved)
		if err != nil {
			return "", fmt.Errorf("failed to marshal saved search: %w", err)
		}
		return string(data), nil
	})
	s.record(userID, searchID, "execute", err)
	if errors.Is(err, kvdb.ErrNotFound) {
		return nil, fmt.Errorf("%w: %d", ErrNotFound, searchID)
	}
	if err != nil {
		s.logger.Error("could not update saved search", "user_id", userID, "search_id", searchID, "err", err.Error())
		return nil, fmt.Errorf("could not update saved search: %w", err)
	}

	return s.searcher.Search(ctx, userID, saved.Query)
}

// GetSearchSuggestions returns distinct stored query strings starting with
// prefix, most recently used first.
func (s *Service) GetSearchSuggestions(ctx context.Context, userID int64, prefix string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = DefaultSuggestionLimit
	}
	limit = min(limit, MaxSuggestionLimit)

	searches, err := s.GetSavedSearches(ctx, userID)
	if err != nil {
		return nil, err
	}

	prefix = strings.ToLower(strings.TrimSpace(prefix))
	seen := make(map[string]bool)
	suggestions := make([]string, 0, limit)
	for _, saved := range searches {
		query := strings.TrimSpace(saved.Query.Query)
		if query == "" || !strings.HasPrefix(strings.ToLower(query), prefix) || seen[query] {
			continue
		}
		seen[query] = true
		suggestions = append(suggestions, query)
		if len(suggestions) == limit {
			break
		}
	}
	return suggestions, nil
}

func (s *Service) record(userID int64, searchID int64, action string, err error) {
	event := audit.Event{
		Type:         audit.EventSavedSearch,
		UserID:       userID,
		ResourceType: "saved_search",
		ResourceID:   strconv.FormatInt(searchID, 10),
		Action:       action,
		Success:      err == nil,
	}
	if err != nil {
		event.Error = err.Error()
	}
	s.audit.Record(event)
}
