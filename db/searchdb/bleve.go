package searchdb

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/unicode"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/whitespace"
	"github.com/blevesearch/bleve/v2/index/scorch/mergeplan"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"
	"github.com/meghashyamc/caseindex/logger"
)

const idPageSize = 1000

var storedTimeLayouts = []string{time.RFC3339Nano, "2006-01-02 15:04:05Z07:00", "2006-01-02 15:04:05", "2006-01-02"}

const (
	analyzerText = "case_text"
	analyzerTags = "case_tags"
)

const (
	indexFieldEntityType   = "entity_type"
	indexFieldEntityID     = "entity_id"
	indexFieldUserID       = "user_id"
	indexFieldCaseID       = "case_id"
	indexFieldTitle        = "title"
	indexFieldContent      = "content"
	indexFieldTags         = "tags"
	indexFieldCreatedAt    = "created_at"
	indexFieldStatus       = "status"
	indexFieldCaseType     = "case_type"
	indexFieldEvidenceType = "evidence_type"
	indexFieldFilePath     = "file_path"
	indexFieldMessageCount = "message_count"
	indexFieldIsPinned     = "is_pinned"
)

const (
	boostForTitlePrefix   = 2.0
	boostForContentPrefix = 1.0
	boostForTagPrefix     = 1.5
	boostForPhraseMatch   = 5.0
)

type BleveDB struct {
	mu         sync.RWMutex
	logger     logger.Logger
	index      bleve.Index
	persistent bool
	closed     bool
}

var _ DB = (*BleveDB)(nil)

// New opens the index at indexPath, creating it when missing.
func New(logger logger.Logger, indexPath string) (*BleveDB, error) {
	if err := os.MkdirAll(filepath.Dir(indexPath), 0755); err != nil {
		logger.Error("could not create index directory", "err", err.Error(), "path", indexPath)
		return nil, err
	}

	indexMapping, err := createIndexMapping()
	if err != nil {
		logger.Error("could not create index mapping", "err", err.Error())
		return nil, err
	}

	index, err := bleve.Open(indexPath)
	if errors.Is(err, bleve.ErrorIndexPathDoesNotExist) {
		index, err = bleve.New(indexPath, indexMapping)
	}
	if err != nil {
		logger.Error("could not open index", "err", err.Error(), "path", indexPath)
		return nil, err
	}

	return &BleveDB{logger: logger, index: index, persistent: true}, nil
}

// NewMemOnly builds a volatile index, used by tests.
func NewMemOnly(logger logger.Logger) (*BleveDB, error) {
	indexMapping, err := createIndexMapping()
	if err != nil {
		return nil, err
	}
	index, err := bleve.NewMemOnly(indexMapping)
	if err != nil {
		logger.Error("could not create in-memory index", "err", err.Error())
		return nil, err
	}
	return &BleveDB{logger: logger, index: index}, nil
}

func createIndexMapping() (mapping.IndexMapping, error) {

	indexMapping := bleve.NewIndexMapping()

	// Unicode words, lowercased, no stop words so every query term can hit
	if err := indexMapping.AddCustomAnalyzer(analyzerText, map[string]interface{}{
		"type":          custom.Name,
		"tokenizer":     unicode.Name,
		"token_filters": []string{lowercase.Name},
	}); err != nil {
		return nil, err
	}
	if err := indexMapping.AddCustomAnalyzer(analyzerTags, map[string]interface{}{
		"type":          custom.Name,
		"tokenizer":     whitespace.Name,
		"token_filters": []string{lowercase.Name},
	}); err != nil {
		return nil, err
	}

	docMapping := bleve.NewDocumentMapping()
	docMapping.Dynamic = false

	for _, field := range []string{indexFieldEntityType, indexFieldStatus, indexFieldCaseType, indexFieldEvidenceType, indexFieldFilePath} {
		keywordFieldMapping := bleve.NewTextFieldMapping()
		keywordFieldMapping.Analyzer = keyword.Name
		docMapping.AddFieldMappingsAt(field, keywordFieldMapping)
	}

	for _, field := range []string{indexFieldEntityID, indexFieldUserID, indexFieldCaseID, indexFieldMessageCount} {
		docMapping.AddFieldMappingsAt(field, bleve.NewNumericFieldMapping())
	}

	for _, field := range []string{indexFieldTitle, indexFieldContent} {
		textFieldMapping := bleve.NewTextFieldMapping()
		textFieldMapping.Analyzer = analyzerText
		textFieldMapping.Store = true // needed for excerpts
		docMapping.AddFieldMappingsAt(field, textFieldMapping)
	}

	tagsFieldMapping := bleve.NewTextFieldMapping()
	tagsFieldMapping.Analyzer = analyzerTags
	docMapping.AddFieldMappingsAt(indexFieldTags, tagsFieldMapping)

	docMapping.AddFieldMappingsAt(indexFieldCreatedAt, bleve.NewDateTimeFieldMapping())
	docMapping.AddFieldMappingsAt(indexFieldIsPinned, bleve.NewBooleanFieldMapping())

	indexMapping.AddDocumentMapping("_default", docMapping)
	indexMapping.DefaultAnalyzer = analyzerText

	return indexMapping, nil
}

func (b *BleveDB) Available() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.index != nil && !b.closed
}

func (b *BleveDB) live() (bleve.Index, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.index == nil || b.closed {
		return nil, ErrUnavailable
	}
	return b.index, nil
}

func (b *BleveDB) Upsert(entry Entry) error {
	index, err := b.live()
	if err != nil {
		return err
	}
	if err := index.Index(entry.DocID(), entry); err != nil {
		b.logger.Error("could not index document", "doc_id", entry.DocID(), "err", err.Error())
		return fmt.Errorf("could not index %s: %w", entry.DocID(), err)
	}
	return nil
}

// Delete removes one entry. A missing entry is not an error.
func (b *BleveDB) Delete(entityType EntityType, entityID int64) error {
	index, err := b.live()
	if err != nil {
		return err
	}
	docID := DocID(entityType, entityID)
	if err := index.Delete(docID); err != nil {
		b.logger.Error("could not delete document", "doc_id", docID, "err", err.Error())
		return fmt.Errorf("could not delete %s: %w", docID, err)
	}
	return nil
}

func (b *BleveDB) Get(ctx context.Context, entityType EntityType, entityID int64) (*Entry, error) {
	index, err := b.live()
	if err != nil {
		return nil, err
	}

	request := bleve.NewSearchRequestOptions(bleve.NewDocIDQuery([]string{DocID(entityType, entityID)}), 1, 0, false)
	request.Fields = []string{"*"}
	result, err := index.SearchInContext(ctx, request)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnavailable, err.Error())
	}
	if len(result.Hits) == 0 {
		return nil, nil
	}
	entry := entryFromFields(result.Hits[0].Fields)
	return &entry, nil
}

func (b *BleveDB) Search(ctx context.Context, q Query) (*Response, error) {
	start := time.Now()

	index, err := b.live()
	if err != nil {
		return nil, err
	}

	size := q.Size
	if size <= 0 {
		size = idPageSize
	}

	searchRequest := bleve.NewSearchRequestOptions(buildSearchQuery(q), size, 0, false)
	searchRequest.Fields = []string{"*"}
	searchRequest.SortBy([]string{"-_score", "_id"})

	searchResult, err := index.SearchInContext(ctx, searchRequest)
	if err != nil {
		b.logger.Error("search failed", "err", err.Error())
		return nil, fmt.Errorf("%w: %s", ErrUnavailable, err.Error())
	}

	hits := make([]Hit, 0, len(searchResult.Hits))
	for _, hit := range searchResult.Hits {
		hits = append(hits, Hit{Entry: entryFromFields(hit.Fields), Score: hit.Score})
	}

	return &Response{Hits: hits, Total: searchResult.Total, SearchTime: time.Since(start)}, nil
}

func buildSearchQuery(q Query) query.Query {
	conjuncts := []query.Query{textQuery(q), userQuery(q.UserID)}

	if len(q.EntityTypes) > 0 {
		types := bleve.NewDisjunctionQuery()
		for _, entityType := range q.EntityTypes {
			termQuery := bleve.NewTermQuery(string(entityType))
			termQuery.SetField(indexFieldEntityType)
			types.AddQuery(termQuery)
		}
		conjuncts = append(conjuncts, types)
	}

	if len(q.CaseIDs) > 0 {
		cases := bleve.NewDisjunctionQuery()
		for _, caseID := range q.CaseIDs {
			cases.AddQuery(numericEquals(indexFieldCaseID, caseID))
		}
		conjuncts = append(conjuncts, cases)
	}

	if q.From != nil || q.To != nil {
		var start, end time.Time
		if q.From != nil {
			start = *q.From
		}
		if q.To != nil {
			end = *q.To
		}
		inclusive := true
		dateQuery := bleve.NewDateRangeInclusiveQuery(start, end, &inclusive, &inclusive)
		dateQuery.SetField(indexFieldCreatedAt)
		conjuncts = append(conjuncts, dateQuery)
	}

	if len(q.Tags) > 0 {
		tags := bleve.NewDisjunctionQuery()
		for _, tag := range q.Tags {
			termQuery := bleve.NewTermQuery(strings.ToLower(tag))
			termQuery.SetField(indexFieldTags)
			tags.AddQuery(termQuery)
		}
		conjuncts = append(conjuncts, tags)
	}

	return bleve.NewConjunctionQuery(conjuncts...)
}

// textQuery ORs a prefix query per term across title, content and tags.
func textQuery(q Query) query.Query {
	if len(q.Terms) == 0 {
		return bleve.NewMatchAllQuery()
	}

	disjunctQuery := bleve.NewDisjunctionQuery()
	for _, term := range q.Terms {
		term = strings.ToLower(term)

		titlePrefix := bleve.NewPrefixQuery(term)
		titlePrefix.SetField(indexFieldTitle)
		titlePrefix.SetBoost(boostForTitlePrefix)
		disjunctQuery.AddQuery(titlePrefix)

		contentPrefix := bleve.NewPrefixQuery(term)
		contentPrefix.SetField(indexFieldContent)
		contentPrefix.SetBoost(boostForContentPrefix)
		disjunctQuery.AddQuery(contentPrefix)

		tagPrefix := bleve.NewPrefixQuery(term)
		tagPrefix.SetField(indexFieldTags)
		tagPrefix.SetBoost(boostForTagPrefix)
		disjunctQuery.AddQuery(tagPrefix)
	}

	if phrase := strings.TrimSpace(q.Phrase); phrase != "" {
		for _, field := range []string{indexFieldTitle, indexFieldContent} {
			phraseQuery := bleve.NewMatchPhraseQuery(phrase)
			phraseQuery.SetField(field)
			phraseQuery.SetBoost(boostForPhraseMatch)
			disjunctQuery.AddQuery(phraseQuery)
		}
	}

	return disjunctQuery
}

func userQuery(userID int64) query.Query {
	return numericEquals(indexFieldUserID, userID)
}

func numericEquals(field string, value int64) query.Query {
	v := float64(value)
	inclusive := true
	numericQuery := bleve.NewNumericRangeInclusiveQuery(&v, &v, &inclusive, &inclusive)
	numericQuery.SetField(field)
	return numericQuery
}

func (b *BleveDB) Stats(ctx context.Context) (*Stats, error) {
	index, err := b.live()
	if err != nil {
		return nil, err
	}

	total, err := index.DocCount()
	if err != nil {
		b.logger.Error("could not count documents", "err", err.Error())
		return nil, fmt.Errorf("could not count documents: %w", err)
	}

	stats := &Stats{TotalDocuments: total, ByEntityType: make(map[EntityType]uint64, len(AllEntityTypes))}
	for _, entityType := range AllEntityTypes {
		termQuery := bleve.NewTermQuery(string(entityType))
		termQuery.SetField(indexFieldEntityType)
		result, err := index.SearchInContext(ctx, bleve.NewSearchRequestOptions(termQuery, 0, 0, false))
		if err != nil {
			return nil, fmt.Errorf("could not count %s documents: %w", entityType, err)
		}
		if result.Total > 0 {
			stats.ByEntityType[entityType] = result.Total
		}
	}

	latestRequest := bleve.NewSearchRequestOptions(bleve.NewMatchAllQuery(), 1, 0, false)
	latestRequest.Fields = []string{indexFieldCreatedAt}
	latestRequest.SortBy([]string{"-" + indexFieldCreatedAt})
	latest, err := index.SearchInContext(ctx, latestRequest)
	if err != nil {
		return nil, fmt.Errorf("could not find latest document: %w", err)
	}
	if len(latest.Hits) > 0 {
		if createdAt := timeField(latest.Hits[0].Fields, indexFieldCreatedAt); !createdAt.IsZero() {
			stats.LastIndexed = &createdAt
		}
	}

	return stats, nil
}

type forceMerger interface {
	ForceMerge(ctx context.Context, mo *mergeplan.MergePlanOptions) error
}

// Optimize merges on-disk segments. In-memory indexes only get the health
// check.
func (b *BleveDB) Optimize(ctx context.Context) error {
	index, err := b.live()
	if err != nil {
		return err
	}

	if _, err := index.DocCount(); err != nil {
		b.logger.Error("index health check failed", "err", err.Error())
		return fmt.Errorf("index health check failed: %w", err)
	}

	if !b.persistent {
		return nil
	}

	advanced, err := index.Advanced()
	if err != nil {
		b.logger.Error("could not access index internals", "err", err.Error())
		return fmt.Errorf("could not access index internals: %w", err)
	}

	merger, ok := advanced.(forceMerger)
	if !ok {
		b.logger.Warn("index backend does not support segment merging", "backend", fmt.Sprintf("%T", advanced))
		return ErrMergeUnsupported
	}
	if err := merger.ForceMerge(ctx, &mergeplan.SingleSegmentMergePlanOptions); err != nil {
		b.logger.Error("could not merge index segments", "err", err.Error())
		return fmt.Errorf("could not merge index segments: %w", err)
	}

	return nil
}

func (b *BleveDB) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.index != nil && !b.closed {
		b.closed = true
		if err := b.index.Close(); err != nil {
			b.logger.Error("could not close search index", "err", err.Error())
			return err
		}
	}
	return nil
}

// collectIDs pages through every document id matching q.
func (b *BleveDB) collectIDs(index bleve.Index, q query.Query) ([]string, error) {
	var ids []string
	for from := 0; ; from += idPageSize {
		request := bleve.NewSearchRequestOptions(q, idPageSize, from, false)
		request.SortBy([]string{"_id"})
		result, err := index.Search(request)
		if err != nil {
			return nil, err
		}
		for _, hit := range result.Hits {
			ids = append(ids, hit.ID)
		}
		if len(result.Hits) < idPageSize {
			return ids, nil
		}
	}
}

func entryFromFields(fields map[string]interface{}) Entry {
	entry := Entry{
		EntityType:   EntityType(stringField(fields, indexFieldEntityType)),
		EntityID:     int64(numberField(fields, indexFieldEntityID)),
		UserID:       int64(numberField(fields, indexFieldUserID)),
		Title:        stringField(fields, indexFieldTitle),
		Content:      stringField(fields, indexFieldContent),
		Tags:         stringField(fields, indexFieldTags),
		CreatedAt:    timeField(fields, indexFieldCreatedAt),
		Status:       stringField(fields, indexFieldStatus),
		CaseType:     stringField(fields, indexFieldCaseType),
		EvidenceType: stringField(fields, indexFieldEvidenceType),
		FilePath:     stringField(fields, indexFieldFilePath),
		MessageCount: int(numberField(fields, indexFieldMessageCount)),
	}
	if _, ok := fields[indexFieldCaseID]; ok {
		caseID := int64(numberField(fields, indexFieldCaseID))
		entry.CaseID = &caseID
	}
	if pinned, ok := fields[indexFieldIsPinned].(bool); ok {
		entry.IsPinned = pinned
	}
	return entry
}

func stringField(fields map[string]interface{}, key string) string {
	if value, ok := fields[key].(string); ok {
		return value
	}
	return ""
}

func numberField(fields map[string]interface{}, key string) float64 {
	if value, ok := fields[key].(float64); ok {
		return value
	}
	return 0
}

func timeField(fields map[string]interface{}, key string) time.Time {
	value, ok := fields[key].(string)
	if !ok {
		return time.Time{}
	}
	for _, layout := range storedTimeLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t
		}
	}
	return time.Time{}
}
