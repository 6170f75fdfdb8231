package index

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/meghashyamc/caseindex/audit"
	"github.com/meghashyamc/caseindex/db/searchdb"
	"github.com/meghashyamc/caseindex/db/sourcedb"
	"github.com/meghashyamc/caseindex/encryption"
	"github.com/meghashyamc/caseindex/logger"
)

// Indexer is the index storage the builder writes to.
type Indexer interface {
	Upsert(entry searchdb.Entry) error
	Delete(entityType searchdb.EntityType, entityID int64) error
	Begin() searchdb.Batch
	Stats(ctx context.Context) (*searchdb.Stats, error)
	Optimize(ctx context.Context) error
}

// writer is satisfied by both the live index and a staged batch.
type writer interface {
	Upsert(entry searchdb.Entry) error
}

type Service struct {
	logger    logger.Logger
	source    sourcedb.Reader
	indexer   Indexer
	projector *Projector
	audit     audit.Sink
}

func New(logger logger.Logger, source sourcedb.Reader, indexer Indexer, decryptor encryption.Decryptor, sink audit.Sink) *Service {
	if sink == nil {
		sink = audit.Nop{}
	}
	return &Service{
		logger:    logger,
		source:    source,
		indexer:   indexer,
		projector: NewProjector(source, decryptor),
		audit:     sink,
	}
}

// Projector exposes the projection used for index rows.
func (s *Service) Projector() *Projector {
	return s.projector
}

// RebuildIndex replaces the whole index with entries for every user. Source
// or storage failures abandon the rebuild without touching the index;
// failing records are reported and skipped.
func (s *Service) RebuildIndex(ctx context.Context) (*BuildReport, error) {
	start := time.Now()
	defer func() { rebuildDuration.WithLabelValues("all").Observe(time.Since(start).Seconds()) }()

	report, err := s.rebuild(ctx, func(batch searchdb.Batch, report *BuildReport) error {
		userIDs, err := s.source.ListUserIDs(ctx)
		if err != nil {
			return fmt.Errorf("failed to list users: %w", err)
		}
		if err := batch.DeleteAll(); err != nil {
			return fmt.Errorf("failed to clear index: %w", err)
		}
		for _, userID := range userIDs {
			if err := s.stageUser(ctx, batch, userID, report); err != nil {
				return err
			}
			report.Users++
		}
		return nil
	})

	event := audit.Event{
		Type:         audit.EventIndexRebuild,
		ResourceType: "search_index",
		ResourceID:   "all",
		Action:       "rebuild",
	}
	s.recordRebuild(event, report, err)
	return report, err
}

// RebuildIndexForUser replaces only userID's entries.
func (s *Service) RebuildIndexForUser(ctx context.Context, userID int64) (*BuildReport, error) {
	start := time.Now()
	defer func() { rebuildDuration.WithLabelValues("user").Observe(time.Since(start).Seconds()) }()

	report, err := s.rebuild(ctx, func(batch searchdb.Batch, report *BuildReport) error {
		if err := batch.DeleteUser(userID); err != nil {
			return fmt.Errorf("failed to clear user entries: %w", err)
		}
		if err := s.stageUser(ctx, batch, userID, report); err != nil {
			return err
		}
		report.Users = 1
		return nil
	})

	event := audit.Event{
		Type:         audit.EventIndexUserRebuild,
		UserID:       userID,
		ResourceType: "search_index",
		ResourceID:   strconv.FormatInt(userID, 10),
		Action:       "rebuild",
	}
	s.recordRebuild(event, report, err)
	return report, err
}

func (s *Service) rebuild(ctx context.Context, stage func(batch searchdb.Batch, report *BuildReport) error) (*BuildReport, error) {
	report := &BuildReport{}
	batch := s.indexer.Begin()

	if err := stage(batch, report); err != nil {
		batch.Rollback()
		s.logger.Error("index rebuild aborted", "err", err.Error())
		return report, fmt.Errorf("%w: %w", ErrRebuildFailed, err)
	}
	if err := ctx.Err(); err != nil {
		batch.Rollback()
		return report, fmt.Errorf("%w: %w", ErrRebuildFailed, err)
	}
	if err := batch.Commit(); err != nil {
		s.logger.Error("index rebuild commit failed", "err", err.Error())
		return report, fmt.Errorf("%w: %w", ErrRebuildFailed, err)
	}

	report.Indexed = batch.Count()
	s.logger.Info("index rebuilt", "users", report.Users, "indexed", report.Indexed, "failures", len(report.Failures))
	return report, nil
}

func (s *Service) recordRebuild(event audit.Event, report *BuildReport, err error) {
	event.Details = map[string]any{"users": report.Users, "indexed": report.Indexed, "failures": len(report.Failures)}
	event.Success = err == nil
	if err != nil {
		event.Error = err.Error()
	}
	s.audit.Record(event)
}

// stageUser adds every entity of one user to batch. Only failures to list
// the user's rows are returned.
func (s *Service) stageUser(ctx context.Context, batch searchdb.Batch, userID int64, report *BuildReport) error {
	cases, err := s.source.ListCasesByUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to list cases for user %d: %w", userID, err)
	}
	owners := make(map[int64]int64, len(cases))
	for _, row := range cases {
		owners[row.ID] = row.UserID
		s.collect(report, s.indexCase(batch, row))
	}

	evidence, err := s.source.ListEvidenceByUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to list evidence for user %d: %w", userID, err)
	}
	for _, row := range evidence {
		s.collect(report, s.indexEvidence(ctx, batch, row, owners))
	}

	conversations, err := s.source.ListConversationsByUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to list conversations for user %d: %w", userID, err)
	}
	for _, row := range conversations {
		s.collect(report, s.indexConversation(ctx, batch, row))
	}

	notes, err := s.source.ListNotesByUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to list notes for user %d: %w", userID, err)
	}
	for _, row := range notes {
		s.collect(report, s.indexNote(batch, row))
	}

	return nil
}

func (s *Service) collect(report *BuildReport, failure *RecordFailure) {
	if failure != nil {
		report.addFailure(failure)
	}
}

// IndexCase upserts the entry for one case. A returned error is a
// *RecordFailure and has already been audited.
func (s *Service) IndexCase(ctx context.Context, row sourcedb.CaseRow) error {
	return asError(s.indexCase(s.indexer, row))
}

// IndexEvidence upserts the entry for one evidence item. Evidence whose case
// is gone is skipped without error.
func (s *Service) IndexEvidence(ctx context.Context, row sourcedb.EvidenceRow) error {
	return asError(s.indexEvidence(ctx, s.indexer, row, nil))
}

func (s *Service) IndexConversation(ctx context.Context, row sourcedb.ConversationRow) error {
	return asError(s.indexConversation(ctx, s.indexer, row))
}

func (s *Service) IndexNote(ctx context.Context, row sourcedb.NoteRow) error {
	return asError(s.indexNote(s.indexer, row))
}

func asError(failure *RecordFailure) error {
	if failure == nil {
		return nil
	}
	return failure
}

func (s *Service) indexCase(w writer, row sourcedb.CaseRow) *RecordFailure {
	return s.write(w, s.projector.Case(row))
}

func (s *Service) indexEvidence(ctx context.Context, w writer, row sourcedb.EvidenceRow, owners map[int64]int64) *RecordFailure {
	entry, err := s.projector.Evidence(ctx, row, owners)
	if errors.Is(err, ErrOwnerMissing) {
		s.logger.Debug("skipping evidence without case", "evidence_id", row.ID, "case_id", row.CaseID)
		indexOperationsTotal.WithLabelValues(string(searchdb.EntityEvidence), outcomeSkipped).Inc()
		return nil
	}
	if err != nil {
		return s.fail(searchdb.EntityEvidence, row.ID, 0, err)
	}
	return s.write(w, entry)
}

func (s *Service) indexConversation(ctx context.Context, w writer, row sourcedb.ConversationRow) *RecordFailure {
	entry, err := s.projector.Conversation(ctx, row)
	if err != nil {
		return s.fail(searchdb.EntityConversation, row.ID, row.UserID, err)
	}
	return s.write(w, entry)
}

func (s *Service) indexNote(w writer, row sourcedb.NoteRow) *RecordFailure {
	return s.write(w, s.projector.Note(row))
}

func (s *Service) write(w writer, entry searchdb.Entry) *RecordFailure {
	if err := w.Upsert(entry); err != nil {
		return s.fail(entry.EntityType, entry.EntityID, entry.UserID, err)
	}
	indexOperationsTotal.WithLabelValues(string(entry.EntityType), outcomeSuccess).Inc()
	return nil
}

func (s *Service) fail(entityType searchdb.EntityType, entityID int64, userID int64, err error) *RecordFailure {
	s.logger.Error("could not index entity", "entity_type", entityType, "entity_id", entityID, "err", err.Error())
	indexOperationsTotal.WithLabelValues(string(entityType), outcomeFailure).Inc()
	s.audit.Record(audit.Event{
		Type:         audit.EventIndexEntity,
		UserID:       userID,
		ResourceType: string(entityType),
		ResourceID:   strconv.FormatInt(entityID, 10),
		Action:       "index",
		Success:      false,
		Error:        err.Error(),
	})
	return &RecordFailure{EntityType: entityType, EntityID: entityID, Reason: err.Error()}
}

// RemoveFromIndex deletes one entry. Removing an entry that is not indexed
// succeeds.
func (s *Service) RemoveFromIndex(ctx context.Context, entityType searchdb.EntityType, entityID int64) error {
	if !entityType.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidEntityType, entityType)
	}

	err := s.indexer.Delete(entityType, entityID)
	event := audit.Event{
		Type:         audit.EventIndexRemove,
		ResourceType: string(entityType),
		ResourceID:   strconv.FormatInt(entityID, 10),
		Action:       "remove",
		Success:      err == nil,
	}
	if err != nil {
		event.Error = err.Error()
	}
	s.audit.Record(event)

	if err != nil {
		s.logger.Error("could not remove entity from index", "entity_type", entityType, "entity_id", entityID, "err", err.Error())
		return fmt.Errorf("failed to remove %s %d from index: %w", entityType, entityID, err)
	}
	return nil
}

// UpdateInIndex re-indexes one entity from its current source row. An
// entity that no longer exists is left alone.
func (s *Service) UpdateInIndex(ctx context.Context, entityType searchdb.EntityType, entityID int64) error {
	var err error
	switch entityType {
	case searchdb.EntityCase:
		var row *sourcedb.CaseRow
		if row, err = s.source.GetCase(ctx, entityID); err == nil {
			return s.IndexCase(ctx, *row)
		}
	case searchdb.EntityEvidence:
		var row *sourcedb.EvidenceRow
		if row, err = s.source.GetEvidence(ctx, entityID); err == nil {
			return s.IndexEvidence(ctx, *row)
		}
	case searchdb.EntityConversation:
		var row *sourcedb.ConversationRow
		if row, err = s.source.GetConversation(ctx, entityID); err == nil {
			return s.IndexConversation(ctx, *row)
		}
	case searchdb.EntityNote:
		var row *sourcedb.NoteRow
		if row, err = s.source.GetNote(ctx, entityID); err == nil {
			return s.IndexNote(ctx, *row)
		}
	default:
		return fmt.Errorf("%w: %q", ErrInvalidEntityType, entityType)
	}

	if errors.Is(err, sourcedb.ErrNotFound) {
		s.logger.Debug("entity to update no longer exists", "entity_type", entityType, "entity_id", entityID)
		return nil
	}
	return fmt.Errorf("failed to load %s %d: %w", entityType, entityID, err)
}

// OptimizeIndex runs segment maintenance. Failures mean the index is
// unhealthy and are returned.
func (s *Service) OptimizeIndex(ctx context.Context) error {
	err := s.indexer.Optimize(ctx)

	event := audit.Event{
		Type:         audit.EventIndexOptimize,
		ResourceType: "search_index",
		ResourceID:   "all",
		Action:       "optimize",
		Success:      err == nil,
	}
	if err != nil {
		event.Error = err.Error()
	}
	s.audit.Record(event)

	if err != nil {
		s.logger.Error("index optimization failed", "err", err.Error())
		return fmt.Errorf("index optimization failed: %w", err)
	}
	return nil
}

func (s *Service) GetIndexStats(ctx context.Context) (*searchdb.Stats, error) {
	stats, err := s.indexer.Stats(ctx)
	if err != nil {
		s.logger.Error("could not read index stats", "err", err.Error())
		return nil, fmt.Errorf("could not read index stats: %w", err)
	}
	return stats, nil
}
