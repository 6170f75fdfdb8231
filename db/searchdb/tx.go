package searchdb

import (
	"fmt"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"
)

var _ Batch = (*Tx)(nil)

// Tx stages deletes and upserts in a single bleve batch. Nothing is visible
// until Commit, and a failed Commit leaves the index untouched.
type Tx struct {
	db    *BleveDB
	batch *bleve.Batch
	err   error
	count int
}

func (b *BleveDB) Begin() Batch {
	index, err := b.live()
	if err != nil {
		return &Tx{db: b, err: err}
	}
	return &Tx{db: b, batch: index.NewBatch()}
}

// DeleteAll stages removal of every document.
func (t *Tx) DeleteAll() error {
	return t.deleteMatching(bleve.NewMatchAllQuery())
}

// DeleteUser stages removal of every document owned by userID.
func (t *Tx) DeleteUser(userID int64) error {
	return t.deleteMatching(userQuery(userID))
}

func (t *Tx) deleteMatching(q query.Query) error {
	if t.err != nil {
		return t.err
	}
	index, err := t.db.live()
	if err != nil {
		t.err = err
		return err
	}

	ids, err := t.db.collectIDs(index, q)
	if err != nil {
		t.db.logger.Error("could not list documents for deletion", "err", err.Error())
		t.err = fmt.Errorf("%w: %s", ErrUnavailable, err.Error())
		return t.err
	}
	for _, id := range ids {
		t.batch.Delete(id)
	}
	return nil
}

// Upsert stages one entry. An error here concerns only this entry and
// leaves the transaction usable.
func (t *Tx) Upsert(entry Entry) error {
	if t.err != nil {
		return t.err
	}
	if err := t.batch.Index(entry.DocID(), entry); err != nil {
		return fmt.Errorf("could not stage %s: %w", entry.DocID(), err)
	}
	t.count++
	return nil
}

// Count is the number of staged upserts.
func (t *Tx) Count() int {
	return t.count
}

func (t *Tx) Commit() error {
	if t.err != nil {
		return t.err
	}
	index, err := t.db.live()
	if err != nil {
		return err
	}
	if err := index.Batch(t.batch); err != nil {
		t.db.logger.Error("could not commit index batch", "size", t.batch.Size(), "err", err.Error())
		return fmt.Errorf("could not commit index batch: %w", err)
	}
	return nil
}

// Rollback discards staged operations.
func (t *Tx) Rollback() {
	if t.batch != nil {
		t.batch.Reset()
	}
}
