package index

import (
	"errors"
	"fmt"

	"github.com/meghashyamc/caseindex/db/searchdb"
)

var (
	ErrRebuildFailed     = errors.New("index rebuild failed")
	ErrInvalidEntityType = errors.New("invalid entity type")
)

// RecordFailure is one entity that could not be indexed. Bulk rebuilds
// collect these and carry on.
type RecordFailure struct {
	EntityType searchdb.EntityType `json:"entity_type"`
	EntityID   int64               `json:"entity_id"`
	Reason     string              `json:"reason"`
}

func (f *RecordFailure) Error() string {
	return fmt.Sprintf("could not index %s %d: %s", f.EntityType, f.EntityID, f.Reason)
}

type BuildReport struct {
	Users    int             `json:"users"`
	Indexed  int             `json:"indexed"`
	Failures []RecordFailure `json:"failures"`
}

func (r *BuildReport) addFailure(failure *RecordFailure) {
	r.Failures = append(r.Failures, *failure)
}
