package kvdb

const (
	RequestsBucket      = "rebuild_requests"
	SavedSearchesBucket = "saved_searches"
)

var buckets = []string{RequestsBucket, SavedSearchesBucket}

type DB interface {
	Set(bucket string, key string, value string) error
	Get(bucket string, key string) (string, error)
	Delete(bucket string, key string) error
	Modify(bucket string, key string, fn func(value string) (string, error)) (string, error)
	NextSequence(bucket string) (uint64, error)
	ForEachWithPrefix(bucket string, prefix string, fn func(key string, value string) error) error
	Close() error
}
