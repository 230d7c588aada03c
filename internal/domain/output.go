package domain

import "time"

// Output is the persisted result of one succeeded audio job: a reference to
// the stored blob plus provider metadata. A unique constraint on JobID keeps
// the row single-valued even under concurrent retries.
type Output struct {
	ID         string
	JobID      string
	UserID     string
	Provider   string
	StorageKey string
	PublicURL  string
	MIME       string
	Bytes      int64
	CreatedAt  time.Time
}
