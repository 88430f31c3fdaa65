package store

import "errors"

// Record is one processed course. Link is the natural key, the persisted
// table is the source of truth for "already processed".
type Record struct {
	Link  string
	Title string
	Time  string
}

var Header = []string{"Course Link", "Course Title", "Course Time"}

var ErrDuplicate = errors.New("course link already recorded")

// DetailStore is the durable table of processed courses. Append stages a
// row in memory, Flush makes staged rows durable, Replace rewrites the
// whole table (used by the duration normalizer).
type DetailStore interface {
	Load() ([]Record, error)
	Append(r Record) error
	Flush() error
	Replace(rows []Record) error
}
