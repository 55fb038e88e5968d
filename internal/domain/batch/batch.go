package batch

import (
	"time"

	"github.com/google/uuid"

	"github.com/kailas-cloud/objsearch/internal/domain/entry"
)

// Batch is one processing run over a set of images.
type Batch struct {
	id        uuid.UUID
	createdAt time.Time
	entries   []entry.Entry
	path      string
}

// New creates a Batch. Entry order is processing order.
func New(id uuid.UUID, createdAt time.Time, entries []entry.Entry, metadataPath string) Batch {
	return Batch{id: id, createdAt: createdAt, entries: entries, path: metadataPath}
}

// ID returns the batch identifier.
func (b *Batch) ID() uuid.UUID { return b.id }

// CreatedAt returns when the batch was assembled.
func (b *Batch) CreatedAt() time.Time { return b.createdAt }

// Entries returns the per-image entries in processing order.
func (b *Batch) Entries() []entry.Entry { return b.entries }

// MetadataPath returns where the batch document was persisted.
func (b *Batch) MetadataPath() string { return b.path }

// Summary is one row of the batch listing.
type Summary struct {
	ID           string
	MetadataPath string
	ImageCount   int
	ModifiedAt   time.Time
}
