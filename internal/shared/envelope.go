package shared

import "time"

// Envelope groups the created/updated/deleted stamps shared by every
// mutable entity. Deletion is a tombstone: rows are retained and
// filtered by DeletedAt.
type Envelope struct {
	CreatedAt time.Time  `json:"createdAt"`
	CreatedBy string     `json:"createdBy,omitempty"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
	UpdatedBy string     `json:"updatedBy,omitempty"`
	DeletedAt *time.Time `json:"-"`
	DeletedBy string     `json:"-"`
}

// StampCreated records the creation stamp.
func (e *Envelope) StampCreated(now time.Time, actor string) {
	e.CreatedAt = now
	e.CreatedBy = actor
}

// StampUpdated records the update stamp.
func (e *Envelope) StampUpdated(now time.Time, actor string) {
	e.UpdatedAt = &now
	e.UpdatedBy = actor
}

// StampDeleted records the tombstone.
func (e *Envelope) StampDeleted(now time.Time, actor string) {
	e.DeletedAt = &now
	e.DeletedBy = actor
}

// Deleted reports whether the tombstone is set.
func (e *Envelope) Deleted() bool {
	return e.DeletedAt != nil
}
