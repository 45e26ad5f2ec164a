// Package history records the queries answered by tradelens so operators
// can review demand per namespace. Storage backends live in subpackages.
package history

import (
	"context"
	"errors"
	"time"

	"github.com/rhuss/tradelens/pkg/api"
)

// Sentinel errors for history operations.
var (
	// ErrNotFound is returned when a record does not exist for the tenant.
	ErrNotFound = errors.New("history record not found")

	// ErrConflict is returned when a record with the given ID already exists.
	ErrConflict = errors.New("history record already exists")
)

// List limits.
const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// Record is one answered query.
type Record struct {
	ID         string         `json:"id"`
	TenantID   string         `json:"tenant_id,omitempty"`
	Query      string         `json:"query"`
	Namespace  api.Namespace  `json:"namespace"`
	RecordType api.RecordType `json:"record_type"`
	HitCount   int            `json:"hit_count"`
	Summarized bool           `json:"summarized"`
	DurationMS int64          `json:"duration_ms"`
	CreatedAt  int64          `json:"created_at"`
}

// ListOptions filters and bounds a List call.
type ListOptions struct {
	// Limit is clamped to [1, MaxListLimit]; zero selects DefaultListLimit.
	Limit int

	// Namespace restricts results to one namespace when set.
	Namespace api.Namespace
}

// Normalize applies the default and maximum limit.
func (o ListOptions) Normalize() ListOptions {
	switch {
	case o.Limit <= 0:
		o.Limit = DefaultListLimit
	case o.Limit > MaxListLimit:
		o.Limit = MaxListLimit
	}
	return o
}

// Store persists history records. Every method is scoped to the tenant
// found in the context (see SetTenant).
type Store interface {
	// Save stores rec. The tenant is taken from ctx, not rec.TenantID.
	Save(ctx context.Context, rec *Record) error

	// List returns records newest first.
	List(ctx context.Context, opts ListOptions) ([]*Record, error)

	// Get returns the record with id, or ErrNotFound.
	Get(ctx context.Context, id string) (*Record, error)

	// HealthCheck reports whether the backend is reachable.
	HealthCheck(ctx context.Context) error

	Close() error
}

// FromAnswer builds the record for a completed answer.
func FromAnswer(ans *api.Answer) *Record {
	return &Record{
		ID:         ans.ID,
		Query:      ans.Query,
		Namespace:  ans.Namespace,
		RecordType: ans.RecordType,
		HitCount:   len(ans.Hits),
		Summarized: ans.Summary != "",
		DurationMS: ans.Duration.Milliseconds(),
		CreatedAt:  ans.CreatedAt,
	}
}

// Now returns the current time in the unit used for CreatedAt.
func Now() int64 {
	return time.Now().Unix()
}
