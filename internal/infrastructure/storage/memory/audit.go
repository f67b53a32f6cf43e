package memory

import (
	"context"

	"stockledger/internal/core/id"
	"stockledger/internal/domain"
	"stockledger/internal/domain/audit"
)

// AuditRepo implements audit.Recorder.
type AuditRepo struct {
	s *Store
}

var _ audit.Recorder = (*AuditRepo)(nil)

// Audit returns the audit recorder.
func (s *Store) Audit() *AuditRepo {
	return &AuditRepo{s: s}
}

func (r *AuditRepo) Record(ctx context.Context, entry audit.Entry) error {
	return r.s.write(ctx, func() error {
		r.s.audit = append(r.s.audit, entry)
		return nil
	})
}

// History returns entries for the entity, newest first.
func (r *AuditRepo) History(ctx context.Context, entityType string, entityID id.ID, limit int) ([]audit.Entry, error) {
	limit = domain.Page{Limit: limit}.Normalize().Limit
	out := []audit.Entry{}
	err := r.s.read(ctx, func() error {
		for i := len(r.s.audit) - 1; i >= 0 && len(out) < limit; i-- {
			e := r.s.audit[i]
			if e.EntityType == entityType && e.EntityID == entityID {
				out = append(out, e)
			}
		}
		return nil
	})
	return out, err
}
