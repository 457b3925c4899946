package engine

import (
	"context"
	"strings"

	"github.com/roach88/registrar/internal/model"
	"github.com/roach88/registrar/internal/store"
)

// AuditTrigger writes one audit record per change event of every
// collection. Record ids are content hashes of the event, so redelivery
// writes nothing new.
type AuditTrigger struct {
	store *store.Store
}

// NewAuditTrigger creates the audit trigger.
func NewAuditTrigger(s *store.Store) *AuditTrigger {
	return &AuditTrigger{store: s}
}

func (t *AuditTrigger) Name() string { return "audit" }
func (t *AuditTrigger) Collections() []model.Collection { return model.Collections() }
func (t *AuditTrigger) Match(model.ChangeEvent) bool { return true }
func (t *AuditTrigger) Writes() bool { return false }

func (t *AuditTrigger) Handle(ctx context.Context, ev model.ChangeEvent) error {
	id, err := model.AuditRecordID(ev)
	if err != nil {
		return err
	}
	_, err = t.store.AppendAudit(ctx, model.AuditRecord{
		ID:          id,
		EventSeq:    ev.Seq,
		RecordedAt:  ev.CommittedAt,
		Operation:   ev.Op,
		Collection:  ev.Collection,
		EntityID:    ev.EntityID,
		Description: Describe(ev),
	})
	return err
}

// Describe renders an audit description:
//
//	insert
//	update gpa, credits
//	delete by capacity: ceiling 30 exceeded
func Describe(ev model.ChangeEvent) string {
	var b strings.Builder
	b.WriteString(string(ev.Op))
	if ev.Op == model.OpUpdate && len(ev.Changed) > 0 {
		b.WriteString(" ")
		b.WriteString(strings.Join(ev.Changed, ", "))
	}
	if ev.Origin != "" {
		b.WriteString(" by ")
		b.WriteString(ev.Origin)
	}
	if ev.Reason != "" {
		b.WriteString(": ")
		b.WriteString(ev.Reason)
	}
	return b.String()
}
