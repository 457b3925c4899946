package engine

import (
	"context"
	"fmt"

	"github.com/roach88/registrar/internal/model"
	"github.com/roach88/registrar/internal/rules"
	"github.com/roach88/registrar/internal/store"
)

// CapacityTrigger enforces the admission ceiling after commit. An
// enrollment admitted beyond the ceiling of its (course, period) is
// rolled back. An enrollment that is already gone or withdrawn needs
// nothing.
type CapacityTrigger struct {
	store    *store.Store
	coord    Coordinator
	recorder Recorder
}

// NewCapacityTrigger creates the capacity trigger. The ceiling is read
// from the coordinator. A nil recorder counts nothing.
func NewCapacityTrigger(s *store.Store, c Coordinator, r Recorder) *CapacityTrigger {
	if r == nil {
		r = nopRecorder{}
	}
	return &CapacityTrigger{store: s, coord: c, recorder: r}
}

func (t *CapacityTrigger) Name() string { return "capacity" }
func (t *CapacityTrigger) Collections() []model.Collection {
	return []model.Collection{model.CollectionEnrollment}
}
func (t *CapacityTrigger) Writes() bool { return true }

func (t *CapacityTrigger) Match(ev model.ChangeEvent) bool {
	return ev.Op == model.OpInsert
}

func (t *CapacityTrigger) Handle(ctx context.Context, ev model.ChangeEvent) error {
	adm, err := t.store.AdmissionRank(ctx, ev.EntityID)
	if model.IsCode(err, model.NotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	ceiling := t.coord.Ceiling()
	if adm.Rank == 0 || !rules.Overbooked(adm.Rank, ceiling) {
		return nil
	}

	err = t.coord.RollbackEnrollment(ctx, ev.EntityID, fmt.Sprintf("ceiling %d exceeded", ceiling))
	if model.IsCode(err, model.NotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	t.recorder.ObserveRollback()
	return nil
}
