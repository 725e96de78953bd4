package intake

import (
	"context"
	"fmt"
)

// restore rebuilds in-memory state from the store after a reload. An office
// the actor may no longer book for is dropped from the draft and the rest of
// the draft is kept; the user is asked to pick an office again. The reselect
// flag and the forced step are stored so later reloads land in the same place.
func (w *Workflow) restore(ctx context.Context) error {
	stored, err := w.loadStep(ctx)
	if err != nil {
		return err
	}

	var draft BookingDraft
	found, err := getJSON(ctx, w.store, KeyDraft, &draft)
	if err != nil {
		return err
	}
	if found {
		if draft.Employees == nil {
			draft.Employees = []Employee{}
		}
		w.draft = &draft
		if err := w.revalidateOffice(ctx); err != nil {
			return err
		}
		if !w.officeReselect {
			_, w.officeReselect, err = w.store.Get(ctx, KeyOfficeReselect)
			if err != nil {
				return fmt.Errorf("read office reselect: %w", err)
			}
		}
	}

	var roster RosterFile
	if ok, err := getJSON(ctx, w.store, KeyRosterFile, &roster); err != nil {
		return err
	} else if ok {
		w.roster = &roster
	}

	switch {
	case stored == StepSuccess:
		w.step = StepSuccess
	case stored == StepFailure:
		w.step = StepFailure
	case w.draft == nil:
		if err := w.newDraft(ctx); err != nil {
			return err
		}
		w.step = StepChooseMode
	case stored < StepChooseMode:
		w.step = StepChooseMode
	case w.officeReselect && stored > StepAppointmentDetails:
		w.step = StepAppointmentDetails
		if err := w.store.Set(ctx, KeyStep, []byte(w.step.String())); err != nil {
			return fmt.Errorf("store step: %w", err)
		}
	default:
		w.step = stored
	}
	return nil
}

func (w *Workflow) loadStep(ctx context.Context) (Step, error) {
	name, err := getString(ctx, w.store, KeyStep)
	if err != nil {
		return StepLogin, fmt.Errorf("read step: %w", err)
	}
	if step, ok := ParseStep(name); ok {
		return step, nil
	}
	return StepLogin, nil
}

func (w *Workflow) revalidateOffice(ctx context.Context) error {
	if w.draft.OfficeSelection == "" {
		return nil
	}
	if _, ok := w.actor.PermittedOffice(w.draft.OfficeSelection); ok {
		return nil
	}

	w.draft.OfficeSelection = ""
	w.officeReselect = true
	if err := w.store.Set(ctx, KeyOfficeReselect, []byte("1")); err != nil {
		return fmt.Errorf("store office reselect: %w", err)
	}
	if err := w.store.Remove(ctx, KeySelectedOfficeName); err != nil {
		return fmt.Errorf("remove office name: %w", err)
	}
	return setJSON(ctx, w.store, KeyDraft, w.draft)
}
