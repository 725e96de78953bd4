package intake

// NavigationGuard decides whether leaving the page needs confirmation.
type NavigationGuard struct {
	step       Step
	submitting bool
}

func GuardFor(step Step, submitting bool) NavigationGuard {
	return NavigationGuard{step: step, submitting: submitting}
}

// Enabled is true on the form steps and never while a submission is in flight.
func (g NavigationGuard) Enabled() bool {
	return g.step.Editable() && !g.submitting
}

// Unload reports whether the browser's unsaved-changes prompt is requested.
func (g NavigationGuard) Unload() bool {
	return g.Enabled()
}

type BackDecision string

const (
	BackAllowed   BackDecision = "allowed"
	BackCancelled BackDecision = "cancelled"
	BackCleared   BackDecision = "cleared"
)

// Back resolves an intercepted back navigation. Declining keeps the user in
// place; confirming means the caller must clear the session store.
func (g NavigationGuard) Back(confirm bool) BackDecision {
	switch {
	case !g.Enabled():
		return BackAllowed
	case confirm:
		return BackCleared
	default:
		return BackCancelled
	}
}
