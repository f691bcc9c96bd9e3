package model

// Action is the two-valued check-in direction.
type Action string

const (
	ActionEntry Action = "Entrada"
	ActionExit  Action = "Saída"
)

// Toggle returns the opposite direction. Anything that is not an entry
// toggles to entry, so corrupt history self-heals on the next scan.
func (a Action) Toggle() Action {
	if a == ActionEntry {
		return ActionExit
	}
	return ActionEntry
}

func (a Action) Valid() bool {
	return a == ActionEntry || a == ActionExit
}
