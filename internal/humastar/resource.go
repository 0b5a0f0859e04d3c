package humastar

import "fmt"

// ActionDef is a reusable action template. Pattern has a single %s verb
// for the resource ID.
type ActionDef struct {
	Rel     string
	Pattern string
	Method  string
	Title   string
	Schema  string
	// When, if set, decides per resource whether the action is offered.
	When func(id string) bool
}

// ActionsFor expands defs for one resource, dropping those whose When
// returns false.
func ActionsFor(id string, defs []ActionDef) []Action {
	actions := make([]Action, 0, len(defs))
	for _, d := range defs {
		if d.When != nil && !d.When(id) {
			continue
		}
		actions = append(actions, Action{
			Rel:    d.Rel,
			Href:   fmt.Sprintf(d.Pattern, id),
			Method: d.Method,
			Title:  d.Title,
			Schema: d.Schema,
		})
	}
	return actions
}
