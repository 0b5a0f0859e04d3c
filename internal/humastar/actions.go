package humastar

import "fmt"

// Action is a state-dependent hypermedia action link. Response bodies
// implementing Actor get one RFC 8288 Link header per action, with method,
// title and schema extension parameters:
//
//	</api/v1/widgets/geom/clear>; rel="clear"; method="POST"; title="Clear geometry"
type Action struct {
	Rel    string
	Href   string
	Method string
	Title  string
	Schema string
}

// Actor is implemented by response bodies that provide state-dependent actions.
type Actor interface {
	Actions() []Action
}

// LinkHeader formats the action as an RFC 8288 Link header value.
func (a Action) LinkHeader() string {
	h := fmt.Sprintf(`<%s>; rel="%s"`, a.Href, a.Rel)
	if a.Method != "" {
		h += fmt.Sprintf(`; method="%s"`, a.Method)
	}
	if a.Title != "" {
		h += fmt.Sprintf(`; title="%s"`, a.Title)
	}
	if a.Schema != "" {
		h += fmt.Sprintf(`; schema="%s"`, a.Schema)
	}
	return h
}
