package diag

import (
	"errors"
	"fmt"
)

// List is an ordered collection of composition errors. A non-empty List is
// itself an error.
type List []Error

// Error returns a compact summary of the list.
func (l List) Error() string {
	switch len(l) {
	case 0:
		return "no composition errors"
	case 1:
		return l[0].Error()
	default:
		return fmt.Sprintf("%s (and %d more)", l[0].Error(), len(l)-1)
	}
}

// Err returns the list as an error, or nil when it is empty.
func (l List) Err() error {
	if len(l) == 0 {
		return nil
	}
	return l
}

// Messages returns the formatted message of every error, in order.
func (l List) Messages() []string {
	out := make([]string, len(l))
	for i, e := range l {
		out[i] = e.Error()
	}
	return out
}

// OfKind returns the errors of the given kind, in order.
func (l List) OfKind(k Kind) List {
	var out List
	for _, e := range l {
		if e.Kind == k {
			out = append(out, e)
		}
	}
	return out
}

// AsList extracts a List from err. A single Error is returned as a list of one.
func AsList(err error) (List, bool) {
	if err == nil {
		return nil, false
	}
	var list List
	if errors.As(err, &list) {
		return list, true
	}
	var single Error
	if errors.As(err, &single) {
		return List{single}, true
	}
	return nil, false
}
