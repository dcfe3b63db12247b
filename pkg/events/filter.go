package events

// Filter narrows a subscription by the element a message concerns. A nil
// Filter matches every message, including those without an element.
type Filter func(ref *Reference) bool

// Match applies f, treating a nil filter as match-all.
func (f Filter) Match(ref *Reference) bool {
	if f == nil {
		return true
	}
	return f(ref)
}

func MatchAll() Filter {
	return func(*Reference) bool { return true }
}

// MatchReference accepts only messages about exactly ref.
func MatchReference(ref *Reference) Filter {
	return func(r *Reference) bool {
		return r.Equal(ref)
	}
}

// MatchPrefix accepts messages about parent and everything below it.
func MatchPrefix(parent *Reference) Filter {
	return func(r *Reference) bool {
		return !r.IsZero() && r.HasPrefix(parent)
	}
}

// MatchKeyType accepts messages whose element is of the given type, judged by
// the last key of the reference.
func MatchKeyType(kt KeyType) Filter {
	return func(r *Reference) bool {
		last, ok := r.Last()
		return ok && last.Type == kt
	}
}

func And(filters ...Filter) Filter {
	return func(r *Reference) bool {
		for _, f := range filters {
			if !f.Match(r) {
				return false
			}
		}
		return true
	}
}

func Or(filters ...Filter) Filter {
	return func(r *Reference) bool {
		for _, f := range filters {
			if f.Match(r) {
				return true
			}
		}
		return len(filters) == 0
	}
}
