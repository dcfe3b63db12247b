package events

import (
	"fmt"
	"strings"
)

// Kind tags a message with its position in the event hierarchy.
type Kind uint8

const (
	KindEvent Kind = iota
	KindAccess
	KindRead
	KindElementRead
	KindValueRead
	KindExecute
	KindOperationInvoke
	KindOperationFinish
	KindChange
	KindElementChange
	KindElementCreate
	KindElementUpdate
	KindElementDelete
	KindValueChange
	KindError

	numKinds
)

type kindInfo struct {
	name     string
	parent   Kind
	abstract bool
}

// kindTable is the is-a relation. The root points at itself.
var kindTable = [numKinds]kindInfo{
	KindEvent:           {name: "EventMessage", parent: KindEvent, abstract: true},
	KindAccess:          {name: "AccessEventMessage", parent: KindEvent, abstract: true},
	KindRead:            {name: "ReadEventMessage", parent: KindAccess, abstract: true},
	KindElementRead:     {name: "ElementReadEventMessage", parent: KindRead},
	KindValueRead:       {name: "ValueReadEventMessage", parent: KindRead},
	KindExecute:         {name: "ExecuteEventMessage", parent: KindAccess, abstract: true},
	KindOperationInvoke: {name: "OperationInvokeEventMessage", parent: KindExecute},
	KindOperationFinish: {name: "OperationFinishEventMessage", parent: KindExecute},
	KindChange:          {name: "ChangeEventMessage", parent: KindEvent, abstract: true},
	KindElementChange:   {name: "ElementChangeEventMessage", parent: KindChange, abstract: true},
	KindElementCreate:   {name: "ElementCreateEventMessage", parent: KindElementChange},
	KindElementUpdate:   {name: "ElementUpdateEventMessage", parent: KindElementChange},
	KindElementDelete:   {name: "ElementDeleteEventMessage", parent: KindElementChange},
	KindValueChange:     {name: "ValueChangeEventMessage", parent: KindChange},
	KindError:           {name: "ErrorEventMessage", parent: KindEvent},
}

var kindsByName = func() map[string]Kind {
	m := make(map[string]Kind, numKinds)
	for k := Kind(0); k < numKinds; k++ {
		m[kindTable[k].name] = k
	}
	return m
}()

func (k Kind) Valid() bool {
	return k < numKinds
}

func (k Kind) String() string {
	if !k.Valid() {
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
	return kindTable[k].name
}

// Parent returns the direct supertype. ok is false for the root and for
// invalid kinds.
func (k Kind) Parent() (Kind, bool) {
	if !k.Valid() || k == KindEvent {
		return k, false
	}
	return kindTable[k].parent, true
}

// Abstract kinds are never carried by a published message; they only exist
// to be subscribed to.
func (k Kind) Abstract() bool {
	return k.Valid() && kindTable[k].abstract
}

// IsA reports whether k is super or one of its descendants.
func (k Kind) IsA(super Kind) bool {
	if !k.Valid() || !super.Valid() {
		return false
	}
	for cur := k; ; {
		if cur == super {
			return true
		}
		parent, ok := cur.Parent()
		if !ok {
			return false
		}
		cur = parent
	}
}

// Concrete returns the non-abstract kinds that are k or descend from it,
// in declaration order.
func (k Kind) Concrete() []Kind {
	var out []Kind
	for c := Kind(0); c < numKinds; c++ {
		if !kindTable[c].abstract && c.IsA(k) {
			out = append(out, c)
		}
	}
	return out
}

func (k Kind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownKind, uint8(k))
	}
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// ParseKind resolves a kind by its exact name. Surrounding whitespace is
// ignored.
func ParseKind(name string) (Kind, error) {
	if k, ok := kindsByName[strings.TrimSpace(name)]; ok {
		return k, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownKind, name)
}

// ParseKinds parses every name and reports the first failure.
func ParseKinds(names []string) ([]Kind, error) {
	kinds := make([]Kind, 0, len(names))
	for _, n := range names {
		k, err := ParseKind(n)
		if err != nil {
			return nil, err
		}
		kinds = append(kinds, k)
	}
	return kinds, nil
}

// Kinds lists every kind in declaration order.
func Kinds() []Kind {
	out := make([]Kind, 0, numKinds)
	for k := Kind(0); k < numKinds; k++ {
		out = append(out, k)
	}
	return out
}
