package events

import (
	"fmt"
	"strings"
	"unicode"
)

// KeyType names the model element type a reference key points at.
type KeyType string

const (
	KeyAssetAdministrationShell     KeyType = "AssetAdministrationShell"
	KeySubmodel                     KeyType = "Submodel"
	KeyConceptDescription           KeyType = "ConceptDescription"
	KeySubmodelElementCollection    KeyType = "SubmodelElementCollection"
	KeySubmodelElementList          KeyType = "SubmodelElementList"
	KeyProperty                     KeyType = "Property"
	KeyMultiLanguageProperty        KeyType = "MultiLanguageProperty"
	KeyRange                        KeyType = "Range"
	KeyBlob                         KeyType = "Blob"
	KeyFile                         KeyType = "File"
	KeyReferenceElement             KeyType = "ReferenceElement"
	KeyRelationshipElement          KeyType = "RelationshipElement"
	KeyAnnotatedRelationshipElement KeyType = "AnnotatedRelationshipElement"
	KeyEntity                       KeyType = "Entity"
	KeyOperation                    KeyType = "Operation"
	KeyCapability                   KeyType = "Capability"
	KeyBasicEventElement            KeyType = "BasicEventElement"
	KeyGlobalReference              KeyType = "GlobalReference"
	KeyFragmentReference            KeyType = "FragmentReference"
)

// Key is one step of a reference path.
type Key struct {
	Type  KeyType `json:"type" yaml:"type"`
	Value string  `json:"value" yaml:"value"`
}

func (k Key) String() string {
	return "(" + string(k.Type) + ")" + k.Value
}

// Reference identifies the model element an event concerns, e.g.
// (Submodel)urn:sm:1, (Property)temperature.
type Reference struct {
	Keys []Key `json:"keys" yaml:"keys"`
}

// NewReference copies keys into a new reference.
func NewReference(keys ...Key) *Reference {
	return &Reference{Keys: append([]Key(nil), keys...)}
}

func (r *Reference) IsZero() bool {
	return r == nil || len(r.Keys) == 0
}

// Last returns the key naming the referenced element itself.
func (r *Reference) Last() (Key, bool) {
	if r.IsZero() {
		return Key{}, false
	}
	return r.Keys[len(r.Keys)-1], true
}

func (r *Reference) Equal(other *Reference) bool {
	if r.IsZero() || other.IsZero() {
		return r.IsZero() && other.IsZero()
	}
	if len(r.Keys) != len(other.Keys) {
		return false
	}
	for i := range r.Keys {
		if r.Keys[i] != other.Keys[i] {
			return false
		}
	}
	return true
}

// HasPrefix reports whether r lies at or below parent in the model tree.
func (r *Reference) HasPrefix(parent *Reference) bool {
	if parent.IsZero() {
		return true
	}
	if r.IsZero() || len(parent.Keys) > len(r.Keys) {
		return false
	}
	for i := range parent.Keys {
		if r.Keys[i] != parent.Keys[i] {
			return false
		}
	}
	return true
}

func (r *Reference) String() string {
	if r.IsZero() {
		return ""
	}
	parts := make([]string, len(r.Keys))
	for i, k := range r.Keys {
		parts[i] = k.String()
	}
	return strings.Join(parts, ", ")
}

// ParseReference reads the form produced by Reference.String. Keys are
// separated by a comma followed by the next "(Type)", so values may contain
// commas themselves.
func ParseReference(s string) (*Reference, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("empty reference")
	}

	var keys []Key
	for _, part := range splitKeys(s) {
		part = strings.TrimSpace(part)
		if !strings.HasPrefix(part, "(") {
			return nil, fmt.Errorf("reference key %q: missing type", part)
		}
		end := strings.IndexByte(part, ')')
		if end < 2 {
			return nil, fmt.Errorf("reference key %q: malformed type", part)
		}
		value := part[end+1:]
		if value == "" {
			return nil, fmt.Errorf("reference key %q: missing value", part)
		}
		keys = append(keys, Key{Type: KeyType(part[1:end]), Value: value})
	}

	return &Reference{Keys: keys}, nil
}

func splitKeys(s string) []string {
	var parts []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] != ',' {
			continue
		}
		j := i + 1
		for j < len(s) && s[j] == ' ' {
			j++
		}
		if startsWithKeyType(s[j:]) {
			parts = append(parts, s[start:i])
			start = j
			i = j - 1
		}
	}
	return append(parts, s[start:])
}

// startsWithKeyType reports whether s begins with a "(Type)" token.
func startsWithKeyType(s string) bool {
	if !strings.HasPrefix(s, "(") {
		return false
	}
	end := strings.IndexByte(s, ')')
	if end < 2 {
		return false
	}
	for _, r := range s[1:end] {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}
