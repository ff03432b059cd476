package subject

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Well-known subject item types. The set is open: unknown types are accepted
// and queried verbatim, they simply get no alias expansion.
const (
	TypeKojiBuild            = "koji_build"
	TypeBrewBuild            = "brew-build"
	TypeCompose              = "compose"
	TypeBodhiUpdate          = "bodhi_update"
	TypeRedHatModule         = "redhat-module"
	TypeRedHatContainerImage = "redhat-container-image"
)

// ErrUnresolvableSubject indicates a subject with no usable reference form.
// A decision cannot be evaluated for such a subject.
var ErrUnresolvableSubject = errors.New("subject has no usable reference form")

// Reference is one (type, identifier) form under which a subject may be
// known to an evidence store.
type Reference struct {
	// Type is the subject item type (e.g. "koji_build").
	Type string `json:"type"`

	// Identifier is the item identifier (e.g. an NVR or compose ID).
	Identifier string `json:"identifier"`
}

// String returns the canonical "type:identifier" form of the reference.
func (r Reference) String() string {
	return r.Type + ":" + r.Identifier
}

// Subject identifies one artifact under test, together with any auxiliary
// reference forms the evidence stores may use for the same artifact.
type Subject struct {
	// Ref is the primary reference form of the subject.
	Ref Reference `json:"ref"`

	// Aux contains alternative reference forms of the same subject.
	Aux []Reference `json:"aux,omitempty"`
}

// New creates a subject from an item type and identifier. Alias reference
// forms are added automatically for type pairs that evidence stores use
// interchangeably (brew-build and koji_build report the same builds).
func New(itemType, identifier string) (Subject, error) {
	itemType = strings.TrimSpace(itemType)
	identifier = strings.TrimSpace(identifier)
	if itemType == "" || identifier == "" {
		return Subject{}, fmt.Errorf("%w: type=%q identifier=%q",
			ErrUnresolvableSubject, itemType, identifier)
	}

	s := Subject{Ref: Reference{Type: itemType, Identifier: identifier}}
	switch itemType {
	case TypeBrewBuild:
		s.Aux = append(s.Aux, Reference{Type: TypeKojiBuild, Identifier: identifier})
	case TypeKojiBuild:
		s.Aux = append(s.Aux, Reference{Type: TypeBrewBuild, Identifier: identifier})
	}
	return s, nil
}

// Type returns the primary item type of the subject.
func (s Subject) Type() string { return s.Ref.Type }

// Identifier returns the primary identifier of the subject.
func (s Subject) Identifier() string { return s.Ref.Identifier }

// References returns all reference forms of the subject, primary first.
// The result is never empty for a subject created via New.
func (s Subject) References() []Reference {
	refs := make([]Reference, 0, 1+len(s.Aux))
	refs = append(refs, s.Ref)
	refs = append(refs, s.Aux...)
	return refs
}

// Matches reports whether the given reference identifies this subject under
// any of its reference forms.
func (s Subject) Matches(ref Reference) bool {
	for _, own := range s.References() {
		if own == ref {
			return true
		}
	}
	return false
}

// CanonicalKey returns a stable key covering every reference form of the
// subject, suitable for cache keying. Reference order does not affect it.
func (s Subject) CanonicalKey() string {
	refs := s.References()
	keys := make([]string, len(refs))
	for i, r := range refs {
		keys[i] = r.String()
	}
	sort.Strings(keys)
	return strings.Join(keys, ",")
}

// Validate checks the subject invariant: at least one usable reference form.
func (s Subject) Validate() error {
	if s.Ref.Type == "" || s.Ref.Identifier == "" {
		return ErrUnresolvableSubject
	}
	return nil
}

// String returns the primary reference form.
func (s Subject) String() string {
	return s.Ref.String()
}
