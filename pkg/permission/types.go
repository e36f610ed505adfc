package permission

import (
	"fmt"
	"sort"
	"strings"
)

// Level is the strength of an object-access grant. Levels are totally
// ordered; a higher level implies every capability of the levels below it.
type Level int

const (
	RestrictedView Level = iota
	View
	Modify
	Delete
	ChangeRights
)

// levelTokens maps levels to their wire tokens, index == Level.
var levelTokens = [...]string{"RV", "V", "M", "D", "CR"}

func (l Level) String() string {
	if l < RestrictedView || l > ChangeRights {
		return fmt.Sprintf("Level(%d)", int(l))
	}
	return levelTokens[l]
}

// Valid reports whether l is a defined level.
func (l Level) Valid() bool {
	return l >= RestrictedView && l <= ChangeRights
}

// ParseLevel parses a wire token ("RV", "V", "M", "D", "CR") into a Level.
func ParseLevel(token string) (Level, error) {
	for i, t := range levelTokens {
		if t == token {
			return Level(i), nil
		}
	}
	return 0, fmt.Errorf("unknown permission level token %q", token)
}

// Kind identifies what a permission grants. Administrative kinds name a
// system operation; KindObjectAccess grants a data-visibility level.
type Kind string

const (
	// KindObjectAccess is an object-access grant; the Level field holds the
	// granted level and AdditionalInfo the group it is granted to.
	KindObjectAccess Kind = "objectAccess"

	// Administrative operation grants. The Restricted variants carry the
	// IRI restricting the grant in AdditionalInfo.
	KindCreateResourceAll        Kind = "createResourceAll"
	KindCreateResourceRestricted Kind = "createResourceRestricted"
	KindProjectAdminAll          Kind = "projectAdminAll"
	KindGroupAdminAll            Kind = "groupAdminAll"
	KindGroupAdminRestricted     Kind = "groupAdminRestricted"
	KindRightAdminAll            Kind = "rightAdminAll"
)

// AdministrativeKinds lists every administrative operation kind.
func AdministrativeKinds() []Kind {
	return []Kind{
		KindCreateResourceAll,
		KindCreateResourceRestricted,
		KindProjectAdminAll,
		KindGroupAdminAll,
		KindGroupAdminRestricted,
		KindRightAdminAll,
	}
}

// Valid reports whether k is a defined kind.
func (k Kind) Valid() bool {
	if k == KindObjectAccess {
		return true
	}
	for _, ak := range AdministrativeKinds() {
		if k == ak {
			return true
		}
	}
	return false
}

// Permission is a single grant. Object-access permissions carry a Level and
// the IRI of the group the level is granted to in AdditionalInfo.
// Administrative permissions carry only a Kind, plus a restricting IRI in
// AdditionalInfo for the Restricted variants.
type Permission struct {
	Kind           Kind   `json:"kind"`
	Level          Level  `json:"level,omitempty"`
	AdditionalInfo string `json:"additional_info,omitempty"`
}

// ObjectAccess builds an object-access permission granting level to group.
func ObjectAccess(level Level, group string) Permission {
	return Permission{Kind: KindObjectAccess, Level: level, AdditionalInfo: group}
}

// Administrative builds an administrative permission of the given kind.
func Administrative(kind Kind, additionalInfo string) Permission {
	return Permission{Kind: kind, AdditionalInfo: additionalInfo}
}

func (p Permission) String() string {
	if p.Kind == KindObjectAccess {
		return fmt.Sprintf("%s %s", p.Level, p.AdditionalInfo)
	}
	if p.AdditionalInfo != "" {
		return fmt.Sprintf("%s %s", p.Kind, p.AdditionalInfo)
	}
	return string(p.Kind)
}

// mergeKey identifies the subject a grant applies to. Two permissions with
// the same merge key must collapse into one entry.
func (p Permission) mergeKey() string {
	return string(p.Kind) + "\x00" + p.AdditionalInfo
}

// Set is a collection of permissions for one subject. A set never holds two
// entries with the same (kind, additional-info); for object-access grants
// the higher level wins when merging.
type Set []Permission

// NewSet builds a Set from the given permissions, applying the merge rule.
func NewSet(perms ...Permission) Set {
	var s Set
	for _, p := range perms {
		s = s.Add(p)
	}
	return s
}

// Add merges p into the set. For an existing entry with the same
// (kind, additional-info) the higher object-access level is kept; this is
// the explicit merge rule, not incidental set semantics.
func (s Set) Add(p Permission) Set {
	key := p.mergeKey()
	for i, existing := range s {
		if existing.mergeKey() != key {
			continue
		}
		if p.Kind == KindObjectAccess && p.Level > existing.Level {
			s[i] = p
		}
		return s
	}
	return append(s, p)
}

// Merge combines two sets under the higher-level-wins rule.
func (s Set) Merge(other Set) Set {
	out := make(Set, 0, len(s)+len(other))
	for _, p := range s {
		out = out.Add(p)
	}
	for _, p := range other {
		out = out.Add(p)
	}
	return out
}

// Contains reports whether the set holds an entry equal to p.
func (s Set) Contains(p Permission) bool {
	for _, existing := range s {
		if existing == p {
			return true
		}
	}
	return false
}

// HasKind reports whether the set holds any entry of the given kind.
func (s Set) HasKind(kind Kind) bool {
	for _, p := range s {
		if p.Kind == kind {
			return true
		}
	}
	return false
}

// Equal reports whether two sets hold the same permissions, order ignored.
func (s Set) Equal(other Set) bool {
	if len(s) != len(other) {
		return false
	}
	for _, p := range s {
		if !other.Contains(p) {
			return false
		}
	}
	return true
}

// sorted returns a copy ordered by descending level, then group IRI. Used by
// the codec so formatted strings are canonical.
func (s Set) sorted() Set {
	out := make(Set, len(s))
	copy(out, s)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Level != out[j].Level {
			return out[i].Level > out[j].Level
		}
		if out[i].AdditionalInfo != out[j].AdditionalInfo {
			return out[i].AdditionalInfo < out[j].AdditionalInfo
		}
		return out[i].Kind < out[j].Kind
	})
	return out
}

// Validate checks every entry has a defined kind, a valid level for
// object-access grants, and a group IRI where one is required.
func (s Set) Validate() error {
	for _, p := range s {
		if !p.Kind.Valid() {
			return fmt.Errorf("unknown permission kind %q", p.Kind)
		}
		if p.Kind == KindObjectAccess {
			if !p.Level.Valid() {
				return fmt.Errorf("invalid object-access level %d", int(p.Level))
			}
			if strings.TrimSpace(p.AdditionalInfo) == "" {
				return fmt.Errorf("object-access permission is missing its group IRI")
			}
		}
	}
	return nil
}
