package permission

import (
	"fmt"
	"strings"
)

// Format serializes a set of object-access permissions into the platform's
// canonical permission string: tokens ordered by descending level, each
// token holding the level abbreviation and a comma-joined list of group
// IRIs, tokens separated by "|". Example:
//
//	CR http://stelae.io/groups#Creator|V http://stelae.io/groups#KnownUser
//
// Non-object-access entries are rejected; permission strings only ever
// describe data visibility.
func Format(s Set) (string, error) {
	byLevel := make(map[Level][]string)
	for _, p := range s.sorted() {
		if p.Kind != KindObjectAccess {
			return "", fmt.Errorf("cannot format non-object-access permission %q", p.Kind)
		}
		if !p.Level.Valid() {
			return "", fmt.Errorf("cannot format invalid level %d", int(p.Level))
		}
		byLevel[p.Level] = append(byLevel[p.Level], p.AdditionalInfo)
	}

	var tokens []string
	for level := ChangeRights; level >= RestrictedView; level-- {
		groups, ok := byLevel[level]
		if !ok {
			continue
		}
		tokens = append(tokens, level.String()+" "+strings.Join(groups, ","))
	}
	if len(tokens) == 0 {
		return "", fmt.Errorf("cannot format an empty permission set")
	}
	return strings.Join(tokens, "|"), nil
}

// Parse decodes a permission string back into a Set. The parser tolerates
// arbitrary token order and surrounding whitespace; when a group appears
// under more than one level the higher level wins, matching the set merge
// rule. Round-tripping through Format yields the canonical form.
func Parse(raw string) (Set, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("empty permission string")
	}

	var s Set
	for _, token := range strings.Split(raw, "|") {
		token = strings.TrimSpace(token)
		if token == "" {
			return nil, fmt.Errorf("empty token in permission string %q", raw)
		}
		abbrev, rest, found := strings.Cut(token, " ")
		if !found {
			return nil, fmt.Errorf("malformed permission token %q", token)
		}
		level, err := ParseLevel(abbrev)
		if err != nil {
			return nil, fmt.Errorf("malformed permission token %q: %w", token, err)
		}
		for _, group := range strings.Split(rest, ",") {
			group = strings.TrimSpace(group)
			if group == "" {
				return nil, fmt.Errorf("missing group IRI in permission token %q", token)
			}
			s = s.Add(ObjectAccess(level, group))
		}
	}
	return s, nil
}
