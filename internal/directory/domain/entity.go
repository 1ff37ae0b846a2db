package domain

import (
	"fmt"
	"sort"
	"strings"
)

// Entity names one of the synchronised record types.
type Entity string

const (
	EntityUsers  Entity = "users"
	EntityGroups Entity = "groups"
	EntityTokens Entity = "tokens"
	EntityPhones Entity = "phones"
)

// AllEntities lists every entity in dependency order (groups before users).
var AllEntities = []Entity{EntityGroups, EntityUsers, EntityTokens, EntityPhones}

// EntitySet is the set of entities a sync run touches.
type EntitySet map[Entity]struct{}

func NewEntitySet(entities ...Entity) EntitySet {
	set := make(EntitySet, len(entities))
	for _, e := range entities {
		set[e] = struct{}{}
	}
	return set
}

// ParseEntitySet parses a comma separated list such as "users,tokens".
func ParseEntitySet(s string) (EntitySet, error) {
	set := EntitySet{}
	for _, part := range strings.Split(s, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part == "" {
			continue
		}
		if part == "all" {
			return NewEntitySet(AllEntities...), nil
		}
		e := Entity(part)
		switch e {
		case EntityUsers, EntityGroups, EntityTokens, EntityPhones:
			set[e] = struct{}{}
		default:
			return nil, fmt.Errorf("unknown entity %q", part)
		}
	}
	return set, nil
}

func (s EntitySet) Has(e Entity) bool {
	_, ok := s[e]
	return ok
}

func (s EntitySet) String() string {
	names := make([]string, 0, len(s))
	for e := range s {
		names = append(names, string(e))
	}
	sort.Strings(names)
	return strings.Join(names, ",")
}
