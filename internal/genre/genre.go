// Package genre resolves human category labels to App Store genre IDs.
package genre

import (
	"sort"
	"strings"
)

type entry struct {
	name string
	id   int
}

// builtin lists the known storefront categories. Order matters: the
// substring fallback scans entries first to last.
var builtin = []entry{
	{"books", 6018},
	{"business", 6000},
	{"developer tools", 6026},
	{"education", 6017},
	{"entertainment", 6016},
	{"finance", 6015},
	{"food & drink", 6023},
	{"graphics & design", 6027},
	{"health & fitness", 6013},
	{"lifestyle", 6012},
	{"kids", 36},
	{"magazines & newspapers", 6021},
	{"medical", 6020},
	{"music", 6011},
	{"navigation", 6010},
	{"news", 6009},
	{"photo & video", 6008},
	{"productivity", 6007},
	{"reference", 6006},
	{"safari extensions", 1460},
	{"shopping", 6024},
	{"social networking", 6005},
	{"sports", 6004},
	{"travel", 6003},
	{"utilities", 6002},
	{"weather", 6001},
}

// Resolver maps category labels to genre IDs, preferring deployment
// overrides over the builtin table.
type Resolver struct {
	ids   map[string]int
	order []string
}

// NewResolver builds a Resolver. Override keys are normalized the same
// way lookups are; an override for an existing name replaces its ID.
func NewResolver(overrides map[string]int) *Resolver {
	r := &Resolver{
		ids:   make(map[string]int, len(builtin)+len(overrides)),
		order: make([]string, 0, len(builtin)+len(overrides)),
	}
	overrideKeys := make([]string, 0, len(overrides))
	for name := range overrides {
		overrideKeys = append(overrideKeys, name)
	}
	sort.Strings(overrideKeys)
	for _, name := range overrideKeys {
		key := normalize(name)
		if key == "" {
			continue
		}
		if _, ok := r.ids[key]; !ok {
			r.order = append(r.order, key)
		}
		r.ids[key] = overrides[name]
	}
	for _, e := range builtin {
		if _, ok := r.ids[e.name]; !ok {
			r.ids[e.name] = e.id
			r.order = append(r.order, e.name)
		}
	}
	return r
}

// Resolve returns the genre ID for a category label.
//
// Matching tries, in order: the normalized label, the label with "&"
// rewritten to "and", then a substring match in either direction
// against the known names.
func (r *Resolver) Resolve(category string) (int, bool) {
	key := normalize(category)
	if key == "" {
		return 0, false
	}
	if id, ok := r.ids[key]; ok {
		return id, true
	}
	if id, ok := r.ids[strings.ReplaceAll(key, "&", "and")]; ok {
		return id, true
	}
	for _, name := range r.order {
		if strings.Contains(key, name) || strings.Contains(name, key) {
			return r.ids[name], true
		}
	}
	return 0, false
}

// Names returns the known category names in match order.
func (r *Resolver) Names() []string {
	return append([]string(nil), r.order...)
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
