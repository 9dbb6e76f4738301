package parser

import (
	"participants-bot/internal/refdata"
)

// Normalizer maps raw tokens to canonical values through the reverse
// synonym index built from the reference tables. Matching is exact after
// upper-casing and trimming.
type Normalizer struct {
	index map[refdata.Kind]map[string]string
}

// NewNormalizer builds the synonym -> canonical index for every kind.
func NewNormalizer(ref *refdata.Data) *Normalizer {
	n := &Normalizer{index: make(map[refdata.Kind]map[string]string, len(refdata.Kinds))}
	for _, k := range refdata.Kinds {
		idx := map[string]string{}
		for canonical, synonyms := range ref.Table(k) {
			idx[key(canonical)] = canonical
			for _, s := range synonyms {
				idx[key(s)] = canonical
			}
		}
		n.index[k] = idx
	}
	return n
}

// Normalize returns the canonical value of raw for kind. Unknown tokens
// yield ok=false.
func (n *Normalizer) Normalize(kind refdata.Kind, raw string) (string, bool) {
	v, ok := n.index[kind][key(raw)]
	return v, ok
}

// Kinds returns every kind raw normalizes under.
func (n *Normalizer) Kinds(raw string) []refdata.Kind {
	k := key(raw)
	var out []refdata.Kind
	for _, kind := range refdata.Kinds {
		if _, ok := n.index[kind][k]; ok {
			out = append(out, kind)
		}
	}
	return out
}

// Ambiguous reports whether raw is valid both as a gender and as a size.
func (n *Normalizer) Ambiguous(raw string) bool {
	_, g := n.Normalize(refdata.KindGender, raw)
	_, s := n.Normalize(refdata.KindSize, raw)
	return g && s
}
