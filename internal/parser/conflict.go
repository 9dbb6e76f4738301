package parser

import (
	"participants-bot/internal/refdata"
)

// Assignment is the field an ambiguous token is given to.
type Assignment int

const (
	AssignGender Assignment = iota
	AssignSize
)

func (a Assignment) String() string {
	if a == AssignSize {
		return "size"
	}
	return "gender"
}

var (
	sizeContext   = set("SIZE", "SZ", "РАЗМЕР", "РАЗМЕРА", "РАЗМЕРЫ", "РАЗМ", "Р-Р")
	genderContext = set("GENDER", "SEX", "ПОЛ", "ПОЛА")
)

const contextRadius = 2

// Resolver decides between gender and size for tokens valid as both ("M").
type Resolver struct {
	norm *Normalizer
}

// NewResolver returns a resolver backed by n.
func NewResolver(n *Normalizer) *Resolver {
	return &Resolver{norm: n}
}

// ResolveAmbiguousToken applies, first match wins:
//  1. a size keyword in the surrounding window -> size
//  2. a gender keyword in the window -> gender
//  3. gender already found, size not -> size
//  4. size already found, gender not -> gender
//  5. an unambiguous gender token in the window claims gender -> size
//  6. otherwise -> gender
//
// Rule 6 is an arbitrary tie-break kept for reproducible results.
func (r *Resolver) ResolveAmbiguousToken(token string, surrounding []string, genderFound, sizeFound bool) Assignment {
	for _, s := range surrounding {
		if sizeContext[key(s)] {
			return AssignSize
		}
	}
	for _, s := range surrounding {
		if genderContext[key(s)] {
			return AssignGender
		}
	}
	if genderFound && !sizeFound {
		return AssignSize
	}
	if sizeFound && !genderFound {
		return AssignGender
	}
	for _, s := range surrounding {
		if key(s) == key(token) || r.norm.Ambiguous(s) {
			continue
		}
		if _, ok := r.norm.Normalize(refdata.KindGender, s); ok {
			return AssignSize
		}
	}
	return AssignGender
}

func set(items ...string) map[string]bool {
	m := make(map[string]bool, len(items))
	for _, it := range items {
		m[it] = true
	}
	return m
}
