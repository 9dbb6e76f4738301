// Package refdata holds the read-only reference tables used by extraction
// and search: synonym tables, known churches and known cities. Data is
// loaded once at startup and never mutated afterwards.
package refdata

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Kind selects one of the synonym tables.
type Kind string

const (
	KindGender     Kind = "gender"
	KindRole       Kind = "role"
	KindSize       Kind = "size"
	KindDepartment Kind = "department"
)

// Kinds lists the synonym tables in lookup order.
var Kinds = []Kind{KindGender, KindRole, KindSize, KindDepartment}

type file struct {
	Genders     map[string][]string `yaml:"genders"`
	Roles       map[string][]string `yaml:"roles"`
	Sizes       map[string][]string `yaml:"sizes"`
	Departments map[string][]string `yaml:"departments"`
	Churches    []string            `yaml:"churches"`
	Cities      map[string][]string `yaml:"cities"`
}

// Data is the immutable reference data set.
type Data struct {
	tables   map[Kind]map[string][]string
	churches []string
	cities   map[string][]string
}

// Default returns the built-in reference data.
func Default() *Data {
	d, err := parse(defaultsYAML, nil)
	if err != nil {
		panic(fmt.Sprintf("refdata: built-in defaults: %v", err))
	}
	return d
}

// Load returns the built-in data overridden by the file at path. An empty
// path yields the defaults.
func Load(path string) (*Data, error) {
	base := Default()
	if strings.TrimSpace(path) == "" {
		return base, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read reference data: %w", err)
	}
	d, err := parse(raw, base)
	if err != nil {
		return nil, fmt.Errorf("parse reference data %s: %w", path, err)
	}
	return d, nil
}

func parse(raw []byte, base *Data) (*Data, error) {
	var f file
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, err
	}
	d := &Data{tables: map[Kind]map[string][]string{}}
	if base != nil {
		for k, v := range base.tables {
			d.tables[k] = v
		}
		d.churches = base.churches
		d.cities = base.cities
	}
	set := func(k Kind, m map[string][]string) {
		if len(m) > 0 {
			d.tables[k] = m
		}
	}
	set(KindGender, f.Genders)
	set(KindRole, f.Roles)
	set(KindSize, f.Sizes)
	set(KindDepartment, f.Departments)
	if len(f.Churches) > 0 {
		d.churches = f.Churches
	}
	if len(f.Cities) > 0 {
		d.cities = f.Cities
	}
	for _, k := range Kinds {
		if len(d.tables[k]) == 0 {
			return nil, fmt.Errorf("%s table is empty", k)
		}
	}
	return d, nil
}

// Table returns canonical -> synonyms for kind. The map must not be modified.
func (d *Data) Table(k Kind) map[string][]string {
	return d.tables[k]
}

// Canonicals returns the canonical values of kind, sorted.
func (d *Data) Canonicals(k Kind) []string {
	out := make([]string, 0, len(d.tables[k]))
	for c := range d.tables[k] {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Churches returns the known church names.
func (d *Data) Churches() []string {
	return append([]string(nil), d.churches...)
}

// Cities returns canonical city -> synonyms. The map must not be modified.
func (d *Data) Cities() map[string][]string {
	return d.cities
}
