// Package lexicon holds the per-domain keyword tables used to route queries.
package lexicon

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cloo-solutions/nutrirag/internal/domain"
)

// Entry is one domain's terms and the label its prompt block is printed under
type Entry struct {
	Domain domain.Domain
	Label  string
	Terms  []string
}

// Lexicon is an immutable, ordered mapping from domain to lowercase terms.
// Order is significant: it fixes the order of prompt blocks.
type Lexicon struct {
	entries []Entry
	index   map[domain.Domain]int
}

// New validates entries and returns a lexicon. Terms are lowercased and
// deduplicated; a missing label defaults to "<DOMAIN> DATA".
func New(entries []Entry) (*Lexicon, error) {
	if len(entries) == 0 {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeConfig, "lexicon has no domains", domain.ErrConfig)
	}

	lex := &Lexicon{
		entries: make([]Entry, 0, len(entries)),
		index:   make(map[domain.Domain]int, len(entries)),
	}

	for _, e := range entries {
		name := domain.Domain(strings.ToLower(strings.TrimSpace(string(e.Domain))))
		if name == "" {
			return nil, domain.NewDomainError(domain.ErrCodeConfig, "lexicon entry has no domain name")
		}
		if _, dup := lex.index[name]; dup {
			return nil, domain.NewDomainError(domain.ErrCodeConfig, fmt.Sprintf("domain %q declared twice", name))
		}

		terms, err := normalizeTerms(name, e.Terms)
		if err != nil {
			return nil, err
		}

		label := strings.TrimSpace(e.Label)
		if label == "" {
			label = strings.ToUpper(string(name)) + " DATA"
		}

		lex.index[name] = len(lex.entries)
		lex.entries = append(lex.entries, Entry{Domain: name, Label: label, Terms: terms})
	}

	return lex, nil
}

// MustNew is New for static tables; it panics on invalid input.
func MustNew(entries []Entry) *Lexicon {
	lex, err := New(entries)
	if err != nil {
		panic(err)
	}
	return lex
}

func normalizeTerms(name domain.Domain, raw []string) ([]string, error) {
	if len(raw) == 0 {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeConfig,
			fmt.Sprintf("domain %q", name), domain.ErrEmptyTermSet)
	}

	seen := make(map[string]struct{}, len(raw))
	terms := make([]string, 0, len(raw))
	for _, t := range raw {
		term := strings.ToLower(strings.TrimSpace(t))
		if term == "" {
			return nil, domain.NewDomainError(domain.ErrCodeConfig,
				fmt.Sprintf("domain %q has a blank term", name))
		}
		if _, ok := seen[term]; ok {
			continue
		}
		seen[term] = struct{}{}
		terms = append(terms, term)
	}
	return terms, nil
}

// Domains returns the declared domains in order
func (l *Lexicon) Domains() []domain.Domain {
	out := make([]domain.Domain, len(l.entries))
	for i, e := range l.entries {
		out[i] = e.Domain
	}
	return out
}

// Terms returns a copy of the domain's terms, or nil for an unknown domain
func (l *Lexicon) Terms(d domain.Domain) []string {
	i, ok := l.index[d]
	if !ok {
		return nil
	}
	return append([]string(nil), l.entries[i].Terms...)
}

// Label returns the block header label for d
func (l *Lexicon) Label(d domain.Domain) string {
	if i, ok := l.index[d]; ok {
		return l.entries[i].Label
	}
	return strings.ToUpper(string(d)) + " DATA"
}

// DomainForLabel resolves a block header label back to its domain
func (l *Lexicon) DomainForLabel(label string) (domain.Domain, bool) {
	for _, e := range l.entries {
		if e.Label == label {
			return e.Domain, true
		}
	}
	return "", false
}

// Entries returns a deep copy of the lexicon contents
func (l *Lexicon) Entries() []Entry {
	out := make([]Entry, len(l.entries))
	for i, e := range l.entries {
		out[i] = Entry{Domain: e.Domain, Label: e.Label, Terms: append([]string(nil), e.Terms...)}
	}
	return out
}

type fileFormat struct {
	Domains []struct {
		Name  string   `yaml:"name"`
		Label string   `yaml:"label"`
		Terms []string `yaml:"terms"`
	} `yaml:"domains"`
}

// Parse decodes a YAML lexicon document
func Parse(data []byte) (*Lexicon, error) {
	var f fileFormat
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeConfig, "parse lexicon yaml", err)
	}

	entries := make([]Entry, 0, len(f.Domains))
	for _, d := range f.Domains {
		entries = append(entries, Entry{Domain: domain.Domain(d.Name), Label: d.Label, Terms: d.Terms})
	}
	return New(entries)
}

// LoadFile reads a YAML lexicon from path
func LoadFile(path string) (*Lexicon, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeConfig, "read lexicon file", err)
	}
	return Parse(data)
}

// Load returns the lexicon at path, or Default when path is empty
func Load(path string) (*Lexicon, error) {
	if path == "" {
		return Default(), nil
	}
	return LoadFile(path)
}
