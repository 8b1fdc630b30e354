// Package patterns holds the static component taxonomy used to classify and
// validate graph components.
//
// The taxonomy is a closed table of three categories (LLM clients, AI models,
// company resources). Each category carries generic match rules plus a list
// of named implementations with their own rule. The table is loaded once from
// an embedded YAML file and never mutated afterwards; every lookup is a pure
// function over it.
package patterns

import (
	_ "embed"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed patterns.yaml
var defaultTable []byte

// Kind identifies a category and doubles as its key in a network update.
type Kind string

const (
	KindLLMClients       Kind = "llm_clients"
	KindAIModels         Kind = "ai_models"
	KindCompanyResources Kind = "company_resources"
)

// Kinds lists every category kind in table order.
var Kinds = []Kind{KindLLMClients, KindAIModels, KindCompanyResources}

// Default sizes and heights for table entries that do not set their own.
const (
	DefaultCategorySize         = 24
	DefaultCategoryHeight       = 1
	DefaultImplementationSize   = 16
	DefaultImplementationHeight = 2
)

// Implementation is a specific product or tool inside a category.
type Implementation struct {
	ID     string
	Rule   *regexp.Regexp
	Size   int
	Height int
}

// Category is one branch of the taxonomy.
type Category struct {
	ID              string
	Kind            Kind
	Rules           []*regexp.Regexp
	Size            int
	Height          int
	Implementations []Implementation
	Metadata        map[string]string
}

// Matches reports whether any of the category's generic rules hit text.
func (c Category) Matches(text string) bool {
	for _, re := range c.Rules {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

// Library is an immutable, loaded taxonomy.
type Library struct {
	categories []Category
	owner      map[string]Kind // category and implementation ids -> kind
}

type tableFile struct {
	Categories []struct {
		ID       string            `yaml:"id"`
		Kind     string            `yaml:"kind"`
		Size     int               `yaml:"size"`
		Height   int               `yaml:"height"`
		Rules    []string          `yaml:"rules"`
		Metadata map[string]string `yaml:"metadata"`

		Implementations []struct {
			ID     string `yaml:"id"`
			Rule   string `yaml:"rule"`
			Size   int    `yaml:"size"`
			Height int    `yaml:"height"`
		} `yaml:"implementations"`
	} `yaml:"categories"`
}

var (
	defaultOnce sync.Once
	defaultLib  *Library
)

// Default returns the library built from the embedded table.
func Default() *Library {
	defaultOnce.Do(func() {
		lib, err := Load(defaultTable)
		if err != nil {
			panic(fmt.Sprintf("patterns: embedded table: %v", err))
		}
		defaultLib = lib
	})
	return defaultLib
}

// Load parses a YAML taxonomy. Every category kind must be one of Kinds and
// ids must be unique across the whole table.
func Load(data []byte) (*Library, error) {
	var tf tableFile
	if err := yaml.Unmarshal(data, &tf); err != nil {
		return nil, fmt.Errorf("parsing taxonomy: %w", err)
	}
	if len(tf.Categories) == 0 {
		return nil, fmt.Errorf("taxonomy has no categories")
	}

	lib := &Library{owner: make(map[string]Kind)}
	for _, rc := range tf.Categories {
		kind := Kind(rc.Kind)
		if !validKind(kind) {
			return nil, fmt.Errorf("category %q: unknown kind %q", rc.ID, rc.Kind)
		}
		if err := lib.claim(rc.ID, kind); err != nil {
			return nil, err
		}

		cat := Category{
			ID:       rc.ID,
			Kind:     kind,
			Size:     orDefault(rc.Size, DefaultCategorySize),
			Height:   orDefault(rc.Height, DefaultCategoryHeight),
			Metadata: rc.Metadata,
		}
		for _, raw := range rc.Rules {
			re, err := compileRule(raw)
			if err != nil {
				return nil, fmt.Errorf("category %q: %w", rc.ID, err)
			}
			cat.Rules = append(cat.Rules, re)
		}
		for _, ri := range rc.Implementations {
			if err := lib.claim(ri.ID, kind); err != nil {
				return nil, err
			}
			re, err := compileRule(ri.Rule)
			if err != nil {
				return nil, fmt.Errorf("implementation %q: %w", ri.ID, err)
			}
			cat.Implementations = append(cat.Implementations, Implementation{
				ID:     ri.ID,
				Rule:   re,
				Size:   orDefault(ri.Size, DefaultImplementationSize),
				Height: orDefault(ri.Height, DefaultImplementationHeight),
			})
		}
		lib.categories = append(lib.categories, cat)
	}
	return lib, nil
}

func (l *Library) claim(id string, kind Kind) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("empty id in %s", kind)
	}
	if prev, ok := l.owner[id]; ok {
		return fmt.Errorf("duplicate id %q (in %s and %s)", id, prev, kind)
	}
	l.owner[id] = kind
	return nil
}

// Categories returns the categories in table order. The slice is a copy;
// the regexps inside are shared and safe for concurrent use.
func (l *Library) Categories() []Category {
	out := make([]Category, len(l.categories))
	copy(out, l.categories)
	return out
}

// Category returns the category of the given kind.
func (l *Library) Category(kind Kind) (Category, bool) {
	for _, c := range l.categories {
		if c.Kind == kind {
			return c, true
		}
	}
	return Category{}, false
}

// IsKnown reports whether id names a category or implementation anywhere in
// the table. The comparison is case-sensitive.
func (l *Library) IsKnown(id string) bool {
	_, ok := l.owner[id]
	return ok
}

// KindOf returns the category kind that owns id.
func (l *Library) KindOf(id string) (Kind, bool) {
	k, ok := l.owner[id]
	return k, ok
}

// Hit is the raw scan result for one category.
type Hit struct {
	Category        Category
	CategoryMatched bool
	Implementations []Implementation
}

// Scan runs every rule in the table against text and returns one Hit per
// category that matched at any level, in table order.
func (l *Library) Scan(text string) []Hit {
	var hits []Hit
	for _, cat := range l.categories {
		h := Hit{Category: cat, CategoryMatched: cat.Matches(text)}
		for _, impl := range cat.Implementations {
			if impl.Rule.MatchString(text) {
				h.Implementations = append(h.Implementations, impl)
			}
		}
		if h.CategoryMatched || len(h.Implementations) > 0 {
			hits = append(hits, h)
		}
	}
	return hits
}

func compileRule(raw string) (*regexp.Regexp, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, fmt.Errorf("empty match rule")
	}
	re, err := regexp.Compile("(?i)" + raw)
	if err != nil {
		return nil, fmt.Errorf("compiling rule %q: %w", raw, err)
	}
	return re, nil
}

func validKind(k Kind) bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

func orDefault(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}

// CategoryInfo is the serializable summary of a category.
type CategoryInfo struct {
	ID              string            `json:"id"`
	Kind            Kind              `json:"kind"`
	Size            int               `json:"size"`
	Height          int               `json:"height"`
	Metadata        map[string]string `json:"metadata,omitempty"`
	Implementations []string          `json:"implementations"`
}

// Describe summarizes the library in table order.
func (l *Library) Describe() []CategoryInfo {
	out := make([]CategoryInfo, 0, len(l.categories))
	for _, c := range l.categories {
		info := CategoryInfo{
			ID:              c.ID,
			Kind:            c.Kind,
			Size:            c.Size,
			Height:          c.Height,
			Metadata:        c.Metadata,
			Implementations: make([]string, 0, len(c.Implementations)),
		}
		for _, impl := range c.Implementations {
			info.Implementations = append(info.Implementations, impl.ID)
		}
		out = append(out, info)
	}
	return out
}
