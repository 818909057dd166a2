package resolver

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dwizi/intent-arbiter/internal/clarify"
	"github.com/dwizi/intent-arbiter/internal/intent"
)

var ErrUnknownKind = errors.New("unknown catalog kind")

//go:embed default_catalog.yaml
var defaultCatalog []byte

type Kind string

const (
	KindDashboard Kind = "dashboard"
	KindWorkspace Kind = "workspace"
	KindNote      Kind = "note"
	KindEntry     Kind = "entry"
	KindPanel     Kind = "panel"
	KindWidget    Kind = "widget"
)

// Kinds is the lookup order used when a fragment names no kind.
var Kinds = []Kind{KindPanel, KindWidget, KindNote, KindEntry, KindWorkspace, KindDashboard}

type Status string

const (
	StatusFound    Status = "found"
	StatusNotFound Status = "not_found"
	StatusMultiple Status = "multiple"
)

type Item struct {
	ID          string   `yaml:"id" json:"id"`
	Kind        Kind     `yaml:"-" json:"kind"`
	Name        string   `yaml:"name" json:"name"`
	Aliases     []string `yaml:"aliases" json:"aliases,omitempty"`
	Parent      string   `yaml:"parent" json:"parent,omitempty"`
	Description string   `yaml:"description" json:"description,omitempty"`
	Items       []string `yaml:"items" json:"items,omitempty"`
}

type Result struct {
	Status  Status
	Matches []Item
}

// Catalog is the read-only set of navigable targets.
type Catalog struct {
	Home  string
	items map[Kind][]Item
}

type catalogFile struct {
	Home       string `yaml:"home"`
	Dashboards []Item `yaml:"dashboards"`
	Workspaces []Item `yaml:"workspaces"`
	Notes      []Item `yaml:"notes"`
	Entries    []Item `yaml:"entries"`
	Panels     []Item `yaml:"panels"`
	Widgets    []Item `yaml:"widgets"`
}

// Load reads a YAML catalog. An empty path loads the built-in catalog.
func Load(path string) (*Catalog, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return Parse(defaultCatalog)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	catalog := &Catalog{Home: strings.TrimSpace(file.Home), items: map[Kind][]Item{}}
	groups := map[Kind][]Item{
		KindDashboard: file.Dashboards,
		KindWorkspace: file.Workspaces,
		KindNote:      file.Notes,
		KindEntry:     file.Entries,
		KindPanel:     file.Panels,
		KindWidget:    file.Widgets,
	}
	seen := map[string]Kind{}
	for _, kind := range Kinds {
		for _, item := range groups[kind] {
			item.ID = strings.TrimSpace(item.ID)
			item.Name = strings.TrimSpace(item.Name)
			if item.ID == "" || item.Name == "" {
				return nil, fmt.Errorf("catalog %s entry needs id and name", kind)
			}
			if other, dup := seen[item.ID]; dup {
				return nil, fmt.Errorf("catalog id %q used by %s and %s", item.ID, other, kind)
			}
			seen[item.ID] = kind
			item.Kind = kind
			catalog.items[kind] = append(catalog.items[kind], item)
		}
	}
	if catalog.Home != "" {
		if _, ok := catalog.Lookup(catalog.Home); !ok {
			return nil, fmt.Errorf("catalog home %q is not a known id", catalog.Home)
		}
	}
	return catalog, nil
}

func ParseKind(raw string) (Kind, error) {
	kind := Kind(strings.ToLower(strings.TrimSpace(raw)))
	for _, known := range Kinds {
		if kind == known {
			return kind, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, raw)
}

func (c *Catalog) Items(kind Kind) []Item {
	return append([]Item(nil), c.items[kind]...)
}

func (c *Catalog) Lookup(id string) (Item, bool) {
	for _, kind := range Kinds {
		for _, item := range c.items[kind] {
			if item.ID == id {
				return item, true
			}
		}
	}
	return Item{}, false
}

// Children lists items whose parent is id, in catalog order.
func (c *Catalog) Children(id string) []Item {
	var children []Item
	for _, kind := range Kinds {
		for _, item := range c.items[kind] {
			if item.Parent == id {
				children = append(children, item)
			}
		}
	}
	return children
}

// Resolve finds items of one kind named by fragment. Exact name or alias hits
// win over partial token matches.
func (c *Catalog) Resolve(kind Kind, fragment string) (Result, error) {
	items, ok := c.items[kind]
	if !ok {
		if _, err := ParseKind(string(kind)); err != nil {
			return Result{}, err
		}
	}
	return match(items, fragment), nil
}

// ResolveAny searches every kind. A trailing kind word ("research
// workspace") narrows the search when it still matches something.
func (c *Catalog) ResolveAny(fragment string) Result {
	tokens := intent.Tokens(fragment)
	if len(tokens) > 1 {
		if kind, err := ParseKind(tokens[len(tokens)-1]); err == nil {
			narrowed := match(c.items[kind], strings.Join(tokens[:len(tokens)-1], " "))
			if narrowed.Status != StatusNotFound {
				return narrowed
			}
		}
	}
	var all []Item
	for _, kind := range Kinds {
		all = append(all, c.items[kind]...)
	}
	return match(all, fragment)
}

func match(items []Item, fragment string) Result {
	normalized := intent.Normalize(fragment)
	if normalized == "" {
		return Result{Status: StatusNotFound}
	}
	var exact []Item
	for _, item := range items {
		for _, name := range item.names() {
			if intent.Normalize(name) == normalized {
				exact = append(exact, item)
				break
			}
		}
	}
	if len(exact) > 0 {
		return result(exact)
	}

	needles := intent.ContentTokens(normalized)
	if len(needles) == 0 {
		return Result{Status: StatusNotFound}
	}
	var partial []Item
	for _, item := range items {
		for _, name := range item.names() {
			if containsAll(intent.Tokens(name), needles) {
				partial = append(partial, item)
				break
			}
		}
	}
	return result(partial)
}

func result(matches []Item) Result {
	switch len(matches) {
	case 0:
		return Result{Status: StatusNotFound}
	case 1:
		return Result{Status: StatusFound, Matches: matches}
	default:
		return Result{Status: StatusMultiple, Matches: matches}
	}
}

func (i Item) names() []string {
	return append([]string{i.Name}, i.Aliases...)
}

func containsAll(haystack, needles []string) bool {
	set := make(map[string]struct{}, len(haystack))
	for _, token := range haystack {
		set[token] = struct{}{}
	}
	for _, needle := range needles {
		if _, ok := set[needle]; !ok {
			return false
		}
	}
	return true
}

// Candidates turns matches into clarification options with ids opt-0..n.
func Candidates(items []Item) []clarify.Option {
	options := make([]clarify.Option, 0, len(items))
	for index, item := range items {
		options = append(options, OptionFor(item, fmt.Sprintf("opt-%d", index)))
	}
	return options
}

func OptionFor(item Item, id string) clarify.Option {
	option := clarify.Option{ID: id, Label: item.Name, TargetID: item.ID}
	switch item.Kind {
	case KindDashboard:
		option.Type = clarify.OptionDashboard
	case KindWorkspace:
		option.Type = clarify.OptionWorkspace
	case KindNote:
		option.Type = clarify.OptionNote
	case KindEntry:
		option.Type = clarify.OptionEntry
	case KindPanel:
		option.Type = clarify.OptionPanel
	case KindWidget:
		option.Type = clarify.OptionWidgetItem
		option.WidgetID = item.ID
	}
	return option
}
