package resolver

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/dwizi/intent-arbiter/internal/clarify"
)

func loadDefault(t *testing.T) *Catalog {
	t.Helper()
	catalog, err := Load("")
	if err != nil {
		t.Fatalf("load default catalog: %v", err)
	}
	return catalog
}

func ids(items []Item) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, item.ID)
	}
	return out
}

func TestResolve(t *testing.T) {
	catalog := loadDefault(t)
	tests := []struct {
		kind     Kind
		fragment string
		status   Status
		ids      []string
	}{
		{kind: KindPanel, fragment: "links panel", status: StatusMultiple, ids: []string{"panel-links-a", "panel-links-b", "panel-links-d"}},
		{kind: KindPanel, fragment: "Links Panel B", status: StatusFound, ids: []string{"panel-links-b"}},
		{kind: KindWorkspace, fragment: "recent items", status: StatusFound, ids: []string{"ws-recent"}},
		{kind: KindNote, fragment: "meeting", status: StatusFound, ids: []string{"note-meeting"}},
		{kind: KindNote, fragment: "zebra", status: StatusNotFound},
		{kind: KindEntry, fragment: "", status: StatusNotFound},
	}
	for _, tc := range tests {
		got, err := catalog.Resolve(tc.kind, tc.fragment)
		if err != nil {
			t.Fatalf("%s %q: %v", tc.kind, tc.fragment, err)
		}
		if got.Status != tc.status {
			t.Fatalf("%s %q: expected %s, got %s", tc.kind, tc.fragment, tc.status, got.Status)
		}
		if tc.ids != nil {
			if diff := cmp.Diff(tc.ids, ids(got.Matches)); diff != "" {
				t.Fatalf("%s %q: unexpected matches (-want +got):\n%s", tc.kind, tc.fragment, diff)
			}
		}
	}

	if _, err := catalog.Resolve(Kind("planet"), "mars"); !errors.Is(err, ErrUnknownKind) {
		t.Fatalf("expected unknown kind error, got %v", err)
	}
}

func TestResolveAny(t *testing.T) {
	catalog := loadDefault(t)

	narrowed := catalog.ResolveAny("research workspace")
	if narrowed.Status != StatusFound || narrowed.Matches[0].ID != "ws-research" {
		t.Fatalf("expected research workspace, got %+v", narrowed)
	}
	exact := catalog.ResolveAny("links")
	if exact.Status != StatusFound || exact.Matches[0].Kind != KindWidget {
		t.Fatalf("expected exact widget match, got %+v", exact)
	}
	entry := catalog.ResolveAny("sample2")
	if entry.Status != StatusFound || entry.Matches[0].ID != "entry-sample2" {
		t.Fatalf("expected sample2 entry, got %+v", entry)
	}
}

func TestCandidates(t *testing.T) {
	catalog := loadDefault(t)
	result, err := catalog.Resolve(KindPanel, "links panel")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	want := []clarify.Option{
		{ID: "opt-0", Label: "Links Panel A", Type: clarify.OptionPanel, TargetID: "panel-links-a"},
		{ID: "opt-1", Label: "Links Panel B", Type: clarify.OptionPanel, TargetID: "panel-links-b"},
		{ID: "opt-2", Label: "Links Panel D", Type: clarify.OptionPanel, TargetID: "panel-links-d"},
	}
	if diff := cmp.Diff(want, Candidates(result.Matches)); diff != "" {
		t.Fatalf("unexpected candidates (-want +got):\n%s", diff)
	}

	widget, _ := catalog.Lookup("widget-todo")
	option := OptionFor(widget, "opt-0")
	if option.Type != clarify.OptionWidgetItem || option.WidgetID != "widget-todo" {
		t.Fatalf("unexpected widget option %+v", option)
	}
}

func TestChildren(t *testing.T) {
	catalog := loadDefault(t)
	if diff := cmp.Diff([]string{"widget-todo"}, ids(catalog.Children("panel-quick"))); diff != "" {
		t.Fatalf("unexpected children (-want +got):\n%s", diff)
	}
}

func TestParseRejectsBadCatalogs(t *testing.T) {
	tests := map[string]string{
		"duplicate id": "workspaces:\n  - {id: a, name: One}\nnotes:\n  - {id: a, name: Two}\n",
		"missing name": "panels:\n  - {id: p}\n",
		"unknown home": "home: nowhere\nworkspaces:\n  - {id: a, name: One}\n",
		"bad yaml":     "workspaces: [",
	}
	for name, raw := range tests {
		if _, err := Parse([]byte(raw)); err == nil {
			t.Fatalf("%s: expected parse error", name)
		}
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	if err := os.WriteFile(path, []byte("home: w1\nworkspaces:\n  - {id: w1, name: Garden}\n"), 0o644); err != nil {
		t.Fatalf("write catalog: %v", err)
	}
	catalog, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if catalog.Home != "w1" || len(catalog.Items(KindWorkspace)) != 1 {
		t.Fatalf("unexpected catalog %+v", catalog)
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
