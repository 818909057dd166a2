package session

import (
	"context"

	"github.com/dwizi/intent-arbiter/internal/clarify"
	"github.com/dwizi/intent-arbiter/internal/intent"
	"github.com/dwizi/intent-arbiter/internal/llm"
	"github.com/dwizi/intent-arbiter/internal/resolver"
	"github.com/dwizi/intent-arbiter/internal/store"
)

// defaultEvidence is gathered when the model asks for more context without
// naming any.
var defaultEvidence = map[intent.Scope][]string{
	intent.ScopeChat:      {llm.ContextRecentMessages, llm.ContextOptionDetails},
	intent.ScopeWidget:    {llm.ContextFocusedWidget, llm.ContextWidgetContents},
	intent.ScopeDashboard: {llm.ContextDashboardLayout},
	intent.ScopeWorkspace: {llm.ContextWorkspaceEntries},
}

func baseMetadata(history []string) map[string]any {
	if len(history) == 0 {
		return nil
	}
	return map[string]any{llm.ContextRecentMessages: history}
}

func (m *Manager) enrich(_ context.Context, state store.SessionState, scope intent.Scope, needed []string) (*clarify.Enrichment, error) {
	if scope == intent.ScopeDashboard && m.dashboard() == nil {
		return nil, clarify.ErrScopeNotAvailable
	}
	kinds := needed
	if len(kinds) == 0 {
		kinds = defaultEvidence[scope]
	}

	metadata := map[string]any{}
	for _, kind := range kinds {
		var value any
		switch kind {
		case llm.ContextRecentMessages:
			history, err := m.transcript.Tail(state.ID, m.cfg.ContextTurns*3)
			if err != nil {
				return nil, err
			}
			if len(history) > 0 {
				value = history
			}
		case llm.ContextOptionDetails:
			value = m.optionDetails(state.Clarification, nil)
		case llm.ContextPanelMetadata:
			value = m.optionDetails(state.Clarification, func(option clarify.Option) bool {
				return option.Type == clarify.OptionPanel
			})
		case llm.ContextFocusedWidget:
			if state.FocusLatch != nil {
				value = map[string]any{
					"id":    clarify.LatchID(state.FocusLatch),
					"kind":  clarify.LatchKind(state.FocusLatch),
					"label": clarify.LatchLabel(state.FocusLatch),
				}
			}
		case llm.ContextWidgetContents:
			if widget, ok := m.focusedWidget(state.FocusLatch); ok && len(widget.Items) > 0 {
				value = map[string]any{"widget": widget.Name, "items": widget.Items}
			}
		case llm.ContextDashboardLayout:
			if dashboard := m.dashboard(); dashboard != nil {
				value = m.layout(*dashboard)
			}
		case llm.ContextWorkspaceEntries:
			value = m.workspaceEntries()
		}
		if value != nil {
			metadata[kind] = value
		}
	}
	if len(metadata) == 0 {
		return nil, nil
	}
	return &clarify.Enrichment{Metadata: metadata}, nil
}

func (m *Manager) optionDetails(clarification *clarify.LastClarification, keep func(clarify.Option) bool) any {
	if clarification == nil {
		return nil
	}
	var details []map[string]any
	for _, option := range clarification.Options {
		if keep != nil && !keep(option) {
			continue
		}
		item, ok := m.catalog.Lookup(option.TargetID)
		if !ok {
			continue
		}
		detail := map[string]any{"id": option.ID, "label": option.Label}
		if item.Description != "" {
			detail["description"] = item.Description
		}
		if parent, ok := m.catalog.Lookup(item.Parent); ok {
			detail["parent"] = parent.Name
		}
		var children []string
		for _, child := range m.catalog.Children(item.ID) {
			children = append(children, child.Name)
		}
		if len(children) > 0 {
			detail["contains"] = children
		}
		details = append(details, detail)
	}
	if len(details) == 0 {
		return nil
	}
	return details
}

func (m *Manager) focusedWidget(latch clarify.FocusLatch) (resolver.Item, bool) {
	switch typed := latch.(type) {
	case nil:
		return resolver.Item{}, false
	case clarify.ResolvedFocusLatch:
		return m.catalog.Lookup(typed.WidgetID)
	case clarify.PendingFocusLatch:
		for _, child := range m.catalog.Children(typed.PendingPanelID) {
			if child.Kind == resolver.KindWidget {
				return child, true
			}
		}
		return resolver.Item{}, false
	default:
		return resolver.Item{}, false
	}
}

func (m *Manager) dashboard() *resolver.Item {
	if m.catalog.Home == "" {
		return nil
	}
	item, ok := m.catalog.Lookup(m.catalog.Home)
	if !ok {
		return nil
	}
	return &item
}

func (m *Manager) layout(dashboard resolver.Item) map[string]any {
	var panels []string
	for _, child := range m.catalog.Children(dashboard.ID) {
		panels = append(panels, child.Name)
	}
	layout := map[string]any{"dashboard": dashboard.Name}
	if len(panels) > 0 {
		layout["panels"] = panels
	}
	if len(dashboard.Items) > 0 {
		layout["pinned"] = dashboard.Items
	}
	return layout
}

func (m *Manager) workspaceEntries() any {
	entries := map[string][]string{}
	for _, workspace := range m.catalog.Items(resolver.KindWorkspace) {
		var names []string
		for _, child := range m.catalog.Children(workspace.ID) {
			names = append(names, child.Name)
		}
		entries[workspace.Name] = names
	}
	if len(entries) == 0 {
		return nil
	}
	return entries
}
