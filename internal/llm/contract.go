package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

const (
	DowngradeContractVersionMismatch = "contract_version_mismatch"
	DowngradeInvalidNeededContext    = "invalid_needed_context"

	MaxNeededContext = 4
)

const (
	ContextRecentMessages   = "recent_messages"
	ContextOptionDetails    = "option_details"
	ContextFocusedWidget    = "focused_widget"
	ContextWidgetContents   = "widget_contents"
	ContextPanelMetadata    = "panel_metadata"
	ContextWorkspaceEntries = "workspace_entries"
	ContextDashboardLayout  = "dashboard_layout"
)

// AllowedNeededContext is the closed set of evidence kinds a model may ask for
// on request_context. Unknown kinds are dropped.
var AllowedNeededContext = map[string]struct{}{
	ContextRecentMessages:   {},
	ContextOptionDetails:    {},
	ContextFocusedWidget:    {},
	ContextWidgetContents:   {},
	ContextPanelMetadata:    {},
	ContextWorkspaceEntries: {},
	ContextDashboardLayout:  {},
}

// WireResponse is the JSON object a provider must return.
type WireResponse struct {
	ContractVersion string          `json:"contract_version"`
	Decision        string          `json:"decision"`
	ChoiceID        string          `json:"choice_id"`
	Confidence      float64         `json:"confidence"`
	Reason          string          `json:"reason"`
	NeededContext   json.RawMessage `json:"needed_context"`
}

// ParseWire extracts the first JSON object from model text, tolerating code
// fences and surrounding prose.
func ParseWire(text string) (WireResponse, error) {
	trimmed := strings.TrimSpace(text)
	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start < 0 || end <= start {
		return WireResponse{}, fmt.Errorf("no json object in model reply")
	}
	var wire WireResponse
	if err := json.Unmarshal([]byte(trimmed[start:end+1]), &wire); err != nil {
		return WireResponse{}, fmt.Errorf("decode model decision: %w", err)
	}
	return wire, nil
}

// Malformed is the decision used when a reply cannot be parsed at all.
func Malformed() ClarifyResponse {
	return ClarifyResponse{Decision: DecisionAskClarify, Reason: "malformed reply"}
}

// ValidateResponse turns a wire decision into a ClarifyResponse. Contract
// violations become ask_clarify with a Downgrade reason instead of errors.
func ValidateResponse(req ClarifyRequest, wire WireResponse) ClarifyResponse {
	response := ClarifyResponse{
		Decision:   Decision(strings.ToLower(strings.TrimSpace(wire.Decision))),
		ChoiceID:   strings.TrimSpace(wire.ChoiceID),
		Confidence: clampConfidence(wire.Confidence),
		Reason:     strings.TrimSpace(wire.Reason),
	}

	version := strings.TrimSpace(wire.ContractVersion)
	if version != "" && req.ContractVersion != "" && version != req.ContractVersion {
		return downgrade(response, DowngradeContractVersionMismatch)
	}

	switch response.Decision {
	case DecisionSelect:
		if !hasOption(req.Options, response.ChoiceID) {
			response.Decision = DecisionAskClarify
			response.Reason = "choice outside candidate list"
			response.ChoiceID = ""
		}
		return response
	case DecisionAskClarify:
		response.ChoiceID = ""
		return response
	case DecisionRequestContext:
		response.ChoiceID = ""
		needed, ok := decodeNeededContext(wire.NeededContext)
		if !ok {
			return downgrade(response, DowngradeInvalidNeededContext)
		}
		response.NeededContext = needed
		return response
	default:
		response.Decision = DecisionAskClarify
		response.ChoiceID = ""
		response.Reason = "unknown decision"
		return response
	}
}

// decodeNeededContext accepts a list of strings, keeps allow-listed kinds and
// rejects malformed or oversized lists.
func decodeNeededContext(raw json.RawMessage) ([]string, bool) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return []string{}, true
	}
	var values []string
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil, false
	}
	if len(values) > MaxNeededContext {
		return nil, false
	}
	seen := make(map[string]struct{}, len(values))
	filtered := make([]string, 0, len(values))
	for _, value := range values {
		key := strings.ToLower(strings.TrimSpace(value))
		if _, ok := AllowedNeededContext[key]; !ok {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		filtered = append(filtered, key)
	}
	return filtered, true
}

func downgrade(response ClarifyResponse, reason string) ClarifyResponse {
	response.Decision = DecisionAskClarify
	response.ChoiceID = ""
	response.NeededContext = nil
	response.Downgrade = reason
	return response
}

func hasOption(options []OptionRef, id string) bool {
	if id == "" {
		return false
	}
	for _, option := range options {
		if option.ID == id {
			return true
		}
	}
	return false
}

func clampConfidence(value float64) float64 {
	switch {
	case value < 0:
		return 0
	case value > 1:
		return 1
	default:
		return value
	}
}
