package llm

import (
	"fmt"
	"sort"
	"strings"
)

const clarifySystemPrompt = `You resolve which on-screen option a user meant.
Reply with a single JSON object and nothing else:
{"contract_version": "<version>", "decision": "select" | "ask_clarify" | "request_context",
 "choice_id": "<option id when decision is select>", "confidence": <0..1>,
 "reason": "<short reason>", "needed_context": ["<kind>", ...]}
Only choose ids from the option list. Ask to clarify when the user is ambiguous.
Request context only when one of these evidence kinds would settle it: %s.`

// SystemPrompt returns the instruction block shared by all providers.
func SystemPrompt() string {
	kinds := make([]string, 0, len(AllowedNeededContext))
	for kind := range AllowedNeededContext {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	return fmt.Sprintf(clarifySystemPrompt, strings.Join(kinds, ", "))
}

// UserPrompt renders the frozen candidates and the context block.
func UserPrompt(req ClarifyRequest) string {
	var builder strings.Builder
	fmt.Fprintf(&builder, "contract_version: %s\n", req.ContractVersion)
	if scope := strings.TrimSpace(req.Scope); scope != "" {
		fmt.Fprintf(&builder, "scope: %s\n", scope)
	}
	fmt.Fprintf(&builder, "user_input: %s\n", strings.TrimSpace(req.Input))
	builder.WriteString("options:\n")
	for _, option := range req.Options {
		fmt.Fprintf(&builder, "- id=%s label=%q type=%s\n", option.ID, option.Label, option.Type)
	}
	if context := strings.TrimSpace(req.Context); context != "" {
		builder.WriteString("\ncontext:\n")
		builder.WriteString(context)
		builder.WriteString("\n")
	}
	return builder.String()
}
