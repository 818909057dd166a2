package cli

import (
	"encoding/json"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dwizi/intent-arbiter/internal/intent"
)

type classifyReport struct {
	Input      string           `json:"input"`
	Normalized string           `json:"normalized"`
	Selection  *selectionReport `json:"selection,omitempty"`
	Rejection  *int             `json:"rejection,omitempty"`
	Command    *commandReport   `json:"command,omitempty"`
	Scope      *cueReport       `json:"scope_cue,omitempty"`
	Question   bool             `json:"question"`
	Exit       bool             `json:"exit"`
}

type selectionReport struct {
	Strict   int `json:"strict"`
	Embedded int `json:"embedded"`
}

type cueReport struct {
	Scope  intent.Scope `json:"scope"`
	Phrase string       `json:"phrase"`
	Widget string       `json:"widget,omitempty"`
}

type commandReport struct {
	Verb   string `json:"verb"`
	Target string `json:"target"`
}

func newClassifyCommand() *cobra.Command {
	var options []string
	cmd := &cobra.Command{
		Use:   "classify <input>",
		Short: "Print how the deterministic classifiers read an input",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			report := classify(strings.Join(args, " "), options)
			encoder := json.NewEncoder(cmd.OutOrStdout())
			encoder.SetIndent("", "  ")
			return encoder.Encode(report)
		},
	}
	cmd.Flags().StringSliceVar(&options, "options", nil, "labels of the options on screen, comma separated")
	return cmd
}

func classify(input string, labels []string) classifyReport {
	report := classifyReport{
		Input:      input,
		Normalized: intent.Normalize(input),
		Question:   intent.HasQuestionIntent(input),
		Exit:       intent.IsExitPhrase(input),
	}
	if len(labels) > 0 {
		strict := intent.IsSelectionOnly(input, len(labels), labels, intent.ModeStrict)
		embedded := intent.IsSelectionOnly(input, len(labels), labels, intent.ModeEmbedded)
		if strict.IsSelection || embedded.IsSelection {
			report.Selection = &selectionReport{Strict: strict.Index, Embedded: embedded.Index}
		}
		if index, ok := intent.ParseRejection(input, labels); ok {
			report.Rejection = &index
		}
	}
	if verb, target, ok := intent.CommandTarget(input); ok {
		report.Command = &commandReport{Verb: verb, Target: target}
	}
	if cue := intent.ResolveScopeCue(input, labels...); cue.Scope != intent.ScopeNone {
		report.Scope = &cueReport{Scope: cue.Scope, Phrase: cue.Phrase, Widget: cue.WidgetLabel}
	}
	return report
}
