package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rulebook-dev/rulebook/internal/storage"
	"github.com/rulebook-dev/rulebook/internal/types"
	"github.com/rulebook-dev/rulebook/internal/ui"
)

var noPager bool

var rulesCmd = &cobra.Command{
	Use:     "rules",
	GroupID: "views",
	Short:   "Browse coding rules",
}

var rulesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List coding rules",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		rules, err := store.ListCodingRules(rootCtx)
		if err != nil {
			FatalErrorRespectJSON(err)
		}
		if jsonOutput {
			outputJSON(rules)
			return
		}
		if len(rules) == 0 {
			fmt.Println(ui.RenderMuted("No coding rules yet. Propose one with 'rb feedback create --target CODING_RULE --type CREATE'."))
			return
		}
		var b strings.Builder
		for _, r := range rules {
			fmt.Fprintf(&b, "%s  %-10s %s  %s\n", ui.RenderBold(r.Code), severityLabel(r.Severity),
				r.Name, ui.RenderMuted(r.ID))
		}
		page(b.String())
	},
}

var rulesShowCmd = &cobra.Command{
	Use:   "show <id-or-code>",
	Short: "Show a coding rule and its examples",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		r, err := lookupRule(args[0])
		if err != nil {
			FatalErrorRespectJSON(err)
		}
		examples, err := store.ListRuleExamples(rootCtx, r.ID)
		if err != nil {
			FatalErrorRespectJSON(err)
		}
		if jsonOutput {
			outputJSON(struct {
				*types.CodingRule
				Examples []*types.RuleExample `json:"examples"`
			}{r, examples})
			return
		}

		var md strings.Builder
		fmt.Fprintf(&md, "# %s %s\n\n", r.Code, r.Name)
		fmt.Fprintf(&md, "**Severity:** %s", r.Severity)
		if r.Category != "" {
			fmt.Fprintf(&md, "  **Category:** %s", r.Category)
		}
		fmt.Fprintf(&md, "\n\n%s\n", r.Description)
		for _, e := range examples {
			fmt.Fprintf(&md, "\n## %s example (%s)\n\n```%s\n%s\n```\n", e.Kind, e.ID, e.Language, e.Snippet)
			if e.Explanation != "" {
				fmt.Fprintf(&md, "\n%s\n", e.Explanation)
			}
		}
		page(ui.RenderMarkdown(md.String()))
	},
}

// lookupRule resolves a rule by ID, then by code.
func lookupRule(ref string) (*types.CodingRule, error) {
	r, err := store.GetCodingRule(rootCtx, ref)
	if errors.Is(err, storage.ErrNotFound) {
		r, err = store.GetCodingRuleByCode(rootCtx, ref)
	}
	if err != nil {
		return nil, fmt.Errorf("coding rule %s: %w", ref, err)
	}
	return r, nil
}

func severityLabel(s types.Severity) string {
	switch s {
	case types.SeverityError:
		return ui.RenderFail(string(s))
	case types.SeverityWarning:
		return ui.RenderWarn(string(s))
	}
	return ui.RenderMuted(string(s))
}

var examplesCmd = &cobra.Command{
	Use:     "examples",
	GroupID: "views",
	Short:   "Browse rule examples",
}

var examplesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the examples attached to a coding rule",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ref, _ := cmd.Flags().GetString("rule")
		r, err := lookupRule(ref)
		if err != nil {
			FatalErrorRespectJSON(err)
		}
		examples, err := store.ListRuleExamples(rootCtx, r.ID)
		if err != nil {
			FatalErrorRespectJSON(err)
		}
		if jsonOutput {
			outputJSON(examples)
			return
		}
		if len(examples) == 0 {
			fmt.Println(ui.RenderMuted("No examples for " + r.Code))
			return
		}
		var b strings.Builder
		for _, e := range examples {
			icon := ui.RenderPassIcon()
			if e.Kind == types.ExampleBad {
				icon = ui.RenderFailIcon()
			}
			fmt.Fprintf(&b, "%s %s  %s  %s\n", icon, ui.RenderBold(e.ID), e.Language,
				ui.RenderMuted(ui.OneLine(e.Snippet, 60)))
		}
		page(b.String())
	},
}

var templatesCmd = &cobra.Command{
	Use:     "templates",
	GroupID: "views",
	Short:   "Browse class templates",
}

var templatesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List class templates",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		tmpls, err := store.ListClassTemplates(rootCtx)
		if err != nil {
			FatalErrorRespectJSON(err)
		}
		if jsonOutput {
			outputJSON(tmpls)
			return
		}
		if len(tmpls) == 0 {
			fmt.Println(ui.RenderMuted("No class templates yet."))
			return
		}
		var b strings.Builder
		for _, t := range tmpls {
			fmt.Fprintf(&b, "%s  %s/%s  %s\n", ui.RenderBold(t.Name), t.Language, t.Layer, ui.RenderMuted(t.ID))
		}
		page(b.String())
	},
}

var templatesShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a class template",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		t, err := store.GetClassTemplate(rootCtx, args[0])
		if err != nil {
			FatalErrorRespectJSON(fmt.Errorf("class template %s: %w", args[0], err))
		}
		if jsonOutput {
			outputJSON(t)
			return
		}
		var md strings.Builder
		fmt.Fprintf(&md, "# %s\n\n**Layer:** %s  **Language:** %s\n\n", t.Name, t.Layer, t.Language)
		if t.Description != "" {
			fmt.Fprintf(&md, "%s\n\n", t.Description)
		}
		fmt.Fprintf(&md, "```%s\n%s\n```\n", t.Language, t.Content)
		page(ui.RenderMarkdown(md.String()))
	},
}

var checklistCmd = &cobra.Command{
	Use:     "checklist",
	GroupID: "views",
	Short:   "Browse review checklists",
}

var checklistListCmd = &cobra.Command{
	Use:   "list",
	Short: "List review checklist items in order",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		name, _ := cmd.Flags().GetString("checklist")
		items, err := store.ListChecklistItems(rootCtx, name)
		if err != nil {
			FatalErrorRespectJSON(err)
		}
		if jsonOutput {
			outputJSON(items)
			return
		}
		if len(items) == 0 {
			fmt.Println(ui.RenderMuted("No checklist items."))
			return
		}
		var b strings.Builder
		current := ""
		for _, it := range items {
			if it.Checklist != current {
				if current != "" {
					b.WriteString("\n")
				}
				current = it.Checklist
				b.WriteString(ui.RenderCategory(current) + "\n")
			}
			fmt.Fprintf(&b, "  %2d. %s  %s\n", it.Position, it.Title, ui.RenderMuted(it.ID))
		}
		page(b.String())
	},
}

func page(content string) {
	if err := ui.ToPager(content, ui.PagerOptions{NoPager: noPager}); err != nil {
		FatalError("%v", err)
	}
}

func init() {
	for _, c := range []*cobra.Command{rulesCmd, templatesCmd, examplesCmd, checklistCmd} {
		c.PersistentFlags().BoolVar(&noPager, "no-pager", false, "Print directly instead of using a pager")
	}
	examplesListCmd.Flags().String("rule", "", "Coding rule ID or code")
	_ = examplesListCmd.MarkFlagRequired("rule")
	checklistListCmd.Flags().String("checklist", "", "Only this checklist")

	rulesCmd.AddCommand(rulesListCmd, rulesShowCmd)
	templatesCmd.AddCommand(templatesListCmd, templatesShowCmd)
	examplesCmd.AddCommand(examplesListCmd)
	checklistCmd.AddCommand(checklistListCmd)
	rootCmd.AddCommand(rulesCmd, templatesCmd, examplesCmd, checklistCmd)
}
