package main

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"filer/internal/daemon"
	"filer/internal/matcher"
	"filer/internal/taxonomy"
)

type ruleJSON struct {
	ID             int64  `json:"id"`
	Name           string `json:"name"`
	Type           string `json:"type"`
	Pattern        string `json:"pattern"`
	ExcludePattern string `json:"exclude_pattern,omitempty"`
	TargetType     string `json:"target_type"`
	TargetID       string `json:"target_id"`
	Priority       int    `json:"priority"`
	Active         bool   `json:"active"`
	MatchCount     int64  `json:"match_count"`
}

func newRulesCommand(ctx *commandContext) *cobra.Command {
	rulesCmd := &cobra.Command{
		Use:   "rules",
		Short: "Manage matching rules",
	}
	rulesCmd.AddCommand(newRulesListCommand(ctx))
	rulesCmd.AddCommand(newRulesAddCommand(ctx))
	rulesCmd.AddCommand(newRulesRemoveCommand(ctx))
	rulesCmd.AddCommand(newRulesToggleCommand(ctx, "enable", true))
	rulesCmd.AddCommand(newRulesToggleCommand(ctx, "disable", false))
	rulesCmd.AddCommand(newRulesSuggestCommand())
	return rulesCmd
}

func newRulesListCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List rules in evaluation order",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return ctx.withServices(func(svc *daemon.Services) error {
				rules, err := svc.Store.ListRules(cmd.Context())
				if err != nil {
					return err
				}
				if asJSON {
					out := make([]ruleJSON, 0, len(rules))
					for _, r := range rules {
						out = append(out, toRuleJSON(r))
					}
					return writeJSON(cmd, out)
				}
				if len(rules) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No rules defined")
					return nil
				}
				rows := make([][]string, 0, len(rules))
				for _, r := range rules {
					rows = append(rows, []string{
						strconv.FormatInt(r.ID, 10),
						r.Name,
						string(r.Type),
						r.Pattern,
						string(r.TargetType) + " " + r.TargetID,
						strconv.Itoa(r.Priority),
						yesNo(r.Active),
						strconv.FormatInt(r.MatchCount, 10),
					})
				}
				writeRows(cmd, []string{"ID", "Name", "Type", "Pattern", "Target", "Priority", "Active", "Matches"}, rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignRight})
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newRulesAddCommand(ctx *commandContext) *cobra.Command {
	var (
		name       string
		ruleType   string
		pattern    string
		exclude    string
		targetType string
		target     string
		priority   int
		inactive   bool
	)
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a matching rule",
		Example: `  filer rules add --name PDFs --type extension --pattern pdf --target 11.01
  filer rules add --name Invoices --type keyword --pattern "invoice,bill" --target 11.01 --priority 10
  filer rules add --name Receipts --type compound --pattern "ext:pdf,keyword:receipt" --target 11.02`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			typ, err := taxonomy.ParseRuleType(ruleType)
			if err != nil {
				return err
			}
			tt, err := taxonomy.ParseTargetType(targetType)
			if err != nil {
				return err
			}
			rule := taxonomy.Rule{
				Name:           strings.TrimSpace(name),
				Type:           typ,
				Pattern:        pattern,
				ExcludePattern: exclude,
				TargetType:     tt,
				TargetID:       strings.TrimSpace(target),
				Priority:       priority,
				Active:         !inactive,
			}
			if rule.Name == "" {
				rule.Name = fmt.Sprintf("%s %s", typ, pattern)
			}
			return ctx.withServices(func(svc *daemon.Services) error {
				created, err := svc.Store.CreateRule(cmd.Context(), rule)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created rule %d (%s)\n", created.ID, created.Name)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Rule name")
	cmd.Flags().StringVar(&ruleType, "type", "", "Rule type (extension, keyword, path, regex, compound, date)")
	cmd.Flags().StringVar(&pattern, "pattern", "", "Rule pattern")
	cmd.Flags().StringVar(&exclude, "exclude", "", "Exclude pattern (substring, or /regex/)")
	cmd.Flags().StringVar(&targetType, "target-type", "folder", "Target type (folder, category, area)")
	cmd.Flags().StringVar(&target, "target", "", "Target folder number, category number, or area range")
	cmd.Flags().IntVar(&priority, "priority", 0, "Priority; higher wins between equal confidences")
	cmd.Flags().BoolVar(&inactive, "inactive", false, "Create the rule disabled")
	_ = cmd.MarkFlagRequired("type")
	_ = cmd.MarkFlagRequired("pattern")
	_ = cmd.MarkFlagRequired("target")
	return cmd
}

func newRulesRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>",
		Short: "Delete a rule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "rule")
			if err != nil {
				return err
			}
			return ctx.withServices(func(svc *daemon.Services) error {
				if err := svc.Store.DeleteRule(cmd.Context(), id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed rule %d\n", id)
				return nil
			})
		},
	}
}

func newRulesToggleCommand(ctx *commandContext, verb string, active bool) *cobra.Command {
	return &cobra.Command{
		Use:   verb + " <id>",
		Short: strings.ToUpper(verb[:1]) + verb[1:] + " a rule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "rule")
			if err != nil {
				return err
			}
			return ctx.withServices(func(svc *daemon.Services) error {
				if err := svc.Store.SetRuleActive(cmd.Context(), id, active); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Rule %d %sd\n", id, verb)
				return nil
			})
		},
	}
}

func newRulesSuggestCommand() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:         "suggest <dir>",
		Short:       "Propose rules from the files already in a folder",
		Args:        cobra.ExactArgs(1),
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			var files []string
			err := filepath.WalkDir(args[0], func(path string, d fs.DirEntry, err error) error {
				if err != nil {
					return err
				}
				if d.Type().IsRegular() && !strings.HasPrefix(d.Name(), ".") {
					files = append(files, path)
				}
				return nil
			})
			if err != nil {
				return fmt.Errorf("scan %s: %w", args[0], err)
			}
			suggestions := matcher.SuggestRules(files)
			if asJSON {
				type suggestion struct {
					Type        string `json:"type"`
					Pattern     string `json:"pattern"`
					Occurrences int    `json:"occurrences"`
					Confidence  string `json:"confidence"`
					Reason      string `json:"reason"`
				}
				out := make([]suggestion, 0, len(suggestions))
				for _, s := range suggestions {
					out = append(out, suggestion{string(s.Type), s.Pattern, s.Occurrences, s.Confidence.String(), s.Reason})
				}
				return writeJSON(cmd, out)
			}
			if len(suggestions) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "No rule suggestions for %d files\n", len(files))
				return nil
			}
			rows := make([][]string, 0, len(suggestions))
			for _, s := range suggestions {
				rows = append(rows, []string{string(s.Type), s.Pattern, strconv.Itoa(s.Occurrences), s.Confidence.String(), s.Reason})
			}
			writeRows(cmd, []string{"Type", "Pattern", "Files", "Confidence", "Reason"}, rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight})
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func toRuleJSON(r taxonomy.Rule) ruleJSON {
	return ruleJSON{
		ID:             r.ID,
		Name:           r.Name,
		Type:           string(r.Type),
		Pattern:        r.Pattern,
		ExcludePattern: r.ExcludePattern,
		TargetType:     string(r.TargetType),
		TargetID:       r.TargetID,
		Priority:       r.Priority,
		Active:         r.Active,
		MatchCount:     r.MatchCount,
	}
}

func parseID(value, what string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s id %q", what, value)
	}
	return id, nil
}
