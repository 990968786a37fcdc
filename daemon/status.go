package daemon

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/monobilisim/memguard/common"
	"github.com/monobilisim/memguard/enforcer"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

// RenderStatus formats verdicts as a summary box followed by a table of every
// matched process.
func RenderStatus(rules []enforcer.Rule, verdicts []enforcer.Verdict) string {
	var summary []string
	for _, rule := range rules {
		var matched, over int
		for _, v := range verdicts {
			if v.Rule != rule || v.Err != nil {
				continue
			}
			matched++
			if v.Violated {
				over++
			}
		}

		label := rule.Name
		if label == "" {
			label = "(all processes)"
		}
		summary = append(summary, common.StatusListItem(
			label,
			fmt.Sprintf("%d/%d over", over, matched),
			strconv.FormatInt(rule.MaxSizeInMB, 10)+" MB",
			fmt.Sprintf("%d matched", matched),
			over == 0,
		))
	}

	if len(rules) == 0 {
		summary = append(summary, common.SectionTitle("No rules configured under "+RulesKey))
	}

	output := &strings.Builder{}
	if len(verdicts) > 0 {
		table := tablewriter.NewWriter(output)
		table.Header("PID", "Process", "Rule", "Resident", "Private", "Total", "Limit", "Verdict")
		for _, v := range verdicts {
			table.Append(statusRow(v))
		}
		table.Render()
	}

	return common.DisplayBox("memguard status", strings.Join(summary, "\n")) + "\n" + output.String()
}

func statusRow(v enforcer.Verdict) []string {
	verdict := "ok"
	switch {
	case v.Err != nil:
		verdict = "skipped: " + v.Err.Error()
	case v.Violated:
		verdict = "OVER LIMIT"
	}

	return []string{
		strconv.FormatInt(int64(v.Process.Pid), 10),
		v.Process.Name,
		v.Rule.Name,
		common.ConvertBytes(v.Process.ResidentBytes),
		common.ConvertBytes(v.Process.PrivateBytes),
		common.ConvertBytes(v.Process.TotalBytes()),
		common.ConvertBytes(v.Rule.LimitBytes()),
		verdict,
	}
}

// PrintStatus evaluates the configured rules without killing anything.
func PrintStatus(ctx context.Context, w io.Writer, cfg Config) error {
	rules := cfg.Rules()

	verdicts, err := enforcer.New(cfg.Deps).Evaluate(ctx, rules)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(w, RenderStatus(rules, verdicts))
	return err
}

func Status(cmd *cobra.Command, args []string) {
	cfg, err := NewConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}

	if err := PrintStatus(cmd.Context(), os.Stdout, cfg); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}
