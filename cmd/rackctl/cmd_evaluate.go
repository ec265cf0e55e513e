package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rack-io/rack/internal/gate"
	"github.com/rack-io/rack/internal/policy"
)

var evaluateFlags struct {
	intent string
	policy string
}

var evaluateCmd = &cobra.Command{
	Use:   "evaluate <message>",
	Short: "Evaluate a message against the RACK policy without contacting a daemon",
	Long: `Runs the RACK checks over a customer message and, when --intent names an
action, shows what the dispatch gate would do with it.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runEvaluate,
}

func init() {
	f := evaluateCmd.Flags()
	f.StringVar(&evaluateFlags.intent, "intent", "", "Action the agent intends to take (e.g. issue_refund)")
	f.StringVar(&evaluateFlags.policy, "policy", "", "Cedar dispatch policy file (default: built-in)")
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	message := strings.Join(args, " ")
	v := policy.NewKeyword().Evaluate(message, evaluateFlags.intent)

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, v.Badge())
	fmt.Fprintf(out, "Authority: %t\n", v.Authority)
	fmt.Fprintf(out, "Control:   %s\n", strings.Join(v.ControlLimits, ", "))
	fmt.Fprintf(out, "Knowledge: %s\n", strings.Join(v.KnowledgeBaseUsed, ", "))
	fmt.Fprintf(out, "Reasoning: %s\n", v.Reasoning)

	if evaluateFlags.intent == "" {
		return nil
	}

	var g *gate.Gate
	var err error
	if evaluateFlags.policy != "" {
		g, err = gate.NewFromFile(evaluateFlags.policy, nil)
	} else {
		g, err = gate.New(nil)
	}
	if err != nil {
		return err
	}
	res := g.Decide(evaluateFlags.intent, v)
	fmt.Fprintf(out, "Dispatch:  %s %s (policy %s)\n", res.Decision, evaluateFlags.intent, res.PolicyID)
	return nil
}
