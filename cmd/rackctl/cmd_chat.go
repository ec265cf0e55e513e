package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rack-io/rack/pkg/protocol"
)

var chatFlags struct {
	message string
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Talk to the support agent of a running rackd",
	RunE:  runChat,
}

func init() {
	chatCmd.Flags().StringVarP(&chatFlags.message, "message", "m", "", "Send a single message (omit for interactive)")
}

func runChat(cmd *cobra.Command, _ []string) error {
	out := cmd.OutOrStdout()
	if chatFlags.message != "" {
		return sendMessage(out, chatFlags.message)
	}

	fmt.Fprintln(out, "rackctl chat (type 'quit' to exit)")
	scanner := bufio.NewScanner(cmd.InOrStdin())
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "quit" || line == "exit" {
			return nil
		}
		if err := sendMessage(out, line); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "error: %v\n", err)
		}
		fmt.Fprintln(out)
	}
}

func sendMessage(out io.Writer, content string) error {
	body, err := apiPost("/api/messages", map[string]string{"content": content})
	if err != nil {
		return err
	}
	var resp struct {
		Message  protocol.Message  `json:"message"`
		Snapshot protocol.Snapshot `json:"snapshot"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	printMessage(out, resp.Message)
	if resp.Snapshot.HITLRequired {
		fmt.Fprintln(out, "[waiting for a human supervisor]")
	}
	return nil
}

func printMessage(out io.Writer, m protocol.Message) {
	fmt.Fprintf(out, "%s: %s\n", m.Role, m.Content)
	if m.Verdict != nil {
		fmt.Fprintf(out, "  [%s]\n", m.Verdict.Badge())
	}
}
