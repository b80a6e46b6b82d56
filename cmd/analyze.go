package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"sentibot/pkg/bus"
	"sentibot/pkg/config"
	"sentibot/pkg/dispatch"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

const cliChannelName = "cli"

var imageURL string

var (
	promptStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("130"))
	replyStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("230")).PaddingLeft(2)
)

// analyzeCmd represents the analyze command
var analyzeCmd = &cobra.Command{
	Use:          "analyze [text]",
	Short:        "Analyze one message or image from the terminal",
	Long:         "Runs the same analysis and reply formatting as the bot for one text, one image URL, or lines read from stdin. Lines starting with http:// or https:// are analyzed as images.",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}

		dispatcher, err := newDispatcher(cfg, nil, nil)
		if err != nil {
			return fmt.Errorf("initialize analysis clients: %w", err)
		}

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		out := cmd.OutOrStdout()

		if inbound, ok := resolveInbound(args, imageURL); ok {
			runSingle(ctx, out, dispatcher, inbound)
			return nil
		}

		runInteractive(ctx, cmd.InOrStdin(), out, dispatcher)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	analyzeCmd.Flags().StringVarP(&imageURL, "image", "i", "", "image URL to describe")
}

// urlResolver treats the file reference as an already fetchable URL.
type urlResolver struct{}

func (urlResolver) FileURL(_ context.Context, fileID string) (string, error) {
	return fileID, nil
}

// resolveInbound builds a one-shot message from the --image flag or positional text.
func resolveInbound(args []string, image string) (bus.InboundMessage, bool) {
	if value := strings.TrimSpace(image); value != "" {
		return inboundForLine(value), true
	}

	value := strings.TrimSpace(strings.Join(args, " "))
	if value == "" {
		return bus.InboundMessage{}, false
	}

	return bus.InboundMessage{Kind: bus.KindText, Channel: cliChannelName, Content: value}, true
}

func inboundForLine(line string) bus.InboundMessage {
	lower := strings.ToLower(line)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return bus.InboundMessage{Kind: bus.KindPhoto, Channel: cliChannelName, Photos: []bus.PhotoRef{{FileID: line}}}
	}

	return bus.InboundMessage{Kind: bus.KindText, Channel: cliChannelName, Content: line}
}

func runSingle(ctx context.Context, out io.Writer, dispatcher *dispatch.Dispatcher, inbound bus.InboundMessage) {
	outbound, err := dispatcher.Handle(ctx, inbound, urlResolver{})
	if err != nil {
		fmt.Fprintf(out, "analysis failed: %v\n", err)
		return
	}

	printReply(out, outbound.Content)
}

func runInteractive(ctx context.Context, in io.Reader, out io.Writer, dispatcher *dispatch.Dispatcher) {
	scanner := bufio.NewScanner(in)

	for {
		fmt.Fprint(out, promptStyle.Render("> "))
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				fmt.Fprintf(out, "input error: %v\n", err)
			}
			return
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if isExitCommand(line) {
			return
		}

		runSingle(ctx, out, dispatcher, inboundForLine(line))
	}
}

func printReply(out io.Writer, message string) {
	lines := replyLines(message)
	for _, line := range lines {
		fmt.Fprintln(out, replyStyle.Render(line))
	}
	if len(lines) > 0 {
		fmt.Fprintln(out)
	}
}

func replyLines(message string) []string {
	trimmed := strings.TrimSpace(message)
	if trimmed == "" {
		return nil
	}

	return strings.Split(trimmed, "\n")
}

func isExitCommand(input string) bool {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "exit", "quit", ":q":
		return true
	default:
		return false
	}
}
