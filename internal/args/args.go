package args

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/scoutpulse/pulse/internal/config"
)

// Command names dispatched by the application.
const (
	CommandAsk    = "ask"
	CommandChat   = "chat"
	CommandDigest = "digest"
	CommandView   = "view"
	CommandDefine = "define"
)

// Arguments represents the parsed command line.
type Arguments struct {
	Command      string
	Prompt       string
	Model        string
	UsePlainText bool
	Verbose      bool

	// digest
	RefreshDigest bool
	DigestJSON    bool
	SaveFile      string
	HistoryLimit  int

	// view
	DocumentID  string
	OutlineOnly bool

	// define
	Term string
}

// ParseArgs parses command-line arguments and stdin input, returning an
// Arguments struct. Piped stdin is appended to the prompt, so
// `cat notes.md | pulse "summarize this"` works.
func ParseArgs(cfg config.Config) (Arguments, error) {
	piped, err := readPipedInput()
	if err != nil {
		return Arguments{}, err
	}
	return parse(cfg, os.Args[1:], piped)
}

func parse(cfg config.Config, argv []string, piped string) (Arguments, error) {
	args := Arguments{Command: CommandAsk}

	rootCmd := &cobra.Command{
		Use:   "pulse [command] [flags] [prompt]",
		Short: "Terminal client for the Scout Pulse research service",
		RunE: func(cmd *cobra.Command, cmdArgs []string) error {
			args.Prompt = joinPrompt(strings.Join(cmdArgs, " "), piped)
			if args.Prompt == "" {
				return errors.New("no prompt provided")
			}
			return nil
		},
		SilenceErrors: true, // We'll handle error reporting
		SilenceUsage:  true, // We'll handle usage display
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&args.Model, "model", cfg.Model, "The model to chat with")
	rootCmd.PersistentFlags().BoolVar(&args.UsePlainText, "plain", shouldUsePlainText(cfg), "Disable markdown rendering")
	rootCmd.PersistentFlags().BoolVar(&args.Verbose, "verbose", false, "Enable debug logging")

	chatCmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat session",
		RunE: func(cmd *cobra.Command, cmdArgs []string) error {
			args.Command = CommandChat
			return nil
		},
	}

	digestCmd := &cobra.Command{
		Use:   "digest",
		Short: "Fetch and display the portfolio digest",
		RunE: func(cmd *cobra.Command, cmdArgs []string) error {
			args.Command = CommandDigest
			return nil
		},
	}
	digestCmd.Flags().BoolVar(&args.RefreshDigest, "refresh", false, "Generate a fresh digest instead of fetching the latest")
	digestCmd.Flags().BoolVar(&args.DigestJSON, "json", false, "Emit the parsed digest as JSON")
	digestCmd.Flags().StringVar(&args.SaveFile, "save", "", "Write the raw digest text to a file")
	digestCmd.Flags().IntVar(&args.HistoryLimit, "history", 0, "List the N most recently stored digests instead")

	viewCmd := &cobra.Command{
		Use:   "view ID",
		Short: "Display a stored research document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, cmdArgs []string) error {
			args.Command = CommandView
			args.DocumentID = cmdArgs[0]
			return nil
		},
	}
	viewCmd.Flags().BoolVar(&args.OutlineOnly, "outline", false, "Show only the heading outline")

	defineCmd := &cobra.Command{
		Use:   "define TERM",
		Short: "Look up a glossary term",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, cmdArgs []string) error {
			args.Command = CommandDefine
			args.Term = cmdArgs[0]
			return nil
		},
	}

	rootCmd.AddCommand(chatCmd, digestCmd, viewCmd, defineCmd)

	rootCmd.SetArgs(argv)
	if err := rootCmd.Execute(); err != nil {
		return Arguments{}, err
	}

	return args, nil
}

// readPipedInput returns stdin content when it is not a terminal.
func readPipedInput() (string, error) {
	stat, err := os.Stdin.Stat()
	if err != nil || (stat.Mode()&os.ModeCharDevice) != 0 {
		return "", nil
	}

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024) // 1MB max buffer
	var buf strings.Builder
	for scanner.Scan() {
		buf.WriteString(scanner.Text())
		buf.WriteByte('\n')
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("failed to read stdin: %w", err)
	}
	return strings.TrimSpace(buf.String()), nil
}

func joinPrompt(prompt, piped string) string {
	prompt = strings.TrimSpace(prompt)
	switch {
	case prompt == "":
		return piped
	case piped == "":
		return prompt
	default:
		return prompt + "\n\n" + piped
	}
}

// shouldUsePlainText determines if plain text output should be used based
// on environment and terminal settings.
func shouldUsePlainText(cfg config.Config) bool {
	// Check if the rendering format is set to plain
	if cfg.Render.Format == "plain" {
		return true
	}

	// Check if output is being redirected
	if fileInfo, _ := os.Stdout.Stat(); fileInfo != nil {
		if (fileInfo.Mode() & os.ModeCharDevice) == 0 {
			return true
		}
	}

	// Check for NO_COLOR environment variable
	if _, exists := os.LookupEnv("NO_COLOR"); exists {
		return true
	}

	// Check for TERM=dumb
	if term := os.Getenv("TERM"); term == "dumb" {
		return true
	}

	return false
}
