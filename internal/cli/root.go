package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/law-makers/pricecrawl/internal/app"
	"github.com/law-makers/pricecrawl/internal/config"
	"github.com/law-makers/pricecrawl/internal/engine"
	"github.com/law-makers/pricecrawl/internal/engine/dynamic"
	"github.com/law-makers/pricecrawl/internal/ui"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "pricecrawl",
	Short: "Scrape product and listing pages from e-commerce sites",
	Long: `Pricecrawl turns product and search-result pages into structured records.

Pages are fetched with the cheapest strategy that works: a plain HTTP request
first, then a headless browser, then a browser with evasion heuristics and
finally one with a different identity. Each field is located with an ordered
list of selectors so that markup changes degrade gracefully.`,
	Version:       "0.1.0",
	SilenceErrors: true,
}

// Execute runs the root command under ctx and exits non-zero on failure.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, ui.Error("Error: "+describeError(err)))
		os.Exit(1)
	}
}

// describeError appends a hint on what to change before running again
func describeError(err error) string {
	msg := err.Error()
	if errors.Is(err, dynamic.ErrBrowserNotFound) {
		return msg + " (install Chrome or set --chrome-path)"
	}
	var ee *engine.EngineError
	if !errors.As(err, &ee) {
		return msg
	}
	switch {
	case ee.Code == engine.ErrCodeBlocked:
		msg += " (try --strategies with stealth/identity, or --cache-fallback)"
	case ee.Code == engine.ErrCodeTimeout:
		msg += " (raise --timeout)"
	case ee.Retry:
		msg += " (temporary failure, try again later)"
	}
	return msg
}

func init() {
	config.RegisterFlags(rootCmd)

	// Application is initialized lazily so -h/help never starts it
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if GetAppFromCmd(cmd) != nil {
			return nil
		}
		// Errors past this point are runtime failures, not usage mistakes
		cmd.SilenceUsage = true

		cfg, err := config.Load(cmd)
		if err != nil {
			return err
		}

		a, err := app.New(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		SetApp(cmd, a)
		return nil
	}

	rootCmd.PersistentPostRun = func(cmd *cobra.Command, args []string) {
		a := GetAppFromCmd(cmd)
		if a == nil {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), config.DefaultStaticTimeout)
		defer cancel()
		_ = a.Close(ctx)
		SetApp(cmd, nil)
	}

	rootCmd.Flags().BoolP("help", "h", false, "Help for pricecrawl")
	rootCmd.Flags().Bool("version", false, "Version for pricecrawl")

	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.SetHelpFunc(customHelpFunc)
	rootCmd.SetUsageFunc(customUsageFunc)
}

// customHelpFunc provides a colorized help output
func customHelpFunc(cmd *cobra.Command, args []string) {
	w := cmd.OutOrStdout()

	fmt.Fprintf(w, "\n%s%s%s\n", ui.ColorBold+ui.ColorCyan, strings.ToUpper(cmd.Name()), ui.ColorReset)
	if cmd.Short != "" {
		fmt.Fprintf(w, "%s\n", cmd.Short)
	}
	if cmd.Long != "" && cmd.Long != cmd.Short {
		fmt.Fprintf(w, "\n%s\n", wrapText(cmd.Long, 80))
	}

	printUsage(w, cmd)

	if cmd.HasExample() {
		section(w, "Examples")
		lastWasCommand := false
		for _, example := range strings.Split(cmd.Example, "\n") {
			trimmed := strings.TrimSpace(example)
			switch {
			case trimmed == "":
				continue
			case strings.HasPrefix(trimmed, "#"):
				if lastWasCommand {
					fmt.Fprintln(w)
				}
				fmt.Fprintf(w, "  %s%s%s\n", ui.ColorDim, trimmed, ui.ColorReset)
				lastWasCommand = false
			default:
				fmt.Fprintf(w, "  %s$ %s%s\n", ui.ColorGreen, trimmed, ui.ColorReset)
				lastWasCommand = true
			}
		}
	}

	printCommands(w, cmd)

	if cmd.HasAvailableLocalFlags() {
		section(w, "Flags")
		printFlagsTo(w, cmd.LocalFlags().FlagUsages())
	}
	if cmd.HasAvailableInheritedFlags() {
		section(w, "Global Flags")
		printFlagsTo(w, cmd.InheritedFlags().FlagUsages())
	}

	if cmd.HasAvailableSubCommands() {
		fmt.Fprintf(w, "\n%sUse \"%s%s%s %s<command>%s %s--help%s\" for more information about a command.%s\n",
			ui.ColorDim,
			ui.ColorCyan, cmd.CommandPath(), ui.ColorReset+ui.ColorDim,
			ui.ColorYellow, ui.ColorReset+ui.ColorDim,
			ui.ColorGreen, ui.ColorReset+ui.ColorDim,
			ui.ColorReset)
	}
	fmt.Fprintln(w)
}

// customUsageFunc provides a colorized usage output
func customUsageFunc(cmd *cobra.Command) error {
	w := cmd.ErrOrStderr()

	printUsage(w, cmd)
	printCommands(w, cmd)
	if cmd.HasAvailableLocalFlags() {
		section(w, "Flags")
		printFlagsTo(w, cmd.LocalFlags().FlagUsages())
	}

	fmt.Fprintf(w, "\n%sUse \"%s%s%s %s--help%s\" for more information.%s\n",
		ui.ColorDim,
		ui.ColorCyan, cmd.CommandPath(), ui.ColorReset+ui.ColorDim,
		ui.ColorGreen, ui.ColorReset+ui.ColorDim,
		ui.ColorReset)
	return nil
}

func section(w io.Writer, title string) {
	fmt.Fprintf(w, "\n%s%s%s\n", ui.ColorBold+ui.ColorWhite, title, ui.ColorReset)
}

func printUsage(w io.Writer, cmd *cobra.Command) {
	section(w, "Usage")
	if cmd.Runnable() {
		fmt.Fprintf(w, "  %s%s%s\n", ui.ColorCyan, cmd.UseLine(), ui.ColorReset)
	}
	if cmd.HasAvailableSubCommands() {
		fmt.Fprintf(w, "  %s%s%s %s<command>%s %s[flags]%s\n",
			ui.ColorCyan, cmd.CommandPath(), ui.ColorReset,
			ui.ColorYellow, ui.ColorReset,
			ui.ColorDim, ui.ColorReset)
	}
}

func printCommands(w io.Writer, cmd *cobra.Command) {
	if !cmd.HasAvailableSubCommands() {
		return
	}
	section(w, "Commands")

	maxLen := 0
	var available []*cobra.Command
	for _, c := range cmd.Commands() {
		if c.IsAvailableCommand() && c.Name() != "help" {
			available = append(available, c)
			maxLen = max(maxLen, len(c.Name()))
		}
	}

	for _, c := range available {
		padding := strings.Repeat(" ", maxLen-len(c.Name())+2)
		fmt.Fprintf(w, "  %s%s%s%s%s%s%s\n",
			ui.ColorCyan, c.Name(), ui.ColorReset,
			padding,
			ui.ColorDim, c.Short, ui.ColorReset)
	}
}

// printFlagsTo prints pflag usage lines with the flag names in one
// aligned, colored column
func printFlagsTo(w io.Writer, flagUsages string) {
	type row struct{ flag, desc string }
	var rows []row
	width := 28

	for _, line := range strings.Split(flagUsages, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if !strings.HasPrefix(trimmed, "-") {
			// continuation of the previous description
			rows = append(rows, row{desc: trimmed})
			continue
		}
		flag, desc, _ := strings.Cut(trimmed, "  ")
		rows = append(rows, row{flag: flag, desc: strings.TrimSpace(desc)})
		width = max(width, len(flag))
	}

	for _, r := range rows {
		if r.flag == "" {
			fmt.Fprintf(w, "%s%s%s%s\n", strings.Repeat(" ", width+4), ui.ColorDim, r.desc, ui.ColorReset)
			continue
		}
		fmt.Fprintf(w, "  %s%s%s%s%s%s%s\n",
			ui.ColorGreen, r.flag, ui.ColorReset,
			strings.Repeat(" ", width-len(r.flag)+2),
			ui.ColorDim, r.desc, ui.ColorReset)
	}
}

// wrapText reflows each paragraph to width. Lines starting with a list
// marker are kept on their own line.
func wrapText(text string, width int) string {
	var paragraphs []string
	for _, para := range strings.Split(text, "\n\n") {
		var out []string
		var line strings.Builder
		flush := func() {
			if line.Len() > 0 {
				out = append(out, line.String())
				line.Reset()
			}
		}

		for _, raw := range strings.Split(para, "\n") {
			trimmed := strings.TrimSpace(raw)
			if strings.HasPrefix(trimmed, "-") || strings.HasPrefix(trimmed, "*") {
				flush()
				out = append(out, trimmed)
				continue
			}
			for _, word := range strings.Fields(trimmed) {
				if line.Len() > 0 && line.Len()+1+len(word) > width {
					flush()
				}
				if line.Len() > 0 {
					line.WriteByte(' ')
				}
				line.WriteString(word)
			}
		}
		flush()

		if len(out) > 0 {
			paragraphs = append(paragraphs, strings.Join(out, "\n"))
		}
	}
	return strings.Join(paragraphs, "\n\n")
}
