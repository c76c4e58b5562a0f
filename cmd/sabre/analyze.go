package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/steveyegge/sabre/internal/analysis"
	"github.com/steveyegge/sabre/internal/events"
	"github.com/steveyegge/sabre/internal/pipeline"
	"github.com/steveyegge/sabre/internal/report"
)

var (
	analyzeMode    string
	analyzeFormat  string
	analyzePolicy  string
	analyzeNoColor bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <file.sol> [contract]",
	Short: "Analyze a contract and report its findings",
	Long: `Compile <file.sol> with the compiler release its pragma selects, submit the
contract for analysis and print the findings.

The contract may be omitted when the file declares a single deployable contract.

Examples:
  sabre analyze contracts/Token.sol
  sabre analyze contracts/Token.sol Token --mode full --format json`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("mode") {
			cfg.Mode = analyzeMode
		}
		if cmd.Flags().Changed("format") {
			cfg.Format = analyzeFormat
		}
		if cmd.Flags().Changed("policy") {
			cfg.Toolchain.Policy = analyzePolicy
		}

		// Reject bad mode and format before touching the network
		mode, err := analysis.ParseMode(cfg.Mode)
		if err != nil {
			return err
		}
		if _, err := report.ParseFormat(cfg.Format); err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}

		entry, err := filepath.Abs(args[0])
		if err != nil {
			return fmt.Errorf("failed to resolve %s: %w", args[0], err)
		}
		var contract string
		if len(args) == 2 {
			contract = args[1]
		}

		creds := analysis.Credentials{EthAddress: cfg.Service.EthAddress, Password: cfg.Service.Password}
		if creds.EthAddress != "" && creds.Password == "" {
			creds.Password, err = promptPassword(creds.EthAddress)
			if err != nil {
				return err
			}
		}

		source, err := newSource(cfg)
		if err != nil {
			return err
		}
		cache, err := openCache(cfg, source)
		if err != nil {
			return err
		}
		defer func() { _ = cache.Close() }()

		var observer events.Observer
		if !quiet {
			observer = events.ObserverFunc(displayEvent)
		}
		engine := newEngine(cfg, source, cache, observer)

		outcome, err := engine.Run(cmd.Context(), pipeline.Request{
			EntryPath:   entry,
			Contract:    contract,
			Mode:        mode,
			Format:      cfg.Format,
			Credentials: creds,
			Color:       !analyzeNoColor && !color.NoColor,
		})
		if err != nil {
			return err
		}

		printDiagnostics(outcome)
		if outcome.Empty() {
			green := color.New(color.FgGreen).SprintFunc()
			fmt.Printf("%s No errors/warnings found in %s for contract: %s\n",
				green("✔"), args[0], outcome.Contract)
			return nil
		}
		fmt.Print(outcome.Rendered)
		return nil
	},
}

func printDiagnostics(outcome *pipeline.Outcome) {
	if len(outcome.Diagnostics) == 0 {
		return
	}
	yellow := color.New(color.FgYellow).SprintFunc()
	fmt.Fprintf(os.Stderr, "%s\n", yellow(fmt.Sprintf("Compiler warnings (solc %s):", outcome.Version)))
	for _, d := range outcome.Diagnostics {
		fmt.Fprintf(os.Stderr, "  %s\n", d.String())
	}
}

func init() {
	analyzeCmd.Flags().StringVarP(&analyzeMode, "mode", "m", "quick", "analysis mode: quick or full")
	analyzeCmd.Flags().StringVarP(&analyzeFormat, "format", "f", "stylish", "report format: "+strings.Join(report.Names(), ", "))
	analyzeCmd.Flags().StringVar(&analyzePolicy, "policy", "latest", "compiler selection: latest or prefer-cached")
	analyzeCmd.Flags().BoolVar(&analyzeNoColor, "no-color", false, "disable colored output")
	rootCmd.AddCommand(analyzeCmd)
}
