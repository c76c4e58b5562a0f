package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/steveyegge/sabre/internal/analysis"
	"github.com/steveyegge/sabre/internal/deduplication"
	"github.com/steveyegge/sabre/internal/report"
)

var (
	statusResults bool
	statusFormat  string
)

var statusCmd = &cobra.Command{
	Use:   "status <uuid>",
	Short: "Show the status of an analysis job",
	Long: `Query the analysis service for a job submitted earlier, for example one
that timed out locally. With --results the findings of a completed job are
printed; they cannot be mapped to source lines without the original build.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid job uuid %q: %w", args[0], err)
		}
		format, err := report.ParseFormat(statusFormat)
		if err != nil {
			return err
		}

		password := cfg.Service.Password
		if password == "" && cfg.Service.EthAddress != "" {
			if password, err = promptPassword(cfg.Service.EthAddress); err != nil {
				return err
			}
		}
		if cfg.Service.EthAddress == "" || password == "" {
			return fmt.Errorf("%w: set MYTHX_ETH_ADDRESS and MYTHX_PASSWORD", analysis.ErrAuthentication)
		}

		ctx := cmd.Context()
		client := newClient(cfg)
		token, err := client.Authenticate(ctx, cfg.Service.EthAddress, password)
		if err != nil {
			return err
		}
		status, err := client.Status(ctx, token, id.String())
		if err != nil {
			return fmt.Errorf("failed to get status of %s: %w", id, err)
		}

		statusColor := color.New(color.FgYellow).SprintFunc()
		switch status {
		case analysis.StatusCompleted:
			statusColor = color.New(color.FgGreen).SprintFunc()
		case analysis.StatusFailed:
			statusColor = color.New(color.FgRed).SprintFunc()
		}
		fmt.Printf("Job %s: %s\n", id, statusColor(string(status)))

		if !statusResults || status != analysis.StatusCompleted {
			return nil
		}
		raw, err := client.Results(ctx, token, id.String())
		if err != nil {
			return &analysis.RetrievalError{UUID: id.String(), Err: err}
		}
		findings := deduplication.NewReducer(nil).Reduce(raw, nil, nil)
		rendered, err := report.RenderWith(format, findings, report.Options{Color: !color.NoColor})
		if err != nil {
			return err
		}
		fmt.Print(rendered)
		return nil
	},
}

func init() {
	statusCmd.Flags().BoolVar(&statusResults, "results", false, "print the findings of a completed job")
	statusCmd.Flags().StringVarP(&statusFormat, "format", "f", "stylish", "report format for --results")
	rootCmd.AddCommand(statusCmd)
}
