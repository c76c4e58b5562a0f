package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or clear the local compiler cache",
}

var cacheListCmd = &cobra.Command{
	Use:   "list",
	Short: "List cached compiler releases",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cache, err := openCache(cfg, nil)
		if err != nil {
			return err
		}
		defer func() { _ = cache.Close() }()

		snaps, err := cache.List(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to list cache: %w", err)
		}
		if len(snaps) == 0 {
			gray := color.New(color.FgHiBlack).SprintFunc()
			fmt.Printf("%s\n", gray("No cached compilers in "+cfg.Toolchain.CacheDir))
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "VERSION\tBUILD\tSIZE\tSHA256")
		for _, s := range snaps {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", s.Version, s.LongVersion, formatBytes(s.Size), shortDigest(s.SHA256))
		}
		return w.Flush()
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear [version]",
	Short: "Remove one cached release, or all of them",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cache, err := openCache(cfg, nil)
		if err != nil {
			return err
		}
		defer func() { _ = cache.Close() }()
		ctx := cmd.Context()

		versions := args
		if len(versions) == 0 {
			snaps, err := cache.List(ctx)
			if err != nil {
				return fmt.Errorf("failed to list cache: %w", err)
			}
			for _, s := range snaps {
				versions = append(versions, s.Version)
			}
		}

		green := color.New(color.FgGreen).SprintFunc()
		removed := 0
		for _, v := range versions {
			ok, err := cache.Invalidate(ctx, v)
			if err != nil {
				return fmt.Errorf("failed to remove %s: %w", v, err)
			}
			if ok {
				removed++
				fmt.Printf("%s removed solc %s\n", green("✓"), v)
			} else {
				fmt.Printf("  solc %s is not cached\n", v)
			}
		}
		fmt.Printf("%d release(s) removed\n", removed)
		return nil
	},
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

func shortDigest(sha string) string {
	if len(sha) > 12 {
		return sha[:12]
	}
	return sha
}

func init() {
	cacheCmd.AddCommand(cacheListCmd)
	cacheCmd.AddCommand(cacheClearCmd)
	rootCmd.AddCommand(cacheCmd)
}
