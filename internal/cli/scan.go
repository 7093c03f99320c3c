package cli

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/buemura/scanhub/internal/client"
	"github.com/buemura/scanhub/internal/output"
	"github.com/spf13/cobra"
)

var (
	usernameFlag string
	passwordFlag string

	targetFlag   string
	scanTypeFlag string
	waitFlag     bool
	pollFlag     time.Duration
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Submit and inspect scan jobs on a scanhub server",
}

var scanSubmitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Submit a new scan",
	Example: `  scanhub scan submit --target https://example.com --type deep --wait
  scanhub scan submit -t https://example.com -o json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if targetFlag == "" {
			return fmt.Errorf("--target is required")
		}
		c, err := newClient(cmd.Context())
		if err != nil {
			return err
		}

		sub, err := c.Submit(cmd.Context(), targetFlag, scanTypeFlag)
		if err != nil {
			return err
		}
		if !waitFlag {
			fmt.Fprintf(cmd.OutOrStdout(), "Scan #%d submitted (%s)\n", sub.ID, sub.Status)
			return nil
		}

		view, err := c.Wait(cmd.Context(), sub.ID, pollFlag)
		if err != nil {
			return err
		}
		return printScan(cmd, view)
	},
}

var scanStatusCmd = &cobra.Command{
	Use:   "status ID",
	Short: "Show a scan's status and results",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil || id <= 0 {
			return fmt.Errorf("invalid scan id %q", args[0])
		}
		c, err := newClient(cmd.Context())
		if err != nil {
			return err
		}

		var view *client.ScanView
		if waitFlag {
			view, err = c.Wait(cmd.Context(), id, pollFlag)
		} else {
			view, err = c.Status(cmd.Context(), id)
		}
		if err != nil {
			return err
		}
		return printScan(cmd, view)
	},
}

var scanListCmd = &cobra.Command{
	Use:   "list",
	Short: "List your scans",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if usernameFlag == "" {
			return fmt.Errorf("listing scans requires --username and --password")
		}
		c, err := newClient(cmd.Context())
		if err != nil {
			return err
		}
		list, err := c.List(cmd.Context())
		if err != nil {
			return err
		}

		formatter, err := output.GetFormatter(outputFlag)
		if err != nil {
			return err
		}
		return formatter.FormatList(cmd.OutOrStdout(), list)
	},
}

func init() {
	scanCmd.PersistentFlags().StringVarP(&usernameFlag, "username", "u", "", "log in as this user")
	scanCmd.PersistentFlags().StringVarP(&passwordFlag, "password", "p", "", "password for --username")
	scanCmd.PersistentFlags().BoolVarP(&waitFlag, "wait", "w", false, "poll until the scan finishes")
	scanCmd.PersistentFlags().DurationVar(&pollFlag, "poll-interval", time.Second, "polling interval for --wait")

	scanSubmitCmd.Flags().StringVarP(&targetFlag, "target", "t", "", "target URL (http or https)")
	scanSubmitCmd.Flags().StringVar(&scanTypeFlag, "type", "quick", "scan type: quick or deep")

	scanCmd.AddCommand(scanSubmitCmd)
	scanCmd.AddCommand(scanStatusCmd)
	scanCmd.AddCommand(scanListCmd)
}

// newClient returns an API client, logged in when --username is set.
func newClient(ctx context.Context) (*client.Client, error) {
	c, err := client.New(serverFlag)
	if err != nil {
		return nil, err
	}
	if usernameFlag != "" {
		if _, err := c.Login(ctx, usernameFlag, passwordFlag); err != nil {
			return nil, fmt.Errorf("login: %w", err)
		}
	}
	return c, nil
}

func printScan(cmd *cobra.Command, view *client.ScanView) error {
	formatter, err := output.GetFormatter(outputFlag)
	if err != nil {
		return err
	}
	return formatter.FormatScan(cmd.OutOrStdout(), &view.ScanJob, view.Vulnerabilities)
}
