package cli

import (
	"time"

	"github.com/buemura/scanhub/internal/tui"
	"github.com/spf13/cobra"
)

var interactiveCmd = &cobra.Command{
	Use:     "interactive",
	Aliases: []string{"i"},
	Short:   "Submit and watch scans in a terminal UI",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient(cmd.Context())
		if err != nil {
			return err
		}
		return tui.Run(c, pollFlag)
	},
}

func init() {
	interactiveCmd.Flags().StringVarP(&usernameFlag, "username", "u", "", "log in as this user")
	interactiveCmd.Flags().StringVarP(&passwordFlag, "password", "p", "", "password for --username")
	interactiveCmd.Flags().DurationVar(&pollFlag, "poll-interval", time.Second, "status polling interval")

	rootCmd.AddCommand(interactiveCmd)
}
