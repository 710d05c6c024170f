package cli

import (
	"github.com/spf13/cobra"
)

func newRaceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "races",
		Aliases: []string{"race"},
		Short:   "Inspect races",
	}

	cmd.AddCommand(newRaceListCmd())
	cmd.AddCommand(newRaceGetCmd())

	return cmd
}

func newRaceListCmd() *cobra.Command {
	var status string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List active races",
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := client.ListRaces(cmd.Context(), status)
			if err != nil {
				return err
			}

			out := NewOutput(cfg.Output, cmd.OutOrStdout())
			out.Print(result)
			return nil
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "Only show races in this status (waiting, countdown, racing, finished)")

	return cmd
}

func newRaceGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <race-id>",
		Short: "Get race details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := client.GetRace(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := NewOutput(cfg.Output, cmd.OutOrStdout())
			out.Print(result)
			return nil
		},
	}
}

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show server activity",
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := client.Stats(cmd.Context())
			if err != nil {
				return err
			}

			out := NewOutput(cfg.Output, cmd.OutOrStdout())
			out.Print(result)
			return nil
		},
	}
}
