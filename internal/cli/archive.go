package cli

import (
	"fmt"

	"github.com/brensch/voro/store"
	"github.com/spf13/cobra"
)

func Export(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export <out.parquet>",
		Short: "Archive stored games to a parquet file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.openDB(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()

			completeOnly, _ := cmd.Flags().GetBool("complete-only")
			n, err := store.Export(cmd.Context(), db, args[0], completeOnly)
			if err != nil {
				return err
			}
			a.log.WithField("path", args[0]).Info("exported " + plural(n, "game"))
			return nil
		},
	}
	cmd.Flags().Bool("complete-only", false, "Only archive finished games")
	return cmd
}

func Stats(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Summarise the database and, optionally, a directory of archives",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.openDB(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()

			boards, games, tokens, err := db.Stats(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "boards:\t%d\ngames:\t%d\ntokens:\t%d\n", boards, games, tokens)

			dir, _ := cmd.Flags().GetString("archives")
			if dir == "" {
				return nil
			}
			s, err := store.ArchiveStats(cmd.Context(), dir)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "archived games:\t%d\ncomplete:\t%d\nplayer 1 wins:\t%d\nplayer 2 wins:\t%d\ndraws:\t%d\n",
				s.Games, s.Complete, s.Player1Wins, s.Player2Wins, s.Draws)
			fmt.Fprintf(out, "avg placements:\t%.1f\navg score:\t%.2f : %.2f\n", s.AvgPlacements, s.AvgScore1, s.AvgScore2)
			return nil
		},
	}
	cmd.Flags().String("archives", "", "Directory of parquet archives to summarise")
	return cmd
}
