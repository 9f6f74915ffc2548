package cli

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/brensch/voro/game"
	"github.com/brensch/voro/referee"
	"github.com/spf13/cobra"
)

func InitDB(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "initdb",
		Short: "Create the database and its tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.openDB(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()
			a.log.WithField("database", a.config.Database).Info("database ready")
			return nil
		},
	}
}

func NewGame(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "newgame <board-id>",
		Short: "Start a game on a stored board",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			boardID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("bad board id %q", args[0])
			}
			db, err := a.openDB(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()

			ref, err := referee.New(db, db, nil, a.config.BoardCache, a.log)
			if err != nil {
				return err
			}
			name, _ := cmd.Flags().GetString("name")
			p1, _ := cmd.Flags().GetString("player1")
			p2, _ := cmd.Flags().GetString("player2")
			g, err := ref.CreateGame(cmd.Context(), name, boardID, p1, p2)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), g.ID)
			return nil
		},
	}
	cmd.Flags().String("name", "", "Game name (default \"<player1> vs <player2>\")")
	cmd.Flags().String("player1", "", "Identity allowed to play colour 1 (empty: anyone)")
	cmd.Flags().String("player2", "", "Identity allowed to play colour 2 (empty: anyone)")
	return cmd
}

func Verify(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify [game-id...]",
		Short: "Replay games and compare with their stored status",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			db, err := a.openDB(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			ref, err := referee.New(db, db, nil, a.config.BoardCache, a.log)
			if err != nil {
				return err
			}

			var ids []int64
			for _, arg := range args {
				id, err := strconv.ParseInt(arg, 10, 64)
				if err != nil {
					return fmt.Errorf("bad game id %q", arg)
				}
				ids = append(ids, id)
			}
			if len(ids) == 0 {
				games, err := db.ListGames(ctx)
				if err != nil {
					return err
				}
				for _, g := range games {
					ids = append(ids, g.ID)
				}
			}

			repair, _ := cmd.Flags().GetBool("repair")
			mismatched := 0
			for _, id := range ids {
				status, err := ref.Verify(ctx, id, repair)
				switch {
				case errors.Is(err, referee.ErrStatusMismatch):
					mismatched++
					a.log.WithField("game", id).Warn("stored status differs from replay")
				case err != nil:
					return err
				default:
					fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\n", id, describe(status))
				}
			}
			if mismatched > 0 {
				return fmt.Errorf("%s out of step, rerun with --repair", plural(mismatched, "game"))
			}
			return nil
		},
	}
	cmd.Flags().Bool("repair", false, "Overwrite stored statuses that differ from the replay")
	return cmd
}

func describe(s game.Status) string {
	if s.GameComplete {
		return fmt.Sprintf("complete %d:%d", s.Score1, s.Score2)
	}
	if s.ConnectionsRemaining != nil {
		return fmt.Sprintf("player %d to move (%d left), %d connections remaining", s.ToMove, s.MovesLeft, *s.ConnectionsRemaining)
	}
	return fmt.Sprintf("player %d to move (%d left)", s.ToMove, s.MovesLeft)
}
