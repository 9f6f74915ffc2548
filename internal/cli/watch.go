package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/brensch/voro/watch"
	"github.com/spf13/cobra"
)

func Watch(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch <game-id>",
		Short: "Follow a live game in the terminal",
		Args:  cobra.ExactArgs(1),
		Long: heredoc.Doc(`watch shows a game's board and status and updates them
			as placements arrive.

			With --player set, typing a cell number and pressing enter
			places a token as that identity.`),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("bad game id %q", args[0])
			}
			config := watch.DefaultConfig()
			config.GameID = id
			config.BaseURL, _ = cmd.Flags().GetString("server")
			config.Player, _ = cmd.Flags().GetString("player")
			if !cmd.Flags().Changed("server") && a.config.Listen != "" {
				host := a.config.Listen
				if strings.HasPrefix(host, ":") {
					host = "127.0.0.1" + host
				}
				config.BaseURL = "http://" + host
			}
			return watch.Run(cmd.Context(), config, a.log)
		},
	}
	cmd.Flags().String("server", watch.DefaultConfig().BaseURL, "Base url of the voro server")
	cmd.Flags().String("player", "", "Identity to place tokens as")
	return cmd
}
