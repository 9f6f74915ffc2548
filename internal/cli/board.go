package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/briandowns/spinner"
	"github.com/brensch/voro/builder"
	"github.com/brensch/voro/game"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func Build(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Generate a new board",
		Args:  cobra.NoArgs,
		Long: heredoc.Doc(`build scatters interior points inside the border ring,
			relaxes them toward the centroids of their Voronoi cells and
			writes the resulting board document.

			Relaxation that keeps needing its point count repaired is
			reported as a warning; the board is written regardless.`),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := a.config.BuilderOptions()
			overrideInt(cmd, "border", &opts.Border)
			overrideInt(cmd, "interior", &opts.Interior)
			overrideInt(cmd, "iterations", &opts.Iterations)
			if cmd.Flags().Changed("seed") {
				opts.Seed, _ = cmd.Flags().GetInt64("seed")
			}

			s := newSpinner(cmd, " relaxing board")
			s.Start()
			start := time.Now()
			b, stats, err := builder.Generate(opts, a.log)
			s.Stop()
			if err != nil {
				return err
			}

			log := a.log.WithFields(logrus.Fields{
				"cells":      b.Len(),
				"edges":      len(b.Edges),
				"iterations": stats.Iterations,
				"clamped":    stats.Clamped,
				"elapsed":    time.Since(start).Round(time.Millisecond),
			})
			if !stats.Converged() {
				log.WithField("repair_streak", stats.LongestRepairStreak).Warn("relaxation did not settle")
			} else {
				log.Info("board built")
			}

			out, _ := cmd.Flags().GetString("out")
			if err := writeOutput(cmd, out, func(w io.Writer) error {
				enc := json.NewEncoder(w)
				return enc.Encode(b)
			}); err != nil {
				return err
			}
			if svg, _ := cmd.Flags().GetString("svg"); svg != "" {
				return writeOutput(cmd, svg, func(w io.Writer) error {
					builder.RenderSVG(w, b)
					return nil
				})
			}
			return nil
		},
	}
	cmd.Flags().Int("border", builder.DefaultBorder, "Number of border cells")
	cmd.Flags().Int("interior", builder.DefaultInterior, "Number of interior cells")
	cmd.Flags().Int("iterations", builder.DefaultIterations, "Relaxation iterations")
	cmd.Flags().Int64("seed", 0, "Random seed (0 picks one from the clock)")
	cmd.Flags().StringP("out", "o", "-", "Board document output path")
	cmd.Flags().String("svg", "", "Also render the board to this SVG path")
	return cmd
}

// newSpinner draws on stderr so board documents can go to stdout.
func newSpinner(cmd *cobra.Command, suffix string) *spinner.Spinner {
	opt := spinner.WithWriter(cmd.ErrOrStderr())
	if f, ok := cmd.ErrOrStderr().(*os.File); ok {
		opt = spinner.WithWriterFile(f)
	}
	s := spinner.New(spinner.CharSets[spinnerCharset], 100*time.Millisecond, opt)
	s.Suffix = suffix
	return s
}

func Render(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "render <board.json>",
		Short: "Render a board document as SVG",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := readBoard(args[0])
			if err != nil {
				return err
			}
			out, _ := cmd.Flags().GetString("out")
			return writeOutput(cmd, out, func(w io.Writer) error {
				builder.RenderSVG(w, b)
				return nil
			})
		},
	}
	cmd.Flags().StringP("out", "o", "-", "SVG output path")
	return cmd
}

func AddBoard(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "addboard <name> <board.json>",
		Short: "Store a board document in the database",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := readBoard(args[1])
			if err != nil {
				return err
			}
			db, err := a.openDB(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()

			id, err := db.SaveBoard(cmd.Context(), args[0], b)
			if err != nil {
				return err
			}
			a.log.WithFields(logrus.Fields{"board": id, "cells": b.Len()}).Info("board added")
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	}
}

func readBoard(path string) (*game.Board, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read board: %w", err)
	}
	b, err := game.ParseBoard(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return b, nil
}

// writeOutput writes to stdout for "-" and otherwise to path via a temp file
// and rename.
func writeOutput(cmd *cobra.Command, path string, write func(io.Writer) error) error {
	if path == "" || path == "-" {
		return write(cmd.OutOrStdout())
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", tmp, err)
	}
	if err := write(f); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to rename %s: %w", tmp, err)
	}
	return nil
}

func plural(n int, word string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, word)
	}
	return fmt.Sprintf("%d %ss", n, strings.TrimSuffix(word, "s"))
}
