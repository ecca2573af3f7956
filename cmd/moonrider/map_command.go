package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/unsupervisednn/moonrider/internal/beatsaver"
)

func newMapCommand(ctx *commandContext) *cobra.Command {
	var byHash bool
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "map <id>",
		Short: "Show BeatSaver map metadata as it would be ingested",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := ctx.logger()
			if err != nil {
				return err
			}
			challenge, err := lookupChallenge(cmd.Context(), ctx, logger, args[0], byHash)
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd, challenge)
			}
			printChallenge(cmd.OutOrStdout(), challenge)
			return nil
		},
	}

	cmd.Flags().BoolVar(&byHash, "hash", false, "Treat the argument as a version hash instead of a map id")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

func lookupChallenge(ctx context.Context, cc *commandContext, logger *slog.Logger, ref string, byHash bool) (*beatsaver.Challenge, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, fmt.Errorf("map id is required")
	}
	cfg, err := cc.ensureConfig()
	if err != nil {
		return nil, err
	}
	client, err := cc.beatSaver(logger)
	if err != nil {
		return nil, err
	}

	var m *beatsaver.Map
	if byHash {
		m, err = client.MapByHash(ctx, ref)
	} else {
		m, err = client.MapByID(ctx, ref)
	}
	if err != nil {
		return nil, fmt.Errorf("lookup map %s: %w", ref, err)
	}
	challenge, err := beatsaver.Convert(m, cfg.BeatSaver.CDNURL)
	if err != nil {
		return nil, fmt.Errorf("convert map %s: %w", ref, err)
	}
	return challenge, nil
}

func printChallenge(w io.Writer, c *beatsaver.Challenge) {
	title := c.SongName
	if c.SongSubName != "" {
		title += " " + c.SongSubName
	}
	fmt.Fprintf(w, "%s by %s (mapped by %s)\n", title, c.Author, c.Mapper)
	fmt.Fprintf(w, "Map: %s  Version: %s  BPM: %s\n", c.ID, c.Version, strconv.FormatFloat(c.BPM, 'f', -1, 64))
	fmt.Fprintf(w, "Download: %s\n", c.DirectDownload)
	if c.CoverURL != "" {
		fmt.Fprintf(w, "Cover: %s\n", c.CoverURL)
	}

	characteristics := make([]string, 0, len(c.Characteristics))
	for name := range c.Characteristics {
		characteristics = append(characteristics, name)
	}
	slices.Sort(characteristics)

	var rows [][]string
	for _, name := range characteristics {
		byDifficulty := c.Characteristics[name]
		levels := make([]string, 0, len(byDifficulty))
		for level := range byDifficulty {
			levels = append(levels, level)
		}
		slices.SortFunc(levels, func(a, b string) int {
			return difficultyRank(a) - difficultyRank(b)
		})
		for _, level := range levels {
			diff := byDifficulty[level]
			rows = append(rows, []string{
				characteristicLabel(name),
				level,
				strconv.Itoa(diff.Notes),
				strconv.FormatFloat(diff.NPS, 'f', 2, 64),
				strconv.FormatFloat(diff.NJS, 'f', -1, 64),
			})
		}
	}
	fmt.Fprintln(w, renderTable(
		[]string{"Characteristic", "Difficulty", "Notes", "NPS", "NJS"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight},
	))
}

var difficultyOrder = []string{"Easy", "Normal", "Hard", "Expert", "ExpertPlus"}

func difficultyRank(level string) int {
	if i := slices.Index(difficultyOrder, level); i >= 0 {
		return i
	}
	return len(difficultyOrder)
}
