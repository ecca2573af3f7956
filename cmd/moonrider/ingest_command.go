package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/unsupervisednn/moonrider/internal/config"
	"github.com/unsupervisednn/moonrider/internal/export"
	"github.com/unsupervisednn/moonrider/internal/pipeline"
)

type ingestOutput struct {
	Generation   uint64              `json:"generation"`
	Version      string              `json:"version,omitempty"`
	Hash         string              `json:"hash,omitempty"`
	SongName     string              `json:"songName,omitempty"`
	SongAuthor   string              `json:"songAuthor,omitempty"`
	Mapper       string              `json:"mapper,omitempty"`
	Audio        any                 `json:"audio"`
	Difficulties []export.Difficulty `json:"difficulties"`
	ExportDir    string              `json:"exportDir,omitempty"`
}

func newIngestCommand(ctx *commandContext) *cobra.Command {
	var (
		req       pipeline.Request
		mapID     string
		outDir    string
		jsonOut   bool
		overwrite bool
	)

	cmd := &cobra.Command{
		Use:   "ingest [url]",
		Short: "Download an archive and resolve its audio, manifest and difficulties",
		Long: "Download a beatmap archive, recover its Info.dat and resolve every declared\n" +
			"difficulty. Pass an archive URL or --map to look the map up on BeatSaver.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.logger()
			if err != nil {
				return err
			}

			if len(args) == 1 {
				req.SourceURL = strings.TrimSpace(args[0])
			}
			if mapID != "" {
				challenge, err := lookupChallenge(cmd.Context(), ctx, logger, mapID, false)
				if err != nil {
					return err
				}
				resolved := challenge.Request()
				if req.SourceURL == "" {
					req.SourceURL = resolved.SourceURL
				}
				if req.Version == "" {
					req.Version = resolved.Version
				}
				if req.Hash == "" {
					req.Hash = resolved.Hash
				}
				if req.BeatsPerMinute == 0 {
					req.BeatsPerMinute = resolved.BeatsPerMinute
				}
			}
			if req.SourceURL == "" {
				return errors.New("an archive url or --map is required")
			}

			progress := newProgressPrinter(cmd.ErrOrStderr(), "Downloading")
			if jsonOut {
				progress = nil
			}
			msg, err := runIngest(cmd.Context(), cfg, logger, req, progress)
			if err != nil {
				return err
			}

			out := ingestOutput{
				Generation:   msg.Generation,
				Version:      msg.Version,
				Hash:         msg.Hash,
				Audio:        msg.Data.Audio,
				Difficulties: export.Difficulties(msg.Data),
			}
			if info := msg.Data.Info; info != nil {
				out.SongName = info.SongName
				out.SongAuthor = info.SongAuthorName
				out.Mapper = info.LevelAuthorName
			}
			if outDir != "" {
				summary, err := export.Write(outDir, msg.Data, export.Options{
					Version:   msg.Version,
					Hash:      msg.Hash,
					Overwrite: overwrite,
				})
				if err != nil {
					return fmt.Errorf("export: %w", err)
				}
				out.ExportDir = summary.Dir
			}

			if jsonOut {
				return writeJSON(cmd, out)
			}
			printIngestResult(cmd.OutOrStdout(), msg.Data, out)
			return nil
		},
	}

	cmd.Flags().StringVar(&req.Version, "version", "", "Content version recorded on the result")
	cmd.Flags().StringVar(&req.Hash, "hash", "", "Content hash recorded on the result")
	cmd.Flags().Float64Var(&req.BeatsPerMinute, "bpm", 0, "Tempo attached to every beatmap document")
	cmd.Flags().StringVar(&mapID, "map", "", "BeatSaver map id to resolve the archive from")
	cmd.Flags().StringVarP(&outDir, "out", "o", "", "Export the result into a folder under this directory")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Replace an existing export folder")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

// runIngest drives one generation through an in-process pipeline and
// returns its result message.
func runIngest(ctx context.Context, cfg *config.Config, logger *slog.Logger, req pipeline.Request, progress *progressPrinter) (pipeline.Message, error) {
	p := pipeline.NewFromConfig(cfg, logger, nil)

	runCtx, cancel := context.WithCancel(ctx)
	runErr := make(chan error, 1)
	go func() { runErr <- p.Run(runCtx) }()
	defer func() {
		cancel()
		for range p.Messages() {
		}
		<-runErr
	}()

	if err := p.Ingest(runCtx, req); err != nil {
		return pipeline.Message{}, err
	}
	defer progress.Done()

	for {
		select {
		case msg, ok := <-p.Messages():
			if !ok {
				return pipeline.Message{}, pipeline.ErrStopped
			}
			switch msg.Kind {
			case pipeline.KindProgress:
				progress.Update(msg.Fraction)
			case pipeline.KindResult:
				progress.Update(1)
				return msg, nil
			case pipeline.KindError:
				cause := msg.Err
				if cause == nil {
					cause = errors.New(msg.Reason)
				}
				return pipeline.Message{}, fmt.Errorf("ingest failed: %w", cause)
			}
		case <-ctx.Done():
			return pipeline.Message{}, ctx.Err()
		}
	}
}

func printIngestResult(w io.Writer, res *pipeline.Result, out ingestOutput) {
	if out.SongName != "" {
		line := out.SongName
		if out.SongAuthor != "" {
			line += " by " + out.SongAuthor
		}
		if out.Mapper != "" {
			line += " (mapped by " + out.Mapper + ")"
		}
		fmt.Fprintln(w, line)
	}
	if out.Version != "" {
		fmt.Fprintf(w, "Version: %s\n", out.Version)
	}
	if res.Audio != nil {
		fmt.Fprintf(w, "Audio: %s (%s, %s)\n", res.Audio.Name(), res.Audio.ContentType(), formatBytes(res.Audio.Size()))
	}
	fmt.Fprintln(w, renderDifficulties(out.Difficulties))
	if out.ExportDir != "" {
		fmt.Fprintf(w, "Exported to %s\n", out.ExportDir)
	}
}
