package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/unsupervisednn/moonrider/internal/daemon"
	"github.com/unsupervisednn/moonrider/internal/daemonclient"
	"github.com/unsupervisednn/moonrider/internal/daemonrun"
	"github.com/unsupervisednn/moonrider/internal/export"
	"github.com/unsupervisednn/moonrider/internal/pipeline"
)

func newDaemonCommand(ctx *commandContext) *cobra.Command {
	var logLevel string
	var development bool

	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run the moonrider daemon in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return daemonrun.Run(cmd.Context(), cfg, daemonrun.Options{
				LogLevel:    logLevel,
				Development: development,
			})
		},
	}
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Override logging.level for this run")
	cmd.Flags().BoolVar(&development, "dev", false, "Include source locations in logs")
	return cmd
}

func newDaemonClientCommands(ctx *commandContext) []*cobra.Command {
	return []*cobra.Command{
		newStatusCommand(ctx),
		newSubmitCommand(ctx),
		newAbortCommand(ctx),
		newEventsCommand(ctx),
	}
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon and pipeline status",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.apiClient()
			if err != nil {
				return err
			}
			status, err := client.Status(cmd.Context())
			if err != nil {
				cfg, _ := ctx.ensureConfig()
				return wrapAPIError(err, ctx.apiBind(cfg))
			}
			if jsonOut {
				return writeJSON(cmd, status)
			}
			printStatus(cmd.OutOrStdout(), status)
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

func printStatus(w io.Writer, status daemon.Status) {
	rows := [][]string{
		{"Running", yesNo(status.Running)},
		{"PID", strconv.Itoa(status.PID)},
		{"API", status.APIAddress},
		{"Lock file", status.LockFilePath},
		{"Log file", status.LogPath},
		{"Generation", strconv.FormatUint(status.Pipeline.Generation, 10)},
		{"State", status.Pipeline.State.String()},
		{"Version", status.Pipeline.Version},
		{"Last event", strconv.FormatUint(status.LastEvent, 10)},
	}
	if !status.Pipeline.Updated.IsZero() {
		rows = append(rows, []string{"Updated", status.Pipeline.Updated.Local().Format(time.DateTime)})
	}
	fmt.Fprintln(w, renderTable([]string{"Field", "Value"}, rows, nil))
}

func newSubmitCommand(ctx *commandContext) *cobra.Command {
	var (
		cmdReq  pipeline.Command
		mapID   string
		wait    bool
		jsonOut bool
	)
	cmd := &cobra.Command{
		Use:   "submit [url]",
		Short: "Ask the daemon to ingest an archive, superseding any running ingestion",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.apiClient()
			if err != nil {
				return err
			}
			if len(args) == 1 {
				cmdReq.SourceURL = strings.TrimSpace(args[0])
			}
			if mapID != "" {
				logger, err := ctx.logger()
				if err != nil {
					return err
				}
				challenge, err := lookupChallenge(cmd.Context(), ctx, logger, mapID, false)
				if err != nil {
					return err
				}
				resolved := challenge.Request()
				if cmdReq.SourceURL == "" {
					cmdReq.SourceURL = resolved.SourceURL
				}
				if cmdReq.Version == "" {
					cmdReq.Version = resolved.Version
				}
				if cmdReq.Hash == "" {
					cmdReq.Hash = resolved.Hash
				}
				if cmdReq.BeatsPerMinute == 0 {
					cmdReq.BeatsPerMinute = resolved.BeatsPerMinute
				}
			}
			if cmdReq.SourceURL == "" {
				return errors.New("an archive url or --map is required")
			}

			var since, baseGeneration uint64
			if wait {
				status, err := client.Status(cmd.Context())
				if err != nil {
					cfg, _ := ctx.ensureConfig()
					return wrapAPIError(err, ctx.apiBind(cfg))
				}
				since = status.LastEvent
				baseGeneration = status.Pipeline.Generation
			}
			if err := client.Ingest(cmd.Context(), cmdReq); err != nil {
				cfg, _ := ctx.ensureConfig()
				return wrapAPIError(err, ctx.apiBind(cfg))
			}
			if !wait {
				fmt.Fprintln(cmd.OutOrStdout(), "Ingest request accepted")
				return nil
			}

			evt, err := waitForOutcome(cmd.Context(), client, since, baseGeneration, cmd.ErrOrStderr(), !jsonOut)
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd, evt)
			}
			return printOutcome(cmd.OutOrStdout(), evt)
		},
	}
	cmd.Flags().StringVar(&cmdReq.Version, "version", "", "Content version recorded on the result")
	cmd.Flags().StringVar(&cmdReq.Hash, "hash", "", "Content hash recorded on the result")
	cmd.Flags().Float64Var(&cmdReq.BeatsPerMinute, "bpm", 0, "Tempo attached to every beatmap document")
	cmd.Flags().StringVar(&mapID, "map", "", "BeatSaver map id to resolve the archive from")
	cmd.Flags().BoolVarP(&wait, "wait", "w", false, "Wait for the result or error")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output the outcome event as JSON")
	return cmd
}

// waitForOutcome follows the event stream from since until the first
// generation newer than baseGeneration reports a result or error.
func waitForOutcome(ctx context.Context, client *daemonclient.Client, since, baseGeneration uint64, progressOut io.Writer, showProgress bool) (daemon.Event, error) {
	var progress *progressPrinter
	if showProgress {
		progress = newProgressPrinter(progressOut, "Downloading")
	}
	defer progress.Done()

	var outcome daemon.Event
	var generation uint64
	err := client.Stream(ctx, daemonclient.EventQuery{Since: since}, true, func(evt daemon.Event) bool {
		if evt.Generation <= baseGeneration || evt.Generation < generation {
			return true
		}
		generation = evt.Generation
		if evt.Kind == pipeline.KindProgress {
			progress.Update(evt.Fraction)
			return true
		}
		outcome = evt
		return false
	})
	if err != nil {
		return daemon.Event{}, err
	}
	return outcome, nil
}

func printOutcome(w io.Writer, evt daemon.Event) error {
	if evt.Kind == pipeline.KindError {
		return fmt.Errorf("ingest failed: %s", evt.Error)
	}
	if evt.Result == nil {
		return fmt.Errorf("daemon returned %s event without a result", evt.Kind)
	}
	res := &pipeline.Result{Audio: evt.Result.Audio, Info: evt.Result.Info, Beats: evt.Result.Beats}
	if info := res.Info; info != nil && info.SongName != "" {
		fmt.Fprintln(w, info.SongName)
	}
	fmt.Fprintf(w, "Generation: %d  Version: %s\n", evt.Generation, evt.Version)
	fmt.Fprintf(w, "Audio: %s\n", evt.Result.AudioURL)
	fmt.Fprintln(w, renderDifficulties(export.Difficulties(res)))
	return nil
}

func newAbortCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "abort",
		Short: "Abort the daemon's running ingestion",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.apiClient()
			if err != nil {
				return err
			}
			if err := client.Abort(cmd.Context()); err != nil {
				cfg, _ := ctx.ensureConfig()
				return wrapAPIError(err, ctx.apiBind(cfg))
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Abort request accepted")
			return nil
		},
	}
}

func newEventsCommand(ctx *commandContext) *cobra.Command {
	var (
		follow  bool
		since   uint64
		limit   int
		jsonOut bool
	)
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Show recent daemon pipeline events",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.apiClient()
			if err != nil {
				return err
			}
			query := daemonclient.EventQuery{Since: since, Limit: limit, Tail: since == 0}
			err = client.Stream(cmd.Context(), query, follow, func(evt daemon.Event) bool {
				if jsonOut {
					_ = writeJSONLine(cmd, evt)
				} else {
					fmt.Fprintln(cmd.OutOrStdout(), formatEvent(evt))
				}
				return true
			})
			if err != nil && !errors.Is(err, context.Canceled) {
				cfg, _ := ctx.ensureConfig()
				return wrapAPIError(err, ctx.apiBind(cfg))
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep streaming new events")
	cmd.Flags().Uint64Var(&since, "since", 0, "Only show events after this sequence number")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum events per page")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output one JSON object per event")
	return cmd
}

func formatEvent(evt daemon.Event) string {
	var b strings.Builder
	fmt.Fprintf(&b, "#%d %s gen=%d %s", evt.Sequence, evt.Timestamp.Local().Format(time.TimeOnly), evt.Generation, evt.Kind)
	if evt.Version != "" {
		fmt.Fprintf(&b, " version=%s", evt.Version)
	}
	switch evt.Kind {
	case pipeline.KindProgress:
		fmt.Fprintf(&b, " %d%%", int(evt.Fraction*100))
	case pipeline.KindError:
		fmt.Fprintf(&b, " error=%q", evt.Error)
	case pipeline.KindResult:
		if evt.Result != nil {
			fmt.Fprintf(&b, " beats=%d audio=%s", len(evt.Result.Beats), evt.Result.AudioURL)
		}
	}
	return b.String()
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
