package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/xiaot623/negarena/internal/domain"
	"github.com/xiaot623/negarena/pkg/syncclient"
)

// loadSessionConfig reads a session config from a YAML (or JSON) file.
func loadSessionConfig(path string) (syncclient.SessionConfig, error) {
	var cfg syncclient.SessionConfig
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

func newStartCmd(a *app) *cobra.Command {
	var (
		file   string
		watch  bool
		stream bool
	)
	cmd := &cobra.Command{
		Use:   "start -f <config.yaml>",
		Short: "Start a negotiation or tournament",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadSessionConfig(file)
			if err != nil {
				return fmt.Errorf("start: %w", err)
			}
			resp, err := a.client().Start(cmd.Context(), cfg)
			if err != nil {
				return fmt.Errorf("start: %w", err)
			}
			if err := a.printStarted(cmd.OutOrStdout(), resp); err != nil {
				return err
			}
			if !watch {
				return nil
			}
			return a.watch(cmd, resp.ID, stream, 0)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "session config file (YAML or JSON)")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "follow the session until it ends")
	cmd.Flags().BoolVar(&stream, "stream", false, "follow over the push stream instead of polling")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newGetCmd(a *app) *cobra.Command {
	var since int
	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Show a session snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := a.client().Get(cmd.Context(), args[0], since)
			if err != nil {
				return fmt.Errorf("get: %w", err)
			}
			return a.printSnapshot(cmd.OutOrStdout(), snap)
		},
	}
	cmd.Flags().IntVar(&since, "since", 0, "only include events after this step")
	return cmd
}

func newListCmd(a *app) *cobra.Command {
	var (
		kind   string
		status string
		limit  int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List live sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sessions, err := a.client().List(cmd.Context(), syncclient.SessionFilter{
				Kind:   domain.SessionKind(kind),
				Status: domain.SessionStatus(status),
				Limit:  limit,
			})
			if err != nil {
				return fmt.Errorf("list: %w", err)
			}
			return a.printSummaries(cmd.OutOrStdout(), sessions)
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "", "filter by kind (negotiation or tournament)")
	cmd.Flags().StringVar(&status, "status", "", "filter by status")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of sessions")
	return cmd
}

func newWatchCmd(a *app) *cobra.Command {
	var (
		stream   bool
		interval time.Duration
	)
	cmd := &cobra.Command{
		Use:   "watch <id>",
		Short: "Follow a session until it ends",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.watch(cmd, args[0], stream, interval)
		},
	}
	cmd.Flags().BoolVar(&stream, "stream", false, "use the push stream instead of polling")
	cmd.Flags().DurationVar(&interval, "interval", 0, "poll interval (default depends on session kind)")
	return cmd
}

// watch replicates a session and prints every change, then the final state.
func (a *app) watch(cmd *cobra.Command, id string, stream bool, interval time.Duration) error {
	out := cmd.OutOrStdout()
	printed := 0
	onUpdate := func(v *syncclient.View) {
		printed = a.printProgress(out, v, printed)
	}

	var view *syncclient.View
	if stream {
		view = syncclient.NewView()
		if err := a.client().Follow(cmd.Context(), id, view, syncclient.StreamOptions{OnUpdate: onUpdate}); err != nil {
			return fmt.Errorf("watch: %w", err)
		}
	} else {
		p := syncclient.NewPoller(a.client(), id, syncclient.PollerOptions{Interval: interval, OnUpdate: onUpdate})
		view = p.View()
		if err := p.Run(cmd.Context()); err != nil {
			return fmt.Errorf("watch: %w", err)
		}
	}

	snap := view.Snapshot()
	return a.printFinal(out, &snap)
}

func newControlCmd(a *app, action, short string) *cobra.Command {
	return &cobra.Command{
		Use:   action + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := a.client()
			var (
				resp *syncclient.ControlResponse
				err  error
			)
			switch action {
			case "pause":
				resp, err = c.Pause(cmd.Context(), args[0])
			case "resume":
				resp, err = c.Resume(cmd.Context(), args[0])
			default:
				resp, err = c.Cancel(cmd.Context(), args[0])
			}
			if err != nil {
				return fmt.Errorf("%s: %w", action, err)
			}
			return a.printControl(cmd.OutOrStdout(), action, resp)
		},
	}
}

func newDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Drop a finished session from server memory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.client().Delete(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("delete: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted session %s\n", args[0])
			return nil
		},
	}
}

func newArchiveCmd(a *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "archive [id]",
		Short: "List archived sessions, or show one archived snapshot",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := a.client()
			if len(args) == 1 {
				snap, err := c.Archived(cmd.Context(), args[0])
				if err != nil {
					return fmt.Errorf("archive: %w", err)
				}
				return a.printSnapshot(cmd.OutOrStdout(), snap)
			}
			sessions, err := c.ListArchived(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("archive: %w", err)
			}
			return a.printSummaries(cmd.OutOrStdout(), sessions)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of sessions")
	return cmd
}
