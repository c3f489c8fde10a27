package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	yamlv3 "gopkg.in/yaml.v3"

	"github.com/msageha/contentbook/internal/activity"
	"github.com/msageha/contentbook/internal/client"
	"github.com/msageha/contentbook/internal/control"
	"github.com/msageha/contentbook/internal/crowdsource"
	"github.com/msageha/contentbook/internal/events"
	"github.com/msageha/contentbook/internal/notify"
	"github.com/msageha/contentbook/internal/setup"
	"github.com/msageha/contentbook/internal/sim"
)

const version = "0.3.0"

type globalFlags struct {
	dir  string
	book string
}

func main() {
	if err := newRootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	var g globalFlags
	root := &cobra.Command{
		Use:          "contentbook",
		Short:        "Query the content book from the command line",
		SilenceUsage: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.PersistentFlags().StringVar(&g.dir, "dir", "", "data directory (default: nearest .contentbook/)")
	root.PersistentFlags().StringVar(&g.book, "book", "", "content book fixture (default: <dir>/book.yaml)")

	root.AddCommand(
		newInitCmd(),
		newScanCmd(&g),
		newTrackCmd(&g),
		newRunCmd(&g),
		newStatusCmd(&g),
		&cobra.Command{
			Use:   "version",
			Short: "Show version",
			Run: func(cmd *cobra.Command, _ []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "contentbook %s\n", version)
			},
		},
	)
	return root
}

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init [project_dir]",
		Short: "Create " + setup.DataDir + "/ with a default config and sample book",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			project := "."
			if len(args) == 1 {
				project = args[0]
			}
			base, err := setup.Run(project)
			if err != nil {
				return fmt.Errorf("init: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Initialized %s\n", base)
			return nil
		},
	}
}

func newScanCmd(g *globalFlags) *cobra.Command {
	var firstPage, showUpdates bool
	cmd := &cobra.Command{
		Use:   "scan <type>",
		Short: "List the activities of one type",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := activity.ParseType(args[0])
			if err != nil {
				return err
			}
			dir, err := resolveDir(g)
			if err != nil {
				return err
			}
			params := control.ScanParams{Type: t.String(), FirstPageOnly: firstPage, ShowUpdates: showUpdates}

			res, err := remote(dir).Scan(cmd.Context(), params)
			if errors.Is(err, control.ErrNotRunning) {
				res, err = localScan(cmd.Context(), g, dir, cmd.ErrOrStderr(), t, params)
			}
			if err != nil {
				return fmt.Errorf("scan %s: %w", t, err)
			}
			return writeYAML(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().BoolVar(&firstPage, "first-page", false, "stop after the first page")
	cmd.Flags().BoolVar(&showUpdates, "show-updates", false, "report progress while scanning")
	return cmd
}

func localScan(ctx context.Context, g *globalFlags, dir string, stderr io.Writer, t activity.Type, p control.ScanParams) (control.ScanResult, error) {
	c, err := startClient(ctx, g, dir, stderr, "")
	if err != nil {
		return control.ScanResult{}, err
	}
	defer c.Shutdown()

	res, err := c.Service().Scan(ctx, t, activity.ScanOptions{
		ShowUpdates:   p.ShowUpdates,
		FirstPageOnly: p.FirstPageOnly,
	})
	printMessages(stderr, c.Notifications().Messages())
	if err != nil {
		return control.ScanResult{}, err
	}
	return control.NewScanResult(res), nil
}

func newTrackCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "track <type> <name>",
		Short: "Toggle tracking of an activity",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := activity.ParseType(args[0])
			if err != nil {
				return err
			}
			dir, err := resolveDir(g)
			if err != nil {
				return err
			}
			name := args[1]

			err = remote(dir).Track(cmd.Context(), control.TrackParams{Type: t.String(), Name: name})
			if errors.Is(err, control.ErrNotRunning) {
				err = localTrack(cmd.Context(), g, dir, cmd.ErrOrStderr(), t, name)
			}
			if err != nil {
				return fmt.Errorf("track %q: %w", name, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Toggled tracking of %s %q\n", t.Label(), name)
			return nil
		},
	}
}

func localTrack(ctx context.Context, g *globalFlags, dir string, stderr io.Writer, t activity.Type, name string) error {
	c, err := startClient(ctx, g, dir, stderr, "")
	if err != nil {
		return err
	}
	defer c.Shutdown()

	err = c.Service().Track(ctx, name, t)
	printMessages(stderr, c.Notifications().Messages())
	return err
}

func newStatusCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the state of the running client",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dir, err := resolveDir(g)
			if err != nil {
				return err
			}
			st, err := remote(dir).Status(cmd.Context())
			if err != nil {
				return fmt.Errorf("status: %w", err)
			}
			return writeYAML(cmd.OutOrStdout(), st)
		},
	}
}

func remote(dir string) *control.Client {
	return control.NewClient(filepath.Join(dir, control.SocketName))
}

// replay is a scripted lootrun fed to the telemetry collector.
type replay struct {
	Location crowdsource.Location `yaml:"location"`
	Task     string               `yaml:"task"`
	Beacons  []struct {
		Color    events.BeaconColor `yaml:"color"`
		Position events.Position    `yaml:"position"`
	} `yaml:"beacons"`
}

func newRunCmd(g *globalFlags) *cobra.Command {
	var replayPath string
	var duration time.Duration
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the client until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var r *replay
			if replayPath != "" {
				data, err := os.ReadFile(replayPath)
				if err != nil {
					return fmt.Errorf("read replay: %w", err)
				}
				r = &replay{}
				if err := yamlv3.Unmarshal(data, r); err != nil {
					return fmt.Errorf("parse replay: %w", err)
				}
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if duration > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, duration)
				defer cancel()
			}

			dir, err := resolveDir(g)
			if err != nil {
				return err
			}
			c, err := startClient(ctx, g, dir, cmd.ErrOrStderr(), filepath.Join(dir, control.SocketName))
			if err != nil {
				return err
			}
			if r != nil {
				if err := playLootrun(c, r); err != nil {
					c.Shutdown()
					return err
				}
			}
			c.Wait(ctx)

			if batches := c.Collector().Batches(); len(batches) > 0 {
				return writeYAML(cmd.OutOrStdout(), batches)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&replayPath, "replay", "", "lootrun replay to feed the telemetry collector")
	cmd.Flags().DurationVar(&duration, "for", 0, "stop after this long")
	return cmd
}

func playLootrun(c *client.Client, r *replay) error {
	task, err := crowdsource.ParseTaskType(r.Task)
	if err != nil {
		return err
	}
	c.Lootrun().Enter(r.Location)
	c.Lootrun().SetTask(task)
	for _, b := range r.Beacons {
		c.SelectBeacon(b.Color, b.Position)
	}
	return nil
}

func resolveDir(g *globalFlags) (string, error) {
	dir := g.dir
	if dir == "" {
		dir = findDataDir()
	}
	if dir == "" {
		return "", fmt.Errorf("%s/ directory not found; run 'contentbook init' first", setup.DataDir)
	}
	return dir, nil
}

func startClient(ctx context.Context, g *globalFlags, dir string, stderr io.Writer, socket string) (*client.Client, error) {
	cfg, rec, err := setup.LoadConfig(dir)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if rec != nil {
		source := "defaults"
		if rec.FromBackup {
			source = "backup"
		}
		fmt.Fprintf(stderr, "warning: config was unreadable, moved to %s and restored from %s\n", rec.QuarantinedTo, source)
	}

	bookPath := g.book
	if bookPath == "" {
		bookPath = filepath.Join(dir, setup.BookFile)
	}
	book, err := sim.LoadFixture(bookPath)
	if err != nil {
		return nil, err
	}

	c := client.New(cfg, client.Options{
		Dir:           dir,
		ConfigPath:    filepath.Join(dir, setup.ConfigFile),
		Book:          book,
		LogOutput:     stderr,
		ControlSocket: socket,
	})
	if err := c.Start(ctx); err != nil {
		c.Shutdown()
		return nil, err
	}
	return c, nil
}

// findDataDir searches for the data directory in the working directory and
// its ancestors.
func findDataDir() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		candidate := filepath.Join(dir, setup.DataDir)
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			return candidate
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

func printMessages(w io.Writer, msgs []notify.Message) {
	for _, m := range msgs {
		fmt.Fprintln(w, m.Styled().Strip())
	}
}

func writeYAML(w io.Writer, v any) error {
	enc := yamlv3.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return enc.Close()
}
