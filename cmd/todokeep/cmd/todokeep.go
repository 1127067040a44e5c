// Package cmd implements the todokeep command line interface: a thin façade
// over the task store, the backup managers, and the restore coordinator.
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/spf13/cobra"
	"todokeep/backup"
	"todokeep/drive"
	"todokeep/internal/authflow"
	"todokeep/internal/cli/prompt"
	"todokeep/internal/config"
	"todokeep/internal/credentials"
	"todokeep/internal/utils"
	"todokeep/kv"
	kvsqlite "todokeep/kv/sqlite"
	"todokeep/restore"
	"todokeep/snapshot"
	"todokeep/store"
)

// Version is set at build time
var Version = "dev"

// Config holds CLI configuration, with override points used by tests
type Config struct {
	ConfigPath string
	DBPath     string // Path to database file (for testing)
	NoPrompt   bool
	Verbose    bool

	DriveBaseURL string              // Override for testing
	Authorizer   drive.Authorizer    // Override for testing
	Keyring      credentials.Keyring // Override for testing
}

// Execute runs the CLI with the given arguments and IO writers
func Execute(args []string, stdout, stderr io.Writer, cfg *Config) int {
	rootCmd := NewTodoKeep(stdout, stderr, cfg)

	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	if err := rootCmd.Execute(); err != nil {
		_, _ = fmt.Fprintln(stderr, "Error:", err)
		return 1
	}
	return 0
}

// NewTodoKeep creates the root command with injectable IO
func NewTodoKeep(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	if cfg == nil {
		cfg = &Config{}
	}

	cmd := &cobra.Command{
		Use:     "todokeep",
		Short:   "A personal task tracker with local and Drive backups",
		Long:    "todokeep tracks tasks in local durable storage and backs them up to a local slot or to Google Drive.",
		Version: Version,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
				cfg.Verbose = true
			}
			if noPrompt, _ := cmd.Flags().GetBool("no-prompt"); noPrompt {
				cfg.NoPrompt = true
			}
			utils.SetVerboseMode(cfg.Verbose)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolP("no-prompt", "y", false, "Disable interactive prompts and confirm destructive actions")
	cmd.PersistentFlags().BoolP("verbose", "V", false, "Enable verbose/debug output")
	cmd.PersistentFlags().String("config", "", "Path to config file")
	cmd.PersistentFlags().String("db", "", "Path to database file")

	cmd.AddCommand(newAddCmd(stdout, cfg))
	cmd.AddCommand(newListCmd(stdout, cfg))
	cmd.AddCommand(newToggleCmd(stdout, cfg))
	cmd.AddCommand(newDeleteCmd(stdout, cfg))
	cmd.AddCommand(newBackupCmd(stdout, cfg))
	cmd.AddCommand(newBackupsCmd(stdout, cfg))
	cmd.AddCommand(newRestoreCmd(stdout, stderr, cfg))
	cmd.AddCommand(newSignOutCmd(stdout, cfg))
	cmd.AddCommand(newConfigCmd(stdout, cfg))

	return cmd
}

// app bundles the wired-up components behind the CLI
type app struct {
	cfg     *config.Config
	storage kv.Store
	tasks   *store.Store
	local   *backup.Manager
	creds   *credentials.Manager
	remote  *drive.Client
	coord   *restore.Coordinator
}

// newApp loads configuration and wires the component graph
func newApp(cmd *cobra.Command, cfg *Config) (*app, error) {
	configPath := cfg.ConfigPath
	if flagPath, _ := cmd.Flags().GetString("config"); flagPath != "" {
		configPath = flagPath
	}
	if configPath == "" {
		configPath = config.DefaultConfigPath()
	}

	fileCfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	dbPath := fileCfg.DBPath
	if cfg.DBPath != "" {
		dbPath = cfg.DBPath
	}
	if flagDB, _ := cmd.Flags().GetString("db"); flagDB != "" {
		dbPath = flagDB
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, err
	}

	storage, err := kvsqlite.New(dbPath)
	if err != nil {
		return nil, err
	}

	var credOpts []credentials.ManagerOption
	if cfg.Keyring != nil {
		credOpts = append(credOpts, credentials.WithKeyring(cfg.Keyring))
	}
	creds := credentials.NewManager(storage, credOpts...)

	authorizer := cfg.Authorizer
	if authorizer == nil {
		authorizer = authflow.New(fileCfg.Drive.ClientID, fileCfg.Drive.ClientSecret)
	}

	baseURL := fileCfg.Drive.BaseURL
	if cfg.DriveBaseURL != "" {
		baseURL = cfg.DriveBaseURL
	}

	remote := drive.New(drive.Config{
		BaseURL: baseURL,
		Timeout: fileCfg.DriveTimeout(),
	}, creds, authorizer)

	tasks := store.New(storage)
	local := backup.NewManager(storage)
	coord := restore.NewCoordinator(tasks, local, remote)
	coord.Subscribe(func(restored []store.Task) {
		utils.Debugf("restore applied, collection now holds %d tasks", len(restored))
	})

	return &app{
		cfg:     fileCfg,
		storage: storage,
		tasks:   tasks,
		local:   local,
		creds:   creds,
		remote:  remote,
		coord:   coord,
	}, nil
}

// Close releases the app's resources
func (a *app) Close() error {
	return a.storage.Close()
}

// newAddCmd creates the 'add' subcommand
func newAddCmd(stdout io.Writer, cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:           "add <title>",
		Short:         "Add a task",
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, cfg)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			title := joinArgs(args)
			task, err := a.tasks.Add(context.Background(), title)
			if err != nil {
				return friendlyError(err)
			}

			_, _ = fmt.Fprintf(stdout, "Added %s: %s\n", task.ID, task.Title)
			return nil
		},
	}
}

// newListCmd creates the 'list' subcommand
func newListCmd(stdout io.Writer, cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "list",
		Short:         "List tasks, newest first",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, cfg)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			tasks, err := a.tasks.List(context.Background())
			if err != nil {
				return friendlyError(err)
			}

			filter, _ := cmd.Flags().GetString("filter")
			tasks = filterTasks(tasks, filter)

			sort.SliceStable(tasks, func(i, j int) bool {
				return tasks[i].CreatedAt > tasks[j].CreatedAt
			})

			if len(tasks) == 0 {
				_, _ = fmt.Fprintln(stdout, "No tasks")
				return nil
			}
			for _, t := range tasks {
				_, _ = fmt.Fprintf(stdout, "%s %s  %s\n", checkbox(t.Completed), t.ID, t.Title)
			}
			return nil
		},
	}

	cmd.Flags().StringP("filter", "f", "all", "Filter tasks: all, active, or completed")
	return cmd
}

// newToggleCmd creates the 'toggle' subcommand
func newToggleCmd(stdout io.Writer, cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:           "toggle <id>",
		Short:         "Toggle a task's completed flag",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, cfg)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			task, err := a.tasks.ToggleComplete(context.Background(), args[0])
			if err != nil {
				return friendlyError(err)
			}

			_, _ = fmt.Fprintf(stdout, "%s %s  %s\n", checkbox(task.Completed), task.ID, task.Title)
			return nil
		},
	}
}

// newDeleteCmd creates the 'delete' subcommand
func newDeleteCmd(stdout io.Writer, cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:           "delete <id>",
		Short:         "Delete a task",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, cfg)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			removed, err := a.tasks.Delete(context.Background(), args[0])
			if err != nil {
				return friendlyError(err)
			}

			if removed {
				_, _ = fmt.Fprintf(stdout, "Deleted %s\n", args[0])
			} else {
				_, _ = fmt.Fprintf(stdout, "No task with id %s\n", args[0])
			}
			return nil
		},
	}
}

// newBackupCmd creates the 'backup' subcommand
func newBackupCmd(stdout io.Writer, cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "backup",
		Short:         "Snapshot the task collection to the local slot or to Drive",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, cfg)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			ctx := context.Background()
			tasks, err := a.tasks.List(ctx)
			if err != nil {
				return friendlyError(err)
			}

			remote, _ := cmd.Flags().GetBool("remote")
			if !remote {
				snap, err := a.local.Backup(ctx, tasks)
				if err != nil {
					return friendlyError(err)
				}
				_, _ = fmt.Fprintf(stdout, "Backed up %d tasks locally at %s\n", len(snap.Tasks), snap.Timestamp)
				return nil
			}

			now := time.Now()
			data, snap, err := snapshot.Encode(tasks, now)
			if err != nil {
				return friendlyError(err)
			}

			desc, err := a.remote.Upload(ctx, data, snapshot.BackupName(now))
			if err != nil {
				return friendlyError(err)
			}
			_, _ = fmt.Fprintf(stdout, "Uploaded %d tasks to Drive as %s (file %s)\n", len(snap.Tasks), desc.Name, desc.FileID)
			return nil
		},
	}

	cmd.Flags().BoolP("remote", "r", false, "Upload the snapshot to Google Drive instead of the local slot")
	return cmd
}

// newBackupsCmd creates the 'backups' subcommand
func newBackupsCmd(stdout io.Writer, cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:           "backups",
		Short:         "List remote backups, newest first",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, cfg)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			descriptors, err := a.remote.List(context.Background())
			if err != nil {
				return friendlyError(err)
			}

			if len(descriptors) == 0 {
				_, _ = fmt.Fprintln(stdout, "No remote backups")
				return nil
			}
			for _, d := range descriptors {
				_, _ = fmt.Fprintf(stdout, "%s  %s  %s\n", d.FileID, d.ModifiedTime.Format(time.RFC3339), d.Name)
			}
			return nil
		},
	}
}

// newRestoreCmd creates the 'restore' subcommand
func newRestoreCmd(stdout io.Writer, stderr io.Writer, cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "restore [fileId]",
		Short:         "Replace the task collection with a backup (destructive)",
		Long:          "Restore replaces the live task collection with the chosen snapshot. Without a fileId the local backup slot is used.",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, cfg)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			src := restore.Local()
			if len(args) == 1 {
				src = restore.Remote(args[0])
			}

			assume, _ := cmd.Flags().GetBool("yes")
			confirmer := &prompt.Confirmer{
				Reader:   cmd.InOrStdin(),
				Writer:   stderr,
				NoPrompt: cfg.NoPrompt,
				Assume:   assume || cfg.NoPrompt,
			}
			ok, err := confirmer.Confirm(fmt.Sprintf("Restoring from %s replaces all current tasks. Continue?", src))
			if err != nil {
				return err
			}
			if !ok {
				_, _ = fmt.Fprintln(stdout, "Restore cancelled")
				return nil
			}

			result, err := a.coord.RestoreFrom(context.Background(), src)
			if err != nil {
				return friendlyError(err)
			}

			_, _ = fmt.Fprintf(stdout, "Restored %d tasks from %s snapshot taken at %s\n",
				result.Applied, result.Source, result.Snapshot.Timestamp)
			return nil
		},
	}

	cmd.Flags().Bool("yes", false, "Skip the confirmation prompt")
	return cmd
}

// newSignOutCmd creates the 'signout' subcommand
func newSignOutCmd(stdout io.Writer, cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:           "signout",
		Short:         "Forget the cached Drive token",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, cfg)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			if err := a.remote.SignOut(context.Background()); err != nil {
				return friendlyError(err)
			}
			_, _ = fmt.Fprintln(stdout, "Signed out")
			return nil
		},
	}
}

// newConfigCmd creates the 'config' subcommand
func newConfigCmd(stdout io.Writer, cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "config",
		Short:         "Manage configuration",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(&cobra.Command{
		Use:           "init",
		Short:         "Write a sample config file",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := cfg.ConfigPath
			if flagPath, _ := cmd.Flags().GetString("config"); flagPath != "" {
				path = flagPath
			}
			if path == "" {
				path = config.DefaultConfigPath()
			}
			if err := config.WriteSample(path); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(stdout, "Wrote sample config to %s\n", path)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:           "theme <light|dark>",
		Short:         "Persist the UI theme preference",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			theme := args[0]
			if theme != "light" && theme != "dark" {
				return fmt.Errorf("unknown theme: %s (use light or dark)", theme)
			}

			a, err := newApp(cmd, cfg)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			if err := a.storage.Set(context.Background(), kv.KeyThemePreference, []byte(theme)); err != nil {
				return friendlyError(err)
			}
			_, _ = fmt.Fprintf(stdout, "Theme set to %s\n", theme)
			return nil
		},
	})

	return cmd
}

// checkbox renders a completed flag
func checkbox(completed bool) string {
	if completed {
		return "[x]"
	}
	return "[ ]"
}

// joinArgs joins title words passed as separate arguments
func joinArgs(args []string) string {
	title := args[0]
	for _, arg := range args[1:] {
		title += " " + arg
	}
	return title
}

// filterTasks applies the list filter from the UI layer's vocabulary
func filterTasks(tasks []store.Task, filter string) []store.Task {
	switch filter {
	case "active":
		out := make([]store.Task, 0, len(tasks))
		for _, t := range tasks {
			if !t.Completed {
				out = append(out, t)
			}
		}
		return out
	case "completed":
		out := make([]store.Task, 0, len(tasks))
		for _, t := range tasks {
			if t.Completed {
				out = append(out, t)
			}
		}
		return out
	default:
		return tasks
	}
}
