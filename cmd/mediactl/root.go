package main

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/abduss/tribute/internal/config"
)

// VersionInfo is stamped at build time.
type VersionInfo struct {
	Version string
	Commit  string
}

type app struct {
	cfg         config.Config
	log         *zap.Logger
	sqlitePath  string
	storageRoot string
	verbose     bool
}

// NewRootCommand builds the mediactl command tree.
func NewRootCommand(info VersionInfo) *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:   "mediactl",
		Short: "Operate the tribute media pipeline",
		Long: `mediactl inspects, imports and (re)processes tribute media.

By default it talks to the PostgreSQL database and disks configured through
the environment. With --sqlite it runs self-contained against an embedded
database and filesystem disks under --storage-root.`,
		SilenceErrors: true,
		SilenceUsage:  true,

		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
	}

	cmd.PersistentFlags().StringVar(&a.sqlitePath, "sqlite", "", "path to an embedded SQLite metadata database")
	cmd.PersistentFlags().StringVar(&a.storageRoot, "storage-root", "./storage", "root directory for filesystem disks in --sqlite mode")
	cmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")

	cmd.Version = fmt.Sprintf("%s (%s)", info.Version, info.Commit)

	cmd.AddCommand(
		newMigrateCommand(a),
		newImportCommand(a),
		newListCommand(a),
		newProcessCommand(a),
		newReprocessCommand(a),
		newEncodeCommand(a),
		newProbeCommand(a),
		newVersionCommand(info),
	)

	return cmd
}

func (a *app) init() error {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	a.cfg = cfg

	// Logs go to stderr so command output stays machine readable.
	logCfg := zap.NewProductionConfig()
	logCfg.Encoding = "console"
	logCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logCfg.OutputPaths = []string{"stderr"}
	logCfg.ErrorOutputPaths = []string{"stderr"}
	logCfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	if a.verbose {
		logCfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}

	log, err := logCfg.Build()
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	a.log = log
	return nil
}

func newVersionCommand(info VersionInfo) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the mediactl version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "mediactl %s (%s)\n", info.Version, info.Commit)
			return nil
		},
	}
}
