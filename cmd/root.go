package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/nyfy17/VitaMobile/internal/export"
	"github.com/nyfy17/VitaMobile/internal/lock"
	"github.com/nyfy17/VitaMobile/internal/logging"
	"github.com/nyfy17/VitaMobile/internal/models"
	"github.com/nyfy17/VitaMobile/internal/output"
	"github.com/nyfy17/VitaMobile/internal/session"
	"github.com/nyfy17/VitaMobile/internal/store"
)

// Package-level shared dependencies, initialized in cobra.OnInitialize.
var (
	ui        *output.UI
	dataStore store.Store
	reviewSes *session.Session
	logger    *zap.Logger
	closeLog  func() error

	verbose bool
	dryRun  bool
)

var rootCmd = &cobra.Command{
	Use:   "vita",
	Short: "Review AI email categorizations one at a time",
	Long: `vita walks through a snapshot of AI-categorized emails exported by the
desktop classifier. Approve, correct or skip each email; corrections are
saved after every step and exported as a dated JSON file for the desktop
to import.

Running bare 'vita' shows the review status.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	DisableAutoGenTag: true,
}

// Execute is the main entry point called from main.go.
func Execute(version, commit, date string) {
	buildVersion = version
	buildCommit = commit
	buildDate = date

	err := rootCmd.Execute()
	closeDeps()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig, initDeps)

	rootCmd.RunE = func(cmd *cobra.Command, args []string) error {
		return statusRun()
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output (also mirrors the log to stderr)")
	rootCmd.PersistentFlags().BoolVarP(&dryRun, "dry-run", "n", false, "Show what would happen without making changes")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.config/vita/config.yaml)")
}

func initConfig() {
	// If --config is explicitly set, use that file
	if cfgFile, _ := rootCmd.PersistentFlags().GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		dir, err := configDirFunc()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: cannot find home directory: %v\n", err)
			os.Exit(1)
		}
		viper.AddConfigPath(dir)
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("VITA")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	defaultStateDir, _ := configDirFunc()
	setDefaults(defaultStateDir)

	// Read config file if it exists (optional)
	_ = viper.ReadInConfig()
}

// setDefaults registers every config key's default relative to stateDir.
func setDefaults(stateDir string) {
	viper.SetDefault("state_dir", stateDir)
	viper.SetDefault("db_path", filepath.Join(stateDir, "vita.db"))
	viper.SetDefault("export.dir", ".")
	viper.SetDefault("export.device", export.DefaultDevice)
	viper.SetDefault("log.file", filepath.Join(stateDir, "logs", "vita.log"))
	viper.SetDefault("log.max_size_mb", 10)
	viper.SetDefault("log.max_backups", 3)
	viper.SetDefault("log.max_age_days", 28)
	viper.SetDefault("log.compress", false)
	viper.SetDefault("review.low_confidence", 50)
	viper.SetDefault("review.high_confidence", 80)
}

func initDeps() {
	ui = output.New()
	ui.Verbose = verbose
	ui.DryRun = dryRun

	// Store and logger are opened lazily so config/version run without them.
}

// closeDeps flushes the logger and closes the store.
func closeDeps() {
	reviewSes = nil
	if dataStore != nil {
		_ = dataStore.Close()
		dataStore = nil
	}
	if closeLog != nil {
		_ = closeLog()
		closeLog = nil
	}
	logger = nil
}

// getLogger returns the shared logger, building it on first call.
func getLogger() *zap.Logger {
	if logger != nil {
		return logger
	}
	logger, closeLog = logging.New(logging.Options{
		File:       viper.GetString("log.file"),
		MaxSizeMB:  viper.GetInt("log.max_size_mb"),
		MaxBackups: viper.GetInt("log.max_backups"),
		MaxAgeDays: viper.GetInt("log.max_age_days"),
		Compress:   viper.GetBool("log.compress"),
		Verbose:    verbose,
	})
	return logger
}

// getStore returns the shared store, initializing it on first call.
func getStore() (store.Store, error) {
	if dataStore != nil {
		return dataStore, nil
	}

	dbPath := viper.GetString("db_path")
	s, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := s.Migrate(context.Background()); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	dataStore = s
	return dataStore, nil
}

// getSession returns the shared session, resuming the saved review on
// first call.
func getSession(ctx context.Context) (*session.Session, error) {
	if reviewSes != nil {
		return reviewSes, nil
	}
	s, err := getStore()
	if err != nil {
		return nil, err
	}
	reviewSes = session.Open(ctx, s, session.WithLogger(getLogger()))
	return reviewSes, nil
}

func reviewLock() *lock.PIDFile {
	return lock.New(viper.GetString("state_dir"))
}

// checkUnlocked refuses one-shot mutations while an interactive front-end
// owns the session.
func checkUnlocked() error {
	if pid := reviewLock().Holder(); pid != 0 {
		return fmt.Errorf("%w (pid %d); finish there first", lock.ErrHeld, pid)
	}
	return nil
}

// acquireLock claims the session for a long-running front-end.
func acquireLock() (release func(), err error) {
	l := reviewLock()
	if err := l.Acquire(); err != nil {
		return nil, err
	}
	return func() {
		if err := l.Release(); err != nil {
			getLogger().Warn("release lock", zap.Error(err))
		}
	}, nil
}

// currentRecord returns the record under review with a hint attached to
// the idle and exhausted cases.
func currentRecord(sess *session.Session) (models.ReviewRecord, error) {
	rec, err := sess.Current()
	switch {
	case errors.Is(err, session.ErrNotLoaded):
		return rec, fmt.Errorf("%w: run 'vita load <file>' first", err)
	case errors.Is(err, session.ErrQueueExhausted):
		return rec, fmt.Errorf("%w: run 'vita export' to deliver corrections", err)
	}
	return rec, err
}

func exportDevice() string {
	if d := viper.GetString("export.device"); d != "" {
		return d
	}
	return export.DefaultDevice
}

func confidenceBands() (low, high int) {
	return viper.GetInt("review.low_confidence"), viper.GetInt("review.high_confidence")
}
