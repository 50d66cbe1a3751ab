package main

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/jgoulah/bidgely/internal/adapter"
	"github.com/jgoulah/bidgely/internal/bidgely"
	"github.com/jgoulah/bidgely/internal/config"
	"github.com/jgoulah/bidgely/internal/database"
	"github.com/jgoulah/bidgely/internal/logging"
	"github.com/jgoulah/bidgely/internal/metrics"
	"github.com/jgoulah/bidgely/internal/utility"
)

var (
	cfgFile string
	dbPath  string
	verbose bool
	logJSON bool

	logger       zerolog.Logger
	registerOnce sync.Once
	registerErr  error
)

var rootCmd = &cobra.Command{
	Use:   "bidgely",
	Short: "Retrieve energy usage, cost and forecasts from the Bidgely usage service",
	Long: `bidgely logs in through your utility's portal and retrieves consumption, cost,
bill forecast and appliance breakdown data from the Bidgely usage service.
Reads can be stored in a local SQLite database and published to MQTT.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger = logging.New(os.Stderr, logging.Options{Verbose: verbose, JSON: logJSON})
		return registerUtilities()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "database file (default is ./data.db)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "log as JSON lines")
}

// registerUtilities adds the built-in backends to the default registry
func registerUtilities() error {
	registerOnce.Do(func() {
		registerErr = adapter.RegisterAll(utility.Default, logger)
	})
	return registerErr
}

// getConfigPath returns the config file path
func getConfigPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	return config.DefaultConfigPath()
}

// getDBPath returns the database file path (local directory)
func getDBPath() string {
	if dbPath != "" {
		return dbPath
	}
	return "data.db"
}

// loadConfig loads the configuration file
func loadConfig() (*config.Config, error) {
	return config.Load(getConfigPath())
}

// saveConfig saves the configuration file
func saveConfig(cfg *config.Config) error {
	return config.Save(getConfigPath(), cfg)
}

// openDB opens the database connection
func openDB() (*database.DB, error) {
	path := getDBPath()

	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	return database.New(path)
}

// newClient builds an unauthenticated client from the config
func newClient(cfg *config.Config, m *metrics.Collector) (*bidgely.Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", getConfigPath(), err)
	}
	u, err := utility.Resolve(cfg.Utility)
	if err != nil {
		return nil, err
	}

	return bidgely.New(u, cfg.Username, cfg.GetPassword(), cfg.AccountID, bidgely.Options{
		BaseURL:              cfg.BaseURL,
		HTTPClient:           &http.Client{Timeout: cfg.GetTimeout()},
		Logger:               logger,
		Metrics:              m,
		MaxConcurrency:       cfg.MaxConcurrency,
		IncludePartialWindow: cfg.IncludePartialWindow,
	})
}
