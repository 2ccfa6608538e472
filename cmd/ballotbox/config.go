package main

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	flag "github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/vocdoni/zk-ballotbox/db"
	"github.com/vocdoni/zk-ballotbox/db/metadb"
	"github.com/vocdoni/zk-ballotbox/log"
)

const (
	defaultAPIHost       = "0.0.0.0"
	defaultAPIPort       = 9090
	defaultDBType        = db.TypePebble
	defaultLogLevel      = "info"
	defaultLogOutput     = "stdout"
	defaultDatadir       = ".ballotbox" // Will be prefixed with user's home directory
	defaultStatsInterval = time.Minute
)

// Version is the build version, set at build time with -ldflags
var Version = "dev"

// Config holds the application configuration
type Config struct {
	API       APIConfig
	DB        DBConfig
	Log       LogConfig
	Verifiers VerifiersConfig
	Elections ElectionsConfig
	Stats     StatsConfig
	Datadir   string
}

// APIConfig holds the API-specific configuration
type APIConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// DBConfig selects the storage backend
type DBConfig struct {
	Type string `mapstructure:"type"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Output     string `mapstructure:"output"`
	DisableAPI bool   `mapstructure:"disableapi"`
}

// VerifiersConfig locates the Groth16 verifying keys referenced by elections
type VerifiersConfig struct {
	Dir string `mapstructure:"dir"`
}

// ElectionsConfig holds the defaults applied to new elections
type ElectionsConfig struct {
	StrictPaths bool `mapstructure:"strictpaths"`
}

// StatsConfig holds the election stats monitor configuration
type StatsConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

// loadConfig loads configuration from flags, environment variables, and defaults
func loadConfig() (*Config, error) {
	v := viper.New()

	// Get user's home directory for default datadir
	userHomeDir, err := os.UserHomeDir()
	if err != nil {
		userHomeDir = "."
	}
	defaultDatadirPath := filepath.Join(userHomeDir, defaultDatadir)

	v.SetDefault("api.host", defaultAPIHost)
	v.SetDefault("api.port", defaultAPIPort)
	v.SetDefault("db.type", defaultDBType)
	v.SetDefault("log.level", defaultLogLevel)
	v.SetDefault("log.output", defaultLogOutput)
	v.SetDefault("log.disableAPI", false)
	v.SetDefault("elections.strictPaths", true)
	v.SetDefault("stats.interval", defaultStatsInterval)
	v.SetDefault("datadir", defaultDatadirPath)

	// Configure flags
	flag.StringP("api.host", "a", defaultAPIHost, "API host")
	flag.IntP("api.port", "p", defaultAPIPort, "API port")
	flag.String("db.type", defaultDBType, fmt.Sprintf("database backend %v", metadb.Types))
	flag.StringP("log.level", "l", defaultLogLevel, "log level (debug, info, warn, error, fatal)")
	flag.StringP("log.output", "o", defaultLogOutput, "log output (stdout, stderr or filepath)")
	flag.Bool("log.disableAPI", false, "disable the API request logging")
	flag.String("verifiers.dir", "", "directory holding the Groth16 verifying keys (defaults to <datadir>/verifiers)")
	flag.Bool("elections.strictPaths", true, "require registration paths to match the stored tree, for elections that do not set it")
	flag.Duration("stats.interval", defaultStatsInterval, "interval between election stats logs (0 disables them)")
	flag.StringP("datadir", "d", defaultDatadirPath, "data directory for database and storage files")

	// Configure usage information
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "ballotbox v%s\n\n", Version)
		fmt.Fprintf(os.Stderr, "Usage: ballotbox [flags]\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nEnvironment variables are also available with the same name as flags,\n")
		fmt.Fprintf(os.Stderr, "  except for dots (.) which are replaced by underscores (_).\n")
		fmt.Fprintf(os.Stderr, "  For example, BALLOTBOX_API_PORT or BALLOTBOX_DB_TYPE\n")
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  # Start with default settings\n")
		fmt.Fprintf(os.Stderr, "  ballotbox\n\n")
		fmt.Fprintf(os.Stderr, "  # Start on a custom port with an in-memory database\n")
		fmt.Fprintf(os.Stderr, "  ballotbox --api.port=8080 --db.type=inmem\n\n")
		fmt.Fprintf(os.Stderr, "  # Store elections in MongoDB (MONGODB_URL must be set)\n")
		fmt.Fprintf(os.Stderr, "  ballotbox --db.type=mongodb --datadir=ballotbox\n")
	}

	// Parse flags
	flag.CommandLine.SortFlags = false
	flag.Parse()

	// Configure Viper to use environment variables
	v.SetEnvPrefix("BALLOTBOX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Bind flags to Viper
	if err := v.BindPFlags(flag.CommandLine); err != nil {
		return nil, fmt.Errorf("error binding flags: %w", err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if cfg.Verifiers.Dir == "" {
		cfg.Verifiers.Dir = filepath.Join(cfg.Datadir, "verifiers")
	}
	return cfg, nil
}

// validateConfig validates the loaded configuration
func validateConfig(cfg *Config) error {
	if !slices.Contains(metadb.Types, cfg.DB.Type) {
		return fmt.Errorf("invalid db type %s, available types: %v", cfg.DB.Type, metadb.Types)
	}
	if cfg.API.Port < 0 || cfg.API.Port > 65535 {
		return fmt.Errorf("invalid API port %d", cfg.API.Port)
	}
	if cfg.Datadir == "" {
		return fmt.Errorf("datadir is required (use --datadir flag or BALLOTBOX_DATADIR environment variable)")
	}
	if cfg.Stats.Interval < 0 {
		return fmt.Errorf("invalid stats interval %s", cfg.Stats.Interval)
	}
	log.Debugw("configuration validated", "dbType", cfg.DB.Type, "datadir", cfg.Datadir)
	return nil
}
