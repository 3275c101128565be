package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	flag "github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/vocdoni/zkpoll/internal"
)

const (
	defaultAPIHost     = "0.0.0.0"
	defaultAPIPort     = 9090
	defaultLogLevel    = "info"
	defaultLogOutput   = "stdout"
	defaultDatadir     = ".zkpoll" // Will be prefixed with user's home directory
	defaultBlockPeriod = 12 * time.Second
)

// Version is the build version, set at build time with -ldflags
var Version = internal.Version

// Config holds the application configuration
type Config struct {
	Web3            Web3Config
	API             APIConfig
	Log             LogConfig
	Datadir         string
	VerificationKey string `mapstructure:"vkey"`
}

// Web3Config holds the block height source configuration. With an RPC
// endpoint, heights come from the chain; without one, a local simulated
// clock with the given block period is used.
type Web3Config struct {
	Rpc         string        `mapstructure:"rpc"`
	BlockPeriod time.Duration `mapstructure:"blockperiod"`
}

// APIConfig holds the API-specific configuration
type APIConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Output string `mapstructure:"output"`
}

// loadConfig loads configuration from flags, environment variables, and defaults
func loadConfig() (*Config, error) {
	v := viper.New()

	// Set up default values
	// Get user's home directory for default datadir
	userHomeDir, err := os.UserHomeDir()
	if err != nil {
		userHomeDir = "."
	}
	defaultDatadirPath := filepath.Join(userHomeDir, defaultDatadir)

	v.SetDefault("web3.rpc", "")
	v.SetDefault("web3.blockperiod", defaultBlockPeriod)
	v.SetDefault("api.host", defaultAPIHost)
	v.SetDefault("api.port", defaultAPIPort)
	v.SetDefault("log.level", defaultLogLevel)
	v.SetDefault("log.output", defaultLogOutput)
	v.SetDefault("datadir", defaultDatadirPath)
	v.SetDefault("vkey", "")

	// Configure flags
	flag.StringP("web3.rpc", "w", "", "web3 rpc endpoint for block heights (simulated clock if empty)")
	flag.Duration("web3.blockperiod", defaultBlockPeriod, "simulated block period (i.e 12s or 1m)")
	flag.StringP("api.host", "a", defaultAPIHost, "API host")
	flag.IntP("api.port", "p", defaultAPIPort, "API port")
	flag.StringP("log.level", "l", defaultLogLevel, "log level (debug, info, warn, error, fatal)")
	flag.StringP("log.output", "o", defaultLogOutput, "log output (stdout, stderr or filepath)")
	flag.StringP("datadir", "d", defaultDatadirPath, "data directory for database files")
	flag.StringP("vkey", "k", "", "path to the proof verification key file")

	// Configure usage information
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "zkpoll-node v%s\n\n", Version)
		fmt.Fprintf(os.Stderr, "Usage: zkpoll-node [flags]\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nEnvironment variables are also available with the same name as flags,\n")
		fmt.Fprintf(os.Stderr, "  except for dashes (-) and dots (.) which are replaced by underscores (_).\n")
		fmt.Fprintf(os.Stderr, "  For example, ZKPOLL_API_HOST or ZKPOLL_WEB3_RPC\n")
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  # Start with a simulated block clock and default settings\n")
		fmt.Fprintf(os.Stderr, "  zkpoll-node --vkey=verification.key\n\n")
		fmt.Fprintf(os.Stderr, "  # Start with chain-backed block heights\n")
		fmt.Fprintf(os.Stderr, "  zkpoll-node --vkey=verification.key --web3.rpc=https://rpc.example.com\n")
	}

	// Parse flags
	flag.CommandLine.SortFlags = false
	flag.Parse()

	// Configure Viper to use environment variables
	v.SetEnvPrefix("ZKPOLL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Bind flags to Viper
	if err := v.BindPFlags(flag.CommandLine); err != nil {
		return nil, fmt.Errorf("error binding flags: %w", err)
	}

	// Create config struct
	cfg := &Config{}

	// Unmarshal configuration into struct
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return cfg, nil
}

// validateConfig validates the loaded configuration
func validateConfig(cfg *Config) error {
	if cfg.Datadir == "" {
		return fmt.Errorf("data directory is required (use --datadir flag or ZKPOLL_DATADIR environment variable)")
	}
	if cfg.Web3.Rpc == "" && cfg.Web3.BlockPeriod <= 0 {
		return fmt.Errorf("block period must be positive when no web3 rpc endpoint is set")
	}
	return nil
}
