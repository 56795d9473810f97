// Package config holds the daemon configuration: defaults, the optional
// INI file and command line flags, in that order of precedence.
package config

import (
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strings"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	flags "github.com/jessevdk/go-flags"

	"github.com/Amr-9/btcvanity/pkg/generator/cpu"
)

const (
	defaultConfigFilename = "btcvanity.conf"
	defaultDataDirname    = "data"
	defaultLogDirname     = "logs"
	defaultLogFilename    = "btcvanity.log"
	defaultLogLevel       = "info"
	defaultListen         = "localhost:8000"
	defaultMaxLogFiles    = 3
	defaultMaxLogFileSize = 10

	// maxWorkers bounds explicitly configured worker counts.
	maxWorkers = 256

	// minPollInterval keeps parallel progress from flooding consumers.
	minPollInterval = 10 * time.Millisecond
)

var (
	// DefaultHomeDir is the default directory for all btcvanity files.
	DefaultHomeDir = btcutil.AppDataDir("btcvanity", false)

	// DefaultConfigFile is the default path of the INI config file.
	DefaultConfigFile = filepath.Join(DefaultHomeDir, defaultConfigFilename)

	// defaultAllowedOrigins are the development front ends the API is
	// usually paired with.
	defaultAllowedOrigins = []string{
		"http://localhost:3000", "http://localhost:5173",
	}
)

// Search configures the search engine.
type Search struct {
	Workers           int           `long:"workers" description:"Number of parallel search workers; 0 selects min(NumCPU, 8)"`
	BatchSize         int           `long:"batchsize" description:"Candidates generated between cancellation checks"`
	ProgressEvery     int           `long:"progressevery" description:"Sequential search progress interval in attempts"`
	PollInterval      time.Duration `long:"pollinterval" description:"Parallel search progress interval"`
	ParallelThreshold int           `long:"parallelthreshold" description:"Pattern length from which parallel search is used"`
}

// EngineConfig converts the options into a search engine configuration.
func (s *Search) EngineConfig() cpu.Config {
	return cpu.Config{
		BatchSize:     s.BatchSize,
		ProgressEvery: s.ProgressEvery,
		Workers:       s.Workers,
		PollInterval:  s.PollInterval,
	}
}

// Validate checks the search options.
func (s *Search) Validate() error {
	switch {
	case s.Workers < 0 || s.Workers > maxWorkers:
		return fmt.Errorf("workers must be between 0 and %d, got %d",
			maxWorkers, s.Workers)

	case s.BatchSize <= 0:
		return fmt.Errorf("batchsize must be positive, got %d",
			s.BatchSize)

	case s.ProgressEvery <= 0:
		return fmt.Errorf("progressevery must be positive, got %d",
			s.ProgressEvery)

	case s.PollInterval < minPollInterval:
		return fmt.Errorf("pollinterval must be at least %v, got %v",
			minPollInterval, s.PollInterval)

	case s.ParallelThreshold <= 0:
		return fmt.Errorf("parallelthreshold must be positive, got %d",
			s.ParallelThreshold)
	}

	return nil
}

// DefaultSearch returns the default search options.
func DefaultSearch() Search {
	return Search{
		BatchSize:         cpu.DefaultBatchSize,
		ProgressEvery:     cpu.DefaultProgressEvery,
		PollInterval:      cpu.DefaultPollInterval,
		ParallelThreshold: cpu.DefaultParallelThreshold,
	}
}

// Config is the daemon configuration.
type Config struct {
	ShowVersion bool `short:"V" long:"version" description:"Display version information and exit"`

	HomeDir    string `long:"homedir" description:"The base directory that contains btcvanity's data, logs, configuration file, etc."`
	ConfigFile string `short:"C" long:"configfile" description:"Path to configuration file"`
	DataDir    string `short:"b" long:"datadir" description:"The directory to store the result database in"`
	LogDir     string `long:"logdir" description:"Directory to log output"`

	MaxLogFiles    int    `long:"maxlogfiles" description:"Maximum logfiles to keep (0 for no rotation)"`
	MaxLogFileSize int    `long:"maxlogfilesize" description:"Maximum logfile size in MB"`
	DebugLevel     string `short:"d" long:"debuglevel" description:"Logging level for all subsystems {trace, debug, info, warn, error, critical} -- You may also specify <subsystem>=<level>,<subsystem2>=<level>,... to set the log level for individual subsystems"`

	Listen         string   `long:"listen" description:"Address to serve the HTTP and WebSocket API on"`
	AllowedOrigins []string `long:"allowedorigin" description:"Origin allowed to open WebSocket sessions; use * to allow all"`
	NoResultStore  bool     `long:"noresultstore" description:"Do not persist found addresses"`

	Search Search `group:"search" namespace:"search"`

	// configFileErr records why the config file could not be read.
	configFileErr error
}

// DefaultConfig returns all default values for the Config struct.
func DefaultConfig() Config {
	return Config{
		HomeDir:        DefaultHomeDir,
		ConfigFile:     DefaultConfigFile,
		DataDir:        filepath.Join(DefaultHomeDir, defaultDataDirname),
		LogDir:         filepath.Join(DefaultHomeDir, defaultLogDirname),
		MaxLogFiles:    defaultMaxLogFiles,
		MaxLogFileSize: defaultMaxLogFileSize,
		DebugLevel:     defaultLogLevel,
		Listen:         defaultListen,
		AllowedOrigins: append([]string(nil), defaultAllowedOrigins...),
		Search:         DefaultSearch(),
	}
}

// Load initializes and parses the config using a config file and command
// line options.
//
// The configuration proceeds as follows:
//  1. Start with a default config with sane settings
//  2. Pre-parse the command line to check for an alternative config file
//  3. Load configuration file overwriting defaults with any specified options
//  4. Parse CLI options and overwrite/add any specified options
//
// A missing config file is not an error, see ConfigFileWarning.
func Load(args []string) (*Config, error) {
	preCfg := DefaultConfig()
	if _, err := flags.ParseArgs(&preCfg, args); err != nil {
		return nil, err
	}
	if preCfg.ShowVersion {
		return &preCfg, nil
	}

	// A custom home dir moves the default config file along with it.
	homeDir := CleanAndExpandPath(preCfg.HomeDir)
	configFilePath := CleanAndExpandPath(preCfg.ConfigFile)
	if homeDir != DefaultHomeDir && configFilePath == DefaultConfigFile {
		configFilePath = filepath.Join(homeDir, defaultConfigFilename)
	}

	var configFileErr error
	cfg := preCfg
	if err := flags.IniParse(configFilePath, &cfg); err != nil {
		// Only a malformed file is fatal.
		if _, ok := err.(*flags.IniError); ok {
			return nil, err
		}
		configFileErr = err
	}

	// Command line options take precedence over the file.
	if _, err := flags.ParseArgs(&cfg, args); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.configFileErr = configFileErr

	return &cfg, nil
}

// ConfigFileWarning returns the error that prevented reading the config
// file, if any. It is meant to be logged once logging is set up.
func (c *Config) ConfigFileWarning() error {
	return c.configFileErr
}

// Validate normalizes paths and checks the option values.
func (c *Config) Validate() error {
	homeDir := CleanAndExpandPath(c.HomeDir)
	if homeDir != DefaultHomeDir {
		if c.DataDir == filepath.Join(DefaultHomeDir, defaultDataDirname) {
			c.DataDir = filepath.Join(homeDir, defaultDataDirname)
		}
		if c.LogDir == filepath.Join(DefaultHomeDir, defaultLogDirname) {
			c.LogDir = filepath.Join(homeDir, defaultLogDirname)
		}
	}
	c.HomeDir = homeDir
	c.DataDir = CleanAndExpandPath(c.DataDir)
	c.LogDir = CleanAndExpandPath(c.LogDir)

	switch {
	case c.Listen == "":
		return fmt.Errorf("listen address must be set")

	case c.MaxLogFiles < 0:
		return fmt.Errorf("maxlogfiles must not be negative, got %d",
			c.MaxLogFiles)

	case c.MaxLogFileSize <= 0:
		return fmt.Errorf("maxlogfilesize must be positive, got %d",
			c.MaxLogFileSize)

	case c.DebugLevel == "":
		return fmt.Errorf("debuglevel must be set")
	}

	if err := c.Search.Validate(); err != nil {
		return fmt.Errorf("invalid search options: %w", err)
	}

	return nil
}

// LogFile returns the path of the rotating log file.
func (c *Config) LogFile() string {
	return filepath.Join(c.LogDir, defaultLogFilename)
}

// AllowAnyOrigin reports whether the origin allow list contains "*".
func (c *Config) AllowAnyOrigin() bool {
	for _, origin := range c.AllowedOrigins {
		if origin == "*" {
			return true
		}
	}
	return false
}

// IsHelp reports whether err is the go-flags help request.
func IsHelp(err error) bool {
	e, ok := err.(*flags.Error)
	return ok && e.Type == flags.ErrHelp
}

// CleanAndExpandPath expands environment variables and leading ~ in the
// passed path, cleans the result, and returns it.
func CleanAndExpandPath(path string) string {
	if path == "" {
		return ""
	}

	// Expand initial ~ to OS specific home directory.
	if strings.HasPrefix(path, "~") {
		var homeDir string
		u, err := user.Current()
		if err == nil {
			homeDir = u.HomeDir
		} else {
			homeDir = os.Getenv("HOME")
		}

		path = strings.Replace(path, "~", homeDir, 1)
	}

	return filepath.Clean(os.ExpandEnv(path))
}
