// Package build wires the btclog backend shared by every subsystem logger
// and the optional rotating log file.
package build

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/btcsuite/btclog/v2"
)

// NewSubLogger constructs a subsystem logger with genSubLogger, or a
// disabled logger when no generator is given. Packages call it from init so
// that logging is off until the entry point installs a backend.
func NewSubLogger(subsystem string,
	genSubLogger func(string) btclog.Logger) btclog.Logger {

	if genSubLogger != nil {
		return genSubLogger(subsystem)
	}
	return btclog.Disabled
}

// SubLoggers is a type that holds a map of subsystem loggers keyed by their
// subsystem name.
type SubLoggers map[string]btclog.Logger

// LogManager owns the root handler and every registered subsystem logger.
type LogManager struct {
	handler btclog.Handler

	mu      sync.Mutex
	loggers SubLoggers
}

// NewLogManager creates a manager writing to w.
func NewLogManager(w io.Writer, noTimestamps bool) *LogManager {
	var opts []btclog.HandlerOption
	if noTimestamps {
		opts = append(opts, btclog.WithNoTimestamp())
	}

	return &LogManager{
		handler: btclog.NewDefaultHandler(w, opts...),
		loggers: make(SubLoggers),
	}
}

// GenSubLogger creates a logger tagged with subsystem.
func (m *LogManager) GenSubLogger(subsystem string) btclog.Logger {
	return btclog.NewSLogger(m.handler.SubSystem(subsystem))
}

// Register creates the subsystem logger, hands it to useLogger and keeps it
// for later level changes.
func (m *LogManager) Register(subsystem string,
	useLogger func(btclog.Logger)) btclog.Logger {

	logger := NewSubLogger(subsystem, m.GenSubLogger)
	useLogger(logger)

	m.mu.Lock()
	m.loggers[subsystem] = logger
	m.mu.Unlock()

	return logger
}

// SupportedSubsystems returns the sorted names of all registered
// subsystems.
func (m *LogManager) SupportedSubsystems() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	subsystems := make([]string, 0, len(m.loggers))
	for name := range m.loggers {
		subsystems = append(subsystems, name)
	}
	sort.Strings(subsystems)

	return subsystems
}

// SetLogLevel assigns a level to one subsystem.
func (m *LogManager) SetLogLevel(subsystem string, level string) error {
	lvl, ok := btclog.LevelFromString(level)
	if !ok {
		return fmt.Errorf("invalid log level %q", level)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	logger, ok := m.loggers[subsystem]
	if !ok {
		return fmt.Errorf("unknown subsystem %q", subsystem)
	}
	logger.SetLevel(lvl)

	return nil
}

// ParseAndSetDebugLevels accepts either a single level applied to every
// subsystem ("debug") or a comma separated list of subsystem=level pairs
// ("CPUS=trace,JOBS=info").
func (m *LogManager) ParseAndSetDebugLevels(levels string) error {
	if !strings.Contains(levels, "=") {
		lvl, ok := btclog.LevelFromString(levels)
		if !ok {
			return fmt.Errorf("invalid log level %q", levels)
		}

		m.mu.Lock()
		for _, logger := range m.loggers {
			logger.SetLevel(lvl)
		}
		m.mu.Unlock()

		return nil
	}

	for _, pair := range strings.Split(levels, ",") {
		fields := strings.Split(pair, "=")
		if len(fields) != 2 {
			return fmt.Errorf("malformed subsystem level %q", pair)
		}

		err := m.SetLogLevel(
			strings.TrimSpace(fields[0]), strings.TrimSpace(fields[1]),
		)
		if err != nil {
			return err
		}
	}

	return nil
}
