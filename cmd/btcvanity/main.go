// Command btcvanity searches for a Bitcoin vanity address from the terminal.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync/atomic"
	"syscall"
	"time"

	flags "github.com/jessevdk/go-flags"
	"github.com/lightningnetwork/lnd/fn/v2"

	"github.com/Amr-9/btcvanity/internal/build"
	"github.com/Amr-9/btcvanity/internal/config"
	"github.com/Amr-9/btcvanity/internal/store"
	"github.com/Amr-9/btcvanity/internal/ui"
	"github.com/Amr-9/btcvanity/pkg/generator"
	"github.com/Amr-9/btcvanity/pkg/generator/bitcoin"
	"github.com/Amr-9/btcvanity/pkg/generator/cpu"
)

const (
	version    = "1.0"
	updateRate = 33 * time.Millisecond
)

type options struct {
	Type        string `short:"t" long:"type" default:"p2tr" description:"Address type {p2pkh, p2sh-p2wpkh, p2wpkh, p2tr}"`
	Pattern     string `short:"p" long:"pattern" description:"Pattern to search for; prompts interactively when empty"`
	Position    string `long:"position" default:"start" description:"Where the pattern must appear {start, middle, end}"`
	MaxAttempts uint64 `short:"n" long:"maxattempts" description:"Give up after this many candidates; 0 searches until found"`
	Workers     int    `short:"w" long:"workers" description:"Number of parallel workers; 0 selects min(NumCPU, 8)"`
	Threshold   int    `long:"parallelthreshold" default:"4" description:"Pattern length from which the search runs in parallel"`
	Output      string `short:"o" long:"output" default:"wallet.txt" description:"File the found key is written to; empty to skip"`
	DataDir     string `long:"datadir" description:"Also record found addresses in the result database in this directory"`
	DebugLevel  string `short:"d" long:"debuglevel" default:"warn" description:"Logging level for all subsystems"`

	HighPriority bool `long:"highpriority" description:"Raise the process priority while searching (Windows only)"`
}

func main() {
	var opts options
	if _, err := flags.Parse(&opts); err != nil {
		if config.IsHelp(err) {
			os.Exit(0)
		}
		os.Exit(1)
	}

	if err := run(&opts); err != nil {
		ui.PrintError(err)
		os.Exit(1)
	}
}

func run(opts *options) error {
	logMgr := build.NewLogManager(os.Stderr, true)
	logMgr.Register(cpu.Subsystem, cpu.UseLogger)
	logMgr.Register(store.Subsystem, store.UseLogger)
	if err := logMgr.ParseAndSetDebugLevels(opts.DebugLevel); err != nil {
		return err
	}

	if opts.HighPriority {
		if err := raisePriority(); err != nil {
			fmt.Printf("    %s⚠ Unable to raise priority: %v%s\n",
				ui.ColorYellow, err, ui.ColorReset)
		}
	}

	var results *store.Store
	if opts.DataDir != "" {
		dbPath := filepath.Join(
			config.CleanAndExpandPath(opts.DataDir), store.DefaultDBName,
		)

		var err error
		results, err = store.Open(dbPath, store.DefaultOpenTimeout)
		if err != nil {
			return err
		}
		defer results.Close()
	}

	engine := cpu.NewEngine(cpu.Config{Workers: opts.Workers}, opts.Threshold)

	ui.ClearScreen()
	ui.PrintWelcomeBanner(version)

	interactive := opts.Pattern == ""
	prompter := ui.NewPrompter(os.Stdin, os.Stdout)

	for {
		req, err := buildRequest(opts, prompter)
		if err != nil {
			return err
		}

		if err := search(engine, req, opts, results); err != nil {
			return err
		}

		if !interactive || !prompter.AskToContinue() {
			return nil
		}
		fmt.Println()
	}
}

// buildRequest assembles the search request from the flags, or from the
// prompter when no pattern was given.
func buildRequest(opts *options, prompter *ui.Prompter) (*generator.Request,
	error) {

	req := &generator.Request{AttemptLimit: fn.None[uint64]()}
	if opts.MaxAttempts > 0 {
		req.AttemptLimit = fn.Some(opts.MaxAttempts)
	}

	if opts.Pattern == "" {
		req.Format = prompter.SelectFormat()
		req.Pattern, req.Position = prompter.GetPattern(req.Format)
		return req, nil
	}

	format, err := bitcoin.ParseFormat(opts.Type)
	if err != nil {
		return nil, err
	}
	position, err := generator.ParsePosition(opts.Position)
	if err != nil {
		return nil, err
	}
	req.Format = format
	req.Pattern = opts.Pattern
	req.Position = position

	return req, nil
}

// search runs one request to completion, drawing progress until it ends.
func search(engine *cpu.Engine, req *generator.Request, opts *options,
	results *store.Store) error {

	ctx, cancel := signal.NotifyContext(
		context.Background(), syscall.SIGINT, syscall.SIGTERM,
	)
	defer cancel()

	ui.PrintWarnings(bitcoin.PatternWarnings(req.Pattern, req.Format,
		req.Position))
	difficulty := ui.EstimateDifficulty(req)
	ui.PrintSearchInfo(req, difficulty)

	var attempts atomic.Uint64
	hooks := generator.Hooks{
		Progress: func(n uint64, _ string) {
			attempts.Store(n)
		},
	}

	type searchResult struct {
		outcome generator.Outcome
		err     error
	}
	done := make(chan searchResult, 1)

	startTime := time.Now()
	go func() {
		outcome, err := engine.Search(ctx, req, hooks)
		done <- searchResult{outcome: outcome, err: err}
	}()

	ticker := time.NewTicker(updateRate)
	defer ticker.Stop()

	for frame := 0; ; frame++ {
		select {
		case <-ticker.C:
			stats := generator.NewStats(
				attempts.Load(), time.Since(startTime),
			)
			ui.PrintProgress(stats, difficulty, frame)

		case res := <-done:
			ui.ClearLine()
			if res.err != nil {
				return res.err
			}

			elapsed := time.Since(startTime)
			if res.outcome.Status != generator.StatusFound {
				ui.PrintOutcome(res.outcome, elapsed)
				return nil
			}

			found := res.outcome.Result
			outputFile := opts.Output
			if outputFile != "" {
				if err := saveResult(outputFile, found, elapsed); err != nil {
					fmt.Printf("    %s⚠ Save failed: %v%s\n",
						ui.ColorYellow, err, ui.ColorReset)
					outputFile = ""
				}
			}
			ui.PrintSuccess(found, elapsed, outputFile)

			if results != nil {
				rec := store.NewRecord(found, req, store.SourceCLI)
				if err := results.Save(rec); err != nil {
					return fmt.Errorf("unable to store result: %w",
						err)
				}
			}

			return nil
		}
	}
}

// saveResult writes the result to a file
func saveResult(outputFile string, result *generator.Result,
	elapsed time.Duration) error {

	if result == nil {
		return errors.New("no result to save")
	}

	content := fmt.Sprintf(`Bitcoin Vanity Address
======================

Type:        %s
Address:     %s
Private Key: %s (WIF, compressed)

Statistics:
  Time:     %s
  Attempts: %s

Generated: %s

⚠️ WARNING: Keep this private key secret and secure!
`, bitcoin.AddressLabel(result.Format), result.Address, result.PrivateKey,
		ui.FormatDuration(elapsed), ui.FormatNumber(result.Attempts),
		time.Now().Format("2006-01-02 15:04:05"))

	return os.WriteFile(outputFile, []byte(content), 0600)
}
