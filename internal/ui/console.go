package ui

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/Amr-9/btcvanity/pkg/generator"
	"github.com/Amr-9/btcvanity/pkg/generator/bitcoin"
)

// ANSI color codes
const (
	ColorReset  = "\033[0m"
	ColorCyan   = "\033[36m"
	ColorGreen  = "\033[32m"
	ColorYellow = "\033[33m"
	ColorRed    = "\033[31m"
	ColorPurple = "\033[35m"
	ColorBold   = "\033[1m"
	ColorDim    = "\033[2m"
)

// Distinct symbols per pattern character once case is folded.
const (
	base58Symbols = 35
	bech32Symbols = 32
)

// ClearScreen clears the terminal
func ClearScreen() {
	fmt.Print("\033[H\033[2J")
}

// PrintWelcomeBanner shows the welcome screen
func PrintWelcomeBanner(version string) {
	fmt.Println()
	fmt.Printf("%s%s", ColorCyan, ColorBold)
	fmt.Println("  ╔══════════════════════════════════════════════════╗")
	fmt.Println("  ║   ₿  BTCVANITY                                   ║")
	fmt.Println("  ╠══════════════════════════════════════════════════╣")
	fmt.Printf("  ║%s   Bitcoin Vanity Address Search %s• v%-8s%s     ║\n",
		ColorYellow, ColorDim, version, ColorCyan+ColorBold)
	fmt.Println("  ╚══════════════════════════════════════════════════╝")
	fmt.Print(ColorReset)
	fmt.Println()
}

// PatternPreview renders where the pattern sits in an address of the
// requested format, e.g. "bc1qabc..." or "1...xyz".
func PatternPreview(req *generator.Request) string {
	prefix := bitcoin.AddressPrefix(req.Format)

	switch req.Position {
	case generator.PositionEnd:
		return prefix + "..." + req.Pattern
	case generator.PositionMiddle:
		return prefix + "..." + req.Pattern + "..."
	default:
		// The P2WPKH body starts with the 'q' already shown in the
		// prefix.
		if req.Format == generator.FormatNativeSegWit {
			prefix = "bc1"
		}
		return prefix + req.Pattern + "..."
	}
}

// PrintSearchInfo displays search configuration
func PrintSearchInfo(req *generator.Request, difficulty uint64) {
	fmt.Printf("\n    %s🚀 SEARCHING%s %s%s%s%s %s(1/%s)%s\n",
		ColorGreen+ColorBold, ColorReset,
		ColorBold, ColorCyan, PatternPreview(req), ColorReset,
		ColorDim, FormatNumber(difficulty), ColorReset)
	fmt.Printf("    %s%s%s\n\n", ColorDim, bitcoin.AddressLabel(req.Format),
		ColorReset)
}

// PrintWarnings lists pattern diagnostics.
func PrintWarnings(warnings []string) {
	for _, w := range warnings {
		fmt.Printf("    %s⚠ %s%s\n", ColorYellow, w, ColorReset)
	}
}

// ProgressRatio returns the probability of having found a match after the
// given number of attempts.
func ProgressRatio(attempts, difficulty uint64) float64 {
	diff := float64(difficulty)
	if diff == 0 {
		diff = 1
	}

	return 1.0 - math.Pow(0.5, 2.0*float64(attempts)/diff)
}

// PrintProgress shows animated progress bar
func PrintProgress(stats generator.Stats, difficulty uint64, frame int) {
	spinners := []string{"◐", "◓", "◑", "◒"}
	spinner := spinners[frame%len(spinners)]

	progress := ProgressRatio(stats.Attempts, difficulty)

	barWidth := 40
	filled := int(progress * float64(barWidth))
	if filled > barWidth {
		filled = barWidth
	}
	bar := strings.Repeat("▓", filled) + strings.Repeat("░", barWidth-filled)

	speedStr := FormatHashRate(stats.HashRate)

	fmt.Printf("\r    %s%s%s %s%s%s %s%s%s │ %s%s%s │ %s",
		ColorCyan, spinner, ColorReset,
		ColorDim, bar, ColorReset,
		ColorGreen+ColorBold, speedStr, ColorReset,
		ColorYellow, FormatNumber(stats.Attempts), ColorReset,
		FormatDuration(time.Duration(stats.ElapsedSecs*float64(time.Second))))
}

// FormatHashRate formats hash rate nicely
func FormatHashRate(rate float64) string {
	if rate >= 1000000 {
		return fmt.Sprintf("%.1fM/s", rate/1000000)
	}
	if rate >= 1000 {
		return fmt.Sprintf("%.1fK/s", rate/1000)
	}
	return fmt.Sprintf("%.0f/s", rate)
}

// PrintSuccess shows the found address
func PrintSuccess(result *generator.Result, elapsed time.Duration,
	outputFile string) {

	fmt.Printf("\n    %s%s╔══════════════════════════════════════════════════════════╗%s\n", ColorGreen, ColorBold, ColorReset)
	fmt.Printf("    %s%s║               ✨ ADDRESS FOUND! ✨                       ║%s\n", ColorGreen, ColorBold, ColorReset)
	fmt.Printf("    %s%s╚══════════════════════════════════════════════════════════╝%s\n\n", ColorGreen, ColorBold, ColorReset)

	fmt.Printf("    %s₿ %s%s\n", ColorCyan+ColorBold,
		strings.ToUpper(bitcoin.AddressLabel(result.Format)), ColorReset)
	fmt.Println()
	fmt.Printf("       %s%s%s%s\n", ColorGreen, ColorBold, result.Address, ColorReset)
	fmt.Println()

	fmt.Printf("    %s🔑 PRIVATE KEY (WIF)%s\n", ColorPurple+ColorBold, ColorReset)
	fmt.Printf("       %s%s%s\n\n", ColorYellow, result.PrivateKey, ColorReset)

	saved := outputFile
	if saved == "" {
		saved = "not saved"
	}
	fmt.Printf("    %s⏱   %s%s   %s│   %s📊  %s%s   %s│   %s💾  %s%s%s\n\n",
		ColorCyan, ColorReset+ColorBold, FormatDuration(elapsed),
		ColorDim,
		ColorPurple, ColorReset+ColorBold, FormatNumber(result.Attempts),
		ColorDim,
		ColorYellow, ColorReset+ColorBold, saved,
		ColorReset)
	fmt.Printf("    %s%s⚠  KEEP YOUR PRIVATE KEY SECRET!%s\n", ColorRed, ColorBold, ColorReset)
}

// PrintOutcome reports a search that ended without a match.
func PrintOutcome(outcome generator.Outcome, elapsed time.Duration) {
	label := "⚠ Cancelled"
	if outcome.Status == generator.StatusNotFound {
		label = "✗ Not found"
	}

	fmt.Printf("\n\n    %s%s%s │ %s attempts │ %s\n",
		ColorYellow+ColorBold, label, ColorReset,
		FormatNumber(outcome.Attempts), FormatDuration(elapsed))
	if outcome.Note != "" {
		fmt.Printf("    %s%s%s\n", ColorDim, outcome.Note, ColorReset)
	}
}

// PrintError reports a fatal error.
func PrintError(err error) {
	fmt.Printf("\n    %s✗ Error: %v%s\n", ColorRed, err, ColorReset)
}

// ClearLine clears the current line
func ClearLine() {
	fmt.Print("\r                                                                                              \r")
}

// EstimateDifficulty returns the expected number of attempts for a pattern.
// Matching is case-insensitive, so Base58 patterns draw from the folded
// alphabet. Middle patterns may start at any body offset.
func EstimateDifficulty(req *generator.Request) uint64 {
	if req.Pattern == "" {
		return 1
	}

	base := uint64(base58Symbols)
	if bitcoin.IsBech32Type(req.Format) {
		base = bech32Symbols
	}

	difficulty := uint64(1)
	for range req.Pattern {
		if difficulty > math.MaxUint64/base {
			return math.MaxUint64
		}
		difficulty *= base
	}

	if req.Position == generator.PositionMiddle {
		positions := uint64(middleSpan(req.Format) - len(req.Pattern) + 1)
		if positions > 1 {
			difficulty /= positions
		}
	}

	if difficulty == 0 {
		return 1
	}
	return difficulty
}

// middleSpan is the typical searchable body length of an address.
func middleSpan(format generator.AddressFormat) int {
	switch format {
	case generator.FormatNativeSegWit:
		return 39
	case generator.FormatTaproot:
		return 58
	default:
		return 33
	}
}

// FormatNumber adds commas to large numbers
func FormatNumber(n uint64) string {
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	}
	s := fmt.Sprintf("%d", n)
	result := make([]byte, 0, len(s)+(len(s)-1)/3)
	for i, c := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			result = append(result, ',')
		}
		result = append(result, byte(c))
	}
	return string(result)
}

// FormatDuration formats duration in a human-readable way
func FormatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm %ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh %dm", h, m)
}
