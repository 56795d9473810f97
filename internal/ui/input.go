package ui

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/Amr-9/btcvanity/pkg/generator"
	"github.com/Amr-9/btcvanity/pkg/generator/bitcoin"
)

// Prompter asks the user for search parameters.
type Prompter struct {
	in  *bufio.Reader
	out io.Writer
}

// NewPrompter creates a prompter reading answers from in.
func NewPrompter(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{in: bufio.NewReader(in), out: out}
}

func (p *Prompter) readLine() string {
	fmt.Fprintf(p.out, "\n    %s→%s ", ColorGreen, ColorReset)
	line, _ := p.in.ReadString('\n')
	return strings.TrimSpace(line)
}

// SelectFormat lists the address formats and returns the chosen one.
// Anything that is not a listed number selects Taproot.
func (p *Prompter) SelectFormat() generator.AddressFormat {
	fmt.Fprintf(p.out, "    %s₿ SELECT ADDRESS TYPE%s\n",
		ColorPurple+ColorBold, ColorReset)
	for i, format := range generator.Formats {
		fmt.Fprintf(p.out, "    %s[%d]%s %s %s- %s%s\n",
			ColorCyan, i+1, ColorReset, bitcoin.AddressLabel(format),
			ColorDim, bitcoin.AddressDescription(format), ColorReset)
	}

	choice, err := strconv.Atoi(p.readLine())
	if err != nil || choice < 1 || choice > len(generator.Formats) {
		choice = len(generator.Formats)
	}

	format := generator.Formats[choice-1]
	fmt.Fprintf(p.out, "    %s✓ %s Selected%s\n\n", ColorGreen,
		bitcoin.AddressLabel(format), ColorReset)

	return format
}

// GetPattern asks for the pattern and its position until the pattern only
// uses characters the format can produce.
func (p *Prompter) GetPattern(format generator.AddressFormat) (string,
	generator.Position) {

	charset := "Base58"
	if bitcoin.IsBech32Type(format) {
		charset = "Bech32"
	}

	var pattern string
	for {
		fmt.Fprintf(p.out, "    %s🔍 PATTERN%s %s(%s, case-insensitive)%s",
			ColorPurple+ColorBold, ColorReset, ColorDim, charset,
			ColorReset)
		pattern = p.readLine()

		invalid := bitcoin.InvalidChars(pattern, format)
		if len(invalid) == 0 {
			break
		}
		fmt.Fprintf(p.out, "    %s✗ Invalid characters %q%s\n\n",
			ColorRed, string(invalid), ColorReset)
	}

	fmt.Fprintf(p.out, "    %s📍 POSITION%s %s[1] start  [2] middle  [3] end%s",
		ColorPurple+ColorBold, ColorReset, ColorDim, ColorReset)

	position := generator.PositionStart
	switch p.readLine() {
	case "2", "middle":
		position = generator.PositionMiddle
	case "3", "end":
		position = generator.PositionEnd
	}

	return pattern, position
}

// AskToContinue prompts user to continue or exit
func (p *Prompter) AskToContinue() bool {
	fmt.Fprintf(p.out, "\n    %s[Enter]%s Continue searching  │  %s[Q]%s Exit\n",
		ColorGreen, ColorReset, ColorRed, ColorReset)
	input := strings.ToLower(p.readLine())
	return input != "q" && input != "quit" && input != "exit"
}
