// Package bitcoin provides Bitcoin vanity address generation support.
// Supports P2PKH (Legacy), P2SH-P2WPKH (Nested SegWit), P2WPKH (Native
// SegWit) and an untweaked, Taproot-shaped P2TR encoding.
package bitcoin

import (
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"

	"github.com/Amr-9/btcvanity/pkg/generator"
)

// ParseFormat maps a wire name (p2pkh, p2sh-p2wpkh, p2wpkh, p2tr) onto an
// AddressFormat.
func ParseFormat(s string) (generator.AddressFormat, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for _, f := range generator.Formats {
		if f.String() == name {
			return f, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", generator.ErrUnsupportedFormat, s)
}

// AddressPrefix returns the expected prefix for a Bitcoin address format.
func AddressPrefix(format generator.AddressFormat) string {
	switch format {
	case generator.FormatLegacy:
		return "1"
	case generator.FormatNestedSegWit:
		return "3"
	case generator.FormatNativeSegWit:
		return "bc1q"
	case generator.FormatTaproot:
		return "bc1p"
	default:
		return ""
	}
}

// AddressLabel returns a short human-readable name of an address format.
func AddressLabel(format generator.AddressFormat) string {
	switch format {
	case generator.FormatLegacy:
		return "Legacy (P2PKH)"
	case generator.FormatNestedSegWit:
		return "Nested SegWit (P2SH-P2WPKH)"
	case generator.FormatNativeSegWit:
		return "Native SegWit (P2WPKH)"
	case generator.FormatTaproot:
		return "Taproot (P2TR, untweaked)"
	default:
		return "Unknown"
	}
}

// AddressDescription returns a human-readable description of an address format.
func AddressDescription(format generator.AddressFormat) string {
	switch format {
	case generator.FormatLegacy:
		return "Legacy address starting with '1'"
	case generator.FormatNestedSegWit:
		return "SegWit wrapped in P2SH, starting with '3'"
	case generator.FormatNativeSegWit:
		return "Native SegWit address starting with 'bc1q'"
	case generator.FormatTaproot:
		return "Taproot-shaped address starting with 'bc1p'; the key is " +
			"not tweaked, so the output is non-standard"
	default:
		return "Unknown"
	}
}

// IsBech32Type returns true if the address format uses Bech32/Bech32m encoding.
func IsBech32Type(format generator.AddressFormat) bool {
	return format == generator.FormatNativeSegWit ||
		format == generator.FormatTaproot
}

// IsBase58Type returns true if the address format uses Base58Check encoding.
func IsBase58Type(format generator.AddressFormat) bool {
	return format == generator.FormatLegacy ||
		format == generator.FormatNestedSegWit
}

// DetectFormat decodes a mainnet address and reports its format. Base58
// addresses have their checksum verified.
func DetectFormat(address string) (generator.AddressFormat, error) {
	addr, err := btcutil.DecodeAddress(address, &chaincfg.MainNetParams)
	if err != nil {
		return 0, fmt.Errorf("decoding address: %w", err)
	}

	switch addr.(type) {
	case *btcutil.AddressPubKeyHash:
		return generator.FormatLegacy, nil
	case *btcutil.AddressScriptHash:
		return generator.FormatNestedSegWit, nil
	case *btcutil.AddressWitnessPubKeyHash:
		return generator.FormatNativeSegWit, nil
	case *btcutil.AddressTaproot:
		return generator.FormatTaproot, nil
	default:
		return 0, fmt.Errorf("%w: %T", generator.ErrUnsupportedFormat, addr)
	}
}
