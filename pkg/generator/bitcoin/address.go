package bitcoin

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcutil/bech32"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/mr-tron/base58"
	"golang.org/x/crypto/ripemd160"

	"github.com/Amr-9/btcvanity/pkg/generator"
)

const (
	p2pkhVersion = 0x00 // mainnet P2PKH
	p2shVersion  = 0x05 // mainnet P2SH
	wifVersion   = 0x80 // mainnet WIF

	// SegwitHRP is the human-readable part of mainnet segwit addresses.
	SegwitHRP = "bc"

	checksumLen = 4
)

// ErrChecksumMismatch is returned when a Base58Check payload fails
// verification.
var ErrChecksumMismatch = errors.New("base58check checksum mismatch")

// DeriveAddress derives the address of a raw private key in the given
// format. It is pure: the same key and format always give the same address.
func DeriveAddress(priv []byte, format generator.AddressFormat) (string, error) {
	if !format.Valid() {
		return "", fmt.Errorf("%w: %d", generator.ErrUnsupportedFormat, format)
	}

	_, pubKey, err := DerivePublicKey(priv)
	if err != nil {
		return "", err
	}

	return EncodeAddress(pubKey, format)
}

// EncodeAddress derives a Bitcoin address from a public key based on the
// address format.
func EncodeAddress(pubKey *btcec.PublicKey, format generator.AddressFormat) (string, error) {
	switch format {
	case generator.FormatLegacy:
		return deriveLegacyAddress(pubKey), nil
	case generator.FormatNestedSegWit:
		return deriveNestedSegWitAddress(pubKey), nil
	case generator.FormatNativeSegWit:
		return deriveNativeSegWitAddress(pubKey)
	case generator.FormatTaproot:
		return deriveTaprootAddress(pubKey)
	default:
		return "", fmt.Errorf("%w: %d", generator.ErrUnsupportedFormat, format)
	}
}

// deriveLegacyAddress creates a P2PKH (1...) address using Base58Check encoding.
// Legacy address = Base58Check(0x00 + HASH160(pubkey))
func deriveLegacyAddress(pubKey *btcec.PublicKey) string {
	pubKeyHash := Hash160(pubKey.SerializeCompressed())

	data := make([]byte, 21)
	data[0] = p2pkhVersion
	copy(data[1:], pubKeyHash)

	return Base58CheckEncode(data)
}

// deriveNestedSegWitAddress creates a P2SH-P2WPKH (3...) address.
// Address = Base58Check(0x05 + HASH160(0x0014 + HASH160(pubkey)))
func deriveNestedSegWitAddress(pubKey *btcec.PublicKey) string {
	pubKeyHash := Hash160(pubKey.SerializeCompressed())

	// Redeem script: OP_0 (0x00) + push 20 bytes (0x14) + pubkeyhash
	redeemScript := make([]byte, 22)
	redeemScript[0] = 0x00
	redeemScript[1] = 0x14
	copy(redeemScript[2:], pubKeyHash)

	data := make([]byte, 21)
	data[0] = p2shVersion
	copy(data[1:], Hash160(redeemScript))

	return Base58CheckEncode(data)
}

// deriveNativeSegWitAddress creates a P2WPKH (bc1q...) address.
// Address = Bech32(HRP="bc", version=0, HASH160(pubkey))
func deriveNativeSegWitAddress(pubKey *btcec.PublicKey) (string, error) {
	return encodeSegwit(0, Hash160(pubKey.SerializeCompressed()))
}

// deriveTaprootAddress creates a Taproot-shaped (bc1p...) address from the
// x-only coordinate of the internal key.
//
// NOTE: the BIP-341 TapTweak is NOT applied. The output has the shape of a
// P2TR address but commits to the untweaked key, so it is non-standard and
// must not be treated as spendable by key-path wallets.
func deriveTaprootAddress(pubKey *btcec.PublicKey) (string, error) {
	return encodeSegwit(1, schnorr.SerializePubKey(pubKey))
}

// encodeSegwit encodes a witness program, choosing Bech32 for version 0 and
// Bech32m for version 1+.
func encodeSegwit(version byte, program []byte) (string, error) {
	data, err := bech32.ConvertBits(program, 8, 5, true)
	if err != nil {
		return "", fmt.Errorf("converting witness program: %w", err)
	}
	data = append([]byte{version}, data...)

	if version == 0 {
		return bech32.Encode(SegwitHRP, data)
	}
	return bech32.EncodeM(SegwitHRP, data)
}

// Hash160 computes RIPEMD160(SHA256(data)).
func Hash160(data []byte) []byte {
	sha := sha256.Sum256(data)
	ripemd := ripemd160.New()
	ripemd.Write(sha[:])
	return ripemd.Sum(nil)
}

// Hash256 computes SHA256(SHA256(data)).
func Hash256(data []byte) []byte {
	return chainhash.DoubleHashB(data)
}

// Base58CheckEncode encodes data with a 4-byte checksum in Base58.
func Base58CheckEncode(data []byte) string {
	full := make([]byte, 0, len(data)+checksumLen)
	full = append(full, data...)
	full = append(full, Hash256(data)[:checksumLen]...)

	return base58.Encode(full)
}

// VerifyBase58Check decodes a Base58Check string and verifies its checksum.
// It returns the versioned payload without the checksum.
func VerifyBase58Check(s string) ([]byte, error) {
	raw, err := base58.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("decoding base58: %w", err)
	}
	if len(raw) <= checksumLen {
		return nil, fmt.Errorf("%w: payload too short", ErrChecksumMismatch)
	}

	payload, sum := raw[:len(raw)-checksumLen], raw[len(raw)-checksumLen:]
	if !bytes.Equal(Hash256(payload)[:checksumLen], sum) {
		return nil, ErrChecksumMismatch
	}
	return payload, nil
}
