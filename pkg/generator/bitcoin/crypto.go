package bitcoin

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	"github.com/btcsuite/btcd/btcec/v2"

	"github.com/Amr-9/btcvanity/pkg/generator"
)

// PrivateKeySize is the length of a raw secp256k1 private key.
const PrivateKeySize = 32

// GeneratePrivateKey draws 32 bytes from r. A nil reader selects the OS
// CSPRNG.
func GeneratePrivateKey(r io.Reader) ([]byte, error) {
	if r == nil {
		r = rand.Reader
	}

	key := make([]byte, PrivateKeySize)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("reading random key: %w", err)
	}
	return key, nil
}

// DerivePublicKey multiplies the secp256k1 base point by priv.
// It fails with ErrInvalidScalar if priv is zero or >= the curve order.
func DerivePublicKey(priv []byte) (*btcec.PrivateKey, *btcec.PublicKey, error) {
	if len(priv) != PrivateKeySize {
		return nil, nil, fmt.Errorf("%w: want %d bytes, got %d",
			generator.ErrInvalidScalar, PrivateKeySize, len(priv))
	}

	var scalar btcec.ModNScalar
	if overflow := scalar.SetByteSlice(priv); overflow || scalar.IsZero() {
		return nil, nil, generator.ErrInvalidScalar
	}

	privKey, pubKey := btcec.PrivKeyFromBytes(priv)
	return privKey, pubKey, nil
}

// CompressPublicKey returns the 33-byte form: parity prefix (0x02/0x03)
// followed by X.
func CompressPublicKey(pub *btcec.PublicKey) []byte {
	return pub.SerializeCompressed()
}

// DecompressPublicKey parses a compressed or uncompressed serialization.
func DecompressPublicKey(b []byte) (*btcec.PublicKey, error) {
	return btcec.ParsePubKey(b)
}

// NewKeyPair generates a fresh key pair, regenerating on the (negligible)
// chance of an out-of-range scalar.
func NewKeyPair(r io.Reader) (*btcec.PrivateKey, *btcec.PublicKey, error) {
	for {
		raw, err := GeneratePrivateKey(r)
		if err != nil {
			return nil, nil, err
		}

		privKey, pubKey, err := DerivePublicKey(raw)
		if errors.Is(err, generator.ErrInvalidScalar) {
			continue
		}
		if err != nil {
			return nil, nil, err
		}
		return privKey, pubKey, nil
	}
}

// PrivateKeyToWIF converts a private key to Wallet Import Format (WIF).
// Uses compressed format (starts with K or L on mainnet).
func PrivateKeyToWIF(privKey *btcec.PrivateKey) string {
	// WIF = Base58Check(0x80 + privKey + 0x01)
	data := make([]byte, 34)
	data[0] = wifVersion
	copy(data[1:33], privKey.Serialize())
	data[33] = 0x01 // Compressed flag

	return Base58CheckEncode(data)
}
