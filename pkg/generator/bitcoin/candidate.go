package bitcoin

import (
	"io"

	"github.com/btcsuite/btcd/btcec/v2"

	"github.com/Amr-9/btcvanity/pkg/generator"
)

// Candidate is one generated address together with the key behind it.
type Candidate struct {
	Address string

	privKey *btcec.PrivateKey
}

// WIF encodes the candidate's private key. It is computed on demand since
// almost every candidate is discarded.
func (c Candidate) WIF() string {
	return PrivateKeyToWIF(c.privKey)
}

// NewCandidate generates a random key pair and encodes its address.
func NewCandidate(r io.Reader, format generator.AddressFormat) (Candidate, error) {
	privKey, pubKey, err := NewKeyPair(r)
	if err != nil {
		return Candidate{}, err
	}

	address, err := EncodeAddress(pubKey, format)
	if err != nil {
		return Candidate{}, err
	}

	return Candidate{Address: address, privKey: privKey}, nil
}
