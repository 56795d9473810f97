package store

import (
	"io"
	"time"

	"github.com/lightningnetwork/lnd/tlv"

	"github.com/Amr-9/btcvanity/pkg/generator"
)

// Source names the entry point that produced a record.
type Source string

const (
	SourceAPI       Source = "api"
	SourceWebSocket Source = "websocket"
	SourceCLI       Source = "cli"
)

const (
	addressType    tlv.Type = 0
	privateKeyType tlv.Type = 1
	formatType     tlv.Type = 2
	patternType    tlv.Type = 3
	positionType   tlv.Type = 4
	attemptsType   tlv.Type = 5
	sourceType     tlv.Type = 6
	createdAtType  tlv.Type = 7
)

// Record is one stored search result.
type Record struct {
	ID         uint64
	Address    string
	PrivateKey string
	Format     generator.AddressFormat
	Pattern    string
	Position   generator.Position
	Attempts   uint64
	Source     Source
	CreatedAt  time.Time
}

// NewRecord builds a record for a found result.
func NewRecord(res *generator.Result, req *generator.Request,
	source Source) *Record {

	return &Record{
		Address:    res.Address,
		PrivateKey: res.PrivateKey,
		Format:     res.Format,
		Pattern:    req.Pattern,
		Position:   req.Position,
		Attempts:   res.Attempts,
		Source:     source,
	}
}

// Encode writes the record as a TLV stream. The id is the bucket key and is
// not part of the value.
func (r *Record) Encode(w io.Writer) error {
	var (
		address    = []byte(r.Address)
		privateKey = []byte(r.PrivateKey)
		format     = uint8(r.Format)
		pattern    = []byte(r.Pattern)
		position   = uint8(r.Position)
		attempts   = r.Attempts
		source     = []byte(r.Source)
		createdAt  = uint64(r.CreatedAt.UnixNano())
	)

	stream, err := tlv.NewStream(
		tlv.MakePrimitiveRecord(addressType, &address),
		tlv.MakePrimitiveRecord(privateKeyType, &privateKey),
		tlv.MakePrimitiveRecord(formatType, &format),
		tlv.MakePrimitiveRecord(patternType, &pattern),
		tlv.MakePrimitiveRecord(positionType, &position),
		tlv.MakePrimitiveRecord(attemptsType, &attempts),
		tlv.MakePrimitiveRecord(sourceType, &source),
		tlv.MakePrimitiveRecord(createdAtType, &createdAt),
	)
	if err != nil {
		return err
	}

	return stream.Encode(w)
}

// Decode reads a record written by Encode.
func (r *Record) Decode(rd io.Reader) error {
	var (
		address    []byte
		privateKey []byte
		format     uint8
		pattern    []byte
		position   uint8
		attempts   uint64
		source     []byte
		createdAt  uint64
	)

	stream, err := tlv.NewStream(
		tlv.MakePrimitiveRecord(addressType, &address),
		tlv.MakePrimitiveRecord(privateKeyType, &privateKey),
		tlv.MakePrimitiveRecord(formatType, &format),
		tlv.MakePrimitiveRecord(patternType, &pattern),
		tlv.MakePrimitiveRecord(positionType, &position),
		tlv.MakePrimitiveRecord(attemptsType, &attempts),
		tlv.MakePrimitiveRecord(sourceType, &source),
		tlv.MakePrimitiveRecord(createdAtType, &createdAt),
	)
	if err != nil {
		return err
	}
	if err := stream.Decode(rd); err != nil {
		return err
	}

	r.Address = string(address)
	r.PrivateKey = string(privateKey)
	r.Format = generator.AddressFormat(format)
	r.Pattern = string(pattern)
	r.Position = generator.Position(position)
	r.Attempts = attempts
	r.Source = Source(source)
	r.CreatedAt = time.Unix(0, int64(createdAt))

	return nil
}
