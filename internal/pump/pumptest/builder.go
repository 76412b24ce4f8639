// Package pumptest builds synthetic program-event log lines for tests.
package pumptest

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"

	"github.com/mr-tron/base58"
)

// Well-known valid base58 addresses usable as test fixtures.
const (
	Mint    = "So11111111111111111111111111111111111111112"
	Curve   = "9BB6NFEcjBCtnNLFko2FqVQBq8HHM13kCyYcdQbgpump"
	User    = "6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P"
	Creator = "TSLvdd1pWpHVjahSpsvCXUbgwsL3JAcvokwaKt1eokM"
)

var (
	CreateDisc   = []byte{27, 114, 169, 77, 222, 235, 99, 118}
	TradeDisc    = []byte{189, 219, 127, 211, 78, 230, 97, 238}
	CompleteDisc = []byte{95, 114, 97, 156, 212, 46, 152, 8}
)

// Builder assembles a binary event payload field by field.
type Builder struct {
	buf bytes.Buffer
}

// Disc appends an 8-byte event discriminator.
func (b *Builder) Disc(d []byte) *Builder {
	b.buf.Write(d)
	return b
}

// Str appends a length-prefixed string.
func (b *Builder) Str(s string) *Builder {
	binary.Write(&b.buf, binary.LittleEndian, uint32(len(s)))
	b.buf.WriteString(s)
	return b
}

// Pubkey appends the 32 raw bytes of a base58 address.
func (b *Builder) Pubkey(addr string) *Builder {
	raw, err := base58.Decode(addr)
	if err != nil || len(raw) != 32 {
		panic("pumptest: bad pubkey " + addr)
	}
	b.buf.Write(raw)
	return b
}

// U64 appends a little-endian uint64.
func (b *Builder) U64(v uint64) *Builder {
	binary.Write(&b.buf, binary.LittleEndian, v)
	return b
}

// I64 appends a little-endian int64.
func (b *Builder) I64(v int64) *Builder {
	binary.Write(&b.buf, binary.LittleEndian, v)
	return b
}

// Bool appends a single-byte boolean.
func (b *Builder) Bool(v bool) *Builder {
	if v {
		b.buf.WriteByte(1)
	} else {
		b.buf.WriteByte(0)
	}
	return b
}

// Bytes returns the raw payload.
func (b *Builder) Bytes() []byte {
	return b.buf.Bytes()
}

// LogLine returns the payload as a base64 "Program data: " log message.
func (b *Builder) LogLine() string {
	return "Program data: " + base64.StdEncoding.EncodeToString(b.buf.Bytes())
}

// CreateParams parameterizes a token creation event.
type CreateParams struct {
	Name, Symbol, URI          string
	Mint, Curve, User, Creator string
	Timestamp                  int64
	VirtualToken, VirtualSol   uint64
	RealToken, TotalSupply     uint64
}

// DefaultCreate returns a creation with the launchpad's initial curve.
func DefaultCreate(ts int64) CreateParams {
	return CreateParams{
		Name:         "Test Token",
		Symbol:       "TEST",
		URI:          "https://example.com/meta.json",
		Mint:         Mint,
		Curve:        Curve,
		User:         User,
		Creator:      Creator,
		Timestamp:    ts,
		VirtualToken: 1_073_000_000_000_000,
		VirtualSol:   30_000_000_000,
		RealToken:    793_100_000_000_000,
		TotalSupply:  1_000_000_000_000_000,
	}
}

// CreateLogLine builds a full creation event log message.
func CreateLogLine(p CreateParams) string {
	b := &Builder{}
	return b.Disc(CreateDisc).
		Str(p.Name).Str(p.Symbol).Str(p.URI).
		Pubkey(p.Mint).Pubkey(p.Curve).Pubkey(p.User).Pubkey(p.Creator).
		I64(p.Timestamp).
		U64(p.VirtualToken).U64(p.VirtualSol).
		U64(p.RealToken).U64(p.TotalSupply).
		LogLine()
}

// TradeParams parameterizes a trade event.
type TradeParams struct {
	Mint, User, Creator                          string
	SolAmount, TokenAmount                       uint64
	IsBuy                                        bool
	Timestamp                                    int64
	VirtualSol, VirtualToken, RealSol, RealToken uint64
	IxName                                       string
}

// DefaultTrade returns a small buy shortly after launch.
func DefaultTrade(ts int64) TradeParams {
	return TradeParams{
		Mint:         Mint,
		User:         User,
		Creator:      Creator,
		SolAmount:    1_000_000_000,
		TokenAmount:  30_000_000_000_000,
		IsBuy:        true,
		Timestamp:    ts,
		VirtualSol:   31_000_000_000,
		VirtualToken: 1_040_000_000_000_000,
		RealSol:      1_000_000_000,
		RealToken:    760_100_000_000_000,
		IxName:       "buy",
	}
}

// TradeLogLine builds a full trade event log message.
func TradeLogLine(p TradeParams) string {
	b := &Builder{}
	return b.Disc(TradeDisc).
		Pubkey(p.Mint).
		U64(p.SolAmount).U64(p.TokenAmount).Bool(p.IsBuy).
		Pubkey(p.User).I64(p.Timestamp).
		U64(p.VirtualSol).U64(p.VirtualToken).
		U64(p.RealSol).U64(p.RealToken).
		Pubkey(p.Creator).
		U64(100).U64(10_000_000).
		Pubkey(p.Creator).
		U64(50).U64(5_000_000).
		Bool(true).
		U64(0).U64(0).
		U64(p.SolAmount).
		I64(p.Timestamp).Str(p.IxName).
		LogLine()
}

// CompleteParams parameterizes a curve completion event.
type CompleteParams struct {
	Mint, Curve, User                            string
	Timestamp                                    int64
	VirtualSol, VirtualToken, RealSol, RealToken uint64
}

// DefaultComplete returns a completion at the graduation threshold.
func DefaultComplete(ts int64) CompleteParams {
	return CompleteParams{
		Mint:         Mint,
		Curve:        Curve,
		User:         User,
		Timestamp:    ts,
		VirtualSol:   115_005_359_057,
		VirtualToken: 279_900_000_000_000,
		RealSol:      85_005_359_057,
		RealToken:    0,
	}
}

// CompleteLogLine builds a full completion event log message.
func CompleteLogLine(p CompleteParams) string {
	b := &Builder{}
	return b.Disc(CompleteDisc).
		Pubkey(p.User).Pubkey(p.Mint).Pubkey(p.Curve).
		U64(p.VirtualSol).U64(p.VirtualToken).
		U64(p.RealSol).U64(p.RealToken).
		I64(p.Timestamp).
		LogLine()
}
