package pump

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/mr-tron/base58"
)

const programDataPrefix = "Program data: "

// maxStringLen caps length-prefixed strings so a corrupt prefix cannot
// force a huge allocation.
const maxStringLen = 1024

var (
	createEventDiscriminator   = [8]byte{27, 114, 169, 77, 222, 235, 99, 118}
	tradeEventDiscriminator    = [8]byte{189, 219, 127, 211, 78, 230, 97, 238}
	completeEventDiscriminator = [8]byte{95, 114, 97, 156, 212, 46, 152, 8}
)

// ParseLogLine decodes a single transaction log message. Lines without
// the "Program data: " prefix and payloads with an unknown discriminator
// return (nil, nil). A recognized discriminator with an undecodable body
// returns ErrMalformedPayload.
func ParseLogLine(line string) (Event, error) {
	encoded, ok := strings.CutPrefix(line, programDataPrefix)
	if !ok {
		return nil, nil
	}

	payload, err := decodePayload(encoded)
	if err != nil {
		return nil, nil
	}
	return DecodeEvent(payload)
}

// ContainsProgramData reports whether any log line carries an event
// payload, decodable or not.
func ContainsProgramData(logs []string) bool {
	for _, line := range logs {
		if strings.HasPrefix(line, programDataPrefix) {
			return true
		}
	}
	return false
}

// decodePayload handles both encodings seen in the wild: base64 is the
// normal case, but some RPC providers hand back base58. The base64
// alphabet characters '+', '/' and '=' never appear in base58, so their
// presence decides.
func decodePayload(encoded string) ([]byte, error) {
	if strings.ContainsAny(encoded, "+/=") {
		return base64.StdEncoding.DecodeString(encoded)
	}
	raw, err := base58.Decode(encoded)
	if err != nil {
		// Strings that are not valid base58 fall back to base64.
		return base64.StdEncoding.DecodeString(encoded)
	}
	return raw, nil
}

// DecodeEvent decodes a raw event payload (discriminator plus body).
// Unknown discriminators return (nil, nil).
func DecodeEvent(payload []byte) (Event, error) {
	if len(payload) < 8 {
		return nil, nil
	}

	var disc [8]byte
	copy(disc[:], payload[:8])
	body := payload[8:]

	switch disc {
	case createEventDiscriminator:
		return decodeCreateEvent(body)
	case tradeEventDiscriminator:
		return decodeTradeEvent(body)
	case completeEventDiscriminator:
		return decodeCompleteEvent(body)
	default:
		return nil, nil
	}
}

func decodeCreateEvent(body []byte) (Event, error) {
	r := newPayloadReader(body)
	ev := &CreateEvent{
		Name:         r.readString(),
		Symbol:       r.readString(),
		URI:          r.readString(),
		Mint:         r.readPubkey(),
		BondingCurve: r.readPubkey(),
		User:         r.readPubkey(),
		Creator:      r.readPubkey(),
		Timestamp:    r.readInt64(),
	}
	ev.VirtualTokenReserves = r.readUint64()
	ev.VirtualSolReserves = r.readUint64()
	ev.RealTokenReserves = r.readUint64()
	ev.TokenTotalSupply = r.readUint64()
	if err := r.finish(); err != nil {
		return nil, fmt.Errorf("create event: %w", err)
	}
	ev.CurveOnCurve = IsOnCurve(ev.BondingCurve)
	return ev, nil
}

func decodeTradeEvent(body []byte) (Event, error) {
	r := newPayloadReader(body)
	ev := &TradeEvent{
		Mint:        r.readPubkey(),
		SolAmount:   r.readUint64(),
		TokenAmount: r.readUint64(),
		IsBuy:       r.readBool(),
		User:        r.readPubkey(),
		Timestamp:   r.readInt64(),
	}
	ev.VirtualSolReserves = r.readUint64()
	ev.VirtualTokenReserves = r.readUint64()
	ev.RealSolReserves = r.readUint64()
	ev.RealTokenReserves = r.readUint64()
	ev.FeeRecipient = r.readPubkey()
	ev.FeeBasisPoints = r.readUint64()
	ev.Fee = r.readUint64()
	ev.Creator = r.readPubkey()
	ev.CreatorFeeBasisPoints = r.readUint64()
	ev.CreatorFee = r.readUint64()
	ev.TrackVolume = r.readBool()
	ev.TotalUnclaimedTokens = r.readUint64()
	ev.TotalClaimedTokens = r.readUint64()
	ev.CurrentSolVolume = r.readUint64()
	ev.LastUpdateTimestamp = r.readInt64()
	ev.IxName = r.readString()
	if err := r.finish(); err != nil {
		return nil, fmt.Errorf("trade event: %w", err)
	}
	return ev, nil
}

func decodeCompleteEvent(body []byte) (Event, error) {
	r := newPayloadReader(body)
	ev := &CompleteEvent{
		User:         r.readPubkey(),
		Mint:         r.readPubkey(),
		BondingCurve: r.readPubkey(),
	}
	ev.VirtualSolReserves = r.readUint64()
	ev.VirtualTokenReserves = r.readUint64()
	ev.RealSolReserves = r.readUint64()
	ev.RealTokenReserves = r.readUint64()
	ev.Timestamp = r.readInt64()
	if err := r.finish(); err != nil {
		return nil, fmt.Errorf("complete event: %w", err)
	}
	return ev, nil
}

// payloadReader walks a little-endian event body. The first failed read
// poisons the reader; finish reports it once.
type payloadReader struct {
	buf *bytes.Reader
	err error
}

func newPayloadReader(body []byte) *payloadReader {
	return &payloadReader{buf: bytes.NewReader(body)}
}

func (r *payloadReader) readUint64() uint64 {
	b := r.takeExact(8)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}

func (r *payloadReader) readInt64() int64 {
	return int64(r.readUint64())
}

func (r *payloadReader) readBool() bool {
	b := r.takeExact(1)
	if b == nil {
		return false
	}
	return b[0] != 0
}

func (r *payloadReader) readPubkey() string {
	b := r.takeExact(32)
	if b == nil {
		return ""
	}
	return base58.Encode(b)
}

func (r *payloadReader) readString() string {
	n := r.readUint32()
	if r.err != nil {
		return ""
	}
	if n > maxStringLen {
		r.err = ErrMalformedPayload
		return ""
	}
	b := r.takeExact(int(n))
	if b == nil {
		return ""
	}
	return string(b)
}

func (r *payloadReader) readUint32() uint32 {
	b := r.takeExact(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

func (r *payloadReader) takeExact(n int) []byte {
	if r.err != nil {
		return nil
	}
	if r.buf.Len() < n {
		r.err = ErrMalformedPayload
		return nil
	}
	out := make([]byte, n)
	r.buf.Read(out)
	return out
}

func (r *payloadReader) finish() error {
	if r.err != nil {
		return r.err
	}
	if r.buf.Len() != 0 {
		return ErrMalformedPayload
	}
	return nil
}
