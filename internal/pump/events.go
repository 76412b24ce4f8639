// Package pump decodes pump.fun program events from transaction log
// messages and provides the bonding-curve math derived from them.
package pump

import "errors"

// ErrMalformedPayload is returned when a payload matches a known event
// discriminator but its body cannot be decoded.
var ErrMalformedPayload = errors.New("pump: malformed event payload")

// EventKind identifies the pump.fun event type carried by an Event.
type EventKind string

const (
	KindCreate   EventKind = "create"
	KindTrade    EventKind = "trade"
	KindComplete EventKind = "complete"
)

// Event is implemented by all decoded pump.fun events.
type Event interface {
	Kind() EventKind
	MintAddress() string
}

// CreateEvent is emitted when a new token launches on the bonding curve.
type CreateEvent struct {
	Name                  string
	Symbol                string
	URI                   string
	Mint                  string
	BondingCurve          string
	User                  string
	Creator               string
	Timestamp             int64
	VirtualTokenReserves  uint64
	VirtualSolReserves    uint64
	RealTokenReserves     uint64
	TokenTotalSupply      uint64

	// Bonding curve accounts are PDAs, which never lie on the ed25519
	// curve. An on-curve address here is a wallet key, not a curve.
	CurveOnCurve bool
}

func (e *CreateEvent) Kind() EventKind     { return KindCreate }
func (e *CreateEvent) MintAddress() string { return e.Mint }

// TradeEvent is emitted for every buy or sell against the bonding curve.
// Reserve fields are the post-trade reserves.
type TradeEvent struct {
	Mint                    string
	SolAmount               uint64
	TokenAmount             uint64
	IsBuy                   bool
	User                    string
	Timestamp               int64
	VirtualSolReserves      uint64
	VirtualTokenReserves    uint64
	RealSolReserves         uint64
	RealTokenReserves       uint64
	FeeRecipient            string
	FeeBasisPoints          uint64
	Fee                     uint64
	Creator                 string
	CreatorFeeBasisPoints   uint64
	CreatorFee              uint64
	TrackVolume             bool
	TotalUnclaimedTokens    uint64
	TotalClaimedTokens      uint64
	CurrentSolVolume        uint64
	LastUpdateTimestamp     int64
	IxName                  string
}

func (e *TradeEvent) Kind() EventKind     { return KindTrade }
func (e *TradeEvent) MintAddress() string { return e.Mint }

// CompleteEvent is emitted when a bonding curve fills and the token
// graduates off the launchpad. Reserves are the final curve reserves.
type CompleteEvent struct {
	User                 string
	Mint                 string
	BondingCurve         string
	VirtualSolReserves   uint64
	VirtualTokenReserves uint64
	RealSolReserves      uint64
	RealTokenReserves    uint64
	Timestamp            int64
}

func (e *CompleteEvent) Kind() EventKind     { return KindComplete }
func (e *CompleteEvent) MintAddress() string { return e.Mint }
