package depth

import (
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

const subsys = "depth"

// Offer is one price level of an order book side.
type Offer struct {
	Price decimal.Decimal
	Size  decimal.Decimal
}

// MarshalJSON encodes the offer the way the feed does: ["price","size"].
func (o Offer) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]string{o.Price.String(), o.Size.String()})
}

// DepthSnapshot is the partial order book carried by one push.
//
// Bids and Asks keep the order the feed sent them in (best price first) and
// may have different lengths. LastUpdateID is passed through unchecked.
type DepthSnapshot struct {
	LastUpdateID uint64  `json:"lastUpdateId"`
	Bids         []Offer `json:"bids"`
	Asks         []Offer `json:"asks"`
}

// StreamEnvelope is one decoded frame: the topic it was published on and
// its depth payload.
//
// It marshals back to the combined-stream wire shape, so DecodePayload
// accepts its JSON encoding.
type StreamEnvelope struct {
	Stream string        `json:"stream"`
	Data   DepthSnapshot `json:"data"`
}

// Symbol returns the symbol part of the stream name, e.g. "ethbtc" for
// "ethbtc@depth5@100ms".
func (e *StreamEnvelope) Symbol() string {
	symbol, _, _ := strings.Cut(e.Stream, "@")
	return symbol
}

// Channel returns the channel part of the stream name, e.g. "depth5@100ms".
func (e *StreamEnvelope) Channel() string {
	_, channel, _ := strings.Cut(e.Stream, "@")
	return channel
}

// LevelPair is the bid and ask found at the same position of both sides.
type LevelPair struct {
	Level int
	Bid   Offer
	Ask   Offer
}

// Pairs zips bids and asks by position. The result is as long as the
// shorter side.
func (d DepthSnapshot) Pairs() []LevelPair {
	n := min(len(d.Bids), len(d.Asks))
	pairs := make([]LevelPair, n)
	for i := 0; i < n; i++ {
		pairs[i] = LevelPair{Level: i, Bid: d.Bids[i], Ask: d.Asks[i]}
	}
	return pairs
}

// BestBid returns the first bid level, if any.
func (d DepthSnapshot) BestBid() (Offer, bool) {
	if len(d.Bids) == 0 {
		return Offer{}, false
	}
	return d.Bids[0], true
}

// BestAsk returns the first ask level, if any.
func (d DepthSnapshot) BestAsk() (Offer, bool) {
	if len(d.Asks) == 0 {
		return Offer{}, false
	}
	return d.Asks[0], true
}

// Spread is BestAsk - BestBid. ok is false when either side is empty.
func (d DepthSnapshot) Spread() (spread decimal.Decimal, ok bool) {
	bid, okBid := d.BestBid()
	ask, okAsk := d.BestAsk()
	if !okBid || !okAsk {
		return decimal.Decimal{}, false
	}
	return ask.Price.Sub(bid.Price), true
}
