package depth

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/IvanTurko/depthstream-go/sdkerr"
)

// UpdateInterval defines the push frequency of a partial depth stream.
type UpdateInterval string

const (
	// UpdateDefault leaves the interval to the feed (1000ms).
	UpdateDefault UpdateInterval = ""
	Update100ms   UpdateInterval = "100ms"
	Update1000ms  UpdateInterval = "1000ms"
)

// DepthSize is the number of levels per side in a partial depth stream.
type DepthSize uint

const (
	DepthLevel5  DepthSize = 5
	DepthLevel10 DepthSize = 10
	DepthLevel20 DepthSize = 20
)

func (u UpdateInterval) isValid() bool {
	switch u {
	case UpdateDefault, Update100ms, Update1000ms:
		return true
	default:
		return false
	}
}

func (d DepthSize) isValid() bool {
	switch d {
	case DepthLevel5, DepthLevel10, DepthLevel20:
		return true
	default:
		return false
	}
}

// PartialDepthTopic returns the topic name of a partial depth stream,
// e.g. "ethbtc@depth5@100ms".
//
// Panics:
//   - symbol is empty
//   - level is invalid
//   - interval is invalid
func PartialDepthTopic(symbol string, level DepthSize, interval UpdateInterval) string {
	if symbol == "" {
		panic("PartialDepthTopic: invalid symbol name")
	}
	if !level.isValid() {
		panic("PartialDepthTopic: invalid depth level: " + strconv.FormatUint(uint64(level), 10))
	}
	if !interval.isValid() {
		panic("PartialDepthTopic: invalid update interval: " + string(interval))
	}

	topic := fmt.Sprintf("%s@depth%d", strings.ToLower(symbol), level)
	if interval != UpdateDefault {
		topic += "@" + string(interval)
	}
	return topic
}

// CombinedStreamURL joins topics into a combined-stream address:
//
//	wss://stream.binance.com:9443/stream?streams=ethbtc@depth5@100ms/bnbeth@depth5@100ms
//
// Topics are appended verbatim because the feed expects raw '@' and '/'.
func CombinedStreamURL(baseURL string, topics ...string) (string, error) {
	op := "CombinedStreamURL"

	u, err := url.Parse(baseURL)
	if err != nil {
		return "", sdkerr.New(subsys, op, sdkerr.ErrValidation).
			WithMessagef("invalid base url %q", baseURL).
			WithCause(err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return "", sdkerr.New(subsys, op, sdkerr.ErrValidation).
			WithMessagef("base url %q must use ws or wss", baseURL)
	}
	if len(topics) == 0 {
		return "", sdkerr.New(subsys, op, sdkerr.ErrValidation).
			WithMessage("at least one topic is required")
	}
	for i, topic := range topics {
		if topic == "" || strings.ContainsAny(topic, "/?&# ") {
			return "", sdkerr.New(subsys, op, sdkerr.ErrValidation).
				WithMessagef("topics[%d]: invalid topic %q", i, topic)
		}
	}

	return strings.TrimRight(baseURL, "/") + "/stream?streams=" + strings.Join(topics, "/"), nil
}
