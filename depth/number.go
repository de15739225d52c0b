package depth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/IvanTurko/depthstream-go/sdkerr"
)

// MaxDecimalDigits is the largest number of significant digits a price or
// size may carry. It matches the range of a 128-bit decimal.
const MaxDecimalDigits = 38

// ParseDecimal converts a feed decimal token such as "0.05230000" or "-12"
// into a decimal. The accepted form is an optional sign, at least one digit,
// and an optional fraction with at least one digit. Exponents, whitespace
// and special values are rejected.
//
// Failures are of kind sdkerr.ErrMalformedNumber and name the token.
func ParseDecimal(token string) (decimal.Decimal, error) {
	if err := checkDecimalToken(token); err != nil {
		return decimal.Decimal{}, malformedNumber("ParseDecimal", token, err)
	}

	d, err := decimal.NewFromString(strings.TrimPrefix(token, "+"))
	if err != nil {
		return decimal.Decimal{}, malformedNumber("ParseDecimal", token, err)
	}
	return d, nil
}

// NewOffer builds an Offer from the feed's price and size tokens.
// Both must be valid, non-negative decimals.
func NewOffer(price, size string) (Offer, error) {
	p, err := parseNonNegative(price)
	if err != nil {
		return Offer{}, fmt.Errorf("price: %w", err)
	}
	s, err := parseNonNegative(size)
	if err != nil {
		return Offer{}, fmt.Errorf("size: %w", err)
	}
	return Offer{Price: p, Size: s}, nil
}

func parseNonNegative(token string) (decimal.Decimal, error) {
	d, err := ParseDecimal(token)
	if err != nil {
		return decimal.Decimal{}, err
	}
	if d.IsNegative() {
		return decimal.Decimal{}, malformedNumber("NewOffer", token, errors.New("negative value"))
	}
	return d, nil
}

func checkDecimalToken(token string) error {
	if token == "" {
		return errors.New("empty token")
	}

	i := 0
	if token[0] == '+' || token[0] == '-' {
		i++
	}

	intDigits := 0
	significant := 0
	leading := true
	for ; i < len(token) && isDigit(token[i]); i++ {
		intDigits++
		if leading && token[i] == '0' {
			continue
		}
		leading = false
		significant++
	}
	if intDigits == 0 {
		return errors.New("missing integer digits")
	}

	if i < len(token) && token[i] == '.' {
		i++
		fracDigits := 0
		for ; i < len(token) && isDigit(token[i]); i++ {
			fracDigits++
			if leading && token[i] == '0' {
				continue
			}
			leading = false
			significant++
		}
		if fracDigits == 0 {
			return errors.New("missing fraction digits")
		}
	}

	if i < len(token) {
		return fmt.Errorf("unexpected character %q at offset %d", token[i], i)
	}
	if significant > MaxDecimalDigits {
		return fmt.Errorf("out of range: %d significant digits, max %d", significant, MaxDecimalDigits)
	}
	return nil
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func malformedNumber(op, token string, cause error) *sdkerr.SDKError {
	return sdkerr.New(subsys, op, sdkerr.ErrMalformedNumber).
		WithMessagef("invalid decimal %q", token).
		WithCause(cause)
}
