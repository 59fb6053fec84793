package curve

import (
	"fmt"

	"github.com/holiman/uint256"

	"curveSettle/internal/fixedmath"
)

// Kind selects the pricing formula of a pool.
type Kind string

const (
	KindLinear      Kind = "linear"
	KindExponential Kind = "exponential"
	KindSigmoid     Kind = "sigmoid"
	KindCustom      Kind = "custom"
)

const (
	// BasisPoints is the percentage scale shared with the external contract.
	BasisPoints = 10000
	// MinTradeAmount is the smallest accepted trade size.
	MinTradeAmount = 1
)

// Shape parameter slots inside ShapeParams.
const (
	paramSlope    = 0
	paramExponent = 1
	paramMidpoint = 2
)

// Curve owns the reserve state of one asset pair and prices trades against it.
// Reserves only change through UpdateReserves; quoting never mutates.
type Curve struct {
	Kind                Kind      `json:"kind"`
	VirtualBase         uint64    `json:"virtual_base_reserve"`
	VirtualQuote        uint64    `json:"virtual_quote_reserve"`
	RealBase            uint64    `json:"real_base_reserve"`
	RealQuote           uint64    `json:"real_quote_reserve"`
	InitialVirtualQuote uint64    `json:"initial_virtual_quote_reserve"`
	ShapeParams         [3]uint64 `json:"shape_params"`
	Creator             string    `json:"creator"`
	BaseVault           string    `json:"base_vault"`
	QuoteVault          string    `json:"quote_vault"`
}

// New validates the shape parameters and builds a pool with its quote side
// fully custodied and no base sold yet.
func New(kind Kind, virtualBase, virtualQuote uint64, shapeParams [3]uint64) (*Curve, error) {
	switch kind {
	case KindLinear, KindExponential, KindSigmoid, KindCustom:
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidCurveParameters, kind)
	}
	if virtualBase == 0 || virtualQuote == 0 {
		return nil, fmt.Errorf("%w: virtual reserves must be positive", ErrInvalidCurveParameters)
	}

	return &Curve{
		Kind:                kind,
		VirtualBase:         virtualBase,
		VirtualQuote:        virtualQuote,
		RealBase:            0,
		RealQuote:           virtualQuote,
		InitialVirtualQuote: virtualQuote,
		ShapeParams:         shapeParams,
	}, nil
}

// QuoteBuy prices a purchase of amountIn base units and returns the quote
// amount charged. Pure; reserves are untouched.
func (c *Curve) QuoteBuy(amountIn uint64) (uint64, error) {
	if amountIn == 0 {
		return 0, ErrInvalidAmount
	}
	return c.price(amountIn, true)
}

// QuoteSell prices a sale of amountOut base units and returns the quote amount
// paid out, clamped so the pool never promises more quote than it custodies.
func (c *Curve) QuoteSell(amountOut uint64) (uint64, error) {
	if amountOut == 0 {
		return 0, ErrInvalidAmount
	}
	price, err := c.price(amountOut, false)
	if err != nil {
		return 0, err
	}
	if price > c.RealQuote {
		price = c.RealQuote
	}
	return price, nil
}

func (c *Curve) price(amount uint64, buy bool) (uint64, error) {
	var (
		wide *uint256.Int
		err  error
	)

	switch c.Kind {
	case KindLinear:
		wide, err = c.linearPrice(amount, buy)
	case KindExponential:
		wide, err = c.exponentialPrice(amount, buy)
	case KindSigmoid:
		wide, err = c.sigmoidPrice(amount)
	case KindCustom:
		wide, err = c.customPrice(amount, buy)
	default:
		return 0, fmt.Errorf("%w: unknown kind %q", ErrInvalidCurveParameters, c.Kind)
	}
	if err != nil {
		return 0, err
	}

	price, err := fixedmath.ToUint64(wide)
	if err != nil {
		return 0, fmt.Errorf("%w: price does not fit amount domain: %v", ErrCalculation, err)
	}
	return price, nil
}

// basePrice is virtual_quote * amount / virtual_base, the shared first term of
// every formula except sigmoid.
func (c *Curve) basePrice(amount *uint256.Int) (*uint256.Int, error) {
	product, err := fixedmath.Mul(fixedmath.FromUint64(c.VirtualQuote), amount)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCalculation, err)
	}
	price, err := fixedmath.Div(product, fixedmath.FromUint64(c.VirtualBase))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCalculation, err)
	}
	return price, nil
}

func (c *Curve) applySurcharge(base, surcharge *uint256.Int, buy bool) (*uint256.Int, error) {
	var (
		total *uint256.Int
		err   error
	)
	if buy {
		total, err = fixedmath.Add(base, surcharge)
	} else {
		total, err = fixedmath.Sub(base, surcharge)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCalculation, err)
	}
	return total, nil
}

func (c *Curve) linearPrice(amount uint64, buy bool) (*uint256.Int, error) {
	wideAmount := fixedmath.FromUint64(amount)
	base, err := c.basePrice(wideAmount)
	if err != nil {
		return nil, err
	}

	scaled, err := fixedmath.Mul(wideAmount, fixedmath.FromUint64(c.ShapeParams[paramSlope]))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCalculation, err)
	}
	surcharge, err := fixedmath.Div(scaled, fixedmath.FromUint64(BasisPoints))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCalculation, err)
	}

	return c.applySurcharge(base, surcharge, buy)
}

func (c *Curve) exponentialPrice(amount uint64, buy bool) (*uint256.Int, error) {
	wideAmount := fixedmath.FromUint64(amount)
	base, err := c.basePrice(wideAmount)
	if err != nil {
		return nil, err
	}

	scaled, err := fixedmath.Mul(wideAmount, fixedmath.FromUint64(c.ShapeParams[paramExponent]))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCalculation, err)
	}
	factor, err := fixedmath.Div(scaled, fixedmath.FromUint64(BasisPoints))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCalculation, err)
	}
	surcharge, err := fixedmath.Mul(factor, factor)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCalculation, err)
	}

	return c.applySurcharge(base, surcharge, buy)
}

func (c *Curve) sigmoidPrice(amount uint64) (*uint256.Int, error) {
	wideAmount := fixedmath.FromUint64(amount)
	bp := fixedmath.FromUint64(BasisPoints)

	// x = amount * 10000 / virtual_base
	scaled, err := fixedmath.Mul(wideAmount, bp)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCalculation, err)
	}
	x, err := fixedmath.Div(scaled, fixedmath.FromUint64(c.VirtualBase))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCalculation, err)
	}

	// sigmoid(x) = x * 10000 / (x + midpoint)
	numerator, err := fixedmath.Mul(x, bp)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCalculation, err)
	}
	denominator, err := fixedmath.Add(x, fixedmath.FromUint64(c.ShapeParams[paramMidpoint]))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCalculation, err)
	}
	sigmoid, err := fixedmath.Div(numerator, denominator)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCalculation, err)
	}

	// price = virtual_quote * amount * sigmoid / (virtual_base * 10000)
	price, err := fixedmath.Mul(fixedmath.FromUint64(c.VirtualQuote), wideAmount)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCalculation, err)
	}
	price, err = fixedmath.Mul(price, sigmoid)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCalculation, err)
	}
	scale, err := fixedmath.Mul(fixedmath.FromUint64(c.VirtualBase), bp)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCalculation, err)
	}
	price, err = fixedmath.Div(price, scale)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCalculation, err)
	}
	return price, nil
}

func (c *Curve) customPrice(amount uint64, buy bool) (*uint256.Int, error) {
	wideAmount := fixedmath.FromUint64(amount)
	base, err := c.basePrice(wideAmount)
	if err != nil {
		return nil, err
	}

	// amount * slope * exponent / (midpoint * 10000)
	scaled, err := fixedmath.Mul(wideAmount, fixedmath.FromUint64(c.ShapeParams[paramSlope]))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCalculation, err)
	}
	scaled, err = fixedmath.Mul(scaled, fixedmath.FromUint64(c.ShapeParams[paramExponent]))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCalculation, err)
	}
	scale, err := fixedmath.Mul(fixedmath.FromUint64(c.ShapeParams[paramMidpoint]), fixedmath.FromUint64(BasisPoints))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCalculation, err)
	}
	surcharge, err := fixedmath.Div(scaled, scale)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCalculation, err)
	}

	return c.applySurcharge(base, surcharge, buy)
}

// UpdateReserves applies signed deltas to the real reserves. It is the only
// mutator of reserve state and must run exactly once per committed trade,
// after the quote was computed and the custody transfer succeeded. Both sides
// are validated before either field is assigned, so a failure leaves the pool
// untouched.
func (c *Curve) UpdateReserves(quoteDelta, baseDelta int64) error {
	newQuote, err := applyDelta(c.RealQuote, quoteDelta)
	if err != nil {
		return fmt.Errorf("%w: quote reserve: %v", ErrCalculation, err)
	}
	newBase, err := applyDelta(c.RealBase, baseDelta)
	if err != nil {
		return fmt.Errorf("%w: base reserve: %v", ErrCalculation, err)
	}

	c.RealQuote = newQuote
	c.RealBase = newBase
	return nil
}

func applyDelta(reserve uint64, delta int64) (uint64, error) {
	wideReserve := fixedmath.FromUint64(reserve)
	if delta >= 0 {
		sum, err := fixedmath.Add(wideReserve, fixedmath.FromUint64(uint64(delta)))
		if err != nil {
			return 0, err
		}
		return fixedmath.ToUint64(sum)
	}

	magnitude := uint64(-(delta + 1)) + 1 // abs without -MinInt64 overflow
	diff, err := fixedmath.Sub(wideReserve, fixedmath.FromUint64(magnitude))
	if err != nil {
		return 0, err
	}
	return fixedmath.ToUint64(diff)
}
