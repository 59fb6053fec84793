package vesting

import (
	"fmt"

	"curveSettle/internal/fixedmath"
)

// Kind selects the release policy of a schedule.
type Kind string

const (
	KindLinear    Kind = "linear"
	KindStaggered Kind = "staggered"
	KindCliff     Kind = "cliff"
	KindMilestone Kind = "milestone"
)

const (
	SecondsInDay = int64(86400)
	// Duration bounds enforced at schedule creation.
	MinVestingPeriod = 7 * SecondsInDay
	MaxVestingPeriod = 2 * 365 * SecondsInDay
	// MinimumAmount is the smallest entitlement or lock accepted.
	MinimumAmount = uint64(1)

	staggeredStages = 4
)

// Milestone is a discrete unlock tied to a time, releasing a fixed percentage
// of the total entitlement.
type Milestone struct {
	UnlockTime int64  `json:"unlock_time"`
	Percentage uint64 `json:"unlock_percentage"`
	Claimed    bool   `json:"claimed"`
}

// Schedule owns a fixed total entitlement and tracks how much of it has been
// released. ReleasedAmount is monotone and never exceeds TotalAmount.
type Schedule struct {
	Kind           Kind        `json:"kind"`
	StartTime      int64       `json:"start_time"`
	EndTime        int64       `json:"end_time"`
	CliffDuration  int64       `json:"cliff_duration"`
	TotalAmount    uint64      `json:"total_amount"`
	ReleasedAmount uint64      `json:"released_amount"`
	Milestones     []Milestone `json:"milestones,omitempty"`

	Beneficiary string `json:"beneficiary"`
	Authority   string `json:"authority"`
	EscrowVault string `json:"escrow_vault"`

	// External gates checked by the settlement layer before a claim.
	RequireEndOfPeriod bool   `json:"require_end_of_period,omitempty"`
	TargetMarketCap    uint64 `json:"target_market_cap,omitempty"`
}

// NewSchedule validates the configuration and builds a schedule with nothing
// released yet.
func NewSchedule(kind Kind, startTime, endTime, cliffDuration int64, totalAmount uint64, milestones []Milestone) (*Schedule, error) {
	switch kind {
	case KindLinear, KindStaggered, KindCliff, KindMilestone:
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidTimeParameters, kind)
	}
	if endTime <= startTime {
		return nil, fmt.Errorf("%w: end time must be after start time", ErrInvalidTimeParameters)
	}
	if cliffDuration < 0 {
		return nil, fmt.Errorf("%w: cliff duration must not be negative", ErrInvalidTimeParameters)
	}
	if totalAmount == 0 {
		return nil, fmt.Errorf("%w: total amount must be positive", ErrInvalidAmount)
	}

	if kind == KindMilestone {
		if len(milestones) == 0 {
			return nil, fmt.Errorf("%w: milestone schedule needs milestones", ErrInvalidMilestone)
		}
		var totalPercentage uint64
		for _, m := range milestones {
			totalPercentage += m.Percentage
			if m.Claimed {
				return nil, fmt.Errorf("%w: milestone created already claimed", ErrInvalidMilestone)
			}
		}
		if totalPercentage != 100 {
			return nil, fmt.Errorf("%w: percentages sum to %d, want 100", ErrInvalidMilestone, totalPercentage)
		}
	} else if len(milestones) != 0 {
		return nil, fmt.Errorf("%w: milestones only valid for milestone schedules", ErrInvalidMilestone)
	}

	return &Schedule{
		Kind:          kind,
		StartTime:     startTime,
		EndTime:       endTime,
		CliffDuration: cliffDuration,
		TotalAmount:   totalAmount,
		Milestones:    milestones,
	}, nil
}

// FullyReleased reports whether the schedule is terminal.
func (s *Schedule) FullyReleased() bool {
	return s.ReleasedAmount >= s.TotalAmount
}

// VestedAmount returns how much of the entitlement has vested by now. Pure;
// claim accounting is untouched. For milestone schedules the result covers
// due, still-unclaimed milestones.
func (s *Schedule) VestedAmount(now int64) (uint64, error) {
	if now < s.StartTime+s.CliffDuration {
		return 0, nil
	}

	var (
		vested uint64
		err    error
	)
	switch s.Kind {
	case KindLinear:
		vested, err = s.linearVested(now)
	case KindCliff:
		vested, err = s.cliffVested(now), nil
	case KindStaggered:
		vested, err = s.staggeredVested(now)
	case KindMilestone:
		vested, err = s.milestoneVested(now)
	default:
		return 0, fmt.Errorf("%w: unknown kind %q", ErrInvalidTimeParameters, s.Kind)
	}
	if err != nil {
		return 0, err
	}

	if vested > s.TotalAmount {
		vested = s.TotalAmount
	}
	return vested, nil
}

func (s *Schedule) linearVested(now int64) (uint64, error) {
	if now >= s.EndTime {
		return s.TotalAmount, nil
	}

	totalDuration := s.EndTime - s.StartTime
	elapsed := now - s.StartTime
	if elapsed < 0 {
		return 0, nil
	}

	product, err := fixedmath.Mul(fixedmath.FromUint64(s.TotalAmount), fixedmath.FromUint64(uint64(elapsed)))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrCalculation, err)
	}
	vested, err := fixedmath.Div(product, fixedmath.FromUint64(uint64(totalDuration)))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrCalculation, err)
	}
	out, err := fixedmath.ToUint64(vested)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrCalculation, err)
	}
	return out, nil
}

func (s *Schedule) cliffVested(now int64) uint64 {
	if now >= s.EndTime {
		return s.TotalAmount
	}
	return 0
}

// staggeredVested divides the window into four equal stages and releases the
// step function of the stage reached so far.
func (s *Schedule) staggeredVested(now int64) (uint64, error) {
	totalDuration := s.EndTime - s.StartTime
	stageDuration := totalDuration / staggeredStages
	if stageDuration == 0 {
		return 0, fmt.Errorf("%w: window shorter than stage count", ErrCalculation)
	}

	elapsed := now - s.StartTime
	if elapsed < 0 {
		return 0, nil
	}
	stage := elapsed / stageDuration
	if stage > staggeredStages {
		stage = staggeredStages
	}

	stageAmount := s.TotalAmount / staggeredStages
	return stageAmount * uint64(stage), nil
}

func (s *Schedule) milestoneVested(now int64) (uint64, error) {
	vested := fixedmath.FromUint64(0)
	for _, m := range s.Milestones {
		if m.Claimed || now < m.UnlockTime {
			continue
		}

		share, err := fixedmath.Mul(fixedmath.FromUint64(s.TotalAmount), fixedmath.FromUint64(m.Percentage))
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrCalculation, err)
		}
		share, err = fixedmath.Div(share, fixedmath.FromUint64(100))
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrCalculation, err)
		}
		vested, err = fixedmath.Add(vested, share)
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrCalculation, err)
		}
	}

	out, err := fixedmath.ToUint64(vested)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrCalculation, err)
	}
	return out, nil
}

// Claimable previews the delta a claim at now would release, without touching
// any state. A schedule whose staggered step function moved backwards relative
// to earlier claims yields zero rather than a negative delta.
func (s *Schedule) Claimable(now int64) (uint64, error) {
	if s.FullyReleased() {
		return 0, ErrTokensAlreadyUnlocked
	}

	vested, err := s.VestedAmount(now)
	if err != nil {
		return 0, err
	}

	var delta uint64
	if s.Kind == KindMilestone {
		// Vested already excludes claimed milestones, so it is the delta.
		delta = vested
	} else if vested > s.ReleasedAmount {
		delta = vested - s.ReleasedAmount
	}

	if delta > s.TotalAmount-s.ReleasedAmount {
		delta = s.TotalAmount - s.ReleasedAmount
	}
	return delta, nil
}

// Claim commits the claimable delta at now: ReleasedAmount advances and, for
// milestone schedules, the qualifying milestones are marked claimed. The
// committed delta is returned; a zero delta is a no-op, not an error. External
// gates (end of period, market cap) belong to the settlement layer and are not
// evaluated here.
func (s *Schedule) Claim(now int64) (uint64, error) {
	delta, err := s.Claimable(now)
	if err != nil {
		return 0, err
	}
	if delta == 0 {
		return 0, nil
	}

	if s.Kind == KindMilestone {
		for i := range s.Milestones {
			if !s.Milestones[i].Claimed && now >= s.Milestones[i].UnlockTime {
				s.Milestones[i].Claimed = true
			}
		}
	}
	s.ReleasedAmount += delta
	return delta, nil
}
