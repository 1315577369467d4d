package sealevel

import (
	"github.com/pookie-labs/pookie-staking/pkg/safemath"
)

// RewardSchedule is the accrual policy for staked NFTs: a fixed number
// of reward base units per NFT per day, accrued by the second.
type RewardSchedule struct {
	RatePerDay    uint64
	SecondsPerDay uint64
}

var DefaultRewardSchedule = RewardSchedule{
	RatePerDay:    250_000_000_000,
	SecondsPerDay: 86_400,
}

// RewardPayout is the outcome of one accrual evaluation. Amount is what
// the treasury pays out now, NewLastClaim the checkpoint to persist.
// FullyPaid is false when the treasury could not cover the entitlement
// and the remainder was deferred.
type RewardPayout struct {
	Amount       uint64
	NewLastClaim int64
	FullyPaid    bool
}

// Accrue computes the payout owed for the time elapsed since lastClaim,
// bounded by what the treasury holds.
//
// The entitlement is elapsed * RatePerDay / SecondsPerDay, evaluated in
// a 128-bit intermediate. When the treasury cannot cover it in full,
// the whole treasury balance is paid out and the checkpoint advances
// only by the number of whole days that balance covers, so the unpaid
// remainder accrues again from the new checkpoint. An empty treasury
// cannot advance the checkpoint at all and is an error.
func (schedule RewardSchedule) Accrue(now int64, lastClaim int64, treasuryBalance uint64) (RewardPayout, error) {
	if now <= lastClaim {
		return RewardPayout{Amount: 0, NewLastClaim: lastClaim, FullyPaid: true}, nil
	}
	elapsed := uint64(now - lastClaim)

	entitlement, err := safemath.MulDivU64(elapsed, schedule.RatePerDay, schedule.SecondsPerDay)
	if err != nil {
		return RewardPayout{}, StakingErrArithmeticOverflow
	}

	if entitlement == 0 {
		return RewardPayout{Amount: 0, NewLastClaim: lastClaim, FullyPaid: true}, nil
	}

	if treasuryBalance >= entitlement {
		return RewardPayout{Amount: entitlement, NewLastClaim: now, FullyPaid: true}, nil
	}

	if treasuryBalance == 0 {
		return RewardPayout{}, StakingErrInsufficientRewards
	}

	// partial payout: pay everything the treasury holds and advance the
	// checkpoint by the whole days that balance covers, never past now
	wholeDays := treasuryBalance / schedule.RatePerDay
	advance, err := safemath.CheckedMulU64(wholeDays, schedule.SecondsPerDay)
	if err != nil || advance > elapsed {
		advance = elapsed
	}

	return RewardPayout{
		Amount:       treasuryBalance,
		NewLastClaim: lastClaim + int64(advance),
		FullyPaid:    false,
	}, nil
}
