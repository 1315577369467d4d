package sealevel

import (
	"github.com/gagliardetto/solana-go"
)

type CustodyMode uint8

const (
	// CustodyLock leaves the NFT in the user's token account and
	// re-checks possession on every operation.
	CustodyLock CustodyMode = iota
	// CustodyVault escrows the NFT into a program-controlled vault
	// token account for the lifetime of the position.
	CustodyVault
)

// StakingProgramCfg is fixed per deployment: which custody variant the
// program runs and what the reward schedule is.
type StakingProgramCfg struct {
	Custody  CustodyMode
	Schedule RewardSchedule
}

var stakingCfg = StakingProgramCfg{
	Custody:  CustodyLock,
	Schedule: DefaultRewardSchedule,
}

func SetStakingProgramCfg(cfg StakingProgramCfg) {
	if cfg.Schedule.SecondsPerDay == 0 {
		cfg.Schedule = DefaultRewardSchedule
	}
	stakingCfg = cfg
}

func CurrentStakingProgramCfg() StakingProgramCfg {
	return stakingCfg
}

// custodyEnv carries the resolved addresses and instruction account
// indices a custody strategy operates on.
type custodyEnv struct {
	userKey      solana.PublicKey
	nftMint      solana.PublicKey
	userNftIdx   uint64
	vaultIdx     uint64
	authorityKey solana.PublicKey
}

type custodyStrategy interface {
	stakeIn(execCtx *ExecutionCtx, env *custodyEnv) error
	stakeOut(execCtx *ExecutionCtx, env *custodyEnv) error
	reverify(execCtx *ExecutionCtx, env *custodyEnv) error
}

func custodyForMode(mode CustodyMode) custodyStrategy {
	if mode == CustodyVault {
		return vaultCustody{}
	}
	return lockCustody{}
}

// lockCustody never moves the NFT; possession is proven by the user's
// token account holding a balance of exactly one.
type lockCustody struct{}

func (lockCustody) stakeIn(execCtx *ExecutionCtx, env *custodyEnv) error {
	return nil
}

func (c lockCustody) stakeOut(execCtx *ExecutionCtx, env *custodyEnv) error {
	return c.reverify(execCtx, env)
}

func (lockCustody) reverify(execCtx *ExecutionCtx, env *custodyEnv) error {
	txCtx := execCtx.TransactionContext
	instrCtx, err := txCtx.CurrentInstructionCtx()
	if err != nil {
		return err
	}

	_, err = validateTokenAccount(txCtx, instrCtx, env.userNftIdx, env.userKey, env.nftMint, true)
	return err
}

// vaultCustody escrows the NFT in a token account owned by the program
// authority.
type vaultCustody struct{}

func (c vaultCustody) stakeIn(execCtx *ExecutionCtx, env *custodyEnv) error {
	txCtx := execCtx.TransactionContext
	instrCtx, err := txCtx.CurrentInstructionCtx()
	if err != nil {
		return err
	}

	if _, err = validateTokenAccount(txCtx, instrCtx, env.vaultIdx, env.authorityKey, env.nftMint, false); err != nil {
		return err
	}

	userNftKey, err := keyOfInstructionAcct(txCtx, instrCtx, env.userNftIdx)
	if err != nil {
		return err
	}
	vaultKey, err := keyOfInstructionAcct(txCtx, instrCtx, env.vaultIdx)
	if err != nil {
		return err
	}

	// move the NFT into escrow; the user signed the outer instruction
	transferInstr := newTokenTransferInstruction(userNftKey, vaultKey, env.userKey, 1)
	return execCtx.NativeInvoke(transferInstr, nil)
}

func (c vaultCustody) stakeOut(execCtx *ExecutionCtx, env *custodyEnv) error {
	txCtx := execCtx.TransactionContext
	instrCtx, err := txCtx.CurrentInstructionCtx()
	if err != nil {
		return err
	}

	if _, err = validateTokenAccount(txCtx, instrCtx, env.vaultIdx, env.authorityKey, env.nftMint, true); err != nil {
		return err
	}

	userNftKey, err := keyOfInstructionAcct(txCtx, instrCtx, env.userNftIdx)
	if err != nil {
		return err
	}
	vaultKey, err := keyOfInstructionAcct(txCtx, instrCtx, env.vaultIdx)
	if err != nil {
		return err
	}

	// release escrow back to the user, signed by the program authority
	transferInstr := newTokenTransferInstruction(vaultKey, userNftKey, env.authorityKey, 1)
	return execCtx.NativeInvoke(transferInstr, []solana.PublicKey{env.authorityKey})
}

func (c vaultCustody) reverify(execCtx *ExecutionCtx, env *custodyEnv) error {
	txCtx := execCtx.TransactionContext
	instrCtx, err := txCtx.CurrentInstructionCtx()
	if err != nil {
		return err
	}

	_, err = validateTokenAccount(txCtx, instrCtx, env.vaultIdx, env.authorityKey, env.nftMint, true)
	return err
}
