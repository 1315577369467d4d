package sealevel

import (
	"errors"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	solanapda "github.com/pookie-labs/pookie-staking/pkg/solana"
	"k8s.io/klog/v2"
)

const (
	StakingProgramInstrTypeStake = iota
	StakingProgramInstrTypeUnstake
	StakingProgramInstrTypeClaimRewards
)

var (
	StakingErrInvalidInstruction       = errors.New("StakingErrInvalidInstruction")
	StakingErrNotRentExempt            = errors.New("StakingErrNotRentExempt")
	StakingErrNotInitialized           = errors.New("StakingErrNotInitialized")
	StakingErrAlreadyInitialized       = errors.New("StakingErrAlreadyInitialized")
	StakingErrInvalidOwner             = errors.New("StakingErrInvalidOwner")
	StakingErrInvalidTokenAccount      = errors.New("StakingErrInvalidTokenAccount")
	StakingErrInsufficientRewards      = errors.New("StakingErrInsufficientRewards")
	StakingErrInvalidMint              = errors.New("StakingErrInvalidMint")
	StakingErrInvalidDerivedAddress    = errors.New("StakingErrInvalidDerivedAddress")
	StakingErrInvalidTokenAccountOwner = errors.New("StakingErrInvalidTokenAccountOwner")
	StakingErrLamportTransferOverflow  = errors.New("StakingErrLamportTransferOverflow")
	StakingErrArithmeticOverflow       = errors.New("StakingErrArithmeticOverflow")
	StakingErrInsufficientFunds        = errors.New("StakingErrInsufficientFunds")
)

// staking program custom error codes
const (
	StakingErrCodeInvalidInstruction       = 0
	StakingErrCodeNotRentExempt            = 1
	StakingErrCodeNotInitialized           = 2
	StakingErrCodeAlreadyInitialized       = 3
	StakingErrCodeInvalidOwner             = 4
	StakingErrCodeInvalidTokenAccount      = 5
	StakingErrCodeInsufficientRewards      = 6
	StakingErrCodeInvalidMint              = 7
	StakingErrCodeInvalidDerivedAddress    = 8
	StakingErrCodeInvalidTokenAccountOwner = 9
	StakingErrCodeLamportTransferOverflow  = 10
	StakingErrCodeArithmeticOverflow       = 11
	StakingErrCodeInsufficientFunds        = 12
)

func translateStakingErrToCustomErrCode(err error) (uint32, bool) {
	var errorCode uint32
	switch err {
	case StakingErrInvalidInstruction:
		errorCode = StakingErrCodeInvalidInstruction
	case StakingErrNotRentExempt:
		errorCode = StakingErrCodeNotRentExempt
	case StakingErrNotInitialized:
		errorCode = StakingErrCodeNotInitialized
	case StakingErrAlreadyInitialized:
		errorCode = StakingErrCodeAlreadyInitialized
	case StakingErrInvalidOwner:
		errorCode = StakingErrCodeInvalidOwner
	case StakingErrInvalidTokenAccount:
		errorCode = StakingErrCodeInvalidTokenAccount
	case StakingErrInsufficientRewards:
		errorCode = StakingErrCodeInsufficientRewards
	case StakingErrInvalidMint:
		errorCode = StakingErrCodeInvalidMint
	case StakingErrInvalidDerivedAddress:
		errorCode = StakingErrCodeInvalidDerivedAddress
	case StakingErrInvalidTokenAccountOwner:
		errorCode = StakingErrCodeInvalidTokenAccountOwner
	case StakingErrLamportTransferOverflow:
		errorCode = StakingErrCodeLamportTransferOverflow
	case StakingErrArithmeticOverflow:
		errorCode = StakingErrCodeArithmeticOverflow
	case StakingErrInsufficientFunds:
		errorCode = StakingErrCodeInsufficientFunds
	default:
		return 0, false
	}
	return errorCode, true
}

// seeds for the program's derived addresses
var (
	StakeRecordSeedPrefix = []byte("stake")
	ProgramAuthoritySeed  = []byte("authority")
)

// FindStakeRecordAddress derives the canonical stake record address for
// an (NFT mint, owner) pair.
func FindStakeRecordAddress(nftMint solana.PublicKey, owner solana.PublicKey, programId solana.PublicKey) (solana.PublicKey, byte, error) {
	seeds := [][]byte{StakeRecordSeedPrefix, nftMint[:], owner[:]}
	addr, bump, err := solanapda.FindProgramAddressBytes(seeds, programId[:])
	if err != nil {
		return solana.PublicKey{}, 0, err
	}
	return solana.PublicKeyFromBytes(addr), bump, nil
}

// FindProgramAuthorityAddress derives the authority that owns the
// reward treasury and any custody vaults.
func FindProgramAuthorityAddress(programId solana.PublicKey) (solana.PublicKey, byte, error) {
	addr, bump, err := solanapda.FindProgramAddressBytes([][]byte{ProgramAuthoritySeed}, programId[:])
	if err != nil {
		return solana.PublicKey{}, 0, err
	}
	return solana.PublicKeyFromBytes(addr), bump, nil
}

// account indices for the Stake instruction
const (
	stakeAcctIdxUser = iota
	stakeAcctIdxUserNft
	stakeAcctIdxNftMint
	stakeAcctIdxRecord
	stakeAcctIdxTokenProgram
	stakeAcctIdxRent
	stakeAcctIdxSystemProgram
	stakeAcctIdxClock
	stakeAcctIdxVault // vault custody only
)

// account indices for the Unstake instruction
const (
	unstakeAcctIdxUser = iota
	unstakeAcctIdxUserNft
	unstakeAcctIdxNftMint
	unstakeAcctIdxRecord
	unstakeAcctIdxTokenProgram
	unstakeAcctIdxVault // vault custody only
	unstakeAcctIdxAuthority
)

// account indices for the ClaimRewards instruction
const (
	claimAcctIdxUser = iota
	claimAcctIdxUserNft
	claimAcctIdxNftMint
	claimAcctIdxRecord
	claimAcctIdxUserReward
	claimAcctIdxTreasury
	claimAcctIdxRewardMint
	claimAcctIdxTokenProgram
	claimAcctIdxAuthority
	claimAcctIdxClock
	claimAcctIdxVault // vault custody only
)

func keyOfInstructionAcct(txCtx *TransactionCtx, instrCtx *InstructionCtx, instrAcctIdx uint64) (solana.PublicKey, error) {
	idxInTx, err := instrCtx.IndexOfInstructionAccountInTransaction(instrAcctIdx)
	if err != nil {
		return solana.PublicKey{}, err
	}
	return txCtx.KeyOfAccountAtIndex(idxInTx)
}

// validateTokenAccount authenticates a token account against the
// expectations the staking flows have of it. The owning program is
// compared against the known token program id, never against a
// caller-supplied account.
func validateTokenAccount(txCtx *TransactionCtx, instrCtx *InstructionCtx, instrAcctIdx uint64, wantOwner solana.PublicKey, wantMint solana.PublicKey, requireBalanceOne bool) (*tokenAccount, error) {
	acct, err := instrCtx.BorrowInstructionAccount(txCtx, instrAcctIdx)
	if err != nil {
		return nil, err
	}
	defer acct.Drop()

	if acct.Owner() != TokenProgramAddr {
		klog.Errorf("token account %s not owned by the token program", acct.Key())
		return nil, StakingErrInvalidTokenAccount
	}

	tokenAcct, err := unpackTokenAccount(acct.Data())
	if err != nil {
		return nil, err
	}

	if tokenAcct.Mint != wantMint {
		return nil, StakingErrInvalidMint
	}

	if tokenAcct.Owner != wantOwner {
		return nil, StakingErrInvalidTokenAccountOwner
	}

	if requireBalanceOne && tokenAcct.Amount != 1 {
		klog.Errorf("token account %s holds %d, expected exactly 1", acct.Key(), tokenAcct.Amount)
		return nil, StakingErrInvalidTokenAccount
	}

	return tokenAcct, nil
}

func StakingProgramExecute(execCtx *ExecutionCtx) error {
	err := execCtx.ComputeMeter.Consume(CUStakingProgramDefaultComputeUnits)
	if err != nil {
		return InstrErrComputationalBudgetExceeded
	}

	txCtx := execCtx.TransactionContext
	instrCtx, err := txCtx.CurrentInstructionCtx()
	if err != nil {
		return err
	}

	decoder := bin.NewBinDecoder(instrCtx.Data)
	instructionType, err := decoder.ReadUint8()
	if err != nil {
		return StakingErrInvalidInstruction
	}

	switch instructionType {
	case StakingProgramInstrTypeStake:
		err = StakingProgramStake(execCtx)

	case StakingProgramInstrTypeUnstake:
		err = StakingProgramUnstake(execCtx)

	case StakingProgramInstrTypeClaimRewards:
		err = StakingProgramClaimRewards(execCtx)

	default:
		err = StakingErrInvalidInstruction
	}

	if err != nil {
		if code, isCustom := translateStakingErrToCustomErrCode(err); isCustom {
			klog.V(1).Infof("staking program failed: %s (custom error %d)", err, code)
		} else {
			klog.V(1).Infof("staking program failed: %s", err)
		}
	}

	return err
}

// verifyUserSigned borrows the user account, checks the signature and
// returns the user's key.
func verifyUserSigned(txCtx *TransactionCtx, instrCtx *InstructionCtx, instrAcctIdx uint64) (solana.PublicKey, error) {
	userAcct, err := instrCtx.BorrowInstructionAccount(txCtx, instrAcctIdx)
	if err != nil {
		return solana.PublicKey{}, err
	}
	defer userAcct.Drop()

	if !userAcct.IsSigner() {
		klog.Errorf("user %s has not signed", userAcct.Key())
		return solana.PublicKey{}, InstrErrMissingRequiredSignature
	}
	return userAcct.Key(), nil
}

// checkStakeRecordAddress re-derives the record address from the seeds
// and compares it against the account the caller supplied.
func checkStakeRecordAddress(txCtx *TransactionCtx, instrCtx *InstructionCtx, instrAcctIdx uint64, nftMint solana.PublicKey, owner solana.PublicKey, programId solana.PublicKey) (solana.PublicKey, byte, error) {
	expected, bump, err := FindStakeRecordAddress(nftMint, owner, programId)
	if err != nil {
		return solana.PublicKey{}, 0, StakingErrInvalidDerivedAddress
	}

	supplied, err := keyOfInstructionAcct(txCtx, instrCtx, instrAcctIdx)
	if err != nil {
		return solana.PublicKey{}, 0, err
	}
	if supplied != expected {
		klog.Errorf("stake record address mismatch: supplied %s, derived %s", supplied, expected)
		return solana.PublicKey{}, 0, StakingErrInvalidDerivedAddress
	}
	return expected, bump, nil
}

func StakingProgramStake(execCtx *ExecutionCtx) error {
	txCtx := execCtx.TransactionContext
	instrCtx, err := txCtx.CurrentInstructionCtx()
	if err != nil {
		return err
	}

	requiredAccts := uint64(8)
	if stakingCfg.Custody == CustodyVault {
		requiredAccts = 9
	}
	if err = instrCtx.CheckNumOfInstructionAccounts(requiredAccts); err != nil {
		return err
	}

	programId, err := instrCtx.LastProgramKey(txCtx)
	if err != nil {
		return err
	}

	userKey, err := verifyUserSigned(txCtx, instrCtx, stakeAcctIdxUser)
	if err != nil {
		return err
	}

	nftMint, err := keyOfInstructionAcct(txCtx, instrCtx, stakeAcctIdxNftMint)
	if err != nil {
		return err
	}

	// the user must hold the NFT when staking, in either custody mode
	if _, err = validateTokenAccount(txCtx, instrCtx, stakeAcctIdxUserNft, userKey, nftMint, true); err != nil {
		return err
	}

	recordKey, _, err := checkStakeRecordAddress(txCtx, instrCtx, stakeAcctIdxRecord, nftMint, userKey, programId)
	if err != nil {
		return err
	}

	if err = checkAcctForRentSysvar(txCtx, instrCtx, stakeAcctIdxRent); err != nil {
		return err
	}
	if err = checkAcctForClockSysvar(txCtx, instrCtx, stakeAcctIdxClock); err != nil {
		return err
	}
	rent := ReadRentSysvar(&execCtx.Accounts)
	clock := ReadClockSysvar(&execCtx.Accounts)

	recordAcct, err := instrCtx.BorrowInstructionAccount(txCtx, stakeAcctIdxRecord)
	if err != nil {
		return err
	}
	recordDataLen := len(recordAcct.Data())
	recordLamports := recordAcct.Lamports()
	recordAcct.Drop()

	if recordDataLen == 0 {
		// fresh position: create the record account, signed by its own
		// derived address
		lamports := rent.MinimumBalance(StakeRecordSize)
		createInstr := newCreateAccountInstruction(userKey, recordKey, lamports, StakeRecordSize, programId)
		if err = execCtx.NativeInvoke(createInstr, []solana.PublicKey{recordKey}); err != nil {
			klog.Errorf("failed to create stake record account: %s", err)
			return err
		}
	} else if !rent.IsExempt(recordLamports, StakeRecordSize) {
		return StakingErrNotRentExempt
	}

	recordAcct, err = instrCtx.BorrowInstructionAccount(txCtx, stakeAcctIdxRecord)
	if err != nil {
		return err
	}
	if recordAcct.Owner() != programId {
		recordAcct.Drop()
		return InstrErrInvalidAccountOwner
	}
	record, err := unmarshalStakeRecord(recordAcct.Data())
	recordAcct.Drop()
	if err != nil {
		return err
	}

	// an existing live record must not be clobbered; a drained record
	// from a prior unstake decodes as uninitialized and is reused
	if record.Initialized {
		return StakingErrAlreadyInitialized
	}

	env := custodyEnv{
		userKey:    userKey,
		nftMint:    nftMint,
		userNftIdx: stakeAcctIdxUserNft,
		vaultIdx:   stakeAcctIdxVault,
	}
	if stakingCfg.Custody == CustodyVault {
		authorityKey, _, err := FindProgramAuthorityAddress(programId)
		if err != nil {
			return StakingErrInvalidDerivedAddress
		}
		env.authorityKey = authorityKey
	}
	if err = custodyForMode(stakingCfg.Custody).stakeIn(execCtx, &env); err != nil {
		return err
	}

	now := clock.UnixTimestamp
	record = &StakeRecord{
		Initialized:   true,
		Owner:         userKey,
		NftMint:       nftMint,
		StakeTime:     now,
		LastClaimTime: now,
	}

	recordAcct, err = instrCtx.BorrowInstructionAccount(txCtx, stakeAcctIdxRecord)
	if err != nil {
		return err
	}
	defer recordAcct.Drop()

	if err = setStakeRecord(recordAcct, record); err != nil {
		return err
	}

	execCtx.ProgramLog("staked NFT %s for %s", nftMint, userKey)
	return nil
}

func StakingProgramUnstake(execCtx *ExecutionCtx) error {
	txCtx := execCtx.TransactionContext
	instrCtx, err := txCtx.CurrentInstructionCtx()
	if err != nil {
		return err
	}

	requiredAccts := uint64(5)
	if stakingCfg.Custody == CustodyVault {
		requiredAccts = 7
	}
	if err = instrCtx.CheckNumOfInstructionAccounts(requiredAccts); err != nil {
		return err
	}

	programId, err := instrCtx.LastProgramKey(txCtx)
	if err != nil {
		return err
	}

	userKey, err := verifyUserSigned(txCtx, instrCtx, unstakeAcctIdxUser)
	if err != nil {
		return err
	}

	nftMint, err := keyOfInstructionAcct(txCtx, instrCtx, unstakeAcctIdxNftMint)
	if err != nil {
		return err
	}

	if _, _, err = checkStakeRecordAddress(txCtx, instrCtx, unstakeAcctIdxRecord, nftMint, userKey, programId); err != nil {
		return err
	}

	recordAcct, err := instrCtx.BorrowInstructionAccount(txCtx, unstakeAcctIdxRecord)
	if err != nil {
		return err
	}
	if recordAcct.Owner() != programId {
		recordAcct.Drop()
		return InstrErrInvalidAccountOwner
	}
	record, err := unmarshalStakeRecord(recordAcct.Data())
	recordAcct.Drop()
	if err != nil {
		return err
	}

	if !record.Initialized {
		return StakingErrNotInitialized
	}
	// a record naming another owner or another mint is somebody else's
	// position, whatever address it was supplied under
	if record.Owner != userKey || record.NftMint != nftMint {
		return StakingErrInvalidOwner
	}

	env := custodyEnv{
		userKey:    userKey,
		nftMint:    nftMint,
		userNftIdx: unstakeAcctIdxUserNft,
		vaultIdx:   unstakeAcctIdxVault,
	}
	if stakingCfg.Custody == CustodyVault {
		authorityKey, _, err := FindProgramAuthorityAddress(programId)
		if err != nil {
			return StakingErrInvalidDerivedAddress
		}
		supplied, err := keyOfInstructionAcct(txCtx, instrCtx, unstakeAcctIdxAuthority)
		if err != nil {
			return err
		}
		if supplied != authorityKey {
			return StakingErrInvalidDerivedAddress
		}
		env.authorityKey = authorityKey
	}
	if err = custodyForMode(stakingCfg.Custody).stakeOut(execCtx, &env); err != nil {
		return err
	}

	// close the record: refund its lamports to the user and zero the
	// data so the address decodes as uninitialized afterwards
	recordAcct, err = instrCtx.BorrowInstructionAccount(txCtx, unstakeAcctIdxRecord)
	if err != nil {
		return err
	}
	defer recordAcct.Drop()

	userAcct, err := instrCtx.BorrowInstructionAccount(txCtx, unstakeAcctIdxUser)
	if err != nil {
		return err
	}
	defer userAcct.Drop()

	refund := recordAcct.Lamports()
	if err = recordAcct.SetLamports(0); err != nil {
		return err
	}
	if err = userAcct.CheckedAddLamports(refund); err != nil {
		return StakingErrLamportTransferOverflow
	}
	if err = recordAcct.SetData(make([]byte, StakeRecordSize)); err != nil {
		return err
	}

	execCtx.ProgramLog("unstaked NFT %s for %s, refunded %d lamports", nftMint, userKey, refund)
	return nil
}

func StakingProgramClaimRewards(execCtx *ExecutionCtx) error {
	txCtx := execCtx.TransactionContext
	instrCtx, err := txCtx.CurrentInstructionCtx()
	if err != nil {
		return err
	}

	requiredAccts := uint64(10)
	if stakingCfg.Custody == CustodyVault {
		requiredAccts = 11
	}
	if err = instrCtx.CheckNumOfInstructionAccounts(requiredAccts); err != nil {
		return err
	}

	programId, err := instrCtx.LastProgramKey(txCtx)
	if err != nil {
		return err
	}

	userKey, err := verifyUserSigned(txCtx, instrCtx, claimAcctIdxUser)
	if err != nil {
		return err
	}

	nftMint, err := keyOfInstructionAcct(txCtx, instrCtx, claimAcctIdxNftMint)
	if err != nil {
		return err
	}

	if _, _, err = checkStakeRecordAddress(txCtx, instrCtx, claimAcctIdxRecord, nftMint, userKey, programId); err != nil {
		return err
	}

	authorityKey, _, err := FindProgramAuthorityAddress(programId)
	if err != nil {
		return StakingErrInvalidDerivedAddress
	}
	suppliedAuthority, err := keyOfInstructionAcct(txCtx, instrCtx, claimAcctIdxAuthority)
	if err != nil {
		return err
	}
	if suppliedAuthority != authorityKey {
		klog.Errorf("program authority mismatch: supplied %s, derived %s", suppliedAuthority, authorityKey)
		return StakingErrInvalidDerivedAddress
	}

	recordAcct, err := instrCtx.BorrowInstructionAccount(txCtx, claimAcctIdxRecord)
	if err != nil {
		return err
	}
	if recordAcct.Owner() != programId {
		recordAcct.Drop()
		return InstrErrInvalidAccountOwner
	}
	record, err := unmarshalStakeRecord(recordAcct.Data())
	recordAcct.Drop()
	if err != nil {
		return err
	}

	if !record.Initialized {
		return StakingErrNotInitialized
	}
	if record.Owner != userKey || record.NftMint != nftMint {
		return StakingErrInvalidOwner
	}

	env := custodyEnv{
		userKey:      userKey,
		nftMint:      nftMint,
		userNftIdx:   claimAcctIdxUserNft,
		vaultIdx:     claimAcctIdxVault,
		authorityKey: authorityKey,
	}
	if err = custodyForMode(stakingCfg.Custody).reverify(execCtx, &env); err != nil {
		return err
	}

	rewardMint, err := keyOfInstructionAcct(txCtx, instrCtx, claimAcctIdxRewardMint)
	if err != nil {
		return err
	}

	if _, err = validateTokenAccount(txCtx, instrCtx, claimAcctIdxUserReward, userKey, rewardMint, false); err != nil {
		return err
	}
	treasury, err := validateTokenAccount(txCtx, instrCtx, claimAcctIdxTreasury, authorityKey, rewardMint, false)
	if err != nil {
		return err
	}

	if err = checkAcctForClockSysvar(txCtx, instrCtx, claimAcctIdxClock); err != nil {
		return err
	}
	clock := ReadClockSysvar(&execCtx.Accounts)

	payout, err := stakingCfg.Schedule.Accrue(clock.UnixTimestamp, record.LastClaimTime, treasury.Amount)
	if err != nil {
		return err
	}

	if payout.Amount == 0 {
		execCtx.ProgramLog("no rewards accrued for %s yet", nftMint)
		return nil
	}

	treasuryKey, err := keyOfInstructionAcct(txCtx, instrCtx, claimAcctIdxTreasury)
	if err != nil {
		return err
	}
	userRewardKey, err := keyOfInstructionAcct(txCtx, instrCtx, claimAcctIdxUserReward)
	if err != nil {
		return err
	}

	transferInstr := newTokenTransferInstruction(treasuryKey, userRewardKey, authorityKey, payout.Amount)
	if err = execCtx.NativeInvoke(transferInstr, []solana.PublicKey{authorityKey}); err != nil {
		klog.Errorf("reward transfer failed: %s", err)
		return err
	}

	// the checkpoint only moves when something was actually paid
	record.LastClaimTime = payout.NewLastClaim

	recordAcct, err = instrCtx.BorrowInstructionAccount(txCtx, claimAcctIdxRecord)
	if err != nil {
		return err
	}
	defer recordAcct.Drop()

	if err = setStakeRecord(recordAcct, record); err != nil {
		return err
	}

	if payout.FullyPaid {
		execCtx.ProgramLog("claimed %d reward units for %s", payout.Amount, nftMint)
	} else {
		execCtx.ProgramLog("treasury underfunded: paid %d reward units for %s, remainder deferred", payout.Amount, nftMint)
	}
	return nil
}
