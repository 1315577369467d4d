package sealevel

import (
	"encoding/binary"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/pookie-labs/pookie-staking/pkg/accounts"
	"github.com/pookie-labs/pookie-staking/pkg/cu"
	"github.com/stretchr/testify/require"
)

func randomPubkey(t *testing.T) solana.PublicKey {
	privKey, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	return privKey.PublicKey()
}

func testRent() SysvarRent {
	return SysvarRent{LamportsPerUint8Year: 3480, ExemptionThreshold: 2.0, BurnPercent: 50}
}

// newStakingExecCtx wires up an execution context with clock and rent
// sysvars in the sysvar account store.
func newStakingExecCtx(txCtx *TransactionCtx, unixTimestamp int64) *ExecutionCtx {
	execCtx := &ExecutionCtx{
		Log:                new(LogRecorder),
		TransactionContext: txCtx,
		ComputeMeter:       cu.NewComputeMeter(10000000000),
	}
	execCtx.Accounts = accounts.NewMemAccounts()

	clockAddr := [32]byte(SysvarClockAddr)
	execCtx.Accounts.SetAccount(&clockAddr, &accounts.Account{})
	WriteClockSysvar(&execCtx.Accounts, SysvarClock{Slot: 1234, UnixTimestamp: unixTimestamp})

	rentAddr := [32]byte(SysvarRentAddr)
	execCtx.Accounts.SetAccount(&rentAddr, &accounts.Account{})
	WriteRentSysvar(&execCtx.Accounts, testRent())

	return execCtx
}

// advanceClock rewrites the clock sysvar, standing in for the passage
// of time between instructions.
func advanceClock(execCtx *ExecutionCtx, unixTimestamp int64) {
	WriteClockSysvar(&execCtx.Accounts, SysvarClock{Slot: 1234, UnixTimestamp: unixTimestamp})
}

func newTokenAccountData(mint solana.PublicKey, owner solana.PublicKey, amount uint64) []byte {
	data := make([]byte, TokenAccountSize)
	tokenAcct := tokenAccount{Mint: mint, Owner: owner, Amount: amount, State: tokenAcctStateInitialized}
	if err := tokenAcct.pack(data); err != nil {
		panic(err.Error())
	}
	return data
}

func newTokenMintData(authority solana.PublicKey, supply uint64) []byte {
	data := make([]byte, TokenMintSize)
	mint := tokenMint{HasMintAuthority: true, MintAuthority: authority, Supply: supply, Initialized: true}
	if err := mint.pack(data); err != nil {
		panic(err.Error())
	}
	return data
}

func extractTokenAmountFromAccountBlob(data []byte) uint64 {
	return binary.LittleEndian.Uint64(data[tokenAcctAmountOffset : tokenAcctAmountOffset+8])
}

func stakeRecordData(owner solana.PublicKey, nftMint solana.PublicKey, stakeTime int64, lastClaimTime int64) []byte {
	record := StakeRecord{Initialized: true, Owner: owner, NftMint: nftMint, StakeTime: stakeTime, LastClaimTime: lastClaimTime}
	data, err := marshalStakeRecord(&record)
	if err != nil {
		panic(err.Error())
	}
	return data
}

// stakingTestFixture holds the cast of accounts the staking flow tests
// share.
type stakingTestFixture struct {
	t *testing.T

	user       solana.PublicKey
	nftMint    solana.PublicKey
	userNft    solana.PublicKey
	recordKey  solana.PublicKey
	authority  solana.PublicKey
	rewardMint solana.PublicKey
	userReward solana.PublicKey
	treasury   solana.PublicKey
	vault      solana.PublicKey
}

func newStakingFixture(t *testing.T) *stakingTestFixture {
	f := &stakingTestFixture{t: t}
	f.user = randomPubkey(t)
	f.nftMint = randomPubkey(t)
	f.userNft = randomPubkey(t)
	f.rewardMint = randomPubkey(t)
	f.userReward = randomPubkey(t)
	f.treasury = randomPubkey(t)
	f.vault = randomPubkey(t)

	var err error
	f.recordKey, _, err = FindStakeRecordAddress(f.nftMint, f.user, StakingProgramAddr)
	require.NoError(t, err)
	f.authority, _, err = FindProgramAuthorityAddress(StakingProgramAddr)
	require.NoError(t, err)
	return f
}

func (f *stakingTestFixture) programAccounts() []accounts.Account {
	return []accounts.Account{
		{Key: StakingProgramAddr, Lamports: 1, Data: make([]byte, 0), Owner: [32]byte(NativeLoaderAddr), Executable: true, RentEpoch: 100},
		{Key: SystemProgramAddr, Lamports: 1, Data: make([]byte, 0), Owner: [32]byte(NativeLoaderAddr), Executable: true, RentEpoch: 100},
		{Key: TokenProgramAddr, Lamports: 1, Data: make([]byte, 0), Owner: [32]byte(NativeLoaderAddr), Executable: true, RentEpoch: 100},
	}
}

func (f *stakingTestFixture) sysvarAccounts() []accounts.Account {
	return []accounts.Account{
		{Key: SysvarClockAddr, Lamports: 1, Data: make([]byte, 0), Owner: [32]byte(SysvarOwnerAddr), RentEpoch: 100},
		{Key: SysvarRentAddr, Lamports: 1, Data: make([]byte, 0), Owner: [32]byte(SysvarOwnerAddr), RentEpoch: 100},
	}
}

// userAccounts returns the user wallet, the user's NFT token account
// holding nftAmount, and the NFT mint.
func (f *stakingTestFixture) userAccounts(nftAmount uint64) []accounts.Account {
	return []accounts.Account{
		{Key: f.user, Lamports: 10_000_000_000, Data: make([]byte, 0), Owner: [32]byte(SystemProgramAddr), RentEpoch: 100},
		{Key: f.userNft, Lamports: 2_039_280, Data: newTokenAccountData(f.nftMint, f.user, nftAmount), Owner: [32]byte(TokenProgramAddr), RentEpoch: 100},
		{Key: f.nftMint, Lamports: 1_461_600, Data: newTokenMintData(f.authority, 1), Owner: [32]byte(TokenProgramAddr), RentEpoch: 100},
	}
}

func (f *stakingTestFixture) recordAccount(data []byte, lamports uint64) accounts.Account {
	owner := [32]byte(SystemProgramAddr)
	if len(data) != 0 {
		owner = [32]byte(StakingProgramAddr)
	}
	return accounts.Account{Key: f.recordKey, Lamports: lamports, Data: data, Owner: owner, RentEpoch: 100}
}

func (f *stakingTestFixture) rewardAccounts(userRewardAmount uint64, treasuryAmount uint64) []accounts.Account {
	return []accounts.Account{
		{Key: f.rewardMint, Lamports: 1_461_600, Data: newTokenMintData(f.authority, treasuryAmount), Owner: [32]byte(TokenProgramAddr), RentEpoch: 100},
		{Key: f.userReward, Lamports: 2_039_280, Data: newTokenAccountData(f.rewardMint, f.user, userRewardAmount), Owner: [32]byte(TokenProgramAddr), RentEpoch: 100},
		{Key: f.treasury, Lamports: 2_039_280, Data: newTokenAccountData(f.rewardMint, f.authority, treasuryAmount), Owner: [32]byte(TokenProgramAddr), RentEpoch: 100},
	}
}

func (f *stakingTestFixture) authorityAccount() accounts.Account {
	return accounts.Account{Key: f.authority, Lamports: 1, Data: make([]byte, 0), Owner: [32]byte(SystemProgramAddr), RentEpoch: 100}
}

func (f *stakingTestFixture) vaultAccount(amount uint64) accounts.Account {
	return accounts.Account{Key: f.vault, Lamports: 2_039_280, Data: newTokenAccountData(f.nftMint, f.authority, amount), Owner: [32]byte(TokenProgramAddr), RentEpoch: 100}
}

func (f *stakingTestFixture) stakeMetas() []AccountMeta {
	return []AccountMeta{
		{Pubkey: f.user, IsSigner: true, IsWritable: true},
		{Pubkey: f.userNft, IsSigner: false, IsWritable: true},
		{Pubkey: f.nftMint, IsSigner: false, IsWritable: false},
		{Pubkey: f.recordKey, IsSigner: false, IsWritable: true},
		{Pubkey: TokenProgramAddr, IsSigner: false, IsWritable: false},
		{Pubkey: SysvarRentAddr, IsSigner: false, IsWritable: false},
		{Pubkey: SystemProgramAddr, IsSigner: false, IsWritable: false},
		{Pubkey: SysvarClockAddr, IsSigner: false, IsWritable: false},
	}
}

func (f *stakingTestFixture) unstakeMetas() []AccountMeta {
	return []AccountMeta{
		{Pubkey: f.user, IsSigner: true, IsWritable: true},
		{Pubkey: f.userNft, IsSigner: false, IsWritable: true},
		{Pubkey: f.nftMint, IsSigner: false, IsWritable: false},
		{Pubkey: f.recordKey, IsSigner: false, IsWritable: true},
		{Pubkey: TokenProgramAddr, IsSigner: false, IsWritable: false},
	}
}

func (f *stakingTestFixture) claimMetas() []AccountMeta {
	return []AccountMeta{
		{Pubkey: f.user, IsSigner: true, IsWritable: true},
		{Pubkey: f.userNft, IsSigner: false, IsWritable: false},
		{Pubkey: f.nftMint, IsSigner: false, IsWritable: false},
		{Pubkey: f.recordKey, IsSigner: false, IsWritable: true},
		{Pubkey: f.userReward, IsSigner: false, IsWritable: true},
		{Pubkey: f.treasury, IsSigner: false, IsWritable: true},
		{Pubkey: f.rewardMint, IsSigner: false, IsWritable: false},
		{Pubkey: TokenProgramAddr, IsSigner: false, IsWritable: false},
		{Pubkey: f.authority, IsSigner: false, IsWritable: false},
		{Pubkey: SysvarClockAddr, IsSigner: false, IsWritable: false},
	}
}
