package sealevel

import (
	"encoding/binary"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/pookie-labs/pookie-staking/pkg/accounts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tokenTransferInstrData(amount uint64) []byte {
	data := make([]byte, 9)
	data[0] = TokenProgramInstrTypeTransfer
	binary.LittleEndian.PutUint64(data[1:9], amount)
	return data
}

type tokenTransferSetup struct {
	mint      solana.PublicKey
	owner     solana.PublicKey
	src       solana.PublicKey
	dest      solana.PublicKey
	destOwner solana.PublicKey
}

func newTokenTransferSetup(t *testing.T) *tokenTransferSetup {
	return &tokenTransferSetup{
		mint:      randomPubkey(t),
		owner:     randomPubkey(t),
		src:       randomPubkey(t),
		dest:      randomPubkey(t),
		destOwner: randomPubkey(t),
	}
}

func (s *tokenTransferSetup) accounts(srcAmount uint64, destAmount uint64) []accounts.Account {
	return []accounts.Account{
		{Key: TokenProgramAddr, Lamports: 1, Data: make([]byte, 0), Owner: [32]byte(NativeLoaderAddr), Executable: true, RentEpoch: 100},
		{Key: s.src, Lamports: 2_039_280, Data: newTokenAccountData(s.mint, s.owner, srcAmount), Owner: [32]byte(TokenProgramAddr), RentEpoch: 100},
		{Key: s.dest, Lamports: 2_039_280, Data: newTokenAccountData(s.mint, s.destOwner, destAmount), Owner: [32]byte(TokenProgramAddr), RentEpoch: 100},
		{Key: s.owner, Lamports: 1_000_000, Data: make([]byte, 0), Owner: [32]byte(SystemProgramAddr), RentEpoch: 100},
	}
}

func (s *tokenTransferSetup) metas() []AccountMeta {
	return []AccountMeta{
		{Pubkey: s.src, IsSigner: false, IsWritable: true},
		{Pubkey: s.dest, IsSigner: false, IsWritable: true},
		{Pubkey: s.owner, IsSigner: true, IsWritable: false},
	}
}

func TestExecute_Tx_Token_Program_Transfer_Success(t *testing.T) {
	s := newTokenTransferSetup(t)

	transactionAccts := NewTransactionAccounts(s.accounts(1000, 5))
	instructionAccts := instructionAcctsFromAccountMetas(s.metas(), *transactionAccts)
	txCtx := NewTestTransactionCtx(*transactionAccts, 5, 64)
	execCtx := newStakingExecCtx(txCtx, 1_700_000_000)

	err := execCtx.ProcessInstruction(tokenTransferInstrData(250), instructionAccts, []uint64{0})
	require.NoError(t, err)

	assert.Equal(t, uint64(750), extractTokenAmountFromAccountBlob(acctAtKey(t, txCtx, s.src).Data))
	assert.Equal(t, uint64(255), extractTokenAmountFromAccountBlob(acctAtKey(t, txCtx, s.dest).Data))
}

func TestExecute_Tx_Token_Program_Transfer_InsufficientFunds(t *testing.T) {
	s := newTokenTransferSetup(t)

	transactionAccts := NewTransactionAccounts(s.accounts(100, 0))
	instructionAccts := instructionAcctsFromAccountMetas(s.metas(), *transactionAccts)
	txCtx := NewTestTransactionCtx(*transactionAccts, 5, 64)
	execCtx := newStakingExecCtx(txCtx, 1_700_000_000)

	err := execCtx.ProcessInstruction(tokenTransferInstrData(250), instructionAccts, []uint64{0})
	assert.Equal(t, TokenProgErrInsufficientFunds, err)

	// balances roll back untouched
	assert.Equal(t, uint64(100), extractTokenAmountFromAccountBlob(acctAtKey(t, txCtx, s.src).Data))
	assert.Equal(t, uint64(0), extractTokenAmountFromAccountBlob(acctAtKey(t, txCtx, s.dest).Data))
}

func TestExecute_Tx_Token_Program_Transfer_MintMismatch(t *testing.T) {
	s := newTokenTransferSetup(t)

	accts := s.accounts(1000, 0)
	otherMint := randomPubkey(t)
	accts[2].Data = newTokenAccountData(otherMint, s.destOwner, 0)

	transactionAccts := NewTransactionAccounts(accts)
	instructionAccts := instructionAcctsFromAccountMetas(s.metas(), *transactionAccts)
	txCtx := NewTestTransactionCtx(*transactionAccts, 5, 64)
	execCtx := newStakingExecCtx(txCtx, 1_700_000_000)

	err := execCtx.ProcessInstruction(tokenTransferInstrData(100), instructionAccts, []uint64{0})
	assert.Equal(t, TokenProgErrMintMismatch, err)
}

func TestExecute_Tx_Token_Program_Transfer_OwnerMismatch(t *testing.T) {
	s := newTokenTransferSetup(t)

	// authority signs but does not own the source account
	accts := s.accounts(1000, 0)
	accts[1].Data = newTokenAccountData(s.mint, s.destOwner, 1000)

	transactionAccts := NewTransactionAccounts(accts)
	instructionAccts := instructionAcctsFromAccountMetas(s.metas(), *transactionAccts)
	txCtx := NewTestTransactionCtx(*transactionAccts, 5, 64)
	execCtx := newStakingExecCtx(txCtx, 1_700_000_000)

	err := execCtx.ProcessInstruction(tokenTransferInstrData(100), instructionAccts, []uint64{0})
	assert.Equal(t, TokenProgErrOwnerMismatch, err)
}

func TestExecute_Tx_Token_Program_Transfer_MissingSignature(t *testing.T) {
	s := newTokenTransferSetup(t)

	metas := s.metas()
	metas[2].IsSigner = false

	transactionAccts := NewTransactionAccounts(s.accounts(1000, 0))
	instructionAccts := instructionAcctsFromAccountMetas(metas, *transactionAccts)
	txCtx := NewTestTransactionCtx(*transactionAccts, 5, 64)
	execCtx := newStakingExecCtx(txCtx, 1_700_000_000)

	err := execCtx.ProcessInstruction(tokenTransferInstrData(100), instructionAccts, []uint64{0})
	assert.Equal(t, InstrErrMissingRequiredSignature, err)
}

func TestExecute_Tx_Token_Program_Transfer_SelfTransferNoOp(t *testing.T) {
	s := newTokenTransferSetup(t)

	accts := s.accounts(1000, 0)[:2]
	accts = append(accts, accounts.Account{Key: s.owner, Lamports: 1_000_000, Data: make([]byte, 0), Owner: [32]byte(SystemProgramAddr), RentEpoch: 100})
	metas := []AccountMeta{
		{Pubkey: s.src, IsSigner: false, IsWritable: true},
		{Pubkey: s.src, IsSigner: false, IsWritable: true},
		{Pubkey: s.owner, IsSigner: true, IsWritable: false},
	}

	transactionAccts := NewTransactionAccounts(accts)
	instructionAccts := instructionAcctsFromAccountMetas(metas, *transactionAccts)
	txCtx := NewTestTransactionCtx(*transactionAccts, 5, 64)
	execCtx := newStakingExecCtx(txCtx, 1_700_000_000)

	err := execCtx.ProcessInstruction(tokenTransferInstrData(400), instructionAccts, []uint64{0})
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), extractTokenAmountFromAccountBlob(acctAtKey(t, txCtx, s.src).Data))
}

func TestExecute_Tx_Token_Program_InitializeAccount_Success(t *testing.T) {
	mintKey := randomPubkey(t)
	ownerKey := randomPubkey(t)
	newAcctKey := randomPubkey(t)

	accts := []accounts.Account{
		{Key: TokenProgramAddr, Lamports: 1, Data: make([]byte, 0), Owner: [32]byte(NativeLoaderAddr), Executable: true, RentEpoch: 100},
		{Key: newAcctKey, Lamports: 2_039_280, Data: make([]byte, TokenAccountSize), Owner: [32]byte(TokenProgramAddr), RentEpoch: 100},
		{Key: mintKey, Lamports: 1_461_600, Data: newTokenMintData(randomPubkey(t), 0), Owner: [32]byte(TokenProgramAddr), RentEpoch: 100},
		{Key: ownerKey, Lamports: 1_000_000, Data: make([]byte, 0), Owner: [32]byte(SystemProgramAddr), RentEpoch: 100},
		{Key: SysvarRentAddr, Lamports: 1, Data: make([]byte, 0), Owner: [32]byte(SysvarOwnerAddr), RentEpoch: 100},
	}
	acctMetas := []AccountMeta{
		{Pubkey: newAcctKey, IsSigner: false, IsWritable: true},
		{Pubkey: mintKey, IsSigner: false, IsWritable: false},
		{Pubkey: ownerKey, IsSigner: false, IsWritable: false},
		{Pubkey: SysvarRentAddr, IsSigner: false, IsWritable: false},
	}

	transactionAccts := NewTransactionAccounts(accts)
	instructionAccts := instructionAcctsFromAccountMetas(acctMetas, *transactionAccts)
	txCtx := NewTestTransactionCtx(*transactionAccts, 5, 64)
	execCtx := newStakingExecCtx(txCtx, 1_700_000_000)

	err := execCtx.ProcessInstruction([]byte{TokenProgramInstrTypeInitializeAccount}, instructionAccts, []uint64{0})
	require.NoError(t, err)

	initialized, err := unpackTokenAccount(acctAtKey(t, txCtx, newAcctKey).Data)
	require.NoError(t, err)
	assert.Equal(t, mintKey, initialized.Mint)
	assert.Equal(t, ownerKey, initialized.Owner)
	assert.Equal(t, uint64(0), initialized.Amount)
	assert.Equal(t, byte(tokenAcctStateInitialized), initialized.State)
}

func TestExecute_Tx_Token_Program_InitializeAccount_NotRentExempt(t *testing.T) {
	mintKey := randomPubkey(t)
	ownerKey := randomPubkey(t)
	newAcctKey := randomPubkey(t)

	accts := []accounts.Account{
		{Key: TokenProgramAddr, Lamports: 1, Data: make([]byte, 0), Owner: [32]byte(NativeLoaderAddr), Executable: true, RentEpoch: 100},
		{Key: newAcctKey, Lamports: 500, Data: make([]byte, TokenAccountSize), Owner: [32]byte(TokenProgramAddr), RentEpoch: 100},
		{Key: mintKey, Lamports: 1_461_600, Data: newTokenMintData(randomPubkey(t), 0), Owner: [32]byte(TokenProgramAddr), RentEpoch: 100},
		{Key: ownerKey, Lamports: 1_000_000, Data: make([]byte, 0), Owner: [32]byte(SystemProgramAddr), RentEpoch: 100},
		{Key: SysvarRentAddr, Lamports: 1, Data: make([]byte, 0), Owner: [32]byte(SysvarOwnerAddr), RentEpoch: 100},
	}
	acctMetas := []AccountMeta{
		{Pubkey: newAcctKey, IsSigner: false, IsWritable: true},
		{Pubkey: mintKey, IsSigner: false, IsWritable: false},
		{Pubkey: ownerKey, IsSigner: false, IsWritable: false},
		{Pubkey: SysvarRentAddr, IsSigner: false, IsWritable: false},
	}

	transactionAccts := NewTransactionAccounts(accts)
	instructionAccts := instructionAcctsFromAccountMetas(acctMetas, *transactionAccts)
	txCtx := NewTestTransactionCtx(*transactionAccts, 5, 64)
	execCtx := newStakingExecCtx(txCtx, 1_700_000_000)

	err := execCtx.ProcessInstruction([]byte{TokenProgramInstrTypeInitializeAccount}, instructionAccts, []uint64{0})
	assert.Equal(t, TokenProgErrNotRentExempt, err)
}

func TestExecute_Tx_Token_Program_MintTo_Success(t *testing.T) {
	mintKey := randomPubkey(t)
	authority := randomPubkey(t)
	destKey := randomPubkey(t)
	destOwner := randomPubkey(t)

	data := make([]byte, 9)
	data[0] = TokenProgramInstrTypeMintTo
	binary.LittleEndian.PutUint64(data[1:9], 500)

	accts := []accounts.Account{
		{Key: TokenProgramAddr, Lamports: 1, Data: make([]byte, 0), Owner: [32]byte(NativeLoaderAddr), Executable: true, RentEpoch: 100},
		{Key: mintKey, Lamports: 1_461_600, Data: newTokenMintData(authority, 1000), Owner: [32]byte(TokenProgramAddr), RentEpoch: 100},
		{Key: destKey, Lamports: 2_039_280, Data: newTokenAccountData(mintKey, destOwner, 10), Owner: [32]byte(TokenProgramAddr), RentEpoch: 100},
		{Key: authority, Lamports: 1_000_000, Data: make([]byte, 0), Owner: [32]byte(SystemProgramAddr), RentEpoch: 100},
	}
	acctMetas := []AccountMeta{
		{Pubkey: mintKey, IsSigner: false, IsWritable: true},
		{Pubkey: destKey, IsSigner: false, IsWritable: true},
		{Pubkey: authority, IsSigner: true, IsWritable: false},
	}

	transactionAccts := NewTransactionAccounts(accts)
	instructionAccts := instructionAcctsFromAccountMetas(acctMetas, *transactionAccts)
	txCtx := NewTestTransactionCtx(*transactionAccts, 5, 64)
	execCtx := newStakingExecCtx(txCtx, 1_700_000_000)

	err := execCtx.ProcessInstruction(data, instructionAccts, []uint64{0})
	require.NoError(t, err)

	assert.Equal(t, uint64(510), extractTokenAmountFromAccountBlob(acctAtKey(t, txCtx, destKey).Data))

	mint, err := unpackTokenMint(acctAtKey(t, txCtx, mintKey).Data)
	require.NoError(t, err)
	assert.Equal(t, uint64(1500), mint.Supply)
}
