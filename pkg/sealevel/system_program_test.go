package sealevel

import (
	"bytes"
	"testing"

	bin "github.com/gagliardetto/binary"
	"github.com/pookie-labs/pookie-staking/pkg/accounts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecute_Tx_System_Program_CreateAccount_Success(t *testing.T) {
	funder := randomPubkey(t)
	newAcctKey := randomPubkey(t)
	newOwner := randomPubkey(t)

	createAccount := SystemInstrCreateAccount{Lamports: 1_454_640, Space: 81, Owner: newOwner}
	writer := new(bytes.Buffer)
	encoder := bin.NewBinEncoder(writer)
	require.NoError(t, createAccount.MarshalWithEncoder(encoder))

	accts := []accounts.Account{
		{Key: SystemProgramAddr, Lamports: 1, Data: make([]byte, 0), Owner: [32]byte(NativeLoaderAddr), Executable: true, RentEpoch: 100},
		{Key: funder, Lamports: 10_000_000_000, Data: make([]byte, 0), Owner: [32]byte(SystemProgramAddr), RentEpoch: 100},
		{Key: newAcctKey, Lamports: 0, Data: make([]byte, 0), Owner: [32]byte(SystemProgramAddr), RentEpoch: 100},
	}
	acctMetas := []AccountMeta{
		{Pubkey: funder, IsSigner: true, IsWritable: true},
		{Pubkey: newAcctKey, IsSigner: true, IsWritable: true},
	}

	transactionAccts := NewTransactionAccounts(accts)
	instructionAccts := instructionAcctsFromAccountMetas(acctMetas, *transactionAccts)
	txCtx := NewTestTransactionCtx(*transactionAccts, 5, 64)
	execCtx := newStakingExecCtx(txCtx, 1_700_000_000)

	err := execCtx.ProcessInstruction(writer.Bytes(), instructionAccts, []uint64{0})
	require.NoError(t, err)

	newAcctPost := acctAtKey(t, txCtx, newAcctKey)
	assert.Equal(t, uint64(1_454_640), newAcctPost.Lamports)
	assert.Equal(t, 81, len(newAcctPost.Data))
	assert.Equal(t, [32]byte(newOwner), newAcctPost.Owner)

	funderPost := acctAtKey(t, txCtx, funder)
	assert.Equal(t, uint64(10_000_000_000-1_454_640), funderPost.Lamports)
}

func TestExecute_Tx_System_Program_CreateAccount_AlreadyInUse(t *testing.T) {
	funder := randomPubkey(t)
	newAcctKey := randomPubkey(t)

	createAccount := SystemInstrCreateAccount{Lamports: 1_454_640, Space: 81, Owner: randomPubkey(t)}
	writer := new(bytes.Buffer)
	encoder := bin.NewBinEncoder(writer)
	require.NoError(t, createAccount.MarshalWithEncoder(encoder))

	// target already carries lamports
	accts := []accounts.Account{
		{Key: SystemProgramAddr, Lamports: 1, Data: make([]byte, 0), Owner: [32]byte(NativeLoaderAddr), Executable: true, RentEpoch: 100},
		{Key: funder, Lamports: 10_000_000_000, Data: make([]byte, 0), Owner: [32]byte(SystemProgramAddr), RentEpoch: 100},
		{Key: newAcctKey, Lamports: 50, Data: make([]byte, 0), Owner: [32]byte(SystemProgramAddr), RentEpoch: 100},
	}
	acctMetas := []AccountMeta{
		{Pubkey: funder, IsSigner: true, IsWritable: true},
		{Pubkey: newAcctKey, IsSigner: true, IsWritable: true},
	}

	transactionAccts := NewTransactionAccounts(accts)
	instructionAccts := instructionAcctsFromAccountMetas(acctMetas, *transactionAccts)
	txCtx := NewTestTransactionCtx(*transactionAccts, 5, 64)
	execCtx := newStakingExecCtx(txCtx, 1_700_000_000)

	err := execCtx.ProcessInstruction(writer.Bytes(), instructionAccts, []uint64{0})
	assert.Equal(t, SystemProgErrAccountAlreadyInUse, err)

	funderPost := acctAtKey(t, txCtx, funder)
	assert.Equal(t, uint64(10_000_000_000), funderPost.Lamports)
}

func TestExecute_Tx_System_Program_Transfer_Success(t *testing.T) {
	from := randomPubkey(t)
	to := randomPubkey(t)

	transfer := SystemInstrTransfer{Lamports: 1_000_000}
	writer := new(bytes.Buffer)
	encoder := bin.NewBinEncoder(writer)
	require.NoError(t, transfer.MarshalWithEncoder(encoder))

	accts := []accounts.Account{
		{Key: SystemProgramAddr, Lamports: 1, Data: make([]byte, 0), Owner: [32]byte(NativeLoaderAddr), Executable: true, RentEpoch: 100},
		{Key: from, Lamports: 5_000_000, Data: make([]byte, 0), Owner: [32]byte(SystemProgramAddr), RentEpoch: 100},
		{Key: to, Lamports: 100, Data: make([]byte, 0), Owner: [32]byte(SystemProgramAddr), RentEpoch: 100},
	}
	acctMetas := []AccountMeta{
		{Pubkey: from, IsSigner: true, IsWritable: true},
		{Pubkey: to, IsSigner: false, IsWritable: true},
	}

	transactionAccts := NewTransactionAccounts(accts)
	instructionAccts := instructionAcctsFromAccountMetas(acctMetas, *transactionAccts)
	txCtx := NewTestTransactionCtx(*transactionAccts, 5, 64)
	execCtx := newStakingExecCtx(txCtx, 1_700_000_000)

	err := execCtx.ProcessInstruction(writer.Bytes(), instructionAccts, []uint64{0})
	require.NoError(t, err)

	assert.Equal(t, uint64(4_000_000), acctAtKey(t, txCtx, from).Lamports)
	assert.Equal(t, uint64(1_000_100), acctAtKey(t, txCtx, to).Lamports)
}

func TestExecute_Tx_System_Program_Transfer_InsufficientFunds(t *testing.T) {
	from := randomPubkey(t)
	to := randomPubkey(t)

	transfer := SystemInstrTransfer{Lamports: 10_000_000}
	writer := new(bytes.Buffer)
	encoder := bin.NewBinEncoder(writer)
	require.NoError(t, transfer.MarshalWithEncoder(encoder))

	accts := []accounts.Account{
		{Key: SystemProgramAddr, Lamports: 1, Data: make([]byte, 0), Owner: [32]byte(NativeLoaderAddr), Executable: true, RentEpoch: 100},
		{Key: from, Lamports: 5_000_000, Data: make([]byte, 0), Owner: [32]byte(SystemProgramAddr), RentEpoch: 100},
		{Key: to, Lamports: 100, Data: make([]byte, 0), Owner: [32]byte(SystemProgramAddr), RentEpoch: 100},
	}
	acctMetas := []AccountMeta{
		{Pubkey: from, IsSigner: true, IsWritable: true},
		{Pubkey: to, IsSigner: false, IsWritable: true},
	}

	transactionAccts := NewTransactionAccounts(accts)
	instructionAccts := instructionAcctsFromAccountMetas(acctMetas, *transactionAccts)
	txCtx := NewTestTransactionCtx(*transactionAccts, 5, 64)
	execCtx := newStakingExecCtx(txCtx, 1_700_000_000)

	err := execCtx.ProcessInstruction(writer.Bytes(), instructionAccts, []uint64{0})
	assert.Equal(t, SystemProgErrResultWithNegativeLamports, err)

	assert.Equal(t, uint64(5_000_000), acctAtKey(t, txCtx, from).Lamports)
	assert.Equal(t, uint64(100), acctAtKey(t, txCtx, to).Lamports)
}

func TestExecute_Tx_System_Program_Transfer_MissingSignature(t *testing.T) {
	from := randomPubkey(t)
	to := randomPubkey(t)

	transfer := SystemInstrTransfer{Lamports: 1_000_000}
	writer := new(bytes.Buffer)
	encoder := bin.NewBinEncoder(writer)
	require.NoError(t, transfer.MarshalWithEncoder(encoder))

	accts := []accounts.Account{
		{Key: SystemProgramAddr, Lamports: 1, Data: make([]byte, 0), Owner: [32]byte(NativeLoaderAddr), Executable: true, RentEpoch: 100},
		{Key: from, Lamports: 5_000_000, Data: make([]byte, 0), Owner: [32]byte(SystemProgramAddr), RentEpoch: 100},
		{Key: to, Lamports: 100, Data: make([]byte, 0), Owner: [32]byte(SystemProgramAddr), RentEpoch: 100},
	}
	acctMetas := []AccountMeta{
		{Pubkey: from, IsSigner: false, IsWritable: true},
		{Pubkey: to, IsSigner: false, IsWritable: true},
	}

	transactionAccts := NewTransactionAccounts(accts)
	instructionAccts := instructionAcctsFromAccountMetas(acctMetas, *transactionAccts)
	txCtx := NewTestTransactionCtx(*transactionAccts, 5, 64)
	execCtx := newStakingExecCtx(txCtx, 1_700_000_000)

	err := execCtx.ProcessInstruction(writer.Bytes(), instructionAccts, []uint64{0})
	assert.Equal(t, InstrErrMissingRequiredSignature, err)
}
