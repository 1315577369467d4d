package sealevel

import (
	"bytes"
	"encoding/binary"
	"errors"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/pookie-labs/pookie-staking/pkg/safemath"
	"k8s.io/klog/v2"
)

// instruction tags, matching the SPL token program's wire encoding
const (
	TokenProgramInstrTypeInitializeAccount = 1
	TokenProgramInstrTypeTransfer          = 3
	TokenProgramInstrTypeMintTo            = 7
)

const TokenAccountSize = 165
const TokenMintSize = 82

// token account field offsets
const (
	tokenAcctMintOffset   = 0
	tokenAcctOwnerOffset  = 32
	tokenAcctAmountOffset = 64
	tokenAcctStateOffset  = 108
)

// mint field offsets
const (
	mintAuthorityOptionOffset = 0
	mintAuthorityOffset       = 4
	mintSupplyOffset          = 36
	mintInitializedOffset     = 45
)

const (
	tokenAcctStateUninitialized = 0
	tokenAcctStateInitialized   = 1
)

var (
	TokenProgErrNotRentExempt      = errors.New("TokenProgErrNotRentExempt")
	TokenProgErrInsufficientFunds  = errors.New("TokenProgErrInsufficientFunds")
	TokenProgErrInvalidMint        = errors.New("TokenProgErrInvalidMint")
	TokenProgErrMintMismatch       = errors.New("TokenProgErrMintMismatch")
	TokenProgErrOwnerMismatch      = errors.New("TokenProgErrOwnerMismatch")
	TokenProgErrFixedSupply        = errors.New("TokenProgErrFixedSupply")
	TokenProgErrAlreadyInUse       = errors.New("TokenProgErrAlreadyInUse")
	TokenProgErrUninitializedState = errors.New("TokenProgErrUninitializedState")
)

// token program custom error codes
const (
	TokenProgErrCodeNotRentExempt      = 0
	TokenProgErrCodeInsufficientFunds  = 1
	TokenProgErrCodeInvalidMint        = 2
	TokenProgErrCodeMintMismatch       = 3
	TokenProgErrCodeOwnerMismatch      = 4
	TokenProgErrCodeFixedSupply        = 5
	TokenProgErrCodeAlreadyInUse       = 6
	TokenProgErrCodeUninitializedState = 9
)

type tokenAccount struct {
	Mint   solana.PublicKey
	Owner  solana.PublicKey
	Amount uint64
	State  byte
}

func unpackTokenAccount(data []byte) (*tokenAccount, error) {
	if len(data) != TokenAccountSize {
		return nil, InstrErrInvalidAccountData
	}
	return &tokenAccount{
		Mint:   solana.PublicKeyFromBytes(data[tokenAcctMintOffset : tokenAcctMintOffset+32]),
		Owner:  solana.PublicKeyFromBytes(data[tokenAcctOwnerOffset : tokenAcctOwnerOffset+32]),
		Amount: binary.LittleEndian.Uint64(data[tokenAcctAmountOffset : tokenAcctAmountOffset+8]),
		State:  data[tokenAcctStateOffset],
	}, nil
}

// pack writes the tracked fields back at their fixed offsets, leaving
// the remaining account bytes untouched.
func (ta *tokenAccount) pack(data []byte) error {
	if len(data) != TokenAccountSize {
		return InstrErrInvalidAccountData
	}
	copy(data[tokenAcctMintOffset:tokenAcctMintOffset+32], ta.Mint[:])
	copy(data[tokenAcctOwnerOffset:tokenAcctOwnerOffset+32], ta.Owner[:])
	binary.LittleEndian.PutUint64(data[tokenAcctAmountOffset:tokenAcctAmountOffset+8], ta.Amount)
	data[tokenAcctStateOffset] = ta.State
	return nil
}

type tokenMint struct {
	HasMintAuthority bool
	MintAuthority    solana.PublicKey
	Supply           uint64
	Initialized      bool
}

func unpackTokenMint(data []byte) (*tokenMint, error) {
	if len(data) != TokenMintSize {
		return nil, InstrErrInvalidAccountData
	}
	mint := &tokenMint{
		HasMintAuthority: binary.LittleEndian.Uint32(data[mintAuthorityOptionOffset:mintAuthorityOptionOffset+4]) == 1,
		MintAuthority:    solana.PublicKeyFromBytes(data[mintAuthorityOffset : mintAuthorityOffset+32]),
		Supply:           binary.LittleEndian.Uint64(data[mintSupplyOffset : mintSupplyOffset+8]),
		Initialized:      data[mintInitializedOffset] == 1,
	}
	return mint, nil
}

func (tm *tokenMint) pack(data []byte) error {
	if len(data) != TokenMintSize {
		return InstrErrInvalidAccountData
	}
	var authorityOption uint32
	if tm.HasMintAuthority {
		authorityOption = 1
	}
	binary.LittleEndian.PutUint32(data[mintAuthorityOptionOffset:mintAuthorityOptionOffset+4], authorityOption)
	copy(data[mintAuthorityOffset:mintAuthorityOffset+32], tm.MintAuthority[:])
	binary.LittleEndian.PutUint64(data[mintSupplyOffset:mintSupplyOffset+8], tm.Supply)
	if tm.Initialized {
		data[mintInitializedOffset] = 1
	} else {
		data[mintInitializedOffset] = 0
	}
	return nil
}

func TokenProgramExecute(execCtx *ExecutionCtx) error {
	err := execCtx.ComputeMeter.Consume(CUTokenProgramDefaultComputeUnits)
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
		return InstrErrInvalidInstructionData
	}

	signers, err := instrCtx.Signers(txCtx)
	if err != nil {
		return err
	}

	switch instructionType {
	case TokenProgramInstrTypeInitializeAccount:
		{
			err = TokenProgramInitializeAccount(execCtx)
		}

	case TokenProgramInstrTypeTransfer:
		{
			amount, err2 := decoder.ReadUint64(bin.LE)
			if err2 != nil {
				return InstrErrInvalidInstructionData
			}
			err = TokenProgramTransfer(execCtx, amount, signers)
		}

	case TokenProgramInstrTypeMintTo:
		{
			amount, err2 := decoder.ReadUint64(bin.LE)
			if err2 != nil {
				return InstrErrInvalidInstructionData
			}
			err = TokenProgramMintTo(execCtx, amount, signers)
		}

	default:
		err = InstrErrInvalidInstructionData
	}

	return err
}

func TokenProgramInitializeAccount(execCtx *ExecutionCtx) error {
	txCtx := execCtx.TransactionContext
	instrCtx, err := txCtx.CurrentInstructionCtx()
	if err != nil {
		return err
	}

	if err = instrCtx.CheckNumOfInstructionAccounts(4); err != nil {
		return err
	}

	if err = checkAcctForRentSysvar(txCtx, instrCtx, 3); err != nil {
		return err
	}
	rent := ReadRentSysvar(&execCtx.Accounts)

	newAcct, err := instrCtx.BorrowInstructionAccount(txCtx, 0)
	if err != nil {
		return err
	}
	defer newAcct.Drop()

	if newAcct.Owner() != TokenProgramAddr {
		return InstrErrInvalidAccountOwner
	}

	tokenAcct, err := unpackTokenAccount(newAcct.Data())
	if err != nil {
		return err
	}
	if tokenAcct.State != tokenAcctStateUninitialized {
		return TokenProgErrAlreadyInUse
	}

	if !rent.IsExempt(newAcct.Lamports(), TokenAccountSize) {
		return TokenProgErrNotRentExempt
	}

	mintIdx, err := instrCtx.IndexOfInstructionAccountInTransaction(1)
	if err != nil {
		return err
	}
	mintKey, err := txCtx.KeyOfAccountAtIndex(mintIdx)
	if err != nil {
		return err
	}

	mintAcct, err := instrCtx.BorrowInstructionAccount(txCtx, 1)
	if err != nil {
		return err
	}
	if mintAcct.Owner() != TokenProgramAddr {
		mintAcct.Drop()
		return TokenProgErrInvalidMint
	}
	mint, err := unpackTokenMint(mintAcct.Data())
	mintAcct.Drop()
	if err != nil {
		return err
	}
	if !mint.Initialized {
		return TokenProgErrInvalidMint
	}

	ownerIdx, err := instrCtx.IndexOfInstructionAccountInTransaction(2)
	if err != nil {
		return err
	}
	ownerKey, err := txCtx.KeyOfAccountAtIndex(ownerIdx)
	if err != nil {
		return err
	}

	tokenAcct.Mint = mintKey
	tokenAcct.Owner = ownerKey
	tokenAcct.Amount = 0
	tokenAcct.State = tokenAcctStateInitialized

	data := make([]byte, TokenAccountSize)
	copy(data, newAcct.Data())
	if err = tokenAcct.pack(data); err != nil {
		return err
	}
	return newAcct.SetData(data)
}

func TokenProgramTransfer(execCtx *ExecutionCtx, amount uint64, signers []solana.PublicKey) error {
	txCtx := execCtx.TransactionContext
	instrCtx, err := txCtx.CurrentInstructionCtx()
	if err != nil {
		return err
	}

	if err = instrCtx.CheckNumOfInstructionAccounts(3); err != nil {
		return err
	}

	srcTxIdx, err := instrCtx.IndexOfInstructionAccountInTransaction(0)
	if err != nil {
		return err
	}
	destTxIdx, err := instrCtx.IndexOfInstructionAccountInTransaction(1)
	if err != nil {
		return err
	}

	// source and destination resolving to the same account is a
	// self-transfer, which cannot take a second borrow
	selfTransfer := srcTxIdx == destTxIdx

	srcAcct, err := instrCtx.BorrowInstructionAccount(txCtx, 0)
	if err != nil {
		return err
	}
	defer srcAcct.Drop()

	var destAcct *BorrowedAccount
	if selfTransfer {
		destAcct = srcAcct
	} else {
		destAcct, err = instrCtx.BorrowInstructionAccount(txCtx, 1)
		if err != nil {
			return err
		}
		defer destAcct.Drop()
	}

	if srcAcct.Owner() != TokenProgramAddr || destAcct.Owner() != TokenProgramAddr {
		return InstrErrInvalidAccountOwner
	}

	src, err := unpackTokenAccount(srcAcct.Data())
	if err != nil {
		return err
	}
	dest, err := unpackTokenAccount(destAcct.Data())
	if err != nil {
		return err
	}

	if src.State != tokenAcctStateInitialized || dest.State != tokenAcctStateInitialized {
		return TokenProgErrUninitializedState
	}

	if src.Mint != dest.Mint {
		return TokenProgErrMintMismatch
	}

	authorityIdx, err := instrCtx.IndexOfInstructionAccountInTransaction(2)
	if err != nil {
		return err
	}
	authorityKey, err := txCtx.KeyOfAccountAtIndex(authorityIdx)
	if err != nil {
		return err
	}

	if src.Owner != authorityKey {
		klog.Errorf("token transfer: authority %s does not own source account", authorityKey)
		return TokenProgErrOwnerMismatch
	}
	if err = verifySigner(authorityKey, signers); err != nil {
		return err
	}

	if amount > src.Amount {
		return TokenProgErrInsufficientFunds
	}

	// self-transfers leave balances untouched
	if selfTransfer {
		return nil
	}

	newDestAmount, err := safemath.CheckedAddU64(dest.Amount, amount)
	if err != nil {
		return InstrErrArithmeticOverflow
	}
	src.Amount -= amount
	dest.Amount = newDestAmount

	srcData := make([]byte, TokenAccountSize)
	copy(srcData, srcAcct.Data())
	if err = src.pack(srcData); err != nil {
		return err
	}
	if err = srcAcct.SetData(srcData); err != nil {
		return err
	}

	destData := make([]byte, TokenAccountSize)
	copy(destData, destAcct.Data())
	if err = dest.pack(destData); err != nil {
		return err
	}
	return destAcct.SetData(destData)
}

func TokenProgramMintTo(execCtx *ExecutionCtx, amount uint64, signers []solana.PublicKey) error {
	txCtx := execCtx.TransactionContext
	instrCtx, err := txCtx.CurrentInstructionCtx()
	if err != nil {
		return err
	}

	if err = instrCtx.CheckNumOfInstructionAccounts(3); err != nil {
		return err
	}

	mintAcct, err := instrCtx.BorrowInstructionAccount(txCtx, 0)
	if err != nil {
		return err
	}
	defer mintAcct.Drop()

	destAcct, err := instrCtx.BorrowInstructionAccount(txCtx, 1)
	if err != nil {
		return err
	}
	defer destAcct.Drop()

	if mintAcct.Owner() != TokenProgramAddr || destAcct.Owner() != TokenProgramAddr {
		return InstrErrInvalidAccountOwner
	}

	mint, err := unpackTokenMint(mintAcct.Data())
	if err != nil {
		return err
	}
	if !mint.Initialized {
		return TokenProgErrInvalidMint
	}
	if !mint.HasMintAuthority {
		return TokenProgErrFixedSupply
	}

	dest, err := unpackTokenAccount(destAcct.Data())
	if err != nil {
		return err
	}
	if dest.State != tokenAcctStateInitialized {
		return TokenProgErrUninitializedState
	}
	if dest.Mint != mintAcct.Key() {
		return TokenProgErrMintMismatch
	}

	if err = verifySigner(mint.MintAuthority, signers); err != nil {
		return err
	}

	newDestAmount, err := safemath.CheckedAddU64(dest.Amount, amount)
	if err != nil {
		return InstrErrArithmeticOverflow
	}
	newSupply, err := safemath.CheckedAddU64(mint.Supply, amount)
	if err != nil {
		return InstrErrArithmeticOverflow
	}
	dest.Amount = newDestAmount
	mint.Supply = newSupply

	destData := make([]byte, TokenAccountSize)
	copy(destData, destAcct.Data())
	if err = dest.pack(destData); err != nil {
		return err
	}
	if err = destAcct.SetData(destData); err != nil {
		return err
	}

	mintData := make([]byte, TokenMintSize)
	copy(mintData, mintAcct.Data())
	if err = mint.pack(mintData); err != nil {
		return err
	}
	return mintAcct.SetData(mintData)
}

func newTokenTransferInstruction(source solana.PublicKey, dest solana.PublicKey, authority solana.PublicKey, amount uint64) Instruction {
	writer := new(bytes.Buffer)
	encoder := bin.NewBinEncoder(writer)
	_ = encoder.WriteByte(TokenProgramInstrTypeTransfer)
	if err := encoder.WriteUint64(amount, bin.LE); err != nil {
		panic(err.Error())
	}

	acctMetas := []AccountMeta{{Pubkey: source, IsSigner: false, IsWritable: true},
		{Pubkey: dest, IsSigner: false, IsWritable: true},
		{Pubkey: authority, IsSigner: true, IsWritable: false}}

	return Instruction{Accounts: acctMetas, Data: writer.Bytes(), ProgramId: TokenProgramAddr}
}
