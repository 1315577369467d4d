package sealevel

import (
	"bytes"
	"errors"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"k8s.io/klog/v2"
)

const (
	SystemProgramInstrTypeCreateAccount = iota
	SystemProgramInstrTypeAssign
	SystemProgramInstrTypeTransfer
	SystemProgramInstrTypeAllocate
)

var (
	SystemProgErrAccountAlreadyInUse        = errors.New("SystemProgErrAccountAlreadyInUse")
	SystemProgErrResultWithNegativeLamports = errors.New("SystemProgErrResultWithNegativeLamports")
	SystemProgErrInvalidAccountDataLength   = errors.New("SystemProgErrInvalidAccountDataLength")
)

// system program custom error codes
const (
	SystemProgErrCodeAccountAlreadyInUse        = 0
	SystemProgErrCodeResultWithNegativeLamports = 1
	SystemProgErrCodeInvalidAccountDataLength   = 3
)

type SystemInstrCreateAccount struct {
	Lamports uint64
	Space    uint64
	Owner    solana.PublicKey
}

type SystemInstrAssign struct {
	Owner solana.PublicKey
}

type SystemInstrTransfer struct {
	Lamports uint64
}

type SystemInstrAllocate struct {
	Space uint64
}

func (instr *SystemInstrCreateAccount) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	var err error
	instr.Lamports, err = decoder.ReadUint64(bin.LE)
	if err != nil {
		return InstrErrInvalidInstructionData
	}

	instr.Space, err = decoder.ReadUint64(bin.LE)
	if err != nil {
		return InstrErrInvalidInstructionData
	}

	owner, err := decoder.ReadBytes(solana.PublicKeyLength)
	if err != nil {
		return InstrErrInvalidInstructionData
	}
	instr.Owner = solana.PublicKeyFromBytes(owner)
	return nil
}

func (instr *SystemInstrCreateAccount) MarshalWithEncoder(encoder *bin.Encoder) error {
	_ = encoder.WriteUint32(SystemProgramInstrTypeCreateAccount, bin.LE)
	_ = encoder.WriteUint64(instr.Lamports, bin.LE)
	_ = encoder.WriteUint64(instr.Space, bin.LE)
	return encoder.WriteBytes(instr.Owner[:], false)
}

func (instr *SystemInstrAssign) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	owner, err := decoder.ReadBytes(solana.PublicKeyLength)
	if err != nil {
		return InstrErrInvalidInstructionData
	}
	instr.Owner = solana.PublicKeyFromBytes(owner)
	return nil
}

func (instr *SystemInstrTransfer) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	var err error
	instr.Lamports, err = decoder.ReadUint64(bin.LE)
	if err != nil {
		return InstrErrInvalidInstructionData
	}
	return nil
}

func (instr *SystemInstrTransfer) MarshalWithEncoder(encoder *bin.Encoder) error {
	_ = encoder.WriteUint32(SystemProgramInstrTypeTransfer, bin.LE)
	return encoder.WriteUint64(instr.Lamports, bin.LE)
}

func (instr *SystemInstrAllocate) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	var err error
	instr.Space, err = decoder.ReadUint64(bin.LE)
	if err != nil {
		return InstrErrInvalidInstructionData
	}
	return nil
}

func SystemProgramExecute(execCtx *ExecutionCtx) error {
	err := execCtx.ComputeMeter.Consume(CUSystemProgramDefaultComputeUnits)
	if err != nil {
		return InstrErrComputationalBudgetExceeded
	}

	txCtx := execCtx.TransactionContext
	instrCtx, err := txCtx.CurrentInstructionCtx()
	if err != nil {
		return err
	}

	decoder := bin.NewBinDecoder(instrCtx.Data)
	instructionType, err := decoder.ReadUint32(bin.LE)
	if err != nil {
		return InstrErrInvalidInstructionData
	}

	signers, err := instrCtx.Signers(txCtx)
	if err != nil {
		return err
	}

	switch instructionType {
	case SystemProgramInstrTypeCreateAccount:
		{
			var createAccount SystemInstrCreateAccount
			if err = createAccount.UnmarshalWithDecoder(decoder); err != nil {
				return InstrErrInvalidInstructionData
			}
			err = SystemProgramCreateAccount(execCtx, createAccount, signers)
		}

	case SystemProgramInstrTypeAssign:
		{
			var assign SystemInstrAssign
			if err = assign.UnmarshalWithDecoder(decoder); err != nil {
				return InstrErrInvalidInstructionData
			}
			err = SystemProgramAssign(execCtx, assign, signers)
		}

	case SystemProgramInstrTypeTransfer:
		{
			var transfer SystemInstrTransfer
			if err = transfer.UnmarshalWithDecoder(decoder); err != nil {
				return InstrErrInvalidInstructionData
			}
			err = SystemProgramTransfer(execCtx, transfer.Lamports)
		}

	case SystemProgramInstrTypeAllocate:
		{
			var allocate SystemInstrAllocate
			if err = allocate.UnmarshalWithDecoder(decoder); err != nil {
				return InstrErrInvalidInstructionData
			}
			err = SystemProgramAllocate(execCtx, allocate, signers)
		}

	default:
		err = InstrErrInvalidInstructionData
	}

	return err
}

func allocateAndAssign(acct *BorrowedAccount, space uint64, owner solana.PublicKey, signers []solana.PublicKey) error {
	if err := verifySigner(acct.Key(), signers); err != nil {
		klog.Errorf("allocate: 'to' account %s must sign", acct.Key())
		return err
	}

	if len(acct.Data()) != 0 || !acct.IsOwnedByCurrentProgram() {
		klog.Errorf("allocate: account %s already in use", acct.Key())
		return SystemProgErrAccountAlreadyInUse
	}

	if space > MaxPermittedDataLength {
		klog.Errorf("allocate: requested %d bytes, max permitted data length is %d", space, uint64(MaxPermittedDataLength))
		return SystemProgErrInvalidAccountDataLength
	}

	if err := acct.SetDataLength(space); err != nil {
		return err
	}

	return acct.SetOwner(owner)
}

func SystemProgramCreateAccount(execCtx *ExecutionCtx, createAccount SystemInstrCreateAccount, signers []solana.PublicKey) error {
	txCtx := execCtx.TransactionContext
	instrCtx, err := txCtx.CurrentInstructionCtx()
	if err != nil {
		return err
	}

	if err = instrCtx.CheckNumOfInstructionAccounts(2); err != nil {
		return err
	}

	newAcct, err := instrCtx.BorrowInstructionAccount(txCtx, 1)
	if err != nil {
		return err
	}

	if newAcct.Lamports() > 0 {
		klog.Errorf("CreateAccount: account %s already in use (has lamports)", newAcct.Key())
		newAcct.Drop()
		return SystemProgErrAccountAlreadyInUse
	}

	err = allocateAndAssign(newAcct, createAccount.Space, createAccount.Owner, signers)
	newAcct.Drop()
	if err != nil {
		return err
	}

	return transferInternal(execCtx, 0, 1, createAccount.Lamports)
}

func SystemProgramAssign(execCtx *ExecutionCtx, assign SystemInstrAssign, signers []solana.PublicKey) error {
	txCtx := execCtx.TransactionContext
	instrCtx, err := txCtx.CurrentInstructionCtx()
	if err != nil {
		return err
	}

	if err = instrCtx.CheckNumOfInstructionAccounts(1); err != nil {
		return err
	}

	acct, err := instrCtx.BorrowInstructionAccount(txCtx, 0)
	if err != nil {
		return err
	}
	defer acct.Drop()

	if err = verifySigner(acct.Key(), signers); err != nil {
		return err
	}

	return acct.SetOwner(assign.Owner)
}

func SystemProgramAllocate(execCtx *ExecutionCtx, allocate SystemInstrAllocate, signers []solana.PublicKey) error {
	txCtx := execCtx.TransactionContext
	instrCtx, err := txCtx.CurrentInstructionCtx()
	if err != nil {
		return err
	}

	if err = instrCtx.CheckNumOfInstructionAccounts(1); err != nil {
		return err
	}

	acct, err := instrCtx.BorrowInstructionAccount(txCtx, 0)
	if err != nil {
		return err
	}
	defer acct.Drop()

	return allocateAndAssign(acct, allocate.Space, acct.Owner(), signers)
}

func SystemProgramTransfer(execCtx *ExecutionCtx, lamports uint64) error {
	txCtx := execCtx.TransactionContext
	instrCtx, err := txCtx.CurrentInstructionCtx()
	if err != nil {
		return err
	}

	if err = instrCtx.CheckNumOfInstructionAccounts(2); err != nil {
		return err
	}

	isSigner, err := instrCtx.IsInstructionAccountSigner(0)
	if err != nil {
		return err
	}
	if !isSigner {
		klog.Errorf("Transfer: 'from' account must sign")
		return InstrErrMissingRequiredSignature
	}

	return transferInternal(execCtx, 0, 1, lamports)
}

func transferInternal(execCtx *ExecutionCtx, fromAcctIdx uint64, toAcctIdx uint64, lamports uint64) error {
	txCtx := execCtx.TransactionContext
	instrCtx, err := txCtx.CurrentInstructionCtx()
	if err != nil {
		return err
	}

	from, err := instrCtx.BorrowInstructionAccount(txCtx, fromAcctIdx)
	if err != nil {
		return err
	}

	if len(from.Data()) != 0 {
		klog.Errorf("Transfer: 'from' account must not carry data")
		from.Drop()
		return InstrErrInvalidArgument
	}

	if lamports > from.Lamports() {
		klog.Errorf("Transfer: insufficient lamports %d, need %d", from.Lamports(), lamports)
		from.Drop()
		return SystemProgErrResultWithNegativeLamports
	}

	err = from.CheckedSubLamports(lamports)
	from.Drop()
	if err != nil {
		return err
	}

	to, err := instrCtx.BorrowInstructionAccount(txCtx, toAcctIdx)
	if err != nil {
		return err
	}
	defer to.Drop()

	return to.CheckedAddLamports(lamports)
}

func newCreateAccountInstruction(from solana.PublicKey, newAcct solana.PublicKey, lamports uint64, space uint64, owner solana.PublicKey) Instruction {
	createAccount := SystemInstrCreateAccount{Lamports: lamports, Space: space, Owner: owner}

	writer := new(bytes.Buffer)
	encoder := bin.NewBinEncoder(writer)
	if err := createAccount.MarshalWithEncoder(encoder); err != nil {
		panic(err.Error())
	}

	acctMetas := []AccountMeta{{Pubkey: from, IsSigner: true, IsWritable: true},
		{Pubkey: newAcct, IsSigner: true, IsWritable: true}}

	return Instruction{Accounts: acctMetas, Data: writer.Bytes(), ProgramId: SystemProgramAddr}
}

func newTransferInstruction(from solana.PublicKey, to solana.PublicKey, lamports uint64) Instruction {
	transfer := SystemInstrTransfer{Lamports: lamports}

	writer := new(bytes.Buffer)
	encoder := bin.NewBinEncoder(writer)
	if err := transfer.MarshalWithEncoder(encoder); err != nil {
		panic(err.Error())
	}

	acctMetas := []AccountMeta{{Pubkey: from, IsSigner: true, IsWritable: true},
		{Pubkey: to, IsSigner: false, IsWritable: true}}

	return Instruction{Accounts: acctMetas, Data: writer.Bytes(), ProgramId: SystemProgramAddr}
}
