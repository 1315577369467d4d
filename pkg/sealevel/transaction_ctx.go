package sealevel

import (
	"github.com/gagliardetto/solana-go"
	"github.com/pookie-labs/pookie-staking/pkg/accounts"
)

type TxReturnData struct {
	programId solana.PublicKey
	data      []byte
}

// TransactionAccounts is the flat account set a transaction executes
// against, with per-account borrow and touched flags.
type TransactionAccounts struct {
	Accounts []*accounts.Account
	Locked   []bool
	Touched  []bool
}

func NewTransactionAccounts(accts []accounts.Account) *TransactionAccounts {
	transactionAccts := TransactionAccounts{
		Accounts: make([]*accounts.Account, len(accts)),
		Locked:   make([]bool, len(accts)),
		Touched:  make([]bool, len(accts)),
	}
	for idx := range accts {
		acct := accts[idx]
		transactionAccts.Accounts[idx] = &acct
	}
	return &transactionAccts
}

func (transactionAccts *TransactionAccounts) GetAccount(idx uint64) (*accounts.Account, error) {
	if idx >= uint64(len(transactionAccts.Accounts)) {
		return nil, InstrErrMissingAccount
	}
	return transactionAccts.Accounts[idx], nil
}

func (transactionAccts *TransactionAccounts) Lock(idx uint64) error {
	if idx >= uint64(len(transactionAccts.Locked)) {
		return InstrErrMissingAccount
	}
	if transactionAccts.Locked[idx] {
		return InstrErrAccountBorrowFailed
	}
	transactionAccts.Locked[idx] = true
	return nil
}

func (transactionAccts *TransactionAccounts) Unlock(idx uint64) {
	if idx < uint64(len(transactionAccts.Locked)) {
		transactionAccts.Locked[idx] = false
	}
}

func (transactionAccts *TransactionAccounts) Touch(idx uint64) error {
	if idx >= uint64(len(transactionAccts.Touched)) {
		return InstrErrMissingAccount
	}
	transactionAccts.Touched[idx] = true
	return nil
}

// Snapshot deep-copies every account so that a failed top-level
// instruction can be rolled back wholesale.
func (transactionAccts *TransactionAccounts) Snapshot() []*accounts.Account {
	snapshot := make([]*accounts.Account, len(transactionAccts.Accounts))
	for idx, acct := range transactionAccts.Accounts {
		snapshot[idx] = acct.Clone()
	}
	return snapshot
}

// Restore writes a snapshot back in place, preserving the account
// pointers held by outstanding contexts.
func (transactionAccts *TransactionAccounts) Restore(snapshot []*accounts.Account) {
	for idx, acct := range snapshot {
		*transactionAccts.Accounts[idx] = *acct
	}
}

type TransactionCtx struct {
	Accounts                 TransactionAccounts
	instructionStack         []uint64
	instructionTrace         []InstructionCtx
	instructionStackCapacity uint64
	instructionTraceCapacity uint64
	returnData               TxReturnData
}

func NewTestTransactionCtx(transactionAccts TransactionAccounts, stackCapacity uint64, traceCapacity uint64) *TransactionCtx {
	return &TransactionCtx{
		Accounts:                 transactionAccts,
		instructionStackCapacity: stackCapacity,
		instructionTraceCapacity: traceCapacity,
	}
}

func (txCtx *TransactionCtx) KeyOfAccountAtIndex(idx uint64) (solana.PublicKey, error) {
	acct, err := txCtx.Accounts.GetAccount(idx)
	if err != nil {
		return solana.PublicKey{}, err
	}
	return acct.Key, nil
}

func (txCtx *TransactionCtx) IndexOfAccount(pubkey solana.PublicKey) (uint64, error) {
	for idx, acct := range txCtx.Accounts.Accounts {
		if acct.Key == pubkey {
			return uint64(idx), nil
		}
	}
	return 0, InstrErrMissingAccount
}

func (txCtx *TransactionCtx) InstructionCtxStackHeight() uint64 {
	return uint64(len(txCtx.instructionStack))
}

func (txCtx *TransactionCtx) InstructionTraceLength() uint64 {
	return uint64(len(txCtx.instructionTrace))
}

func (txCtx *TransactionCtx) CurrentInstructionCtx() (*InstructionCtx, error) {
	height := txCtx.InstructionCtxStackHeight()
	if height == 0 {
		return nil, InstrErrCallDepth
	}
	return txCtx.InstructionCtxAtNestingLevel(height - 1)
}

func (txCtx *TransactionCtx) InstructionCtxAtNestingLevel(level uint64) (*InstructionCtx, error) {
	if level >= uint64(len(txCtx.instructionStack)) {
		return nil, InstrErrCallDepth
	}
	return txCtx.InstructionCtxAtIndexInTrace(txCtx.instructionStack[level])
}

func (txCtx *TransactionCtx) InstructionCtxAtIndexInTrace(idx uint64) (*InstructionCtx, error) {
	if idx >= uint64(len(txCtx.instructionTrace)) {
		return nil, InstrErrCallDepth
	}
	return &txCtx.instructionTrace[idx], nil
}

// NextInstructionCtx appends a fresh instruction context to the trace;
// the caller configures it before pushing it onto the stack.
func (txCtx *TransactionCtx) NextInstructionCtx() (*InstructionCtx, error) {
	if uint64(len(txCtx.instructionTrace)) >= txCtx.instructionTraceCapacity {
		return nil, InstrErrMaxInstructionTraceLength
	}
	txCtx.instructionTrace = append(txCtx.instructionTrace, InstructionCtx{
		nestingLevel: txCtx.InstructionCtxStackHeight(),
	})
	return &txCtx.instructionTrace[len(txCtx.instructionTrace)-1], nil
}

func (txCtx *TransactionCtx) Push() error {
	if txCtx.InstructionCtxStackHeight() >= txCtx.instructionStackCapacity {
		return InstrErrCallDepth
	}
	if len(txCtx.instructionTrace) == 0 {
		return InstrErrCallDepth
	}
	txCtx.instructionStack = append(txCtx.instructionStack, uint64(len(txCtx.instructionTrace)-1))
	return nil
}

func (txCtx *TransactionCtx) Pop() error {
	if txCtx.InstructionCtxStackHeight() == 0 {
		return InstrErrCallDepth
	}
	txCtx.instructionStack = txCtx.instructionStack[:len(txCtx.instructionStack)-1]
	return nil
}

func (txCtx *TransactionCtx) ReturnData() (solana.PublicKey, []byte) {
	return txCtx.returnData.programId, txCtx.returnData.data
}

func (txCtx *TransactionCtx) SetReturnData(programId solana.PublicKey, data []byte) {
	txCtx.returnData.programId = programId
	txCtx.returnData.data = data
}

func instructionAcctsFromAccountMetas(acctMetas []AccountMeta, transactionAccts TransactionAccounts) []InstructionAccount {
	instructionAccts := make([]InstructionAccount, 0, len(acctMetas))

	for idx, acctMeta := range acctMetas {
		indexInCallee := uint64(idx)
		for prev := 0; prev < idx; prev++ {
			if acctMetas[prev].Pubkey == acctMeta.Pubkey {
				indexInCallee = uint64(prev)
				break
			}
		}

		indexInTx := uint64(len(transactionAccts.Accounts))
		for txIdx, acct := range transactionAccts.Accounts {
			if acct.Key == acctMeta.Pubkey {
				indexInTx = uint64(txIdx)
				break
			}
		}

		instructionAccts = append(instructionAccts, InstructionAccount{
			IndexInTransaction: indexInTx,
			IndexInCaller:      indexInTx,
			IndexInCallee:      indexInCallee,
			IsSigner:           acctMeta.IsSigner,
			IsWritable:         acctMeta.IsWritable,
		})
	}

	return instructionAccts
}
