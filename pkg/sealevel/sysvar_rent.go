package sealevel

import (
	"bytes"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/pookie-labs/pookie-staking/pkg/accounts"
	"github.com/pookie-labs/pookie-staking/pkg/base58"
)

const SysvarRentAddrStr = "SysvarRent111111111111111111111111111111111"

var SysvarRentAddr = base58.MustDecodeFromString(SysvarRentAddrStr)

const SysvarRentStructLen = 17

// storage overhead per account, charged for as if it were data bytes
const rentAccountStorageOverhead = 128

type SysvarRent struct {
	LamportsPerUint8Year uint64
	ExemptionThreshold   float64
	BurnPercent          byte
}

func (sr *SysvarRent) UnmarshalWithDecoder(decoder *bin.Decoder) (err error) {
	lamportsPerUint8Year, err := decoder.ReadUint64(bin.LE)
	if err != nil {
		return fmt.Errorf("failed to read LamportsPerUint8Year when decoding SysvarRent: %w", err)
	}
	sr.LamportsPerUint8Year = lamportsPerUint8Year

	exemptionThreshold, err := decoder.ReadFloat64(bin.LE)
	if err != nil {
		return fmt.Errorf("failed to read ExemptionThreshold when decoding SysvarRent: %w", err)
	}
	sr.ExemptionThreshold = exemptionThreshold

	burnPercent, err := decoder.ReadByte()
	if err != nil {
		return fmt.Errorf("failed to read BurnPercent when decoding SysvarRent: %w", err)
	}
	sr.BurnPercent = burnPercent
	return
}

func (sr *SysvarRent) MustUnmarshalWithDecoder(decoder *bin.Decoder) {
	err := sr.UnmarshalWithDecoder(decoder)
	if err != nil {
		panic(err.Error())
	}
}

func (sr *SysvarRent) MarshalWithEncoder(encoder *bin.Encoder) error {
	_ = encoder.WriteUint64(sr.LamportsPerUint8Year, bin.LE)
	_ = encoder.WriteFloat64(sr.ExemptionThreshold, bin.LE)
	return encoder.WriteByte(sr.BurnPercent)
}

func (sr SysvarRent) MinimumBalance(dataLen uint64) uint64 {
	lamportsPerYear := (rentAccountStorageOverhead + dataLen) * sr.LamportsPerUint8Year
	return uint64(float64(lamportsPerYear) * sr.ExemptionThreshold)
}

func (sr SysvarRent) IsExempt(lamports uint64, dataLen uint64) bool {
	return lamports >= sr.MinimumBalance(dataLen)
}

func ReadRentSysvar(accts *accounts.Accounts) SysvarRent {
	addr := [32]byte(SysvarRentAddr)
	rentAccount, err := (*accts).GetAccount(&addr)
	if err != nil || rentAccount == nil {
		panic("failed to read rent sysvar account")
	}

	dec := bin.NewBinDecoder(rentAccount.Data)

	var rent SysvarRent
	rent.MustUnmarshalWithDecoder(dec)
	return rent
}

func WriteRentSysvar(accts *accounts.Accounts, rent SysvarRent) {
	addr := [32]byte(SysvarRentAddr)
	rentAccount, err := (*accts).GetAccount(&addr)
	if err != nil || rentAccount == nil {
		panic("failed to read rent sysvar account")
	}

	writer := new(bytes.Buffer)
	encoder := bin.NewBinEncoder(writer)
	if err = rent.MarshalWithEncoder(encoder); err != nil {
		panic(fmt.Sprintf("failed to encode rent sysvar: %s", err))
	}

	rentAccount.Key = SysvarRentAddr
	rentAccount.Data = writer.Bytes()
	rentAccount.Owner = [32]byte(SysvarOwnerAddr)
}

func checkAcctForRentSysvar(txCtx *TransactionCtx, instrCtx *InstructionCtx, instrAcctIdx uint64) error {
	idx, err := instrCtx.IndexOfInstructionAccountInTransaction(instrAcctIdx)
	if err != nil {
		return err
	}
	pubkey, err := txCtx.KeyOfAccountAtIndex(idx)
	if err != nil {
		return err
	}
	if pubkey != SysvarRentAddr {
		return InstrErrInvalidArgument
	}
	return nil
}
