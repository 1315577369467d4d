package sealevel

import (
	"bytes"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

// StakeRecord is the staking program's per-position state account:
// one record per (owner, NFT mint) pair, held at a derived address.
//
// Layout (81 bytes, little endian):
//
//	initialized     u8
//	owner           [32]byte
//	nft_mint        [32]byte
//	stake_time      i64
//	last_claim_time i64
type StakeRecord struct {
	Initialized   bool
	Owner         solana.PublicKey
	NftMint       solana.PublicKey
	StakeTime     int64
	LastClaimTime int64
}

const StakeRecordSize = 81

func (record *StakeRecord) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	initialized, err := decoder.ReadUint8()
	if err != nil {
		return InstrErrInvalidAccountData
	}
	record.Initialized = initialized != 0

	owner, err := decoder.ReadBytes(solana.PublicKeyLength)
	if err != nil {
		return InstrErrInvalidAccountData
	}
	record.Owner = solana.PublicKeyFromBytes(owner)

	nftMint, err := decoder.ReadBytes(solana.PublicKeyLength)
	if err != nil {
		return InstrErrInvalidAccountData
	}
	record.NftMint = solana.PublicKeyFromBytes(nftMint)

	record.StakeTime, err = decoder.ReadInt64(bin.LE)
	if err != nil {
		return InstrErrInvalidAccountData
	}

	record.LastClaimTime, err = decoder.ReadInt64(bin.LE)
	if err != nil {
		return InstrErrInvalidAccountData
	}

	return nil
}

func (record *StakeRecord) MarshalWithEncoder(encoder *bin.Encoder) error {
	var initialized byte
	if record.Initialized {
		initialized = 1
	}
	_ = encoder.WriteByte(initialized)
	_ = encoder.WriteBytes(record.Owner[:], false)
	_ = encoder.WriteBytes(record.NftMint[:], false)
	_ = encoder.WriteInt64(record.StakeTime, bin.LE)
	return encoder.WriteInt64(record.LastClaimTime, bin.LE)
}

// unmarshalStakeRecord decodes a record account's data. A freshly
// allocated, all-zero buffer decodes into the uninitialized record.
func unmarshalStakeRecord(data []byte) (*StakeRecord, error) {
	if len(data) != StakeRecordSize {
		return nil, InstrErrInvalidAccountData
	}

	decoder := bin.NewBinDecoder(data)
	var record StakeRecord
	if err := record.UnmarshalWithDecoder(decoder); err != nil {
		return nil, err
	}
	return &record, nil
}

func marshalStakeRecord(record *StakeRecord) ([]byte, error) {
	writer := new(bytes.Buffer)
	encoder := bin.NewBinEncoder(writer)
	if err := record.MarshalWithEncoder(encoder); err != nil {
		return nil, err
	}
	return writer.Bytes(), nil
}

func setStakeRecord(recordAcct *BorrowedAccount, record *StakeRecord) error {
	data, err := marshalStakeRecord(record)
	if err != nil {
		return err
	}
	return recordAcct.SetData(data)
}
