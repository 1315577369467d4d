package record

import (
	"encoding/hex"
	"fmt"
	"time"

	bin "github.com/gagliardetto/binary"
	"github.com/pookie-labs/pookie-staking/pkg/sealevel"
	"github.com/spf13/cobra"
	"k8s.io/klog/v2"
)

var (
	Cmd = cobra.Command{
		Use:   "record",
		Short: "Decode a stake record account's data",
		Run:   run,
	}

	data string
)

func init() {
	Cmd.Flags().StringVarP(&data, "data", "d", "", "Record account data (hex, 81 bytes)")
}

func run(c *cobra.Command, args []string) {
	if data == "" {
		klog.Exitf("must specify --data")
	}

	raw, err := hex.DecodeString(data)
	if err != nil {
		klog.Exitf("invalid hex: %s", err)
	}
	if len(raw) != sealevel.StakeRecordSize {
		klog.Exitf("record data must be exactly %d bytes, got %d", sealevel.StakeRecordSize, len(raw))
	}

	var record sealevel.StakeRecord
	decoder := bin.NewBinDecoder(raw)
	if err = record.UnmarshalWithDecoder(decoder); err != nil {
		klog.Exitf("failed to decode record: %s", err)
	}

	if !record.Initialized {
		fmt.Println("record is uninitialized")
		return
	}

	fmt.Printf("owner:           %s\n", record.Owner)
	fmt.Printf("nft mint:        %s\n", record.NftMint)
	fmt.Printf("stake time:      %d (%s)\n", record.StakeTime, time.Unix(record.StakeTime, 0).UTC().Format(time.RFC3339))
	fmt.Printf("last claim time: %d (%s)\n", record.LastClaimTime, time.Unix(record.LastClaimTime, 0).UTC().Format(time.RFC3339))
}
