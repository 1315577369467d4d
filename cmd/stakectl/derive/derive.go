package derive

import (
	"fmt"

	"github.com/pookie-labs/pookie-staking/pkg/base58"
	"github.com/pookie-labs/pookie-staking/pkg/sealevel"
	"github.com/spf13/cobra"
	"k8s.io/klog/v2"
)

var (
	Cmd = cobra.Command{
		Use:   "derive",
		Short: "Derive the stake record and program authority addresses for an NFT position",
		Run:   run,
	}

	nftMint string
	owner   string
	program string
)

func init() {
	Cmd.Flags().StringVarP(&nftMint, "mint", "m", "", "NFT mint address (base58)")
	Cmd.Flags().StringVarP(&owner, "owner", "o", "", "Position owner address (base58)")
	Cmd.Flags().StringVarP(&program, "program", "p", sealevel.StakingProgramAddrStr, "Staking program id (base58)")
}

func run(c *cobra.Command, args []string) {
	if nftMint == "" || owner == "" {
		klog.Exitf("must specify both --mint and --owner")
	}

	mintKey, err := base58.DecodeFromString(nftMint)
	if err != nil {
		klog.Exitf("invalid mint address: %s", err)
	}
	ownerKey, err := base58.DecodeFromString(owner)
	if err != nil {
		klog.Exitf("invalid owner address: %s", err)
	}
	programKey, err := base58.DecodeFromString(program)
	if err != nil {
		klog.Exitf("invalid program id: %s", err)
	}

	recordAddr, recordBump, err := sealevel.FindStakeRecordAddress(mintKey, ownerKey, programKey)
	if err != nil {
		klog.Exitf("failed to derive stake record address: %s", err)
	}

	authorityAddr, authorityBump, err := sealevel.FindProgramAuthorityAddress(programKey)
	if err != nil {
		klog.Exitf("failed to derive program authority address: %s", err)
	}

	fmt.Printf("stake record:      %s (bump %d)\n", recordAddr, recordBump)
	fmt.Printf("program authority: %s (bump %d)\n", authorityAddr, authorityBump)
}
