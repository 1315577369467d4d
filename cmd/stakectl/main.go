package main

import (
	"context"
	"flag"
	"os"
	"os/signal"

	"github.com/pookie-labs/pookie-staking/cmd/stakectl/derive"
	"github.com/pookie-labs/pookie-staking/cmd/stakectl/record"
	"github.com/spf13/cobra"
	"k8s.io/klog/v2"
)

var cmd = cobra.Command{
	Use:   "stakectl",
	Short: "Operator utilities for the NFT staking program",
}

func init() {
	klogFlags := flag.NewFlagSet("klog", flag.ExitOnError)
	klog.InitFlags(klogFlags)
	cmd.PersistentFlags().AddGoFlagSet(klogFlags)

	cmd.AddCommand(
		&derive.Cmd,
		&record.Cmd,
	)
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	cobra.CheckErr(cmd.ExecuteContext(ctx))
}
