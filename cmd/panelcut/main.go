// PanelCut: guillotine cutting optimizer for sheet panels.
//
// Build:
//
//	go build -o panelcut ./cmd/panelcut
//
// Usage:
//
//	panelcut optimize --pieces cutlist.csv --panels stock.xlsx --pdf plan.pdf
//	panelcut compare --job kitchen.json
//	panelcut serve --server-addr :8080
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"k8s.io/klog/v2"

	"github.com/piwi3910/PanelCut/internal/config"
)

func main() {
	cmd := newRootCommand()

	ctx := setupSignalHandler()
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "panelcut",
		Short: "Lay out rectangular pieces on stock panels with guillotine cuts",
		Long: `PanelCut assigns a list of rectangular pieces to stock panels so that
every piece can be produced with straight edge-to-edge saw cuts. It honours
saw kerf, grain direction, material and stock limits, and reports the
cutting plans, waste, cost and any pieces that could not be placed.`,
		SilenceUsage: true,
	}

	klogFlags := flag.NewFlagSet("klog", flag.ContinueOnError)
	klog.InitFlags(klogFlags)
	root.PersistentFlags().AddGoFlagSet(klogFlags)
	config.AddFlags(root.PersistentFlags())

	root.AddCommand(
		newOptimizeCommand(),
		newCompareCommand(),
		newServeCommand(),
		newInventoryCommand(),
	)
	return root
}

func setupSignalHandler() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	c := make(chan os.Signal, 2)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		cancel()
		<-c
		os.Exit(1) // second signal. Exit directly.
	}()
	return ctx
}
