// Package main provides a demo driver of the ordered red-black tree.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

// flag name -> config key
var flagBindings = map[string]string{
	"log-level":        "log.level",
	"log-encoder":      "log.encoder",
	"keys":             "tree.keys",
	"capacity":         "tree.capacity",
	"borrow-pred":      "tree.borrow_pred",
	"metrics-exporter": "metrics.exporter",
	"metrics-listen":   "metrics.listen",
	"hold":             "hold",
}

func newRootCommand() *cobra.Command {
	var (
		configPath string
		viperCfg   = viper.New()
	)
	cmd := &cobra.Command{
		Use:   "rbdemo",
		Short: "Seeds, traverses, updates and erases an ordered red-black tree",
		Long: `rbdemo seeds a tree with the configured keys, prints it in ascending
order, replaces the payload of one key, prints it in descending order
and erases it on exit.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := LoadConfig(viperCfg, configPath)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg, cmd.OutOrStdout())
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&configPath, "config", "c", "", "config file path (yaml)")
	flags.String("log-level", defaultLogLevel, "log level: DEBUG, INFO, WARN or ERROR")
	flags.String("log-encoder", defaultLogEncoder, "log encoder: json or text")
	flags.IntSlice("keys", defaultSeedKeys, "seed keys")
	flags.Uint32("capacity", 0, "live nodes limit, 0 means unlimited")
	flags.Bool("borrow-pred", false, "borrow the predecessor while removing a node with two children")
	flags.String("metrics-exporter", defaultExporter, "metrics exporter: none, console or prometheus")
	flags.String("metrics-listen", defaultListen, "prometheus metrics listen address")
	flags.Bool("hold", false, "keep running until interrupted")
	lo.ForEach(lo.Keys(flagBindings), func(name string, _ int) {
		lo.Must0(viperCfg.BindPFlag(flagBindings[name], flags.Lookup(name)))
	})
	return cmd
}
