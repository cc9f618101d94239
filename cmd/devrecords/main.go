package main

import (
	"fmt"
	"os"

	"github.com/davecgh/go-spew/spew"
	"github.com/spf13/cobra"

	"github.com/kjk/devrecords/config"
	"github.com/kjk/devrecords/log"
)

// flags shared by all commands
type globalOptions struct {
	configPath string
	verbose    bool
}

func (o *globalOptions) addFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(&o.configPath, "config", "", "path of yaml config file")
	cmd.PersistentFlags().BoolVarP(&o.verbose, "verbose", "v", false, "verbose logging")
}

func (o *globalOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	if o.verbose {
		cfg.Verbose = true
	}
	log.Verbose = cfg.Verbose
	if cfg.Verbose {
		fmt.Printf("config:\n%s", spewConfig().Sdump(cfg))
	}
	return cfg, nil
}

func spewConfig() *spew.ConfigState {
	return &spew.ConfigState{
		Indent:                  "  ",
		DisablePointerAddresses: true,
		DisableCapacities:       true,
		SortKeys:                true,
	}
}

func newCmdRoot() *cobra.Command {
	o := &globalOptions{}
	cmd := &cobra.Command{
		Use:           "devrecords",
		Short:         "Record and query device updates",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	o.addFlags(cmd)

	serve := newCmdServe(o)
	cmd.AddCommand(serve, newCmdAdd(o), newCmdQuery(o), newCmdBackup(o))
	// `devrecords` with no command runs the server
	cmd.RunE = serve.RunE
	return cmd
}

func main() {
	if err := newCmdRoot().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", err)
		os.Exit(1)
	}
}
