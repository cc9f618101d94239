package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/kjk/devrecords/client"
	"github.com/kjk/devrecords/render"
	"github.com/kjk/devrecords/store"
)

const defaultServerURL = "http://localhost:8000"

type clientOptions struct {
	serverURL string
	timeout   time.Duration
}

func (o *clientOptions) addFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.serverURL, "server", defaultServerURL, "url of devrecords server")
	cmd.Flags().DurationVar(&o.timeout, "timeout", 30*time.Second, "request timeout")
}

func (o *clientOptions) context() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), o.timeout)
}

func newCmdAdd(g *globalOptions) *cobra.Command {
	o := &clientOptions{}
	cmd := &cobra.Command{
		Use:   "add DEVICE_ID UPDATE_CONTENT",
		Short: "Add an update record on a running server",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := o.context()
			defer cancel()
			if err := client.New(o.serverURL).Add(ctx, args[0], args[1]); err != nil {
				return err
			}
			if g.verbose {
				fmt.Printf("added update for '%s'\n", args[0])
			}
			return nil
		},
	}
	o.addFlags(cmd)
	return cmd
}

func newCmdQuery(g *globalOptions) *cobra.Command {
	o := &clientOptions{}
	var deviceID string
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "query",
		Short: "List update records from a running server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := o.context()
			defer cancel()
			recs, err := client.New(o.serverURL).Query(ctx, deviceID)
			if err != nil {
				return err
			}
			if asJSON {
				ptrs := make([]*store.Record, len(recs))
				for i := range recs {
					ptrs[i] = &recs[i]
				}
				return render.JSON(os.Stdout, ptrs, true)
			}
			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			for _, rec := range recs {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", rec.UpdateTime, rec.DeviceID, rec.UpdateContent)
			}
			if g.verbose {
				fmt.Fprintf(tw, "%d records\n", len(recs))
			}
			return tw.Flush()
		},
	}
	o.addFlags(cmd)
	cmd.Flags().StringVar(&deviceID, "device", "", "only show records of this device")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print as json")
	return cmd
}
