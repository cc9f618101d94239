package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kjk/devrecords/config"
	"github.com/kjk/devrecords/httputil"
	"github.com/kjk/devrecords/log"
	"github.com/kjk/devrecords/query"
	"github.com/kjk/devrecords/server"
	"github.com/kjk/devrecords/store"
)

func openStore(cfg *config.Config) (*store.Store, error) {
	st := &store.Store{
		DataDir:  cfg.DataDir,
		FileName: cfg.FileName,
	}
	if err := store.OpenStore(st); err != nil {
		return nil, err
	}
	return st, nil
}

func runServe(ctx context.Context, cfg *config.Config) error {
	log.Init(&log.Config{
		Dir:             cfg.LogsDir,
		CompressRotated: cfg.CompressLogs,
	})
	defer log.Close()

	st, err := openStore(cfg)
	if err != nil {
		log.Errorf("opening store failed with '%s'", err)
		return err
	}
	log.Logf("using records file '%s'\n", st.Path())

	srv := server.New(st, query.New(st, cfg.Query.TrimFilter))
	for _, uri := range srv.URLS() {
		log.Verbosef("  %s\n", uri)
	}
	logReq := func(r *http.Request, code int, size int64, dur time.Duration) {
		log.IfErrf(log.HTTPRequest(r, code, size, dur))
		log.Verbosef("%s %s %d %d %s\n", r.Method, r.URL.Path, code, size, dur)
	}
	err = httputil.RunServer(ctx, httputil.ServerOptions{
		Addr:            cfg.Addr(),
		Handler:         httputil.LogRequests(srv, logReq),
		ShutdownTimeout: 5 * time.Second,
		OnListening: func(addr string) {
			log.Logf("listening on http://%s\n", addr)
		},
	})
	if err != nil {
		log.Errorf("server failed with '%s'", err)
		return err
	}
	log.Logf("server stopped\n")
	return nil
}

func newCmdServe(o *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the web server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := o.loadConfig()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg)
		},
	}
}
