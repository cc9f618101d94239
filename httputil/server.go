package httputil

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"
)

type ServerOptions struct {
	Addr    string // e.g. ":8000"
	Handler http.Handler
	// how long to wait for in-flight requests on shutdown
	ShutdownTimeout time.Duration
	// called once we listen, with the actual address
	OnListening func(addr string)
}

func NewServer(handler http.Handler) *http.Server {
	return &http.Server{
		ReadTimeout:  120 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
		Handler:      handler,
	}
}

// RunServer serves HTTP until ctx is cancelled, then shuts down
// gracefully
func RunServer(ctx context.Context, opts ServerOptions) error {
	if opts.Addr == "" {
		return errors.New("need to provide opts.Addr")
	}
	if opts.Handler == nil {
		return errors.New("need to provide opts.Handler")
	}
	if opts.ShutdownTimeout == 0 {
		opts.ShutdownTimeout = 5 * time.Second
	}

	ln, err := net.Listen("tcp", opts.Addr)
	if err != nil {
		return err
	}
	httpSrv := NewServer(opts.Handler)
	if opts.OnListening != nil {
		opts.OnListening(ln.Addr().String())
	}

	chServeErr := make(chan error, 1)
	go func() {
		err := httpSrv.Serve(ln)
		// mute error caused by Shutdown()
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		chServeErr <- err
	}()

	select {
	case err = <-chServeErr:
		return err
	case <-ctx.Done():
	}

	ctxShutdown, cancel := context.WithTimeout(context.Background(), opts.ShutdownTimeout)
	defer cancel()
	err = httpSrv.Shutdown(ctxShutdown)
	if errors.Is(err, context.DeadlineExceeded) {
		// in-flight requests didn't finish in time
		err = httpSrv.Close()
	}
	if err2 := <-chServeErr; err == nil {
		err = err2
	}
	return err
}
