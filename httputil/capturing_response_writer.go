package httputil

import (
	"net/http"
	"time"
)

type CapturingResponseWriter struct {
	http.ResponseWriter
	StatusCode int
	Size       int64
}

func (w *CapturingResponseWriter) WriteHeader(statusCode int) {
	w.StatusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *CapturingResponseWriter) Write(d []byte) (int, error) {
	if w.StatusCode == 0 {
		w.StatusCode = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(d)
	w.Size += int64(n)
	return n, err
}

// Code returns status code sent to the client
func (w *CapturingResponseWriter) Code() int {
	if w.StatusCode == 0 {
		// nothing written, net/http sends 200
		return http.StatusOK
	}
	return w.StatusCode
}

type LogRequestFunc = func(r *http.Request, code int, size int64, dur time.Duration)

// LogRequests calls logReq after every request handled by h
func LogRequests(h http.Handler, logReq LogRequestFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		timeStart := time.Now()
		cw := &CapturingResponseWriter{ResponseWriter: w}
		h.ServeHTTP(cw, r)
		logReq(r, cw.Code(), cw.Size, time.Since(timeStart))
	})
}
