package server

import (
	"bytes"
	"net/http"
	"sort"
	"strings"
	"time"
)

type HandlerFunc = func(w http.ResponseWriter, r *http.Request)

// Handler represents one or more urls and their content
type Handler interface {
	// returns a handler for this url
	// if nil, doesn't handle this url
	Get(url string) HandlerFunc
	// get all urls handled by this Handler
	URLS() []string
}

// Server dispatches a request to the first Handler that knows its url.
// Unknown urls get 404.
type Server struct {
	Handlers []Handler
}

func (s *Server) FindHandler(uri string) HandlerFunc {
	for _, h := range s.Handlers {
		if send := h.Get(uri); send != nil {
			return send
		}
	}
	return nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	serve := s.FindHandler(r.URL.Path)
	if serve != nil {
		serve(w, r)
		return
	}
	http.NotFound(w, r)
}

// URLS returns urls of all handlers, sorted
func (s *Server) URLS() []string {
	var res []string
	for _, h := range s.Handlers {
		res = append(res, h.URLS()...)
	}
	sort.Strings(res)
	return res
}

func serveContent(w http.ResponseWriter, r *http.Request, uri string, d []byte, modTime time.Time) {
	http.ServeContent(w, r, uri, modTime, bytes.NewReader(d))
}

func MakeServeContent(uri string, d []byte, modTime time.Time) HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		serveContent(w, r, uri, d, modTime)
	}
}

// RoutesHandler maps exact urls to a handler per http method
type RoutesHandler struct {
	urls    []string
	methods map[string]map[string]HandlerFunc
}

func NewRoutesHandler() *RoutesHandler {
	return &RoutesHandler{
		methods: map[string]map[string]HandlerFunc{},
	}
}

// Handle registers fn for method and uri. GET handlers also serve HEAD.
func (h *RoutesHandler) Handle(method string, uri string, fn HandlerFunc) {
	m := h.methods[uri]
	if m == nil {
		m = map[string]HandlerFunc{}
		h.methods[uri] = m
		h.urls = append(h.urls, uri)
	}
	m[method] = fn
}

func (h *RoutesHandler) Get(uri string) HandlerFunc {
	m := h.methods[uri]
	if m == nil {
		return nil
	}
	return func(w http.ResponseWriter, r *http.Request) {
		method := r.Method
		if method == http.MethodHead && m[method] == nil {
			method = http.MethodGet
		}
		if fn := m[method]; fn != nil {
			fn(w, r)
			return
		}
		var allowed []string
		for meth := range m {
			allowed = append(allowed, meth)
		}
		sort.Strings(allowed)
		w.Header().Set("Allow", strings.Join(allowed, ", "))
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	}
}

func (h *RoutesHandler) URLS() []string {
	return h.urls
}
