package server

import (
	"errors"
	"net/http"

	"github.com/kjk/devrecords/httputil"
	"github.com/kjk/devrecords/log"
	"github.com/kjk/devrecords/query"
	"github.com/kjk/devrecords/render"
	"github.com/kjk/devrecords/store"
)

const (
	formDeviceID      = store.ColDeviceID
	formUpdateContent = store.ColUpdateContent
)

// Appender is implemented by *store.Store
type Appender interface {
	Append(deviceID string, updateContent string) (*store.Record, error)
}

// App has http handlers for recording and querying device updates
type App struct {
	Store Appender
	Query *query.Service
}

// New returns a server with all routes of the app:
//
//	GET  /                 landing page
//	GET  /add, /add_record add form
//	POST /add_record       add a record, 303 to /
//	GET  /query            results as html (or json if asked for)
//	GET  /api/query        results as json
//	GET  /static/*         css
func New(st Appender, q *query.Service) *Server {
	a := &App{
		Store: st,
		Query: q,
	}
	routes := NewRoutesHandler()
	routes.Handle(http.MethodGet, "/", a.handleIndex)
	routes.Handle(http.MethodGet, "/add", a.handleAddForm)
	routes.Handle(http.MethodGet, "/add_record", a.handleAddForm)
	routes.Handle(http.MethodPost, "/add_record", a.handleAddRecord)
	routes.Handle(http.MethodGet, "/query", a.handleQuery)
	routes.Handle(http.MethodGet, "/api/query", a.handleAPIQuery)

	static := NewFSHandler(render.Static(), "/static")
	return &Server{
		Handlers: []Handler{routes, static},
	}
}

func serveInternalError(w http.ResponseWriter, r *http.Request, err error) {
	log.Errorf("%s %s failed with '%s'", r.Method, r.URL.Path, err)
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}

func serveHTML(w http.ResponseWriter, r *http.Request, d []byte, err error) {
	if err != nil {
		serveInternalError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(d)
}

func serveRecordsJSON(w http.ResponseWriter, r *http.Request, recs []*store.Record) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	prettyPrint := httputil.IsTruthy(r.URL.Query().Get("pretty"))
	err := render.JSON(w, recs, prettyPrint)
	log.IfErrf(err)
}

// GET /
func (a *App) handleIndex(w http.ResponseWriter, r *http.Request) {
	d, err := render.Index()
	serveHTML(w, r, d, err)
}

// GET /add
// GET /add_record
func (a *App) handleAddForm(w http.ResponseWriter, r *http.Request) {
	d, err := render.AddForm()
	serveHTML(w, r, d, err)
}

// formValue returns a field from POST body and false if it wasn't sent.
// An empty value counts as sent.
func formValue(r *http.Request, name string) (string, bool) {
	vals, ok := r.PostForm[name]
	if !ok || len(vals) == 0 {
		return "", false
	}
	return vals[0], true
}

// POST /add_record
// body: device_id=<string>&update_content=<string>
func (a *App) handleAddRecord(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form: "+err.Error(), http.StatusBadRequest)
		return
	}
	deviceID, ok := formValue(r, formDeviceID)
	if !ok {
		http.Error(w, "missing form field '"+formDeviceID+"'", http.StatusBadRequest)
		return
	}
	updateContent, ok := formValue(r, formUpdateContent)
	if !ok {
		http.Error(w, "missing form field '"+formUpdateContent+"'", http.StatusBadRequest)
		return
	}
	rec, err := a.Store.Append(deviceID, updateContent)
	if errors.Is(err, store.ErrNotStorable) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err != nil {
		serveInternalError(w, r, err)
		return
	}
	log.EventFromRequest(r, "record_added", "device_id", rec.DeviceID, "update_time", rec.UpdateTime)
	httputil.RedirectSeeOther(w, r, "/")
}

// GET /query?device_id=<string>
func (a *App) handleQuery(w http.ResponseWriter, r *http.Request) {
	deviceID := query.FilterFromRequest(r)
	recs, err := a.Query.Query(deviceID)
	if err != nil {
		serveInternalError(w, r, err)
		return
	}
	if httputil.WantsJSON(r) {
		serveRecordsJSON(w, r, recs)
		return
	}
	d, err := render.Records(recs, deviceID)
	serveHTML(w, r, d, err)
}

// GET /api/query?device_id=<string>
func (a *App) handleAPIQuery(w http.ResponseWriter, r *http.Request) {
	recs, err := a.Query.Query(query.FilterFromRequest(r))
	if err != nil {
		serveInternalError(w, r, err)
		return
	}
	serveRecordsJSON(w, r, recs)
}
