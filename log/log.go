package log

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"reflect"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/toon-format/toon-go"

	"github.com/kjk/devrecords/atomicfile"
)

var (
	log       *WriteDaily
	httpLog   *WriteDaily
	errorsLog *WriteDaily
	eventsLog *WriteDaily

	// if true, Verbosef() will log messages
	Verbose bool

	onLog func(s string)
)

// WriteDaily appends to <Dir>/YYYY-MM-DD.txt, switching to a new file
// when the (UTC) day changes
type WriteDaily struct {
	Dir string
	// called, without holding the lock, with the path of a file
	// we stopped writing to because the day changed
	OnRotate func(path string)
	// for tests, time.Now if nil
	Now func() time.Time

	currentDate int // YYYYMMDD format
	path        string
	file        *os.File
	mu          sync.Mutex
}

func NewWriteDaily(dir string) *WriteDaily {
	return &WriteDaily{
		Dir: dir,
	}
}

// WriteString writes a string to the daily log file
// it's safe to call on nil receiver
func (w *WriteDaily) WriteString(s string) error {
	return w.Write([]byte(s))
}

// dayFromTime converts a time.Time to YYYYMMDD integer format
func dayFromTime(t time.Time) int {
	return t.Year()*10000 + int(t.Month())*100 + t.Day()
}

func (w *WriteDaily) now() time.Time {
	if w.Now != nil {
		return w.Now().UTC()
	}
	return time.Now().UTC()
}

// writer returns today's log file, creating it if needed.
// rotated is the path of the file closed because the day changed.
// must hold w.mu
func (w *WriteDaily) writer() (f io.Writer, rotated string, err error) {
	now := w.now()
	today := dayFromTime(now)

	if w.file != nil && w.currentDate != today {
		rotated = w.path
		if err = w.close(); err != nil {
			return nil, "", err
		}
	}

	if w.file == nil {
		name := now.Format("2006-01-02") + ".txt"
		path := filepath.Join(w.Dir, name)
		if err = os.MkdirAll(w.Dir, 0755); err != nil {
			return nil, rotated, err
		}
		w.file, err = os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return nil, rotated, err
		}
		w.path = path
		w.currentDate = today
	}
	return w.file, rotated, nil
}

// Write writes data to the daily log file
// it's safe to call on nil receiver
func (w *WriteDaily) Write(d []byte) error {
	if w == nil {
		return nil
	}
	w.mu.Lock()
	wr, rotated, err := w.writer()
	if err == nil {
		_, err = wr.Write(d)
	}
	w.mu.Unlock()

	if rotated != "" && w.OnRotate != nil {
		w.OnRotate(rotated)
	}
	return err
}

// Path returns path of the file currently written to
func (w *WriteDaily) Path() string {
	if w == nil {
		return ""
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.path
}

func (w *WriteDaily) close() error {
	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	w.path = ""
	w.currentDate = 0
	return err
}

// Close closes the daily log file
// it's safe to call on nil receiver
func (w *WriteDaily) Close() error {
	if w == nil {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.close()
}

// Sync flushes the daily log file to disk
// it's safe to call on nil receiver
func (w *WriteDaily) Sync() error {
	if w == nil {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file != nil {
		return w.file.Sync()
	}
	return nil
}

// CompressFileBrotli writes path as path + ".br" and deletes path
func CompressFileBrotli(path string) (string, error) {
	pathBr := path + ".br"
	r, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer r.Close()
	err = atomicfile.WriteFrom(pathBr, func(w io.Writer) error {
		bw := brotli.NewWriterLevel(w, brotli.BestCompression)
		if _, err := io.Copy(bw, r); err != nil {
			return err
		}
		return bw.Close()
	})
	if err != nil {
		return "", err
	}
	r.Close()
	return pathBr, os.Remove(path)
}

func compressRotated(path string) {
	// runs in the background, can't log to a file we might be rotating
	go func() {
		if _, err := CompressFileBrotli(path); err != nil {
			fmt.Printf("log: failed to compress '%s': %s\n", path, err)
		}
	}()
}

type Config struct {
	// directory where log files are stored
	// each log type (regular, error, event, http) has its own subdirectory
	Dir string
	// if true, log files from previous days are compressed with brotli
	CompressRotated bool
	// called for every Logf() call
	// allows sending logs to other places
	OnLog func(s string)
}

// Init initializes the logging system
// log files are stored in config.Dir
func Init(config *Config) {
	dir := config.Dir
	log = NewWriteDaily(filepath.Join(dir, "log"))
	errorsLog = NewWriteDaily(filepath.Join(dir, "errors"))
	// those don't create files until first write so if app doesn't
	// log http requests or events, it's a no-op
	httpLog = NewWriteDaily(filepath.Join(dir, "http"))
	eventsLog = NewWriteDaily(filepath.Join(dir, "events"))
	if config.CompressRotated {
		for _, w := range []*WriteDaily{log, errorsLog, httpLog, eventsLog} {
			w.OnRotate = compressRotated
		}
	}
	onLog = config.OnLog
}

// CloseWriteDaily closes the WriteDaily and sets its pointer to nil
// it's safe to call with nil pointer
func CloseWriteDaily(wd **WriteDaily) {
	if *wd == nil {
		return
	}
	(*wd).Sync()
	(*wd).Close()
	*wd = nil
}

func Close() {
	CloseWriteDaily(&log)
	CloseWriteDaily(&httpLog)
	CloseWriteDaily(&errorsLog)
	CloseWriteDaily(&eventsLog)
}

func Logf(s string, args ...any) {
	if len(args) > 0 {
		s = fmt.Sprintf(s, args...)
	}
	fmt.Print(s)
	log.WriteString(s)
	if onLog != nil {
		onLog(s)
	}
}

func GetCallstackFrames(skip int) []string {
	var callers [32]uintptr
	n := runtime.Callers(skip+1, callers[:])
	frames := runtime.CallersFrames(callers[:n])
	var cs []string
	for {
		frame, more := frames.Next()
		s := frame.File + ":" + strconv.Itoa(frame.Line)
		cs = append(cs, s)
		if !more {
			break
		}
	}
	return cs
}

func GetCallstack(skip int) string {
	frames := GetCallstackFrames(skip + 1)
	return strings.Join(frames, "\n")
}

func Verbosef(format string, args ...any) {
	if !Verbose {
		return
	}
	Logf(format, args...)
}

// Errorf logs an error message along with the callstack,
// also to the errors log
func Errorf(s string, args ...any) {
	if len(args) > 0 {
		s = fmt.Sprintf(s, args...)
	}
	if !strings.HasSuffix(s, "\n") {
		s += "\n"
	}
	cs := GetCallstack(2)
	s = s + cs + "\n"
	Logf("%s", s)
	errorsLog.WriteString(s)
}

// if err != nil, log and return true
// IfErrf(err) => logs err.Error()
// IfErrf(err, "error is: %v", err) => logs message formatted
func IfErrf(err error, a ...any) bool {
	if err == nil {
		return false
	}
	if len(a) == 0 {
		Errorf("%s", err.Error())
		return true
	}
	s, ok := a[0].(string)
	if !ok {
		s = fmt.Sprintf("%s", a[0])
	}
	if len(a) > 1 {
		s = fmt.Sprintf(s, a[1:]...)
	}
	Errorf("%s", s)
	return true
}

func panicIf(cond bool) {
	if cond {
		panic("condition is true")
	}
}

func pickFirst(s string) string {
	parts := strings.Split(s, ",")
	return strings.TrimSpace(parts[0])
}

// BestRemoteAddress picks the most accurate IP address from client request
// needed because of proxies
func BestRemoteAddress(r *http.Request) string {
	h := r.Header
	for _, val := range []string{h.Get("CF-Connecting-IP"), h.Get("X-Real-Ip"), h.Get("X-Forwarded-For"), r.RemoteAddr} {
		if len(val) > 0 {
			return pickFirst(val)
		}
	}
	return ""
}

// simpleTypeToStr converts simple types to string
// panics if v is of complex type
func simpleTypeToStr(v any) string {
	rt := reflect.TypeOf(v)
	kind := rt.Kind()
	switch kind {
	case reflect.Array, reflect.Slice, reflect.Struct, reflect.Map, reflect.Chan, reflect.Interface, reflect.Pointer:
		panic(fmt.Sprintf("toStr: value is of kind %v", kind))
	case reflect.String:
		return v.(string)
	}
	return fmt.Sprintf("%v", v)
}

// marshalEventLine formats an event as:
// "--- ${len(d)} ${unix_ms} ${name}\n${d}\n"
func marshalEventLine(name string, t time.Time, d []byte) []byte {
	var buf bytes.Buffer
	buf.WriteString("--- ")
	buf.WriteString(strconv.Itoa(len(d)))
	buf.WriteString(" ")
	buf.WriteString(strconv.FormatInt(t.UnixMilli(), 10))
	buf.WriteString(" ")
	buf.WriteString(name)
	buf.WriteByte('\n')
	if len(d) > 0 {
		buf.Write(d)
		if d[len(d)-1] != '\n' {
			buf.WriteByte('\n')
		}
	}
	return buf.Bytes()
}

// Event logs event, with key / value pairs encoded in toon format
func Event(name string, vals ...any) {
	n := len(vals)
	panicIf(n%2 != 0)
	var d []byte
	if n > 0 {
		m := map[string]any{}
		for i := 0; i < n; i += 2 {
			k := simpleTypeToStr(vals[i])
			m[k] = vals[i+1]
		}
		d, _ = toon.Marshal(m)
	}
	t := time.Now().UTC()
	eventsLog.Write(marshalEventLine(name, t, d))
}

func EventFromRequest(r *http.Request, name string, vals ...any) {
	if r != nil {
		vals = append(vals, "ip", BestRemoteAddress(r))
	}
	Event(name, vals...)
}

func HTTPRequestToWriteDaily(w *WriteDaily, r *http.Request, code int, nWritten int64, dur time.Duration) error {
	rawQuery := r.URL.RawQuery
	if len(rawQuery) > 128 {
		rawQuery = rawQuery[:128]
	}

	entry := map[string]any{
		"ts":     time.Now().UTC().Unix(),
		"method": r.Method,
		"url":    r.URL.Path,
		"query":  rawQuery,
		"host":   r.Host,
		"ip":     BestRemoteAddress(r),
		"code":   code,
		"size":   nWritten,
		"dur":    float64(dur.Microseconds()) / 1000.0, // milliseconds with decimal precision
	}
	if referer := r.Header.Get("Referer"); referer != "" {
		entry["referer"] = referer
	}
	if ua := r.Header.Get("User-Agent"); ua != "" {
		entry["ua"] = ua
	}
	if contentType := r.Header.Get("Content-Type"); contentType != "" {
		entry["content_type"] = contentType
	}

	buf := &strings.Builder{}
	encoder := json.NewEncoder(buf)
	// avoid unnecessary escaping
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(entry); err != nil {
		return err
	}
	// Encode adds a newline
	return w.WriteString(buf.String())
}

func HTTPRequest(r *http.Request, code int, nWritten int64, dur time.Duration) error {
	return HTTPRequestToWriteDaily(httpLog, r, code, nWritten, dur)
}
