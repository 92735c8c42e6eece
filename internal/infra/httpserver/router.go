package httpserver

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"
	"github.com/google/uuid"

	appanalysis "github.com/iotecha/loggy/internal/application/analysis"
	"github.com/iotecha/loggy/internal/application/sessions"
	"github.com/iotecha/loggy/internal/extract"
	"github.com/iotecha/loggy/internal/middleware"
	"github.com/iotecha/loggy/internal/multipart"
	"github.com/iotecha/loggy/internal/search"
	"github.com/iotecha/loggy/internal/signatures"
)

// Version reported by /api/status.
const Version = "1.0"

type Router struct {
	svc          *appanalysis.Service
	store        *sessions.Store
	catalog      *signatures.Catalog
	uploadDir    string
	analyzerPath string
}

func New(svc *appanalysis.Service, store *sessions.Store, catalog *signatures.Catalog, uploadDir, analyzerPath string) http.Handler {
	r := &Router{
		svc:          svc,
		store:        store,
		catalog:      catalog,
		uploadDir:    uploadDir,
		analyzerPath: analyzerPath,
	}
	mux := chi.NewRouter()

	mux.Use(middleware.Logging)
	mux.Use(middleware.Recover)
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins:     []string{"*"},
		AllowedMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:     []string{"Content-Type"},
		OptionsPassthrough: true,
	}))
	// Answer every OPTIONS with 204 before route matching; cors has
	// already stamped the preflight headers by this point. The allow
	// header goes on every response, not just ones carrying an Origin
	// header, so curl and other non-browser clients see it too.
	mux.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			if req.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, req)
		})
	})

	mux.Route("/api", func(rt chi.Router) {
		rt.Get("/status", r.wrap(r.handleStatus))
		rt.Get("/sessions", r.wrap(r.handleSessions))
		rt.Get("/check", r.wrap(r.handleCheck))
		rt.Get("/signatures", r.wrap(r.handleSignatures))

		rt.Route("/session/{id}", func(rt chi.Router) {
			rt.Get("/info", r.wrap(r.handleInfo))
			rt.Get("/results", r.wrap(r.handleResults))
			rt.Get("/search", r.wrap(r.handleSearch))
			rt.Get("/components", r.wrap(r.handleComponents))
			rt.Get("/report", r.wrap(r.handleReport))
		})

		rt.Post("/upload", r.wrap(r.handleUpload))
		rt.Post("/analyze", r.wrap(r.handleAnalyze))
		rt.Post("/compare", r.wrap(r.handleCompare))
		rt.Post("/fleet", r.wrap(r.handleFleet))
	})

	mux.NotFound(func(w http.ResponseWriter, req *http.Request) {
		render.Status(req, http.StatusNotFound)
		render.JSON(w, req, map[string]string{"error": "not found"})
	})
	mux.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		render.Status(req, http.StatusNotFound)
		render.JSON(w, req, map[string]string{"error": "not found"})
	})

	return mux
}

// apiError carries an HTTP status alongside the message.
type apiError struct {
	code int
	msg  string
}

func (e *apiError) Error() string { return e.msg }

func badRequest(msg string) error { return &apiError{code: http.StatusBadRequest, msg: msg} }
func notFound(msg string) error   { return &apiError{code: http.StatusNotFound, msg: msg} }

type handlerFunc func(http.ResponseWriter, *http.Request) error

// wrap converts error-returning handlers into http.HandlerFuncs; every
// error surfaces as a JSON body, never a bare status.
func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		err := h(w, req)
		if err == nil {
			return
		}
		var ae *apiError
		switch {
		case errors.As(err, &ae):
			render.Status(req, ae.code)
			render.JSON(w, req, map[string]string{"error": ae.msg})
		case errors.Is(err, sessions.ErrNotFound):
			render.Status(req, http.StatusNotFound)
			render.JSON(w, req, map[string]string{"error": "session not found"})
		default:
			render.Status(req, http.StatusInternalServerError)
			render.JSON(w, req, map[string]string{"error": err.Error()})
		}
	}
}

func (r *Router) handleStatus(w http.ResponseWriter, req *http.Request) error {
	render.JSON(w, req, map[string]any{
		"ok":       true,
		"version":  Version,
		"sessions": r.store.Count(),
		"analyzer": r.analyzerPath,
	})
	return nil
}

type sessionSummary struct {
	ID       string `json:"id"`
	State    string `json:"state"`
	DeviceID string `json:"device_id"`
	Input    string `json:"input"`
	Mode     string `json:"mode"`
}

func (r *Router) handleSessions(w http.ResponseWriter, req *http.Request) error {
	list := []sessionSummary{}
	for _, s := range r.store.List() {
		list = append(list, sessionSummary{
			ID:       s.ID,
			State:    string(s.State),
			DeviceID: s.DeviceID,
			Input:    filepath.Base(s.InputPath),
			Mode:     s.Mode,
		})
	}
	render.JSON(w, req, map[string]any{"sessions": list})
	return nil
}

func (r *Router) handleCheck(w http.ResponseWriter, req *http.Request) error {
	ok, output := r.svc.Check(req.Context())
	render.JSON(w, req, map[string]any{"ok": ok, "output": output})
	return nil
}

func (r *Router) handleSignatures(w http.ResponseWriter, req *http.Request) error {
	render.JSON(w, req, map[string]any{"signatures": r.catalog.Load()})
	return nil
}

func (r *Router) handleInfo(w http.ResponseWriter, req *http.Request) error {
	sess, ok := r.store.Get(chi.URLParam(req, "id"))
	if !ok {
		return notFound("session not found")
	}
	reports := []string{}
	for _, rep := range extract.Reports(sess.ReportsDir) {
		reports = append(reports, rep.Name)
	}
	render.JSON(w, req, map[string]any{"session": map[string]any{
		"id":        sess.ID,
		"state":     string(sess.State),
		"device_id": sess.DeviceID,
		"input":     filepath.Base(sess.InputPath),
		"mode":      sess.Mode,
		"reports":   reports,
	}})
	return nil
}

type resultsResponse struct {
	extract.ResultSet
	RawOutput string `json:"raw_output"`
}

func (r *Router) handleResults(w http.ResponseWriter, req *http.Request) error {
	rs, raw, err := r.svc.Results(chi.URLParam(req, "id"))
	if err != nil {
		return err
	}
	render.JSON(w, req, resultsResponse{ResultSet: rs, RawOutput: raw})
	return nil
}

func (r *Router) handleSearch(w http.ResponseWriter, req *http.Request) error {
	params := req.URL.Query()
	max, _ := strconv.Atoi(params.Get("max"))
	hits, err := r.svc.Search(chi.URLParam(req, "id"), search.Query{
		Pattern:    params.Get("q"),
		Severity:   params.Get("severity"),
		Component:  params.Get("component"),
		MaxResults: max,
	})
	if err != nil {
		return err
	}
	render.JSON(w, req, map[string]any{"results": hits, "count": len(hits)})
	return nil
}

func (r *Router) handleComponents(w http.ResponseWriter, req *http.Request) error {
	comps, err := r.svc.Components(chi.URLParam(req, "id"))
	if err != nil {
		return err
	}
	render.JSON(w, req, map[string]any{"components": comps})
	return nil
}

func (r *Router) handleReport(w http.ResponseWriter, req *http.Request) error {
	sess, ok := r.store.Get(chi.URLParam(req, "id"))
	if !ok {
		return notFound("session not found")
	}
	name := req.URL.Query().Get("file")
	if name == "" {
		return badRequest("missing file param")
	}
	path := filepath.Join(sess.ReportsDir, filepath.Base(name))
	data, err := os.ReadFile(path)
	if err != nil {
		return notFound("report not found")
	}
	ct := mime.TypeByExtension(filepath.Ext(path))
	if ct == "" {
		ct = "application/octet-stream"
	}
	if ct == "application/octet-stream" {
		w.Header().Set("Content-Disposition", `attachment; filename="`+filepath.Base(path)+`"`)
	}
	w.Header().Set("Content-Type", ct)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	_, err = w.Write(data)
	return err
}

func (r *Router) handleUpload(w http.ResponseWriter, req *http.Request) error {
	ct := req.Header.Get("Content-Type")
	if strings.Contains(ct, "multipart") {
		return r.uploadMultipart(w, req, ct)
	}

	var body struct {
		Path string `json:"path"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		return badRequest("invalid json")
	}
	if body.Path == "" {
		return badRequest("missing path")
	}
	abs, err := filepath.Abs(body.Path)
	if err != nil {
		return badRequest("path not found: " + body.Path)
	}
	if _, err := os.Stat(abs); err != nil {
		return badRequest("path not found: " + body.Path)
	}
	sid, err := r.store.Create(abs)
	if err != nil {
		return err
	}
	render.JSON(w, req, map[string]any{"ok": true, "session_id": sid, "file": filepath.Base(abs)})
	return nil
}

func (r *Router) uploadMultipart(w http.ResponseWriter, req *http.Request, ct string) error {
	raw, err := readBody(req)
	if err != nil {
		return badRequest("unreadable body")
	}
	form := multipart.Parse(ct, raw)
	part, ok := form["file"]
	if !ok || part.Filename == "" {
		return badRequest("no file")
	}
	if err := os.MkdirAll(r.uploadDir, 0o755); err != nil {
		return err
	}
	safe := filepath.Base(part.Filename)
	dest := filepath.Join(r.uploadDir, strings.ReplaceAll(uuid.NewString(), "-", "")[:8]+"_"+safe)
	if err := os.WriteFile(dest, part.Data, 0o644); err != nil {
		return err
	}
	sid, err := r.store.Create(dest)
	if err != nil {
		return err
	}
	render.JSON(w, req, map[string]any{"ok": true, "session_id": sid, "file": safe})
	return nil
}

func (r *Router) handleAnalyze(w http.ResponseWriter, req *http.Request) error {
	var body struct {
		SessionID string `json:"session_id"`
		Mode      string `json:"mode"`
		Web       bool   `json:"web"`
		Mail      bool   `json:"mail"`
		Tickets   bool   `json:"tickets"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		return badRequest("invalid json")
	}
	res, err := r.svc.Analyze(req.Context(), appanalysis.AnalyzeCommand{
		SessionID: body.SessionID,
		Mode:      body.Mode,
		Web:       body.Web,
		Mail:      body.Mail,
		Tickets:   body.Tickets,
	})
	if err != nil {
		return err
	}
	render.JSON(w, req, res)
	return nil
}

func (r *Router) handleCompare(w http.ResponseWriter, req *http.Request) error {
	var body struct {
		Baseline string `json:"baseline"`
		Target   string `json:"target"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		return badRequest("invalid json")
	}
	if body.Baseline == "" || body.Target == "" {
		return badRequest("need baseline and target")
	}
	res, err := r.svc.Compare(req.Context(), body.Baseline, body.Target)
	if err != nil {
		return err
	}
	render.JSON(w, req, res)
	return nil
}

func (r *Router) handleFleet(w http.ResponseWriter, req *http.Request) error {
	var body struct {
		Directory string `json:"directory"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		return badRequest("invalid json")
	}
	if body.Directory == "" {
		return badRequest("missing directory")
	}
	if st, err := os.Stat(body.Directory); err != nil || !st.IsDir() {
		return badRequest("directory not found: " + body.Directory)
	}
	res, err := r.svc.Fleet(req.Context(), body.Directory)
	if err != nil {
		return err
	}
	render.JSON(w, req, res)
	return nil
}

func readBody(req *http.Request) ([]byte, error) {
	defer req.Body.Close()
	return io.ReadAll(req.Body)
}
