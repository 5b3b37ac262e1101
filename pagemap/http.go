package pagemap

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hazyhaar/domsight/guard"
	"github.com/hazyhaar/domsight/kit"
	"github.com/hazyhaar/domsight/pagemap/snapshot"
	"github.com/hazyhaar/domsight/shield"
)

// maxRequestBody caps JSON and inline HTML request bodies.
const maxRequestBody = 10 << 20

// Router returns the HTTP API:
//
//	GET    /pages                  list pages
//	POST   /pages                  open a page {id, url, stealth_level, html}
//	DELETE /pages/{id}             close a page
//	GET    /pages/{id}/snapshot    latest snapshot
//	POST   /pages/{id}/snapshot    take a snapshot; body overrides the default config
//	POST   /pages/{id}/resolve     {locator}
//	POST   /pages/{id}/commands    snapshot.Command
//	GET    /pages/{id}/view        HTML view of the latest snapshot
//	GET    /pages/{id}/prompt      prompt listing (?format=markdown)
//	GET    /pages/{id}/history     journaled commands (?limit=)
func (e *Engine) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	for _, mw := range shield.APIStack(maxRequestBody) {
		r.Use(mw)
	}
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := kit.WithTransport(r.Context(), "http")
			ctx = kit.WithRequestID(ctx, middleware.GetReqID(r.Context()))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	})

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/pages", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, e.Pages())
		})
		r.Post("/", e.handleOpen)

		r.Route("/{id}", func(r chi.Router) {
			r.Delete("/", func(w http.ResponseWriter, r *http.Request) {
				if err := e.ClosePage(chi.URLParam(r, "id")); err != nil {
					writeError(w, err)
					return
				}
				w.WriteHeader(http.StatusNoContent)
			})
			r.Get("/snapshot", e.handleLatest)
			r.Post("/snapshot", e.handleSnapshot)
			r.Post("/resolve", e.handleResolve)
			r.Post("/commands", e.handleCommand)
			r.Get("/view", e.handleView)
			r.Get("/prompt", e.handlePrompt)
			r.Get("/history", e.handleHistory)
		})
	})
	return r
}

func (e *Engine) handleOpen(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID           string `json:"id"`
		URL          string `json:"url"`
		StealthLevel string `json:"stealth_level"`
		HTML         string `json:"html"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	var (
		info *PageInfo
		err  error
	)
	if req.HTML != "" {
		info, err = e.OpenHTML(req.ID, req.URL, req.HTML)
	} else {
		info, err = e.OpenPage(r.Context(), PageConfig{ID: req.ID, URL: req.URL, StealthLevel: req.StealthLevel})
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, info)
}

func (e *Engine) handleLatest(w http.ResponseWriter, r *http.Request) {
	snap, err := e.latestOrErr(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (e *Engine) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, errors.Join(errBadRequest, err))
		return
	}
	cfg, err := e.overrideConfig(body)
	if err != nil {
		writeError(w, err)
		return
	}
	snap, err := e.Snapshot(r.Context(), chi.URLParam(r, "id"), cfg)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (e *Engine) handleResolve(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Locator string `json:"locator"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	res, err := e.Resolve(r.Context(), chi.URLParam(r, "id"), req.Locator)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (e *Engine) handleCommand(w http.ResponseWriter, r *http.Request) {
	var cmd snapshot.Command
	if err := decodeBody(r, &cmd); err != nil {
		writeError(w, err)
		return
	}
	out, err := e.Execute(r.Context(), chi.URLParam(r, "id"), cmd)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (e *Engine) handleView(w http.ResponseWriter, r *http.Request) {
	view, err := e.View(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	io.WriteString(w, "<!DOCTYPE html>\n<meta charset=\"utf-8\">\n"+view)
}

func (e *Engine) handlePrompt(w http.ResponseWriter, r *http.Request) {
	text, err := e.Prompt(chi.URLParam(r, "id"), r.URL.Query().Get("format") == "markdown")
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	io.WriteString(w, text)
}

func (e *Engine) handleHistory(w http.ResponseWriter, r *http.Request) {
	entries, err := e.History(r.Context(), chi.URLParam(r, "id"), queryInt(r, "limit", 50))
	if err != nil {
		writeError(w, err)
		return
	}
	if entries == nil {
		entries = []JournalEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// errBadRequest marks malformed request bodies.
var errBadRequest = errors.New("pagemap: bad request")

func decodeBody(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errors.Join(errBadRequest, err)
	}
	return nil
}

// statusOf maps engine errors to HTTP status codes.
func statusOf(err error) int {
	switch {
	case errors.Is(err, snapshot.ErrUnknownPage), errors.Is(err, ErrNoSnapshot):
		return http.StatusNotFound
	case errors.Is(err, snapshot.ErrConfiguration), errors.Is(err, errBadRequest),
		errors.Is(err, guard.ErrInvalidIdentifier), errors.Is(err, guard.ErrUnsafeScheme):
		return http.StatusBadRequest
	case errors.Is(err, guard.ErrPrivateAddress):
		return http.StatusForbidden
	case errors.Is(err, snapshot.ErrUnsupported):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusOf(err), map[string]string{"error": err.Error()})
}

func queryInt(r *http.Request, key string, def int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || v <= 0 {
		return def
	}
	return v
}
