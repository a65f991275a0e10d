package admin

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/athena-engine/athena/internal/registry"
	"github.com/athena-engine/athena/internal/server"
	"github.com/athena-engine/athena/internal/version"
	"github.com/athena-engine/athena/internal/websocket"
)

// PageSource lists registered pages.
type PageSource interface {
	Entries() []registry.Entry
	Title(path string) (string, error)
}

// StatsSource reports engine counters.
type StatsSource interface {
	Stats() server.Stats
}

// Handlers implements the admin endpoints. Nil sources are reported as
// empty rather than failing the request.
type Handlers struct {
	Pages   PageSource
	Engine  StatsSource
	Hub     *websocket.Hub
	Build   version.BuildInfo
	Started time.Time

	now func() time.Time
}

// HealthResponse is the body of /healthz.
type HealthResponse struct {
	Status           string        `json:"status"`
	Version          string        `json:"version"`
	Uptime           string        `json:"uptime"`
	Pages            int           `json:"pages"`
	WebSocketClients int           `json:"websocket_clients"`
	Engine           *server.Stats `json:"engine,omitempty"`
}

// PageInfo is one element of /pages.
type PageInfo struct {
	Path       string `json:"path"`
	File       string `json:"file"`
	Accessible bool   `json:"accessible"`
	Title      string `json:"title,omitempty"`
}

func (h *Handlers) clock() time.Time {
	if h.now != nil {
		return h.now()
	}
	return time.Now()
}

// HandleHealth reports liveness and engine counters.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:  "ok",
		Version: h.Build.Version,
	}
	if !h.Started.IsZero() {
		resp.Uptime = h.clock().Sub(h.Started).Truncate(time.Second).String()
	}
	if h.Pages != nil {
		resp.Pages = len(h.Pages.Entries())
	}
	if h.Hub != nil {
		resp.WebSocketClients = h.Hub.Clients()
	}
	if h.Engine != nil {
		st := h.Engine.Stats()
		resp.Engine = &st
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandlePages lists registered pages with their titles.
func (h *Handlers) HandlePages(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.pageInfos())
}

func (h *Handlers) pageInfos() []PageInfo {
	if h.Pages == nil {
		return []PageInfo{}
	}
	entries := h.Pages.Entries()
	infos := make([]PageInfo, 0, len(entries))
	for _, e := range entries {
		info := PageInfo{Path: e.Path, File: e.File, Accessible: e.Accessible}
		if e.Accessible {
			// Unreadable pages are listed without a title.
			info.Title, _ = h.Pages.Title(e.Path)
		}
		infos = append(infos, info)
	}
	return infos
}

// HandleIndex renders the HTML overview.
func (h *Handlers) HandleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	page := indexPage(h.Build, h.pageInfos(), h.Hub != nil)
	if err := page.Render(r.Context(), w); err != nil {
		http.Error(w, "render failed", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
