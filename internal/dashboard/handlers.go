package dashboard

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ziadkadry99/topoview/internal/card"
	"github.com/ziadkadry99/topoview/internal/panel"
)

// eventRequest is a card input event. Action names a control button; when
// set the event targets that button.
type eventRequest struct {
	card.Event
	Action string `json:"action,omitempty"`
}

type eventResponse struct {
	PreventDefault bool          `json:"prevent_default"`
	Snapshot       card.Snapshot `json:"snapshot"`
}

func (d *Dashboard) handleSessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"sessions": d.Sessions()})
}

func (d *Dashboard) handlePage(w http.ResponseWriter, r *http.Request) {
	entry := chi.URLParam(r, "entry")
	c, err := d.session(r.Context(), entry)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := renderPage(w, entry, c.Snapshot()); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (d *Dashboard) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	c, ok := d.card(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, c.Snapshot())
}

func (d *Dashboard) handleEvent(w http.ResponseWriter, r *http.Request) {
	var req eventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid event: " + err.Error()})
		return
	}
	c, ok := d.card(w, r)
	if !ok {
		return
	}
	ev := req.Event
	if req.Action != "" {
		ev.Target = c.Control(req.Action)
		if ev.Target == nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown action: " + req.Action})
			return
		}
	}
	prevent := c.Dispatch(ev)
	writeJSON(w, http.StatusOK, eventResponse{PreventDefault: prevent, Snapshot: c.Snapshot()})
}

func (d *Dashboard) handleBack(w http.ResponseWriter, r *http.Request) {
	c, ok := d.card(w, r)
	if !ok {
		return
	}
	c.Back()
	writeJSON(w, http.StatusOK, c.Snapshot())
}

func (d *Dashboard) handleTab(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Tab string `json:"tab"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	c, ok := d.card(w, r)
	if !ok {
		return
	}
	if err := c.Panel().SetTab(panel.Tab(req.Tab)); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, c.Snapshot())
}

func (d *Dashboard) handleMoreInfo(w http.ResponseWriter, r *http.Request) {
	var req struct {
		EntityID string `json:"entity_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.EntityID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "entity_id is required"})
		return
	}
	c, ok := d.card(w, r)
	if !ok {
		return
	}
	if err := c.MoreInfo(req.EntityID); err != nil {
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "scheduled"})
}

func (d *Dashboard) handleClose(w http.ResponseWriter, r *http.Request) {
	if !d.CloseSession(chi.URLParam(r, "entry")) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no session"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// card returns the session for the request's entry, writing the error
// response itself when there is none.
func (d *Dashboard) card(w http.ResponseWriter, r *http.Request) (*card.Card, bool) {
	c, err := d.session(r.Context(), chi.URLParam(r, "entry"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return nil, false
	}
	return c, true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
