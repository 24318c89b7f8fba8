package handlers

import (
	"net/http"
)

// Connect upgrades the request to a websocket and joins the client to
// its session's event room. Browsers cannot set custom headers on a
// websocket handshake, so the token may also arrive as a query
// parameter; either way an unknown token resolves to a fresh session
// and the "connected" event echoes the token actually in effect.
func (h *Handlers) Connect(w http.ResponseWriter, r *http.Request) {
	presented := r.URL.Query().Get("session_id")
	if presented == "" {
		presented = r.Header.Get(sessionHeader)
	}

	_, token := h.registry.Resolve(presented)
	h.hub.Serve(w, r, token)
}
