package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/chatwire/wabridge/internal/api/recovery"
)

// NewRouter wires all routes. The SSE push channel and the mutating or
// data-bearing endpoints sit behind the dashboard token; status and
// health stay public for external probes. CORS wraps the router itself
// so preflights get answered for every path.
func NewRouter(h *Handler, events http.Handler, mediaDir, token string) http.Handler {
	root := mux.NewRouter()
	root.Use(recovery.New(h.log))

	auth := func(next http.Handler) http.Handler { return RequireToken(token, next) }

	root.Handle("/events", auth(events)).Methods("GET")

	root.HandleFunc("/status", h.Status).Methods("GET")
	root.HandleFunc("/healthz", h.Healthz).Methods("GET")

	root.Handle("/send", auth(http.HandlerFunc(h.Send))).Methods("POST")
	root.Handle("/messages", auth(http.HandlerFunc(h.ListMessages))).Methods("GET")
	root.Handle("/chats", auth(http.HandlerFunc(h.ListChats))).Methods("GET")

	root.HandleFunc("/media/by-id/{id}", h.MediaByID).Methods("GET")
	root.PathPrefix("/media/").Handler(
		http.StripPrefix("/media/", http.FileServer(http.Dir(mediaDir))),
	).Methods("GET")

	return CORS(root)
}

func pathVar(r *http.Request, key string) string {
	return mux.Vars(r)[key]
}
