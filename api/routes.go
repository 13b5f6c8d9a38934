package api

import "net/http"

// Routes registers every endpoint on a new mux. projector serves the live
// feed and metrics the Prometheus scrape endpoint; either may be nil.
func (h *Handler) Routes(projector, metrics http.Handler) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /events/storage", h.StorageEvents)

	mux.HandleFunc("POST /api/users/{userId}", h.CreateUser)
	mux.HandleFunc("PUT /api/users/{userId}/lang", h.SetLanguage)
	mux.HandleFunc("POST /api/users/{userId}/uploads", h.StartUpload)
	mux.HandleFunc("PUT /api/users/{userId}/guesses/{noun}", h.SubmitGuess)
	mux.HandleFunc("GET /api/scenes/{scene}", h.Scene)

	mux.HandleFunc("GET /admin/current_scene", h.GetCurrentScene)
	mux.HandleFunc("PUT /admin/current_scene", h.SetCurrentScene)
	mux.HandleFunc("PUT /admin/scenes/{scene}/nouns/{noun}", h.AddNoun)

	mux.HandleFunc("GET /healthz", h.Healthz)
	if metrics != nil {
		mux.Handle("GET /metrics", metrics)
	}
	if projector != nil {
		mux.Handle("GET /ws/projector", projector)
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if CORS(w, r) {
			return
		}
		mux.ServeHTTP(w, r)
	})
}
