package http

import "net/http"

type RouterConfig struct {
	Templates  *TemplateHandler
	Sessions   *SessionHandler
	Middleware []func(http.Handler) http.Handler
}

func NewRouter(cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	if cfg.Templates != nil {
		mux.HandleFunc("POST /templates", cfg.Templates.Create)
		mux.HandleFunc("POST /templates/generate", cfg.Templates.GenerateAll)
		mux.HandleFunc("GET /templates/{id}", cfg.Templates.Get)
		mux.HandleFunc("PUT /templates/{id}", cfg.Templates.Update)
		mux.HandleFunc("POST /templates/{id}/generate", cfg.Templates.Generate)
		mux.HandleFunc("POST /templates/{id}/sync", cfg.Templates.Sync)
		mux.HandleFunc("GET /templates/{id}/calendar.ics", cfg.Templates.Calendar)
	}

	if cfg.Sessions != nil {
		mux.HandleFunc("GET /sessions/selectable", cfg.Sessions.Selectable)
		mux.HandleFunc("GET /sessions/{id}", cfg.Sessions.Get)
		mux.HandleFunc("DELETE /sessions/{id}", cfg.Sessions.Delete)
		mux.HandleFunc("GET /sessions/{id}/assignments", cfg.Sessions.GetAssignments)
		mux.HandleFunc("PUT /sessions/{id}/assignments", cfg.Sessions.PutAssignments)
		mux.HandleFunc("PUT /sessions/{id}/status", cfg.Sessions.PutStatus)
		mux.HandleFunc("POST /sessions/{id}/sync", cfg.Sessions.Sync)
		mux.HandleFunc("GET /sessions/{id}/access", cfg.Sessions.Access)
	}

	var handler http.Handler = mux
	for i := len(cfg.Middleware) - 1; i >= 0; i-- {
		if cfg.Middleware[i] != nil {
			handler = cfg.Middleware[i](handler)
		}
	}

	return handler
}
