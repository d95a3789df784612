package http

import (
	"net/http"
	"strings"
)

// RouterConfig names the handlers the router dispatches to.
type RouterConfig struct {
	Alarms *AlarmHandler
}

// NewRouter builds the HTTP mux for the alarm control surface.
func NewRouter(cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()

	if cfg.Alarms != nil {
		mux.HandleFunc("/alarms", func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet:
				cfg.Alarms.List(w, r)
			case http.MethodPost:
				cfg.Alarms.Create(w, r)
			default:
				methodNotAllowed(w, http.MethodGet, http.MethodPost)
			}
		})
		mux.HandleFunc("/alarms/", func(w http.ResponseWriter, r *http.Request) {
			rest := strings.TrimPrefix(r.URL.Path, "/alarms/")
			if rest == "" {
				http.NotFound(w, r)
				return
			}

			if rest == "next" {
				if r.Method != http.MethodGet {
					methodNotAllowed(w, http.MethodGet)
					return
				}
				cfg.Alarms.NextFiring(w, r)
				return
			}

			id, action, _ := strings.Cut(rest, "/")
			r = r.WithContext(ContextWithAlarmID(r.Context(), id))

			switch action {
			case "":
				switch r.Method {
				case http.MethodGet:
					cfg.Alarms.Get(w, r)
				case http.MethodPut:
					cfg.Alarms.Update(w, r)
				case http.MethodDelete:
					cfg.Alarms.Delete(w, r)
				default:
					methodNotAllowed(w, http.MethodGet, http.MethodPut, http.MethodDelete)
				}
			case "enable", "disable":
				if r.Method != http.MethodPost {
					methodNotAllowed(w, http.MethodPost)
					return
				}
				cfg.Alarms.SetEnabled(w, r, action == "enable")
			default:
				http.NotFound(w, r)
			}
		})

		mux.HandleFunc("/instances/", func(w http.ResponseWriter, r *http.Request) {
			rest := strings.TrimPrefix(r.URL.Path, "/instances/")
			id, action, _ := strings.Cut(rest, "/")
			if id == "" {
				http.NotFound(w, r)
				return
			}
			r = r.WithContext(ContextWithInstanceID(r.Context(), id))

			if r.Method != http.MethodPost {
				methodNotAllowed(w, http.MethodPost)
				return
			}
			switch action {
			case "snooze":
				cfg.Alarms.Snooze(w, r)
			case "dismiss":
				cfg.Alarms.Dismiss(w, r)
			default:
				http.NotFound(w, r)
			}
		})

		mux.HandleFunc("/reconcile", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				methodNotAllowed(w, http.MethodPost)
				return
			}
			cfg.Alarms.Reconcile(w, r)
		})
	}

	return mux
}

func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
}
