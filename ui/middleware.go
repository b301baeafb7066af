package ui

import (
	"context"
	"net/http"

	"sansfit/internal/session"
)

type contextKey string

const sessionIDKey contextKey = "session_id"

const sessionCookie = "sansfit_session"

// sessionMiddleware assigns every browser a session cookie and resolves
// it to a per-session store for the handlers downstream.
func (a *App) sessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var id string
		if cookie, err := r.Cookie(sessionCookie); err == nil && cookie.Value != "" {
			id = cookie.Value
		} else {
			id = a.c.Sessions.NewSessionID()
			http.SetCookie(w, &http.Cookie{
				Name:     sessionCookie,
				Value:    id,
				Path:     "/",
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})
		}
		ctx := context.WithValue(r.Context(), sessionIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (a *App) sessionID(r *http.Request) string {
	id, _ := r.Context().Value(sessionIDKey).(string)
	return id
}

func (a *App) store(r *http.Request) *session.Store {
	return a.c.Sessions.Get(a.sessionID(r))
}
