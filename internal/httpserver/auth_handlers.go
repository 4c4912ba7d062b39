package httpserver

import (
	"net/http"

	"chat_backend/internal/service"
)

// handleRegister creates the account and answers with a token, logging the
// user in straight away.
func handleRegister(authSvc *service.AuthService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req service.RegisterInput
		if !decodeJSON(w, r, &req) {
			return
		}
		resp, err := authSvc.Register(r.Context(), req)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, resp)
	}
}

func handleLogin(authSvc *service.AuthService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req service.LoginInput
		if !decodeJSON(w, r, &req) {
			return
		}
		resp, err := authSvc.Login(r.Context(), req)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// handleLogout marks the caller offline. Tokens are stateless and stay valid
// until they expire.
func handleLogout(authSvc *service.AuthService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := CurrentUser(r)
		if err := authSvc.Logout(r.Context(), user.ID); err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": "logged out successfully"})
	}
}

func handleMe(authSvc *service.AuthService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, err := authSvc.Me(r.Context(), CurrentUser(r).ID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, user)
	}
}
