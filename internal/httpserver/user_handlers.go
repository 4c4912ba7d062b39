package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"chat_backend/internal/service"
)

// handleGetUser reports is_online from live presence; the stored flag is only
// updated asynchronously.
func handleGetUser(userSvc *service.UserService, presence OnlineLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, err := userSvc.GetProfile(r.Context(), chi.URLParam(r, "userID"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		user.IsOnline = presence.IsOnline(user.ID)
		writeJSON(w, http.StatusOK, user)
	}
}

// handleListOnlineUsers answers from live presence rather than the stored
// is_online flag.
func handleListOnlineUsers(userSvc *service.UserService, presence OnlineLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		users, err := userSvc.Summaries(r.Context(), presence.Online())
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, users)
	}
}

// handleUpdateProfile accepts JSON or a multipart form with an optional
// "image" file.
func handleUpdateProfile(userSvc *service.UserService, uploads *uploadStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in service.UpdateProfileInput
		if isMultipart(r) {
			if err := uploads.parseForm(r); err != nil {
				writeError(w, r, err)
				return
			}
			in.Bio = formValue(r, "bio")
			in.Email = formValue(r, "email")
			image, err := uploads.formImage(r, "image")
			if err != nil {
				writeError(w, r, err)
				return
			}
			in.ImageURL = image
		} else if !decodeJSON(w, r, &in) {
			return
		}

		user, err := userSvc.UpdateProfile(r.Context(), CurrentUser(r).ID, in)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, user)
	}
}
