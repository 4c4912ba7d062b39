package httpserver

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"chat_backend/internal/domain"
	"chat_backend/internal/service"
)

type friendRequestBody struct {
	ToUserID string `json:"to_user_id"`
}

type joinRequestBody struct {
	GroupID string `json:"group_id"`
}

func handleSendFriendRequest(friendSvc *service.FriendService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req friendRequestBody
		if !decodeJSON(w, r, &req) {
			return
		}
		view, err := friendSvc.SendRequest(r.Context(), CurrentUser(r).ID, req.ToUserID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, view)
	}
}

func handleRespondFriendRequest(friendSvc *service.FriendService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req service.RespondInput
		if !decodeJSON(w, r, &req) {
			return
		}
		view, err := friendSvc.Respond(r.Context(), CurrentUser(r).ID, req)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, view)
	}
}

func handlePendingFriendRequests(friendSvc *service.FriendService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reqs, err := friendSvc.Pending(r.Context(), CurrentUser(r).ID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, reqs)
	}
}

func handleSentFriendRequests(friendSvc *service.FriendService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reqs, err := friendSvc.Sent(r.Context(), CurrentUser(r).ID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, reqs)
	}
}

func handleListFriends(friendSvc *service.FriendService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		friends, err := friendSvc.Friends(r.Context(), CurrentUser(r).ID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, friends)
	}
}

// formBool parses an optional boolean form field.
func formBool(r *http.Request, key string) (*bool, error) {
	raw := formValue(r, key)
	if raw == nil || *raw == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(*raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be true or false", domain.ErrInvalidInput, key)
	}
	return &b, nil
}

// handleCreateGroup accepts JSON or a multipart form with an optional
// "image" file.
func handleCreateGroup(groupSvc *service.GroupService, uploads *uploadStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in service.CreateGroupInput
		if isMultipart(r) {
			if err := uploads.parseForm(r); err != nil {
				writeError(w, r, err)
				return
			}
			in.Name = r.FormValue("name")
			in.Description = r.FormValue("description")
			isPublic, err := formBool(r, "is_public")
			if err != nil {
				writeError(w, r, err)
				return
			}
			in.IsPublic = isPublic
			image, err := uploads.formImage(r, "image")
			if err != nil {
				writeError(w, r, err)
				return
			}
			if image != nil {
				in.ImageURL = *image
			}
		} else if !decodeJSON(w, r, &in) {
			return
		}

		group, err := groupSvc.Create(r.Context(), CurrentUser(r).ID, in)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, group)
	}
}

func handleUpdateGroup(groupSvc *service.GroupService, uploads *uploadStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in service.UpdateGroupInput
		if isMultipart(r) {
			if err := uploads.parseForm(r); err != nil {
				writeError(w, r, err)
				return
			}
			in.Name = formValue(r, "name")
			in.Description = formValue(r, "description")
			isPublic, err := formBool(r, "is_public")
			if err != nil {
				writeError(w, r, err)
				return
			}
			in.IsPublic = isPublic
			image, err := uploads.formImage(r, "image")
			if err != nil {
				writeError(w, r, err)
				return
			}
			in.ImageURL = image
		} else if !decodeJSON(w, r, &in) {
			return
		}

		group, err := groupSvc.Update(r.Context(), CurrentUser(r).ID, chi.URLParam(r, "groupID"), in)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, group)
	}
}

func handleGetGroup(groupSvc *service.GroupService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		group, err := groupSvc.Get(r.Context(), chi.URLParam(r, "groupID"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, group)
	}
}

func handleMyGroups(groupSvc *service.GroupService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		groups, err := groupSvc.MyGroups(r.Context(), CurrentUser(r).ID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, groups)
	}
}

func handleRequestJoin(groupSvc *service.GroupService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req joinRequestBody
		if !decodeJSON(w, r, &req) {
			return
		}
		if req.GroupID == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "group_id is required"})
			return
		}
		view, err := groupSvc.RequestJoin(r.Context(), CurrentUser(r).ID, req.GroupID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, view)
	}
}

func handleRespondJoin(groupSvc *service.GroupService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req service.RespondInput
		if !decodeJSON(w, r, &req) {
			return
		}
		view, err := groupSvc.RespondJoin(r.Context(), CurrentUser(r).ID, req)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, view)
	}
}

func handleGroupJoinRequests(groupSvc *service.GroupService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reqs, err := groupSvc.PendingForGroup(r.Context(), CurrentUser(r).ID, chi.URLParam(r, "groupID"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, reqs)
	}
}

func handleMyJoinRequests(groupSvc *service.GroupService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reqs, err := groupSvc.MyRequests(r.Context(), CurrentUser(r).ID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, reqs)
	}
}

func handleSearch(searchSvc *service.SearchService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := searchSvc.Search(r.Context(), CurrentUser(r).ID, r.URL.Query().Get("query"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}
