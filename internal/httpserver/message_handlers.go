package httpserver

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"chat_backend/internal/service"
)

const defaultHistoryLimit = 50

// handleSendMessage stores the message and fans it out to subscribers of the
// conversation.
func handleSendMessage(msgSvc *service.MessageService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req service.SendMessageInput
		if !decodeJSON(w, r, &req) {
			return
		}
		msg, err := msgSvc.Send(r.Context(), CurrentUser(r).ID, req)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, msg)
	}
}

func handleListChats(msgSvc *service.MessageService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		chats, err := msgSvc.Chats(r.Context(), CurrentUser(r).ID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, chats)
	}
}

func queryInt(r *http.Request, key string, def int) (int, bool) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return n, true
}

func handleHistory(msgSvc *service.MessageService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, ok := queryInt(r, "limit", defaultHistoryLimit)
		if !ok || limit <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid limit"})
			return
		}
		skip, ok := queryInt(r, "skip", 0)
		if !ok || skip < 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid skip"})
			return
		}

		msgs, err := msgSvc.History(r.Context(), CurrentUser(r).ID, chi.URLParam(r, "chatID"), limit, skip)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, msgs)
	}
}
