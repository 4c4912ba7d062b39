package httpserver

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"chat_backend/internal/config"
	"chat_backend/internal/service"
)

// Services groups the application services the HTTP layer calls into.
type Services struct {
	Auth     *service.AuthService
	Users    *service.UserService
	Friends  *service.FriendService
	Groups   *service.GroupService
	Messages *service.MessageService
	Search   *service.SearchService
}

// OnlineLister reports the identities currently registered in presence.
type OnlineLister interface {
	Online() []string
	IsOnline(userID string) bool
}

// NewRouter constructs the main HTTP router and wires routes, services, and middleware.
func NewRouter(cfg *config.Config, svc Services, presence OnlineLister, gateway http.Handler, log zerolog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(AccessLog(log))
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	uploads := newUploadStore(cfg.UploadDir, cfg.MaxUploadBytes)
	requireUser := AuthMiddleware(svc.Auth)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})
	r.Handle("/metrics", promhttp.Handler())

	// The websocket outlives any request timeout.
	r.Get("/ws", gateway.ServeHTTP)

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Timeout(60 * time.Second))

		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", handleRegister(svc.Auth))
			r.Post("/login", handleLogin(svc.Auth))
			r.With(requireUser).Post("/logout", handleLogout(svc.Auth))
			r.With(requireUser).Get("/me", handleMe(svc.Auth))
		})

		// Files are referenced from <img> tags, so reads stay public.
		r.Mount("/uploads", UploadRoutes(uploads, requireUser))

		r.Group(func(r chi.Router) {
			r.Use(requireUser)

			r.Route("/users", func(r chi.Router) {
				r.Get("/online", handleListOnlineUsers(svc.Users, presence))
				r.Put("/profile", handleUpdateProfile(svc.Users, uploads))
				r.Get("/{userID}", handleGetUser(svc.Users, presence))
			})

			r.Route("/friends", func(r chi.Router) {
				r.Get("/", handleListFriends(svc.Friends))
				r.Post("/request", handleSendFriendRequest(svc.Friends))
				r.Post("/respond", handleRespondFriendRequest(svc.Friends))
				r.Get("/pending", handlePendingFriendRequests(svc.Friends))
				r.Get("/sent", handleSentFriendRequests(svc.Friends))
			})

			r.Route("/groups", func(r chi.Router) {
				r.Post("/", handleCreateGroup(svc.Groups, uploads))
				r.Get("/user/my-groups", handleMyGroups(svc.Groups))
				r.Get("/{groupID}", handleGetGroup(svc.Groups))
				r.Put("/{groupID}", handleUpdateGroup(svc.Groups, uploads))
			})

			r.Route("/group-requests", func(r chi.Router) {
				r.Post("/request", handleRequestJoin(svc.Groups))
				r.Post("/respond", handleRespondJoin(svc.Groups))
				r.Get("/group/{groupID}", handleGroupJoinRequests(svc.Groups))
				r.Get("/my-requests", handleMyJoinRequests(svc.Groups))
			})

			r.Route("/messages", func(r chi.Router) {
				r.Post("/", handleSendMessage(svc.Messages))
				r.Get("/chats", handleListChats(svc.Messages))
				r.Get("/{chatID}", handleHistory(svc.Messages))
			})

			r.Get("/search", handleSearch(svc.Search))
		})
	})

	return r
}

// writeJSON is a small helper to send JSON responses.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return false
	}
	return true
}
