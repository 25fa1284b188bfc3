package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"melodex/cache"
	"melodex/config"
	"melodex/core/auth"
	"melodex/core/hooks"
	"melodex/core/maintenance"
	"melodex/core/scanner"
	"melodex/logger"
	"melodex/model"
	"melodex/repository"
	"melodex/storage"
)

const tokenTTL = 24 * time.Hour

// contextKey keeps the auth values out of the way of other packages'
// context values.
type contextKey string

const (
	userIDKey   contextKey = "userID"
	usernameKey contextKey = "username"
)

// APIHandler handles all API requests.
type APIHandler struct {
	cfg       *config.Config
	users     repository.UserRepository
	artists   repository.ArtistRepository
	albums    repository.AlbumRepository
	genres    repository.GenreRepository
	tracks    repository.TrackRepository
	playlists repository.PlaylistRepository
	scanJobs  repository.ScanJobRepository
	scanner   *scanner.Scanner
	maint     *maintenance.Maintenance
	hooks     *hooks.HookAdapter
	covers    storage.CoverStore
	cache     cache.Cache
	progress  *progressHub
}

// NewAPIHandler creates a new API handler.
func NewAPIHandler(
	cfg *config.Config,
	users repository.UserRepository,
	artists repository.ArtistRepository,
	albums repository.AlbumRepository,
	genres repository.GenreRepository,
	tracks repository.TrackRepository,
	playlists repository.PlaylistRepository,
	scanJobs repository.ScanJobRepository,
	s *scanner.Scanner,
	m *maintenance.Maintenance,
	h *hooks.HookAdapter,
	covers storage.CoverStore,
	c cache.Cache,
) *APIHandler {
	return &APIHandler{
		cfg:       cfg,
		users:     users,
		artists:   artists,
		albums:    albums,
		genres:    genres,
		tracks:    tracks,
		playlists: playlists,
		scanJobs:  scanJobs,
		scanner:   s,
		maint:     m,
		hooks:     h,
		covers:    covers,
		cache:     c,
		progress:  newProgressHub(),
	}
}

// AuthMiddleware validates the bearer token and stores the user
// identity in the request context.
func (h *APIHandler) AuthMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "Authorization header is required", http.StatusUnauthorized)
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			http.Error(w, "Invalid authorization header format", http.StatusUnauthorized)
			return
		}

		claims, err := auth.ParseToken(parts[1], h.cfg.JWTSecret)
		if err != nil {
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, claims.UserID)
		ctx = context.WithValue(ctx, usernameKey, claims.Username)
		next.ServeHTTP(w, r.WithContext(ctx))
	}
}

// GetUserIDFromContext extracts the user ID set by AuthMiddleware.
func GetUserIDFromContext(ctx context.Context) (int64, error) {
	userID, ok := ctx.Value(userIDKey).(int64)
	if !ok {
		return 0, fmt.Errorf("user ID not found in context")
	}
	return userID, nil
}

// GetUsernameFromContext extracts the username set by AuthMiddleware.
func GetUsernameFromContext(ctx context.Context) (string, error) {
	username, ok := ctx.Value(usernameKey).(string)
	if !ok {
		return "", fmt.Errorf("username not found in context")
	}
	return username, nil
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			logger.Error("failed to encode response", logger.ErrorField(err))
		}
	}
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string      `json:"token"`
	User  *model.User `json:"user"`
}

// RegisterHandler creates a new user account.
func (h *APIHandler) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		http.Error(w, "Username and password are required", http.StatusBadRequest)
		return
	}
	if strings.ContainsAny(req.Username, "/\\") {
		http.Error(w, "Invalid username", http.StatusBadRequest)
		return
	}

	if _, err := h.users.FindByUsername(r.Context(), req.Username); err == nil {
		http.Error(w, "Username already taken", http.StatusConflict)
		return
	} else if err != repository.ErrNotFound {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	user := &model.User{Username: req.Username, Email: req.Email, PasswordHash: hash}
	id, err := h.users.CreateUser(r.Context(), user)
	if err != nil {
		logger.Error("failed to create user", logger.ErrorField(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	user.ID = id

	respondJSON(w, http.StatusCreated, user)
}

// LoginHandler authenticates a user and issues a session token.
func (h *APIHandler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	user, err := h.users.FindByUsername(r.Context(), req.Username)
	if err == repository.ErrNotFound {
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if !auth.CheckPasswordHash(req.Password, user.PasswordHash) {
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}

	token, err := auth.GenerateToken(user.ID, user.Username, h.cfg.JWTSecret, tokenTTL)
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, loginResponse{Token: token, User: user})
}
