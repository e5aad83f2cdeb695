package handlers

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/garba-app/apiserver/config"
	"github.com/garba-app/apiserver/internal/services"
)

// AdminHandler provides the admin login and stats endpoints. The admin is
// not a user row; its credentials come from configuration and a successful
// login yields a token bound to the reserved admin principal.
type AdminHandler struct {
	userService *services.UserService
	tokens      *services.TokenService
	credentials config.AdminConfig
}

func NewAdminHandler(userService *services.UserService, tokens *services.TokenService, credentials config.AdminConfig) *AdminHandler {
	return &AdminHandler{
		userService: userService,
		tokens:      tokens,
		credentials: credentials,
	}
}

// AdminRouter registers admin routes on the given router.
func AdminRouter(r chi.Router, userService *services.UserService, tokens *services.TokenService, credentials config.AdminConfig) {
	handler := NewAdminHandler(userService, tokens, credentials)

	r.Post("/login", handler.Login)
	r.With(requireAuth(tokens), requireAdmin).Get("/users/stats", handler.Stats)
}

type AdminLoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type AdminLoginResponse struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	Token    string `json:"token"`
	Message  string `json:"message"`
}

// Login checks the configured admin credential pair and issues an admin
// token. Comparison is constant-time on both fields.
func (h *AdminHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req AdminLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	if strings.TrimSpace(req.Username) == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "missing credentials")
		return
	}

	if h.credentials.Username == "" || h.credentials.Password == "" {
		writeError(w, http.StatusUnauthorized, "Invalid admin credentials")
		return
	}

	usernameOK := subtle.ConstantTimeCompare([]byte(req.Username), []byte(h.credentials.Username)) == 1
	passwordOK := subtle.ConstantTimeCompare([]byte(req.Password), []byte(h.credentials.Password)) == 1
	if !usernameOK || !passwordOK {
		writeError(w, http.StatusUnauthorized, "Invalid admin credentials")
		return
	}

	token, err := h.tokens.IssueAdmin()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create token")
		return
	}

	writeJSON(w, http.StatusOK, AdminLoginResponse{
		Username: h.credentials.Username,
		Role:     "ADMIN",
		Token:    token,
		Message:  "Admin login successful",
	})
}

// Stats returns total and per-plan user counts.
func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.userService.Stats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get user stats")
		return
	}

	writeJSON(w, http.StatusOK, stats)
}
