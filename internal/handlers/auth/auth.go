package auth

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"gitlab.com/autoserver-2025.net/internal/core/services/auth"
	"gitlab.com/autoserver-2025.net/internal/domain"
	"gitlab.com/autoserver-2025.net/internal/handlers/response"
	"gitlab.com/autoserver-2025.net/internal/static/errs"
)

// LoginRequest carries operator credentials
type LoginRequest struct {
	UserName string `json:"userName"`
	Password string `json:"password"`
}

type Handler struct {
	authService auth.IAuthService
}

func NewHandler(authService auth.IAuthService) *Handler {
	return &Handler{
		authService: authService,
	}
}

func (h *Handler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/auth/login", h.Login).Methods("POST")
}

// Login exchanges operator credentials for a role-scoped token
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.WriteError(w, response.ErrorMessage{
			Message:    "Invalid request",
			StatusCode: http.StatusBadRequest,
		})
		return
	}

	token, err := h.authService.Login(r.Context(), req.UserName, req.Password)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, errs.InvalidCredentials) {
			status = http.StatusUnauthorized
		}
		response.WriteError(w, response.ErrorMessage{
			Message:    err.Error(),
			StatusCode: status,
		})
		return
	}

	response.WriteSuccess(w, domain.LoginResponse{
		Token: token,
	})
}
