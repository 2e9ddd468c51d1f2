package handler

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/cloudcommerce/user-service/application/port/inbound"
	"github.com/cloudcommerce/user-service/domain/entity"
	domainerr "github.com/cloudcommerce/user-service/domain/error"
	"github.com/cloudcommerce/user-service/infrastructure/http/middleware"
	"github.com/cloudcommerce/user-service/infrastructure/http/response"
	"github.com/cloudcommerce/user-service/infrastructure/http/validator"
)

type AuthHandler struct {
	authUseCase inbound.AuthUseCase
	devMode     bool
}

func NewAuthHandler(authUseCase inbound.AuthUseCase, devMode bool) *AuthHandler {
	return &AuthHandler{
		authUseCase: authUseCase,
		devMode:     devMode,
	}
}

// RegisterRoutes mounts the auth endpoints under /api/auth. Each path also
// gets a method-less fallback so a wrong method answers 405 with Allow set.
func (h *AuthHandler) RegisterRoutes(router *mux.Router, auth *middleware.AuthMiddleware) {
	r := router.PathPrefix("/api/auth").Subrouter()
	routes := []struct {
		path    string
		method  string
		handler http.HandlerFunc
	}{
		{"/login", http.MethodPost, h.Login},
		{"/register", http.MethodPost, auth.OptionalAuth(h.Register)},
		{"/validate", http.MethodPost, h.Validate},
		{"/refresh", http.MethodPost, h.Refresh},
		{"/logout", http.MethodPost, h.Logout},
		{"/me", http.MethodGet, auth.RequireAuth(h.Me)},
	}
	for _, route := range routes {
		r.HandleFunc(route.path, route.handler).Methods(route.method)
		r.HandleFunc(route.path, allowOnly(route.method))
	}
}

func allowOnly(method string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Allow", method)
		MethodNotAllowed(w, r)
	}
}

type tokenRequest struct {
	Token string `json:"token"`
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req inbound.LoginRequest
	if err := validator.DecodeJSON(w, r, &req); err != nil {
		response.FromError(w, err, h.devMode)
		return
	}

	res, err := h.authUseCase.Login(r.Context(), req)
	if err != nil {
		response.FromError(w, err, h.devMode)
		return
	}

	response.Success(w, http.StatusOK, "Login successful", res)
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req inbound.RegisterRequest
	if err := validator.DecodeJSON(w, r, &req); err != nil {
		response.FromError(w, err, h.devMode)
		return
	}

	if claims := middleware.GetUserClaims(r.Context()); claims != nil {
		req.CallerID = claims.UserID
	}

	res, err := h.authUseCase.Register(r.Context(), req)
	if err != nil {
		response.FromError(w, err, h.devMode)
		return
	}

	response.Success(w, http.StatusCreated, "User registered successfully", res)
}

func (h *AuthHandler) Validate(w http.ResponseWriter, r *http.Request) {
	token, err := h.tokenFromRequest(w, r)
	if err != nil {
		response.FromError(w, err, h.devMode)
		return
	}

	res, err := h.authUseCase.Validate(r.Context(), inbound.ValidateRequest{Token: token})
	if err != nil {
		response.FromError(w, err, h.devMode)
		return
	}

	response.Success(w, http.StatusOK, "Token is valid", res)
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	token, err := h.tokenFromRequest(w, r)
	if err != nil {
		response.FromError(w, err, h.devMode)
		return
	}

	res, err := h.authUseCase.Refresh(r.Context(), inbound.RefreshRequest{Token: token})
	if err != nil {
		response.FromError(w, err, h.devMode)
		return
	}

	response.Success(w, http.StatusOK, "Token refreshed successfully", res)
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token, err := h.tokenFromRequest(w, r)
	if err != nil {
		response.FromError(w, err, h.devMode)
		return
	}

	if err := h.authUseCase.Logout(r.Context(), inbound.LogoutRequest{Token: token}); err != nil {
		response.FromError(w, err, h.devMode)
		return
	}

	response.Success(w, http.StatusOK, "Logged out successfully", nil)
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetUserClaims(r.Context())
	if claims == nil {
		response.FromError(w, domainerr.ErrMissingFields("Authorization"), h.devMode)
		return
	}

	view, err := h.authUseCase.Me(r.Context(), claims.UserID)
	if err != nil {
		response.FromError(w, err, h.devMode)
		return
	}

	response.Success(w, http.StatusOK, "success", struct {
		User *entity.UserView `json:"user"`
	}{User: view})
}

// tokenFromRequest reads {"token": ...} from the body and falls back to the
// Authorization header.
func (h *AuthHandler) tokenFromRequest(w http.ResponseWriter, r *http.Request) (string, error) {
	var req tokenRequest
	if err := validator.DecodeJSON(w, r, &req); err != nil {
		return "", err
	}
	if req.Token != "" {
		return req.Token, nil
	}
	token, _ := middleware.BearerToken(r)
	return token, nil
}
