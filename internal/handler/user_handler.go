package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"go-videotube/internal/middleware"
	"go-videotube/internal/model"
	"go-videotube/internal/service"
	"go-videotube/pkg/apierror"
)

type UserHandler struct {
	sessions      *service.SessionService
	accounts      *service.AccountService
	audit         *service.AuditService
	cookies       CookieConfig
	maxUploadSize int64
	tempDir       string
}

func NewUserHandler(
	sessions *service.SessionService,
	accounts *service.AccountService,
	audit *service.AuditService,
	cookies CookieConfig,
	maxUploadSize int64,
	tempDir string,
) *UserHandler {
	return &UserHandler{
		sessions:      sessions,
		accounts:      accounts,
		audit:         audit,
		cookies:       cookies,
		maxUploadSize: maxUploadSize,
		tempDir:       tempDir,
	}
}

func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	// avatar and cover image share one request
	form, err := readMultipart(w, r, 2*h.maxUploadSize+(1<<20), h.tempDir, "avatar", "coverImage")
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer form.discard()

	user, err := h.accounts.Register(r.Context(), model.RegisterInput{
		Username:       form.values["username"],
		Email:          form.values["email"],
		FullName:       form.values["fullName"],
		Password:       form.values["password"],
		AvatarPath:     form.take("avatar"),
		CoverImagePath: form.take("coverImage"),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusCreated, "user registered successfully", user)
}

func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	var payload model.LoginRequest
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, r, err)
		return
	}

	result, err := h.sessions.Login(r.Context(), payload.LoginIdentifier(), payload.Password, actorFromRequest(r))
	if err != nil {
		writeError(w, r, err)
		return
	}

	h.cookies.setSession(w, result.TokenPair)
	writeSuccess(w, http.StatusOK, "user logged in successfully", result)
}

func (h *UserHandler) Logout(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeError(w, r, model.ErrUnauthorized)
		return
	}

	if err := h.sessions.Logout(r.Context(), user.ID, actorFromRequest(r)); err != nil {
		writeError(w, r, err)
		return
	}

	h.cookies.clearSession(w)
	writeSuccess(w, http.StatusOK, "user logged out", struct{}{})
}

// RefreshToken reads the refresh token from its cookie, falling back to the
// JSON body.
func (h *UserHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	presented := ""
	if cookie, err := r.Cookie(middleware.RefreshTokenCookie); err == nil {
		presented = strings.TrimSpace(cookie.Value)
	}
	if presented == "" && r.ContentLength != 0 {
		var payload model.RefreshRequest
		if err := decodeJSON(w, r, &payload); err != nil {
			writeError(w, r, err)
			return
		}
		presented = payload.RefreshToken
	}

	pair, err := h.sessions.Refresh(r.Context(), presented, actorFromRequest(r))
	if err != nil {
		var apiErr *apierror.APIError
		if errors.As(err, &apiErr) && apiErr.HTTPStatus == http.StatusUnauthorized {
			h.cookies.clearSession(w)
		}
		writeError(w, r, err)
		return
	}

	h.cookies.setSession(w, pair)
	writeSuccess(w, http.StatusOK, "access token refreshed", pair)
}

func (h *UserHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeError(w, r, model.ErrUnauthorized)
		return
	}

	var payload model.ChangePasswordRequest
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, r, err)
		return
	}

	if err := h.sessions.ChangePassword(r.Context(), user.ID, payload.OldPassword, payload.NewPassword, actorFromRequest(r)); err != nil {
		writeError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, "password changed successfully", struct{}{})
}

func (h *UserHandler) CurrentUser(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeError(w, r, model.ErrUnauthorized)
		return
	}

	current, err := h.accounts.GetCurrentUser(r.Context(), user.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, "current user fetched successfully", current)
}

func (h *UserHandler) UpdateAccount(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeError(w, r, model.ErrUnauthorized)
		return
	}

	var payload model.UpdateAccountRequest
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, r, err)
		return
	}

	updated, err := h.accounts.UpdateAccountDetails(r.Context(), user.ID, payload)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, "account details updated successfully", updated)
}

func (h *UserHandler) UpdateAvatar(w http.ResponseWriter, r *http.Request) {
	h.updateMedia(w, r, "avatar", h.accounts.UpdateAvatar)
}

func (h *UserHandler) UpdateCoverImage(w http.ResponseWriter, r *http.Request) {
	h.updateMedia(w, r, "coverImage", h.accounts.UpdateCoverImage)
}

func (h *UserHandler) updateMedia(
	w http.ResponseWriter,
	r *http.Request,
	field string,
	update func(ctx context.Context, userID string, tempPath string) (model.PublicUser, error),
) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeError(w, r, model.ErrUnauthorized)
		return
	}

	form, err := readMultipart(w, r, h.maxUploadSize+(1<<20), h.tempDir, field)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer form.discard()

	updated, err := update(r.Context(), user.ID, form.take(field))
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, field+" updated successfully", updated)
}

func (h *UserHandler) ChannelProfile(w http.ResponseWriter, r *http.Request) {
	viewer, _ := middleware.UserFromContext(r.Context())

	profile, err := h.accounts.GetChannelProfile(r.Context(), chi.URLParam(r, "username"), viewer.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, "user channel fetched successfully", profile)
}

func (h *UserHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	h.changeSubscription(w, r, h.accounts.Subscribe, "subscribed")
}

func (h *UserHandler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	h.changeSubscription(w, r, h.accounts.Unsubscribe, "unsubscribed")
}

func (h *UserHandler) changeSubscription(
	w http.ResponseWriter,
	r *http.Request,
	change func(ctx context.Context, viewerID string, username string) (model.ChannelProfile, error),
	verb string,
) {
	viewer, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeError(w, r, model.ErrUnauthorized)
		return
	}

	profile, err := change(r.Context(), viewer.ID, chi.URLParam(r, "username"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, verb+" successfully", profile)
}

func (h *UserHandler) SecurityEvents(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeError(w, r, model.ErrUnauthorized)
		return
	}

	query := r.URL.Query()
	entries, err := h.audit.Query(r.Context(), user.ID, query.Get("action"), parseIntOrDefault(query.Get("limit"), 50))
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, "security events fetched successfully", entries)
}

func parseIntOrDefault(raw string, fallback int) int {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fallback
	}
	return value
}
