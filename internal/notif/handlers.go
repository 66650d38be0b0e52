package notif

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"ripple/internal/common"
	"ripple/internal/dbmysql"
)

// Handler exposes the notification read side over HTTP. The acting user is
// taken from the X-User-ID header placed there by the auth middleware
// upstream.
type Handler struct {
	service *Service
	log     *zap.Logger
}

func NewHandler(service *Service, log *zap.Logger) *Handler {
	return &Handler{service: service, log: log}
}

// RegisterRoutes mounts the notification API on the given subrouter.
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/users/{userID}", h.List).Methods("GET")
	r.HandleFunc("/users/{userID}/grouped", h.ListGrouped).Methods("GET")
	r.HandleFunc("/users/{userID}/unread-count", h.UnreadCount).Methods("GET")
	r.HandleFunc("/users/{userID}/settings", h.GetSettings).Methods("GET")
	r.HandleFunc("/users/{userID}/settings", h.UpdateSettings).Methods("PUT")
	r.HandleFunc("/{notificationID}/read", h.MarkAsRead).Methods("PUT")
	r.HandleFunc("/{notificationID}", h.Delete).Methods("DELETE")
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userID"]
	limit, offset := pagination(r)

	notifications, err := h.service.List(r.Context(), userID, limit, offset)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"notifications": notifications})
}

func (h *Handler) ListGrouped(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userID"]
	limit, offset := pagination(r)

	items, err := h.service.ListGrouped(r.Context(), userID, limit, offset)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"items": items})
}

func (h *Handler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userID"]

	count, err := h.service.UnreadCount(r.Context(), userID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"unread_count": count})
}

func (h *Handler) MarkAsRead(w http.ResponseWriter, r *http.Request) {
	notificationID := mux.Vars(r)["notificationID"]
	userID := r.Header.Get("X-User-ID")
	if userID == "" {
		h.writeError(w, common.AuthorizationError("missing X-User-ID header"))
		return
	}

	if err := h.service.MarkAsRead(r.Context(), notificationID, userID); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	notificationID := mux.Vars(r)["notificationID"]
	userID := r.Header.Get("X-User-ID")
	if userID == "" {
		h.writeError(w, common.AuthorizationError("missing X-User-ID header"))
		return
	}

	if err := h.service.Delete(r.Context(), notificationID, userID); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userID"]

	settings, err := h.service.Settings(r.Context(), userID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, settings)
}

func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userID"]

	var settings dbmysql.NotificationSettings
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		h.writeError(w, common.ValidationError("invalid settings payload: %v", err))
		return
	}
	settings.UserID = userID

	if err := h.service.UpdateSettings(r.Context(), &settings); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, settings)
}

func pagination(r *http.Request) (limit, offset int) {
	limit = 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			offset = n
		}
	}
	return limit, offset
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.log.Warn("failed to write response", zap.Error(err))
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := common.HTTPStatus(err)
	if status == http.StatusInternalServerError {
		h.log.Error("internal error", zap.Error(err))
	}
	h.writeJSON(w, status, map[string]interface{}{"error": err.Error()})
}
