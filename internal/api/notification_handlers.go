package api

import (
	"net/http"
	"strconv"

	"github.com/hackgods/practice-booking/internal/auth"
	"github.com/hackgods/practice-booking/internal/notification"
)

func audienceOf(p auth.Principal) notification.Audience {
	if p.Role == auth.RolePractitioner {
		return notification.ForPractitioner(p.UserID, p.Email)
	}
	return notification.ForClient(p.Email)
}

func listNotificationsHandler(svc NotificationService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		includeHidden := false
		if raw := r.URL.Query().Get("includeHidden"); raw != "" {
			v, err := strconv.ParseBool(raw)
			if err != nil {
				writeError(w, r, badRequest("includeHidden must be a boolean"))
				return
			}
			includeHidden = v
		}
		limit, err := intQuery(r, "limit", 0)
		if err != nil {
			writeError(w, r, err)
			return
		}

		list, err := svc.List(r.Context(), audienceOf(principal(r)), includeHidden, limit)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, NotificationsResponse{Notifications: list})
	}
}

func updateNotificationsHandler(svc NotificationService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req UpdateNotificationsRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		n, err := svc.Update(r.Context(), audienceOf(principal(r)), req.IDs, req.Read, req.Hidden)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, CountResponse{Updated: n})
	}
}

func hideNotificationsHandler(svc NotificationService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req HideNotificationsRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		n, err := svc.Hide(r.Context(), audienceOf(principal(r)), req.IDs)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, CountResponse{Updated: n})
	}
}

func markAllReadHandler(svc NotificationService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n, err := svc.MarkAllRead(r.Context(), audienceOf(principal(r)))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, CountResponse{Updated: n})
	}
}
