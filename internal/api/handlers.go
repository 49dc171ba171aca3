package api

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/practice-booking/internal/appointment"
)

func createAppointmentHandler(svc AppointmentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateAppointmentRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, err)
			return
		}

		practitionerID, err := uuid.Parse(req.PractitionerID)
		if err != nil {
			writeError(w, r, badRequest("practitionerId must be a valid UUID"))
			return
		}
		if req.Date.IsZero() {
			writeError(w, r, badRequest("date is required"))
			return
		}
		if req.Time == nil {
			writeError(w, r, badRequest("time is required"))
			return
		}

		appt, err := svc.Book(r.Context(), appointment.BookRequest{
			PractitionerID: practitionerID,
			ClientEmail:    principal(r).Email,
			Date:           req.Date,
			Time:           *req.Time,
			Notes:          req.Notes,
		})
		if err != nil {
			writeError(w, r, err)
			return
		}

		writeJSON(w, http.StatusCreated, appt)
	}
}

func listAppointmentsHandler(svc AppointmentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var f appointment.ListFilter
		q := r.URL.Query()

		if raw := q.Get("status"); raw != "" {
			st, ok := appointment.ParseStatus(raw)
			if !ok {
				writeError(w, r, badRequest("unknown status %q", raw))
				return
			}
			f.Status = &st
		}
		if q.Get("date") != "" {
			d, err := dateQuery(r, "date")
			if err != nil {
				writeError(w, r, err)
				return
			}
			f.Date = &d
		}

		var err error
		if f.Limit, err = intQuery(r, "limit", 0); err != nil {
			writeError(w, r, err)
			return
		}
		if f.Offset, err = intQuery(r, "offset", 0); err != nil {
			writeError(w, r, err)
			return
		}

		list, err := svc.ListAppointments(r.Context(), actorFrom(principal(r)), f)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

func getAppointmentHandler(svc AppointmentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuidParam(r, "id")
		if err != nil {
			writeError(w, r, err)
			return
		}

		detail, err := svc.GetAppointment(r.Context(), actorFrom(principal(r)), id)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, detail)
	}
}

// updateAppointmentHandler applies one change per request: a review when a
// rating is present, otherwise a status transition, otherwise new notes.
func updateAppointmentHandler(svc AppointmentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuidParam(r, "id")
		if err != nil {
			writeError(w, r, err)
			return
		}

		var req UpdateAppointmentRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		actor := actorFrom(principal(r))

		switch {
		case req.Rating != nil:
			review := ""
			if req.Review != nil {
				review = *req.Review
			}
			appt, already, err := svc.Review(r.Context(), actor, id, *req.Rating, review)
			if err != nil {
				writeError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, ReviewResponse{Appointment: appt, AlreadyReviewed: already})

		case req.Status != nil:
			to, ok := appointment.ParseStatus(*req.Status)
			if !ok {
				writeError(w, r, badRequest("unknown status %q", *req.Status))
				return
			}
			appt, err := svc.Transition(r.Context(), actor, id, to)
			if err != nil {
				writeError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, appt)

		case req.Notes != nil:
			appt, err := svc.UpdateNotes(r.Context(), actor, id, *req.Notes)
			if err != nil {
				writeError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, appt)

		default:
			writeError(w, r, badRequest("one of status, notes or rating is required"))
		}
	}
}

func deleteAppointmentHandler(svc AppointmentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuidParam(r, "id")
		if err != nil {
			writeError(w, r, err)
			return
		}
		if err := svc.Delete(r.Context(), actorFrom(principal(r)), id); err != nil {
			writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func streamHandler(hub StreamHub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := principal(r)
		if err := hub.ServeWS(w, r, p.UserID.String(), string(p.Role)); err != nil {
			// the upgrader has already answered the request
			zerolog.Ctx(r.Context()).Warn().Err(err).Msg("websocket upgrade failed")
		}
	}
}
