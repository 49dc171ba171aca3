package api

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/hackgods/practice-booking/internal/auth"
	"github.com/hackgods/practice-booking/internal/availability"
	"github.com/hackgods/practice-booking/internal/civil"
)

// practitionerFor resolves whose calendar a request is about: the
// practitionerId query parameter when present, otherwise the caller.
func practitionerFor(r *http.Request) (uuid.UUID, error) {
	if raw := r.URL.Query().Get("practitionerId"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return uuid.Nil, badRequest("practitionerId must be a valid UUID")
		}
		return id, nil
	}
	p := principal(r)
	if p.Role != auth.RolePractitioner {
		return uuid.Nil, badRequest("practitionerId is required")
	}
	return p.UserID, nil
}

func getAvailabilityHandler(svc AvailabilityService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		practitionerID, err := practitionerFor(r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		date, err := dateQuery(r, "date")
		if err != nil {
			writeError(w, r, err)
			return
		}

		ranges, err := svc.Get(r.Context(), practitionerID, date)
		if err != nil {
			writeError(w, r, err)
			return
		}
		// a day with no saved availability reports null ranges
		writeJSON(w, http.StatusOK, AvailabilityResponse{PractitionerID: practitionerID, Date: date, Ranges: ranges})
	}
}

func saveAvailabilityHandler(svc AvailabilityService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SaveAvailabilityRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		if req.Date.IsZero() {
			writeError(w, r, badRequest("date is required"))
			return
		}

		practitionerID := principal(r).UserID
		kept, err := svc.Save(r.Context(), practitionerID, req.Date, req.Ranges)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, AvailabilityResponse{PractitionerID: practitionerID, Date: req.Date, Ranges: kept})
	}
}

func saveBulkAvailabilityHandler(svc AvailabilityService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SaveBulkAvailabilityRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		if len(req.Dates) == 0 {
			writeError(w, r, badRequest("dates is required"))
			return
		}

		n, err := svc.SaveBulk(r.Context(), principal(r).UserID, req.Dates, req.Ranges)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, BulkAvailabilityResponse{Updated: n})
	}
}

func availableSlotsHandler(resolver SlotResolver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		practitionerID, err := practitionerFor(r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		date, err := dateQuery(r, "date")
		if err != nil {
			writeError(w, r, err)
			return
		}

		mode := r.URL.Query().Get("mode")
		if mode == "" {
			mode = r.URL.Query().Get("as")
		}

		switch mode {
		case "", "ranges":
			ranges, err := resolver.Ranges(r.Context(), practitionerID, date)
			if err != nil {
				writeError(w, r, err)
				return
			}
			if ranges == nil {
				ranges = []civil.Range{}
			}
			writeJSON(w, http.StatusOK, AvailableRangesResponse{
				PractitionerID: practitionerID,
				Date:           date,
				Mode:           "ranges",
				Ranges:         ranges,
			})

		case "slots":
			slotMinutes, err := intQuery(r, "slotMinutes", availability.DefaultSlotMinutes)
			if err != nil {
				writeError(w, r, err)
				return
			}
			slots, err := resolver.Slots(r.Context(), practitionerID, date, slotMinutes)
			if err != nil {
				writeError(w, r, err)
				return
			}
			if slots == nil {
				slots = []civil.Clock{}
			}
			writeJSON(w, http.StatusOK, AvailableSlotsResponse{
				PractitionerID: practitionerID,
				Date:           date,
				Mode:           "slots",
				SlotMinutes:    slotMinutes,
				Slots:          slots,
			})

		default:
			writeError(w, r, badRequest("mode must be ranges or slots"))
		}
	}
}
