package api

import (
	"net/http"

	"github.com/hackgods/practice-booking/internal/license"
)

func licenseStatusHandler(svc LicenseService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view, err := svc.Status(r.Context(), principal(r).Email)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, view)
	}
}

// submitLicenseHandler answers 201 when a request was created or revived and
// 200 when an existing pending or approved request already covers it.
func submitLicenseHandler(svc LicenseService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SubmitLicenseRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, err)
			return
		}

		lr, outcome, err := svc.Submit(r.Context(), principal(r).Email, req.LicenseNumber)
		if err != nil {
			writeError(w, r, err)
			return
		}

		status := http.StatusOK
		if outcome == license.OutcomeCreated || outcome == license.OutcomeRevived {
			status = http.StatusCreated
		}
		writeJSON(w, status, SubmitLicenseResponse{Request: lr, Outcome: outcome})
	}
}

func listLicenseRequestsHandler(svc LicenseService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var filter *license.Status
		if raw := r.URL.Query().Get("status"); raw != "" {
			st, ok := license.ParseStatus(raw)
			if !ok {
				writeError(w, r, badRequest("unknown status %q", raw))
				return
			}
			filter = &st
		}

		list, err := svc.List(r.Context(), filter)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if list == nil {
			list = []license.Request{}
		}
		writeJSON(w, http.StatusOK, list)
	}
}

func getLicenseRequestHandler(svc LicenseService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuidParam(r, "id")
		if err != nil {
			writeError(w, r, err)
			return
		}
		lr, err := svc.Get(r.Context(), id)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, lr)
	}
}

func decideLicenseRequestHandler(svc LicenseService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuidParam(r, "id")
		if err != nil {
			writeError(w, r, err)
			return
		}

		var req DecideLicenseRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		st, ok := license.ParseStatus(req.Status)
		if !ok {
			writeError(w, r, badRequest("unknown status %q", req.Status))
			return
		}

		lr, revoked, err := svc.Decide(r.Context(), id, st, req.Note)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, DecideLicenseResponse{Request: lr, Revoked: revoked})
	}
}

func deleteLicenseRequestHandler(svc LicenseService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuidParam(r, "id")
		if err != nil {
			writeError(w, r, err)
			return
		}
		if err := svc.Delete(r.Context(), id); err != nil {
			writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
