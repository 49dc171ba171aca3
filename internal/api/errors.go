package api

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/hackgods/practice-booking/internal/appointment"
	"github.com/hackgods/practice-booking/internal/auth"
	"github.com/hackgods/practice-booking/internal/availability"
	"github.com/hackgods/practice-booking/internal/civil"
	"github.com/hackgods/practice-booking/internal/identity"
	"github.com/hackgods/practice-booking/internal/license"
	"github.com/hackgods/practice-booking/internal/notification"
)

const (
	TagBadRequest           = "bad_request"
	TagNotFound             = "not_found"
	TagConflict             = "conflict"
	TagLimitReached         = "limit_reached"
	TagPastDate             = "past_date"
	TagLicenseBlocked       = "license_blocked"
	TagInvalidLicenseFormat = "invalid_license_format"
	TagUnauthorized         = "unauthorized"
	TagForbidden            = "forbidden"
	TagError                = "error"
)

var errForbiddenRole = errors.New("this action is not available for your role")

type errorClass struct {
	status int
	tag    string
	errs   []error
}

var errorClasses = []errorClass{
	{http.StatusBadRequest, TagBadRequest, []error{
		errBadRequest,
		civil.ErrInvalidDate,
		civil.ErrInvalidClock,
		civil.ErrInvalidRange,
		availability.ErrDuplicateRange,
		availability.ErrAllRangesPast,
		availability.ErrInvalidSlotMinutes,
		appointment.ErrInvalidStatusTransition,
		appointment.ErrNotDeletable,
		appointment.ErrNotCompleted,
		appointment.ErrInvalidRating,
		license.ErrInvalidStatus,
		notification.ErrNoIDs,
		notification.ErrNothingToApply,
	}},
	{http.StatusNotFound, TagNotFound, []error{
		identity.ErrPractitionerNotFound,
		identity.ErrClientNotFound,
		appointment.ErrAppointmentNotFound,
		license.ErrRequestNotFound,
	}},
	{http.StatusConflict, TagConflict, []error{
		appointment.ErrSlotTaken,
		appointment.ErrBookingInProgress,
	}},
	{http.StatusConflict, TagLimitReached, []error{appointment.ErrLimitReached}},
	{http.StatusBadRequest, TagPastDate, []error{availability.ErrPastDate, appointment.ErrPastDate}},
	{http.StatusForbidden, TagLicenseBlocked, []error{license.ErrBlocked}},
	{http.StatusBadRequest, TagInvalidLicenseFormat, []error{license.ErrInvalidLicenseFormat}},
	{http.StatusUnauthorized, TagUnauthorized, []error{auth.ErrMissingToken, auth.ErrInvalidToken}},
	{http.StatusForbidden, TagForbidden, []error{appointment.ErrForbidden, errForbiddenRole}},
}

// classify maps a domain error to its HTTP status and tag. Unknown errors
// are internal.
func classify(err error) (int, string) {
	for _, c := range errorClasses {
		for _, target := range c.errs {
			if errors.Is(err, target) {
				return c.status, c.tag
			}
		}
	}
	return http.StatusInternalServerError, TagError
}

// writeError reports err to the caller. Internal errors are logged with the
// request's logger and their details are withheld.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, tag := classify(err)
	if status == http.StatusInternalServerError {
		zerolog.Ctx(r.Context()).Error().Err(err).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Msg("request failed")
		writeJSON(w, status, ErrorResponse{Error: tag})
		return
	}
	writeJSON(w, status, ErrorResponse{Error: tag, Details: err.Error()})
}
