package controllers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/minelance/minelance-backend/api/responses"
	"github.com/minelance/minelance-backend/api/validators"
	"github.com/minelance/minelance-backend/internal/reports"
	pkgerrors "github.com/minelance/minelance-backend/pkg/errors"
	"github.com/minelance/minelance-backend/pkg/logger"
)

type createReportRequest struct {
	ReportedUserID uuid.UUID  `json:"reported_user_id" validate:"required"`
	OrderID        *uuid.UUID `json:"order_id,omitempty"`
	MessageID      *uuid.UUID `json:"message_id,omitempty"`
	Reason         string     `json:"reason" validate:"required"`
}

type resolveReportRequest struct {
	Action       string  `json:"action" validate:"required"`
	AdminComment *string `json:"admin_comment,omitempty"`
}

func CreateReport(svc reports.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reports service unavailable"))
			return
		}
		caller, err := callerFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body createReportRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		report, err := svc.Create(r.Context(), caller, reports.CreateInput{
			ReportedUserID: body.ReportedUserID,
			OrderID:        body.OrderID,
			MessageID:      body.MessageID,
			Reason:         body.Reason,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, report)
	}
}

// ListReports is the moderation queue, filtered by ?status=.
func ListReports(svc reports.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reports service unavailable"))
			return
		}
		caller, err := callerFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := svc.List(r.Context(), caller, strings.TrimSpace(r.URL.Query().Get("status")), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

// ResolveReport applies an admin decision; approving bans the reported user.
func ResolveReport(svc reports.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reports service unavailable"))
			return
		}
		caller, err := callerFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		reportID, err := validators.ParseUUIDParam(r, "reportId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body resolveReportRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Resolve(r.Context(), caller, reports.ResolveInput{
			ReportID:     reportID,
			Action:       body.Action,
			AdminComment: body.AdminComment,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
