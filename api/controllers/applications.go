package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sponzahq/sponza-backend/api/responses"
	"github.com/sponzahq/sponza-backend/api/validators"
	"github.com/sponzahq/sponza-backend/internal/applications"
	"github.com/sponzahq/sponza-backend/pkg/enums"
	pkgerrors "github.com/sponzahq/sponza-backend/pkg/errors"
	"github.com/sponzahq/sponza-backend/pkg/logger"
)

type applyRequest struct {
	Proposal string          `json:"proposal" validate:"required,min=10"`
	Pricing  decimal.Decimal `json:"pricing" validate:"required"`
}

type rejectApplicationRequest struct {
	Reason string `json:"reason" validate:"required,min=3,max=500"`
}

// ApplyToCampaign records an influencer pitch against a published campaign.
func ApplyToCampaign(svc applications.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "applications service unavailable"))
			return
		}

		influencerID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		campaignID, err := validators.ParsePathUUID(chi.URLParam(r, "campaignId"), "campaignId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body applyRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		application, err := svc.Apply(r.Context(), influencerID, applications.ApplyInput{
			CampaignID: campaignID,
			Proposal:   body.Proposal,
			Pricing:    body.Pricing,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, application)
	}
}

// ListCampaignApplications returns the applications for one campaign.
func ListCampaignApplications(svc applications.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "applications service unavailable"))
			return
		}

		campaignID, err := validators.ParsePathUUID(chi.URLParam(r, "campaignId"), "campaignId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", 0, 1, maxPageSize)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		params := applications.ListParams{
			CampaignID: &campaignID,
			Limit:      limit,
			Cursor:     strings.TrimSpace(r.URL.Query().Get("cursor")),
		}
		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			status, err := enums.ParseApplicationStatus(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status"))
				return
			}
			params.Status = &status
		}

		result, err := svc.List(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// ListMyApplications returns the authenticated influencer's applications.
func ListMyApplications(svc applications.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "applications service unavailable"))
			return
		}

		influencerID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", 0, 1, maxPageSize)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.List(r.Context(), applications.ListParams{
			InfluencerID: &influencerID,
			Limit:        limit,
			Cursor:       strings.TrimSpace(r.URL.Query().Get("cursor")),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// AcceptApplication accepts a pitch, opening the collaboration and the
// pending payment.
func AcceptApplication(svc applications.Service, logg *logger.Logger) http.HandlerFunc {
	return applicationDecision(svc, logg, func(r *http.Request, brandID, applicationID uuid.UUID) (any, error) {
		return svc.Accept(r.Context(), brandID, applicationID)
	})
}

// CompleteApplication settles an accepted application's collaboration.
func CompleteApplication(svc applications.Service, logg *logger.Logger) http.HandlerFunc {
	return applicationDecision(svc, logg, func(r *http.Request, brandID, applicationID uuid.UUID) (any, error) {
		return svc.Complete(r.Context(), brandID, applicationID)
	})
}

// RejectApplication declines a pitch with a reason.
func RejectApplication(svc applications.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "applications service unavailable"))
			return
		}

		brandID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		applicationID, err := validators.ParsePathUUID(chi.URLParam(r, "applicationId"), "applicationId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body rejectApplicationRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		application, err := svc.Reject(r.Context(), brandID, applicationID, body.Reason)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, application)
	}
}

// GetCollaboration returns the collaboration spawned by an accepted
// application.
func GetCollaboration(svc applications.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "applications service unavailable"))
			return
		}

		applicationID, err := validators.ParsePathUUID(chi.URLParam(r, "applicationId"), "applicationId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		collab, err := svc.GetCollaboration(r.Context(), applicationID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, collab)
	}
}

func applicationDecision(
	svc applications.Service,
	logg *logger.Logger,
	decide func(r *http.Request, brandID, applicationID uuid.UUID) (any, error),
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "applications service unavailable"))
			return
		}

		brandID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		applicationID, err := validators.ParsePathUUID(chi.URLParam(r, "applicationId"), "applicationId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := decide(r, brandID, applicationID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
