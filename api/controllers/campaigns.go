package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sponzahq/sponza-backend/api/middleware"
	"github.com/sponzahq/sponza-backend/api/responses"
	"github.com/sponzahq/sponza-backend/api/validators"
	"github.com/sponzahq/sponza-backend/internal/campaigns"
	"github.com/sponzahq/sponza-backend/pkg/enums"
	pkgerrors "github.com/sponzahq/sponza-backend/pkg/errors"
	"github.com/sponzahq/sponza-backend/pkg/logger"
)

const maxPageSize = 100

type campaignRequest struct {
	Title       string          `json:"title" validate:"required,min=3,max=200"`
	Description string          `json:"description" validate:"required,min=10"`
	Category    string          `json:"category" validate:"required,min=2,max=80"`
	Budget      decimal.Decimal `json:"budget" validate:"required"`
	StartDate   time.Time       `json:"startDate" validate:"required"`
	EndDate     time.Time       `json:"endDate" validate:"required"`
}

type rejectCampaignRequest struct {
	Note string `json:"note" validate:"required,min=3,max=500"`
}

func campaignInput(body campaignRequest) campaigns.CampaignInput {
	return campaigns.CampaignInput{
		Title:       body.Title,
		Description: body.Description,
		Category:    body.Category,
		Budget:      body.Budget,
		StartDate:   body.StartDate,
		EndDate:     body.EndDate,
	}
}

// CreateCampaign opens a draft campaign for the authenticated brand.
func CreateCampaign(svc campaigns.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "campaigns service unavailable"))
			return
		}

		brandID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body campaignRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		campaign, err := svc.Create(r.Context(), brandID, campaignInput(body))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, campaign)
	}
}

// UpdateCampaign edits a draft or rejected campaign.
func UpdateCampaign(svc campaigns.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "campaigns service unavailable"))
			return
		}

		brandID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		campaignID, err := validators.ParsePathUUID(chi.URLParam(r, "campaignId"), "campaignId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body campaignRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		campaign, err := svc.Update(r.Context(), brandID, campaignID, campaignInput(body))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, campaign)
	}
}

// GetCampaign returns a single campaign by id.
func GetCampaign(svc campaigns.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "campaigns service unavailable"))
			return
		}

		campaignID, err := validators.ParsePathUUID(chi.URLParam(r, "campaignId"), "campaignId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		campaign, err := svc.Get(r.Context(), campaignID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, campaign)
	}
}

// ListCampaigns returns a filtered, cursor-paginated campaign page.
func ListCampaigns(svc campaigns.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "campaigns service unavailable"))
			return
		}

		viewer, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", 0, 1, maxPageSize)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		params := campaigns.ListParams{
			Viewer:     viewer,
			ViewerRole: enums.UserRole(middleware.RoleFromContext(r.Context())),
			Limit:      limit,
			Cursor:     strings.TrimSpace(r.URL.Query().Get("cursor")),
		}

		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			status, err := enums.ParseCampaignStatus(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status"))
				return
			}
			params.Status = &status
		}
		if raw := strings.TrimSpace(r.URL.Query().Get("category")); raw != "" {
			params.Category = &raw
		}
		if raw := strings.TrimSpace(r.URL.Query().Get("brandId")); raw != "" {
			brandID, err := uuid.Parse(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid brandId"))
				return
			}
			params.BrandID = &brandID
		}

		result, err := svc.List(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// PublishCampaign submits a draft for review.
func PublishCampaign(svc campaigns.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "campaigns service unavailable"))
			return
		}

		brandID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		campaignID, err := validators.ParsePathUUID(chi.URLParam(r, "campaignId"), "campaignId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		campaign, err := svc.Submit(r.Context(), brandID, campaignID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, campaign)
	}
}

// ApproveCampaign moves a reviewed campaign live. Admin only.
func ApproveCampaign(svc campaigns.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "campaigns service unavailable"))
			return
		}

		campaignID, err := validators.ParsePathUUID(chi.URLParam(r, "campaignId"), "campaignId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		campaign, err := svc.Approve(r.Context(), campaignID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, campaign)
	}
}

// RejectCampaign sends a reviewed campaign back with a moderation note. Admin only.
func RejectCampaign(svc campaigns.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "campaigns service unavailable"))
			return
		}

		campaignID, err := validators.ParsePathUUID(chi.URLParam(r, "campaignId"), "campaignId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body rejectCampaignRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		campaign, err := svc.Reject(r.Context(), campaignID, body.Note)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, campaign)
	}
}

// CompleteCampaign closes an in-progress campaign.
func CompleteCampaign(svc campaigns.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "campaigns service unavailable"))
			return
		}

		brandID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		campaignID, err := validators.ParsePathUUID(chi.URLParam(r, "campaignId"), "campaignId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		campaign, err := svc.Complete(r.Context(), brandID, campaignID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, campaign)
	}
}

// ArchiveCampaign retires a campaign. Routed as DELETE since archived is the
// product's terminal delete state.
func ArchiveCampaign(svc campaigns.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "campaigns service unavailable"))
			return
		}

		brandID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		campaignID, err := validators.ParsePathUUID(chi.URLParam(r, "campaignId"), "campaignId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		campaign, err := svc.Archive(r.Context(), brandID, campaignID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, campaign)
	}
}
