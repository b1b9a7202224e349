package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sponzahq/sponza-backend/api/controllers"
	"github.com/sponzahq/sponza-backend/api/middleware"
	"github.com/sponzahq/sponza-backend/internal/applications"
	"github.com/sponzahq/sponza-backend/internal/auth"
	"github.com/sponzahq/sponza-backend/internal/campaigns"
	"github.com/sponzahq/sponza-backend/internal/ledger"
	"github.com/sponzahq/sponza-backend/internal/notifications"
	"github.com/sponzahq/sponza-backend/internal/settings"
	"github.com/sponzahq/sponza-backend/internal/subscriptions"
	"github.com/sponzahq/sponza-backend/internal/webhooks"
	"github.com/sponzahq/sponza-backend/pkg/config"
	"github.com/sponzahq/sponza-backend/pkg/db"
	"github.com/sponzahq/sponza-backend/pkg/enums"
	"github.com/sponzahq/sponza-backend/pkg/logger"
	pkgredis "github.com/sponzahq/sponza-backend/pkg/redis"
)

// Services collects the domain services the router exposes.
type Services struct {
	Auth          auth.Service
	Campaigns     campaigns.Service
	Applications  applications.Service
	Ledger        ledger.Service
	Subscriptions subscriptions.Service
	Notifications notifications.Service
	Settings      settings.Service
	Webhooks      webhooks.Service
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *pkgredis.Client,
	svcs Services,
) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisClient))
	})

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(middleware.Idempotency(redisClient, logg)).
			Post("/register", controllers.AuthRegister(svcs.Auth, logg))
		r.Post("/login", controllers.AuthLogin(svcs.Auth, logg))
	})

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/gateway", controllers.GatewayWebhook(svcs.Webhooks, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(redisClient, logg))

		r.Route("/campaigns", func(r chi.Router) {
			r.Get("/", controllers.ListCampaigns(svcs.Campaigns, logg))
			r.Get("/{campaignId}", controllers.GetCampaign(svcs.Campaigns, logg))

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(string(enums.UserRoleBrand), logg))
				r.Get("/{campaignId}/applications", controllers.ListCampaignApplications(svcs.Applications, logg))
				r.Post("/", controllers.CreateCampaign(svcs.Campaigns, logg))
				r.Patch("/{campaignId}", controllers.UpdateCampaign(svcs.Campaigns, logg))
				r.Delete("/{campaignId}", controllers.ArchiveCampaign(svcs.Campaigns, logg))
				r.Post("/{campaignId}/publish", controllers.PublishCampaign(svcs.Campaigns, logg))
				r.Post("/{campaignId}/complete", controllers.CompleteCampaign(svcs.Campaigns, logg))
			})

			r.With(middleware.RequireRole(string(enums.UserRoleInfluencer), logg)).
				Post("/{campaignId}/applications", controllers.ApplyToCampaign(svcs.Applications, logg))

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(string(enums.UserRoleAdmin), logg))
				r.Post("/{campaignId}/approve", controllers.ApproveCampaign(svcs.Campaigns, logg))
				r.Post("/{campaignId}/reject", controllers.RejectCampaign(svcs.Campaigns, logg))
			})
		})

		r.Route("/applications", func(r chi.Router) {
			r.Get("/", controllers.ListMyApplications(svcs.Applications, logg))
			r.Get("/{applicationId}/collaboration", controllers.GetCollaboration(svcs.Applications, logg))

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(string(enums.UserRoleBrand), logg))
				r.Post("/{applicationId}/accept", controllers.AcceptApplication(svcs.Applications, logg))
				r.Post("/{applicationId}/reject", controllers.RejectApplication(svcs.Applications, logg))
				r.Post("/{applicationId}/complete", controllers.CompleteApplication(svcs.Applications, logg))
			})
		})

		r.Route("/wallet", func(r chi.Router) {
			r.Get("/", controllers.GetWallet(svcs.Ledger, logg))
			r.Get("/transactions", controllers.ListWalletTransactions(svcs.Ledger, logg))
			r.Post("/topup", controllers.WalletTopup(svcs.Ledger, logg))
			r.Post("/withdraw", controllers.WalletWithdraw(svcs.Ledger, logg))
		})

		r.Post("/payments/verify", controllers.VerifyPayment(svcs.Ledger, logg))

		r.Route("/subscription", func(r chi.Router) {
			r.Get("/", controllers.GetSubscription(svcs.Subscriptions, logg))
			r.Post("/", controllers.CreateSubscription(svcs.Subscriptions, logg))
			r.Post("/confirm", controllers.ConfirmSubscription(svcs.Subscriptions, logg))
			r.Post("/cancel", controllers.CancelSubscription(svcs.Subscriptions, logg))
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", controllers.ListNotifications(svcs.Notifications, logg))
			r.Post("/{notificationId}/read", controllers.MarkNotificationRead(svcs.Notifications, logg))
			r.Post("/read-all", controllers.MarkAllNotificationsRead(svcs.Notifications, logg))
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireRole(string(enums.UserRoleAdmin), logg))
			r.Get("/settings", controllers.AdminGetSettings(svcs.Settings, logg))
			r.Put("/settings", controllers.AdminUpdateSettings(svcs.Settings, logg))
		})
	})

	return r
}
