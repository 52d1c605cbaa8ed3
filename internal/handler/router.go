package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	chathandler "github.com/boddenberg/coop-transporte-bfa/internal/chat/handler"
	chatinfra "github.com/boddenberg/coop-transporte-bfa/internal/chat/infra"
	chatservice "github.com/boddenberg/coop-transporte-bfa/internal/chat/service"
	"github.com/boddenberg/coop-transporte-bfa/internal/domain"
	"github.com/boddenberg/coop-transporte-bfa/internal/infra/observability"
	"github.com/boddenberg/coop-transporte-bfa/internal/service"
)

var tracer = otel.Tracer("handler")

// Pinger reports whether a backend answers.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Services are the use cases the router exposes. A nil service leaves its
// routes unmounted.
type Services struct {
	Sessions      *service.SessionService
	RoleRequests  *service.RoleRequestService
	SignUp        *service.SignUpService
	Users         *service.UserService
	Schedules     *service.ScheduleService
	Notifications *service.NotificationService
	Fleet         *service.FleetService
	Incidents     *service.IncidentService
	Rewards       *service.RewardsService
	Settings      *service.SettingsService
	Support       *chatservice.ChatService
	Messaging     *chatservice.MessagingService
	Hub           *chatinfra.Hub

	// FunctionAuth verifies Supabase tokens on /functions/v1.
	FunctionAuth *FunctionAuth
	// Backends are pinged by /healthz, keyed by name.
	Backends map[string]Pinger

	RequestTimeout  time.Duration
	StreamHeartbeat time.Duration
}

// NewRouter creates the HTTP router with all routes and middleware.
func NewRouter(s Services, metrics *observability.Metrics, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))
	r.Use(requestDurationMiddleware(metrics))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(s.Backends))
	r.Get("/readyz", readyzHandler())
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	// --- Hosted functions ---
	if s.FunctionAuth != nil {
		r.Route("/functions/v1", func(r chi.Router) {
			if s.SignUp != nil {
				r.Post("/signup", signupFunctionHandler(s.SignUp, logger))
			}
			if s.RoleRequests != nil {
				r.Group(func(r chi.Router) {
					r.Use(s.FunctionAuth.Middleware)
					r.Post("/create-role-request", createRoleRequestFunctionHandler(s.RoleRequests, logger))
					r.Post("/approve-role-request", approveRoleRequestFunctionHandler(s.RoleRequests, logger))
				})
			}
		})
	}

	if s.Sessions == nil {
		return r
	}

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {
		r.Get("/metrics/access", accessMetricsHandler(metrics))

		// Server-Sent Events stay open; they are kept out of the timeout group.
		if s.Hub != nil {
			r.Group(func(r chi.Router) {
				r.Use(SessionAuthMiddleware(s.Sessions, logger))
				r.Use(RequireRoles(domain.RolePartner, domain.RoleDriver))
				r.Get("/messages/stream", chathandler.StreamHandler(s.Hub, s.StreamHeartbeat, logger))
			})
		}

		r.Group(func(r chi.Router) {
			if s.RequestTimeout > 0 {
				r.Use(middleware.Timeout(s.RequestTimeout))
			}
			mountAPI(r, s, logger)
		})
	})

	return r
}

func mountAPI(r chi.Router, s Services, logger *zap.Logger) {
	// =============================================
	// Session establishment
	// =============================================
	r.Route("/auth", func(r chi.Router) {
		r.Post("/login", authLoginHandler(s.Sessions, logger))
		r.Post("/restore", authRestoreHandler(s.Sessions, logger))

		r.Group(func(r chi.Router) {
			r.Use(SelectionAuthMiddleware(s.Sessions, logger))
			r.Post("/select-role", authSelectRoleHandler(s.Sessions, logger))
			r.Post("/cancel", authCancelHandler(s.Sessions, logger))
		})

		r.Group(func(r chi.Router) {
			r.Use(SessionAuthMiddleware(s.Sessions, logger))
			r.Post("/logout", authLogoutHandler(s.Sessions, logger))
			r.Get("/me", authMeHandler())
		})
	})

	// Everything below requires a RoleActive session.
	r.Group(func(r chi.Router) {
		r.Use(SessionAuthMiddleware(s.Sessions, logger))

		if s.RoleRequests != nil {
			r.Post("/role-requests", submitRoleRequestHandler(s.RoleRequests, logger))
			r.Get("/role-requests", pendingRoleRequestsHandler(s.RoleRequests, logger))
			r.Get("/role-requests/mine", myRoleRequestsHandler(s.RoleRequests, logger))
			r.Post("/role-requests/{requestId}/resolve", resolveRoleRequestHandler(s.RoleRequests, logger))
		}

		if s.Notifications != nil {
			r.Get("/notifications", listNotificationsHandler(s.Notifications, logger))
			r.Post("/notifications/{notificationId}/read", markNotificationReadHandler(s.Notifications, logger))
		}

		if s.Users != nil {
			r.Get("/users", listUsersHandler(s.Users, logger))
			r.Put("/users/{userId}/roles", setUserRolesHandler(s.Users, logger))
		}

		if s.Schedules != nil {
			r.Get("/schedules", listSchedulesHandler(s.Schedules, logger))
			r.Post("/schedules", createScheduleHandler(s.Schedules, logger))
			r.Post("/schedules/{windowId}/deactivate", deactivateScheduleHandler(s.Schedules, logger))
			r.Delete("/schedules/{windowId}", deleteScheduleHandler(s.Schedules, logger))
		}

		if s.Fleet != nil {
			r.Get("/buses", listBusesHandler(s.Fleet, logger))
			r.Post("/buses", createBusHandler(s.Fleet, logger))
			r.Put("/buses/{busId}", updateBusHandler(s.Fleet, logger))
			r.Delete("/buses/{busId}", deleteBusHandler(s.Fleet, logger))

			r.Get("/routes", listRoutesHandler(s.Fleet, logger))
			r.Post("/routes", createRouteHandler(s.Fleet, logger))
			r.Delete("/routes/{routeId}", deleteRouteHandler(s.Fleet, logger))
			r.Get("/routes/{routeId}/frequencies", listFrequenciesHandler(s.Fleet, logger))
			r.Post("/routes/{routeId}/frequencies", createFrequencyHandler(s.Fleet, logger))
			r.Delete("/frequencies/{frequencyId}", deleteFrequencyHandler(s.Fleet, logger))

			r.Get("/terminals", listTerminalsHandler(s.Fleet, logger))
			r.Post("/terminals", createTerminalHandler(s.Fleet, logger))
			r.Get("/terminals/{terminalId}/operations", listOperationsHandler(s.Fleet, logger))
			r.Post("/terminals/{terminalId}/operations", logOperationHandler(s.Fleet, logger))
		}

		if s.Incidents != nil {
			r.Get("/incidents", listIncidentsHandler(s.Incidents, logger))
			r.Post("/incidents", reportIncidentHandler(s.Incidents, logger))
			r.Post("/incidents/{incidentId}/moderate", moderateIncidentHandler(s.Incidents, logger))
		}

		if s.Rewards != nil {
			r.Get("/tickets", listTicketsHandler(s.Rewards, logger))
			r.Post("/tickets", issueTicketHandler(s.Rewards, logger))
			r.Get("/points", pointsBalanceHandler(s.Rewards, logger))
			r.Get("/rewards", listRewardsHandler(s.Rewards, logger))
			r.Post("/rewards", createRewardHandler(s.Rewards, logger))
			r.Post("/rewards/{rewardId}/redeem", redeemRewardHandler(s.Rewards, logger))
		}

		if s.Settings != nil {
			r.Get("/settings", getSettingsHandler(s.Settings, logger))
			r.Put("/settings", updateSettingsHandler(s.Settings, logger))
		}

		// =============================================
		// Chat
		// =============================================
		if s.Support != nil {
			r.Group(func(r chi.Router) {
				r.Use(RequireRoles(domain.RoleClient))
				r.Post("/support/messages", chathandler.SupportMessageHandler(s.Support, logger))
				r.Get("/support/messages", chathandler.SupportTranscriptHandler(s.Support, logger))
			})
		}
		if s.Messaging != nil {
			r.Group(func(r chi.Router) {
				r.Use(RequireRoles(domain.RolePartner, domain.RoleDriver))
				r.Post("/messages", chathandler.SendMessageHandler(s.Messaging, logger))
				r.Get("/messages/{userId}", chathandler.ConversationHandler(s.Messaging, logger))
			})
		}
	})
}

// ============================================================
// Metrics & Health
// ============================================================

// requestDurationMiddleware records latency by route pattern.
func requestDurationMiddleware(metrics *observability.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)

			pattern := chi.RouteContext(r.Context()).RoutePattern()
			if pattern == "" || strings.HasSuffix(pattern, "/stream") {
				return
			}
			metrics.RecordRequestDuration(r.Method+" "+pattern, time.Since(start))
		})
	}
}

func healthzHandler(backends map[string]Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()
		now := time.Now().Format(time.RFC3339)

		services := []domain.ServiceHealth{
			{Name: "bfa-api", Status: "healthy", LastChecked: now},
		}
		for name, b := range backends {
			start := time.Now()
			err := b.Ping(ctx)
			h := domain.ServiceHealth{
				Name:        name,
				Status:      "healthy",
				LatencyMs:   time.Since(start).Milliseconds(),
				LastChecked: now,
			}
			if err != nil {
				h.Status = "degraded"
				h.Error = err.Error()
			}
			services = append(services, h)
		}

		overallStatus := "healthy"
		for _, s := range services {
			if s.Status == "degraded" {
				overallStatus = "degraded"
			}
		}

		writeJSON(w, http.StatusOK, domain.HealthStatus{
			Status:   overallStatus,
			Services: services,
		})
	}
}

func accessMetricsHandler(metrics *observability.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, metrics.GetAccessSnapshot())
	}
}

func readyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}
