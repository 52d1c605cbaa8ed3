package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/boddenberg/coop-transporte-bfa/internal/domain"
	"github.com/boddenberg/coop-transporte-bfa/internal/service"
)

// ============================================================
// Loyalty: tickets, points, rewards
// ============================================================

// clientParam defaults the client_id query parameter to the actor.
func clientParam(r *http.Request, actor domain.Actor) string {
	if id := r.URL.Query().Get("client_id"); id != "" {
		return id
	}
	return actor.UserID
}

func issueTicketHandler(svc *service.RewardsService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/tickets")
		defer span.End()

		actor, ok := actorFrom(w, r)
		if !ok {
			return
		}
		var t domain.Ticket
		if !decode(w, r, &t) {
			return
		}
		created, err := svc.IssueTicket(ctx, actor, &t)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	}
}

func listTicketsHandler(svc *service.RewardsService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/tickets")
		defer span.End()

		actor, ok := actorFrom(w, r)
		if !ok {
			return
		}
		tickets, err := svc.ListTickets(ctx, actor, clientParam(r, actor))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, tickets)
	}
}

func pointsBalanceHandler(svc *service.RewardsService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/points")
		defer span.End()

		actor, ok := actorFrom(w, r)
		if !ok {
			return
		}
		balance, err := svc.Balance(ctx, actor, clientParam(r, actor))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, balance)
	}
}

func listRewardsHandler(svc *service.RewardsService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/rewards")
		defer span.End()

		rewards, err := svc.ListRewards(ctx, r.URL.Query().Get("all") != "true")
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, rewards)
	}
}

func createRewardHandler(svc *service.RewardsService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/rewards")
		defer span.End()

		actor, ok := actorFrom(w, r)
		if !ok {
			return
		}
		var in domain.Reward
		if !decode(w, r, &in) {
			return
		}
		created, err := svc.CreateReward(ctx, actor, &in)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	}
}

func redeemRewardHandler(svc *service.RewardsService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/rewards/{rewardId}/redeem")
		defer span.End()

		actor, ok := actorFrom(w, r)
		if !ok {
			return
		}
		redemption, err := svc.Redeem(ctx, actor, chi.URLParam(r, "rewardId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, redemption)
	}
}
