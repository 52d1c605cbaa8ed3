package service

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/boddenberg/coop-transporte-bfa/internal/domain"
	"github.com/boddenberg/coop-transporte-bfa/internal/port"
)

var rewardsTracer = otel.Tracer("service/rewards")

var (
	ticketIssuers  = []domain.Role{domain.RoleAdministrator, domain.RoleManager, domain.RoleEmployee}
	catalogEditors = []domain.Role{domain.RoleAdministrator, domain.RoleManager}
	pointsViewers  = []domain.Role{domain.RoleAdministrator, domain.RoleManager, domain.RoleEmployee}
)

const redeemStripes = 64

// RewardsService runs the loyalty program: tickets earn points, points buy
// rewards.
type RewardsService struct {
	store           port.RewardsStore
	pointsPerDollar float64
	audit           auditor
	logger          *zap.Logger

	// per-client serialization of balance checks
	stripes [redeemStripes]sync.Mutex
}

func NewRewardsService(store port.RewardsStore, pointsPerDollar float64, audit port.AuditLogger, logger *zap.Logger) *RewardsService {
	return &RewardsService{
		store:           store,
		pointsPerDollar: pointsPerDollar,
		audit:           auditor{log: audit, logger: logger},
		logger:          logger,
	}
}

// PointsFor returns the points earned by a ticket of amount.
func (s *RewardsService) PointsFor(amount float64) int {
	return int(math.Floor(amount * s.pointsPerDollar))
}

// IssueTicket stores the ticket and credits its points.
func (s *RewardsService) IssueTicket(ctx context.Context, actor domain.Actor, t *domain.Ticket) (*domain.Ticket, error) {
	ctx, span := rewardsTracer.Start(ctx, "RewardsService.IssueTicket")
	defer span.End()

	if err := requireRole(actor, "emitir boletos", ticketIssuers...); err != nil {
		return nil, err
	}
	t.ID = ""
	t.IssuedBy = actor.UserID
	if err := t.Validate(); err != nil {
		return nil, err
	}
	t.PointsEarned = s.PointsFor(t.Amount)

	created, err := s.store.CreateTicket(ctx, t)
	if err != nil {
		return nil, err
	}
	if created.PointsEarned > 0 {
		entry := &domain.PointsEntry{
			ClientID:  created.ClientID,
			Points:    created.PointsEarned,
			Reason:    "ticket",
			Reference: created.ID,
		}
		if err := s.store.AddPointsEntry(ctx, entry); err != nil {
			return nil, fmt.Errorf("credit points: %w", err)
		}
	}
	s.audit.record(ctx, actor, "create", "tickets", created.ID, map[string]any{
		"ticket_number": created.TicketNumber,
		"points":        created.PointsEarned,
	})
	return created, nil
}

func (s *RewardsService) ListTickets(ctx context.Context, actor domain.Actor, clientID string) ([]domain.Ticket, error) {
	if err := s.canSeeClient(actor, clientID); err != nil {
		return nil, err
	}
	return s.store.ListTickets(ctx, clientID)
}

// Balance sums the client's ledger.
func (s *RewardsService) Balance(ctx context.Context, actor domain.Actor, clientID string) (*domain.PointsBalance, error) {
	if err := s.canSeeClient(actor, clientID); err != nil {
		return nil, err
	}
	entries, err := s.store.ListPointsEntries(ctx, clientID)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []domain.PointsEntry{}
	}
	return &domain.PointsBalance{ClientID: clientID, Balance: domain.SumPoints(entries), Entries: entries}, nil
}

func (s *RewardsService) ListRewards(ctx context.Context, activeOnly bool) ([]domain.Reward, error) {
	return s.store.ListRewards(ctx, activeOnly)
}

func (s *RewardsService) CreateReward(ctx context.Context, actor domain.Actor, r *domain.Reward) (*domain.Reward, error) {
	if err := requireRole(actor, "crear premios", catalogEditors...); err != nil {
		return nil, err
	}
	r.ID = ""
	if err := r.Validate(); err != nil {
		return nil, err
	}
	created, err := s.store.CreateReward(ctx, r)
	if err != nil {
		return nil, err
	}
	s.audit.record(ctx, actor, "create", "rewards", created.ID, map[string]any{"cost_points": created.CostPoints})
	return created, nil
}

// Redeem exchanges points of the acting client for a reward. Within one BFA
// instance redemptions of the same client are serialized.
func (s *RewardsService) Redeem(ctx context.Context, actor domain.Actor, rewardID string) (*domain.Redemption, error) {
	ctx, span := rewardsTracer.Start(ctx, "RewardsService.Redeem")
	defer span.End()
	span.SetAttributes(attribute.String("reward_id", rewardID))

	if err := requireRole(actor, "canjear premios", domain.RoleClient); err != nil {
		return nil, err
	}
	reward, err := s.store.GetReward(ctx, rewardID)
	if err != nil {
		return nil, err
	}
	if !reward.Active {
		return nil, &domain.ErrValidation{Field: "reward_id", Message: "el premio no está disponible"}
	}

	mu := s.stripe(actor.UserID)
	mu.Lock()
	defer mu.Unlock()

	entries, err := s.store.ListPointsEntries(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}
	if balance := domain.SumPoints(entries); balance < reward.CostPoints {
		return nil, &domain.ErrInsufficientPoints{Available: balance, Required: reward.CostPoints}
	}

	redemption, err := s.store.CreateRedemption(ctx, &domain.Redemption{
		ClientID:   actor.UserID,
		RewardID:   reward.ID,
		CostPoints: reward.CostPoints,
	})
	if err != nil {
		return nil, err
	}
	debit := &domain.PointsEntry{
		ClientID:  actor.UserID,
		Points:    -reward.CostPoints,
		Reason:    "redemption",
		Reference: redemption.ID,
	}
	if err := s.store.AddPointsEntry(ctx, debit); err != nil {
		s.revokeRedemption(ctx, redemption.ID, err)
		return nil, fmt.Errorf("debit points: %w", err)
	}

	s.logger.Info("reward redeemed",
		zap.String("user_id", actor.UserID),
		zap.String("reward_id", reward.ID),
		zap.Int("cost_points", reward.CostPoints),
	)
	return redemption, nil
}

// revokeRedemption removes a redemption whose points were never debited.
func (s *RewardsService) revokeRedemption(ctx context.Context, id string, cause error) {
	if err := s.store.DeleteRedemption(context.WithoutCancel(ctx), id); err != nil {
		s.logger.Error("redemption left without debit",
			zap.String("redemption_id", id),
			zap.NamedError("cause", cause),
			zap.Error(err),
		)
	}
}

// canSeeClient lets clients read only their own loyalty data.
func (s *RewardsService) canSeeClient(actor domain.Actor, clientID string) error {
	if actor.Role == domain.RoleClient && actor.UserID == clientID {
		return nil
	}
	return requireRole(actor, "ver puntos de otros clientes", pointsViewers...)
}

func (s *RewardsService) stripe(clientID string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(clientID))
	return &s.stripes[h.Sum32()%redeemStripes]
}
