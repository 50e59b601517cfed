package integration_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"gymflow/internal/membership"
	"gymflow/internal/payment"
	"gymflow/internal/plan"
	"gymflow/internal/renewal"
	"gymflow/internal/user"
	"gymflow/internal/wallet"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stack struct {
	plans        plan.Service
	memberships  membership.Service
	wallets      wallet.Repository
	payments     payment.Repository
	orchestrator renewal.Orchestrator
}

func newStack(conn *sqlx.DB) *stack {
	paymentRepo := payment.NewRepository(conn)
	walletRepo := wallet.NewRepository(conn)
	plans := plan.NewService(plan.NewRepository(conn), nil)
	memberships := membership.NewService(membership.NewRepository(conn, paymentRepo), plans, walletRepo, "BDT")

	return &stack{
		plans:       plans,
		memberships: memberships,
		wallets:     walletRepo,
		payments:    paymentRepo,
		orchestrator: renewal.NewOrchestrator(renewal.Deps{
			Members:       user.NewService(user.NewRepository(conn), "integration-secret"),
			Plans:         plans,
			Memberships:   memberships,
			Payments:      payment.NewService(paymentRepo, payment.NewRouter(), "http://localhost:8080", "BDT"),
			Locker:        renewal.NewMemoryLocker(time.Minute),
			PublicBaseURL: "http://localhost:8080",
		}),
	}
}

func createGoldPlan(t *testing.T, s *stack) *plan.MembershipPlan {
	p, err := s.plans.Create(context.Background(), plan.PlanInput{
		Name:            "Gold",
		BasePrice:       decimal.NewFromInt(1000),
		DiscountPercent: decimal.NewFromInt(20),
		DurationDays:    30,
		Features:        []string{"Pool", "Sauna"},
	})
	require.NoError(t, err)
	return p
}

func TestCashRenewal_Integration(t *testing.T) {
	conn := setupTestDB(t)
	s := newStack(conn)
	ctx := context.Background()

	member := createMember(t, conn, "cash@test.com", "Cash Member")
	gold := createGoldPlan(t, s)

	a, err := s.orchestrator.Renew(ctx, renewal.Request{MemberID: member.ID, PlanID: &gold.ID, Method: "CASH"})
	require.NoError(t, err)
	require.Equal(t, renewal.StateCompleted, a.State)

	p, err := s.payments.GetByID(ctx, a.PaymentID)
	require.NoError(t, err)
	assert.Equal(t, payment.StatusPaid, p.Status)
	assert.True(t, p.FinalAmount.Equal(decimal.NewFromInt(800)))
	assert.Nil(t, p.TransactionID)

	sub, err := s.memberships.Get(ctx, member.ID)
	require.NoError(t, err)
	assert.True(t, sub.IsActive)
	assert.Equal(t, gold.ID, *sub.CurrentPlanID)
	assert.Equal(t, 30*24*time.Hour, sub.PlanEndDate.Sub(sub.PlanStartDate))
	assert.WithinDuration(t, *a.PlanEndDate, sub.PlanEndDate, time.Millisecond)

	stats, err := s.plans.RecomputeStatistics(ctx, gold.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.MemberCount)
	assert.True(t, stats.MonthlyRevenue.Equal(decimal.NewFromInt(800)))
}

func TestWalletRenewal_Integration(t *testing.T) {
	conn := setupTestDB(t)
	s := newStack(conn)
	ctx := context.Background()

	member := createMember(t, conn, "wallet@test.com", "Wallet Member")
	gold := createGoldPlan(t, s)

	_, err := s.orchestrator.Renew(ctx, renewal.Request{MemberID: member.ID, PlanID: &gold.ID, Method: "WALLET"})
	var pf *renewal.PaymentFailure
	require.ErrorAs(t, err, &pf)
	assert.Equal(t, "insufficient wallet balance", pf.Reason)

	_, err = s.memberships.Get(ctx, member.ID)
	assert.ErrorIs(t, err, membership.ErrSubscriptionNotFound)

	require.NoError(t, s.wallets.TopUp(ctx, member.ID, 100000))

	a, err := s.orchestrator.Renew(ctx, renewal.Request{MemberID: member.ID, PlanID: &gold.ID, Method: "wallet"})
	require.NoError(t, err)
	assert.Equal(t, renewal.StateCompleted, a.State)

	w, err := s.wallets.GetOrCreateWallet(ctx, member.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(20000), w.BalanceCents)

	txs, err := s.wallets.GetTransactions(ctx, member.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, txs, 2)
}

func TestGatewayWithoutProvider_Integration(t *testing.T) {
	conn := setupTestDB(t)
	s := newStack(conn)
	ctx := context.Background()

	member := createMember(t, conn, "stripe@test.com", "Stripe Member")
	gold := createGoldPlan(t, s)

	_, err := s.orchestrator.Renew(ctx, renewal.Request{MemberID: member.ID, PlanID: &gold.ID, Method: "STRIPE"})
	require.ErrorIs(t, err, renewal.ErrGatewayInitiation)

	list, err := s.payments.ListByMember(ctx, member.ID, 10, 0)
	require.NoError(t, err)
	for _, p := range list {
		assert.NotEqual(t, payment.StatusPending, p.Status, "no orphan pending payments")
	}

	// The failed attempt released the lock.
	_, err = s.orchestrator.Renew(ctx, renewal.Request{MemberID: member.ID, PlanID: &gold.ID, Method: "CARD"})
	require.NoError(t, err)
}

func TestDeletedPlanReadsAsNoPlan_Integration(t *testing.T) {
	conn := setupTestDB(t)
	s := newStack(conn)
	ctx := context.Background()

	member := createMember(t, conn, "dangling@test.com", "Dangling Member")
	gold := createGoldPlan(t, s)

	_, err := s.orchestrator.Renew(ctx, renewal.Request{MemberID: member.ID, PlanID: &gold.ID, Method: "CARD"})
	require.NoError(t, err)

	err = s.plans.Delete(ctx, gold.ID, false)
	var inUse *plan.PlanInUseWarning
	require.True(t, errors.As(err, &inUse))
	assert.Equal(t, 1, inUse.MemberCount)

	_, err = s.plans.Get(ctx, gold.ID)
	require.NoError(t, err, "unconfirmed delete must not mutate")

	require.NoError(t, s.plans.Delete(ctx, gold.ID, true))

	ov, err := s.memberships.Overview(ctx, member.ID, time.Now())
	require.NoError(t, err)
	assert.Nil(t, ov.Plan)
	require.NotNil(t, ov.Window)
	assert.Equal(t, membership.StatusActive, ov.Window.Status)

	_, err = s.orchestrator.Renew(ctx, renewal.Request{MemberID: member.ID, PlanID: &gold.ID, Method: "CASH"})
	assert.ErrorIs(t, err, renewal.ErrPlanUnavailable)
}
