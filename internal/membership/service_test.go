package membership

import (
	"context"
	"errors"
	"testing"
	"time"

	"gymflow/internal/payment"
	"gymflow/internal/plan"
	"gymflow/internal/wallet"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Get(ctx context.Context, memberID int) (*Subscription, error) {
	args := m.Called(ctx, memberID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Subscription), args.Error(1)
}

func (m *MockRepository) RenewWithPayment(ctx context.Context, p *payment.Payment, sub *Subscription) error {
	return m.Called(ctx, p, sub).Error(0)
}

func (m *MockRepository) SettleGatewayPayment(ctx context.Context, paymentID int, transactionID string, paidAt time.Time) (*Renewal, error) {
	args := m.Called(ctx, paymentID, transactionID, paidAt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Renewal), args.Error(1)
}

type MockPlans struct {
	mock.Mock
}

func (m *MockPlans) Resolve(ctx context.Context, id *int) (*plan.MembershipPlan, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*plan.MembershipPlan), args.Error(1)
}

type MockWallet struct {
	mock.Mock
}

func (m *MockWallet) AddTransaction(ctx context.Context, userID int, amountCents int64, txType string) error {
	return m.Called(ctx, userID, amountCents, txType).Error(0)
}

func goldPlan() plan.MembershipPlan {
	return plan.MembershipPlan{
		ID: 4, Name: "Gold",
		BasePrice:       decimal.NewFromInt(1000),
		DiscountPercent: decimal.NewFromInt(20),
		DurationDays:    30,
		IsActive:        true,
	}
}

func intPtr(n int) *int { return &n }

func TestService_Renew_Cash(t *testing.T) {
	repo := new(MockRepository)
	w := new(MockWallet)
	svc := NewService(repo, new(MockPlans), w, "BDT")
	now := date("2024-01-16")

	var saved *payment.Payment
	repo.On("RenewWithPayment", mock.Anything, mock.AnythingOfType("*payment.Payment"), mock.AnythingOfType("*membership.Subscription")).
		Run(func(args mock.Arguments) {
			saved = args.Get(1).(*payment.Payment)
			saved.ID = 21
		}).
		Return(nil)

	r, err := svc.Renew(context.Background(), RenewRequest{MemberID: 7, Plan: goldPlan(), Method: payment.MethodCash}, now)
	require.NoError(t, err)

	assert.Equal(t, date("2024-02-15"), r.Subscription.PlanEndDate)
	assert.Equal(t, now, r.Subscription.PlanStartDate)
	assert.True(t, r.Subscription.IsActive)
	assert.Equal(t, 21, r.Payment.ID)
	assert.Equal(t, payment.StatusPaid, saved.Status)
	assert.True(t, saved.FinalAmount.Equal(decimal.NewFromInt(800)))
	assert.True(t, saved.Discount.Equal(decimal.NewFromInt(200)))
	assert.Equal(t, 30, saved.DurationDays)
	assert.Nil(t, saved.TransactionID)
	w.AssertNotCalled(t, "AddTransaction", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestService_Renew_RejectsGatewayMethod(t *testing.T) {
	repo := new(MockRepository)
	svc := NewService(repo, new(MockPlans), nil, "BDT")

	_, err := svc.Renew(context.Background(), RenewRequest{MemberID: 7, Plan: goldPlan(), Method: payment.MethodStripe}, time.Now())
	assert.ErrorIs(t, err, ErrNotDirectMethod)
	repo.AssertNotCalled(t, "RenewWithPayment", mock.Anything, mock.Anything, mock.Anything)
}

func TestService_Renew_InvalidPlan(t *testing.T) {
	repo := new(MockRepository)
	svc := NewService(repo, new(MockPlans), nil, "BDT")
	p := goldPlan()
	p.DiscountPercent = decimal.NewFromInt(120)

	_, err := svc.Renew(context.Background(), RenewRequest{MemberID: 7, Plan: p, Method: payment.MethodCash}, time.Now())

	var invalid *plan.InvalidPlanError
	assert.ErrorAs(t, err, &invalid)
}

func TestService_Renew_Wallet(t *testing.T) {
	repo := new(MockRepository)
	w := new(MockWallet)
	svc := NewService(repo, new(MockPlans), w, "BDT")

	w.On("AddTransaction", mock.Anything, 7, int64(-80000), wallet.TxMembershipPayment).Return(nil)
	repo.On("RenewWithPayment", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	_, err := svc.Renew(context.Background(), RenewRequest{MemberID: 7, Plan: goldPlan(), Method: payment.MethodWallet}, time.Now())
	require.NoError(t, err)
	w.AssertExpectations(t)
}

func TestService_Renew_WalletInsufficient(t *testing.T) {
	repo := new(MockRepository)
	w := new(MockWallet)
	svc := NewService(repo, new(MockPlans), w, "BDT")

	w.On("AddTransaction", mock.Anything, 7, int64(-80000), wallet.TxMembershipPayment).Return(wallet.ErrInsufficientBalance)

	_, err := svc.Renew(context.Background(), RenewRequest{MemberID: 7, Plan: goldPlan(), Method: payment.MethodWallet}, time.Now())
	assert.ErrorIs(t, err, wallet.ErrInsufficientBalance)
	repo.AssertNotCalled(t, "RenewWithPayment", mock.Anything, mock.Anything, mock.Anything)
}

func TestService_Renew_WalletRefundedOnFailure(t *testing.T) {
	repo := new(MockRepository)
	w := new(MockWallet)
	svc := NewService(repo, new(MockPlans), w, "BDT")

	w.On("AddTransaction", mock.Anything, 7, int64(-80000), wallet.TxMembershipPayment).Return(nil)
	w.On("AddTransaction", mock.Anything, 7, int64(80000), wallet.TxRefund).Return(nil)
	repo.On("RenewWithPayment", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("db down"))

	_, err := svc.Renew(context.Background(), RenewRequest{MemberID: 7, Plan: goldPlan(), Method: payment.MethodWallet}, time.Now())
	assert.Error(t, err)
	w.AssertExpectations(t)
}

func TestService_SettleGatewayPayment(t *testing.T) {
	repo := new(MockRepository)
	svc := NewService(repo, new(MockPlans), nil, "BDT")
	now := date("2024-01-16")

	repo.On("SettleGatewayPayment", mock.Anything, 11, "pi_123", now).Return(&Renewal{
		Subscription: newWindow(7, 4, 30, now),
		Payment:      payment.Payment{ID: 11, MemberID: 7, Status: payment.StatusPaid},
	}, nil)

	r, err := svc.SettleGatewayPayment(context.Background(), 11, "pi_123", now)
	require.NoError(t, err)
	assert.Equal(t, date("2024-02-15"), r.Subscription.PlanEndDate)
}

func TestService_Overview(t *testing.T) {
	now := date("2024-01-16")
	sub := &Subscription{
		MemberID: 7, CurrentPlanID: intPtr(4),
		PlanStartDate: date("2024-01-01"), PlanEndDate: date("2024-01-31"), IsActive: true,
	}

	t.Run("with plan", func(t *testing.T) {
		repo := new(MockRepository)
		plans := new(MockPlans)
		gold := goldPlan()
		repo.On("Get", mock.Anything, 7).Return(sub, nil)
		plans.On("Resolve", mock.Anything, sub.CurrentPlanID).Return(&gold, nil)

		o, err := NewService(repo, plans, nil, "BDT").Overview(context.Background(), 7, now)
		require.NoError(t, err)
		assert.Equal(t, "Gold", o.Plan.Name)
		assert.Equal(t, "800", o.Pricing.FinalPrice.String())
		assert.Equal(t, StatusActive, o.Window.Status)
		assert.Equal(t, 15, o.Window.DaysRemaining)
	})

	t.Run("dangling plan reads as no plan", func(t *testing.T) {
		repo := new(MockRepository)
		plans := new(MockPlans)
		repo.On("Get", mock.Anything, 7).Return(sub, nil)
		plans.On("Resolve", mock.Anything, sub.CurrentPlanID).Return(nil, nil)

		o, err := NewService(repo, plans, nil, "BDT").Overview(context.Background(), 7, now)
		require.NoError(t, err)
		assert.Nil(t, o.Plan)
		assert.Nil(t, o.Pricing)
		assert.NotNil(t, o.Window)
	})

	t.Run("never subscribed", func(t *testing.T) {
		repo := new(MockRepository)
		repo.On("Get", mock.Anything, 9).Return(nil, ErrSubscriptionNotFound)

		o, err := NewService(repo, new(MockPlans), nil, "BDT").Overview(context.Background(), 9, now)
		require.NoError(t, err)
		assert.Nil(t, o.Subscription)
		assert.Nil(t, o.Window)
	})
}
