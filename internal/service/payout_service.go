package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tourbook-next/internal/constants"
	"github.com/tourbook-next/internal/logger"
	"github.com/tourbook-next/internal/models"
	"github.com/tourbook-next/internal/queue"
	"github.com/tourbook-next/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var errPayoutRaceLost = errors.New("payout transition lost")

// GuideBalance 导游可提现余额
type GuideBalance struct {
	GuideID     uint         `json:"guide_id"`
	Accrued     models.Money `json:"accrued"`     // 已支付且未退款的预订收入
	Outstanding models.Money `json:"outstanding"` // 待审核、已批准与已打款的提现合计
	Available   models.Money `json:"available"`
}

// PayoutService 导游提现流程
type PayoutService struct {
	payoutRepo  repository.PayoutRepository
	revenueRepo repository.RevenueRepository
	events      PaymentEventPublisher
	now         func() time.Time
}

// NewPayoutService 创建提现服务
func NewPayoutService(payoutRepo repository.PayoutRepository, revenueRepo repository.RevenueRepository, events PaymentEventPublisher) *PayoutService {
	return &PayoutService{
		payoutRepo:  payoutRepo,
		revenueRepo: revenueRepo,
		events:      events,
		now:         time.Now,
	}
}

// Balance 计算导游余额
func (s *PayoutService) Balance(guideID uint) (*GuideBalance, error) {
	if guideID == 0 {
		return nil, ErrValidation
	}
	var balance *GuideBalance
	err := models.DB.Transaction(func(tx *gorm.DB) error {
		account, err := s.payoutRepo.WithTx(tx).GetAccountForUpdate(guideID)
		if err != nil {
			return err
		}
		balance, err = s.computeBalance(tx, guideID, account)
		return err
	})
	if err != nil {
		return nil, err
	}
	return balance, nil
}

func (s *PayoutService) computeBalance(tx *gorm.DB, guideID uint, account *models.GuidePayoutAccount) (*GuideBalance, error) {
	records, err := s.revenueRepo.WithTx(tx).ListPaidRecords(repository.RevenueFilter{GuideID: guideID})
	if err != nil {
		return nil, err
	}
	accrued := decimal.Zero
	for _, record := range records {
		accrued = accrued.Add(record.Amount)
	}
	outstanding := decimal.Zero
	if account != nil {
		outstanding = account.OutstandingAmount.Decimal
	}
	return &GuideBalance{
		GuideID:     guideID,
		Accrued:     models.NewMoneyFromDecimal(accrued),
		Outstanding: models.NewMoneyFromDecimal(outstanding),
		Available:   models.NewMoneyFromDecimal(accrued.Sub(outstanding)),
	}, nil
}

// RequestPayout 余额校验、建单与占用额度在同一事务内完成，占用额度按旧值条件更新
func (s *PayoutService) RequestPayout(guideID uint, amount decimal.Decimal, note string) (*models.PayoutRequest, error) {
	if guideID == 0 {
		return nil, ErrValidation
	}
	amount = amount.Round(2)
	if !amount.IsPositive() {
		return nil, ErrPayoutAmountInvalid
	}

	now := s.now()
	var req *models.PayoutRequest
	err := models.DB.Transaction(func(tx *gorm.DB) error {
		payoutRepo := s.payoutRepo.WithTx(tx)
		account, err := payoutRepo.GetAccountForUpdate(guideID)
		if err != nil {
			return err
		}
		balance, err := s.computeBalance(tx, guideID, account)
		if err != nil {
			return err
		}
		if amount.GreaterThan(balance.Available.Decimal) {
			return fmt.Errorf("%w: requested %s, available %s", ErrInsufficientBalance, amount.StringFixed(2), balance.Available.String())
		}
		req = &models.PayoutRequest{
			GuideID:   guideID,
			Amount:    models.NewMoneyFromDecimal(amount),
			Status:    constants.PayoutStatusPending,
			Note:      strings.TrimSpace(note),
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := payoutRepo.Create(req); err != nil {
			return err
		}
		next := models.NewMoneyFromDecimal(account.OutstandingAmount.Decimal.Add(amount))
		ok, err := payoutRepo.CompareAndSetOutstanding(guideID, account.OutstandingAmount, next)
		if err != nil {
			return err
		}
		if !ok {
			return ErrConflict
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.Infow("payout_requested", "payout_id", req.ID, "guide_id", guideID, "amount", req.Amount.String())
	return req, nil
}

// Approve 审核通过，复核余额仍覆盖占用额度
func (s *PayoutService) Approve(ctx context.Context, id uint, adminID uint) (*models.PayoutRequest, error) {
	req, err := s.getPayout(id)
	if err != nil {
		return nil, err
	}
	_, noop, err := payoutStates.Next(req.Status, eventApprove)
	if err != nil {
		return nil, err
	}
	if noop {
		return req, nil
	}
	now := s.now()
	err = models.DB.Transaction(func(tx *gorm.DB) error {
		payoutRepo := s.payoutRepo.WithTx(tx)
		account, err := payoutRepo.GetAccountForUpdate(req.GuideID)
		if err != nil {
			return err
		}
		balance, err := s.computeBalance(tx, req.GuideID, account)
		if err != nil {
			return err
		}
		// 申请后发生退款导致收入不足时不得批准
		if balance.Available.Decimal.IsNegative() {
			return fmt.Errorf("%w: accrued %s below outstanding %s", ErrInsufficientBalance, balance.Accrued.String(), balance.Outstanding.String())
		}
		ok, err := payoutRepo.Transition(req.ID, []string{constants.PayoutStatusPending}, constants.PayoutStatusApproved, map[string]interface{}{
			"decided_by":  adminID,
			"approved_at": now,
			"updated_at":  now,
		})
		if err != nil {
			return err
		}
		if !ok {
			return errPayoutRaceLost
		}
		return nil
	})
	if errors.Is(err, errPayoutRaceLost) {
		return s.settledPayout(id, constants.PayoutStatusApproved)
	}
	if err != nil {
		return nil, err
	}
	logger.Infow("payout_approved", "payout_id", id, "admin_id", adminID)
	return s.payoutRepo.GetByID(id)
}

// Reject 拒绝提现（pending/approved），释放占用额度
func (s *PayoutService) Reject(ctx context.Context, id uint, adminID uint, reason string) (*models.PayoutRequest, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, fmt.Errorf("%w: reason is required", ErrValidation)
	}
	req, err := s.getPayout(id)
	if err != nil {
		return nil, err
	}
	_, noop, err := payoutStates.Next(req.Status, eventReject)
	if err != nil {
		return nil, err
	}
	if noop {
		return req, nil
	}
	now := s.now()
	err = models.DB.Transaction(func(tx *gorm.DB) error {
		payoutRepo := s.payoutRepo.WithTx(tx)
		account, err := payoutRepo.GetAccountForUpdate(req.GuideID)
		if err != nil {
			return err
		}
		ok, err := payoutRepo.Transition(req.ID, []string{constants.PayoutStatusPending, constants.PayoutStatusApproved}, constants.PayoutStatusRejected, map[string]interface{}{
			"decided_by":    adminID,
			"reject_reason": reason,
			"rejected_at":   now,
			"updated_at":    now,
		})
		if err != nil {
			return err
		}
		if !ok {
			return errPayoutRaceLost
		}
		released := account.OutstandingAmount.Decimal.Sub(req.Amount.Decimal)
		if released.IsNegative() {
			released = decimal.Zero
		}
		ok, err = payoutRepo.CompareAndSetOutstanding(req.GuideID, account.OutstandingAmount, models.NewMoneyFromDecimal(released))
		if err != nil {
			return err
		}
		if !ok {
			return ErrConflict
		}
		return nil
	})
	if errors.Is(err, errPayoutRaceLost) {
		return s.settledPayout(id, constants.PayoutStatusRejected)
	}
	if err != nil {
		return nil, err
	}
	logger.Infow("payout_rejected", "payout_id", id, "admin_id", adminID)
	s.publishStatus(ctx, req, constants.PayoutStatusRejected)
	return s.payoutRepo.GetByID(id)
}

// MarkPaid 标记已打款，仅限已批准；已打款重复调用为幂等
func (s *PayoutService) MarkPaid(ctx context.Context, id uint, adminID uint, reference string) (*models.PayoutRequest, error) {
	req, err := s.getPayout(id)
	if err != nil {
		return nil, err
	}
	_, noop, err := payoutStates.Next(req.Status, eventMarkPaid)
	if err != nil {
		return nil, err
	}
	if noop {
		return req, nil
	}
	now := s.now()
	ok, err := s.payoutRepo.Transition(req.ID, []string{constants.PayoutStatusApproved}, constants.PayoutStatusPaid, map[string]interface{}{
		"decided_by":     adminID,
		"paid_reference": strings.TrimSpace(reference),
		"paid_at":        now,
		"updated_at":     now,
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return s.settledPayout(id, constants.PayoutStatusPaid)
	}
	logger.Infow("payout_paid", "payout_id", id, "admin_id", adminID)
	s.publishStatus(ctx, req, constants.PayoutStatusPaid)
	return s.payoutRepo.GetByID(id)
}

// List 提现申请列表
func (s *PayoutService) List(filter repository.PayoutListFilter) ([]models.PayoutRequest, int64, error) {
	return s.payoutRepo.List(filter)
}

func (s *PayoutService) getPayout(id uint) (*models.PayoutRequest, error) {
	req, err := s.payoutRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, ErrPayoutNotFound
	}
	return req, nil
}

func (s *PayoutService) settledPayout(id uint, target string) (*models.PayoutRequest, error) {
	latest, err := s.getPayout(id)
	if err != nil {
		return nil, err
	}
	if latest.Status != target {
		return nil, fmt.Errorf("%w: payout is %s", ErrInvalidState, latest.Status)
	}
	return latest, nil
}

func (s *PayoutService) publishStatus(ctx context.Context, req *models.PayoutRequest, status string) {
	if s.events == nil {
		return
	}
	err := s.events.EnqueuePayoutStatusChanged(ctx, queue.PayoutStatusChangedPayload{
		PayoutID: req.ID,
		GuideID:  req.GuideID,
		Status:   status,
		Amount:   req.Amount.IntString(),
	})
	if err != nil {
		logger.Errorw("payout_event_enqueue_failed", "payout_id", req.ID, "status", status, "error", err)
	}
}
