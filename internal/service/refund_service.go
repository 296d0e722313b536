package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tourbook-next/internal/cache"
	"github.com/tourbook-next/internal/constants"
	"github.com/tourbook-next/internal/logger"
	"github.com/tourbook-next/internal/models"
	"github.com/tourbook-next/internal/queue"
	"github.com/tourbook-next/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var errRefundRaceLost = errors.New("refund transition lost")

// RefundRequestInput 发起退款申请
type RefundRequestInput struct {
	TransactionID uint
	CustomerID    uint
	Amount        decimal.Decimal // 为 0 时按交易全额
	Reason        string
}

// GuideBalanceReader 读取导游提现余额
type GuideBalanceReader interface {
	Balance(guideID uint) (*GuideBalance, error)
}

// RefundService 退款审批流程
type RefundService struct {
	refundRepo  repository.RefundRepository
	txnRepo     repository.PaymentTransactionRepository
	bookingRepo repository.BookingRepository
	auditRepo   repository.PaymentAuditRepository
	balances    GuideBalanceReader
	events      PaymentEventPublisher
	now         func() time.Time
}

// NewRefundService 创建退款服务
func NewRefundService(refundRepo repository.RefundRepository, txnRepo repository.PaymentTransactionRepository, bookingRepo repository.BookingRepository, auditRepo repository.PaymentAuditRepository, balances GuideBalanceReader, events PaymentEventPublisher) *RefundService {
	return &RefundService{
		refundRepo:  refundRepo,
		txnRepo:     txnRepo,
		bookingRepo: bookingRepo,
		auditRepo:   auditRepo,
		balances:    balances,
		events:      events,
		now:         time.Now,
	}
}

// Request 对已支付交易发起退款，同一交易只允许一笔待处理申请
func (s *RefundService) Request(input RefundRequestInput) (*models.RefundRequest, error) {
	if input.TransactionID == 0 {
		return nil, ErrValidation
	}
	txn, err := s.txnRepo.GetByID(input.TransactionID)
	if err != nil {
		return nil, err
	}
	if txn == nil {
		return nil, ErrTransactionMissing
	}
	if input.CustomerID != 0 && txn.CustomerID != input.CustomerID {
		return nil, ErrForbidden
	}
	if txn.Status != constants.TransactionStatusPaid {
		return nil, fmt.Errorf("%w: transaction status %s", ErrRefundNotAllowed, txn.Status)
	}

	amount := input.Amount.Round(2)
	if amount.IsZero() {
		amount = txn.Amount.Decimal
	}
	if !amount.IsPositive() || amount.GreaterThan(txn.Amount.Decimal) {
		return nil, ErrRefundAmountInvalid
	}

	existing, err := s.refundRepo.GetPendingByTransaction(txn.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrDuplicateRefund
	}

	now := s.now()
	txnID := txn.ID
	req := &models.RefundRequest{
		TransactionID:        txn.ID,
		BookingID:            txn.BookingID,
		CustomerID:           txn.CustomerID,
		PendingTransactionID: &txnID,
		Amount:               models.NewMoneyFromDecimal(amount),
		Reason:               strings.TrimSpace(input.Reason),
		Status:               constants.RefundStatusPending,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if err := s.refundRepo.Create(req); err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateRefund
		}
		return nil, err
	}
	logger.Infow("refund_requested", "refund_id", req.ID, "txn_id", txn.ID, "amount", req.Amount.String())
	return req, nil
}

// Confirm 确认退款：申请、交易、预订在同一事务内迁移；重复确认为幂等
func (s *RefundService) Confirm(ctx context.Context, id uint, adminID uint, note string) (*models.RefundRequest, error) {
	req, err := s.refundRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, ErrRefundNotFound
	}
	_, noop, err := refundStates.Next(req.Status, eventConfirm)
	if err != nil {
		return nil, err
	}
	if noop {
		return req, nil
	}

	now := s.now()
	var booking *models.Booking
	err = models.DB.Transaction(func(tx *gorm.DB) error {
		ok, err := s.refundRepo.WithTx(tx).Transition(req.ID, constants.RefundStatusPending, constants.RefundStatusConfirmed, map[string]interface{}{
			"decided_by":    adminID,
			"decision_note": strings.TrimSpace(note),
			"decided_at":    now,
			"updated_at":    now,
		})
		if err != nil {
			return err
		}
		if !ok {
			return errRefundRaceLost
		}
		txnWon, err := s.txnRepo.WithTx(tx).MarkRefunded(req.TransactionID, now)
		if err != nil {
			return err
		}
		if !txnWon {
			return fmt.Errorf("%w: transaction is no longer paid", ErrInvalidState)
		}
		bookingRepo := s.bookingRepo.WithTx(tx)
		bookingWon, err := bookingRepo.MarkRefunded(req.BookingID, now)
		if err != nil {
			return err
		}
		if !bookingWon {
			logger.Warnw("refund_booking_not_paid", "refund_id", req.ID, "booking_id", req.BookingID)
		}
		booking, err = bookingRepo.GetByID(req.BookingID)
		return err
	})
	if errors.Is(err, errRefundRaceLost) {
		return s.settledRefund(id, constants.RefundStatusConfirmed)
	}
	if err != nil {
		return nil, err
	}

	logger.Infow("refund_confirmed", "refund_id", req.ID, "txn_id", req.TransactionID, "admin_id", adminID)
	s.checkGuideBalance(req, booking)
	if s.events != nil {
		payload := queue.BookingRefundedPayload{
			BookingID:     req.BookingID,
			TransactionID: req.TransactionID,
			RefundID:      req.ID,
			CustomerID:    req.CustomerID,
			Amount:        req.Amount.IntString(),
		}
		if booking != nil {
			payload.BookingNo = booking.BookingNo
		}
		if err := s.events.EnqueueBookingRefunded(ctx, payload); err != nil {
			logger.Errorw("refund_event_enqueue_failed", "refund_id", req.ID, "error", err)
		}
	}
	if err := cache.BumpRevenueGeneration(ctx); err != nil {
		logger.Warnw("revenue_cache_bump_failed", "error", err)
	}
	return s.refundRepo.GetByID(id)
}

// Reject 拒绝退款，交易与预订保持已支付
func (s *RefundService) Reject(id uint, adminID uint, reason string) (*models.RefundRequest, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, fmt.Errorf("%w: reason is required", ErrValidation)
	}
	req, err := s.refundRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, ErrRefundNotFound
	}
	_, noop, err := refundStates.Next(req.Status, eventReject)
	if err != nil {
		return nil, err
	}
	if noop {
		return req, nil
	}
	now := s.now()
	ok, err := s.refundRepo.Transition(req.ID, constants.RefundStatusPending, constants.RefundStatusRejected, map[string]interface{}{
		"decided_by":    adminID,
		"decision_note": reason,
		"decided_at":    now,
		"updated_at":    now,
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return s.settledRefund(id, constants.RefundStatusRejected)
	}
	logger.Infow("refund_rejected", "refund_id", req.ID, "admin_id", adminID)
	return s.refundRepo.GetByID(id)
}

// List 退款申请列表
func (s *RefundService) List(filter repository.RefundListFilter) ([]models.RefundRequest, int64, error) {
	return s.refundRepo.List(filter)
}

// settledRefund 并发审批后按最新状态判定：已达目标为幂等，否则非法
func (s *RefundService) settledRefund(id uint, target string) (*models.RefundRequest, error) {
	latest, err := s.refundRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if latest == nil {
		return nil, ErrRefundNotFound
	}
	if latest.Status != target {
		return nil, fmt.Errorf("%w: refund is %s", ErrInvalidState, latest.Status)
	}
	return latest, nil
}

// checkGuideBalance 退款撤回的收入可能已被提现，可用余额为负时记录异常交由运营追回
func (s *RefundService) checkGuideBalance(req *models.RefundRequest, booking *models.Booking) {
	if s.balances == nil || booking == nil || booking.GuideID == 0 {
		return
	}
	balance, err := s.balances.Balance(booking.GuideID)
	if err != nil {
		logger.Warnw("refund_guide_balance_check_failed", "refund_id", req.ID, "guide_id", booking.GuideID, "error", err)
		return
	}
	if !balance.Available.Decimal.IsNegative() {
		return
	}
	logger.Warnw("refund_guide_balance_overdrawn",
		"refund_id", req.ID,
		"guide_id", booking.GuideID,
		"accrued", balance.Accrued.String(),
		"outstanding", balance.Outstanding.String(),
	)
	if s.auditRepo == nil {
		return
	}
	now := s.now()
	txnID := req.TransactionID
	row := &models.PaymentAnomaly{
		TransactionID:  &txnID,
		Kind:           constants.AnomalyPayoutOverdrawn,
		ExpectedAmount: balance.Accrued,
		ReceivedAmount: balance.Outstanding,
		Detail:         fmt.Sprintf("guide %d payouts exceed accrued revenue by %s after refund %d", booking.GuideID, balance.Available.Decimal.Neg().StringFixed(2), req.ID),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if txn, err := s.txnRepo.GetByID(req.TransactionID); err == nil && txn != nil {
		row.Gateway = txn.Gateway
		row.TxnRef = txn.TxnRef
	}
	if err := s.auditRepo.CreateAnomaly(row); err != nil {
		logger.Errorw("refund_overdrawn_anomaly_record_failed", "refund_id", req.ID, "error", err)
	}
}
