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
	"github.com/tourbook-next/internal/payment/momo"
	"github.com/tourbook-next/internal/payment/vnpay"
	"github.com/tourbook-next/internal/queue"
	"github.com/tourbook-next/internal/repository"

	"github.com/google/uuid"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"gorm.io/gorm"
)

const (
	defaultCheckoutExpiry = 15 * time.Minute
	txnRefAlphabet        = "0123456789ABCDEFGHJKLMNPQRSTUVWXYZ"
	txnRefSuffixLength    = 6
)

// PaymentEventPublisher 支付副作用投递（由异步队列实现）
type PaymentEventPublisher interface {
	EnqueueBookingPaid(ctx context.Context, payload queue.BookingPaidPayload) error
	EnqueueBookingRefunded(ctx context.Context, payload queue.BookingRefundedPayload) error
	EnqueuePayoutStatusChanged(ctx context.Context, payload queue.PayoutStatusChangedPayload) error
}

// GatewayConfigResolver 网关配置解析
type GatewayConfigResolver interface {
	Resolve(gateway string) (*GatewayConfig, error)
}

// CheckoutInput 发起支付请求
type CheckoutInput struct {
	BookingID  uint
	CustomerID uint
	Gateway    string
	ClientIP   string
}

// CheckoutResult 发起支付结果
type CheckoutResult struct {
	Transaction    *models.PaymentTransaction `json:"-"`
	TransactionRef string                     `json:"transaction_ref"`
	RedirectURL    string                     `json:"redirect_url"`
	Payload        models.JSON                `json:"payload"`
	ExpiresAt      *time.Time                 `json:"expires_at"`
	Reused         bool                       `json:"reused"`
}

type momoCreateFunc func(ctx context.Context, cfg *momo.Config, input momo.CreateInput) (*momo.CreateResult, error)

// CheckoutService 结账服务：每个预订同一时刻最多一笔进行中的交易
type CheckoutService struct {
	bookingRepo repository.BookingRepository
	txnRepo     repository.PaymentTransactionRepository
	configs     GatewayConfigResolver
	expireAfter time.Duration
	now         func() time.Time
	momoCreate  momoCreateFunc
}

// NewCheckoutService 创建结账服务
func NewCheckoutService(bookingRepo repository.BookingRepository, txnRepo repository.PaymentTransactionRepository, configs GatewayConfigResolver, expireMinutes int) *CheckoutService {
	expireAfter := defaultCheckoutExpiry
	if expireMinutes > 0 {
		expireAfter = time.Duration(expireMinutes) * time.Minute
	}
	return &CheckoutService{
		bookingRepo: bookingRepo,
		txnRepo:     txnRepo,
		configs:     configs,
		expireAfter: expireAfter,
		now:         time.Now,
		momoCreate:  momo.CreatePayment,
	}
}

// Initiate 为预订发起支付；已有未过期的同网关会话时复用，否则拒绝
func (s *CheckoutService) Initiate(ctx context.Context, input CheckoutInput) (*CheckoutResult, error) {
	gateway, err := normalizeGateway(input.Gateway)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if input.BookingID == 0 || input.CustomerID == 0 {
		return nil, ErrValidation
	}
	booking, err := s.bookingRepo.GetByID(input.BookingID)
	if err != nil {
		return nil, err
	}
	if booking == nil {
		return nil, ErrBookingNotFound
	}
	if booking.CustomerID != input.CustomerID {
		return nil, ErrForbidden
	}
	if err := ensureBookingPayable(booking); err != nil {
		return nil, err
	}
	amount := booking.TotalPrice.Decimal.Round(0).IntPart()

	// 配置缺失时直接中止，不创建交易
	resolved, err := s.configs.Resolve(gateway)
	if err != nil {
		return nil, err
	}

	now := s.now()
	var txn *models.PaymentTransaction
	var reused bool
	err = models.DB.Transaction(func(tx *gorm.DB) error {
		locked, err := s.bookingRepo.WithTx(tx).GetByIDForUpdate(booking.ID)
		if err != nil {
			return err
		}
		if locked == nil {
			return ErrBookingNotFound
		}
		if err := ensureBookingPayable(locked); err != nil {
			return err
		}
		txnRepo := s.txnRepo.WithTx(tx)
		existing, err := txnRepo.GetInFlightByBooking(locked.ID)
		if err != nil {
			return err
		}
		if existing != nil {
			if !reusableCheckout(existing, gateway, now) {
				return ErrCheckoutInFlight
			}
			txn, reused = existing, true
			return nil
		}

		ref, err := newTxnRef(locked.ID, now)
		if err != nil {
			return err
		}
		bookingID := locked.ID
		expiresAt := now.Add(s.expireAfter)
		created := &models.PaymentTransaction{
			BookingID:         locked.ID,
			CustomerID:        locked.CustomerID,
			Gateway:           gateway,
			TxnRef:            ref,
			InFlightBookingID: &bookingID,
			Amount:            models.NewMoneyFromInt(amount),
			Currency:          constants.CurrencyVND,
			Status:            constants.TransactionStatusInitiated,
			ExpiresAt:         &expiresAt,
			CreatedAt:         now,
			UpdatedAt:         now,
		}
		if err := txnRepo.Create(created); err != nil {
			if isUniqueViolation(err) {
				return ErrCheckoutInFlight
			}
			return err
		}
		txn = created
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrCheckoutInFlight) {
			logger.Infow("checkout_in_flight", "booking_id", booking.ID, "gateway", gateway)
		}
		return nil, err
	}
	if reused {
		logger.Infow("checkout_reuse_inflight", "booking_id", booking.ID, "txn_ref", txn.TxnRef)
		return buildCheckoutResult(txn, true), nil
	}

	payURL, payload, err := s.createGatewaySession(ctx, resolved, booking, txn, input.ClientIP)
	if err != nil {
		// 网关下单失败时释放占位，允许重新发起
		if _, markErr := s.txnRepo.MarkFailed(txn.ID, "", constants.FailureReasonGateway, s.now()); markErr != nil {
			logger.Errorw("checkout_release_failed", "txn_id", txn.ID, "error", markErr)
		}
		logger.Warnw("checkout_gateway_failed", "booking_id", booking.ID, "gateway", gateway, "txn_ref", txn.TxnRef, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrGatewayRequestFailed, err)
	}
	if err := s.txnRepo.SavePayURL(txn.ID, payURL, payload); err != nil {
		return nil, err
	}
	txn.PayURL = payURL
	txn.Payload = payload
	logger.Infow("checkout_initiated", "booking_id", booking.ID, "gateway", gateway, "txn_ref", txn.TxnRef, "amount", amount)
	return buildCheckoutResult(txn, false), nil
}

func (s *CheckoutService) createGatewaySession(ctx context.Context, resolved *GatewayConfig, booking *models.Booking, txn *models.PaymentTransaction, clientIP string) (string, models.JSON, error) {
	amount := txn.Amount.Decimal.IntPart()
	orderInfo := fmt.Sprintf("Thanh toan booking %s", booking.BookingNo)
	switch resolved.Gateway {
	case constants.GatewayMomo:
		cfg, err := resolved.Momo()
		if err != nil {
			return "", nil, err
		}
		result, err := s.momoCreate(ctx, cfg, momo.CreateInput{
			OrderID:   txn.TxnRef,
			RequestID: uuid.NewString(),
			Amount:    amount,
			OrderInfo: orderInfo,
		})
		if err != nil {
			return "", nil, err
		}
		return result.PayURL, models.JSON{
			"pay_url":     result.PayURL,
			"deeplink":    result.Deeplink,
			"qr_code_url": result.QRCodeURL,
		}, nil
	case constants.GatewayVnpay:
		cfg, err := resolved.Vnpay()
		if err != nil {
			return "", nil, err
		}
		expireAt := txn.CreatedAt.Add(s.expireAfter)
		if txn.ExpiresAt != nil {
			expireAt = *txn.ExpiresAt
		}
		payURL, err := vnpay.BuildPayURL(cfg, vnpay.CreateInput{
			TxnRef:    txn.TxnRef,
			Amount:    amount,
			OrderInfo: orderInfo,
			ClientIP:  clientIP,
			CreatedAt: txn.CreatedAt,
			ExpireAt:  expireAt,
		})
		if err != nil {
			return "", nil, err
		}
		return payURL, models.JSON{"pay_url": payURL}, nil
	}
	return "", nil, ErrGatewayUnsupported
}

func ensureBookingPayable(booking *models.Booking) error {
	if _, noop, err := bookingPaymentStates.Next(booking.PaymentStatus, eventPay); err != nil || noop {
		return fmt.Errorf("%w: booking payment status %s", ErrInvalidState, booking.PaymentStatus)
	}
	if booking.Status == constants.BookingStatusCanceled || booking.Status == constants.BookingStatusCompleted {
		return fmt.Errorf("%w: booking status %s", ErrInvalidState, booking.Status)
	}
	if booking.TotalPrice.Decimal.Round(0).IntPart() <= 0 {
		return fmt.Errorf("%w: booking total is not positive", ErrInvalidState)
	}
	return nil
}

// reusableCheckout 同网关、未过期且已拿到支付地址的会话可复用
func reusableCheckout(txn *models.PaymentTransaction, gateway string, now time.Time) bool {
	return txn.Gateway == gateway && !txn.IsExpired(now) && strings.TrimSpace(txn.PayURL) != ""
}

func buildCheckoutResult(txn *models.PaymentTransaction, reused bool) *CheckoutResult {
	return &CheckoutResult{
		Transaction:    txn,
		TransactionRef: txn.TxnRef,
		RedirectURL:    txn.PayURL,
		Payload:        txn.Payload,
		ExpiresAt:      txn.ExpiresAt,
		Reused:         reused,
	}
}

// newTxnRef 生成交易号：TB + 预订ID + yymmddHHMMSS + 随机后缀
func newTxnRef(bookingID uint, now time.Time) (string, error) {
	suffix, err := gonanoid.Generate(txnRefAlphabet, txnRefSuffixLength)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("TB%d%s%s", bookingID, now.UTC().Format("060102150405"), suffix), nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate key")
}
