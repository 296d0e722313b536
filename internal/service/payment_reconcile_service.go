package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tourbook-next/internal/cache"
	"github.com/tourbook-next/internal/constants"
	"github.com/tourbook-next/internal/logger"
	"github.com/tourbook-next/internal/models"
	"github.com/tourbook-next/internal/payment/momo"
	"github.com/tourbook-next/internal/payment/vnpay"
	"github.com/tourbook-next/internal/queue"
	"github.com/tourbook-next/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// 网关回传的结果归类
const (
	noticeOutcomeSuccess = "success"
	noticeOutcomeFailure = "failure"
	noticeOutcomePending = "pending"
)

// NotificationInput 网关异步通知（MoMo 为 JSON 请求体，VNPay 为查询参数）
type NotificationInput struct {
	Gateway string
	Body    []byte
	Query   url.Values
}

// NotificationOutcome 通知处理结论
type NotificationOutcome struct {
	Gateway     string
	TxnRef      string
	Verdict     string
	Transaction *models.PaymentTransaction
}

// ReturnInput 用户同步跳转回传
type ReturnInput struct {
	Gateway string
	Query   url.Values
}

// ReturnView 跳转结果视图，只读
type ReturnView struct {
	Gateway       string `json:"gateway"`
	TxnRef        string `json:"transaction_ref"`
	BookingID     uint   `json:"booking_id"`
	BookingNo     string `json:"booking_no"`
	Status        string `json:"status"`
	GatewayResult string `json:"gateway_result"`
	Amount        string `json:"amount"`
}

// gatewayNotice 已验签的网关通知
type gatewayNotice struct {
	gateway       string
	txnRef        string
	amount        models.Money
	outcome       string
	rawStatus     string
	providerTxnNo string
	payload       map[string]interface{}
}

// PaymentReconcileService 支付通知对账：异步通知是唯一写入口，跳转回传只读
type PaymentReconcileService struct {
	txnRepo     repository.PaymentTransactionRepository
	bookingRepo repository.BookingRepository
	auditRepo   repository.PaymentAuditRepository
	configs     GatewayConfigResolver
	events      PaymentEventPublisher
	now         func() time.Time
}

// NewPaymentReconcileService 创建对账服务
func NewPaymentReconcileService(txnRepo repository.PaymentTransactionRepository, bookingRepo repository.BookingRepository, auditRepo repository.PaymentAuditRepository, configs GatewayConfigResolver, events PaymentEventPublisher) *PaymentReconcileService {
	return &PaymentReconcileService{
		txnRepo:     txnRepo,
		bookingRepo: bookingRepo,
		auditRepo:   auditRepo,
		configs:     configs,
		events:      events,
		now:         time.Now,
	}
}

// HandleNotification 处理网关异步通知
func (s *PaymentReconcileService) HandleNotification(ctx context.Context, input NotificationInput) (*NotificationOutcome, error) {
	gateway, err := normalizeGateway(input.Gateway)
	if err != nil {
		return nil, err
	}
	resolved, err := s.configs.Resolve(gateway)
	if err != nil {
		return nil, err
	}
	notice, err := verifyNotice(resolved, input.Body, input.Query)
	if err != nil {
		s.recordNotification(&gatewayNotice{gateway: gateway, txnRef: rawTxnRef(gateway, input)}, nil, constants.NotifyVerdictSignatureInvalid)
		logger.Warnw("payment_notify_rejected", "gateway", gateway, "error", err)
		return nil, err
	}

	outcome, err := s.reconcile(ctx, notice, true)
	verdict := ""
	var txn *models.PaymentTransaction
	if outcome != nil {
		verdict, txn = outcome.Verdict, outcome.Transaction
	}
	if verdict != "" {
		s.recordNotification(notice, txn, verdict)
	}
	return outcome, err
}

func (s *PaymentReconcileService) reconcile(ctx context.Context, notice *gatewayNotice, retryOnLostRace bool) (*NotificationOutcome, error) {
	outcome := &NotificationOutcome{Gateway: notice.gateway, TxnRef: notice.txnRef}
	txn, err := s.txnRepo.GetByGatewayRef(notice.gateway, notice.txnRef)
	if err != nil {
		return nil, err
	}
	if txn == nil {
		outcome.Verdict = constants.NotifyVerdictUnknown
		s.recordAnomaly(notice, nil, constants.AnomalyUnknownTransaction, "no transaction for reference")
		logger.Warnw("payment_notify_unknown_transaction", "gateway", notice.gateway, "txn_ref", notice.txnRef, "amount", notice.amount.String())
		return outcome, ErrUnknownTransaction
	}
	outcome.Transaction = txn

	if !txn.Amount.Equal(notice.amount) {
		outcome.Verdict = constants.NotifyVerdictAmountMismatch
		if err := s.txnRepo.FlagReview(txn.ID); err != nil {
			logger.Errorw("payment_notify_flag_review_failed", "txn_id", txn.ID, "error", err)
		}
		s.recordAnomaly(notice, txn, constants.AnomalyAmountMismatch,
			fmt.Sprintf("expected %s, received %s", txn.Amount.String(), notice.amount.String()))
		logger.Warnw("payment_notify_amount_mismatch",
			"gateway", notice.gateway,
			"txn_ref", notice.txnRef,
			"expected", txn.Amount.IntString(),
			"received", notice.amount.String(),
		)
		return outcome, ErrAmountMismatch
	}

	if notice.outcome == noticeOutcomePending {
		outcome.Verdict = constants.NotifyVerdictPending
		logger.Infow("payment_notify_pending", "gateway", notice.gateway, "txn_ref", notice.txnRef, "raw_status", notice.rawStatus)
		return outcome, nil
	}

	event := eventNotifyFailure
	if notice.outcome == noticeOutcomeSuccess {
		event = eventNotifySuccess
	}
	_, noop, err := transactionStates.Next(txn.Status, event)
	switch {
	case noop || (event == eventNotifySuccess && txn.PaidAt != nil):
		// 同结果重放（含已退款交易的成功重放）
		outcome.Verdict = constants.NotifyVerdictDuplicate
		return outcome, nil
	case err != nil:
		outcome.Verdict = constants.NotifyVerdictIgnored
		if event == eventNotifySuccess {
			// 已失败的交易又收到成功：顾客可能已扣款，需人工处理
			s.recordAnomaly(notice, txn, constants.AnomalyConflictingOutcome,
				fmt.Sprintf("success notification on %s transaction", txn.Status))
		}
		logger.Warnw("payment_notify_conflicting_outcome",
			"gateway", notice.gateway,
			"txn_ref", notice.txnRef,
			"status", txn.Status,
			"outcome", notice.outcome,
		)
		return outcome, ErrTransactionClosed
	}

	var won bool
	if event == eventNotifySuccess {
		won, err = s.applyPaid(ctx, notice, txn)
	} else {
		won, err = s.txnRepo.MarkFailed(txn.ID, notice.rawStatus, constants.FailureReasonGateway, s.now())
		if won {
			logger.Infow("payment_notify_failed_applied", "gateway", notice.gateway, "txn_ref", notice.txnRef, "raw_status", notice.rawStatus)
		}
	}
	if err != nil {
		return nil, err
	}
	if !won {
		// 并发通知已先完成迁移，按最新状态重新判定
		if retryOnLostRace {
			return s.reconcile(ctx, notice, false)
		}
		outcome.Verdict = constants.NotifyVerdictDuplicate
		return outcome, nil
	}
	if refreshed, err := s.txnRepo.GetByID(txn.ID); err == nil && refreshed != nil {
		outcome.Transaction = refreshed
	}
	outcome.Verdict = constants.NotifyVerdictApplied
	return outcome, nil
}

// applyPaid 交易与预订在同一事务内条件更新，只有赢得迁移的调用触发副作用
func (s *PaymentReconcileService) applyPaid(ctx context.Context, notice *gatewayNotice, txn *models.PaymentTransaction) (bool, error) {
	now := s.now()
	var won, bookingWon bool
	var booking *models.Booking
	err := models.DB.Transaction(func(tx *gorm.DB) error {
		txnRepo := s.txnRepo.WithTx(tx)
		ok, err := txnRepo.MarkPaid(txn.ID, repository.PaidUpdate{
			RawStatus:     notice.rawStatus,
			ProviderTxnNo: notice.providerTxnNo,
			PaidAt:        now,
		})
		if err != nil || !ok {
			return err
		}
		won = true
		bookingRepo := s.bookingRepo.WithTx(tx)
		if bookingWon, err = bookingRepo.MarkPaid(txn.BookingID, now); err != nil {
			return err
		}
		if !bookingWon {
			// 资金已到账但预订不可支付（如已取消），保留交易成功并转人工
			return txnRepo.FlagReview(txn.ID)
		}
		booking, err = bookingRepo.GetByID(txn.BookingID)
		return err
	})
	if err != nil || !won {
		return false, err
	}
	if !bookingWon {
		s.recordAnomaly(notice, txn, constants.AnomalyConflictingOutcome, "payment succeeded but booking was not payable")
		logger.Warnw("payment_notify_booking_not_payable", "txn_ref", notice.txnRef, "booking_id", txn.BookingID)
		return true, nil
	}

	logger.Infow("payment_notify_paid_applied",
		"gateway", notice.gateway,
		"txn_ref", notice.txnRef,
		"booking_id", txn.BookingID,
		"amount", notice.amount.String(),
	)
	if s.events != nil {
		payload := queue.BookingPaidPayload{
			BookingID:     txn.BookingID,
			TransactionID: txn.ID,
			CustomerID:    txn.CustomerID,
			Gateway:       txn.Gateway,
			TxnRef:        txn.TxnRef,
			Amount:        txn.Amount.IntString(),
			PaidAt:        now,
		}
		if booking != nil {
			payload.BookingNo = booking.BookingNo
			payload.GuideID = booking.GuideID
		}
		if err := s.events.EnqueueBookingPaid(ctx, payload); err != nil {
			logger.Errorw("payment_paid_event_enqueue_failed", "txn_id", txn.ID, "error", err)
		}
	}
	if err := cache.BumpRevenueGeneration(ctx); err != nil {
		logger.Warnw("revenue_cache_bump_failed", "error", err)
	}
	return true, nil
}

// ResolveReturn 同步跳转只读取当前状态，异步通知未到达时展示 pending
func (s *PaymentReconcileService) ResolveReturn(ctx context.Context, input ReturnInput) (*ReturnView, error) {
	gateway, err := normalizeGateway(input.Gateway)
	if err != nil {
		return nil, err
	}
	resolved, err := s.configs.Resolve(gateway)
	if err != nil {
		return nil, err
	}
	var notice *gatewayNotice
	switch gateway {
	case constants.GatewayMomo:
		cfg, cfgErr := resolved.Momo()
		if cfgErr != nil {
			return nil, cfgErr
		}
		n, parseErr := momo.NotificationFromQuery(input.Query)
		if parseErr != nil {
			return nil, fmt.Errorf("%w: %v", ErrSignatureInvalid, parseErr)
		}
		if verifyErr := momo.VerifyNotification(cfg, n); verifyErr != nil {
			return nil, fmt.Errorf("%w: %v", ErrSignatureInvalid, verifyErr)
		}
		notice = momoNotice(n)
	default:
		notice, err = verifyNotice(resolved, nil, input.Query)
		if err != nil {
			return nil, err
		}
	}

	txn, err := s.txnRepo.GetByGatewayRef(gateway, notice.txnRef)
	if err != nil {
		return nil, err
	}
	if txn == nil {
		return nil, ErrUnknownTransaction
	}
	view := &ReturnView{
		Gateway:       gateway,
		TxnRef:        txn.TxnRef,
		BookingID:     txn.BookingID,
		Status:        returnStatus(txn),
		GatewayResult: notice.outcome,
		Amount:        txn.Amount.IntString(),
	}
	if booking, err := s.bookingRepo.GetByID(txn.BookingID); err == nil && booking != nil {
		view.BookingNo = booking.BookingNo
	}
	return view, nil
}

func returnStatus(txn *models.PaymentTransaction) string {
	switch txn.Status {
	case constants.TransactionStatusPaid, constants.TransactionStatusFailed, constants.TransactionStatusRefunded:
		return txn.Status
	default:
		return noticeOutcomePending
	}
}

// VoidTransaction 运营作废进行中的交易，释放预订以便重新发起支付
func (s *PaymentReconcileService) VoidTransaction(id uint, adminID uint) (*models.PaymentTransaction, error) {
	txn, err := s.txnRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if txn == nil {
		return nil, ErrTransactionMissing
	}
	_, noop, err := transactionStates.Next(txn.Status, eventOperatorVoid)
	if err != nil {
		return nil, err
	}
	if noop {
		return txn, nil
	}
	won, err := s.txnRepo.MarkFailed(txn.ID, txn.RawStatus, constants.FailureReasonOperatorVoid, s.now())
	if err != nil {
		return nil, err
	}
	if !won {
		latest, err := s.txnRepo.GetByID(id)
		if err != nil {
			return nil, err
		}
		if latest == nil || latest.Status != constants.TransactionStatusFailed {
			return nil, fmt.Errorf("%w: transaction changed concurrently", ErrInvalidState)
		}
		return latest, nil
	}
	logger.Infow("payment_transaction_voided", "txn_id", txn.ID, "txn_ref", txn.TxnRef, "admin_id", adminID)
	return s.txnRepo.GetByID(id)
}

// ListTransactions 管理端交易列表
func (s *PaymentReconcileService) ListTransactions(filter repository.TransactionListFilter) ([]models.PaymentTransaction, int64, error) {
	return s.txnRepo.ListAdmin(filter)
}

// ListAnomalies 对账异常列表
func (s *PaymentReconcileService) ListAnomalies(filter repository.AnomalyListFilter) ([]models.PaymentAnomaly, int64, error) {
	return s.auditRepo.ListAnomalies(filter)
}

// ResolveAnomaly 标记对账异常已处理，重复处理为幂等
func (s *PaymentReconcileService) ResolveAnomaly(id uint, adminID uint, note string) (*models.PaymentAnomaly, error) {
	anomaly, err := s.auditRepo.GetAnomaly(id)
	if err != nil {
		return nil, err
	}
	if anomaly == nil {
		return nil, ErrAnomalyNotFound
	}
	if !anomaly.Resolved {
		if _, err := s.auditRepo.ResolveAnomaly(id, adminID, strings.TrimSpace(note), s.now()); err != nil {
			return nil, err
		}
	}
	return s.auditRepo.GetAnomaly(id)
}

func (s *PaymentReconcileService) recordNotification(notice *gatewayNotice, txn *models.PaymentTransaction, verdict string) {
	if s.auditRepo == nil {
		return
	}
	row := &models.PaymentNotification{
		Gateway:    notice.gateway,
		TxnRef:     notice.txnRef,
		ResultCode: notice.rawStatus,
		Amount:     notice.amount,
		Verdict:    verdict,
		Payload:    toDatatypesJSON(notice.payload),
		CreatedAt:  s.now(),
	}
	if txn != nil {
		id := txn.ID
		row.TransactionID = &id
	}
	if err := s.auditRepo.CreateNotification(row); err != nil {
		logger.Errorw("payment_notification_log_failed", "gateway", notice.gateway, "txn_ref", notice.txnRef, "error", err)
	}
}

func (s *PaymentReconcileService) recordAnomaly(notice *gatewayNotice, txn *models.PaymentTransaction, kind, detail string) {
	if s.auditRepo == nil {
		return
	}
	now := s.now()
	row := &models.PaymentAnomaly{
		Gateway:        notice.gateway,
		TxnRef:         notice.txnRef,
		Kind:           kind,
		ReceivedAmount: notice.amount,
		Detail:         detail,
		Payload:        toDatatypesJSON(notice.payload),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if txn != nil {
		id := txn.ID
		row.TransactionID = &id
		row.ExpectedAmount = txn.Amount
	}
	if err := s.auditRepo.CreateAnomaly(row); err != nil {
		logger.Errorw("payment_anomaly_record_failed", "gateway", notice.gateway, "txn_ref", notice.txnRef, "kind", kind, "error", err)
	}
}

// verifyNotice 按网关协议解析并验签
func verifyNotice(resolved *GatewayConfig, body []byte, query url.Values) (*gatewayNotice, error) {
	switch resolved.Gateway {
	case constants.GatewayMomo:
		cfg, err := resolved.Momo()
		if err != nil {
			return nil, err
		}
		n, err := momo.ParseNotification(body)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSignatureInvalid, err)
		}
		if err := momo.VerifyNotification(cfg, n); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSignatureInvalid, err)
		}
		return momoNotice(n), nil
	case constants.GatewayVnpay:
		cfg, err := resolved.Vnpay()
		if err != nil {
			return nil, err
		}
		if err := vnpay.VerifyQuery(cfg, query); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSignatureInvalid, err)
		}
		n, err := vnpay.ParseQuery(query)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSignatureInvalid, err)
		}
		outcome := noticeOutcomeFailure
		if n.IsSuccess() {
			outcome = noticeOutcomeSuccess
		}
		return &gatewayNotice{
			gateway:       constants.GatewayVnpay,
			txnRef:        n.TxnRef,
			amount:        models.NewMoneyFromDecimal(decimal.New(n.AmountMinor, -2)),
			outcome:       outcome,
			rawStatus:     n.RawStatus(),
			providerTxnNo: n.TransactionNo,
			payload:       n.ToMap(),
		}, nil
	}
	return nil, ErrGatewayUnsupported
}

func momoNotice(n *momo.Notification) *gatewayNotice {
	outcome := noticeOutcomeFailure
	switch {
	case n.IsSuccess():
		outcome = noticeOutcomeSuccess
	case n.IsPending():
		outcome = noticeOutcomePending
	}
	providerTxnNo := ""
	if n.TransID != 0 {
		providerTxnNo = strconv.FormatInt(n.TransID, 10)
	}
	return &gatewayNotice{
		gateway:       constants.GatewayMomo,
		txnRef:        n.OrderID,
		amount:        models.NewMoneyFromInt(n.Amount),
		outcome:       outcome,
		rawStatus:     strconv.Itoa(n.ResultCode),
		providerTxnNo: providerTxnNo,
		payload:       n.ToMap(),
	}
}

// rawTxnRef 验签失败时尽力提取交易号用于审计
func rawTxnRef(gateway string, input NotificationInput) string {
	if gateway == constants.GatewayVnpay {
		return input.Query.Get("vnp_TxnRef")
	}
	var head struct {
		OrderID string `json:"orderId"`
	}
	if err := json.Unmarshal(input.Body, &head); err != nil {
		return ""
	}
	return head.OrderID
}

func toDatatypesJSON(payload map[string]interface{}) datatypes.JSON {
	if len(payload) == 0 {
		return nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil
	}
	return datatypes.JSON(raw)
}

// IsReconcileAnomaly 对账异常按网关协议确认收到，不触发重试
func IsReconcileAnomaly(err error) bool {
	return errors.Is(err, ErrUnknownTransaction) || errors.Is(err, ErrAmountMismatch) || errors.Is(err, ErrTransactionClosed)
}
