package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"testing"

	"github.com/tourbook-next/internal/config"
	"github.com/tourbook-next/internal/models"
	"github.com/tourbook-next/internal/payment/momo"
	"github.com/tourbook-next/internal/payment/vnpay"
	"github.com/tourbook-next/internal/repository"
)

type reconcileFixture struct {
	*checkoutFixture
	auditRepo *repository.GormPaymentAuditRepository
	events    *recordingPublisher
	reconcile *PaymentReconcileService
}

func newReconcileFixture(t *testing.T) *reconcileFixture {
	t.Helper()
	f := newCheckoutFixture(t, config.PaymentConfig{Momo: testMomoEnv, Vnpay: testVnpayEnv, PublicBaseURL: "https://api.example.com"})
	auditRepo := repository.NewPaymentAuditRepository(f.db)
	events := &recordingPublisher{}
	reconcile := NewPaymentReconcileService(f.txnRepo, f.bookingRepo, auditRepo, f.configs, events)
	return &reconcileFixture{checkoutFixture: f, auditRepo: auditRepo, events: events, reconcile: reconcile}
}

func (f *reconcileFixture) initiate(t *testing.T, booking *models.Booking, gateway string) *models.PaymentTransaction {
	t.Helper()
	result, err := f.checkout.Initiate(context.Background(), CheckoutInput{BookingID: booking.ID, CustomerID: booking.CustomerID, Gateway: gateway, ClientIP: "127.0.0.1"})
	if err != nil {
		t.Fatalf("initiate failed: %v", err)
	}
	return result.Transaction
}

func (f *reconcileFixture) momoNotification(t *testing.T, txnRef string, amount int64, resultCode int) *momo.Notification {
	t.Helper()
	resolved, err := f.configs.Resolve("momo")
	if err != nil {
		t.Fatalf("resolve momo failed: %v", err)
	}
	cfg, err := resolved.Momo()
	if err != nil {
		t.Fatalf("momo config failed: %v", err)
	}
	n := &momo.Notification{
		PartnerCode:  cfg.PartnerCode,
		OrderID:      txnRef,
		RequestID:    "req-" + txnRef,
		Amount:       amount,
		OrderInfo:    "Thanh toan booking",
		OrderType:    "momo_wallet",
		TransID:      4088878653,
		ResultCode:   resultCode,
		Message:      "Successful.",
		PayType:      "qr",
		ResponseTime: 1767225600000,
	}
	n.Signature = momo.SignNotification(cfg, n)
	return n
}

func (f *reconcileFixture) momoIPN(t *testing.T, txnRef string, amount int64, resultCode int) NotificationInput {
	t.Helper()
	body, err := json.Marshal(f.momoNotification(t, txnRef, amount, resultCode))
	if err != nil {
		t.Fatalf("marshal ipn failed: %v", err)
	}
	return NotificationInput{Gateway: "momo", Body: body}
}

func (f *reconcileFixture) vnpayQuery(t *testing.T, txnRef string, amount int64, responseCode string) url.Values {
	t.Helper()
	resolved, err := f.configs.Resolve("vnpay")
	if err != nil {
		t.Fatalf("resolve vnpay failed: %v", err)
	}
	cfg, err := resolved.Vnpay()
	if err != nil {
		t.Fatalf("vnpay config failed: %v", err)
	}
	values := url.Values{}
	values.Set("vnp_TmnCode", cfg.TmnCode)
	values.Set("vnp_TxnRef", txnRef)
	values.Set("vnp_Amount", strconv.FormatInt(amount*100, 10))
	values.Set("vnp_ResponseCode", responseCode)
	values.Set("vnp_TransactionStatus", responseCode)
	values.Set("vnp_TransactionNo", "14226112")
	values.Set("vnp_BankCode", "NCB")
	values.Set("vnp_PayDate", "20260301153000")
	values.Set("vnp_OrderInfo", "Thanh toan booking")
	values.Set("vnp_SecureHash", vnpay.QuerySignature(cfg, values))
	return values
}

func (f *reconcileFixture) reload(t *testing.T, booking *models.Booking, txn *models.PaymentTransaction) (*models.Booking, *models.PaymentTransaction) {
	t.Helper()
	b, err := f.bookingRepo.GetByID(booking.ID)
	if err != nil || b == nil {
		t.Fatalf("reload booking failed: %v", err)
	}
	x, err := f.txnRepo.GetByID(txn.ID)
	if err != nil || x == nil {
		t.Fatalf("reload transaction failed: %v", err)
	}
	return b, x
}

func TestMomoSuccessNotificationMarksBookingPaid(t *testing.T) {
	f := newReconcileFixture(t)
	tour := createTestTour(t, f.db, 1, 7, "Ha Long Bay")
	booking := createTestBooking(t, f.db, tour, 100, 1000000)
	txn := f.initiate(t, booking, "momo")

	outcome, err := f.reconcile.HandleNotification(context.Background(), f.momoIPN(t, txn.TxnRef, 1000000, 0))
	if err != nil {
		t.Fatalf("handle notification failed: %v", err)
	}
	if outcome.Verdict != "applied" {
		t.Fatalf("expected applied verdict, got %s", outcome.Verdict)
	}
	b, x := f.reload(t, booking, txn)
	if b.PaymentStatus != "paid" || b.Status != "confirmed" || b.PaidAt == nil {
		t.Fatalf("unexpected booking after pay: %+v", b)
	}
	if x.Status != "paid" || x.ProviderTxnNo != "4088878653" || x.RawStatus != "0" {
		t.Fatalf("unexpected transaction after pay: %+v", x)
	}
	if f.events.paidCount() != 1 {
		t.Fatalf("expected 1 paid event, got %d", f.events.paidCount())
	}
	if f.events.paid[0].BookingNo != booking.BookingNo || f.events.paid[0].Amount != "1000000" {
		t.Fatalf("unexpected paid payload: %+v", f.events.paid[0])
	}
}

func TestDuplicateNotificationAppliesOnce(t *testing.T) {
	f := newReconcileFixture(t)
	tour := createTestTour(t, f.db, 1, 7, "Sapa")
	booking := createTestBooking(t, f.db, tour, 100, 1000000)
	txn := f.initiate(t, booking, "momo")
	input := f.momoIPN(t, txn.TxnRef, 1000000, 0)

	for i := 0; i < 5; i++ {
		if _, err := f.reconcile.HandleNotification(context.Background(), input); err != nil {
			t.Fatalf("delivery %d failed: %v", i, err)
		}
	}
	if f.events.paidCount() != 1 {
		t.Fatalf("expected side effects once, got %d", f.events.paidCount())
	}
	count, err := f.auditRepo.CountNotifications("momo", txn.TxnRef)
	if err != nil {
		t.Fatalf("count notifications failed: %v", err)
	}
	if count != 5 {
		t.Fatalf("expected 5 logged notifications, got %d", count)
	}
}

func TestConcurrentNotificationsApplyOnce(t *testing.T) {
	f := newReconcileFixture(t)
	tour := createTestTour(t, f.db, 1, 7, "Hoi An")
	booking := createTestBooking(t, f.db, tour, 100, 1000000)
	txn := f.initiate(t, booking, "vnpay")
	query := f.vnpayQuery(t, txn.TxnRef, 1000000, "00")

	const deliveries = 6
	var wg sync.WaitGroup
	errs := make([]error, deliveries)
	for i := 0; i < deliveries; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			_, errs[idx] = f.reconcile.HandleNotification(context.Background(), NotificationInput{Gateway: "vnpay", Query: query})
		}(i)
	}
	wg.Wait()
	for i, err := range errs {
		if err != nil {
			t.Fatalf("delivery %d failed: %v", i, err)
		}
	}
	if f.events.paidCount() != 1 {
		t.Fatalf("expected exactly one paid event, got %d", f.events.paidCount())
	}
	b, _ := f.reload(t, booking, txn)
	if b.PaymentStatus != "paid" {
		t.Fatalf("expected booking paid, got %s", b.PaymentStatus)
	}
}

func TestFailureAfterPaidDoesNotDowngrade(t *testing.T) {
	f := newReconcileFixture(t)
	tour := createTestTour(t, f.db, 1, 7, "Mekong")
	booking := createTestBooking(t, f.db, tour, 100, 1000000)
	txn := f.initiate(t, booking, "momo")

	if _, err := f.reconcile.HandleNotification(context.Background(), f.momoIPN(t, txn.TxnRef, 1000000, 0)); err != nil {
		t.Fatalf("success notification failed: %v", err)
	}
	_, err := f.reconcile.HandleNotification(context.Background(), f.momoIPN(t, txn.TxnRef, 1000000, 1006))
	if !errors.Is(err, ErrTransactionClosed) {
		t.Fatalf("expected transaction closed, got %v", err)
	}
	b, x := f.reload(t, booking, txn)
	if x.Status != "paid" || b.PaymentStatus != "paid" {
		t.Fatalf("paid state downgraded: txn=%s booking=%s", x.Status, b.PaymentStatus)
	}
	if f.events.paidCount() != 1 {
		t.Fatalf("expected 1 paid event, got %d", f.events.paidCount())
	}
}

func TestFailureNotificationReleasesBooking(t *testing.T) {
	f := newReconcileFixture(t)
	tour := createTestTour(t, f.db, 1, 7, "Da Lat")
	booking := createTestBooking(t, f.db, tour, 100, 500000)
	txn := f.initiate(t, booking, "vnpay")

	outcome, err := f.reconcile.HandleNotification(context.Background(), NotificationInput{Gateway: "vnpay", Query: f.vnpayQuery(t, txn.TxnRef, 500000, "24")})
	if err != nil {
		t.Fatalf("failure notification failed: %v", err)
	}
	if outcome.Verdict != "applied" {
		t.Fatalf("expected applied, got %s", outcome.Verdict)
	}
	b, x := f.reload(t, booking, txn)
	if x.Status != "failed" || b.PaymentStatus != "unpaid" {
		t.Fatalf("unexpected state: txn=%s booking=%s", x.Status, b.PaymentStatus)
	}
	inflight, err := f.txnRepo.GetInFlightByBooking(booking.ID)
	if err != nil || inflight != nil {
		t.Fatalf("expected no in-flight transaction, got %+v err=%v", inflight, err)
	}
	// 失败后收到成功通知记为异常，不改变状态
	if _, err := f.reconcile.HandleNotification(context.Background(), NotificationInput{Gateway: "vnpay", Query: f.vnpayQuery(t, txn.TxnRef, 500000, "00")}); !errors.Is(err, ErrTransactionClosed) {
		t.Fatalf("expected transaction closed, got %v", err)
	}
	anomalies, total, err := f.auditRepo.ListAnomalies(repository.AnomalyListFilter{Page: 1, PageSize: 10})
	if err != nil {
		t.Fatalf("list anomalies failed: %v", err)
	}
	if total != 1 || anomalies[0].Kind != "conflicting_outcome" {
		t.Fatalf("expected conflicting outcome anomaly, got %+v", anomalies)
	}
}

func TestSuccessOnCanceledBookingFlagsReview(t *testing.T) {
	f := newReconcileFixture(t)
	tour := createTestTour(t, f.db, 1, 7, "Phong Nha")
	booking := createTestBooking(t, f.db, tour, 100, 1000000)
	txn := f.initiate(t, booking, "momo")
	if err := f.db.Model(&models.Booking{}).Where("id = ?", booking.ID).Update("status", "canceled").Error; err != nil {
		t.Fatalf("cancel booking failed: %v", err)
	}

	if _, err := f.reconcile.HandleNotification(context.Background(), f.momoIPN(t, txn.TxnRef, 1000000, 0)); err != nil {
		t.Fatalf("notification failed: %v", err)
	}
	b, x := f.reload(t, booking, txn)
	if b.Status != "canceled" || b.PaymentStatus != "unpaid" {
		t.Fatalf("canceled booking changed: status=%s payment=%s", b.Status, b.PaymentStatus)
	}
	if x.Status != "paid" || !x.ReviewRequired {
		t.Fatalf("expected paid transaction flagged for review, got status=%s review=%v", x.Status, x.ReviewRequired)
	}
	if f.events.paidCount() != 0 {
		t.Fatalf("expected no paid event, got %d", f.events.paidCount())
	}
	anomalies, total, err := f.auditRepo.ListAnomalies(repository.AnomalyListFilter{Page: 1, PageSize: 10})
	if err != nil {
		t.Fatalf("list anomalies failed: %v", err)
	}
	if total != 1 || anomalies[0].Kind != "conflicting_outcome" {
		t.Fatalf("expected conflicting outcome anomaly, got %+v", anomalies)
	}
}

func TestAmountMismatchKeepsBookingUnpaid(t *testing.T) {
	f := newReconcileFixture(t)
	tour := createTestTour(t, f.db, 1, 7, "Hue")
	booking := createTestBooking(t, f.db, tour, 100, 1000000)
	txn := f.initiate(t, booking, "momo")

	outcome, handleErr := f.reconcile.HandleNotification(context.Background(), f.momoIPN(t, txn.TxnRef, 900000, 0))
	if !errors.Is(handleErr, ErrAmountMismatch) {
		t.Fatalf("expected amount mismatch, got %v", handleErr)
	}
	if outcome == nil || outcome.Verdict != "amount_mismatch" {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}
	b, x := f.reload(t, booking, txn)
	if b.PaymentStatus != "unpaid" || x.Status != "initiated" || !x.ReviewRequired {
		t.Fatalf("unexpected state: booking=%s txn=%s review=%v", b.PaymentStatus, x.Status, x.ReviewRequired)
	}
	if f.events.paidCount() != 0 {
		t.Fatalf("expected no side effects, got %d", f.events.paidCount())
	}
	anomalies, _, err := f.auditRepo.ListAnomalies(repository.AnomalyListFilter{Page: 1, PageSize: 10})
	if err != nil || len(anomalies) != 1 {
		t.Fatalf("expected one anomaly, got %d err=%v", len(anomalies), err)
	}
	if anomalies[0].ExpectedAmount.IntString() != "1000000" || anomalies[0].ReceivedAmount.IntString() != "900000" {
		t.Fatalf("unexpected anomaly amounts: %+v", anomalies[0])
	}
	if !IsReconcileAnomaly(handleErr) {
		t.Fatalf("expected amount mismatch classified as anomaly")
	}
}

func TestVnpayFractionalAmountIsAmountMismatch(t *testing.T) {
	f := newReconcileFixture(t)
	tour := createTestTour(t, f.db, 1, 7, "Sa Pa")
	booking := createTestBooking(t, f.db, tour, 100, 1000000)
	txn := f.initiate(t, booking, "vnpay")

	resolved, err := f.configs.Resolve("vnpay")
	if err != nil {
		t.Fatalf("resolve vnpay failed: %v", err)
	}
	cfg, err := resolved.Vnpay()
	if err != nil {
		t.Fatalf("vnpay config failed: %v", err)
	}
	query := f.vnpayQuery(t, txn.TxnRef, 1000000, "00")
	query.Set("vnp_Amount", "100000050")
	query.Set("vnp_SecureHash", vnpay.QuerySignature(cfg, query))

	_, err = f.reconcile.HandleNotification(context.Background(), NotificationInput{Gateway: "vnpay", Query: query})
	if !errors.Is(err, ErrAmountMismatch) {
		t.Fatalf("expected amount mismatch, got %v", err)
	}
	b, x := f.reload(t, booking, txn)
	if b.PaymentStatus != "unpaid" || x.Status != "initiated" || !x.ReviewRequired {
		t.Fatalf("unexpected state: booking=%s txn=%s review=%v", b.PaymentStatus, x.Status, x.ReviewRequired)
	}
	anomalies, _, err := f.auditRepo.ListAnomalies(repository.AnomalyListFilter{Page: 1, PageSize: 10})
	if err != nil || len(anomalies) != 1 {
		t.Fatalf("expected one anomaly, got %d err=%v", len(anomalies), err)
	}
	if anomalies[0].Kind != "amount_mismatch" || anomalies[0].ReceivedAmount.String() != "1000000.50" {
		t.Fatalf("unexpected anomaly: %+v", anomalies[0])
	}
}

func TestUnknownTransactionRecordsAnomaly(t *testing.T) {
	f := newReconcileFixture(t)
	_, err := f.reconcile.HandleNotification(context.Background(), f.momoIPN(t, "TB999NOTEXIST", 100000, 0))
	if !errors.Is(err, ErrUnknownTransaction) {
		t.Fatalf("expected unknown transaction, got %v", err)
	}
	anomalies, total, err := f.auditRepo.ListAnomalies(repository.AnomalyListFilter{Page: 1, PageSize: 10})
	if err != nil {
		t.Fatalf("list anomalies failed: %v", err)
	}
	if total != 1 || anomalies[0].Kind != "unknown_transaction" || anomalies[0].TxnRef != "TB999NOTEXIST" {
		t.Fatalf("unexpected anomalies: %+v", anomalies)
	}

	resolved, err := f.reconcile.ResolveAnomaly(anomalies[0].ID, 1, "checked with gateway")
	if err != nil {
		t.Fatalf("resolve anomaly failed: %v", err)
	}
	if !resolved.Resolved || resolved.ResolvedBy != 1 {
		t.Fatalf("unexpected resolved anomaly: %+v", resolved)
	}
}

func TestTamperedSignatureRejected(t *testing.T) {
	f := newReconcileFixture(t)
	tour := createTestTour(t, f.db, 1, 7, "Phu Quoc")
	booking := createTestBooking(t, f.db, tour, 100, 1000000)
	txn := f.initiate(t, booking, "vnpay")

	query := f.vnpayQuery(t, txn.TxnRef, 1000000, "00")
	query.Set("vnp_Amount", "1")
	if _, err := f.reconcile.HandleNotification(context.Background(), NotificationInput{Gateway: "vnpay", Query: query}); !errors.Is(err, ErrSignatureInvalid) {
		t.Fatalf("expected signature invalid, got %v", err)
	}

	n := f.momoNotification(t, txn.TxnRef, 1000000, 0)
	n.Signature = "deadbeef"
	body, _ := json.Marshal(n)
	if _, err := f.reconcile.HandleNotification(context.Background(), NotificationInput{Gateway: "momo", Body: body}); !errors.Is(err, ErrSignatureInvalid) {
		t.Fatalf("expected momo signature invalid, got %v", err)
	}
	b, x := f.reload(t, booking, txn)
	if b.PaymentStatus != "unpaid" || x.Status != "initiated" {
		t.Fatalf("state changed by unsigned notice: booking=%s txn=%s", b.PaymentStatus, x.Status)
	}
}

func TestMomoPendingResultLeavesTransactionInitiated(t *testing.T) {
	f := newReconcileFixture(t)
	tour := createTestTour(t, f.db, 1, 7, "Con Dao")
	booking := createTestBooking(t, f.db, tour, 100, 300000)
	txn := f.initiate(t, booking, "momo")

	outcome, err := f.reconcile.HandleNotification(context.Background(), f.momoIPN(t, txn.TxnRef, 300000, 9000))
	if err != nil {
		t.Fatalf("pending notification failed: %v", err)
	}
	if outcome.Verdict != "pending" {
		t.Fatalf("expected pending verdict, got %s", outcome.Verdict)
	}
	_, x := f.reload(t, booking, txn)
	if x.Status != "initiated" {
		t.Fatalf("expected initiated, got %s", x.Status)
	}
}

func TestReturnIsReadOnly(t *testing.T) {
	f := newReconcileFixture(t)
	tour := createTestTour(t, f.db, 1, 7, "Ninh Binh")
	booking := createTestBooking(t, f.db, tour, 100, 1000000)
	txn := f.initiate(t, booking, "vnpay")

	view, err := f.reconcile.ResolveReturn(context.Background(), ReturnInput{Gateway: "vnpay", Query: f.vnpayQuery(t, txn.TxnRef, 1000000, "00")})
	if err != nil {
		t.Fatalf("resolve return failed: %v", err)
	}
	if view.Status != "pending" || view.GatewayResult != "success" || view.BookingNo != booking.BookingNo {
		t.Fatalf("unexpected return view: %+v", view)
	}
	b, x := f.reload(t, booking, txn)
	if b.PaymentStatus != "unpaid" || x.Status != "initiated" {
		t.Fatalf("return path mutated state: booking=%s txn=%s", b.PaymentStatus, x.Status)
	}
	if f.events.paidCount() != 0 {
		t.Fatalf("return path produced side effects")
	}

	if _, err := f.reconcile.HandleNotification(context.Background(), NotificationInput{Gateway: "vnpay", Query: f.vnpayQuery(t, txn.TxnRef, 1000000, "00")}); err != nil {
		t.Fatalf("ipn failed: %v", err)
	}
	view, err = f.reconcile.ResolveReturn(context.Background(), ReturnInput{Gateway: "vnpay", Query: f.vnpayQuery(t, txn.TxnRef, 1000000, "00")})
	if err != nil {
		t.Fatalf("resolve return after ipn failed: %v", err)
	}
	if view.Status != "paid" {
		t.Fatalf("expected paid after ipn, got %s", view.Status)
	}
}

func TestMomoReturnQueryVerified(t *testing.T) {
	f := newReconcileFixture(t)
	tour := createTestTour(t, f.db, 1, 7, "Quy Nhon")
	booking := createTestBooking(t, f.db, tour, 100, 200000)
	txn := f.initiate(t, booking, "momo")

	n := f.momoNotification(t, txn.TxnRef, 200000, 0)
	query := url.Values{}
	for k, v := range n.ToMap() {
		query.Set(k, fmt.Sprint(v))
	}
	query.Set("signature", n.Signature)
	view, err := f.reconcile.ResolveReturn(context.Background(), ReturnInput{Gateway: "momo", Query: query})
	if err != nil {
		t.Fatalf("momo return failed: %v", err)
	}
	if view.Status != "pending" || view.TxnRef != txn.TxnRef {
		t.Fatalf("unexpected momo return view: %+v", view)
	}
}

func TestVoidTransactionReleasesBooking(t *testing.T) {
	f := newReconcileFixture(t)
	tour := createTestTour(t, f.db, 1, 7, "Cat Ba")
	booking := createTestBooking(t, f.db, tour, 100, 400000)
	txn := f.initiate(t, booking, "momo")

	voided, err := f.reconcile.VoidTransaction(txn.ID, 1)
	if err != nil {
		t.Fatalf("void failed: %v", err)
	}
	if voided.Status != "failed" || voided.FailureReason != "operator_void" {
		t.Fatalf("unexpected voided transaction: %+v", voided)
	}
	if _, err := f.reconcile.VoidTransaction(txn.ID, 1); err != nil {
		t.Fatalf("repeat void should be idempotent: %v", err)
	}
	if _, err := f.checkout.Initiate(context.Background(), CheckoutInput{BookingID: booking.ID, CustomerID: 100, Gateway: "momo"}); err != nil {
		t.Fatalf("re-initiate after void failed: %v", err)
	}
}
