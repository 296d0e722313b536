package service

import (
	"time"

	"github.com/tourbook-next/internal/constants"
	"github.com/tourbook-next/internal/models"
	"github.com/tourbook-next/internal/repository"
)

// BookingPaymentView 预订支付状态视图
type BookingPaymentView struct {
	BookingID     uint                       `json:"booking_id"`
	BookingNo     string                     `json:"booking_no"`
	Status        string                     `json:"status"`
	PaymentStatus string                     `json:"payment_status"`
	Amount        models.Money               `json:"amount"`
	Currency      string                     `json:"currency"`
	PaidAt        *time.Time                 `json:"paid_at"`
	RefundedAt    *time.Time                 `json:"refunded_at"`
	Transaction   *models.PaymentTransaction `json:"transaction"`
	PendingRefund *models.RefundRequest      `json:"pending_refund"`
}

// BookingPaymentService 预订支付查询
type BookingPaymentService struct {
	bookingRepo repository.BookingRepository
	txnRepo     repository.PaymentTransactionRepository
	refundRepo  repository.RefundRepository
}

// NewBookingPaymentService 创建预订支付查询服务
func NewBookingPaymentService(bookingRepo repository.BookingRepository, txnRepo repository.PaymentTransactionRepository, refundRepo repository.RefundRepository) *BookingPaymentService {
	return &BookingPaymentService{bookingRepo: bookingRepo, txnRepo: txnRepo, refundRepo: refundRepo}
}

// GetView 返回预订支付状态；存在待处理退款时支付状态展示为 refund_pending
func (s *BookingPaymentService) GetView(bookingID, customerID uint) (*BookingPaymentView, error) {
	if bookingID == 0 {
		return nil, ErrValidation
	}
	booking, err := s.bookingRepo.GetByID(bookingID)
	if err != nil {
		return nil, err
	}
	if booking == nil {
		return nil, ErrBookingNotFound
	}
	if customerID != 0 && booking.CustomerID != customerID {
		return nil, ErrForbidden
	}
	view := &BookingPaymentView{
		BookingID:     booking.ID,
		BookingNo:     booking.BookingNo,
		Status:        booking.Status,
		PaymentStatus: booking.PaymentStatus,
		Amount:        booking.TotalPrice,
		Currency:      booking.Currency,
		PaidAt:        booking.PaidAt,
		RefundedAt:    booking.RefundedAt,
	}
	txn, err := s.txnRepo.GetLatestByBooking(booking.ID)
	if err != nil {
		return nil, err
	}
	view.Transaction = txn
	if txn == nil || booking.PaymentStatus != constants.BookingPaymentPaid {
		return view, nil
	}
	pending, err := s.refundRepo.GetPendingByTransaction(txn.ID)
	if err != nil {
		return nil, err
	}
	if pending != nil {
		view.PendingRefund = pending
		view.PaymentStatus = constants.BookingPaymentRefundPending
	}
	return view, nil
}
