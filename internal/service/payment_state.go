package service

import (
	"fmt"

	"github.com/tourbook-next/internal/constants"
)

// 状态机事件
const (
	eventNotifySuccess = "notify_success"
	eventNotifyFailure = "notify_failure"
	eventOperatorVoid  = "operator_void"
	eventPay           = "pay"
	eventRefundConfirm = "refund_confirm"
	eventConfirm       = "confirm"
	eventReject        = "reject"
	eventApprove       = "approve"
	eventMarkPaid      = "mark_paid"
)

// stateMachine 显式迁移表：(当前状态, 事件) -> 目标状态，未登记的组合一律拒绝
type stateMachine struct {
	name        string
	transitions map[string]map[string]string
	landings    map[string]map[string]bool // 事件 -> 可能的目标状态
}

func newStateMachine(name string, transitions map[string]map[string]string) *stateMachine {
	landings := make(map[string]map[string]bool)
	for _, events := range transitions {
		for event, to := range events {
			if landings[event] == nil {
				landings[event] = make(map[string]bool)
			}
			landings[event][to] = true
		}
	}
	return &stateMachine{name: name, transitions: transitions, landings: landings}
}

// Next 返回目标状态；noop 表示实体已处于该事件的目标状态（幂等重放）
func (m *stateMachine) Next(state, event string) (next string, noop bool, err error) {
	if to, ok := m.transitions[state][event]; ok {
		return to, false, nil
	}
	if m.landings[event][state] {
		return state, true, nil
	}
	return "", false, fmt.Errorf("%w: %s %s on %s", ErrInvalidState, m.name, event, state)
}

var transactionStates = newStateMachine("transaction", map[string]map[string]string{
	constants.TransactionStatusInitiated: {
		eventNotifySuccess: constants.TransactionStatusPaid,
		eventNotifyFailure: constants.TransactionStatusFailed,
		eventOperatorVoid:  constants.TransactionStatusFailed,
	},
	constants.TransactionStatusPaid: {
		eventRefundConfirm: constants.TransactionStatusRefunded,
	},
})

var bookingPaymentStates = newStateMachine("booking_payment", map[string]map[string]string{
	constants.BookingPaymentUnpaid: {
		eventPay: constants.BookingPaymentPaid,
	},
	constants.BookingPaymentPaid: {
		eventRefundConfirm: constants.BookingPaymentRefunded,
	},
})

var refundStates = newStateMachine("refund", map[string]map[string]string{
	constants.RefundStatusPending: {
		eventConfirm: constants.RefundStatusConfirmed,
		eventReject:  constants.RefundStatusRejected,
	},
})

var payoutStates = newStateMachine("payout", map[string]map[string]string{
	constants.PayoutStatusPending: {
		eventApprove: constants.PayoutStatusApproved,
		eventReject:  constants.PayoutStatusRejected,
	},
	constants.PayoutStatusApproved: {
		eventMarkPaid: constants.PayoutStatusPaid,
		eventReject:   constants.PayoutStatusRejected,
	},
})
