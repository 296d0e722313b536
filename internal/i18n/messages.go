package i18n

var messages = map[string]map[string]string{
	LocaleEnUS: {
		"error.bad_request":              "Invalid request",
		"error.unauthorized":             "Please sign in",
		"error.forbidden":                "You do not have permission for this action",
		"error.internal":                 "Internal error, please try again later",
		"error.not_found":                "Resource not found",
		"error.conflict":                 "The resource was changed by another request, please retry",
		"error.jwt_secret_missing":       "Authentication is not configured",
		"error.auth_header_missing":      "Missing Authorization header",
		"error.auth_header_invalid":      "Authorization header must be a Bearer token",
		"error.token_invalid":            "Invalid or expired token",
		"error.rate_limited":             "Too many requests, please retry in %d seconds",
		"error.rate_limit_unavailable":   "Rate limiter unavailable, please retry later",
		"error.booking_not_found":        "Booking not found",
		"error.booking_not_payable":      "This booking cannot be paid in its current state",
		"error.checkout_in_flight":       "A payment for this booking is already in progress",
		"error.gateway_invalid":          "Unsupported payment gateway",
		"error.gateway_unavailable":      "Payment gateway is temporarily unavailable",
		"error.gateway_request_failed":   "Could not reach the payment gateway",
		"error.gateway_config_invalid":   "Gateway configuration is incomplete",
		"error.transaction_not_found":    "Payment transaction not found",
		"error.transaction_not_voidable": "Only in-progress transactions can be voided",
		"error.refund_not_found":         "Refund request not found",
		"error.refund_not_allowed":       "Only paid transactions can be refunded",
		"error.refund_amount_invalid":    "Refund amount must be positive and not exceed the paid amount",
		"error.refund_duplicate":         "A refund request is already pending for this payment",
		"error.refund_state_invalid":     "The refund request can no longer be changed",
		"error.payout_not_found":         "Payout request not found",
		"error.payout_amount_invalid":    "Payout amount must be positive",
		"error.payout_insufficient":      "Insufficient available balance",
		"error.payout_state_invalid":     "The payout request can no longer be changed",
		"error.payout_conflict":          "Balance changed, please retry",
		"error.anomaly_not_found":        "Anomaly not found",
		"error.date_range_invalid":       "Invalid date range",
		"error.tour_not_found":           "Tour not found",
		"payment.return.paid":            "Payment successful",
		"payment.return.pending":         "Payment is being confirmed",
		"payment.return.failed":          "Payment failed",
		"payment.return.refunded":        "Payment refunded",
		"payment.return.invalid":         "Invalid payment result",
		"notification.booking_paid":      "Payment received for booking %s",
		"notification.booking_refunded":  "Refund completed for booking %s",
		"notification.payout_paid":       "Your payout #%d has been transferred",
		"notification.payout_rejected":   "Your payout #%d was rejected",
	},
	LocaleViVN: {
		"error.bad_request":              "Yêu cầu không hợp lệ",
		"error.unauthorized":             "Vui lòng đăng nhập",
		"error.forbidden":                "Bạn không có quyền thực hiện thao tác này",
		"error.internal":                 "Lỗi hệ thống, vui lòng thử lại sau",
		"error.not_found":                "Không tìm thấy dữ liệu",
		"error.conflict":                 "Dữ liệu vừa được thay đổi, vui lòng thử lại",
		"error.jwt_secret_missing":       "Chưa cấu hình xác thực",
		"error.auth_header_missing":      "Thiếu header Authorization",
		"error.auth_header_invalid":      "Header Authorization phải là Bearer token",
		"error.token_invalid":            "Token không hợp lệ hoặc đã hết hạn",
		"error.rate_limited":             "Bạn thao tác quá nhanh, vui lòng thử lại sau %d giây",
		"error.rate_limit_unavailable":   "Bộ giới hạn tần suất tạm thời không khả dụng",
		"error.booking_not_found":        "Không tìm thấy đơn đặt tour",
		"error.booking_not_payable":      "Đơn đặt tour không thể thanh toán ở trạng thái hiện tại",
		"error.checkout_in_flight":       "Đơn đặt tour đang có giao dịch thanh toán",
		"error.gateway_invalid":          "Cổng thanh toán không được hỗ trợ",
		"error.gateway_unavailable":      "Cổng thanh toán tạm thời không khả dụng",
		"error.gateway_request_failed":   "Không kết nối được cổng thanh toán",
		"error.gateway_config_invalid":   "Cấu hình cổng thanh toán chưa đầy đủ",
		"error.transaction_not_found":    "Không tìm thấy giao dịch",
		"error.transaction_not_voidable": "Chỉ có thể hủy giao dịch đang xử lý",
		"error.refund_not_found":         "Không tìm thấy yêu cầu hoàn tiền",
		"error.refund_not_allowed":       "Chỉ giao dịch đã thanh toán mới được hoàn tiền",
		"error.refund_amount_invalid":    "Số tiền hoàn không hợp lệ",
		"error.refund_duplicate":         "Giao dịch đã có yêu cầu hoàn tiền đang chờ xử lý",
		"error.refund_state_invalid":     "Yêu cầu hoàn tiền không thể thay đổi",
		"error.payout_not_found":         "Không tìm thấy yêu cầu rút tiền",
		"error.payout_amount_invalid":    "Số tiền rút phải lớn hơn 0",
		"error.payout_insufficient":      "Số dư khả dụng không đủ",
		"error.payout_state_invalid":     "Yêu cầu rút tiền không thể thay đổi",
		"error.payout_conflict":          "Số dư vừa thay đổi, vui lòng thử lại",
		"error.anomaly_not_found":        "Không tìm thấy bản ghi bất thường",
		"error.date_range_invalid":       "Khoảng thời gian không hợp lệ",
		"error.tour_not_found":           "Không tìm thấy tour",
		"payment.return.paid":            "Thanh toán thành công",
		"payment.return.pending":         "Đang xác nhận thanh toán",
		"payment.return.failed":          "Thanh toán thất bại",
		"payment.return.refunded":        "Đã hoàn tiền",
		"payment.return.invalid":         "Kết quả thanh toán không hợp lệ",
		"notification.booking_paid":      "Đã nhận thanh toán cho đơn %s",
		"notification.booking_refunded":  "Đã hoàn tiền cho đơn %s",
		"notification.payout_paid":       "Yêu cầu rút tiền #%d đã được chuyển khoản",
		"notification.payout_rejected":   "Yêu cầu rút tiền #%d bị từ chối",
	},
}
