package validation

import (
	"strings"
	"sync"

	"github.com/tourbook-next/internal/constants"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var (
	registerOnce sync.Once
	registerErr  error
)

// Register 向 gin 绑定引擎注册业务校验标签，可重复调用
func Register() error {
	registerOnce.Do(func() {
		engine, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		if err := engine.RegisterValidation("gateway", validateGateway); err != nil {
			registerErr = err
			return
		}
		registerErr = engine.RegisterValidation("vnd_amount", validateVNDAmount)
	})
	return registerErr
}

// validateGateway 仅接受已接入的支付网关
func validateGateway(fl validator.FieldLevel) bool {
	switch strings.ToLower(strings.TrimSpace(fl.Field().String())) {
	case constants.GatewayMomo, constants.GatewayVnpay:
		return true
	}
	return false
}

// validateVNDAmount 越南盾没有辅币单位：必须为正整数
func validateVNDAmount(fl validator.FieldLevel) bool {
	amount, ok := ParseVNDAmount(fl.Field().String())
	return ok && amount.IsPositive()
}

// ParseVNDAmount 解析金额字符串，允许千分位逗号
func ParseVNDAmount(raw string) (decimal.Decimal, bool) {
	raw = strings.ReplaceAll(strings.TrimSpace(raw), ",", "")
	if raw == "" {
		return decimal.Zero, false
	}
	amount, err := decimal.NewFromString(raw)
	if err != nil || !amount.Equal(amount.Truncate(0)) {
		return decimal.Zero, false
	}
	return amount, true
}
