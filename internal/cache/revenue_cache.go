package cache

import (
	"context"
	"fmt"
)

const revenueGenerationKey = "revenue:gen"

// RevenueGeneration 当前营收缓存代数，支付或退款落账后递增
func RevenueGeneration(ctx context.Context) (int64, error) {
	return GetInt64(ctx, revenueGenerationKey)
}

// BumpRevenueGeneration 使全部营收报表缓存失效
func BumpRevenueGeneration(ctx context.Context) error {
	_, err := Incr(ctx, revenueGenerationKey)
	return err
}

// RevenueReportKey 营收报表缓存键
func RevenueReportKey(generation int64, scope string) string {
	return fmt.Sprintf("revenue:%d:%s", generation, scope)
}
