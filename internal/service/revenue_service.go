package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/tourbook-next/internal/cache"
	"github.com/tourbook-next/internal/logger"
	"github.com/tourbook-next/internal/models"
	"github.com/tourbook-next/internal/repository"

	"github.com/shopspring/decimal"
)

// RevenueGroupByDate 按出团日期分组
const RevenueGroupByDate = "date"

const revenueDayLayout = "2006-01-02"

// RevenueQuery 营收查询条件，日期为闭区间
type RevenueQuery struct {
	From     *time.Time
	To       *time.Time
	Page     int
	PageSize int
}

// TourRevenueItem 单条线路营收
type TourRevenueItem struct {
	TourID        uint         `json:"tour_id"`
	Title         *string      `json:"title"`
	TotalRevenue  models.Money `json:"total_revenue"`
	BookingsCount int          `json:"bookings_count"`
}

// TourRevenueList 线路营收分页结果
type TourRevenueList struct {
	Items    []TourRevenueItem `json:"items"`
	Total    int64             `json:"total"`
	Page     int               `json:"page"`
	PageSize int               `json:"page_size"`
}

// DateRevenue 按日营收
type DateRevenue struct {
	Date          string       `json:"date"`
	TotalRevenue  models.Money `json:"total_revenue"`
	BookingsCount int          `json:"bookings_count"`
}

// TourRevenueDetail 单线路营收详情
type TourRevenueDetail struct {
	TourID        uint          `json:"tour_id"`
	Title         *string       `json:"title"`
	TotalRevenue  models.Money  `json:"total_revenue"`
	BookingsCount int           `json:"bookings_count"`
	ByDate        []DateRevenue `json:"by_date,omitempty"`
}

type revenueBucket struct {
	total decimal.Decimal
	count int
}

// RevenueService 营收统计（只读）
type RevenueService struct {
	revenueRepo repository.RevenueRepository
	tourRepo    repository.TourRepository
	cacheTTL    time.Duration
}

// NewRevenueService 创建营收服务
func NewRevenueService(revenueRepo repository.RevenueRepository, tourRepo repository.TourRepository, cacheTTLSeconds int) *RevenueService {
	return &RevenueService{
		revenueRepo: revenueRepo,
		tourRepo:    tourRepo,
		cacheTTL:    time.Duration(cacheTTLSeconds) * time.Second,
	}
}

// ListToursRevenue 按线路汇总营收，营收降序、线路 ID 升序
func (s *RevenueService) ListToursRevenue(ctx context.Context, query RevenueQuery) (*TourRevenueList, error) {
	if err := validateRevenueRange(query); err != nil {
		return nil, err
	}
	page, pageSize := repository.NormalizePage(query.Page, query.PageSize)
	scope := fmt.Sprintf("list:%s:%s:%d:%d", dayKey(query.From), dayKey(query.To), page, pageSize)

	var cached TourRevenueList
	if s.readCache(ctx, scope, &cached) {
		return &cached, nil
	}

	records, err := s.revenueRepo.ListPaidRecords(repository.RevenueFilter{From: query.From, To: query.To})
	if err != nil {
		return nil, err
	}
	buckets := make(map[uint]*revenueBucket)
	for _, record := range records {
		bucket, ok := buckets[record.TourID]
		if !ok {
			bucket = &revenueBucket{total: decimal.Zero}
			buckets[record.TourID] = bucket
		}
		bucket.total = bucket.total.Add(record.Amount)
		bucket.count++
	}

	items := make([]TourRevenueItem, 0, len(buckets))
	for tourID, bucket := range buckets {
		items = append(items, TourRevenueItem{
			TourID:        tourID,
			TotalRevenue:  models.NewMoneyFromDecimal(bucket.total),
			BookingsCount: bucket.count,
		})
	}
	sort.Slice(items, func(i, j int) bool {
		if cmp := items[i].TotalRevenue.Decimal.Cmp(items[j].TotalRevenue.Decimal); cmp != 0 {
			return cmp > 0
		}
		return items[i].TourID < items[j].TourID
	})

	total := int64(len(items))
	start := (page - 1) * pageSize
	if start > len(items) {
		start = len(items)
	}
	end := start + pageSize
	if end > len(items) {
		end = len(items)
	}
	pageItems := items[start:end]

	ids := make([]uint, 0, len(pageItems))
	for _, item := range pageItems {
		ids = append(ids, item.TourID)
	}
	titles, err := s.tourRepo.GetTitles(ids)
	if err != nil {
		return nil, err
	}
	for i := range pageItems {
		if title, ok := titles[pageItems[i].TourID]; ok {
			title := title
			pageItems[i].Title = &title
		}
	}

	result := &TourRevenueList{Items: pageItems, Total: total, Page: page, PageSize: pageSize}
	s.writeCache(ctx, scope, result)
	return result, nil
}

// GetTourRevenue 单线路营收，groupBy=date 时按自然日升序分桶
func (s *RevenueService) GetTourRevenue(ctx context.Context, tourID uint, query RevenueQuery, groupBy string) (*TourRevenueDetail, error) {
	if tourID == 0 {
		return nil, ErrValidation
	}
	groupBy = strings.ToLower(strings.TrimSpace(groupBy))
	if groupBy != "" && groupBy != RevenueGroupByDate {
		return nil, fmt.Errorf("%w: unsupported group_by %q", ErrValidation, groupBy)
	}
	if err := validateRevenueRange(query); err != nil {
		return nil, err
	}
	scope := fmt.Sprintf("tour:%d:%s:%s:%s", tourID, dayKey(query.From), dayKey(query.To), groupBy)

	var cached TourRevenueDetail
	if s.readCache(ctx, scope, &cached) {
		return &cached, nil
	}

	records, err := s.revenueRepo.ListPaidRecords(repository.RevenueFilter{TourID: tourID, From: query.From, To: query.To})
	if err != nil {
		return nil, err
	}
	total := decimal.Zero
	days := make(map[string]*revenueBucket)
	for _, record := range records {
		total = total.Add(record.Amount)
		if groupBy != RevenueGroupByDate {
			continue
		}
		key := record.TourDate.Format(revenueDayLayout)
		bucket, ok := days[key]
		if !ok {
			bucket = &revenueBucket{total: decimal.Zero}
			days[key] = bucket
		}
		bucket.total = bucket.total.Add(record.Amount)
		bucket.count++
	}

	detail := &TourRevenueDetail{
		TourID:        tourID,
		TotalRevenue:  models.NewMoneyFromDecimal(total),
		BookingsCount: len(records),
	}
	if groupBy == RevenueGroupByDate {
		detail.ByDate = make([]DateRevenue, 0, len(days))
		for day, bucket := range days {
			detail.ByDate = append(detail.ByDate, DateRevenue{
				Date:          day,
				TotalRevenue:  models.NewMoneyFromDecimal(bucket.total),
				BookingsCount: bucket.count,
			})
		}
		sort.Slice(detail.ByDate, func(i, j int) bool {
			return detail.ByDate[i].Date < detail.ByDate[j].Date
		})
	}

	titles, err := s.tourRepo.GetTitles([]uint{tourID})
	if err != nil {
		return nil, err
	}
	if title, ok := titles[tourID]; ok {
		detail.Title = &title
	}
	s.writeCache(ctx, scope, detail)
	return detail, nil
}

func (s *RevenueService) readCache(ctx context.Context, scope string, dest interface{}) bool {
	if s.cacheTTL <= 0 || !cache.Enabled() {
		return false
	}
	generation, err := cache.RevenueGeneration(ctx)
	if err != nil {
		logger.Warnw("revenue_cache_generation_failed", "error", err)
		return false
	}
	hit, err := cache.GetJSON(ctx, cache.RevenueReportKey(generation, scope), dest)
	if err != nil {
		logger.Warnw("revenue_cache_read_failed", "scope", scope, "error", err)
		return false
	}
	return hit
}

func (s *RevenueService) writeCache(ctx context.Context, scope string, value interface{}) {
	if s.cacheTTL <= 0 || !cache.Enabled() {
		return
	}
	generation, err := cache.RevenueGeneration(ctx)
	if err != nil {
		return
	}
	if err := cache.SetJSON(ctx, cache.RevenueReportKey(generation, scope), value, s.cacheTTL); err != nil {
		logger.Warnw("revenue_cache_write_failed", "scope", scope, "error", err)
	}
}

func validateRevenueRange(query RevenueQuery) error {
	if query.From != nil && query.To != nil && query.From.After(*query.To) {
		return ErrDateRangeInvalid
	}
	return nil
}

func dayKey(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format(revenueDayLayout)
}
