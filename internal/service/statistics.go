package service

import (
	"context"

	"github.com/iliyamo/book-delivery/internal/model"
)

// ReportStore produces monthly order aggregates.
type ReportStore interface {
	MonthlyReportByUser(ctx context.Context, userID uint64, page model.PageRequest) ([]model.OrderReport, int64, error)
	MonthlyReport(ctx context.Context, page model.PageRequest) ([]model.OrderReport, int64, error)
}

// StatisticsService serves the monthly order reports.
type StatisticsService struct{ reports ReportStore }

func NewStatisticsService(reports ReportStore) *StatisticsService {
	return &StatisticsService{reports: reports}
}

// CustomerStatistics reports one customer's orders per month for ADMIN or
// that customer.
func (s *StatisticsService) CustomerStatistics(ctx context.Context, p model.Principal, customerID uint64, page model.PageRequest) (model.Page[model.OrderReport], error) {
	if err := canAccessCustomer(p, customerID); err != nil {
		return model.Page[model.OrderReport]{}, err
	}
	page = page.Normalize()
	rows, total, err := s.reports.MonthlyReportByUser(ctx, customerID, page)
	if err != nil {
		return model.Page[model.OrderReport]{}, err
	}
	return model.NewPage(rows, page, total), nil
}

// AllStatistics reports all orders per month; ADMIN only.
func (s *StatisticsService) AllStatistics(ctx context.Context, p model.Principal, page model.PageRequest) (model.Page[model.OrderReport], error) {
	if err := requireAdmin(p); err != nil {
		return model.Page[model.OrderReport]{}, err
	}
	page = page.Normalize()
	rows, total, err := s.reports.MonthlyReport(ctx, page)
	if err != nil {
		return model.Page[model.OrderReport]{}, err
	}
	return model.NewPage(rows, page, total), nil
}
