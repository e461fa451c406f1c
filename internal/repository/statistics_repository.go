package repository

import (
	"context"
	"strings"
	"time"

	"github.com/iliyamo/book-delivery/internal/model"
)

const reportSelect = `SELECT YEAR(o.created_at) AS y, MONTH(o.created_at) AS m,
	COUNT(DISTINCT o.id), COALESCE(SUM(oi.quantity), 0), COALESCE(SUM(oi.price * oi.quantity), 0)
	FROM orders o JOIN order_items oi ON oi.order_id = o.id`

// MonthlyReportByUser aggregates one user's orders per calendar month.
func (r *OrderRepo) MonthlyReportByUser(ctx context.Context, userID uint64, page model.PageRequest) ([]model.OrderReport, int64, error) {
	return r.monthlyReport(ctx, ` WHERE o.user_id = ?`, []any{userID}, page)
}

// MonthlyReport aggregates all orders per calendar month.
func (r *OrderRepo) MonthlyReport(ctx context.Context, page model.PageRequest) ([]model.OrderReport, int64, error) {
	return r.monthlyReport(ctx, ``, nil, page)
}

func (r *OrderRepo) monthlyReport(ctx context.Context, where string, args []any, page model.PageRequest) ([]model.OrderReport, int64, error) {
	var total int64
	countQ := `SELECT COUNT(*) FROM (SELECT YEAR(o.created_at), MONTH(o.created_at) FROM orders o` +
		where + ` GROUP BY YEAR(o.created_at), MONTH(o.created_at)) t`
	if err := r.db.QueryRowContext(ctx, countQ, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	q := reportSelect + where + ` GROUP BY y, m ORDER BY y DESC, m DESC LIMIT ? OFFSET ?`
	rows, err := r.db.QueryContext(ctx, q, append(append([]any{}, args...), page.Size, page.Offset())...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []model.OrderReport
	for rows.Next() {
		var (
			rep   model.OrderReport
			month int
		)
		if err := rows.Scan(&rep.Year, &month, &rep.TotalOrderCount, &rep.TotalBookCount, &rep.TotalPrice); err != nil {
			return nil, 0, err
		}
		rep.Month = strings.ToUpper(time.Month(month).String())
		out = append(out, rep)
	}
	return out, total, rows.Err()
}
