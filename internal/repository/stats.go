package repository

import (
	"context"
	"time"

	"github.com/forgo/marquee/api/internal/database"
	"github.com/forgo/marquee/api/internal/model"
)

// paidStatuses are the ticket statuses that count towards revenue
var paidStatuses = []string{string(model.TicketStatusValid), string(model.TicketStatusUsed)}

// StatsRepository runs dashboard aggregations inside the database
type StatsRepository struct {
	db database.Database
}

// NewStatsRepository creates a new stats repository
func NewStatsRepository(db database.Database) *StatsRepository {
	return &StatsRepository{db: db}
}

// UserStats counts the user's organized events around now, their purchased
// tickets and the events they created per day since the given time.
func (r *StatsRepository) UserStats(ctx context.Context, userID string, now, since time.Time) (*model.UserStats, error) {
	query := `
		SELECT count() AS count FROM event WHERE organizer = type::record($user) AND date > <datetime>$now GROUP ALL;
		SELECT count() AS count FROM event WHERE organizer = type::record($user) AND date <= <datetime>$now GROUP ALL;
		SELECT count() AS count FROM ticket WHERE user = type::record($user) GROUP ALL;
		SELECT time::format(created_on, "%Y-%m-%d") AS day, count() AS events
			FROM event
			WHERE organizer = type::record($user) AND created_on >= <datetime>$since
			GROUP BY day ORDER BY day ASC;
	`
	vars := map[string]interface{}{
		"user":  userID,
		"now":   rfc3339(now),
		"since": rfc3339(since),
	}

	result, err := r.db.Query(ctx, query, vars)
	if err != nil {
		return nil, err
	}

	stats := &model.UserStats{
		UpcomingEvents:   countAt(result, 0),
		PastEvents:       countAt(result, 1),
		TicketsPurchased: countAt(result, 2),
		ActivityData:     []model.ActivityPoint{},
	}
	for _, row := range resultRecords(result, 3) {
		stats.ActivityData = append(stats.ActivityData, model.ActivityPoint{
			Date:   getString(row, "day"),
			Events: getInt(row, "events"),
		})
	}
	return stats, nil
}

// AdminStats returns platform totals plus the totals of the current window
// [since, now) and the previous window [prevSince, since), which the caller
// turns into growth percentages. Revenue excludes cancelled and refunded tickets.
func (r *StatsRepository) AdminStats(ctx context.Context, since, prevSince time.Time) (*model.AdminStats, model.PeriodTotals, model.PeriodTotals, error) {
	query := `
		SELECT count() AS count FROM user GROUP ALL;
		SELECT count() AS count FROM event GROUP ALL;
		SELECT math::sum(tier.price) AS total FROM ticket WHERE status IN $paid GROUP ALL;
		SELECT count() AS count FROM user WHERE last_active >= <datetime>$since GROUP ALL;
		SELECT count() AS count FROM user WHERE created_on >= <datetime>$since GROUP ALL;
		SELECT count() AS count FROM user WHERE created_on >= <datetime>$prev AND created_on < <datetime>$since GROUP ALL;
		SELECT count() AS count FROM event WHERE created_on >= <datetime>$since GROUP ALL;
		SELECT count() AS count FROM event WHERE created_on >= <datetime>$prev AND created_on < <datetime>$since GROUP ALL;
		SELECT math::sum(tier.price) AS total FROM ticket
			WHERE status IN $paid AND purchase_date >= <datetime>$since GROUP ALL;
		SELECT math::sum(tier.price) AS total FROM ticket
			WHERE status IN $paid AND purchase_date >= <datetime>$prev AND purchase_date < <datetime>$since GROUP ALL;
		SELECT time::format(purchase_date, "%Y-%m-%d") AS day, math::sum(tier.price) AS revenue
			FROM ticket
			WHERE status IN $paid AND purchase_date >= <datetime>$since
			GROUP BY day ORDER BY day ASC;
		SELECT category, count() AS value FROM event GROUP BY category ORDER BY category ASC;
	`
	vars := map[string]interface{}{
		"paid":  paidStatuses,
		"since": rfc3339(since),
		"prev":  rfc3339(prevSince),
	}

	result, err := r.db.Query(ctx, query, vars)
	if err != nil {
		return nil, model.PeriodTotals{}, model.PeriodTotals{}, err
	}

	stats := &model.AdminStats{
		TotalUsers:   countAt(result, 0),
		TotalEvents:  countAt(result, 1),
		TotalRevenue: sumAt(result, 2),
		ActiveUsers:  countAt(result, 3),
		RevenueData:  []model.RevenuePoint{},
		CategoryData: []model.CategoryCount{},
	}
	current := model.PeriodTotals{
		Users:   countAt(result, 4),
		Events:  countAt(result, 6),
		Revenue: sumAt(result, 8),
	}
	previous := model.PeriodTotals{
		Users:   countAt(result, 5),
		Events:  countAt(result, 7),
		Revenue: sumAt(result, 9),
	}

	for _, row := range resultRecords(result, 10) {
		stats.RevenueData = append(stats.RevenueData, model.RevenuePoint{
			Date:    getString(row, "day"),
			Revenue: getFloat(row, "revenue"),
		})
	}
	for _, row := range resultRecords(result, 11) {
		stats.CategoryData = append(stats.CategoryData, model.CategoryCount{
			Name:  getString(row, "category"),
			Value: getInt(row, "value"),
		})
	}

	return stats, current, previous, nil
}

// countAt reads the count of a GROUP ALL statement; no rows means zero
func countAt(results []interface{}, idx int) int {
	rows := resultRecords(results, idx)
	if len(rows) == 0 {
		return 0
	}
	return getInt(rows[0], "count")
}

// sumAt reads the total of a GROUP ALL math::sum statement
func sumAt(results []interface{}, idx int) float64 {
	rows := resultRecords(results, idx)
	if len(rows) == 0 {
		return 0
	}
	return getFloat(rows[0], "total")
}
