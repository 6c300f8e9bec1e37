package model

// UserStats summarizes a user's activity for the dashboard
type UserStats struct {
	UpcomingEvents   int             `json:"upcoming_events"`
	PastEvents       int             `json:"past_events"`
	TicketsPurchased int             `json:"tickets_purchased"`
	ActivityData     []ActivityPoint `json:"activity_data"`
}

// ActivityPoint counts events created on one day (YYYY-MM-DD)
type ActivityPoint struct {
	Date   string `json:"date"`
	Events int    `json:"events"`
}

// AdminStats is the platform overview shown to admins
type AdminStats struct {
	TotalUsers    int             `json:"total_users"`
	TotalEvents   int             `json:"total_events"`
	TotalRevenue  float64         `json:"total_revenue"`
	ActiveUsers   int             `json:"active_users"`
	UserGrowth    float64         `json:"user_growth"`
	EventGrowth   float64         `json:"event_growth"`
	RevenueGrowth float64         `json:"revenue_growth"`
	RevenueData   []RevenuePoint  `json:"revenue_data"`
	CategoryData  []CategoryCount `json:"category_data"`
}

// RevenuePoint is ticket revenue for one day (YYYY-MM-DD)
type RevenuePoint struct {
	Date    string  `json:"date"`
	Revenue float64 `json:"revenue"`
}

// CategoryCount is the number of events in a category
type CategoryCount struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}

// PeriodTotals holds counts for one growth comparison window
type PeriodTotals struct {
	Users   int
	Events  int
	Revenue float64
}

// GrowthPercent returns the percentage change from previous to current,
// rounded to one decimal. Growth from zero is 100% when anything happened.
func GrowthPercent(current, previous float64) float64 {
	if previous == 0 {
		if current == 0 {
			return 0
		}
		return 100
	}
	pct := (current - previous) / previous * 100
	return float64(int64(pct*10+sign(pct)*0.5)) / 10
}

func sign(f float64) float64 {
	if f < 0 {
		return -1
	}
	return 1
}
