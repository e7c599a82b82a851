package store

import "database/sql"

type DashboardStats struct {
	TotalProducts  int
	TotalOrders    int
	TotalRiders    int
	RidersOnline   int
	OrdersByStatus map[string]int
	Declined       int // ready orders carrying a decline trail
	Active         int // picked_up + in_transit
	Revenue        float64
	AverageRating  float64
}

func (s *Store) GetDashboardStats() (*DashboardStats, error) {
	stats := &DashboardStats{
		OrdersByStatus: make(map[string]int),
	}

	err := s.DB.QueryRow("SELECT COUNT(*) FROM products").Scan(&stats.TotalProducts)
	if err != nil && err != sql.ErrNoRows {
		return nil, err
	}

	err = s.DB.QueryRow("SELECT COUNT(*) FROM orders").Scan(&stats.TotalOrders)
	if err != nil && err != sql.ErrNoRows {
		return nil, err
	}

	err = s.DB.QueryRow("SELECT COUNT(*), COALESCE(SUM(is_online), 0) FROM riders").Scan(&stats.TotalRiders, &stats.RidersOnline)
	if err != nil && err != sql.ErrNoRows {
		return nil, err
	}

	rows, err := s.DB.Query("SELECT status, COUNT(*) FROM orders GROUP BY status")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats.OrdersByStatus[status] = count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	stats.Active = stats.OrdersByStatus["picked_up"] + stats.OrdersByStatus["in_transit"]

	err = s.DB.QueryRow("SELECT COUNT(*) FROM orders WHERE status = 'ready' AND declined_by IS NOT NULL").Scan(&stats.Declined)
	if err != nil && err != sql.ErrNoRows {
		return nil, err
	}

	err = s.DB.QueryRow("SELECT COALESCE(SUM(total), 0) FROM orders WHERE status = 'done'").Scan(&stats.Revenue)
	if err != nil && err != sql.ErrNoRows {
		return nil, err
	}

	err = s.DB.QueryRow("SELECT COALESCE(AVG(rating), 0) FROM feedback").Scan(&stats.AverageRating)
	if err != nil && err != sql.ErrNoRows {
		return nil, err
	}

	return stats, nil
}
