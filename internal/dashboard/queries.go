// Package dashboard serves read-only aggregates to the national
// reporting dashboard. The underlying tables are materialized views
// refreshed outside this service; all queries here are filtered by HFR
// code and date window and grouped by facility.
package dashboard

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Contact relationships the dashboard reports on. Other relationship
// values exist in the views but are out of reporting scope.
var reportedRelationships = []string{"biological_child", "non_biological_child", "sibling"}

// IndexClientRow is one day of index client counts at one facility.
type IndexClientRow struct {
	RegistrationDate      time.Time `json:"registrationDate"`
	TotalCTCClients       int64     `json:"totalCTCClients"`
	TotalUCSClients       int64     `json:"totalUCSClients"`
	TotalReachedClients   int64     `json:"totalReachedClients"`
	TotalUnreachedClients int64     `json:"totalUnreachedClients"`
	TotalElicitations     int64     `json:"totalElicitations"`
}

// ElicitationRow is one elicitation cohort at one facility.
type ElicitationRow struct {
	ElicitationDate   time.Time `json:"elicitationDate"`
	AgeGroup          string    `json:"ageGroup"`
	Relationship      string    `json:"relationship"`
	Sex               string    `json:"sex"`
	TotalElicitations int64     `json:"totalElicitations"`
}

// OutcomeRow is one testing outcome cohort at one facility.
type OutcomeRow struct {
	OutcomeDate  time.Time `json:"outcomeDate"`
	AgeGroup     string    `json:"ageGroup"`
	Relationship string    `json:"relationship"`
	Sex          string    `json:"sex"`
	TestingPoint string    `json:"testingPoint"`
	TestResults  string    `json:"testResults"`
	Count        int64     `json:"count"`
}

// Store runs the dashboard queries against the reporting views.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// CountIndexClients returns index client counts for the given facilities
// and registration date window, grouped by HFR code.
func (s *Store) CountIndexClients(ctx context.Context, locations []string, start, end time.Time) (map[string][]IndexClientRow, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT hfr_code, ucs_registration_date, ctcclients, ucsclients,
		       reachedclients, unreachedclients, totalelicitations
		FROM index_clients_mv
		WHERE hfr_code = ANY($1)
		  AND ucs_registration_date BETWEEN $2 AND $3
		ORDER BY hfr_code, ucs_registration_date`,
		locations, start, end)
	if err != nil {
		return nil, fmt.Errorf("query index clients: %w", err)
	}
	defer rows.Close()

	grouped := make(map[string][]IndexClientRow)
	for rows.Next() {
		var hfr string
		var r IndexClientRow
		if err := rows.Scan(&hfr, &r.RegistrationDate, &r.TotalCTCClients,
			&r.TotalUCSClients, &r.TotalReachedClients,
			&r.TotalUnreachedClients, &r.TotalElicitations); err != nil {
			return nil, fmt.Errorf("scan index client row: %w", err)
		}
		grouped[hfr] = append(grouped[hfr], r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read index client rows: %w", err)
	}
	return grouped, nil
}

// CountElicitations returns elicitation counts for the given facilities
// and date window, restricted to the reported contact relationships and
// grouped by HFR code.
func (s *Store) CountElicitations(ctx context.Context, locations []string, start, end time.Time) (map[string][]ElicitationRow, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT hfr_code, elicitation_date, age_group, relationship, sex,
		       totalelicitations
		FROM elicitations_mv
		WHERE hfr_code = ANY($1)
		  AND relationship = ANY($2)
		  AND elicitation_date BETWEEN $3 AND $4
		ORDER BY hfr_code, elicitation_date`,
		locations, reportedRelationships, start, end)
	if err != nil {
		return nil, fmt.Errorf("query elicitations: %w", err)
	}
	defer rows.Close()

	grouped := make(map[string][]ElicitationRow)
	for rows.Next() {
		var hfr string
		var r ElicitationRow
		if err := rows.Scan(&hfr, &r.ElicitationDate, &r.AgeGroup,
			&r.Relationship, &r.Sex, &r.TotalElicitations); err != nil {
			return nil, fmt.Errorf("scan elicitation row: %w", err)
		}
		grouped[hfr] = append(grouped[hfr], r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read elicitation rows: %w", err)
	}
	return grouped, nil
}

// CountOutcomes returns testing outcome counts for the given facilities
// and date window, restricted to the reported contact relationships and
// grouped by HFR code.
func (s *Store) CountOutcomes(ctx context.Context, locations []string, start, end time.Time) (map[string][]OutcomeRow, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT hfr_code, outcome_date, age_group, relationship, sex,
		       testingpoint, test_results, count
		FROM outcomes_mv
		WHERE hfr_code = ANY($1)
		  AND relationship = ANY($2)
		  AND outcome_date BETWEEN $3 AND $4
		ORDER BY hfr_code, outcome_date`,
		locations, reportedRelationships, start, end)
	if err != nil {
		return nil, fmt.Errorf("query outcomes: %w", err)
	}
	defer rows.Close()

	grouped := make(map[string][]OutcomeRow)
	for rows.Next() {
		var hfr string
		var r OutcomeRow
		if err := rows.Scan(&hfr, &r.OutcomeDate, &r.AgeGroup,
			&r.Relationship, &r.Sex, &r.TestingPoint, &r.TestResults,
			&r.Count); err != nil {
			return nil, fmt.Errorf("scan outcome row: %w", err)
		}
		grouped[hfr] = append(grouped[hfr], r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read outcome rows: %w", err)
	}
	return grouped, nil
}
