package dashboard_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	embeddedpostgres "github.com/fergusstrange/embedded-postgres"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tepihealth/ucsuploader/internal/dashboard"
)

const (
	testPort     = 15434
	testDB       = "dashtest"
	testUser     = "postgres"
	testPassword = "postgres"
)

var (
	testDSN string
	pg      *embeddedpostgres.EmbeddedPostgres
)

func TestMain(m *testing.M) {
	testDSN = fmt.Sprintf("postgresql://%s:%s@localhost:%d/%s?sslmode=disable",
		testUser, testPassword, testPort, testDB)

	pg = embeddedpostgres.NewDatabase(
		embeddedpostgres.DefaultConfig().
			Port(uint32(testPort)).
			Database(testDB).
			Username(testUser).
			Password(testPassword).
			Version(embeddedpostgres.V16).
			StartTimeout(30*time.Second),
	)

	if err := pg.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to start embedded postgres: %v\n", err)
		os.Exit(1)
	}

	code := m.Run()

	if err := pg.Stop(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to stop embedded postgres: %v\n", err)
	}

	os.Exit(code)
}

// setupDB creates the reporting views as plain tables. In production
// they are materialized views refreshed by a separate job.
func setupDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	pool, err := pgxpool.New(ctx, testDSN)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}

	stmts := []string{
		`DROP TABLE IF EXISTS index_clients_mv, elicitations_mv, outcomes_mv`,
		`CREATE TABLE index_clients_mv (
			hfr_code              TEXT NOT NULL,
			ucs_registration_date TIMESTAMPTZ NOT NULL,
			ctcclients            BIGINT NOT NULL,
			ucsclients            BIGINT NOT NULL,
			reachedclients        BIGINT NOT NULL,
			unreachedclients      BIGINT NOT NULL,
			totalelicitations     BIGINT NOT NULL
		)`,
		`CREATE TABLE elicitations_mv (
			hfr_code          TEXT NOT NULL,
			elicitation_date  TIMESTAMPTZ NOT NULL,
			age_group         TEXT NOT NULL,
			relationship      TEXT NOT NULL,
			sex               TEXT NOT NULL,
			totalelicitations BIGINT NOT NULL
		)`,
		`CREATE TABLE outcomes_mv (
			hfr_code     TEXT NOT NULL,
			outcome_date TIMESTAMPTZ NOT NULL,
			age_group    TEXT NOT NULL,
			relationship TEXT NOT NULL,
			sex          TEXT NOT NULL,
			testingpoint TEXT NOT NULL,
			test_results TEXT NOT NULL,
			count        BIGINT NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			pool.Close()
			t.Fatalf("exec %q: %v", stmt, err)
		}
	}

	t.Cleanup(func() { pool.Close() })
	return pool
}

func day(d int) time.Time {
	return time.Date(2024, 6, d, 0, 0, 0, 0, time.UTC)
}

func TestCountIndexClients(t *testing.T) {
	pool := setupDB(t)
	ctx := context.Background()

	_, err := pool.Exec(ctx, `INSERT INTO index_clients_mv VALUES
		('105146-4', $1, 10, 8, 6, 2, 14),
		('105146-4', $2, 4, 3, 2, 1, 5),
		('105147-2', $1, 7, 7, 7, 0, 9),
		('999999-9', $1, 1, 1, 1, 0, 1)`, day(10), day(11))
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	// Outside the date window.
	if _, err := pool.Exec(ctx, `INSERT INTO index_clients_mv VALUES
		('105146-4', $1, 99, 99, 99, 99, 99)`, day(25)); err != nil {
		t.Fatalf("seed: %v", err)
	}

	store := dashboard.NewStore(pool)
	got, err := store.CountIndexClients(ctx,
		[]string{"105146-4", "105147-2"}, day(1), day(20))
	if err != nil {
		t.Fatalf("CountIndexClients: %v", err)
	}

	if len(got) != 2 {
		t.Fatalf("groups: got %d, want 2", len(got))
	}
	if _, ok := got["999999-9"]; ok {
		t.Error("unrequested facility leaked into results")
	}
	rows := got["105146-4"]
	if len(rows) != 2 {
		t.Fatalf("105146-4 rows: got %d, want 2", len(rows))
	}
	if rows[0].TotalCTCClients != 10 || rows[0].TotalUnreachedClients != 2 ||
		rows[0].TotalElicitations != 14 {
		t.Errorf("first row: %+v", rows[0])
	}
	if !rows[0].RegistrationDate.Equal(day(10)) {
		t.Errorf("RegistrationDate: got %v", rows[0].RegistrationDate)
	}
}

func TestCountElicitations_RelationshipFilter(t *testing.T) {
	pool := setupDB(t)
	ctx := context.Background()

	_, err := pool.Exec(ctx, `INSERT INTO elicitations_mv VALUES
		('105146-4', $1, '0-4', 'biological_child', 'Male', 3),
		('105146-4', $1, '5-9', 'sibling', 'Female', 2),
		('105146-4', $1, '25-49', 'sexual_partner', 'Female', 8)`, day(12))
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	store := dashboard.NewStore(pool)
	got, err := store.CountElicitations(ctx, []string{"105146-4"}, day(1), day(20))
	if err != nil {
		t.Fatalf("CountElicitations: %v", err)
	}

	rows := got["105146-4"]
	if len(rows) != 2 {
		t.Fatalf("rows: got %d, want 2 (sexual_partner excluded)", len(rows))
	}
	for _, r := range rows {
		if r.Relationship == "sexual_partner" {
			t.Errorf("unreported relationship leaked: %+v", r)
		}
	}
}

func TestCountOutcomes(t *testing.T) {
	pool := setupDB(t)
	ctx := context.Background()

	_, err := pool.Exec(ctx, `INSERT INTO outcomes_mv VALUES
		('105146-4', $1, '0-4', 'biological_child', 'Male', 'CTC', 'Positive', 2),
		('105146-4', $1, '0-4', 'biological_child', 'Female', 'OPD', 'Negative', 5),
		('105146-4', $1, '25-49', 'sexual_partner', 'Male', 'CTC', 'Positive', 7)`, day(15))
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	store := dashboard.NewStore(pool)
	got, err := store.CountOutcomes(ctx, []string{"105146-4"}, day(1), day(20))
	if err != nil {
		t.Fatalf("CountOutcomes: %v", err)
	}

	rows := got["105146-4"]
	if len(rows) != 2 {
		t.Fatalf("rows: got %d, want 2", len(rows))
	}
	var positive *dashboard.OutcomeRow
	for i := range rows {
		if rows[i].TestResults == "Positive" {
			positive = &rows[i]
		}
	}
	if positive == nil {
		t.Fatal("positive outcome row missing")
	}
	if positive.TestingPoint != "CTC" || positive.Count != 2 || positive.Sex != "Male" {
		t.Errorf("positive row: %+v", positive)
	}
}

func TestCounts_EmptyWindow(t *testing.T) {
	pool := setupDB(t)
	ctx := context.Background()
	store := dashboard.NewStore(pool)

	got, err := store.CountIndexClients(ctx, []string{"105146-4"}, day(1), day(2))
	if err != nil {
		t.Fatalf("CountIndexClients: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected empty result, got %v", got)
	}
}
