//go:build integration || !unit

package mysql_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"github.com/shopspring/decimal"

	"stayfinder/internal/app"
	"stayfinder/internal/domain"
	mysqlrepo "stayfinder/internal/storage/mysql"
)

// ---------- small helpers ----------

func migrationsDir(t *testing.T) string {
	t.Helper()
	if v := os.Getenv("MIGRATIONS_DIR"); v != "" {
		return v
	}
	// package dir is internal/storage/mysql
	return filepath.Join("..", "..", "..", "migrations")
}

func applyMigrations(t *testing.T, db *sql.DB) {
	t.Helper()
	dir := migrationsDir(t)

	st, err := os.Stat(dir)
	if err != nil || !st.IsDir() {
		t.Fatalf("MIGRATIONS_DIR=%s is not a directory or missing", dir)
	}
	ents, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read migrations dir: %v", err)
	}
	var files []string
	for _, e := range ents {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".sql" {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	if len(files) == 0 {
		t.Fatalf("no .sql files in %s", dir)
	}
	sort.Strings(files)

	for _, f := range files {
		sqlBytes, err := os.ReadFile(f)
		if err != nil {
			t.Fatalf("read %s: %v", f, err)
		}
		if _, err := db.Exec(string(sqlBytes)); err != nil {
			t.Fatalf("exec %s: %v", f, err)
		}
	}
}

// startMySQL runs an isolated MySQL and returns a migrated connection.
func startMySQL(t *testing.T) *sql.DB {
	t.Helper()
	pool, err := dockertest.NewPool("")
	if err != nil {
		t.Fatalf("dockertest: %v", err)
	}
	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "mysql",
		Tag:        "8.0.36",
		Env: []string{
			"MYSQL_ROOT_PASSWORD=root",
			"MYSQL_DATABASE=stayfinder",
		},
	}, func(hc *docker.HostConfig) {
		hc.AutoRemove = true
		hc.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		t.Fatalf("run mysql: %v", err)
	}
	t.Cleanup(func() { _ = pool.Purge(resource) })

	dsn := fmt.Sprintf("root:root@tcp(127.0.0.1:%s)/stayfinder?parseTime=true&multiStatements=true&charset=utf8mb4,utf8&loc=UTC",
		resource.GetPort("3306/tcp"))

	var db *sql.DB
	if err := pool.Retry(func() error {
		var e error
		db, e = sql.Open("mysql", dsn)
		if e != nil {
			return e
		}
		return db.Ping()
	}); err != nil {
		t.Fatalf("connect mysql: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	db.SetMaxOpenConns(20)

	applyMigrations(t, db)
	return db
}

func mustExec(t *testing.T, db *sql.DB, q string, args ...any) {
	t.Helper()
	if _, err := db.Exec(q, args...); err != nil {
		t.Fatalf("exec %q: %v", q, err)
	}
}

func day(d int) time.Time { return time.Date(2026, 11, d, 0, 0, 0, 0, time.UTC) }

// seed: Taipei hotel 1 (open) with room 10 (stock 3) and room 11 (stock 1),
// Taipei hotel 2 (closed) with room 20.
func seed(t *testing.T, db *sql.DB, repo *mysqlrepo.Repo) {
	t.Helper()
	mustExec(t, db, `INSERT INTO hotels (id, name, city, district, hotel_type_id, star_rating, business_open, active) VALUES
		(1, 'Da''an Inn', 'Taipei', 'Da''an', 1, 4, 1, 1),
		(2, 'Xinyi Tower', 'Taipei', 'Xinyi', 2, 5, 0, 1)`)
	mustExec(t, db, `INSERT INTO hotel_facilities (hotel_id, facility_id) VALUES (1,1),(1,2),(1,3),(2,1)`)
	mustExec(t, db, `INSERT INTO rooms (id, hotel_id, room_type, bed_type, max_occupancy, active) VALUES
		(10, 1, 'Double', 'Queen', 2, 1),
		(11, 1, 'Family', 'Twin', 4, 1),
		(20, 2, 'Suite', 'King', 2, 1)`)

	p := decimal.RequireFromString
	recs := []domain.InventoryRecord{
		{RoomID: 10, Date: day(1), TotalStock: 3, NightlyPrice: p("100")},
		{RoomID: 10, Date: day(2), TotalStock: 3, NightlyPrice: p("150")},
		{RoomID: 11, Date: day(1), TotalStock: 1, NightlyPrice: p("200")},
		{RoomID: 11, Date: day(2), TotalStock: 1, NightlyPrice: p("200")},
		{RoomID: 20, Date: day(1), TotalStock: 5, NightlyPrice: p("300")},
		{RoomID: 20, Date: day(2), TotalStock: 5, NightlyPrice: p("300")},
	}
	if err := repo.UpsertInventory(context.Background(), recs); err != nil {
		t.Fatalf("UpsertInventory: %v", err)
	}
}

// ---------- the tests ----------

func TestRepo_MySQL_SearchAndReserve(t *testing.T) {
	db := startMySQL(t)
	repo := mysqlrepo.New(db)
	seed(t, db, repo)
	ctx := context.Background()

	cands, err := repo.ListCandidateRooms(ctx, domain.CandidateQuery{Keyword: "taipei", GuestCount: 2})
	if err != nil {
		t.Fatalf("ListCandidateRooms: %v", err)
	}
	if len(cands) != 2 || cands[0].Room.ID != 10 || cands[1].Room.ID != 11 {
		t.Fatalf("candidates: %+v", cands)
	}

	svc := app.NewSearchService(repo, repo, nil, 0, 2)
	req := domain.NewSearchRequest()
	req.Keyword = "Taipei"
	req.GuestNumber = 2
	req.SortBy = domain.SortByPrice
	req.Facilities = []int64{1, 2}
	req.SetCheckIn(day(1))
	req.SetCheckOut(day(3))
	page, err := svc.Search(ctx, req)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(page.Items) != 2 || !page.Items[0].PerStayPrice.Equal(decimal.NewFromInt(250)) {
		t.Fatalf("search page: %+v", page)
	}

	rc := app.NewReservationCoordinator(repo, nil, nil, app.ReservationOptions{Retries: 5, Timeout: 10 * time.Second})
	items := []domain.LineItem{{RoomID: 10, Date: day(1), Quantity: 3}, {RoomID: 10, Date: day(2), Quantity: 3}}
	if _, err := rc.Reserve(ctx, "b-1", items); err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if _, err := rc.Reserve(ctx, "b-1", items); !errors.Is(err, domain.ErrBookingExists) {
		t.Fatalf("duplicate: want booking exists, got %v", err)
	}

	cells, err := repo.LoadCells(ctx, []int64{10}, domain.StayWindow{CheckIn: day(1), CheckOut: day(3)})
	if err != nil {
		t.Fatalf("LoadCells: %v", err)
	}
	for _, c := range cells[10] {
		if c.Remaining() != 0 {
			t.Fatalf("after reserve %s remaining %d", domain.DateKey(c.Record.Date), c.Remaining())
		}
	}

	if n, err := rc.Release(ctx, "b-1"); err != nil || n != 2 {
		t.Fatalf("Release: n=%d err=%v", n, err)
	}
	if n, err := rc.Release(ctx, "b-1"); err != nil || n != 0 {
		t.Fatalf("second Release: n=%d err=%v", n, err)
	}
	cells, _ = repo.LoadCells(ctx, []int64{10}, domain.StayWindow{CheckIn: day(1), CheckOut: day(3)})
	for _, c := range cells[10] {
		if c.Remaining() != 3 {
			t.Fatalf("after release %s remaining %d", domain.DateKey(c.Record.Date), c.Remaining())
		}
	}

	lines, err := repo.ListLines(ctx, "b-1")
	if err != nil || len(lines) != 2 || lines[0].Status != domain.LineCancelled || !lines[0].LockedPrice.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("ListLines: %+v err=%v", lines, err)
	}
}

func TestRepo_MySQL_LastUnitConcurrency(t *testing.T) {
	db := startMySQL(t)
	repo := mysqlrepo.New(db)
	seed(t, db, repo)

	rc := app.NewReservationCoordinator(repo, nil, nil, app.ReservationOptions{Retries: 5, Timeout: 20 * time.Second})
	items := []domain.LineItem{{RoomID: 11, Date: day(2), Quantity: 1}, {RoomID: 11, Date: day(1), Quantity: 1}}

	const n = 10
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		ok      int
		short   int
		errs    []error
		release = make(chan struct{})
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-release
			_, err := rc.Reserve(context.Background(), fmt.Sprintf("c-%d", i), items)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, domain.ErrInsufficientInventory):
				short++
			default:
				errs = append(errs, err)
			}
		}(i)
	}
	close(release)
	wg.Wait()

	if len(errs) > 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if ok != 1 || short != n-1 {
		t.Fatalf("ok=%d short=%d", ok, short)
	}

	var active int
	if err := db.QueryRow(`SELECT COALESCE(SUM(quantity),0) FROM booking_inventory WHERE status='ACTIVE'`).Scan(&active); err != nil {
		t.Fatalf("sum: %v", err)
	}
	if active != 2 {
		t.Fatalf("active quantity %d, want 2 (one booking, two nights)", active)
	}
}

func TestRepo_MySQL_UpsertKeepsIDsAndMisses(t *testing.T) {
	db := startMySQL(t)
	repo := mysqlrepo.New(db)
	seed(t, db, repo)
	ctx := context.Background()

	before, _ := repo.LoadCells(ctx, []int64{10}, domain.StayWindow{CheckIn: day(1), CheckOut: day(2)})
	err := repo.UpsertInventory(ctx, []domain.InventoryRecord{{RoomID: 10, Date: day(1), TotalStock: 8, NightlyPrice: decimal.RequireFromString("99.90")}})
	if err != nil {
		t.Fatalf("UpsertInventory: %v", err)
	}
	after, _ := repo.LoadCells(ctx, []int64{10}, domain.StayWindow{CheckIn: day(1), CheckOut: day(2)})
	if before[10][0].Record.ID != after[10][0].Record.ID {
		t.Fatalf("record id changed on upsert")
	}
	if after[10][0].Record.TotalStock != 8 || !after[10][0].Record.NightlyPrice.Equal(decimal.RequireFromString("99.9")) {
		t.Fatalf("upserted record: %+v", after[10][0].Record)
	}

	if err := repo.LogMiss(ctx, 77, 404, "not found"); err != nil {
		t.Fatalf("LogMiss: %v", err)
	}
	if err := repo.LogMiss(ctx, 77, 403, "inactive"); err != nil {
		t.Fatalf("LogMiss again: %v", err)
	}
	var status int
	if err := db.QueryRow(`SELECT http_status FROM sync_misses WHERE hotel_id = 77`).Scan(&status); err != nil || status != 403 {
		t.Fatalf("miss status=%d err=%v", status, err)
	}

	ids, err := repo.ListOpenHotelIDs(ctx)
	if err != nil || len(ids) != 1 || ids[0] != 1 {
		t.Fatalf("open hotels: %v err=%v", ids, err)
	}
	if _, err := repo.GetRoomCandidate(ctx, 999); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("unknown room: %v", err)
	}
}
