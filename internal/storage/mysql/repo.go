package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"stayfinder/internal/domain"
)

// rows per multi-row INSERT
const batchSize = 500

// Repo implements the catalog, inventory and reservation ports on MySQL.
// Reads that tolerate lag go to the replica; reservation work always uses db.
type Repo struct {
	db   *sql.DB
	read *sql.DB
}

func New(db *sql.DB) *Repo { return &Repo{db: db, read: db} }

// WithReplica routes catalog and search reads to a read replica.
func (r *Repo) WithReplica(read *sql.DB) *Repo {
	if read != nil {
		r.read = read
	}
	return r
}

// ---- CatalogReader ----

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCandidate(s rowScanner) (domain.RoomCandidate, error) {
	var c domain.RoomCandidate
	err := s.Scan(
		&c.Room.ID, &c.Room.HotelID, &c.Room.RoomType, &c.Room.BedType, &c.Room.MaxOccupancy, &c.Room.Active,
		&c.Hotel.ID, &c.Hotel.Name, &c.Hotel.City, &c.Hotel.District, &c.Hotel.Address,
		&c.Hotel.HotelTypeID, &c.Hotel.StarRating, &c.Hotel.BusinessOpen, &c.Hotel.Active,
	)
	return c, err
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func (r *Repo) ListCandidateRooms(ctx context.Context, q domain.CandidateQuery) ([]domain.RoomCandidate, error) {
	kw := escapeLike(strings.TrimSpace(q.Keyword))
	rows, err := r.read.QueryContext(ctx, listCandidateRoomsSQL, q.GuestCount, kw, kw, kw)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.RoomCandidate
	for rows.Next() {
		c, err := scanCandidate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *Repo) GetRoomCandidate(ctx context.Context, roomID int64) (domain.RoomCandidate, error) {
	c, err := scanCandidate(r.read.QueryRowContext(ctx, getRoomCandidateSQL, roomID))
	if err != nil {
		if err == sql.ErrNoRows {
			return domain.RoomCandidate{}, domain.ErrNotFound
		}
		return domain.RoomCandidate{}, err
	}
	return c, nil
}

func (r *Repo) HotelFacilities(ctx context.Context, hotelIDs []int64) (map[int64][]int64, error) {
	out := make(map[int64][]int64, len(hotelIDs))
	if len(hotelIDs) == 0 {
		return out, nil
	}
	args := make([]any, len(hotelIDs))
	for i, id := range hotelIDs {
		args[i] = id
	}
	rows, err := r.read.QueryContext(ctx, hotelFacilitiesPrefix+inList(len(hotelIDs)), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var hotelID, facilityID int64
		if err := rows.Scan(&hotelID, &facilityID); err != nil {
			return nil, err
		}
		out[hotelID] = append(out[hotelID], facilityID)
	}
	return out, rows.Err()
}

func (r *Repo) ListOpenHotelIDs(ctx context.Context) ([]int64, error) {
	return r.listIDs(ctx, r.read, listOpenHotelIDsSQL)
}

// HotelRoomIDs reads from the primary so rooms created just before a sync
// are not missed.
func (r *Repo) HotelRoomIDs(ctx context.Context, hotelID int64) ([]int64, error) {
	return r.listIDs(ctx, r.db, listHotelRoomIDsSQL, hotelID)
}

func (r *Repo) listIDs(ctx context.Context, db *sql.DB, query string, args ...any) ([]int64, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// ---- InventoryStore ----

func (r *Repo) LoadCells(ctx context.Context, roomIDs []int64, stay domain.StayWindow) (map[int64][]domain.Cell, error) {
	out := make(map[int64][]domain.Cell, len(roomIDs))
	if len(roomIDs) == 0 {
		return out, nil
	}
	args := make([]any, 0, len(roomIDs)+2)
	args = append(args, domain.DateKey(stay.CheckIn), domain.DateKey(stay.CheckOut))
	for _, id := range roomIDs {
		args = append(args, id)
	}
	rows, err := r.read.QueryContext(ctx, loadCellsPrefix+inList(len(roomIDs))+loadCellsSuffix, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var c domain.Cell
		if err := rows.Scan(&c.Record.ID, &c.Record.RoomID, &c.Record.Date, &c.Record.TotalStock, &c.Record.NightlyPrice, &c.Reserved); err != nil {
			return nil, err
		}
		c.Record.Date = domain.DateOf(c.Record.Date)
		out[c.Record.RoomID] = append(out[c.Record.RoomID], c)
	}
	return out, rows.Err()
}

func (r *Repo) UpsertInventory(ctx context.Context, recs []domain.InventoryRecord) error {
	for start := 0; start < len(recs); start += batchSize {
		batch := recs[start:min(start+batchSize, len(recs))]
		values := make([]string, 0, len(batch))
		args := make([]any, 0, len(batch)*4)
		for _, rec := range batch {
			if rec.TotalStock < 0 {
				return fmt.Errorf("room %d %s: negative stock", rec.RoomID, domain.DateKey(rec.Date))
			}
			values = append(values, "(?,?,?,?)")
			args = append(args,
				rec.RoomID,
				domain.DateKey(rec.Date),
				rec.TotalStock,
				rec.NightlyPrice.StringFixed(2),
			)
		}
		sqlStr := upsertInventoryPrefix + strings.Join(values, ",") + upsertInventoryOnDup
		if _, err := r.db.ExecContext(ctx, sqlStr, args...); err != nil {
			return err
		}
	}
	return nil
}

func (r *Repo) LogMiss(ctx context.Context, hotelID int64, status int, reason string) error {
	_, err := r.db.ExecContext(ctx, insertMissSQL, hotelID, status, reason)
	return err
}

// ---- ReservationStore (read side) ----

func (r *Repo) ListLines(ctx context.Context, bookingID string) ([]domain.ReservationLine, error) {
	rows, err := r.db.QueryContext(ctx, listLinesSQL, bookingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.ReservationLine
	for rows.Next() {
		var (
			l      domain.ReservationLine
			price  decimal.Decimal
			status string
		)
		if err := rows.Scan(&l.BookingID, &l.InventoryID, &l.RoomID, &l.Date, &l.Quantity, &price, &status); err != nil {
			return nil, err
		}
		l.Date = domain.DateOf(l.Date)
		l.LockedPrice = price
		l.Status = domain.LineStatus(status)
		out = append(out, l)
	}
	return out, rows.Err()
}
