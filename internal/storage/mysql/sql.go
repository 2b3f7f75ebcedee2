package mysql

import "strings"

// -----------------------------------------------------------------------------
// CATALOG (read only)
// -----------------------------------------------------------------------------

const candidateColumns = `
  r.id, r.hotel_id, r.room_type, r.bed_type, r.max_occupancy, r.active,
  h.id, h.name, h.city, h.district, h.address, h.hotel_type_id, h.star_rating,
  h.business_open, h.active
FROM rooms r
JOIN hotels h ON h.id = r.hotel_id
`

// Keyword matches city or district as a substring; '' matches everything.
const listCandidateRoomsSQL = `
SELECT` + candidateColumns + `
WHERE r.active = 1
  AND h.active = 1
  AND h.business_open = 1
  AND r.max_occupancy >= ?
  AND (? = '' OR h.city LIKE CONCAT('%', ?, '%') OR h.district LIKE CONCAT('%', ?, '%'))
ORDER BY r.id
`

const getRoomCandidateSQL = `
SELECT` + candidateColumns + `
WHERE r.id = ?
`

const hotelFacilitiesPrefix = `SELECT hotel_id, facility_id FROM hotel_facilities WHERE hotel_id IN `

const listOpenHotelIDsSQL = `
SELECT id FROM hotels WHERE active = 1 AND business_open = 1 ORDER BY id
`

const listHotelRoomIDsSQL = `SELECT id FROM rooms WHERE hotel_id = ? ORDER BY id`

// -----------------------------------------------------------------------------
// INVENTORY
// -----------------------------------------------------------------------------

// Remaining is derived here from ACTIVE lines; the LEFT JOIN keeps unbooked nights.
const loadCellsPrefix = `
SELECT i.id, i.room_id, i.stay_date, i.total_stock, i.nightly_price,
       COALESCE(SUM(b.quantity), 0) AS reserved
FROM room_inventory i
LEFT JOIN booking_inventory b
  ON b.inventory_id = i.id AND b.status = 'ACTIVE'
WHERE i.stay_date >= ? AND i.stay_date < ?
  AND i.room_id IN `

const loadCellsSuffix = `
GROUP BY i.id, i.room_id, i.stay_date, i.total_stock, i.nightly_price
ORDER BY i.room_id, i.stay_date
`

const upsertInventoryPrefix = "INSERT INTO room_inventory\n  (room_id, stay_date, total_stock, nightly_price)\nVALUES "

// Record ids survive an upsert so existing reservation lines keep pointing at them.
const upsertInventoryOnDup = " ON DUPLICATE KEY UPDATE\n" +
	"  total_stock   = VALUES(total_stock),\n" +
	"  nightly_price = VALUES(nightly_price),\n" +
	"  updated_at    = CURRENT_TIMESTAMP\n"

const insertMissSQL = `
INSERT INTO sync_misses (hotel_id, http_status, reason)
VALUES (?, ?, ?)
ON DUPLICATE KEY UPDATE
  http_status = VALUES(http_status),
  reason      = VALUES(reason),
  seen_at     = CURRENT_TIMESTAMP
`

// -----------------------------------------------------------------------------
// RESERVATIONS
// -----------------------------------------------------------------------------

const lockCellSQL = `
SELECT id, room_id, stay_date, total_stock, nightly_price
FROM room_inventory
WHERE room_id = ? AND stay_date = ?
FOR UPDATE
`

const reservedQtySQL = `
SELECT COALESCE(SUM(quantity), 0)
FROM booking_inventory
WHERE inventory_id = ? AND status = 'ACTIVE'
`

const bookingExistsSQL = `SELECT EXISTS(SELECT 1 FROM booking_inventory WHERE booking_id = ?)`

const insertLinesPrefix = "INSERT INTO booking_inventory\n  (booking_id, inventory_id, quantity, locked_price, status)\nVALUES "

const releaseSQL = `
UPDATE booking_inventory
SET status = 'CANCELLED', cancelled_at = CURRENT_TIMESTAMP
WHERE booking_id = ? AND status = 'ACTIVE'
`

const listLinesSQL = `
SELECT b.booking_id, b.inventory_id, i.room_id, i.stay_date, b.quantity, b.locked_price, b.status
FROM booking_inventory b
JOIN room_inventory i ON i.id = b.inventory_id
WHERE b.booking_id = ?
ORDER BY i.room_id, i.stay_date
`

// inList renders "(?,?,?)" for n placeholders.
func inList(n int) string {
	return "(" + strings.TrimSuffix(strings.Repeat("?,", n), ",") + ")"
}
