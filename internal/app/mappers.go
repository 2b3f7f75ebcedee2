package app

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"stayfinder/internal/domain"
)

/********** alias registries (single source of truth) **********/

// Calendar payloads from hotel management come in a few historical shapes.
var calendarAliases = map[string][]string{
	"rooms":   {"rooms", "room_types", "inventory", "data.rooms"},
	"room_id": {"room_id", "roomId", "id"},
	"days":    {"days", "calendar", "nights", "dates"},
	"date":    {"date", "day", "stay_date", "stayDate"},
	"stock":   {"total_stock", "totalStock", "stock", "allotment", "quota"},
	"price":   {"nightly_price", "nightlyPrice", "price", "rate", "price.amount", "rate.amount"},
}

/********** tiny helpers **********/

// lookupAny: safe nested lookup with dot paths on maps.
func lookupAny(m map[string]any, path string) any {
	cur := any(m)
	for _, part := range strings.Split(path, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		v, ok := obj[part]
		if !ok {
			return nil
		}
		cur = v
	}
	return cur
}

// firstStr returns the first non-empty string found under the aliases.
func firstStr(m map[string]any, key string) string {
	for _, p := range calendarAliases[key] {
		if s, ok := lookupAny(m, p).(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

// firstInt64: int64 from float64/int/string under the aliases.
func firstInt64(m map[string]any, key string) (int64, bool) {
	for _, p := range calendarAliases[key] {
		switch v := lookupAny(m, p).(type) {
		case float64:
			return int64(v), true
		case int:
			return int64(v), true
		case int64:
			return v, true
		case string:
			if n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
				return n, true
			}
		}
	}
	return 0, false
}

// firstDecimal: money from float64 or string ("1200.50", "1200,50").
func firstDecimal(m map[string]any, key string) (decimal.Decimal, bool) {
	for _, p := range calendarAliases[key] {
		switch v := lookupAny(m, p).(type) {
		case float64:
			return decimal.NewFromFloat(v), true
		case int:
			return decimal.NewFromInt(int64(v)), true
		case string:
			s := strings.TrimSpace(strings.ReplaceAll(v, ",", "."))
			if s == "" {
				continue
			}
			if d, err := decimal.NewFromString(s); err == nil {
				return d, true
			}
		}
	}
	return decimal.Decimal{}, false
}

// firstObjects: []map from the first alias holding a list of objects.
func firstObjects(m map[string]any, key string) []map[string]any {
	for _, p := range calendarAliases[key] {
		raw, ok := lookupAny(m, p).([]any)
		if !ok {
			continue
		}
		out := make([]map[string]any, 0, len(raw))
		for _, it := range raw {
			if obj, ok := it.(map[string]any); ok {
				out = append(out, obj)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return nil
}

/********** calendar mapper **********/

// mapCalendar turns one hotel's calendar payload into inventory records.
// Unusable days and rooms that are not in owned are skipped and reported,
// never guessed.
func mapCalendar(hotelID int64, payload map[string]any, owned map[int64]bool) ([]domain.InventoryRecord, []string) {
	var (
		out     []domain.InventoryRecord
		skipped []string
	)
	for ri, room := range firstObjects(payload, "rooms") {
		roomID, ok := firstInt64(room, "room_id")
		if !ok || roomID <= 0 {
			skipped = append(skipped, fmt.Sprintf("rooms[%d]: no room id", ri))
			continue
		}
		if !owned[roomID] {
			skipped = append(skipped, fmt.Sprintf("rooms[%d]: room %d is not a room of hotel %d", ri, roomID, hotelID))
			continue
		}
		for di, day := range firstObjects(room, "days") {
			where := fmt.Sprintf("room %d days[%d]", roomID, di)
			date, err := domain.ParseDate(firstStr(day, "date"))
			if err != nil {
				skipped = append(skipped, where+": bad date")
				continue
			}
			stock, ok := firstInt64(day, "stock")
			if !ok || stock < 0 {
				skipped = append(skipped, where+": bad stock")
				continue
			}
			price, ok := firstDecimal(day, "price")
			if !ok || price.IsNegative() {
				skipped = append(skipped, where+": bad price")
				continue
			}
			out = append(out, domain.InventoryRecord{
				RoomID:       roomID,
				Date:         date,
				TotalStock:   int(stock),
				NightlyPrice: price.Round(2),
			})
		}
	}
	if len(skipped) > 0 {
		log.Warn().Int64("hotel_id", hotelID).Strs("skipped", skipped).Msg("calendar entries skipped")
	}
	return out, skipped
}
