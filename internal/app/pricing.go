package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"stayfinder/internal/domain"
)

// rooms per LoadCells call in AggregateAll
const priceChunk = 200

type PriceAggregator struct {
	inventory domain.InventoryStore
	workers   int
}

func NewPriceAggregator(inv domain.InventoryStore, workers int) *PriceAggregator {
	if workers <= 0 {
		workers = 4
	}
	return &PriceAggregator{inventory: inv, workers: workers}
}

// Aggregate prices one room for the stay.
func (a *PriceAggregator) Aggregate(ctx context.Context, roomID int64, stay domain.StayWindow) (domain.Quote, error) {
	if stay.Nights() <= 0 {
		return domain.Quote{}, domain.NewValidationError("night", "stay must cover at least one night")
	}
	cells, err := a.inventory.LoadCells(ctx, []int64{roomID}, stay)
	if err != nil {
		return domain.Quote{}, fmt.Errorf("load inventory cells: %w", err)
	}
	return QuoteFromCells(roomID, stay, cells[roomID])
}

// AggregateAll prices many rooms, loading their cells in parallel chunks.
// Rooms with incomplete inventory are left out of the result.
func (a *PriceAggregator) AggregateAll(ctx context.Context, roomIDs []int64, stay domain.StayWindow) (map[int64]domain.Quote, error) {
	out := make(map[int64]domain.Quote, len(roomIDs))
	if len(roomIDs) == 0 {
		return out, nil
	}
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.workers)

	for start := 0; start < len(roomIDs); start += priceChunk {
		end := min(start+priceChunk, len(roomIDs))
		chunk := roomIDs[start:end]
		g.Go(func() error {
			cells, err := a.inventory.LoadCells(gctx, chunk, stay)
			if err != nil {
				return fmt.Errorf("load inventory cells: %w", err)
			}
			for _, id := range chunk {
				q, err := QuoteFromCells(id, stay, cells[id])
				if errors.Is(err, domain.ErrIncompleteInventory) {
					log.Debug().Int64("room_id", id).Err(err).Msg("dropping room with incomplete inventory")
					continue
				}
				if err != nil {
					return err
				}
				mu.Lock()
				out[id] = q
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// QuoteFromCells sums nightly prices over the stay and takes the minimum
// remaining. It fails with *domain.IncompleteInventoryError when a night has
// no record, matching Qualifies.
func QuoteFromCells(roomID int64, stay domain.StayWindow, cells []domain.Cell) (domain.Quote, error) {
	byDate := domain.CellsByDate(cells)
	var (
		total   = decimal.Zero
		minLeft = -1
		missing []time.Time
	)
	for _, d := range stay.Dates() {
		c, ok := byDate[domain.DateKey(d)]
		if !ok {
			missing = append(missing, d)
			continue
		}
		total = total.Add(c.Record.NightlyPrice)
		if r := c.Remaining(); minLeft < 0 || r < minLeft {
			minLeft = r
		}
	}
	if len(missing) > 0 {
		return domain.Quote{}, &domain.IncompleteInventoryError{RoomID: roomID, MissingDates: missing}
	}
	return domain.Quote{
		RoomID:              roomID,
		PerStayPrice:        total,
		MinNightlyRemaining: minLeft,
		Nights:              stay.Nights(),
	}, nil
}
