package sqlite

import (
	"context"
	"testing"

	"github.com/hupe1980/tunedesk/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	ctx := context.Background()
	require.NoError(t, s.Bootstrap(ctx))
	require.NoError(t, s.SeedDemo(ctx))

	return s
}

func TestTracksByGenre(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rock, err := s.TracksByGenre(ctx, "Rock")
	require.NoError(t, err)
	require.Len(t, rock, 5, "catalog lookups are capped")

	for i := 1; i < len(rock); i++ {
		assert.Less(t, rock[i-1].ID, rock[i].ID, "results ordered by track ID")
	}
	assert.Equal(t, "For Those About To Rock (We Salute You)", rock[0].Name)

	// repeated lookups return the same rows
	again, err := s.TracksByGenre(ctx, "Rock")
	require.NoError(t, err)
	assert.Equal(t, rock, again)
}

func TestTracksByGenre_UnknownGenre(t *testing.T) {
	s := newTestStore(t)

	tracks, err := s.TracksByGenre(context.Background(), "Polka")
	require.NoError(t, err, "unknown genre is not an error")
	assert.Empty(t, tracks)
}

func TestQuery(t *testing.T) {
	s := newTestStore(t)

	rs, err := s.Query(context.Background(), "SELECT COUNT(*) AS n FROM Invoice WHERE CustomerId = 12")
	require.NoError(t, err)
	require.Equal(t, []string{"n"}, rs.Columns)
	require.Len(t, rs.Rows, 1)
	assert.EqualValues(t, 7, rs.Rows[0][0])
}

func TestQuery_TextValues(t *testing.T) {
	s := newTestStore(t)

	rs, err := s.Query(context.Background(), "SELECT FirstName, LastName FROM Customer WHERE CustomerId = 12")
	require.NoError(t, err)
	require.Len(t, rs.Rows, 1)
	assert.Equal(t, "Roberto", rs.Rows[0][0], "text columns decode as string, not []byte")
	assert.Equal(t, "Almeida", rs.Rows[0][1])
}

func TestCreateOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	cart := []store.LineItem{
		{TrackID: 1, UnitPrice: 0.99, Quantity: 2},
		{TrackID: 14, UnitPrice: 0.99, Quantity: 1},
	}

	order, err := s.CreateOrder(ctx, 12, cart)
	require.NoError(t, err)
	assert.Positive(t, order.InvoiceID)
	assert.Equal(t, 12, order.CustomerID)
	assert.InDelta(t, 2.97, order.Total, 1e-9)

	var total float64
	require.NoError(t, s.DB().QueryRow("SELECT Total FROM Invoice WHERE InvoiceId = ?", order.InvoiceID).Scan(&total))
	assert.InDelta(t, 2.97, total, 1e-9)

	var lines int
	require.NoError(t, s.DB().QueryRow("SELECT COUNT(*) FROM InvoiceLine WHERE InvoiceId = ?", order.InvoiceID).Scan(&lines))
	assert.Equal(t, 2, lines)
}

func TestCreateOrder_Validation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.CreateOrder(ctx, 12, nil)
	assert.ErrorIs(t, err, store.ErrEmptyCart)

	_, err = s.CreateOrder(ctx, 12, []store.LineItem{{TrackID: 1, UnitPrice: 0.99, Quantity: 0}})
	assert.ErrorIs(t, err, store.ErrInvalidQuantity)

	_, err = s.CreateOrder(ctx, 12, []store.LineItem{{TrackID: 1, UnitPrice: -0.5, Quantity: 1}})
	assert.ErrorIs(t, err, store.ErrInvalidUnitPrice)

	_, err = s.CreateOrder(ctx, 9999, []store.LineItem{{TrackID: 1, UnitPrice: 0.99, Quantity: 1}})
	assert.ErrorIs(t, err, store.ErrCustomerNotFound)
}

func TestCreateOrder_AtomicRollback(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	var before int
	require.NoError(t, s.DB().QueryRow("SELECT COUNT(*) FROM Invoice").Scan(&before))

	// second line violates the Track foreign key, the whole order must roll back
	cart := []store.LineItem{
		{TrackID: 1, UnitPrice: 0.99, Quantity: 1},
		{TrackID: 424242, UnitPrice: 0.99, Quantity: 1},
	}

	_, err := s.CreateOrder(ctx, 12, cart)
	require.Error(t, err)

	var after int
	require.NoError(t, s.DB().QueryRow("SELECT COUNT(*) FROM Invoice").Scan(&after))
	assert.Equal(t, before, after, "failed order must not leave a partial invoice")
}
