package customer

import (
	"context"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPGReadModelFullProfile(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	rm := NewPGReadModelWithDB(mock)
	placed := time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)
	renews := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT name, COALESCE").
		WithArgs("co-1", "cust-1").
		WillReturnRows(pgxmock.NewRows([]string{
			"name", "email", "is_vip", "lifetime_value", "tenure_months", "prior_escalations",
		}).AddRow("Dana Reyes", "dana@example.com", true, 4200.0, 26, 2))

	mock.ExpectQuery("SELECT order_id, total, status, placed_at").
		WithArgs("co-1", "cust-1").
		WillReturnRows(pgxmock.NewRows([]string{"order_id", "total", "status", "placed_at"}).
			AddRow("o-9", 129.99, "delivered", placed).
			AddRow("o-8", 59.00, "refunded", placed.AddDate(0, -1, 0)))

	mock.ExpectQuery("SELECT plan, status, renews_at").
		WithArgs("co-1", "cust-1").
		WillReturnRows(pgxmock.NewRows([]string{"plan", "status", "renews_at"}).
			AddRow("pro", "active", &renews))

	p, err := rm.Profile(context.Background(), "co-1", "cust-1")
	require.NoError(t, err)

	assert.Equal(t, "Dana Reyes", p.Name)
	assert.True(t, p.IsVIP)
	assert.Equal(t, 4200.0, p.LifetimeValue)
	assert.Equal(t, 26, p.TenureMonths)
	assert.Equal(t, 2, p.PriorEscalations)
	require.Len(t, p.RecentOrders, 2)
	assert.Equal(t, "o-9", p.RecentOrders[0].OrderID)
	require.NotNil(t, p.Subscription)
	assert.Equal(t, "pro", p.Subscription.Plan)
	require.NotNil(t, p.Subscription.RenewsAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPGReadModelUnknownCustomer(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	rm := NewPGReadModelWithDB(mock)

	mock.ExpectQuery("SELECT name, COALESCE").
		WithArgs("co-1", "ghost").
		WillReturnRows(pgxmock.NewRows([]string{
			"name", "email", "is_vip", "lifetime_value", "tenure_months", "prior_escalations",
		}))

	p, err := rm.Profile(context.Background(), "co-1", "ghost")
	require.NoError(t, err)
	assert.Equal(t, "ghost", p.CustomerID)
	assert.Empty(t, p.Name)
	assert.Empty(t, p.RecentOrders)
	assert.Nil(t, p.Subscription)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPGReadModelNoSubscription(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	rm := NewPGReadModelWithDB(mock)

	mock.ExpectQuery("SELECT name, COALESCE").
		WithArgs("co-1", "cust-2").
		WillReturnRows(pgxmock.NewRows([]string{
			"name", "email", "is_vip", "lifetime_value", "tenure_months", "prior_escalations",
		}).AddRow("Sam Ortiz", "", false, 80.0, 3, 0))

	mock.ExpectQuery("SELECT order_id, total, status, placed_at").
		WithArgs("co-1", "cust-2").
		WillReturnRows(pgxmock.NewRows([]string{"order_id", "total", "status", "placed_at"}))

	mock.ExpectQuery("SELECT plan, status, renews_at").
		WithArgs("co-1", "cust-2").
		WillReturnRows(pgxmock.NewRows([]string{"plan", "status", "renews_at"}))

	p, err := rm.Profile(context.Background(), "co-1", "cust-2")
	require.NoError(t, err)
	assert.Nil(t, p.Subscription)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStaticReadModel(t *testing.T) {
	rm := NewStaticReadModel()
	rm.Put("co-1", &Profile{CustomerID: "cust-1", Name: "Dana", IsVIP: true})

	p, err := rm.Profile(context.Background(), "co-1", "cust-1")
	require.NoError(t, err)
	assert.Equal(t, "Dana", p.Name)

	// Mutating the returned copy does not affect the stored profile.
	p.Name = "Changed"
	again, err := rm.Profile(context.Background(), "co-1", "cust-1")
	require.NoError(t, err)
	assert.Equal(t, "Dana", again.Name)

	// Unknown customers get a minimal profile, scoped per company.
	other, err := rm.Profile(context.Background(), "co-2", "cust-1")
	require.NoError(t, err)
	assert.Empty(t, other.Name)
	assert.Equal(t, "cust-1", other.CustomerID)
}
