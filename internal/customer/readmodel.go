package customer

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// OrderSummary is one recent order embedded in a profile snapshot.
type OrderSummary struct {
	OrderID  string    `json:"order_id"`
	Total    float64   `json:"total"`
	Status   string    `json:"status"`
	PlacedAt time.Time `json:"placed_at"`
}

// SubscriptionSummary describes the customer's active subscription, if any.
type SubscriptionSummary struct {
	Plan     string     `json:"plan"`
	Status   string     `json:"status"`
	RenewsAt *time.Time `json:"renews_at,omitempty"`
}

// Profile is the customer-context snapshot embedded in a session at start
// time. It is fetched once and never refreshed during the session.
type Profile struct {
	CustomerID       string               `json:"customer_id"`
	Name             string               `json:"name"`
	Email            string               `json:"email,omitempty"`
	IsVIP            bool                 `json:"is_vip"`
	LifetimeValue    float64              `json:"lifetime_value"`
	TenureMonths     int                  `json:"tenure_months"`
	PriorEscalations int                  `json:"prior_escalations"`
	RecentOrders     []OrderSummary       `json:"recent_orders,omitempty"`
	Subscription     *SubscriptionSummary `json:"subscription,omitempty"`
}

// ReadModel supplies customer context snapshots. Read-only.
type ReadModel interface {
	Profile(ctx context.Context, companyID, customerID string) (*Profile, error)
}

type pgDB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PGReadModel reads customer/order/subscription rows from Postgres.
type PGReadModel struct {
	db pgDB
}

// NewPGReadModel creates a Postgres-backed read model.
func NewPGReadModel(pool *pgxpool.Pool) *PGReadModel {
	if pool == nil {
		panic("customer: pgx pool required")
	}
	return &PGReadModel{db: pool}
}

// NewPGReadModelWithDB allows injecting a mock database for testing.
func NewPGReadModelWithDB(db pgDB) *PGReadModel {
	return &PGReadModel{db: db}
}

// Profile loads the snapshot for one customer. A customer with no row yields
// a minimal profile rather than an error; session start must not fail on an
// unknown customer.
func (r *PGReadModel) Profile(ctx context.Context, companyID, customerID string) (*Profile, error) {
	p := &Profile{CustomerID: customerID}

	err := r.db.QueryRow(ctx, `
		SELECT name, COALESCE(email, ''), is_vip, lifetime_value, tenure_months, prior_escalations
		FROM customers
		WHERE company_id = $1 AND customer_id = $2
	`, companyID, customerID).Scan(
		&p.Name, &p.Email, &p.IsVIP, &p.LifetimeValue, &p.TenureMonths, &p.PriorEscalations,
	)
	if err == pgx.ErrNoRows {
		return p, nil
	}
	if err != nil {
		return nil, fmt.Errorf("customer: load profile: %w", err)
	}

	rows, err := r.db.Query(ctx, `
		SELECT order_id, total, status, placed_at
		FROM orders
		WHERE company_id = $1 AND customer_id = $2
		ORDER BY placed_at DESC
		LIMIT 5
	`, companyID, customerID)
	if err != nil {
		return nil, fmt.Errorf("customer: load orders: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var o OrderSummary
		if err := rows.Scan(&o.OrderID, &o.Total, &o.Status, &o.PlacedAt); err != nil {
			return nil, fmt.Errorf("customer: scan order: %w", err)
		}
		p.RecentOrders = append(p.RecentOrders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("customer: iterate orders: %w", err)
	}

	var sub SubscriptionSummary
	err = r.db.QueryRow(ctx, `
		SELECT plan, status, renews_at
		FROM subscriptions
		WHERE company_id = $1 AND customer_id = $2 AND status = 'active'
		ORDER BY renews_at DESC NULLS LAST
		LIMIT 1
	`, companyID, customerID).Scan(&sub.Plan, &sub.Status, &sub.RenewsAt)
	if err != nil && err != pgx.ErrNoRows {
		return nil, fmt.Errorf("customer: load subscription: %w", err)
	}
	if err == nil {
		p.Subscription = &sub
	}

	return p, nil
}

// StaticReadModel serves profiles from memory. Used in tests and in
// bootstrap deployments that have no customer database yet.
type StaticReadModel struct {
	profiles map[string]*Profile
}

// NewStaticReadModel creates an in-memory read model.
func NewStaticReadModel() *StaticReadModel {
	return &StaticReadModel{profiles: make(map[string]*Profile)}
}

// Put registers a profile for a company/customer pair.
func (m *StaticReadModel) Put(companyID string, p *Profile) {
	if p == nil {
		return
	}
	m.profiles[companyID+"/"+p.CustomerID] = p
}

// Profile returns the registered profile, or a minimal one when absent.
func (m *StaticReadModel) Profile(_ context.Context, companyID, customerID string) (*Profile, error) {
	if p, ok := m.profiles[companyID+"/"+customerID]; ok {
		cp := *p
		return &cp, nil
	}
	return &Profile{CustomerID: customerID}, nil
}
