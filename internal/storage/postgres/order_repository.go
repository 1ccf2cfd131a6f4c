package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
)

const orderColumns = `id, customer_id, partner_id, status, total_amount, redemption_token, version, created_at, updated_at`

type orderRepository struct {
	db *sql.DB
}

// NewOrderRepository создаёт PostgreSQL-реализацию OrderRepository.
func NewOrderRepository(store *Store) domain.OrderRepository {
	return &orderRepository{db: store.DB()}
}

func (r *orderRepository) Create(ctx context.Context, order domain.Order) error {
	ctx, cancel := opContext(ctx)
	defer cancel()

	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO orders (`+orderColumns+`)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		`,
			order.ID, order.CustomerID, order.PartnerID, string(order.Status),
			order.TotalAmount, order.RedemptionToken, order.Version, order.CreatedAt, nullTime(order.UpdatedAt),
		); err != nil {
			return mapWriteErr("insert order", err)
		}

		for _, item := range order.Items {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO order_items (id, order_id, product_id, quantity, price, created_at)
				VALUES ($1,$2,$3,$4,$5,$6)
			`,
				item.ID, order.ID, item.ProductID, item.Quantity, item.Price, item.CreatedAt,
			); err != nil {
				return mapWriteErr("insert order item", err)
			}
		}
		return nil
	})
}

func (r *orderRepository) Get(ctx context.Context, id string) (domain.Order, error) {
	ctx, cancel := opContext(ctx)
	defer cancel()

	order, err := scanOrder(r.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Order{}, domain.ErrOrderNotFound
		}
		return domain.Order{}, fmt.Errorf("select order: %w", err)
	}

	items, err := r.loadItems(ctx, []string{order.ID})
	if err != nil {
		return domain.Order{}, err
	}
	order.Items = items[order.ID]

	return order, nil
}

func (r *orderRepository) ListByCustomer(ctx context.Context, customerID string, limit int) ([]domain.Order, error) {
	return r.list(ctx, "customer_id", customerID, limit)
}

func (r *orderRepository) ListByPartner(ctx context.Context, partnerID string, limit int) ([]domain.Order, error) {
	return r.list(ctx, "partner_id", partnerID, limit)
}

// list выбирает заказы по владельцу. column приходит только из кода пакета.
func (r *orderRepository) list(ctx context.Context, column, value string, limit int) ([]domain.Order, error) {
	ctx, cancel := opContext(ctx)
	defer cancel()

	query := `SELECT ` + orderColumns + ` FROM orders WHERE ` + column + ` = $1 ORDER BY created_at DESC, id DESC`

	var (
		rows *sql.Rows
		err  error
	)
	if limit > 0 {
		rows, err = r.db.QueryContext(ctx, query+" LIMIT $2", value, limit)
	} else {
		rows, err = r.db.QueryContext(ctx, query, value)
	}
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	orders := make([]domain.Order, 0)
	ids := make([]string, 0)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order row: %w", err)
		}
		orders = append(orders, order)
		ids = append(ids, order.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order rows: %w", err)
	}
	if len(orders) == 0 {
		return orders, nil
	}

	items, err := r.loadItems(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		orders[i].Items = items[orders[i].ID]
	}

	return orders, nil
}

// Save меняет только статус и updated_at: сумма и позиции неизменяемы.
func (r *orderRepository) Save(ctx context.Context, order domain.Order) error {
	ctx, cancel := opContext(ctx)
	defer cancel()

	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE orders
			SET status = $1,
			    updated_at = $2,
			    version = version + 1
			WHERE id = $3
			  AND version = $4
		`, string(order.Status), nullTime(order.UpdatedAt), order.ID, order.Version)
		if err != nil {
			return fmt.Errorf("update order: %w", err)
		}
		return r.checkAffected(ctx, tx, res, order.ID)
	})
}

// Delete удаляет заказ; позиции удаляются каскадно.
func (r *orderRepository) Delete(ctx context.Context, id string, version int64) error {
	ctx, cancel := opContext(ctx)
	defer cancel()

	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM orders WHERE id = $1 AND version = $2`, id, version)
		if err != nil {
			return fmt.Errorf("delete order: %w", err)
		}
		return r.checkAffected(ctx, tx, res, id)
	})
}

func (r *orderRepository) PartnerStats(ctx context.Context, partnerID string) (domain.OrderStats, error) {
	ctx, cancel := opContext(ctx)
	defer cancel()

	var stats domain.OrderStats
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE status = 'completed'),
		       COALESCE(SUM(total_amount) FILTER (WHERE status = 'completed'), 0)
		FROM orders
		WHERE partner_id = $1
	`, partnerID).Scan(&stats.TotalOrders, &stats.CompletedOrders, &stats.Revenue)
	if err != nil {
		return domain.OrderStats{}, fmt.Errorf("partner order stats: %w", err)
	}
	return stats, nil
}

// checkAffected различает «нет заказа» и «устаревшая версия», когда ни одна строка не изменилась.
func (r *orderRepository) checkAffected(ctx context.Context, tx *sql.Tx, res sql.Result, orderID string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected > 0 {
		return nil
	}

	var id string
	err = tx.QueryRowContext(ctx, `SELECT id FROM orders WHERE id = $1`, orderID).Scan(&id)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return domain.ErrOrderNotFound
	case err != nil:
		return fmt.Errorf("check order exists: %w", err)
	default:
		return domain.ErrOrderVersionConflict
	}
}

func (r *orderRepository) loadItems(ctx context.Context, orderIDs []string) (map[string][]domain.OrderItem, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, order_id, product_id, quantity, price, created_at
		FROM order_items
		WHERE order_id = ANY($1)
		ORDER BY created_at ASC, id ASC
	`, orderIDs)
	if err != nil {
		return nil, fmt.Errorf("load order items: %w", err)
	}
	defer rows.Close()

	items := make(map[string][]domain.OrderItem, len(orderIDs))
	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.Quantity, &item.Price, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		items[item.OrderID] = append(items[item.OrderID], item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order items: %w", err)
	}

	return items, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (domain.Order, error) {
	var (
		order     domain.Order
		status    string
		total     decimal.Decimal
		updatedAt sql.NullTime
	)
	if err := row.Scan(
		&order.ID, &order.CustomerID, &order.PartnerID, &status, &total,
		&order.RedemptionToken, &order.Version, &order.CreatedAt, &updatedAt,
	); err != nil {
		return domain.Order{}, err
	}
	order.Status = domain.OrderStatus(status)
	order.TotalAmount = total
	order.CreatedAt = order.CreatedAt.UTC()
	if updatedAt.Valid {
		t := updatedAt.Time.UTC()
		order.UpdatedAt = &t
	}
	return order, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

var _ domain.OrderRepository = (*orderRepository)(nil)
