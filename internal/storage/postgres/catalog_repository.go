package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
)

const (
	pgForeignKeyViolation = "23503"

	partnerColumns   = `id, user_id, name, description, address, phone, latitude, longitude, created_at`
	productColumns   = `id, partner_id, name, description, price, available, created_at`
	promotionColumns = `id, partner_id, title, description, image_url, discount_percent, active, expires_at, created_at`
)

type catalogRepository struct {
	db *sql.DB
}

// NewCatalogRepository создаёт PostgreSQL-реализацию CatalogRepository.
func NewCatalogRepository(store *Store) domain.CatalogRepository {
	return &catalogRepository{db: store.DB()}
}

func (r *catalogRepository) CreatePartner(ctx context.Context, partner domain.Partner) error {
	ctx, cancel := opContext(ctx)
	defer cancel()

	if partner.CreatedAt.IsZero() {
		partner.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO partners (`+partnerColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`,
		partner.ID, partner.UserID, partner.Name, partner.Description, partner.Address,
		partner.Phone, partner.Latitude, partner.Longitude, partner.CreatedAt,
	)
	if isForeignKeyViolation(err) {
		return domain.ErrUserNotFound
	}
	if err != nil {
		return mapWriteErr("insert partner", err)
	}
	return nil
}

func (r *catalogRepository) GetPartner(ctx context.Context, id string) (domain.Partner, error) {
	return r.getPartner(ctx, `SELECT `+partnerColumns+` FROM partners WHERE id = $1`, id)
}

func (r *catalogRepository) GetPartnerByUserID(ctx context.Context, userID string) (domain.Partner, error) {
	return r.getPartner(ctx, `SELECT `+partnerColumns+` FROM partners WHERE user_id = $1`, userID)
}

func (r *catalogRepository) getPartner(ctx context.Context, query, arg string) (domain.Partner, error) {
	ctx, cancel := opContext(ctx)
	defer cancel()

	partner, err := scanPartner(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Partner{}, domain.ErrPartnerNotFound
		}
		return domain.Partner{}, fmt.Errorf("select partner: %w", err)
	}
	return partner, nil
}

func (r *catalogRepository) ListPartners(ctx context.Context) ([]domain.Partner, error) {
	ctx, cancel := opContext(ctx)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `SELECT `+partnerColumns+` FROM partners ORDER BY name ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list partners: %w", err)
	}
	defer rows.Close()

	partners := make([]domain.Partner, 0)
	for rows.Next() {
		partner, err := scanPartner(rows)
		if err != nil {
			return nil, fmt.Errorf("scan partner: %w", err)
		}
		partners = append(partners, partner)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate partners: %w", err)
	}
	return partners, nil
}

// UpdatePartner не трогает user_id, координаты и created_at.
func (r *catalogRepository) UpdatePartner(ctx context.Context, partner domain.Partner) error {
	ctx, cancel := opContext(ctx)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		UPDATE partners
		SET name = $2,
		    description = $3,
		    address = $4,
		    phone = $5
		WHERE id = $1
	`, partner.ID, partner.Name, partner.Description, partner.Address, partner.Phone)
	if err != nil {
		return mapWriteErr("update partner", err)
	}
	return requireAffected(res, domain.ErrPartnerNotFound)
}

func (r *catalogRepository) CreateProduct(ctx context.Context, product domain.Product) error {
	ctx, cancel := opContext(ctx)
	defer cancel()

	if product.CreatedAt.IsZero() {
		product.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO products (`+productColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`,
		product.ID, product.PartnerID, product.Name, product.Description,
		product.Price, product.Available, product.CreatedAt,
	)
	if isForeignKeyViolation(err) {
		return domain.ErrPartnerNotFound
	}
	if err != nil {
		return mapWriteErr("insert product", err)
	}
	return nil
}

func (r *catalogRepository) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	ctx, cancel := opContext(ctx)
	defer cancel()

	product, err := scanProduct(r.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Product{}, domain.ErrProductNotFound
		}
		return domain.Product{}, fmt.Errorf("select product: %w", err)
	}
	return product, nil
}

func (r *catalogRepository) ListProducts(ctx context.Context, partnerID string, onlyAvailable bool) ([]domain.Product, error) {
	ctx, cancel := opContext(ctx)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE ($1 = '' OR partner_id = $1)
		  AND (NOT $2 OR available)
		ORDER BY created_at ASC, id ASC
	`, partnerID, onlyAvailable)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	products := make([]domain.Product, 0)
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, product)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate products: %w", err)
	}
	return products, nil
}

// UpdateProduct не трогает partner_id и created_at.
func (r *catalogRepository) UpdateProduct(ctx context.Context, product domain.Product) error {
	ctx, cancel := opContext(ctx)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		UPDATE products
		SET name = $2,
		    description = $3,
		    price = $4,
		    available = $5
		WHERE id = $1
	`, product.ID, product.Name, product.Description, product.Price, product.Available)
	if err != nil {
		return mapWriteErr("update product", err)
	}
	return requireAffected(res, domain.ErrProductNotFound)
}

func (r *catalogRepository) DeleteProduct(ctx context.Context, id string) error {
	ctx, cancel := opContext(ctx)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	return requireAffected(res, domain.ErrProductNotFound)
}

func (r *catalogRepository) CountProducts(ctx context.Context, partnerID string) (int, error) {
	ctx, cancel := opContext(ctx)
	defer cancel()

	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM products WHERE partner_id = $1`, partnerID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count products: %w", err)
	}
	return count, nil
}

func (r *catalogRepository) CreatePromotion(ctx context.Context, promotion domain.Promotion) error {
	ctx, cancel := opContext(ctx)
	defer cancel()

	if promotion.CreatedAt.IsZero() {
		promotion.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO promotions (`+promotionColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`,
		promotion.ID, promotion.PartnerID, promotion.Title, promotion.Description, promotion.ImageURL,
		nullDecimal(promotion.DiscountPercent), promotion.Active, nullTime(promotion.ExpiresAt), promotion.CreatedAt,
	)
	if isForeignKeyViolation(err) {
		return domain.ErrPartnerNotFound
	}
	if err != nil {
		return mapWriteErr("insert promotion", err)
	}
	return nil
}

func (r *catalogRepository) GetPromotion(ctx context.Context, id string) (domain.Promotion, error) {
	ctx, cancel := opContext(ctx)
	defer cancel()

	promotion, err := scanPromotion(r.db.QueryRowContext(ctx, `SELECT `+promotionColumns+` FROM promotions WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Promotion{}, domain.ErrPromotionNotFound
		}
		return domain.Promotion{}, fmt.Errorf("select promotion: %w", err)
	}
	return promotion, nil
}

func (r *catalogRepository) ListPromotions(ctx context.Context, partnerID string, liveAt time.Time) ([]domain.Promotion, error) {
	ctx, cancel := opContext(ctx)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+promotionColumns+`
		FROM promotions
		WHERE ($1 = '' OR partner_id = $1)
		  AND ($2::timestamptz IS NULL OR (active AND (expires_at IS NULL OR expires_at > $2)))
		ORDER BY created_at DESC, id ASC
	`, partnerID, nullTime(nonZero(liveAt)))
	if err != nil {
		return nil, fmt.Errorf("list promotions: %w", err)
	}
	defer rows.Close()

	promotions := make([]domain.Promotion, 0)
	for rows.Next() {
		promotion, err := scanPromotion(rows)
		if err != nil {
			return nil, fmt.Errorf("scan promotion: %w", err)
		}
		promotions = append(promotions, promotion)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate promotions: %w", err)
	}
	return promotions, nil
}

// UpdatePromotion не трогает partner_id и created_at.
func (r *catalogRepository) UpdatePromotion(ctx context.Context, promotion domain.Promotion) error {
	ctx, cancel := opContext(ctx)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		UPDATE promotions
		SET title = $2,
		    description = $3,
		    image_url = $4,
		    discount_percent = $5,
		    active = $6,
		    expires_at = $7
		WHERE id = $1
	`,
		promotion.ID, promotion.Title, promotion.Description, promotion.ImageURL,
		nullDecimal(promotion.DiscountPercent), promotion.Active, nullTime(promotion.ExpiresAt),
	)
	if err != nil {
		return mapWriteErr("update promotion", err)
	}
	return requireAffected(res, domain.ErrPromotionNotFound)
}

func (r *catalogRepository) DeletePromotion(ctx context.Context, id string) error {
	ctx, cancel := opContext(ctx)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `DELETE FROM promotions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete promotion: %w", err)
	}
	return requireAffected(res, domain.ErrPromotionNotFound)
}

func (r *catalogRepository) CountLivePromotions(ctx context.Context, partnerID string, at time.Time) (int, error) {
	ctx, cancel := opContext(ctx)
	defer cancel()

	var count int
	if err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM promotions
		WHERE partner_id = $1 AND active AND (expires_at IS NULL OR expires_at > $2)
	`, partnerID, at).Scan(&count); err != nil {
		return 0, fmt.Errorf("count promotions: %w", err)
	}
	return count, nil
}

func scanPartner(row rowScanner) (domain.Partner, error) {
	var p domain.Partner
	if err := row.Scan(
		&p.ID, &p.UserID, &p.Name, &p.Description, &p.Address,
		&p.Phone, &p.Latitude, &p.Longitude, &p.CreatedAt,
	); err != nil {
		return domain.Partner{}, err
	}
	p.CreatedAt = p.CreatedAt.UTC()
	return p, nil
}

func scanProduct(row rowScanner) (domain.Product, error) {
	var p domain.Product
	if err := row.Scan(&p.ID, &p.PartnerID, &p.Name, &p.Description, &p.Price, &p.Available, &p.CreatedAt); err != nil {
		return domain.Product{}, err
	}
	p.CreatedAt = p.CreatedAt.UTC()
	return p, nil
}

func scanPromotion(row rowScanner) (domain.Promotion, error) {
	var (
		p        domain.Promotion
		discount decimal.NullDecimal
		expires  sql.NullTime
	)
	if err := row.Scan(
		&p.ID, &p.PartnerID, &p.Title, &p.Description, &p.ImageURL,
		&discount, &p.Active, &expires, &p.CreatedAt,
	); err != nil {
		return domain.Promotion{}, err
	}
	if discount.Valid {
		p.DiscountPercent = &discount.Decimal
	}
	if expires.Valid {
		t := expires.Time.UTC()
		p.ExpiresAt = &t
	}
	p.CreatedAt = p.CreatedAt.UTC()
	return p, nil
}

func nullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *d, Valid: true}
}

func nonZero(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func requireAffected(res sql.Result, notFound error) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return notFound
	}
	return nil
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation
}

var _ domain.CatalogRepository = (*catalogRepository)(nil)
