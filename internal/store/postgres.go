package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/bookworm-assistant/server/internal/agent/model"
	errx "github.com/bookworm-assistant/server/internal/core/error"
	logx "github.com/bookworm-assistant/server/pkg/logger"
)

// ProductStore is the Postgres-backed gateway to product and order storage.
// Keyword search uses full-text ranking, vector search uses the pgvector
// extension on the product embedding column. Every method is a single round
// trip and swallows driver errors into errx-typed results.
type ProductStore struct {
	db *sql.DB

	// textSearchConfig names the text search configuration used for
	// to_tsvector/plainto_tsquery; deployments with a custom stop-word
	// dictionary point this at it.
	textSearchConfig string
}

type Option func(*ProductStore)

// WithTextSearchConfig overrides the default "simple" text search config.
func WithTextSearchConfig(name string) Option {
	return func(s *ProductStore) { s.textSearchConfig = name }
}

func NewProductStore(db *sql.DB, opts ...Option) *ProductStore {
	s := &ProductStore{db: db, textSearchConfig: "simple"}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

const productColumns = "id, name, author, category, description, price, stock_quantity"

func scanProduct(row *sql.Row) (*model.Product, error) {
	var p model.Product
	var price sql.NullFloat64
	if err := row.Scan(&p.ID, &p.Name, &p.Author, &p.Category, &p.Description, &price, &p.StockQuantity); err != nil {
		return nil, err
	}
	if price.Valid {
		p.Price = &price.Float64
	}
	return &p, nil
}

func (s *ProductStore) GetProductByID(ctx context.Context, id int) (*model.Product, error) {
	row := s.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT %s FROM product WHERE id = $1", productColumns), id)
	p, err := scanProduct(row)
	if err != nil {
		if err != sql.ErrNoRows {
			logx.Error().Err(err).Int("product_id", id).Msg("product lookup failed")
		}
		return nil, errx.WrapStore(err)
	}
	return p, nil
}

func (s *ProductStore) GetProductByName(ctx context.Context, name string) (*model.Product, error) {
	row := s.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT %s FROM product WHERE name ILIKE '%%' || $1 || '%%' ORDER BY id LIMIT 1", productColumns), name)
	p, err := scanProduct(row)
	if err != nil {
		if err != sql.ErrNoRows {
			logx.Error().Err(err).Str("name", name).Msg("product lookup by name failed")
		}
		return nil, errx.WrapStore(err)
	}
	return p, nil
}

// SearchByKeyword returns up to k candidates ranked by text relevance
// descending over name, author, category and description.
func (s *ProductStore) SearchByKeyword(ctx context.Context, keyword string, k int) ([]model.ProductSummary, error) {
	query := fmt.Sprintf(`
		SELECT id, name, author, category, description, price,
		       ts_rank(to_tsvector('%[1]s', description || ' ' || name || ' ' || author || ' ' || category),
		               plainto_tsquery('%[1]s', $1)) AS rank
		FROM product
		WHERE to_tsvector('%[1]s', description || ' ' || name || ' ' || author || ' ' || category)
		      @@ plainto_tsquery('%[1]s', $1)
		ORDER BY rank DESC
		LIMIT $2`, s.textSearchConfig)

	rows, err := s.db.QueryContext(ctx, query, keyword, k)
	if err != nil {
		logx.Error().Err(err).Str("keyword", keyword).Msg("keyword search failed")
		return nil, errx.WrapStore(err)
	}
	defer rows.Close()

	return scanSummaries(rows)
}

// SearchByVector returns up to k candidates ranked by cosine distance
// ascending. The distance is carried in the summary score so single-backend
// passthrough preserves the native ordering metric.
func (s *ProductStore) SearchByVector(ctx context.Context, vector []float32, k int) ([]model.ProductSummary, error) {
	query := `
		SELECT id, name, author, category, description, price,
		       embedding_vector <=> $1::vector AS distance
		FROM product
		ORDER BY distance ASC
		LIMIT $2`

	rows, err := s.db.QueryContext(ctx, query, vectorLiteral(vector), k)
	if err != nil {
		logx.Error().Err(err).Msg("vector search failed")
		return nil, errx.WrapStore(err)
	}
	defer rows.Close()

	return scanSummaries(rows)
}

func scanSummaries(rows *sql.Rows) ([]model.ProductSummary, error) {
	var out []model.ProductSummary
	for rows.Next() {
		var p model.ProductSummary
		var price sql.NullFloat64
		if err := rows.Scan(&p.ID, &p.Name, &p.Author, &p.Category, &p.Description, &price, &p.Score); err != nil {
			return nil, errx.WrapStore(err)
		}
		if price.Valid {
			p.Price = &price.Float64
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, errx.WrapStore(err)
	}
	return out, nil
}

// ListProducts returns the full catalog, used to seed the embedded vector
// index at startup.
func (s *ProductStore) ListProducts(ctx context.Context) ([]*model.Product, error) {
	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf("SELECT %s FROM product ORDER BY id", productColumns))
	if err != nil {
		logx.Error().Err(err).Msg("product listing failed")
		return nil, errx.WrapStore(err)
	}
	defer rows.Close()

	var out []*model.Product
	for rows.Next() {
		var p model.Product
		var price sql.NullFloat64
		if err := rows.Scan(&p.ID, &p.Name, &p.Author, &p.Category, &p.Description, &price, &p.StockQuantity); err != nil {
			return nil, errx.WrapStore(err)
		}
		if price.Valid {
			p.Price = &price.Float64
		}
		out = append(out, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, errx.WrapStore(err)
	}
	return out, nil
}

// CheckStock returns the current stock count. A missing product surfaces as
// a not-found result, distinct from zero stock.
func (s *ProductStore) CheckStock(ctx context.Context, productID int) (int, error) {
	var stock int
	err := s.db.QueryRowContext(ctx,
		"SELECT stock_quantity FROM product WHERE id = $1", productID).Scan(&stock)
	if err != nil {
		if err != sql.ErrNoRows {
			logx.Error().Err(err).Int("product_id", productID).Msg("stock check failed")
		}
		return 0, errx.WrapStore(err)
	}
	return stock, nil
}

// DecrementStock atomically decrements stock by quantity. The conditional
// update serializes concurrent decrements per product so the store can never
// oversell: the row either had enough stock when the update ran, or nothing
// changes and false is returned.
func (s *ProductStore) DecrementStock(ctx context.Context, productID, quantity int) (bool, error) {
	// a negative quantity would turn the decrement into an increment
	if quantity <= 0 {
		return false, errx.WrapStore(fmt.Errorf("non-positive decrement quantity %d", quantity))
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE product
		SET stock_quantity = stock_quantity - $2
		WHERE id = $1 AND stock_quantity >= $2`, productID, quantity)
	if err != nil {
		logx.Error().Err(err).Int("product_id", productID).Int("quantity", quantity).Msg("stock decrement failed")
		return false, errx.WrapStore(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, errx.WrapStore(err)
	}
	return affected > 0, nil
}

// CreateOrder persists the order record and returns its identifier.
func (s *ProductStore) CreateOrder(ctx context.Context, order model.NewOrder) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO orders (user_id, product_id, quantity, total_amount)
		VALUES ($1, $2, $3, $4)
		RETURNING id`,
		order.UserID, order.ProductID, order.Quantity, order.TotalAmount).Scan(&id)
	if err != nil {
		logx.Error().Err(err).
			Int("user_id", order.UserID).
			Int("product_id", order.ProductID).
			Msg("order insert failed")
		return 0, errx.WrapStore(err)
	}
	return id, nil
}

// vectorLiteral renders a float32 slice as a pgvector text literal.
func vectorLiteral(vector []float32) string {
	parts := make([]string, len(vector))
	for i, v := range vector {
		parts[i] = fmt.Sprintf("%g", v)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

var _ model.ProductStore = (*ProductStore)(nil)
