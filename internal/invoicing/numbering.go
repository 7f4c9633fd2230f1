package invoicing

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// NumberGenerator hands out invoice numbers. Numbers are never reused,
// even for voided invoices.
type NumberGenerator interface {
	Next(ctx context.Context, prefix string, year int) (string, error)
}

// SequenceNumberGenerator formats PREFIX-YEAR-00001 numbers backed by a
// PostgreSQL sequence.
type SequenceNumberGenerator struct {
	pool *pgxpool.Pool
}

// NewSequenceNumberGenerator returns a sequence-backed generator.
func NewSequenceNumberGenerator(pool *pgxpool.Pool) *SequenceNumberGenerator {
	return &SequenceNumberGenerator{pool: pool}
}

var _ NumberGenerator = (*SequenceNumberGenerator)(nil)

func (g *SequenceNumberGenerator) Next(ctx context.Context, prefix string, year int) (string, error) {
	var n int64
	if err := g.pool.QueryRow(ctx, `SELECT nextval('invoice_number_seq')`).Scan(&n); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%d-%05d", prefix, year, n), nil
}
