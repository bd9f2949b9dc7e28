package orders

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

const (
	DefaultNumberAttempts = 10
	numberSuffixSpace     = 1_000_000
)

// NumberGenerator allocates ORD-YYYYMMDD-NNNNNN order numbers with bounded retries.
type NumberGenerator struct {
	MaxAttempts int
	Now         func() time.Time
	Suffix      func() int
}

func NewNumberGenerator(maxAttempts int) *NumberGenerator {
	if maxAttempts <= 0 {
		maxAttempts = DefaultNumberAttempts
	}
	return &NumberGenerator{
		MaxAttempts: maxAttempts,
		Now:         time.Now,
		Suffix:      func() int { return rand.IntN(numberSuffixSpace) },
	}
}

// FormatNumber renders an order number for the UTC date of at.
func FormatNumber(at time.Time, suffix int) string {
	return fmt.Sprintf("ORD-%s-%06d", at.UTC().Format("20060102"), suffix%numberSuffixSpace)
}

// Next returns a number for which exists reports false.
func (g *NumberGenerator) Next(ctx context.Context, exists func(ctx context.Context, number string) (bool, error)) (string, error) {
	for attempt := 0; attempt < g.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		number := FormatNumber(g.Now(), g.Suffix())
		taken, err := exists(ctx, number)
		if err != nil {
			return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check order number")
		}
		if !taken {
			return number, nil
		}
	}
	return "", pkgerrors.New(pkgerrors.CodeConflict, "could not allocate order number").
		WithDetails(map[string]any{"attempts": g.MaxAttempts})
}
