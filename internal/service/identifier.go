package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/cenkalti/backoff/v4"

	"dispatch/internal/domain"
	"dispatch/internal/repository"
)

const (
	sequenceMaxRetries      = 3
	sequenceInitialInterval = 50 * time.Millisecond
)

// IdentifierMinter builds public identifiers from store-backed sequences.
//
//	ORD-YYYYMMDD-########      global order id, one counter per day
//	SHL-<role>-<LAST4>-####    order or quote number, one counter per owner and day
type IdentifierMinter struct {
	seq repository.SequenceRepository
	now func() time.Time
}

// NewIdentifierMinter creates a new IdentifierMinter.
func NewIdentifierMinter(seq repository.SequenceRepository) *IdentifierMinter {
	return &IdentifierMinter{seq: seq, now: time.Now}
}

// WithClock replaces the time source. Used by tests.
func (m *IdentifierMinter) WithClock(now func() time.Time) *IdentifierMinter {
	m.now = now
	return m
}

// OrderID mints the next global order id for today.
func (m *IdentifierMinter) OrderID(ctx context.Context) (string, error) {
	day := m.day()
	n, err := m.next(ctx, "order_global_"+day)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("ORD-%s-%08d", day, n), nil
}

// OrderNumber mints the next order number for owner.
func (m *IdentifierMinter) OrderNumber(ctx context.Context, ownerID string, role domain.Role) (string, error) {
	return m.ownerScoped(ctx, "order", ownerID, role)
}

// QuoteNumber mints the next quote number for owner.
func (m *IdentifierMinter) QuoteNumber(ctx context.Context, ownerID string, role domain.Role) (string, error) {
	return m.ownerScoped(ctx, "quote", ownerID, role)
}

func (m *IdentifierMinter) ownerScoped(ctx context.Context, entity, ownerID string, role domain.Role) (string, error) {
	if strings.TrimSpace(ownerID) == "" {
		return "", ErrMissingOwnerID
	}

	day := m.day()
	n, err := m.next(ctx, fmt.Sprintf("%s_user_%s_%s", entity, ownerID, day))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("SHL-%s-%s-%04d", role.Code(), OwnerSuffix(ownerID), n), nil
}

// OwnerSuffix is the last four alphanumeric characters of id, upper-cased
// and left-padded with zeros.
func OwnerSuffix(id string) string {
	var b strings.Builder
	for _, r := range id {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(unicode.ToUpper(r))
		}
	}
	s := b.String()
	if len(s) > 4 {
		return s[len(s)-4:]
	}
	return strings.Repeat("0", 4-len(s)) + s
}

func (m *IdentifierMinter) day() string {
	return m.now().UTC().Format("20060102")
}

// next retries transient allocator failures. A retried increment never
// double-issues: a failed statement consumed no number.
func (m *IdentifierMinter) next(ctx context.Context, key string) (int64, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = sequenceInitialInterval
	policy.MaxElapsedTime = 2 * time.Second

	op := func() (int64, error) {
		n, err := m.seq.Next(ctx, key)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return 0, backoff.Permanent(err)
			}
			return 0, err
		}
		return n, nil
	}

	n, err := backoff.RetryWithData(op, backoff.WithContext(backoff.WithMaxRetries(policy, sequenceMaxRetries), ctx))
	if err != nil {
		return 0, fmt.Errorf("allocate sequence %s: %w", key, err)
	}
	return n, nil
}
