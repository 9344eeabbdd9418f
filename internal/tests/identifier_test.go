package tests

import (
	"context"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dispatch/internal/domain"
	"dispatch/internal/service"
)

var (
	orderIDPattern     = regexp.MustCompile(`^ORD-\d{8}-\d{8}$`)
	orderNumberPattern = regexp.MustCompile(`^SHL-[A-Z]{1,2}-[A-Z0-9]{4}-\d{4}$`)
)

func newMinter() (*service.IdentifierMinter, *MockSequenceRepository, *FixedClock) {
	seq := NewMockSequenceRepository()
	clock := NewFixedClock(testStart)
	return service.NewIdentifierMinter(seq).WithClock(clock.Now), seq, clock
}

func TestOrderID_Format(t *testing.T) {
	minter, seq, _ := newMinter()

	id, err := minter.OrderID(context.Background())
	require.NoError(t, err)
	assert.Regexp(t, orderIDPattern, id)
	assert.Equal(t, "ORD-20250314-00000001", id)
	assert.Equal(t, int64(1), seq.Value("order_global_20250314"))
}

func TestOrderID_CounterResetsPerDay(t *testing.T) {
	minter, _, clock := newMinter()
	ctx := context.Background()

	_, err := minter.OrderID(ctx)
	require.NoError(t, err)
	second, err := minter.OrderID(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ORD-20250314-00000002", second)

	clock.Advance(24 * time.Hour)
	next, err := minter.OrderID(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ORD-20250315-00000001", next)
}

func TestOrderNumber_RoleCodesAndSuffix(t *testing.T) {
	tests := []struct {
		owner string
		role  domain.Role
		want  string
	}{
		{"seller-1", domain.RoleSeller, "SHL-S-LER1-0001"},
		{"9f8e7d6c-5b4a-3c2d-1e0f-a1b2c3d4e5f6", domain.RoleLogisticsCompany, "SHL-L-E5F6-0001"},
		{"ab", domain.RoleDriver, "SHL-D-00AB-0001"},
		{"agent_x7", domain.RoleSourcingAgent, "SHL-SA-NTX7-0001"},
		{"coach#42", domain.RoleImportCoach, "SHL-IC-CH42-0001"},
	}

	for _, tt := range tests {
		t.Run(tt.owner, func(t *testing.T) {
			minter, _, _ := newMinter()
			got, err := minter.OrderNumber(context.Background(), tt.owner, tt.role)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Regexp(t, orderNumberPattern, got)
		})
	}
}

func TestOrderAndQuoteNumbersCountSeparately(t *testing.T) {
	minter, seq, _ := newMinter()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := minter.OrderNumber(ctx, "company-1", domain.RoleLogisticsCompany)
		require.NoError(t, err)
	}
	quote, err := minter.QuoteNumber(ctx, "company-1", domain.RoleLogisticsCompany)
	require.NoError(t, err)

	assert.Equal(t, "SHL-L-ANY1-0001", quote)
	assert.Equal(t, int64(3), seq.Value("order_user_company-1_20250314"))
	assert.Equal(t, int64(1), seq.Value("quote_user_company-1_20250314"))
}

func TestOwnerSuffix(t *testing.T) {
	assert.Equal(t, "0000", service.OwnerSuffix(""))
	assert.Equal(t, "000A", service.OwnerSuffix("a"))
	assert.Equal(t, "ANY1", service.OwnerSuffix("company-1"))
	assert.Equal(t, "B2C3", service.OwnerSuffix("--a-b-2-c-3--"))
	assert.Equal(t, "00AB", service.OwnerSuffix("äöab"))
}

func TestOrderNumber_MissingOwnerFailsFast(t *testing.T) {
	minter, seq, _ := newMinter()

	for _, owner := range []string{"", "   "} {
		_, err := minter.OrderNumber(context.Background(), owner, domain.RoleSeller)
		assert.ErrorIs(t, err, service.ErrMissingOwnerID)
		_, err = minter.QuoteNumber(context.Background(), owner, domain.RoleLogisticsCompany)
		assert.ErrorIs(t, err, service.ErrMissingOwnerID)
	}
	assert.Zero(t, seq.NextCalls)
}

func TestIdentifier_RetriesTransientFailures(t *testing.T) {
	minter, seq, _ := newMinter()
	seq.FailTimes = 2

	id, err := minter.OrderID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ORD-20250314-00000001", id)
	assert.Equal(t, int32(3), seq.NextCalls)
}

func TestIdentifier_GivesUpAfterRetries(t *testing.T) {
	minter, seq, _ := newMinter()
	seq.FailTimes = 10

	_, err := minter.OrderID(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransient)
	assert.Contains(t, err.Error(), "order_global_20250314")
	assert.Equal(t, int32(4), seq.NextCalls)
}

func TestIdentifier_CancelledContextStopsRetrying(t *testing.T) {
	minter, seq, _ := newMinter()
	seq.FailTimes = 10

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := minter.OrderID(ctx)
	require.Error(t, err)
	assert.LessOrEqual(t, seq.NextCalls, int32(1))
}

func TestIdentifier_ConcurrentMintingIsGapFree(t *testing.T) {
	minter, _, _ := newMinter()
	const n = 200

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		ids = make([]string, 0, n)
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			num, err := minter.OrderNumber(context.Background(), "seller-1", domain.RoleSeller)
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			ids = append(ids, num)
			mu.Unlock()
		}()
	}
	wg.Wait()

	require.Len(t, ids, n)
	seqs := make([]int, 0, n)
	for _, id := range ids {
		assert.Regexp(t, orderNumberPattern, id)
		v, err := strconv.Atoi(id[strings.LastIndex(id, "-")+1:])
		require.NoError(t, err)
		seqs = append(seqs, v)
	}
	sort.Ints(seqs)
	for i, v := range seqs {
		assert.Equal(t, i+1, v)
	}
}
