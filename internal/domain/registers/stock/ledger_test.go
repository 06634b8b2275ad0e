package stock

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockflow/internal/core/apperror"
	"stockflow/internal/core/id"
	"stockflow/internal/core/types"
	"stockflow/internal/domain/guard"
)

// fakeRepo keeps products in a map and enforces the conditional update like the SQL does.
type fakeRepo struct {
	mu          sync.Mutex
	products    map[id.ID]*Product
	adjustments []Adjustment
	locked      []id.ID
}

func newFakeRepo(products ...Product) *fakeRepo {
	r := &fakeRepo{products: make(map[id.ID]*Product)}
	for i := range products {
		p := products[i]
		r.products[p.ID] = &p
	}
	return r
}

func (r *fakeRepo) GetProduct(ctx context.Context, productID id.ID) (*Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[productID]
	if !ok {
		return nil, apperror.NewProductNotFound(productID)
	}
	cp := *p
	return &cp, nil
}

func (r *fakeRepo) GetProductForUpdate(ctx context.Context, productID id.ID) (*Product, error) {
	r.locked = append(r.locked, productID)
	return r.GetProduct(ctx, productID)
}

func (r *fakeRepo) ApplyDelta(ctx context.Context, productID id.ID, d Delta) (*Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[productID]
	if !ok {
		return nil, apperror.NewProductNotFound(productID)
	}
	physical, reserved := p.PhysicalStock+d.Physical, p.ReservedStock+d.Reserved
	if reserved < 0 || reserved > physical {
		return nil, apperror.NewConsistencyViolation("refused")
	}
	p.PhysicalStock, p.ReservedStock = physical, reserved
	cp := *p
	return &cp, nil
}

func (r *fakeRepo) CreateProduct(ctx context.Context, p *Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *p
	r.products[p.ID] = &cp
	return nil
}

func (r *fakeRepo) InsertAdjustment(ctx context.Context, a *Adjustment) error {
	r.adjustments = append(r.adjustments, *a)
	return nil
}

func (r *fakeRepo) ListAdjustments(ctx context.Context, productID id.ID, limit int) ([]Adjustment, error) {
	return r.adjustments, nil
}

func q(units int64) types.Quantity { return types.NewQuantity(units) }

func product(physical, reserved int64) Product {
	return Product{ID: id.New(), Code: "P-1", Name: "Widget", PhysicalStock: q(physical), ReservedStock: q(reserved)}
}

func newLedger(policy guard.Policy) *Ledger {
	return NewLedger(guard.New(policy, guard.LogReporter{}), nil)
}

func TestLedger_ReserveAndConsumeScenario(t *testing.T) {
	ctx := context.Background()
	p := product(100, 0)
	repo := newFakeRepo(p)
	l := newLedger(guard.PolicyStrict)

	got, err := l.Reserve(ctx, repo, p.ID, q(30))
	require.NoError(t, err)
	assert.Equal(t, q(30), got.ReservedStock)
	assert.Equal(t, q(70), got.Available())

	got, err = l.ReleaseAndConsume(ctx, repo, p.ID, q(10))
	require.NoError(t, err)
	assert.Equal(t, q(90), got.PhysicalStock)
	assert.Equal(t, q(20), got.ReservedStock)

	got, err = l.ReleaseAndConsume(ctx, repo, p.ID, q(20))
	require.NoError(t, err)
	assert.Equal(t, q(70), got.PhysicalStock)
	assert.Equal(t, q(0), got.ReservedStock)
	assert.Equal(t, []id.ID{p.ID, p.ID, p.ID}, repo.locked)
}

func TestLedger_ReserveInsufficient(t *testing.T) {
	ctx := context.Background()
	p := product(40, 0)
	repo := newFakeRepo(p)

	_, err := newLedger(guard.PolicyStrict).Reserve(ctx, repo, p.ID, q(50))

	assert.True(t, apperror.HasCode(err, apperror.CodeInsufficientStock))
	after, _ := repo.GetProduct(ctx, p.ID)
	assert.Equal(t, q(0), after.ReservedStock)
}

func TestLedger_ReleaseAndConsume_Policy(t *testing.T) {
	ctx := context.Background()

	t.Run("strict", func(t *testing.T) {
		p := product(10, 2)
		repo := newFakeRepo(p)
		_, err := newLedger(guard.PolicyStrict).ReleaseAndConsume(ctx, repo, p.ID, q(5))
		assert.True(t, apperror.HasCode(err, apperror.CodeInsufficientReservation))
	})

	t.Run("lenient", func(t *testing.T) {
		p := product(10, 2)
		repo := newFakeRepo(p)
		got, err := newLedger(guard.PolicyLenient).ReleaseAndConsume(ctx, repo, p.ID, q(5))
		require.NoError(t, err)
		assert.Equal(t, q(5), got.PhysicalStock)
		assert.Equal(t, q(0), got.ReservedStock)
	})
}

func TestLedger_ReleaseOnlyClamps(t *testing.T) {
	ctx := context.Background()
	p := product(10, 3)
	repo := newFakeRepo(p)

	got, err := newLedger(guard.PolicyStrict).ReleaseOnly(ctx, repo, p.ID, q(5))

	require.NoError(t, err)
	assert.Equal(t, q(0), got.ReservedStock)
	assert.Equal(t, q(10), got.PhysicalStock)
}

func TestLedger_Restock(t *testing.T) {
	ctx := context.Background()
	p := product(10, 3)
	repo := newFakeRepo(p)

	got, err := newLedger(guard.PolicyStrict).Restock(ctx, repo, p.ID, q(4))

	require.NoError(t, err)
	assert.Equal(t, q(14), got.PhysicalStock)
	assert.Equal(t, q(3), got.ReservedStock)
}

func TestLedger_AdjustManually(t *testing.T) {
	ctx := context.Background()
	p := product(10, 6)
	repo := newFakeRepo(p)
	l := newLedger(guard.PolicyStrict)

	got, adj, err := l.AdjustManually(ctx, repo, p.ID, q(-4), "stocktake", "u1")
	require.NoError(t, err)
	assert.Equal(t, q(6), got.PhysicalStock)
	assert.Equal(t, ReasonManual, adj.Reason)
	require.Len(t, repo.adjustments, 1)

	_, _, err = l.AdjustManually(ctx, repo, p.ID, q(-1), "", "u1")
	assert.True(t, apperror.HasCode(err, apperror.CodeInsufficientStock))

	_, _, err = l.AdjustManually(ctx, repo, p.ID, 0, "", "u1")
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
}

func TestLedger_RejectsNonPositive(t *testing.T) {
	ctx := context.Background()
	p := product(10, 0)
	repo := newFakeRepo(p)
	l := newLedger(guard.PolicyStrict)

	_, err := l.Reserve(ctx, repo, p.ID, 0)
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
	_, err = l.Restock(ctx, repo, p.ID, q(-1))
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
}

func TestLedger_UnknownProduct(t *testing.T) {
	_, err := newLedger(guard.PolicyStrict).Reserve(context.Background(), newFakeRepo(), id.New(), q(1))
	assert.True(t, apperror.HasCode(err, apperror.CodeProductNotFound))
}

func TestReorderRule(t *testing.T) {
	rule, err := NewReorderRule("")
	require.NoError(t, err)

	p := product(20, 12)
	p.ReorderLevel = q(10)
	hit, err := rule.Triggered(&p)
	require.NoError(t, err)
	assert.True(t, hit)

	p.ReservedStock = q(5)
	hit, err = rule.Triggered(&p)
	require.NoError(t, err)
	assert.False(t, hit)

	p.ReorderLevel = 0
	p.ReservedStock = p.PhysicalStock
	hit, err = rule.Triggered(&p)
	require.NoError(t, err)
	assert.False(t, hit, "products without a reorder level never trigger")
}

func TestReorderRule_Invalid(t *testing.T) {
	_, err := NewReorderRule("available +")
	assert.Error(t, err)

	_, err = NewReorderRule("available * 2.0")
	assert.Error(t, err)
}

func TestLedger_NeedsReorder(t *testing.T) {
	rule, err := NewReorderRule("physical < 5.0")
	require.NoError(t, err)
	l := NewLedger(guard.New(guard.PolicyStrict, nil), rule)

	p := product(4, 0)
	hit, err := l.NeedsReorder(&p)
	require.NoError(t, err)
	assert.True(t, hit)

	hit, err = newLedger(guard.PolicyStrict).NeedsReorder(&p)
	require.NoError(t, err)
	assert.False(t, hit)
}
