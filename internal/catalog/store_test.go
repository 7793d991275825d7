package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"webshop/internal/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "products.json")
	return NewStore(path, nil), path
}

func TestLoad_MissingFileIsEmptyCatalog(t *testing.T) {
	s, _ := newTestStore(t)

	products, err := s.Load(context.Background())

	require.NoError(t, err)
	assert.Empty(t, products)
	assert.NotNil(t, products)
}

func TestLoad_MalformedFileIsStorageUnavailable(t *testing.T) {
	s, path := newTestStore(t)
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	products, err := s.Load(context.Background())

	assert.ErrorIs(t, err, ErrStorageUnavailable)
	assert.Nil(t, products)
}

func TestSaveThenLoad_PrettyPrintedWithNumericPrice(t *testing.T) {
	s, path := newTestStore(t)
	ctx := context.Background()
	in := []model.Product{
		{ID: 1, Name: "Gyöngy fülbevaló", Price: decimal.NewFromInt(1000), Quantity: 10},
		{ID: 2, Name: "Karkötő", Price: decimal.RequireFromString("2490.5"), Quantity: 0},
	}

	require.NoError(t, s.Save(ctx, in))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(raw), "[\n  {"), "catalog must be indented")
	assert.Contains(t, string(raw), `"price": 1000`)

	out, err := s.Load(ctx)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "Karkötő", out[1].Name)
	assert.True(t, in[1].Price.Equal(out[1].Price))
	assert.Equal(t, 10, out[0].Quantity)
}

func TestUpdate_ErrorLeavesFileUntouched(t *testing.T) {
	s, path := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Save(ctx, []model.Product{{ID: 1, Name: "a", Quantity: 5}}))
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	boom := errors.New("boom")
	err = s.Update(ctx, func(ps []model.Product) ([]model.Product, error) {
		ps[0].Quantity = 0
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestUpdate_ConcurrentDecrementsAreSerialized(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Save(ctx, []model.Product{{ID: 1, Name: "a", Quantity: 50}}))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.Update(ctx, func(ps []model.Product) ([]model.Product, error) {
				ps[0].Quantity--
				return ps, nil
			}))
		}()
	}
	wg.Wait()

	p, err := s.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, p.Quantity)
}

func TestGet_NotFound(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Save(ctx, []model.Product{{ID: 1, Name: "a"}}))

	_, err := s.Get(ctx, 42)

	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestLoad_CanceledContext(t *testing.T) {
	s, _ := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Load(ctx)

	assert.ErrorIs(t, err, context.Canceled)
}

func TestUpdate_KeepsUnknownCatalogFields(t *testing.T) {
	s, path := newTestStore(t)
	ctx := context.Background()
	raw := `[{"id":1,"name":"Gyöngy","price":1000,"quantity":10,"images":["a.jpg","b.jpg"],"featured":true,"material":"ezüst"}]`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o644))

	require.NoError(t, s.Update(ctx, func(ps []model.Product) ([]model.Product, error) {
		ps[0].Quantity -= 3
		return ps, nil
	}))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	var got []map[string]any
	require.NoError(t, json.Unmarshal(b, &got))
	require.Len(t, got, 1)
	assert.EqualValues(t, 7, got[0]["quantity"])
	assert.EqualValues(t, 1000, got[0]["price"])
	assert.Equal(t, []any{"a.jpg", "b.jpg"}, got[0]["images"])
	assert.Equal(t, true, got[0]["featured"])
	assert.Equal(t, "ezüst", got[0]["material"])

	p, err := s.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 7, p.Quantity)
	assert.Contains(t, p.Extra, "material")
	assert.NotContains(t, p.Extra, "quantity")
}
