package ledger

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"webshop/internal/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rendelesek.xlsx")
	return NewStore(path, nil), path
}

func sampleRow(id string) model.LedgerRow {
	return model.LedgerRow{
		OrderID:         id,
		Date:            "2024. 03. 01. 10:00:00",
		Name:            "Kiss Anna",
		Email:           "anna@example.com",
		Phone:           "+36301234567",
		ShippingMethod:  LabelFoxpost,
		FoxpostLocation: "Budapest, Nyugati tér",
		Address:         Placeholder,
		Items:           "Gyöngy fülbevaló (3db × 1000 Ft)",
		TotalQuantity:   3,
		Total:           decimal.NewFromInt(3000),
		PaymentMethod:   LabelPaymentMethod,
		PaymentStatus:   DefaultPayment,
		Notes:           Placeholder,
	}
}

func TestAppend_CreatesWorkbookWithStyledHeader(t *testing.T) {
	s, path := newTestStore(t)

	require.NoError(t, s.Append(context.Background(), sampleRow("ORD-1")))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetName}, f.GetSheetList())
	rows, err := f.GetRows(SheetName)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Len(t, rows[0], len(Columns))
	for i, c := range Columns {
		assert.Equal(t, c.Header, rows[0][i])
	}

	styleID, err := f.GetCellStyle(SheetName, "A1")
	require.NoError(t, err)
	style, err := f.GetStyle(styleID)
	require.NoError(t, err)
	require.NotNil(t, style.Font)
	assert.True(t, style.Font.Bold)

	width, err := f.GetColWidth(SheetName, "I")
	require.NoError(t, err)
	assert.Equal(t, 50.0, width)
}

func TestAppend_TwoOrdersReadBackInOrder(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Append(ctx, sampleRow("ORD-1")))
	second := sampleRow("ORD-2")
	second.Total = decimal.RequireFromString("2490.5")
	require.NoError(t, s.Append(ctx, second))

	rows, err := s.ReadAll(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "ORD-1", rows[0].OrderID)
	assert.Equal(t, "ORD-2", rows[1].OrderID)
	assert.Equal(t, 3, rows[0].TotalQuantity)
	assert.True(t, decimal.NewFromInt(3000).Equal(rows[0].Total))
	assert.True(t, second.Total.Equal(rows[1].Total))
	assert.Equal(t, "Kiss Anna", rows[1].Name)
	assert.Equal(t, Placeholder, rows[1].Notes)
}

func TestAppend_CorruptLedgerIsNotOverwritten(t *testing.T) {
	s, path := newTestStore(t)
	garbage := []byte("this is not a zip archive")
	require.NoError(t, os.WriteFile(path, garbage, 0o644))

	err := s.Append(context.Background(), sampleRow("ORD-1"))

	assert.ErrorIs(t, err, ErrStorageUnavailable)
	after, readErr := os.ReadFile(path)
	require.NoError(t, readErr)
	assert.Equal(t, garbage, after)

	_, err = s.ReadAll(context.Background())
	assert.ErrorIs(t, err, ErrStorageUnavailable)
}

func TestAppend_AddsMissingSheetToExistingWorkbook(t *testing.T) {
	s, path := newTestStore(t)
	f := excelize.NewFile()
	require.NoError(t, f.SetCellValue("Sheet1", "A1", "régi adat"))
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	require.NoError(t, s.Append(context.Background(), sampleRow("ORD-1")))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	assert.ElementsMatch(t, []string{"Sheet1", SheetName}, f.GetSheetList())
	old, err := f.GetCellValue("Sheet1", "A1")
	require.NoError(t, err)
	assert.Equal(t, "régi adat", old)

	rows, err := s.ReadAll(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 1)
}

func TestReadAll_MissingFileIsEmpty(t *testing.T) {
	s, _ := newTestStore(t)

	rows, err := s.ReadAll(context.Background())

	require.NoError(t, err)
	assert.NotNil(t, rows)
	assert.Empty(t, rows)
}

func TestContains(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Append(ctx, sampleRow("ORD-1")))

	ok, err := s.Contains(ctx, "ORD-1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Contains(ctx, "ORD-404")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAppend_ConcurrentAppendsKeepEveryRow(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	const n = 12
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs <- s.Append(ctx, sampleRow(fmt.Sprintf("ORD-%02d", i)))
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	rows, err := s.ReadAll(ctx)
	require.NoError(t, err)
	require.Len(t, rows, n)
	seen := make(map[string]bool, n)
	for _, r := range rows {
		seen[r.OrderID] = true
	}
	assert.Len(t, seen, n)
}

func TestAppend_CanceledContext(t *testing.T) {
	s, path := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.Append(ctx, sampleRow("ORD-1"))

	assert.ErrorIs(t, err, context.Canceled)
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestBuildRow_EndToEndThroughStore(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	o := model.Order{
		OrderID:        "ORD-H",
		Items:          []model.OrderItem{{ProductID: 2, Name: "Karkötő", Quantity: 1, UnitPrice: decimal.NewFromInt(2500)}},
		CustomerInfo:   model.CustomerInfo{Name: "Nagy Béla", Email: "bela@example.com", ZipCode: "1111", City: "Budapest", Address: "Fő utca 1."},
		ShippingMethod: model.ShippingHome,
		Total:          decimal.NewFromInt(2500),
	}

	require.NoError(t, s.Append(ctx, BuildRow(o, time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC))))

	rows, err := s.ReadAll(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "1111 Budapest, Fő utca 1.", rows[0].Address)
	assert.Equal(t, LabelHome, rows[0].ShippingMethod)
	assert.Equal(t, "2024. 03. 01. 10:00:00", rows[0].Date)
}
