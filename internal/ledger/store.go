// Package ledger 把已完成的订单追加到 xlsx 台账。
//
// 存储层没有行级追加：每次 Append 都是打开整个工作簿、在内存里加一行、
// 再整体写回。Store 用互斥锁串行化这一过程，并通过临时文件 + rename
// 保证写失败时旧台账不被破坏。
package ledger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"sync"

	"webshop/internal/fsutil"
	"webshop/internal/model"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

var ErrStorageUnavailable = errors.New("ledger storage unavailable")

// Store 台账文件的单写者句柄。
type Store struct {
	path string
	log  *zap.Logger

	mu sync.Mutex
}

func NewStore(path string, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{path: path, log: log.Named("ledger")}
}

// Append 追加一行订单记录。
// 文件不存在时新建带表头的工作簿；文件存在但无法解析时报错且不覆盖原文件。
func (s *Store) Append(ctx context.Context, row model.LedgerRow) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.open()
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	if err := ensureSheet(f); err != nil {
		return fmt.Errorf("%w: prepare sheet: %v", ErrStorageUnavailable, err)
	}
	rows, err := f.GetRows(SheetName)
	if err != nil {
		return fmt.Errorf("%w: read rows: %v", ErrStorageUnavailable, err)
	}
	if len(rows) == 0 {
		if err := writeHeader(f); err != nil {
			return fmt.Errorf("%w: write header: %v", ErrStorageUnavailable, err)
		}
		rows = append(rows, nil)
	}

	cell, err := excelize.CoordinatesToCellName(1, len(rows)+1)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	vals := values(row)
	if err := f.SetSheetRow(SheetName, cell, &vals); err != nil {
		return fmt.Errorf("%w: set row: %v", ErrStorageUnavailable, err)
	}

	if err := fsutil.WriteFileAtomic(s.path, func(w io.Writer) error { return f.Write(w) }); err != nil {
		s.log.Error("write ledger failed", zap.String("path", s.path), zap.Error(err))
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	s.log.Info("order appended to ledger",
		zap.String("order_id", row.OrderID),
		zap.Int("row", len(rows)+1),
	)
	return nil
}

// ReadAll 返回表头之后的所有行，按列位置映射。文件不存在时返回空列表。
func (s *Store) ReadAll(ctx context.Context) ([]model.LedgerRow, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readAll()
}

// Contains 判断台账中是否已有该订单号。
func (s *Store) Contains(ctx context.Context, orderID string) (bool, error) {
	rows, err := s.ReadAll(ctx)
	if err != nil {
		return false, err
	}
	for _, r := range rows {
		if r.OrderID == orderID {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) readAll() ([]model.LedgerRow, error) {
	if _, err := os.Stat(s.path); errors.Is(err, fs.ErrNotExist) {
		return []model.LedgerRow{}, nil
	}
	f, err := excelize.OpenFile(s.path)
	if err != nil {
		s.log.Error("open ledger failed", zap.String("path", s.path), zap.Error(err))
		return nil, fmt.Errorf("%w: open %s: %v", ErrStorageUnavailable, s.path, err)
	}
	defer func() { _ = f.Close() }()

	idx, err := f.GetSheetIndex(SheetName)
	if err != nil || idx < 0 {
		return []model.LedgerRow{}, nil
	}
	rows, err := f.GetRows(SheetName)
	if err != nil {
		return nil, fmt.Errorf("%w: read rows: %v", ErrStorageUnavailable, err)
	}

	out := make([]model.LedgerRow, 0, len(rows))
	for i, cells := range rows {
		if i == 0 || len(cells) == 0 {
			continue
		}
		out = append(out, parseRow(cells))
	}
	return out, nil
}

// open 打开现有台账，或在文件不存在时新建工作簿。
func (s *Store) open() (*excelize.File, error) {
	_, err := os.Stat(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		f := excelize.NewFile()
		if err := f.SetSheetName("Sheet1", SheetName); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("%w: init workbook: %v", ErrStorageUnavailable, err)
		}
		s.log.Info("initializing new ledger", zap.String("path", s.path))
		return f, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: stat %s: %v", ErrStorageUnavailable, s.path, err)
	}

	f, err := excelize.OpenFile(s.path)
	if err != nil {
		// 损坏的台账不能被新文件覆盖，否则历史订单全部丢失
		s.log.Error("open ledger failed", zap.String("path", s.path), zap.Error(err))
		return nil, fmt.Errorf("%w: open %s: %v", ErrStorageUnavailable, s.path, err)
	}
	return f, nil
}

func ensureSheet(f *excelize.File) error {
	idx, err := f.GetSheetIndex(SheetName)
	if err != nil {
		return err
	}
	if idx >= 0 {
		return nil
	}
	idx, err = f.NewSheet(SheetName)
	if err != nil {
		return err
	}
	f.SetActiveSheet(idx)
	return nil
}

func writeHeader(f *excelize.File) error {
	header := make([]interface{}, 0, len(Columns))
	for i, c := range Columns {
		header = append(header, c.Header)
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(SheetName, col, col, c.Width); err != nil {
			return err
		}
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return err
	}

	style, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{headerFill}},
	})
	if err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(len(Columns), 1)
	if err != nil {
		return err
	}
	return f.SetCellStyle(SheetName, "A1", last, style)
}
