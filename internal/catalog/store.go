// Package catalog 持久化商品目录（JSON 文件）。
//
// 每次修改都是整文件的读-改-写，所以 Store 内部用一把互斥锁
// 作为唯一写入口，避免并发下单基于同一份旧快照扣库存。
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"sync"

	"webshop/internal/fsutil"
	"webshop/internal/model"

	"go.uber.org/zap"
)

var (
	ErrStorageUnavailable = errors.New("catalog storage unavailable")
	ErrProductNotFound    = errors.New("product not found")
)

// Store 商品目录文件的单写者句柄。
type Store struct {
	path string
	log  *zap.Logger

	mu sync.Mutex
}

func NewStore(path string, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{path: path, log: log.Named("catalog")}
}

// Load 读取完整目录。文件不存在视为空目录；文件损坏返回 ErrStorageUnavailable。
func (s *Store) Load(ctx context.Context) ([]model.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// Save 用给定列表整体覆盖目录文件（缩进格式，便于人工查看）。
func (s *Store) Save(ctx context.Context, products []model.Product) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(products)
}

// Update 在写锁内完成 load → fn → save。fn 返回错误时不写盘。
func (s *Store) Update(ctx context.Context, fn func(products []model.Product) ([]model.Product, error)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	products, err := s.load()
	if err != nil {
		return err
	}
	next, err := fn(products)
	if err != nil {
		return err
	}
	return s.save(next)
}

// Get 按 id 查询单个商品。
func (s *Store) Get(ctx context.Context, id int) (model.Product, error) {
	products, err := s.Load(ctx)
	if err != nil {
		return model.Product{}, err
	}
	for _, p := range products {
		if p.ID == id {
			return p, nil
		}
	}
	return model.Product{}, fmt.Errorf("%w: id=%d", ErrProductNotFound, id)
}

func (s *Store) load() ([]model.Product, error) {
	b, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return []model.Product{}, nil
	}
	if err != nil {
		s.log.Error("read catalog failed", zap.String("path", s.path), zap.Error(err))
		return nil, fmt.Errorf("%w: read %s: %v", ErrStorageUnavailable, s.path, err)
	}

	var products []model.Product
	if err := json.Unmarshal(b, &products); err != nil {
		s.log.Error("decode catalog failed", zap.String("path", s.path), zap.Error(err))
		return nil, fmt.Errorf("%w: decode %s: %v", ErrStorageUnavailable, s.path, err)
	}
	if products == nil {
		products = []model.Product{}
	}
	return products, nil
}

func (s *Store) save(products []model.Product) error {
	if products == nil {
		products = []model.Product{}
	}
	b, err := json.MarshalIndent(products, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode: %v", ErrStorageUnavailable, err)
	}
	b = append(b, '\n')

	err = fsutil.WriteFileAtomic(s.path, func(w io.Writer) error {
		_, err := w.Write(b)
		return err
	})
	if err != nil {
		s.log.Error("write catalog failed", zap.String("path", s.path), zap.Error(err))
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return nil
}
