// Package shipment 把 FoxPost 包裹登记从下单主流程中拆出来：
// 订单入账后只写一条 pending 记录，由后台 Worker 异步登记并重试。
package shipment

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
	"unicode/utf8"

	"webshop/internal/model"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

var ErrNotFound = errors.New("shipment not found")

const maxErrorMsg = 255

// Task 一个待登记包裹。
type Task struct {
	OrderID string
	Name    string
	Email   string
	Phone   string
	PointID model.PointID
}

// Outbox shipments 表的读写入口。
type Outbox struct {
	db   *gorm.DB
	wake chan struct{}
}

// Open 打开（必要时创建）SQLite 文件并自动建表。
func Open(path string) (*gorm.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("outbox open: %w", err)
	}
	// SQLite 单写者，限制连接数避免 database is locked
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(1)
	}
	if err := db.AutoMigrate(&model.Shipment{}); err != nil {
		return nil, fmt.Errorf("outbox migrate: %w", err)
	}
	return db, nil
}

func NewOutbox(db *gorm.DB) *Outbox {
	return &Outbox{db: db, wake: make(chan struct{}, 1)}
}

// Schedule 写入一条 pending 记录并唤醒 Worker。同一订单重复调用不会产生第二条。
func (o *Outbox) Schedule(ctx context.Context, t Task) error {
	if t.OrderID == "" || t.PointID == "" {
		return fmt.Errorf("shipment task requires order id and point id")
	}
	row := &model.Shipment{
		OrderID:        t.OrderID,
		RecipientName:  t.Name,
		RecipientEmail: t.Email,
		RecipientPhone: t.Phone,
		PointID:        string(t.PointID),
		Status:         model.ShipmentPending,
		NextAttemptAt:  time.Now().UnixMilli(),
	}
	err := o.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "order_id"}}, DoNothing: true}).
		Create(row).Error
	if err != nil {
		return fmt.Errorf("schedule shipment %s: %w", t.OrderID, err)
	}
	select {
	case o.wake <- struct{}{}:
	default:
	}
	return nil
}

// Pending 按创建顺序返回 now 时刻已到期的待处理记录。
func (o *Outbox) Pending(ctx context.Context, now time.Time, limit int) ([]model.Shipment, error) {
	var list []model.Shipment
	err := o.db.WithContext(ctx).
		Where("status = ? AND next_attempt_at <= ?", model.ShipmentPending, now.UnixMilli()).
		Order("id ASC").
		Limit(limit).
		Find(&list).Error
	return list, err
}

// Get 按订单号查询。
func (o *Outbox) Get(ctx context.Context, orderID string) (model.Shipment, error) {
	var s model.Shipment
	err := o.db.WithContext(ctx).Where("order_id = ?", orderID).First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Shipment{}, ErrNotFound
	}
	return s, err
}

func (o *Outbox) markRegistered(ctx context.Context, s model.Shipment, trackingRef string) error {
	return o.db.WithContext(ctx).Model(&model.Shipment{}).
		Where("id = ?", s.ID).
		Updates(map[string]any{
			"status":       model.ShipmentRegistered,
			"attempts":     s.Attempts + 1,
			"tracking_ref": trackingRef,
			"error_msg":    "",
		}).Error
}

// markAttemptFailed 记一次失败，next 之前不再重试；次数到上限后转为 failed 终态。返回是否已是终态。
func (o *Outbox) markAttemptFailed(ctx context.Context, s model.Shipment, cause error, maxAttempts int, next time.Time) (bool, error) {
	attempts := s.Attempts + 1
	status := model.ShipmentPending
	if attempts >= maxAttempts {
		status = model.ShipmentFailed
	}
	err := o.db.WithContext(ctx).Model(&model.Shipment{}).
		Where("id = ?", s.ID).
		Updates(map[string]any{
			"status":          status,
			"attempts":        attempts,
			"error_msg":       truncateRunes(cause.Error(), maxErrorMsg),
			"next_attempt_at": next.UnixMilli(),
		}).Error
	return status == model.ShipmentFailed, err
}

// truncateRunes 截到至多 n 字节，不切断多字节字符。
func truncateRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
