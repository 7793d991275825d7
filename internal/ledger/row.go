package ledger

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"webshop/internal/model"

	"github.com/shopspring/decimal"
)

const (
	LabelFoxpost       = "FoxPost automata"
	LabelHome          = "Házhozszállítás"
	LabelPaymentMethod = "Bankkártya (Stripe)"
	DefaultPayment     = "Sikeres"
	Placeholder        = "-"

	dateLayout = "2006. 01. 02. 15:04:05"
)

var budapest = loadLocation("Europe/Budapest")

func loadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.Local
	}
	return loc
}

// FormatDate 按匈牙利本地习惯格式化入账时间。
func FormatDate(t time.Time) string {
	return t.In(budapest).Format(dateLayout)
}

// BuildRow 把订单投影成一行台账；单向转换。
func BuildRow(o model.Order, at time.Time) model.LedgerRow {
	row := model.LedgerRow{
		OrderID:         o.OrderID,
		Date:            FormatDate(at),
		Name:            o.CustomerInfo.Name,
		Email:           o.CustomerInfo.Email,
		Phone:           o.CustomerInfo.Phone,
		ShippingMethod:  LabelHome,
		FoxpostLocation: Placeholder,
		Address:         Placeholder,
		Items:           ItemsSummary(o.Items),
		TotalQuantity:   o.TotalQuantity(),
		Total:           o.Total,
		PaymentMethod:   LabelPaymentMethod,
		PaymentStatus:   o.PaymentStatus,
		Notes:           orPlaceholder(o.CustomerInfo.Notes),
	}
	if o.ShippingMethod == model.ShippingFoxpost {
		row.ShippingMethod = LabelFoxpost
		row.FoxpostLocation = orPlaceholder(o.FoxpostLocation)
	}
	if o.ShippingMethod == model.ShippingHome {
		c := o.CustomerInfo
		row.Address = fmt.Sprintf("%s %s, %s", c.ZipCode, c.City, c.Address)
	}
	if strings.TrimSpace(row.PaymentStatus) == "" {
		row.PaymentStatus = DefaultPayment
	}
	return row
}

// ItemsSummary 生成 "名称 (数量db × 单价 Ft)" 列表，用 "; " 连接。
func ItemsSummary(items []model.OrderItem) string {
	parts := make([]string, 0, len(items))
	for _, it := range items {
		name := it.Name
		if name == "" {
			name = "#" + strconv.Itoa(it.ProductID)
		}
		parts = append(parts, fmt.Sprintf("%s (%ddb × %s Ft)", name, it.Quantity, it.UnitPrice.String()))
	}
	return strings.Join(parts, "; ")
}

func orPlaceholder(s string) string {
	if strings.TrimSpace(s) == "" {
		return Placeholder
	}
	return s
}

// values 按 Columns 顺序输出单元格值；数量和金额写成数字单元格。
func values(r model.LedgerRow) []interface{} {
	return []interface{}{
		r.OrderID,
		r.Date,
		r.Name,
		r.Email,
		r.Phone,
		r.ShippingMethod,
		r.FoxpostLocation,
		r.Address,
		r.Items,
		r.TotalQuantity,
		r.Total.InexactFloat64(),
		r.PaymentMethod,
		r.PaymentStatus,
		r.Notes,
	}
}

// parseRow 按列位置读回一行。缺失的尾部单元格留空，数字列解析失败记为 0。
func parseRow(cells []string) model.LedgerRow {
	at := func(i int) string {
		if i < len(cells) {
			return cells[i]
		}
		return ""
	}
	qty, _ := strconv.Atoi(strings.TrimSpace(at(9)))
	total, err := decimal.NewFromString(strings.TrimSpace(at(10)))
	if err != nil {
		total = decimal.Zero
	}
	return model.LedgerRow{
		OrderID:         at(0),
		Date:            at(1),
		Name:            at(2),
		Email:           at(3),
		Phone:           at(4),
		ShippingMethod:  at(5),
		FoxpostLocation: at(6),
		Address:         at(7),
		Items:           at(8),
		TotalQuantity:   qty,
		Total:           total,
		PaymentMethod:   at(11),
		PaymentStatus:   at(12),
		Notes:           at(13),
	}
}
