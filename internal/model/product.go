package model

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// Product 商品目录条目：库存（quantity）只由下单流程扣减。
type Product struct {
	ID       int             `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity"`

	// 店面展示字段，原样保存
	Description string `json:"description,omitempty"`
	Image       string `json:"image,omitempty"`
	Category    string `json:"category,omitempty"`

	// Extra 目录文件里的其它字段，写回时保持原值
	Extra map[string]json.RawMessage `json:"-"`
}

// productJSON 目录文件的磁盘格式，价格始终是 JSON 数字。
type productJSON struct {
	ID          int         `json:"id"`
	Name        string      `json:"name"`
	Price       json.Number `json:"price"`
	Quantity    int         `json:"quantity"`
	Description string      `json:"description,omitempty"`
	Image       string      `json:"image,omitempty"`
	Category    string      `json:"category,omitempty"`
}

var productKeys = []string{"id", "name", "price", "quantity", "description", "image", "category"}

func (p *Product) UnmarshalJSON(b []byte) error {
	var f productJSON
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	price := decimal.Zero
	if f.Price != "" {
		d, err := decimal.NewFromString(f.Price.String())
		if err != nil {
			return err
		}
		price = d
	}

	var extra map[string]json.RawMessage
	if err := json.Unmarshal(b, &extra); err != nil {
		return err
	}
	for _, k := range productKeys {
		delete(extra, k)
	}
	if len(extra) == 0 {
		extra = nil
	}

	*p = Product{
		ID:          f.ID,
		Name:        f.Name,
		Price:       price,
		Quantity:    f.Quantity,
		Description: f.Description,
		Image:       f.Image,
		Category:    f.Category,
		Extra:       extra,
	}
	return nil
}

func (p Product) MarshalJSON() ([]byte, error) {
	b, err := json.Marshal(productJSON{
		ID:          p.ID,
		Name:        p.Name,
		Price:       json.Number(p.Price.String()),
		Quantity:    p.Quantity,
		Description: p.Description,
		Image:       p.Image,
		Category:    p.Category,
	})
	if err != nil || len(p.Extra) == 0 {
		return b, err
	}

	fields := make(map[string]json.RawMessage, len(p.Extra)+len(productKeys))
	for k, v := range p.Extra {
		fields[k] = v
	}
	var known map[string]json.RawMessage
	if err := json.Unmarshal(b, &known); err != nil {
		return nil, err
	}
	for k, v := range known {
		fields[k] = v
	}
	return json.Marshal(fields)
}
