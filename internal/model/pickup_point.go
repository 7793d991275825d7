package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// PointID 自提柜编号。前端和 FoxPost 接口可能给数字也可能给字符串，统一存成字符串。
type PointID string

func (p *PointID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*p = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*p = PointID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("pickup point id: %w", err)
	}
	*p = PointID(n.String())
	return nil
}

// MarshalJSON 纯数字编号按数字输出，与 FoxPost 原始数据保持一致。
func (p PointID) MarshalJSON() ([]byte, error) {
	s := string(p)
	if n, err := strconv.ParseUint(s, 10, 64); err == nil && strconv.FormatUint(n, 10) == s {
		return []byte(s), nil
	}
	return json.Marshal(s)
}

// PickupPoint 自提柜位置。
type PickupPoint struct {
	ID      PointID `json:"id"`
	Name    string  `json:"name"`
	Address string  `json:"address"`
}
