package model

import (
	"database/sql/driver"
	"fmt"
	"strings"
	"time"
)

// ── PostgreSQL UUID[] 自定义类型 ──

// StringArray 对应 PostgreSQL UUID[] / TEXT[]，实现 GORM Scanner/Valuer 接口。
// 仅用于不含逗号、引号的元素（UUID）。
type StringArray []string

// Scan 将 PostgreSQL 返回的 {a,b,c} 文本解析为 []string。
func (a *StringArray) Scan(src interface{}) error {
	if src == nil {
		*a = nil
		return nil
	}
	var s string
	switch v := src.(type) {
	case []byte:
		s = string(v)
	case string:
		s = v
	default:
		return fmt.Errorf("StringArray.Scan: unsupported type %T", src)
	}
	s = strings.Trim(s, "{}")
	if s == "" {
		*a = StringArray{}
		return nil
	}
	parts := strings.Split(s, ",")
	arr := make(StringArray, 0, len(parts))
	for _, p := range parts {
		arr = append(arr, strings.Trim(strings.TrimSpace(p), `"`))
	}
	*a = arr
	return nil
}

// Value 将 []string 序列化为 PostgreSQL {a,b,c} 文本。
func (a StringArray) Value() (driver.Value, error) {
	if a == nil {
		return "{}", nil
	}
	return "{" + strings.Join(a, ",") + "}", nil
}

// Contains 判断是否包含指定元素
func (a StringArray) Contains(s string) bool {
	for _, v := range a {
		if v == s {
			return true
		}
	}
	return false
}

// BaseModel 通用审计字段（所有业务模型嵌入）
type BaseModel struct {
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}
