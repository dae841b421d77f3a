package model

import (
	"database/sql/driver"
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"
)

// ── PostgreSQL TEXT[] 自定义类型 ──

// StringArray 对应 PostgreSQL TEXT[] 类型，编解码委托给 pq.StringArray。
// 保留元素顺序；nil 写入为空数组 '{}'，与列的 NOT NULL 约束一致。
type StringArray []string

// Scan 实现 sql.Scanner
func (a *StringArray) Scan(src interface{}) error {
	var arr pq.StringArray
	if err := arr.Scan(src); err != nil {
		return err
	}
	if arr == nil {
		*a = StringArray{}
		return nil
	}
	*a = StringArray(arr)
	return nil
}

// Value 实现 driver.Valuer
func (a StringArray) Value() (driver.Value, error) {
	if a == nil {
		return "{}", nil
	}
	return pq.StringArray(a).Value()
}

// GormDataType 列类型
func (StringArray) GormDataType() string {
	return "text[]"
}

// Contains 是否包含 s
func (a StringArray) Contains(s string) bool {
	return a.IndexOf(s) >= 0
}

// IndexOf 返回 s 首次出现的位置，不存在返回 -1
func (a StringArray) IndexOf(s string) int {
	for i, v := range a {
		if v == s {
			return i
		}
	}
	return -1
}

// Without 返回移除全部 s 后的新切片，其余元素顺序不变
func (a StringArray) Without(s string) StringArray {
	out := make(StringArray, 0, len(a))
	for _, v := range a {
		if v != s {
			out = append(out, v)
		}
	}
	return out
}

// BaseModel 通用审计字段（所有业务模型嵌入）
type BaseModel struct {
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"createdAt"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updatedAt"`
	UpdatedBy *string   `gorm:"type:uuid"                          json:"-"`
}

// SoftDeleteModel 支持软删除的审计字段
type SoftDeleteModel struct {
	BaseModel
	DeletedAt gorm.DeletedAt `gorm:"index"     json:"-"`
	DeletedBy *string        `gorm:"type:uuid" json:"-"`
}

// VersionedModel 支持乐观锁的软删除模型
type VersionedModel struct {
	SoftDeleteModel
	Version int `gorm:"not null;default:1" json:"-"`
}
