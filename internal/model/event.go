package model

import "time"

// Category 活动分类
type Category string

const (
	CategorySocial   Category = "social"
	CategoryAcademic Category = "academic"
	CategorySports   Category = "sports"
	CategoryCultural Category = "cultural"
	CategoryOther    Category = "other"
)

// Categories 全部合法分类
var Categories = []Category{CategorySocial, CategoryAcademic, CategorySports, CategoryCultural, CategoryOther}

// Valid 是否为合法分类
func (c Category) Valid() bool {
	for _, v := range Categories {
		if c == v {
			return true
		}
	}
	return false
}

// Event 活动表，对应 events
// RegisteredUsers 按报名先后排列
type Event struct {
	EventID         string      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	Title           string      `gorm:"type:varchar(200);not null"                     json:"title"`
	Description     string      `gorm:"type:text;not null"                             json:"description"`
	Date            time.Time   `gorm:"not null"                                       json:"date"`
	Location        string      `gorm:"type:varchar(200);not null"                     json:"location"`
	Category        Category    `gorm:"type:varchar(20);not null"                      json:"category"`
	Capacity        *int        `gorm:""                                               json:"capacity,omitempty"`
	CreatedBy       string      `gorm:"type:uuid;not null"                             json:"createdBy"`
	RegisteredUsers StringArray `gorm:"type:text[];not null;default:'{}'"              json:"registeredUsers"`
	VersionedModel
}

// TableName 指定表名
func (Event) TableName() string { return "events" }

// IsFull 容量已满（未设置容量视为不限）
func (e *Event) IsFull() bool {
	return e.Capacity != nil && len(e.RegisteredUsers) >= *e.Capacity
}

// HasRegistrant 用户是否已报名
func (e *Event) HasRegistrant(userID string) bool {
	return e.RegisteredUsers.Contains(userID)
}
