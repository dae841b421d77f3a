package dto

// ── 活动模块 DTO ──

// CreateEventRequest 创建活动请求
// Capacity 使用 interface{} 接收，以便对非整数输入给出字段级错误
type CreateEventRequest struct {
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Date        string      `json:"date"`
	Location    string      `json:"location"`
	Category    string      `json:"category"`
	Capacity    interface{} `json:"capacity"`
}

// UpdateEventRequest 部分更新活动请求，nil 字段保持不变
type UpdateEventRequest struct {
	Title         *string     `json:"title"`
	Description   *string     `json:"description"`
	Date          *string     `json:"date"`
	Location      *string     `json:"location"`
	Category      *string     `json:"category"`
	Capacity      interface{} `json:"capacity"`
	ClearCapacity bool        `json:"clearCapacity"`
}

// EventListRequest 活动列表过滤参数
type EventListRequest struct {
	Category string `form:"category"`
	From     string `form:"from"`
	To       string `form:"to"`
}
