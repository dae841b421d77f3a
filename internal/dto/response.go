package dto

// ── 认证模块响应 ──

// TokenResponse Token 对响应
type TokenResponse struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int    `json:"expiresIn"` // Access Token 有效期（秒）
}

// ── 用户模块响应 ──

// UserBrief 用户简要信息（活动创建者、报名者）
type UserBrief struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// UserResponse 用户信息响应（脱敏），registeredEvents 为活动 ID 列表
type UserResponse struct {
	ID               string   `json:"id"`
	Name             string   `json:"name"`
	Email            string   `json:"email"`
	Role             string   `json:"role"`
	IsAdmin          bool     `json:"isAdmin"`
	Bio              string   `json:"bio"`
	College          string   `json:"college"`
	Major            string   `json:"major"`
	GraduationYear   string   `json:"graduationYear"`
	Preferences      []string `json:"preferences"`
	RegisteredEvents []string `json:"registeredEvents"`
	CreatedAt        string   `json:"createdAt"`
}

// UserDetailResponse 用户详细信息，registeredEvents 展开为活动
type UserDetailResponse struct {
	ID               string          `json:"id"`
	Name             string          `json:"name"`
	Email            string          `json:"email"`
	Role             string          `json:"role"`
	IsAdmin          bool            `json:"isAdmin"`
	Bio              string          `json:"bio"`
	College          string          `json:"college"`
	Major            string          `json:"major"`
	GraduationYear   string          `json:"graduationYear"`
	Preferences      []string        `json:"preferences"`
	RegisteredEvents []EventResponse `json:"registeredEvents"`
	CreatedAt        string          `json:"createdAt"`
}

// ── 活动模块响应 ──

// EventResponse 活动视图，创建者与报名者展开为 {id, name}
type EventResponse struct {
	ID              string      `json:"id"`
	Title           string      `json:"title"`
	Description     string      `json:"description"`
	Date            string      `json:"date"`
	Location        string      `json:"location"`
	Category        string      `json:"category"`
	Capacity        *int        `json:"capacity,omitempty"`
	CreatedBy       UserBrief   `json:"createdBy"`
	RegisteredUsers []UserBrief `json:"registeredUsers"`
	CreatedAt       string      `json:"createdAt"`
	UpdatedAt       string      `json:"updatedAt"`
}

// ReconcileResponse 对账结果
type ReconcileResponse struct {
	EventsScanned      int `json:"eventsScanned"`
	UsersScanned       int `json:"usersScanned"`
	RegistrantsDropped int `json:"registrantsDropped"`
	UserRefsAdded      int `json:"userRefsAdded"`
	UserRefsDropped    int `json:"userRefsDropped"`
}

// ── 分页请求 ──

// PaginationRequest 通用分页参数
type PaginationRequest struct {
	Page     int `form:"page"      binding:"omitempty,min=1"`
	PageSize int `form:"page_size" binding:"omitempty,min=1,max=100"`
}

// GetPage 获取页码（含默认值）
func (p *PaginationRequest) GetPage() int {
	if p.Page <= 0 {
		return 1
	}
	return p.Page
}

// GetPageSize 获取每页数量（含默认值与上限）
func (p *PaginationRequest) GetPageSize() int {
	switch {
	case p.PageSize <= 0:
		return 20
	case p.PageSize > 100:
		return 100
	}
	return p.PageSize
}

// GetOffset 计算偏移量
func (p *PaginationRequest) GetOffset() int {
	return (p.GetPage() - 1) * p.GetPageSize()
}
