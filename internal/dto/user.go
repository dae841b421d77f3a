package dto

import "encoding/json"

// ── 用户模块 DTO ──

// UserListRequest 用户列表查询参数
type UserListRequest struct {
	PaginationRequest
}

// UpdateProfileRequest 更新个人资料请求
// 可选字段缺省时清空
type UpdateProfileRequest struct {
	Name           string  `json:"name"`
	Email          string  `json:"email"`
	Bio            *string `json:"bio"`
	College        *string `json:"college"`
	Major          *string `json:"major"`
	GraduationYear *string `json:"graduationYear"`
}

// UpdatePreferencesRequest 更新偏好标签请求
// 保留原始 JSON 以区分“不是数组”与“空数组”
type UpdatePreferencesRequest struct {
	Preferences json.RawMessage `json:"preferences"`
}
