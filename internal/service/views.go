package service

import (
	"context"
	"fmt"
	"time"

	"campus-events/internal/dto"
	"campus-events/internal/model"
	"campus-events/internal/repository"
)

// ── 模型到响应的投影 ──

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func nonNil(a []string) []string {
	if a == nil {
		return []string{}
	}
	return a
}

func toUserResponse(u *model.User) dto.UserResponse {
	return dto.UserResponse{
		ID:               u.UserID,
		Name:             u.Name,
		Email:            u.Email,
		Role:             string(u.Role),
		IsAdmin:          u.Role.IsAdmin(),
		Bio:              deref(u.Bio),
		College:          deref(u.College),
		Major:            deref(u.Major),
		GraduationYear:   deref(u.GraduationYear),
		Preferences:      nonNil(u.Preferences),
		RegisteredEvents: nonNil(u.RegisteredEvents),
		CreatedAt:        formatTime(u.CreatedAt),
	}
}

func toUserDetail(u *model.User, events []dto.EventResponse) *dto.UserDetailResponse {
	if events == nil {
		events = []dto.EventResponse{}
	}
	return &dto.UserDetailResponse{
		ID:               u.UserID,
		Name:             u.Name,
		Email:            u.Email,
		Role:             string(u.Role),
		IsAdmin:          u.Role.IsAdmin(),
		Bio:              deref(u.Bio),
		College:          deref(u.College),
		Major:            deref(u.Major),
		GraduationYear:   deref(u.GraduationYear),
		Preferences:      nonNil(u.Preferences),
		RegisteredEvents: events,
		CreatedAt:        formatTime(u.CreatedAt),
	}
}

// eventViews 将活动展开为视图：创建者与报名者解析为 {id, name}
// 一次批量查询所需的全部用户
func eventViews(ctx context.Context, repo *repository.Repository, events []model.Event) ([]dto.EventResponse, error) {
	ids := make([]string, 0, len(events)*2)
	for i := range events {
		ids = append(ids, events[i].CreatedBy)
		ids = append(ids, events[i].RegisteredUsers...)
	}

	users, err := repo.User.GetByIDs(ctx, dedupe(ids))
	if err != nil {
		return nil, fmt.Errorf("查询活动关联用户失败: %w", err)
	}
	names := make(map[string]string, len(users))
	for i := range users {
		names[users[i].UserID] = users[i].Name
	}

	out := make([]dto.EventResponse, 0, len(events))
	for i := range events {
		out = append(out, toEventResponse(&events[i], names))
	}
	return out, nil
}

func eventView(ctx context.Context, repo *repository.Repository, event *model.Event) (*dto.EventResponse, error) {
	views, err := eventViews(ctx, repo, []model.Event{*event})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

func toEventResponse(e *model.Event, names map[string]string) dto.EventResponse {
	registrants := make([]dto.UserBrief, 0, len(e.RegisteredUsers))
	for _, uid := range e.RegisteredUsers {
		registrants = append(registrants, dto.UserBrief{ID: uid, Name: names[uid]})
	}
	return dto.EventResponse{
		ID:              e.EventID,
		Title:           e.Title,
		Description:     e.Description,
		Date:            formatTime(e.Date),
		Location:        e.Location,
		Category:        string(e.Category),
		Capacity:        e.Capacity,
		CreatedBy:       dto.UserBrief{ID: e.CreatedBy, Name: names[e.CreatedBy]},
		RegisteredUsers: registrants,
		CreatedAt:       formatTime(e.CreatedAt),
		UpdatedAt:       formatTime(e.UpdatedAt),
	}
}

// orderedEvents 按 ids 顺序排列活动，丢弃已不存在的 ID
func orderedEvents(ids []string, events []model.Event) []model.Event {
	byID := make(map[string]model.Event, len(events))
	for _, e := range events {
		byID[e.EventID] = e
	}
	out := make([]model.Event, 0, len(ids))
	for _, id := range ids {
		if e, ok := byID[id]; ok {
			out = append(out, e)
		}
	}
	return out
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
