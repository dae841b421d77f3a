package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"campus-events/internal/dto"
	"campus-events/internal/model"
)

// ────────────────────── GetMe / MyEvents ──────────────────────

func TestGetMe_ExpandsRegisteredEventsInOrder(t *testing.T) {
	env := newTestEnv()
	admin := env.addUser("admin", model.RoleAdmin)
	alice := env.addUser("alice", model.RoleUser)
	first := env.addEvent(admin, nil)
	second := env.addEvent(admin, nil)
	ctx := context.Background()

	if _, err := env.svc.Registration.Register(ctx, second.EventID, alice.UserID); err != nil {
		t.Fatalf("报名失败: %v", err)
	}
	if _, err := env.svc.Registration.Register(ctx, first.EventID, alice.UserID); err != nil {
		t.Fatalf("报名失败: %v", err)
	}

	me, err := env.svc.User.GetMe(ctx, alice.UserID)
	if err != nil {
		t.Fatalf("GetMe 应成功: %v", err)
	}
	if len(me.RegisteredEvents) != 2 {
		t.Fatalf("期望 2 个已报名活动，实际 %d", len(me.RegisteredEvents))
	}
	if me.RegisteredEvents[0].ID != second.EventID || me.RegisteredEvents[1].ID != first.EventID {
		t.Error("已报名活动应保持报名先后顺序")
	}
	if me.RegisteredEvents[0].CreatedBy.Name != "admin" {
		t.Errorf("创建者应展开为姓名，实际 %q", me.RegisteredEvents[0].CreatedBy.Name)
	}

	events, err := env.svc.User.MyEvents(ctx, alice.UserID)
	if err != nil {
		t.Fatalf("MyEvents 应成功: %v", err)
	}
	if len(events) != 2 {
		t.Errorf("MyEvents 期望 2 条，实际 %d", len(events))
	}
}

func TestMyEvents_Empty(t *testing.T) {
	env := newTestEnv()
	alice := env.addUser("alice", model.RoleUser)

	events, err := env.svc.User.MyEvents(context.Background(), alice.UserID)
	if err != nil {
		t.Fatalf("MyEvents 应成功: %v", err)
	}
	if events == nil || len(events) != 0 {
		t.Errorf("未报名时应返回空列表而非 nil，实际 %v", events)
	}
}

// ────────────────────── UpdateProfile ──────────────────────

func TestUpdateProfile(t *testing.T) {
	env := newTestEnv()
	alice := env.addUser("alice", model.RoleUser)
	env.addUser("bob", model.RoleUser)
	ctx := context.Background()

	resp, err := env.svc.User.UpdateProfile(ctx, alice.UserID, &dto.UpdateProfileRequest{
		Name:    "Alice Liddell",
		Email:   "Alice.L@campus.test",
		College: strPtr("Engineering"),
		Bio:     strPtr("   "),
	})
	if err != nil {
		t.Fatalf("UpdateProfile 应成功: %v", err)
	}
	if resp.Email != "alice.l@campus.test" {
		t.Errorf("邮箱应规范化，实际 %q", resp.Email)
	}
	if resp.College != "Engineering" || resp.Bio != "" {
		t.Errorf("资料字段不符: college=%q bio=%q", resp.College, resp.Bio)
	}

	_, err = env.svc.User.UpdateProfile(ctx, alice.UserID, &dto.UpdateProfileRequest{
		Name: "Alice", Email: "bob@campus.test",
	})
	if !errors.Is(err, ErrEmailInUse) {
		t.Errorf("使用他人邮箱期望 ErrEmailInUse，实际: %v", err)
	}

	_, err = env.svc.User.UpdateProfile(ctx, alice.UserID, &dto.UpdateProfileRequest{Name: "", Email: "x"})
	if _, ok := IsValidationError(err); !ok {
		t.Errorf("非法输入期望 ValidationError，实际: %v", err)
	}
}

// ────────────────────── UpdatePreferences ──────────────────────

func TestUpdatePreferences(t *testing.T) {
	env := newTestEnv()
	alice := env.addUser("alice", model.RoleUser)
	ctx := context.Background()

	resp, err := env.svc.User.UpdatePreferences(ctx, alice.UserID, &dto.UpdatePreferencesRequest{
		Preferences: json.RawMessage(`[" sports ", "music", "", "sports"]`),
	})
	if err != nil {
		t.Fatalf("UpdatePreferences 应成功: %v", err)
	}
	if len(resp.Preferences) != 2 || resp.Preferences[0] != "sports" || resp.Preferences[1] != "music" {
		t.Errorf("偏好应去空白去重，实际 %v", resp.Preferences)
	}

	for _, raw := range []string{`"sports"`, `{"a":1}`, ``, `[1,2]`} {
		_, err := env.svc.User.UpdatePreferences(ctx, alice.UserID, &dto.UpdatePreferencesRequest{
			Preferences: json.RawMessage(raw),
		})
		if !errors.Is(err, ErrPreferencesFormat) {
			t.Errorf("输入 %q 期望 ErrPreferencesFormat，实际: %v", raw, err)
		}
	}
}

// ────────────────────── List ──────────────────────

func TestListUsers_AdminOnly(t *testing.T) {
	env := newTestEnv()
	admin := env.addUser("admin", model.RoleAdmin)
	alice := env.addUser("alice", model.RoleUser)
	env.addUser("bob", model.RoleUser)
	ctx := context.Background()

	if _, _, err := env.svc.User.List(ctx, alice.UserID, &dto.UserListRequest{}); !errors.Is(err, ErrForbidden) {
		t.Errorf("普通用户期望 ErrForbidden，实际: %v", err)
	}

	list, total, err := env.svc.User.List(ctx, admin.UserID, &dto.UserListRequest{
		PaginationRequest: dto.PaginationRequest{Page: 2, PageSize: 2},
	})
	if err != nil {
		t.Fatalf("List 应成功: %v", err)
	}
	if total != 3 || len(list) != 1 {
		t.Errorf("分页结果不符: total=%d len=%d", total, len(list))
	}
	if list[0].Name != "bob" {
		t.Errorf("第 2 页应为 bob，实际 %q", list[0].Name)
	}
}

// ────────────────────── Delete ──────────────────────

func TestDeleteUser_CascadesRegistrations(t *testing.T) {
	env := newTestEnv()
	admin := env.addUser("admin", model.RoleAdmin)
	alice := env.addUser("alice", model.RoleUser)
	event := env.addEvent(admin, intPtr(5))
	ctx := context.Background()

	if _, err := env.svc.Registration.Register(ctx, event.EventID, alice.UserID); err != nil {
		t.Fatalf("报名失败: %v", err)
	}

	if err := env.svc.User.Delete(ctx, admin.UserID, alice.UserID); err != nil {
		t.Fatalf("Delete 应成功: %v", err)
	}
	if _, err := env.users.GetByID(ctx, alice.UserID); err == nil {
		t.Error("删除后用户不应再可见")
	}
	got, _ := env.events.GetByID(ctx, event.EventID)
	if got.HasRegistrant(alice.UserID) {
		t.Error("删除用户后应从活动报名名单中移除")
	}

	if err := env.svc.User.Delete(ctx, admin.UserID, alice.UserID); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("重复删除期望 ErrUserNotFound，实际: %v", err)
	}
}

func TestDeleteUser_Guards(t *testing.T) {
	env := newTestEnv()
	admin := env.addUser("admin", model.RoleAdmin)
	alice := env.addUser("alice", model.RoleUser)
	ctx := context.Background()

	if err := env.svc.User.Delete(ctx, alice.UserID, admin.UserID); !errors.Is(err, ErrForbidden) {
		t.Errorf("普通用户删除他人期望 ErrForbidden，实际: %v", err)
	}
	if err := env.svc.User.Delete(ctx, admin.UserID, admin.UserID); !errors.Is(err, ErrUserSelfDelete) {
		t.Errorf("删除自己期望 ErrUserSelfDelete，实际: %v", err)
	}
}

// ────────────────────── 运维命令 ──────────────────────

func TestCreateAdminAndPromote(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	created, err := env.svc.User.CreateAdmin(ctx, "Root", "root@campus.test", "rootpass")
	if err != nil {
		t.Fatalf("CreateAdmin 应成功: %v", err)
	}
	if !created.IsAdmin {
		t.Error("CreateAdmin 应创建管理员")
	}
	stored, _ := env.users.GetByEmail(ctx, "root@campus.test")
	if bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("rootpass")) != nil {
		t.Error("管理员密码应可用于登录")
	}

	alice := env.addUser("alice", model.RoleUser)
	promoted, err := env.svc.User.Promote(ctx, alice.Email)
	if err != nil {
		t.Fatalf("Promote 应成功: %v", err)
	}
	if !promoted.IsAdmin {
		t.Error("Promote 后应为管理员")
	}

	again, err := env.svc.User.CreateAdmin(ctx, "ignored", alice.Email, "")
	if err != nil || again.ID != alice.UserID {
		t.Errorf("已存在邮箱应直接返回该用户: %v", err)
	}

	if _, err := env.svc.User.Promote(ctx, "nobody@campus.test"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("期望 ErrUserNotFound，实际: %v", err)
	}

	all, err := env.svc.User.ListAll(ctx)
	if err != nil || len(all) != 2 {
		t.Errorf("ListAll 期望 2 个用户，实际 %d (%v)", len(all), err)
	}
}
