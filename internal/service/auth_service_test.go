package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"campus-events/internal/dto"
	"campus-events/internal/model"
	"campus-events/pkg/jwt"
)

// ── Mock TokenStore ──

type mockTokenStore struct {
	mu      sync.Mutex
	revoked map[string]time.Duration
}

func newMockTokenStore() *mockTokenStore {
	return &mockTokenStore{revoked: make(map[string]time.Duration)}
}

func (m *mockTokenStore) RevokeToken(_ context.Context, jti string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.revoked[jti] = ttl
	return nil
}

func (m *mockTokenStore) IsRevoked(_ context.Context, jti string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.revoked[jti]
	return ok, nil
}

func setupTestAuthService() (AuthService, *testEnv, *mockTokenStore) {
	env := newTestEnv()
	tokens := newMockTokenStore()
	cfg := newTestEnvConfig()
	svc := NewAuthService(cfg, env.repo(), jwt.NewManager(&cfg.Auth), tokens, env.metrics, env.logger())
	return svc, env, tokens
}

// ────────────────────── Register ──────────────────────

func TestRegister_FirstUserBecomesAdmin(t *testing.T) {
	svc, env, _ := setupTestAuthService()

	resp, err := svc.Register(context.Background(), &dto.RegisterRequest{
		Name: "Ada", Email: "Ada@Campus.Test", Password: "secret1",
	})
	if err != nil {
		t.Fatalf("Register 应成功，但返回错误: %v", err)
	}
	if resp.Token == "" || resp.RefreshToken == "" {
		t.Fatal("Register 应返回 Token 对")
	}
	if resp.ExpiresIn != int((5 * time.Hour).Seconds()) {
		t.Errorf("ExpiresIn 期望 %d，实际 %d", int((5 * time.Hour).Seconds()), resp.ExpiresIn)
	}

	user, err := env.users.GetByEmail(context.Background(), "ada@campus.test")
	if err != nil {
		t.Fatalf("邮箱应被规范化为小写: %v", err)
	}
	if user.Role != model.RoleAdmin {
		t.Errorf("第一个用户应为管理员，实际角色: %s", user.Role)
	}
	if user.PasswordHash == "secret1" {
		t.Error("密码不应明文保存")
	}

	if _, err := svc.Register(context.Background(), &dto.RegisterRequest{
		Name: "Ben", Email: "ben@campus.test", Password: "secret2",
	}); err != nil {
		t.Fatalf("第二个用户注册应成功: %v", err)
	}
	second, _ := env.users.GetByEmail(context.Background(), "ben@campus.test")
	if second.Role != model.RoleUser {
		t.Errorf("后续用户应为普通用户，实际角色: %s", second.Role)
	}
}

func TestRegister_DuplicateEmail(t *testing.T) {
	svc, _, _ := setupTestAuthService()
	req := &dto.RegisterRequest{Name: "Ada", Email: "ada@campus.test", Password: "secret1"}

	if _, err := svc.Register(context.Background(), req); err != nil {
		t.Fatalf("首次注册应成功: %v", err)
	}
	req.Email = "ADA@campus.test"
	_, err := svc.Register(context.Background(), req)
	if !errors.Is(err, ErrUserExists) {
		t.Errorf("期望 ErrUserExists，实际: %v", err)
	}
}

func TestRegister_ValidationErrors(t *testing.T) {
	svc, env, _ := setupTestAuthService()

	_, err := svc.Register(context.Background(), &dto.RegisterRequest{
		Name: "  ", Email: "not-an-email", Password: "123",
	})
	verr, ok := IsValidationError(err)
	if !ok {
		t.Fatalf("期望 ValidationError，实际: %v", err)
	}
	if len(verr.Fields) != 3 {
		t.Fatalf("期望 3 个字段错误，实际 %d: %v", len(verr.Fields), verr.Fields)
	}
	want := map[string]string{
		"name":     "Name is required",
		"email":    "Please include a valid email",
		"password": "Please enter a password with 6 or more characters",
	}
	for _, f := range verr.Fields {
		if want[f.Field] != f.Msg {
			t.Errorf("字段 %s 的错误信息不符: %q", f.Field, f.Msg)
		}
	}
	if n, _ := env.users.Count(context.Background()); n != 0 {
		t.Errorf("校验失败时不应创建用户，实际用户数 %d", n)
	}
}

// ────────────────────── Login ──────────────────────

func TestLogin_Success(t *testing.T) {
	svc, _, _ := setupTestAuthService()
	_, _ = svc.Register(context.Background(), &dto.RegisterRequest{
		Name: "Ada", Email: "ada@campus.test", Password: "secret1",
	})

	resp, err := svc.Login(context.Background(), &dto.LoginRequest{
		Email: " ADA@campus.test ", Password: "secret1",
	})
	if err != nil {
		t.Fatalf("Login 应成功，但返回错误: %v", err)
	}
	if resp.Token == "" {
		t.Error("Token 不应为空")
	}
}

func TestLogin_WrongPasswordAndUnknownEmail(t *testing.T) {
	svc, _, _ := setupTestAuthService()
	_, _ = svc.Register(context.Background(), &dto.RegisterRequest{
		Name: "Ada", Email: "ada@campus.test", Password: "secret1",
	})

	if _, err := svc.Login(context.Background(), &dto.LoginRequest{
		Email: "ada@campus.test", Password: "wrong-pass",
	}); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("错误密码期望 ErrInvalidCredentials，实际: %v", err)
	}
	if _, err := svc.Login(context.Background(), &dto.LoginRequest{
		Email: "nobody@campus.test", Password: "secret1",
	}); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("未知邮箱期望 ErrInvalidCredentials，实际: %v", err)
	}
}

// ────────────────────── RefreshToken / Logout ──────────────────────

func TestRefreshToken_RotatesAndRevokesOld(t *testing.T) {
	svc, _, tokens := setupTestAuthService()
	first, err := svc.Register(context.Background(), &dto.RegisterRequest{
		Name: "Ada", Email: "ada@campus.test", Password: "secret1",
	})
	if err != nil {
		t.Fatalf("Register 失败: %v", err)
	}

	second, err := svc.RefreshToken(context.Background(), first.RefreshToken)
	if err != nil {
		t.Fatalf("RefreshToken 应成功: %v", err)
	}
	if second.RefreshToken == first.RefreshToken {
		t.Error("刷新后应签发新的 RefreshToken")
	}
	if len(tokens.revoked) != 1 {
		t.Errorf("旧 RefreshToken 应被吊销，实际吊销数 %d", len(tokens.revoked))
	}

	if _, err := svc.RefreshToken(context.Background(), first.RefreshToken); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("重复使用旧 RefreshToken 期望 ErrTokenInvalid，实际: %v", err)
	}
}

func TestRefreshToken_RejectsAccessToken(t *testing.T) {
	svc, _, _ := setupTestAuthService()
	resp, _ := svc.Register(context.Background(), &dto.RegisterRequest{
		Name: "Ada", Email: "ada@campus.test", Password: "secret1",
	})

	if _, err := svc.RefreshToken(context.Background(), resp.Token); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("AccessToken 不能用于刷新，期望 ErrTokenInvalid，实际: %v", err)
	}
	if _, err := svc.RefreshToken(context.Background(), "garbage"); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("非法 Token 期望 ErrTokenInvalid，实际: %v", err)
	}
}

func TestLogout_RevokesJTI(t *testing.T) {
	svc, _, tokens := setupTestAuthService()

	if err := svc.Logout(context.Background(), "jti-1", time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("Logout 应成功: %v", err)
	}
	revoked, _ := tokens.IsRevoked(context.Background(), "jti-1")
	if !revoked {
		t.Error("Logout 后 jti 应被吊销")
	}
}

func TestLogout_WithoutTokenStore(t *testing.T) {
	env := newTestEnv()
	cfg := newTestEnvConfig()
	svc := NewAuthService(cfg, env.repo(), jwt.NewManager(&cfg.Auth), nil, nil, env.logger())

	if err := svc.Logout(context.Background(), "jti-1", time.Now().Add(time.Hour)); err != nil {
		t.Errorf("未启用 Redis 时 Logout 也应成功: %v", err)
	}
}

// ────────────────────── ChangePassword ──────────────────────

func TestChangePassword(t *testing.T) {
	svc, env, _ := setupTestAuthService()
	_, _ = svc.Register(context.Background(), &dto.RegisterRequest{
		Name: "Ada", Email: "ada@campus.test", Password: "secret1",
	})
	user, _ := env.users.GetByEmail(context.Background(), "ada@campus.test")

	err := svc.ChangePassword(context.Background(), user.UserID, &dto.ChangePasswordRequest{
		CurrentPassword: "wrong", NewPassword: "secret2",
	})
	if !errors.Is(err, ErrWrongPassword) {
		t.Errorf("当前密码错误时期望 ErrWrongPassword，实际: %v", err)
	}

	err = svc.ChangePassword(context.Background(), user.UserID, &dto.ChangePasswordRequest{
		CurrentPassword: "secret1", NewPassword: "secret2",
	})
	if err != nil {
		t.Fatalf("ChangePassword 应成功: %v", err)
	}

	updated, _ := env.users.GetByID(context.Background(), user.UserID)
	if bcrypt.CompareHashAndPassword([]byte(updated.PasswordHash), []byte("secret2")) != nil {
		t.Error("新密码应生效")
	}
	if updated.Version != user.Version+1 {
		t.Errorf("版本号应递增，期望 %d，实际 %d", user.Version+1, updated.Version)
	}
}

func TestGetCurrentUser_NotFound(t *testing.T) {
	svc, _, _ := setupTestAuthService()
	if _, err := svc.GetCurrentUser(context.Background(), "missing"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("期望 ErrUserNotFound，实际: %v", err)
	}
}
