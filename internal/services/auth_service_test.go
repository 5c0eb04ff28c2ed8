package services

import (
	"errors"
	"testing"

	"resto_platform_backend/internal/models"
	"resto_platform_backend/pkg/utils"
)

func newAuthFixture() (*stubAuthRepo, *stubTenantRepo, AuthService) {
	authRepo := newStubAuthRepo()
	tenantRepo := newStubTenantRepo()
	svc := NewAuthService(authRepo, tenantRepo)
	return authRepo, tenantRepo, svc
}

func TestRegisterAndLogin(t *testing.T) {
	authRepo, tenantRepo, svc := newAuthFixture()
	tenantRepo.addBranch(testBranch(1))

	user, err := svc.RegisterUser(RegisterUserRequest{
		Email:    "manager@example.com",
		Password: "correct horse",
		FullName: "Gabrielle Roy",
	})
	if err != nil {
		t.Fatalf("RegisterUser: %v", err)
	}
	if user.PasswordHash == "correct horse" {
		t.Error("password stored in the clear")
	}
	authRepo.memberships[user.ID] = []models.BranchUser{
		{UserID: user.ID, BranchID: 1, Role: models.RoleBranchManager},
	}

	resp, err := svc.LoginUser(LoginRequest{Email: "manager@example.com", Password: "correct horse"})
	if err != nil {
		t.Fatalf("LoginUser: %v", err)
	}
	if resp.AccessToken == "" || resp.RefreshToken == "" {
		t.Fatal("login must issue both tokens")
	}
	p := resp.Principal
	if p.Role != models.RoleBranchManager || p.BranchID != 1 || p.ChainID != 1 {
		t.Errorf("principal scope = %+v", p)
	}

	claims, err := utils.ValidateToken(resp.AccessToken)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if claims.Role != models.RoleBranchManager || claims.BranchID != 1 {
		t.Errorf("token claims = %+v, want branch-scoped manager", claims)
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	_, _, svc := newAuthFixture()
	req := RegisterUserRequest{Email: "dup@example.com", Password: "long enough", FullName: "First"}

	if _, err := svc.RegisterUser(req); err != nil {
		t.Fatalf("first RegisterUser: %v", err)
	}
	if _, err := svc.RegisterUser(req); !errors.Is(err, ErrEmailExists) {
		t.Errorf("err = %v, want ErrEmailExists", err)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	_, _, svc := newAuthFixture()
	if _, err := svc.RegisterUser(RegisterUserRequest{Email: "u@example.com", Password: "long enough", FullName: "U"}); err != nil {
		t.Fatalf("RegisterUser: %v", err)
	}

	if _, err := svc.LoginUser(LoginRequest{Email: "u@example.com", Password: "wrong"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("err = %v, want ErrInvalidCredentials", err)
	}
	if _, err := svc.LoginUser(LoginRequest{Email: "nobody@example.com", Password: "wrong"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("unknown email err = %v, want ErrInvalidCredentials", err)
	}
}

func TestLoginWithoutMembership(t *testing.T) {
	_, _, svc := newAuthFixture()
	if _, err := svc.RegisterUser(RegisterUserRequest{Email: "new@example.com", Password: "long enough", FullName: "New"}); err != nil {
		t.Fatalf("RegisterUser: %v", err)
	}

	if _, err := svc.LoginUser(LoginRequest{Email: "new@example.com", Password: "long enough"}); !errors.Is(err, ErrNoMembership) {
		t.Errorf("err = %v, want ErrNoMembership", err)
	}
}

func TestLoginChainOwnerNeedsNoMembership(t *testing.T) {
	_, tenantRepo, svc := newAuthFixture()

	user, err := svc.RegisterUser(RegisterUserRequest{Email: "owner@example.com", Password: "long enough", FullName: "Owner"})
	if err != nil {
		t.Fatalf("RegisterUser: %v", err)
	}
	if _, err := tenantRepo.CreateChain(nil, &models.Chain{Name: "Belle Province", OwnerUserID: user.ID}); err != nil {
		t.Fatalf("seed chain: %v", err)
	}

	resp, err := svc.LoginUser(LoginRequest{Email: "owner@example.com", Password: "long enough"})
	if err != nil {
		t.Fatalf("LoginUser: %v", err)
	}
	if resp.Principal.Role != models.RoleChainOwner {
		t.Errorf("role = %q, want chain_owner", resp.Principal.Role)
	}
	if resp.Principal.ChainID == 0 {
		t.Error("chain owner principal must carry the chain id")
	}
}

func TestLoginSelectsBranchMembership(t *testing.T) {
	authRepo, tenantRepo, svc := newAuthFixture()
	tenantRepo.addBranch(testBranch(1))
	tenantRepo.addBranch(testBranch(2))

	user, err := svc.RegisterUser(RegisterUserRequest{Email: "multi@example.com", Password: "long enough", FullName: "Multi"})
	if err != nil {
		t.Fatalf("RegisterUser: %v", err)
	}
	authRepo.memberships[user.ID] = []models.BranchUser{
		{UserID: user.ID, BranchID: 1, Role: models.RoleBranchManager},
		{UserID: user.ID, BranchID: 2, Role: models.RoleBranchCashier},
	}

	second := int64(2)
	resp, err := svc.LoginUser(LoginRequest{Email: "multi@example.com", Password: "long enough", BranchID: &second})
	if err != nil {
		t.Fatalf("LoginUser: %v", err)
	}
	if resp.Principal.BranchID != 2 || resp.Principal.Role != models.RoleBranchCashier {
		t.Errorf("principal = %+v, want the cashier membership at branch 2", resp.Principal)
	}

	missing := int64(3)
	if _, err := svc.LoginUser(LoginRequest{Email: "multi@example.com", Password: "long enough", BranchID: &missing}); !errors.Is(err, ErrNoMembership) {
		t.Errorf("err = %v, want ErrNoMembership", err)
	}
}

func TestRefreshTokenRoundTrip(t *testing.T) {
	authRepo, tenantRepo, svc := newAuthFixture()
	tenantRepo.addBranch(testBranch(1))

	user, err := svc.RegisterUser(RegisterUserRequest{Email: "r@example.com", Password: "long enough", FullName: "R"})
	if err != nil {
		t.Fatalf("RegisterUser: %v", err)
	}
	authRepo.memberships[user.ID] = []models.BranchUser{
		{UserID: user.ID, BranchID: 1, Role: models.RoleBranchStaff},
	}

	login, err := svc.LoginUser(LoginRequest{Email: "r@example.com", Password: "long enough"})
	if err != nil {
		t.Fatalf("LoginUser: %v", err)
	}

	refreshed, err := svc.RefreshToken(login.RefreshToken)
	if err != nil {
		t.Fatalf("RefreshToken: %v", err)
	}
	if refreshed.AccessToken == "" {
		t.Error("refresh must issue a new access token")
	}
	if refreshed.Principal.UserID != user.ID {
		t.Errorf("refreshed principal user = %d, want %d", refreshed.Principal.UserID, user.ID)
	}

	if _, err := svc.RefreshToken("not-a-token"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("garbage token err = %v, want ErrInvalidCredentials", err)
	}
}
