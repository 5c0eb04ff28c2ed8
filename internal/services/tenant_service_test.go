package services

import (
	"errors"
	"testing"

	"resto_platform_backend/internal/models"
	"resto_platform_backend/internal/repositories"
)

type stubAuthRepo struct {
	users       map[string]*models.User
	memberships map[int64][]models.BranchUser
}

func newStubAuthRepo() *stubAuthRepo {
	return &stubAuthRepo{
		users:       map[string]*models.User{},
		memberships: map[int64][]models.BranchUser{},
	}
}

func (r *stubAuthRepo) CreateUser(_ repositories.SQLExecutor, user *models.User) (int64, error) {
	if _, exists := r.users[user.Email]; exists {
		return 0, repositories.ErrDuplicateKey
	}
	user.ID = int64(len(r.users) + 1)
	r.users[user.Email] = user
	return user.ID, nil
}

func (r *stubAuthRepo) GetUserByEmail(email string) (*models.User, error) {
	u, ok := r.users[email]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return u, nil
}

func (r *stubAuthRepo) GetUserByID(userID int64) (*models.User, error) {
	for _, u := range r.users {
		if u.ID == userID {
			return u, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (r *stubAuthRepo) GetBranchUser(userID, branchID int64) (*models.BranchUser, error) {
	for _, m := range r.memberships[userID] {
		if m.BranchID == branchID {
			return &m, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (r *stubAuthRepo) GetMembershipsForUser(userID int64) ([]models.BranchUser, error) {
	return r.memberships[userID], nil
}

func newTenantFixture() (*stubTenantRepo, *stubAuthRepo, TenantService) {
	tenantRepo := newStubTenantRepo()
	authRepo := newStubAuthRepo()
	svc := NewTenantService(tenantRepo, authRepo, nil)
	return tenantRepo, authRepo, svc
}

func TestCreateChainOncePerOwner(t *testing.T) {
	_, _, svc := newTenantFixture()
	p := ownerPrincipal(0)

	chain, err := svc.CreateChain(p, CreateChainRequest{Name: "Belle Province"})
	if err != nil {
		t.Fatalf("CreateChain: %v", err)
	}
	if chain.OwnerUserID != p.UserID {
		t.Errorf("owner = %d, want %d", chain.OwnerUserID, p.UserID)
	}

	if _, err := svc.CreateChain(p, CreateChainRequest{Name: "Second Brand"}); !errors.Is(err, ErrChainExists) {
		t.Errorf("err = %v, want ErrChainExists", err)
	}
}

func TestCreateBranchDefaults(t *testing.T) {
	_, _, svc := newTenantFixture()

	branch, err := svc.CreateBranch(ownerPrincipal(1), CreateBranchRequest{Name: "Downtown"})
	if err != nil {
		t.Fatalf("CreateBranch: %v", err)
	}
	if branch.Timezone != "America/Montreal" {
		t.Errorf("timezone = %q, want America/Montreal default", branch.Timezone)
	}
	if branch.BasePrepMinutes != 20 {
		t.Errorf("base prep = %d, want 20", branch.BasePrepMinutes)
	}
	if !branch.AutoCompleteEnabled || !branch.IsActive {
		t.Error("new branch should start active with auto-complete on")
	}
}

func TestCreateBranchOwnerOnly(t *testing.T) {
	_, _, svc := newTenantFixture()

	if _, err := svc.CreateBranch(managerPrincipal(1), CreateBranchRequest{Name: "Rogue"}); !errors.Is(err, ErrForbidden) {
		t.Errorf("err = %v, want ErrForbidden", err)
	}
}

func TestListBranchesScopedByRole(t *testing.T) {
	tenantRepo, _, svc := newTenantFixture()
	tenantRepo.addBranch(testBranch(1))
	second := testBranch(2)
	second.Name = "Plateau"
	tenantRepo.addBranch(second)

	owned, err := svc.ListBranches(ownerPrincipal(1))
	if err != nil {
		t.Fatalf("owner ListBranches: %v", err)
	}
	if len(owned) != 2 {
		t.Errorf("owner sees %d branches, want 2", len(owned))
	}

	mine, err := svc.ListBranches(managerPrincipal(1))
	if err != nil {
		t.Fatalf("manager ListBranches: %v", err)
	}
	if len(mine) != 1 || mine[0].ID != 1 {
		t.Errorf("manager sees %v, want only branch 1", mine)
	}
}

func TestUpdateTimingReloadsBranch(t *testing.T) {
	tenantRepo, _, svc := newTenantFixture()
	tenantRepo.addBranch(testBranch(1))

	branch, err := svc.UpdateTiming(managerPrincipal(1), 1, UpdateTimingRequest{
		BasePrepMinutes:     30,
		TempPrepAdjustment:  -5,
		AutoCompleteEnabled: false,
	})
	if err != nil {
		t.Fatalf("UpdateTiming: %v", err)
	}
	if branch.BasePrepMinutes != 30 || branch.TempPrepAdjustment != -5 || branch.AutoCompleteEnabled {
		t.Errorf("timing not applied: %+v", branch)
	}
}

func TestAssignUserRoles(t *testing.T) {
	tenantRepo, authRepo, svc := newTenantFixture()
	tenantRepo.addBranch(testBranch(1))
	if _, err := authRepo.CreateUser(nil, &models.User{Email: "staff@example.com", IsActive: true}); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	p := managerPrincipal(1)

	bu, err := svc.AssignUser(p, 1, AssignUserRequest{Email: "staff@example.com", Role: models.RoleBranchStaff})
	if err != nil {
		t.Fatalf("AssignUser: %v", err)
	}
	if bu.Role != models.RoleBranchStaff || bu.BranchID != 1 {
		t.Errorf("assignment = %+v", bu)
	}
	if bu.User == nil || bu.User.Email != "staff@example.com" {
		t.Error("assignment should carry the joined user")
	}

	if _, err := svc.AssignUser(p, 1, AssignUserRequest{Email: "staff@example.com", Role: "sous_chef"}); !errors.Is(err, ErrInvalidRole) {
		t.Errorf("err = %v, want ErrInvalidRole", err)
	}
	if _, err := svc.AssignUser(p, 1, AssignUserRequest{Email: "staff@example.com", Role: models.RoleChainOwner}); !errors.Is(err, ErrRoleEscalation) {
		t.Errorf("err = %v, want ErrRoleEscalation", err)
	}
	if _, err := svc.AssignUser(p, 1, AssignUserRequest{Email: "ghost@example.com", Role: models.RoleBranchStaff}); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("err = %v, want ErrUserNotFound", err)
	}
}

func TestRemoveUser(t *testing.T) {
	tenantRepo, authRepo, svc := newTenantFixture()
	tenantRepo.addBranch(testBranch(1))
	if _, err := authRepo.CreateUser(nil, &models.User{Email: "staff@example.com", IsActive: true}); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	p := managerPrincipal(1)

	bu, err := svc.AssignUser(p, 1, AssignUserRequest{Email: "staff@example.com", Role: models.RoleBranchStaff})
	if err != nil {
		t.Fatalf("AssignUser: %v", err)
	}
	if err := svc.RemoveUser(p, 1, bu.UserID); err != nil {
		t.Fatalf("RemoveUser: %v", err)
	}
	if err := svc.RemoveUser(p, 1, bu.UserID); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("second remove err = %v, want ErrUserNotFound", err)
	}
}

func TestOwnerReachesEveryBranchOfTheirChain(t *testing.T) {
	tenantRepo, _, svc := newTenantFixture()
	tenantRepo.addBranch(testBranch(1))
	foreign := testBranch(2)
	foreign.ChainID = 99
	tenantRepo.addBranch(foreign)
	p := ownerPrincipal(1)

	if _, err := svc.GetBranch(p, 1); err != nil {
		t.Errorf("own branch: %v", err)
	}
	if _, err := svc.GetBranch(p, 2); !errors.Is(err, ErrBranchNotFound) {
		t.Errorf("foreign branch err = %v, want ErrBranchNotFound", err)
	}
}
