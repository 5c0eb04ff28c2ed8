package services

import (
	"errors"
	"fmt"

	"resto_platform_backend/internal/models"
	"resto_platform_backend/internal/repositories"
	"resto_platform_backend/pkg/utils"

	"golang.org/x/crypto/bcrypt"
)

// --- Custom Service Errors ---
var (
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailExists        = errors.New("email already exists")
	ErrNoMembership       = errors.New("user has no role at the requested branch")
	ErrTokenGeneration    = errors.New("failed to generate token")
)

// --- Data Transfer Objects (DTOs) ---

// LoginRequest DTO. BranchID selects which membership the issued token is
// scoped to; chain owners may omit it.
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	BranchID *int64 `json:"branch_id"`
}

// RegisterUserRequest DTO
type RegisterUserRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	FullName string `json:"full_name" binding:"required"`
}

// AuthResponse DTO
type AuthResponse struct {
	User         *models.User     `json:"user"`
	Principal    models.Principal `json:"principal"`
	AccessToken  string           `json:"access_token"`
	RefreshToken string           `json:"refresh_token,omitempty"`
}

// --- AuthService Interface ---
type AuthService interface {
	RegisterUser(req RegisterUserRequest) (*models.User, error)
	LoginUser(req LoginRequest) (*AuthResponse, error)
	RefreshToken(refreshToken string) (*AuthResponse, error)
	GetUserProfile(userID int64) (*models.User, error)
}

// --- authService Implementation ---
type authService struct {
	authRepo   repositories.AuthRepository
	tenantRepo repositories.TenantRepository
}

// NewAuthService creates a new instance of AuthService.
func NewAuthService(authRepo repositories.AuthRepository, tenantRepo repositories.TenantRepository) AuthService {
	return &authService{authRepo: authRepo, tenantRepo: tenantRepo}
}

func (s *authService) RegisterUser(req RegisterUserRequest) (*models.User, error) {
	if !utils.IsValidEmail(req.Email) {
		return nil, fmt.Errorf("%w: invalid email format", ErrValidation)
	}
	if !utils.IsValidPasswordLength(req.Password, 8) {
		return nil, fmt.Errorf("%w: password must be at least 8 characters", ErrValidation)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Email:        req.Email,
		PasswordHash: string(hash),
		FullName:     models.NewNullString(req.FullName),
		IsActive:     true,
	}
	if _, err := s.authRepo.CreateUser(nil, user); err != nil {
		if errors.Is(err, repositories.ErrDuplicateKey) {
			return nil, ErrEmailExists
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

// buildPrincipal resolves the caller's tenant scope. A user owning a chain is
// a chain owner spanning all its branches; otherwise the branch membership
// picked at login determines role and scope.
func (s *authService) buildPrincipal(user *models.User, branchID *int64) (models.Principal, error) {
	p := models.Principal{UserID: user.ID, Email: user.Email}

	chain, err := s.tenantRepo.GetChainByOwner(user.ID)
	if err == nil {
		p.ChainID = chain.ID
		p.Role = models.RoleChainOwner
		p.Permissions = models.RolePermissions[models.RoleChainOwner]
		if branchID != nil {
			p.BranchID = *branchID
		}
		return p, nil
	}
	if !errors.Is(err, repositories.ErrNotFound) {
		return p, fmt.Errorf("failed to resolve chain ownership: %w", err)
	}

	memberships, err := s.authRepo.GetMembershipsForUser(user.ID)
	if err != nil {
		return p, fmt.Errorf("failed to load memberships: %w", err)
	}
	if len(memberships) == 0 {
		return p, ErrNoMembership
	}

	selected := memberships[0]
	if branchID != nil {
		found := false
		for _, m := range memberships {
			if m.BranchID == *branchID {
				selected = m
				found = true
				break
			}
		}
		if !found {
			return p, ErrNoMembership
		}
	}

	branch, err := s.tenantRepo.GetBranchByID(selected.BranchID)
	if err != nil {
		return p, fmt.Errorf("failed to load branch %d: %w", selected.BranchID, err)
	}

	p.ChainID = branch.ChainID
	p.BranchID = selected.BranchID
	p.Role = selected.Role
	p.Permissions = models.RolePermissions[selected.Role]
	return p, nil
}

func (s *authService) LoginUser(req LoginRequest) (*AuthResponse, error) {
	user, err := s.authRepo.GetUserByEmail(req.Email)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	if !user.IsActive {
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return s.issueTokens(user, req.BranchID)
}

func (s *authService) issueTokens(user *models.User, branchID *int64) (*AuthResponse, error) {
	principal, err := s.buildPrincipal(user, branchID)
	if err != nil {
		return nil, err
	}

	accessToken, err := utils.GenerateAccessToken(
		principal.UserID, principal.Email, principal.ChainID, principal.BranchID,
		principal.Role, principal.Permissions,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenGeneration, err)
	}
	refreshToken, err := utils.GenerateRefreshToken(user.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenGeneration, err)
	}

	return &AuthResponse{
		User:         user,
		Principal:    principal,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}, nil
}

func (s *authService) RefreshToken(refreshToken string) (*AuthResponse, error) {
	claims, err := utils.ValidateToken(refreshToken)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	user, err := s.authRepo.GetUserByID(claims.UserID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to look up user for refresh: %w", err)
	}
	if !user.IsActive {
		return nil, ErrInvalidCredentials
	}

	return s.issueTokens(user, nil)
}

func (s *authService) GetUserProfile(userID int64) (*models.User, error) {
	user, err := s.authRepo.GetUserByID(userID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user profile: %w", err)
	}
	return user, nil
}
