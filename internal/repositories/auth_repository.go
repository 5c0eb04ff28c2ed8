package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"resto_platform_backend/internal/models"

	"github.com/lib/pq"
)

// AuthRepository defines the interface for user and membership persistence.
type AuthRepository interface {
	CreateUser(executor SQLExecutor, user *models.User) (int64, error)
	GetUserByEmail(email string) (*models.User, error)
	GetUserByID(userID int64) (*models.User, error)

	GetBranchUser(userID, branchID int64) (*models.BranchUser, error)
	GetMembershipsForUser(userID int64) ([]models.BranchUser, error)
}

type authRepository struct {
	db *sql.DB
}

// NewAuthRepository creates a new instance of AuthRepository.
func NewAuthRepository(db *sql.DB) AuthRepository {
	return &authRepository{db: db}
}

func (r *authRepository) CreateUser(executor SQLExecutor, user *models.User) (int64, error) {
	query := `INSERT INTO users (email, password_hash, full_name, is_active, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6)
	          RETURNING id`
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}
	if user.UpdatedAt.IsZero() {
		user.UpdatedAt = time.Now()
	}

	err := executor.QueryRow(query,
		user.Email, user.PasswordHash, user.FullName, user.IsActive,
		user.CreatedAt, user.UpdatedAt,
	).Scan(&user.ID)

	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return 0, fmt.Errorf("%w: user email %s", ErrDuplicateKey, user.Email)
		}
		return 0, fmt.Errorf("%w: creating user: %v", ErrDatabaseError, err)
	}
	return user.ID, nil
}

func (r *authRepository) GetUserByEmail(email string) (*models.User, error) {
	user := &models.User{}
	query := `SELECT id, email, password_hash, full_name, is_active, created_at, updated_at
	          FROM users
	          WHERE lower(email) = lower($1)`
	err := r.db.QueryRow(query, email).Scan(
		&user.ID, &user.Email, &user.PasswordHash, &user.FullName, &user.IsActive,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: getting user by email: %v", ErrDatabaseError, err)
	}
	return user, nil
}

func (r *authRepository) GetUserByID(userID int64) (*models.User, error) {
	user := &models.User{}
	query := `SELECT id, email, password_hash, full_name, is_active, created_at, updated_at
	          FROM users
	          WHERE id = $1`
	err := r.db.QueryRow(query, userID).Scan(
		&user.ID, &user.Email, &user.PasswordHash, &user.FullName, &user.IsActive,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: getting user by ID %d: %v", ErrDatabaseError, userID, err)
	}
	return user, nil
}

func (r *authRepository) GetBranchUser(userID, branchID int64) (*models.BranchUser, error) {
	bu := &models.BranchUser{}
	query := `SELECT id, user_id, branch_id, role, created_at, updated_at
	          FROM branch_users
	          WHERE user_id = $1 AND branch_id = $2`
	err := r.db.QueryRow(query, userID, branchID).Scan(
		&bu.ID, &bu.UserID, &bu.BranchID, &bu.Role, &bu.CreatedAt, &bu.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: getting branch user (user %d, branch %d): %v", ErrDatabaseError, userID, branchID, err)
	}
	return bu, nil
}

func (r *authRepository) GetMembershipsForUser(userID int64) ([]models.BranchUser, error) {
	memberships := []models.BranchUser{}
	query := `SELECT id, user_id, branch_id, role, created_at, updated_at
	          FROM branch_users
	          WHERE user_id = $1
	          ORDER BY branch_id`
	rows, err := r.db.Query(query, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: querying memberships for user %d: %v", ErrDatabaseError, userID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var bu models.BranchUser
		if err := rows.Scan(&bu.ID, &bu.UserID, &bu.BranchID, &bu.Role, &bu.CreatedAt, &bu.UpdatedAt); err != nil {
			return nil, fmt.Errorf("%w: scanning membership: %v", ErrDatabaseError, err)
		}
		memberships = append(memberships, bu)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating membership rows: %v", ErrDatabaseError, err)
	}
	return memberships, nil
}
