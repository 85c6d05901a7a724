package repository

import (
    "context"
    "database/sql"
    "errors"
    "strings"

    "github.com/okabe/storefront-booking/internal/model"
    "github.com/okabe/storefront-booking/internal/utils"
)

// UserRepo persists user accounts. Staff accounts carry the store
// they operate; customer accounts do not.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

var ErrEmailExists = errors.New("email already exists")

// Create inserts a user and returns its ID. The password is hashed
// with bcrypt at the given cost before it touches the database.
func (r *UserRepo) Create(ctx context.Context, email, password, role string, storeID *uint64, cost int) (uint64, error) {
    email = strings.ToLower(strings.TrimSpace(email))
    hash, err := utils.HashPassword(password, cost)
    if err != nil {
        return 0, err
    }
    res, err := r.DB.ExecContext(ctx,
        "INSERT INTO users (email, password_hash, role, store_id) VALUES (?,?,?,?)",
        email, hash, role, storeID)
    if err != nil {
        if strings.Contains(strings.ToLower(err.Error()), "1062") {
            return 0, ErrEmailExists
        }
        return 0, err
    }
    id, err := res.LastInsertId()
    if err != nil {
        return 0, err
    }
    return uint64(id), nil
}

const userColumns = "id,email,password_hash,role,store_id,is_active,created_at,updated_at"

func scanUser(s scanner) (model.User, error) {
    var (
        u       model.User
        storeID sql.NullInt64
    )
    err := s.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Role, &storeID, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
    if storeID.Valid {
        v := uint64(storeID.Int64)
        u.StoreID = &v
    }
    return u, err
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
    email = strings.ToLower(strings.TrimSpace(email))
    return scanUser(r.DB.QueryRowContext(ctx,
        "SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1", email))
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
    return scanUser(r.DB.QueryRowContext(ctx,
        "SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id))
}
