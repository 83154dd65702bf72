package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"bank-backoffice/internal/models"
	"bank-backoffice/internal/utils"
)

var (
	ErrUserNotFound = errors.New("пользователь не найден")
	ErrUserExists   = errors.New("пользователь с таким именем уже существует")
)

type UserRepository struct {
	db DBTX
}

func NewUserRepository(db DBTX) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	query := `INSERT INTO users (id, name, password_hash, role) VALUES ($1, $2, $3, $4) RETURNING created_at`

	utils.LogDB("CREATE USER", fmt.Sprintf("Создание пользователя: %s", user.Name))

	err := r.db.QueryRow(ctx, query, user.ID, user.Name, user.PasswordHash, user.Role).Scan(&user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrUserExists
		}
		utils.LogError("UserRepository", fmt.Sprintf("Ошибка создания пользователя %s", user.Name), err)
		return fmt.Errorf("ошибка создания пользователя: %w", err)
	}

	utils.LogSuccess("UserRepository", "Пользователь создан: %s (ID: %s)", user.Name, user.ID)
	return nil
}

func (r *UserRepository) get(ctx context.Context, query, arg string) (*models.User, error) {
	user := &models.User{}
	err := r.db.QueryRow(ctx, query, arg).Scan(&user.ID, &user.Name, &user.PasswordHash, &user.Role, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("ошибка получения пользователя: %w", err)
	}
	return user, nil
}

func (r *UserRepository) GetByName(ctx context.Context, name string) (*models.User, error) {
	utils.LogDB("GET USER", fmt.Sprintf("Поиск пользователя: %s", name))
	return r.get(ctx, `SELECT id, name, password_hash, role, created_at FROM users WHERE name = $1`, name)
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	return r.get(ctx, `SELECT id, name, password_hash, role, created_at FROM users WHERE id = $1`, id)
}
