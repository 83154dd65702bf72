package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"bank-backoffice/internal/models"
	"bank-backoffice/internal/repository"
	"bank-backoffice/internal/utils"
)

var (
	ErrInvalidCredentials = errors.New("неверное имя или пароль")
	ErrInvalidToken       = errors.New("невалидный токен")
	ErrInvalidRole        = errors.New("неизвестная роль")
)

type AuthService struct {
	store         Store
	jwtSecret     string
	jwtExpiration time.Duration
}

func NewAuthService(store Store, secret string, expiration time.Duration) *AuthService {
	utils.LogInfo("AuthService", "Инициализирован сервис аутентификации (TTL: %v)", expiration)
	return &AuthService{
		store:         store,
		jwtSecret:     secret,
		jwtExpiration: expiration,
	}
}

type Claims struct {
	UserID string      `json:"user_id"`
	Role   models.Role `json:"role"`
	jwt.RegisteredClaims
}

func (c *Claims) Actor() Actor {
	return Actor{UserID: c.UserID, Role: c.Role}
}

// Register создаёт клиента. Роли сотрудников выдаёт администратор через CreateUser.
func (s *AuthService) Register(ctx context.Context, req models.RegisterRequest) (*models.User, error) {
	return s.createUser(ctx, req.Name, req.Password, models.RoleClient)
}

func (s *AuthService) CreateUser(ctx context.Context, actor Actor, req models.CreateUserRequest) (*models.User, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbiddenRole
	}
	return s.createUser(ctx, req.Name, req.Password, req.Role)
}

// EnsureUser создаёт пользователя при старте, если его ещё нет.
func (s *AuthService) EnsureUser(ctx context.Context, name, password string, role models.Role) error {
	_, err := s.store.Repos().Users.GetByName(ctx, name)
	if err == nil {
		return nil
	}
	if !errors.Is(err, repository.ErrUserNotFound) {
		return err
	}
	_, err = s.createUser(ctx, name, password, role)
	if errors.Is(err, repository.ErrUserExists) {
		return nil
	}
	return err
}

func (s *AuthService) createUser(ctx context.Context, name, password string, role models.Role) (*models.User, error) {
	if !role.IsValid() {
		return nil, ErrInvalidRole
	}
	hash, err := s.HashPassword(password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		ID:           uuid.NewString(),
		Name:         strings.TrimSpace(name),
		PasswordHash: hash,
		Role:         role,
	}
	if err := s.store.Repos().Users.Create(ctx, user); err != nil {
		return nil, err
	}
	utils.LogSuccess("AuthService", "Пользователь %s зарегистрирован с ролью %s", user.Name, user.Role)
	return user, nil
}

// Login проверяет пароль и выдаёт JWT.
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (string, *models.User, error) {
	user, err := s.store.Repos().Users.GetByName(ctx, req.Name)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, err
	}
	if err := s.CheckPasswordHash(req.Password, user.PasswordHash); err != nil {
		return "", nil, ErrInvalidCredentials
	}

	token, err := s.GenerateToken(user)
	if err != nil {
		return "", nil, err
	}
	return token, user, nil
}

func (s *AuthService) HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		utils.LogError("AuthService", "Ошибка хеширования пароля", err)
		return "", err
	}
	return string(hashed), nil
}

func (s *AuthService) CheckPasswordHash(password, hash string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		utils.LogWarning("AuthService", "Неверный пароль")
		return err
	}
	return nil
}

func (s *AuthService) GenerateToken(user *models.User) (string, error) {
	claims := &Claims{
		UserID: user.ID,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(s.jwtExpiration)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signed, err := token.SignedString([]byte(s.jwtSecret))
	if err != nil {
		utils.LogError("AuthService", "Ошибка подписи токена", err)
		return "", err
	}

	utils.LogDebug("AuthService", "JWT токен создан для пользователя: %s", user.ID)
	return signed, nil
}

func (s *AuthService) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("неожиданный метод подписи: %v", token.Header["alg"])
		}
		return []byte(s.jwtSecret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || !claims.Role.IsValid() {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
