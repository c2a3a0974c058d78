package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// UserRole представляет роль пользователя в системе
type UserRole string

const (
	RoleAdmin UserRole = "ADMIN" // Администратор: пользователи, агентства, бланки
	RoleUser  UserRole = "USER"  // Сотрудник агентства
)

// ParseRole разбирает роль без учета регистра
func ParseRole(raw string) (UserRole, error) {
	role := UserRole(strings.ToUpper(strings.TrimSpace(raw)))
	if role != RoleAdmin && role != RoleUser {
		return "", ErrInvalidRole
	}
	return role, nil
}

// User - сотрудник или администратор
// Сотрудник привязан к агентству; без агентства он не видит ни аттестатов, ни остатков
type User struct {
	ID           uuid.UUID  `json:"id"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"` // Никогда не возвращаем в JSON
	Name         string     `json:"name"`
	Role         UserRole   `json:"role"`
	AgencyID     *uuid.UUID `json:"agency_id,omitempty"`
	AgencyName   string     `json:"agency_name,omitempty"`
	IsActive     bool       `json:"is_active"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// IsAdmin проверяет, является ли пользователь администратором
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// Principal возвращает субъекта авторизации для пользователя
func (u *User) Principal() Principal {
	return Principal{UserID: u.ID, Role: u.Role, AgencyID: u.AgencyID}
}

// Validate проверяет корректность данных пользователя
func (u *User) Validate() error {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	u.Name = strings.TrimSpace(u.Name)
	if u.Email == "" || !strings.Contains(u.Email, "@") {
		return InvalidArgument("valid email is required")
	}
	if u.Name == "" {
		return InvalidArgument("name is required")
	}
	if u.Role != RoleAdmin && u.Role != RoleUser {
		return ErrInvalidRole
	}
	return nil
}
