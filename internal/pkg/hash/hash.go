package hash

import (
	"golang.org/x/crypto/bcrypt"
)

const (
	// DefaultCost - стоимость хеширования по умолчанию (12)
	DefaultCost = 12

	// MinPasswordLength - минимальная длина пароля пользователя
	MinPasswordLength = 6
)

// Hasher хеширует пароли bcrypt с заданной стоимостью
type Hasher struct {
	cost int
}

// New создает Hasher; некорректная стоимость заменяется на DefaultCost
func New(cost int) *Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultCost
	}
	return &Hasher{cost: cost}
}

// Hash хеширует пароль с использованием bcrypt
func (h *Hasher) Hash(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

// Check сравнивает хешированный пароль с plain-text паролем
func (h *Hasher) Check(hashedPassword, password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
	return err == nil
}
