package domain

import "github.com/google/uuid"

// Principal - аутентифицированный субъект запроса (приходит извне, из токена)
type Principal struct {
	UserID   uuid.UUID
	Role     UserRole
	AgencyID *uuid.UUID
}

// Action - действие, на которое запрашивается разрешение
type Action string

const (
	ActionCertificateRead   Action = "certificate:read"
	ActionCertificateIssue  Action = "certificate:issue"
	ActionCertificateUpdate Action = "certificate:update"
	ActionCertificateDelete Action = "certificate:delete"
	ActionCertificateImport Action = "certificate:import"
	ActionStockRead         Action = "stock:read"
	ActionStockWrite        Action = "stock:write"
	ActionAgencyRead        Action = "agency:read"
	ActionAgencyManage      Action = "agency:manage"
	ActionUserManage        Action = "user:manage"
)

// adminOnly - действия, доступные только администратору
var adminOnly = map[Action]bool{
	ActionStockWrite:   true,
	ActionAgencyManage: true,
	ActionUserManage:   true,
}

// Decision - результат авторизации.
// Scope != nil означает, что действие разрешено только в пределах одного агентства.
type Decision struct {
	Allowed bool
	Scope   *uuid.UUID
	Reason  string
}

// Permits проверяет, что решение допускает работу с данными агентства
func (d Decision) Permits(agencyID uuid.UUID) bool {
	if !d.Allowed {
		return false
	}
	return d.Scope == nil || *d.Scope == agencyID
}

// Authorize - единая точка принятия решения о доступе для всех обработчиков.
// Администратор получает доступ без ограничений; сотрудник - только к данным
// своего агентства; сотрудник без агентства не получает доступа.
func Authorize(p Principal, action Action) Decision {
	switch p.Role {
	case RoleAdmin:
		return Decision{Allowed: true}
	case RoleUser:
		if adminOnly[action] {
			return Decision{Reason: "administrator role required"}
		}
		if p.AgencyID == nil || *p.AgencyID == uuid.Nil {
			return Decision{Reason: "user is not assigned to an agency"}
		}
		scope := *p.AgencyID
		return Decision{Allowed: true, Scope: &scope}
	}
	return Decision{Reason: "unknown role"}
}
