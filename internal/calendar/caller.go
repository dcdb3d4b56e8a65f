package calendar

import (
	"errors"

	"github.com/google/uuid"
)

// Ошибки валидации вызывающего пользователя.
var (
	ErrAnonymousCaller = errors.New("caller is not authenticated")
	ErrUnknownRole     = errors.New("unknown caller role")
)

// Роль пользователя в системе.
type Role string

const (
	RoleCustomer   Role = "customer"
	RoleOwner      Role = "owner"
	RoleStaff      Role = "staff"
	RoleSuperAdmin Role = "super_admin"
)

// Caller — кто выполняет операцию. Передаётся транспортным слоем после аутентификации.
type Caller struct {
	ID   uuid.UUID
	Role Role
}

// ParseRole нормализует код роли из токена.
func ParseRole(code string) (Role, error) {
	switch Role(code) {
	case RoleCustomer, RoleOwner, RoleStaff, RoleSuperAdmin:
		return Role(code), nil
	case "admin":
		// старое название роли в токенах
		return RoleSuperAdmin, nil
	default:
		return "", ErrUnknownRole
	}
}

// ValidateCaller:
//   - проверяет, что идентификатор задан;
//   - проверяет, что роль известна;
//   - возвращает нормализованный Caller.
func ValidateCaller(id uuid.UUID, roleCode string) (Caller, error) {
	if id == uuid.Nil {
		return Caller{}, ErrAnonymousCaller
	}
	role, err := ParseRole(roleCode)
	if err != nil {
		return Caller{}, err
	}
	return Caller{ID: id, Role: role}, nil
}

// IsStaff — персонал ресторана (владелец, сотрудник) или супер-админ.
func (c Caller) IsStaff() bool {
	return c.Role == RoleOwner || c.Role == RoleStaff || c.Role == RoleSuperAdmin
}
