package model

import "fmt"

// Role — роль пользователя в системе. Набор значений закрыт:
// всё, что не распознано ParseRole, считается ошибкой, а не «неизвестной ролью».
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleExpert Role = "expert"
	RoleClient Role = "client"
)

// ParseRole переводит строковый код роли из хранилища в Role.
func ParseRole(code string) (Role, error) {
	switch Role(code) {
	case RoleAdmin, RoleExpert, RoleClient:
		return Role(code), nil
	default:
		return "", fmt.Errorf("unknown role %q", code)
	}
}

func (r Role) Valid() bool {
	_, err := ParseRole(string(r))
	return err == nil
}
