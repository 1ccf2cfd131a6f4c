package domain

import "time"

// Role — роль пользователя маркетплейса.
type Role string

const (
	RoleCustomer Role = "customer"
	RolePartner  Role = "partner"
)

// Valid сообщает, поддерживается ли роль.
func (r Role) Valid() bool {
	return r == RoleCustomer || r == RolePartner
}

// User — учётная запись. Email является каноническим ключом, Username остался от старых токенов.
type User struct {
	ID        string
	Email     string
	Username  string
	Role      Role
	Active    bool
	CreatedAt time.Time
}

// Identity — аутентифицированный вызывающий.
type Identity struct {
	UserID string
	Email  string
	Role   Role
}

// IdentityOf строит Identity из учётной записи.
func IdentityOf(u User) Identity {
	return Identity{UserID: u.ID, Email: u.Email, Role: u.Role}
}
