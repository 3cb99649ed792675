package domain

import "github.com/google/uuid"

// Role grants access to one side of the protocol split
type Role string

const (
	RoleObserver Role = "observer"
	RoleOperator Role = "operator"
)

// Allows reports whether a holder of r may use a surface requiring required.
func (r Role) Allows(required Role) bool {
	switch required {
	case "":
		return true
	case RoleObserver:
		return r == RoleObserver || r == RoleOperator
	case RoleOperator:
		return r == RoleOperator
	default:
		return false
	}
}

// ParseRole validates a role name
func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleObserver, RoleOperator:
		return Role(s), true
	default:
		return "", false
	}
}

type AuthPayload struct {
	Username string `json:"username"`
	Role     Role   `json:"role"`
}

type LoginResponse struct {
	Token string `json:"token"`
}

type Operator struct {
	ID           uuid.UUID `db:"id"`
	UserName     string    `db:"user_name"`
	PasswordHash string    `db:"password_hash"`
	Role         Role      `db:"role"`
}

type OperatorTable struct {
	ID           string
	UserName     string
	PasswordHash string
	Role         string
}

func GetOperatorTable() OperatorTable {
	return OperatorTable{
		ID:           "id",
		UserName:     "user_name",
		PasswordHash: "password_hash",
		Role:         "role",
	}
}

func (t OperatorTable) GetTableName() string {
	return "operators"
}
