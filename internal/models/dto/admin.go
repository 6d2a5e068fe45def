package dto

type CreateUserRequest struct {
	Name     string `json:"name"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	RoleID   int64  `json:"roleId"`
}

// UpdateUserRequest uses pointers so omitted fields stay untouched.
type UpdateUserRequest struct {
	Name     *string `json:"name"`
	Username *string `json:"username"`
	Email    *string `json:"email"`
	RoleID   *int64  `json:"roleId"`
	IsActive *bool   `json:"isActive"`
	Password *string `json:"password"`
}

type RoleRequest struct {
	Name        *string   `json:"name"`
	Description *string   `json:"description"`
	Permissions *[]string `json:"permissions"`
	IsActive    *bool     `json:"isActive"`
}
