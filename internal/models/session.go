package models

import "time"

type Role string

const (
	RoleStudent   Role = "student"
	RoleProfessor Role = "professor"
)

func (r Role) String() string {
	return string(r)
}

func (r Role) Valid() bool {
	return r == RoleStudent || r == RoleProfessor
}

// DashboardPath путь дашборда, на который портал отправляет пользователя этой роли.
func (r Role) DashboardPath() string {
	switch r {
	case RoleStudent:
		return "/student/dashboard"
	case RoleProfessor:
		return "/professor/dashboard"
	default:
		return "/login"
	}
}

// RoleFor переводит флаг isStudent формы входа в роль.
func RoleFor(isStudent bool) Role {
	if isStudent {
		return RoleStudent
	}
	return RoleProfessor
}

type User struct {
	UserID    string `json:"userId"`
	UserType  Role   `json:"userType"`
	Email     string `json:"email"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	Section   string `json:"section,omitempty"`
}

// Session кэшированная копия серверной сессии.
type Session struct {
	UserID      string    `json:"userId"`
	Role        Role      `json:"role"`
	LoggedIn    bool      `json:"loggedIn"`
	User        User      `json:"user"`
	RefreshedAt time.Time `json:"refreshedAt"`
}

func NewSession(user User, role Role, now time.Time) Session {
	if role == "" {
		role = user.UserType
	}
	return Session{
		UserID:      user.UserID,
		Role:        role,
		LoggedIn:    true,
		User:        user,
		RefreshedAt: now,
	}
}
