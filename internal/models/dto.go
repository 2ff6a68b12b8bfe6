package models

type LoginRequest struct {
	Email     string `json:"email" validate:"required,email,max=255"`
	Password  string `json:"password" validate:"required,max=255"`
	IsStudent bool   `json:"isStudent"`
}

type RegisterRequest struct {
	Email     string `json:"email" validate:"required,email,max=255"`
	Password  string `json:"password" validate:"required,min=6,max=255"`
	FirstName string `json:"firstName" validate:"required,max=100"`
	LastName  string `json:"lastName" validate:"required,max=100"`
	IsStudent bool   `json:"isStudent"`
	Section   string `json:"section,omitempty" validate:"required_if=IsStudent true,max=50"`
}

// AuthResponse понимает оба конверта backend: {success, user} и {status: "success", user}.
type AuthResponse struct {
	Success bool   `json:"success"`
	Status  string `json:"status,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
	User    *User  `json:"user,omitempty"`
}

func (r AuthResponse) OK() bool {
	return r.Success || r.Status == "success"
}

type SessionCheckResponse struct {
	LoggedIn bool  `json:"logged_in"`
	UserType Role  `json:"user_type,omitempty"`
	User     *User `json:"user,omitempty"`
}

type CreateAssignmentRequest struct {
	Name         string      `validate:"required,max=255"`
	Course       string      `validate:"required,max=100"`
	Description  string      `validate:"max=5000"`
	DueDate      string      `validate:"required"`
	Sections     []string    `validate:"required,min=1,dive,required"`
	QuestionFile *FileUpload `validate:"required"`
}

type SubmitResponse struct {
	ID               string           `json:"id"`
	ProcessingStatus ProcessingStatus `json:"processing_status"`
}

type HealthResponse struct {
	Status string `json:"status"`
}
