package models

// ProfessorProfile профиль преподавателя, как его отдает backend.
type ProfessorProfile struct {
	FirstName      string `json:"firstName"`
	LastName       string `json:"lastName"`
	Email          string `json:"email"`
	Department     string `json:"department"`
	OfficeHours    string `json:"officeHours"`
	OfficeLocation string `json:"officeLocation"`
}

// ProfessorProfileUpdate частичное обновление: nil поле backend не меняет.
type ProfessorProfileUpdate struct {
	FirstName      *string `json:"firstName,omitempty" validate:"omitempty,min=1,max=100"`
	LastName       *string `json:"lastName,omitempty" validate:"omitempty,min=1,max=100"`
	Email          *string `json:"email,omitempty" validate:"omitempty,email,max=255"`
	Department     *string `json:"department,omitempty" validate:"omitempty,max=100"`
	OfficeHours    *string `json:"officeHours,omitempty" validate:"omitempty,max=255"`
	OfficeLocation *string `json:"officeLocation,omitempty" validate:"omitempty,max=255"`
}

func (u ProfessorProfileUpdate) Empty() bool {
	return u.FirstName == nil && u.LastName == nil && u.Email == nil &&
		u.Department == nil && u.OfficeHours == nil && u.OfficeLocation == nil
}

// ProfileResponse конверт backend {success, message, profile}.
type ProfileResponse struct {
	Success bool              `json:"success"`
	Message string            `json:"message,omitempty"`
	Profile *ProfessorProfile `json:"profile,omitempty"`
}
