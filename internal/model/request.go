package model

type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

type SetAdminRequest struct {
	IsAdmin bool `json:"is_admin"`
}

type SetActiveRequest struct {
	IsActive bool `json:"is_active"`
}

type UpdatePostRequest struct {
	Message *string `json:"message,omitempty"`
	Privacy *string `json:"privacy,omitempty"`
}

type CreateAlbumRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Privacy     string `json:"privacy"`
}

type UpdateAlbumRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	Privacy     *string `json:"privacy,omitempty"`
}

type AddAlbumImageRequest struct {
	Filename string `json:"filename"`
}
