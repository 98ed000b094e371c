package handler

import (
	"github.com/sewerwatch/portal/internal/core/domain"
	"github.com/sewerwatch/portal/internal/core/service"
)

type loginRequest struct {
	Email      string `json:"email"       validate:"required,email,max=254"`
	Password   string `json:"password"    validate:"required,max=256"`
	RememberMe bool   `json:"remember_me"`
}

type profileRequest struct {
	Name  string `json:"name"  validate:"omitempty,min=1,max=120"`
	Phone string `json:"phone" validate:"omitempty,max=32"`
	Email string `json:"email" validate:"omitempty,email,max=254"`
}

func (r profileRequest) toDomain() domain.ProfileUpdate {
	return domain.ProfileUpdate{Name: r.Name, Phone: r.Phone, Email: r.Email}
}

// sessionResponse is what the UI needs to draw its shell.
type sessionResponse struct {
	Phase      domain.Phase       `json:"phase"`
	Loading    bool               `json:"loading"`
	User       *domain.Identity   `json:"user"`
	Landing    string             `json:"landing"`
	Navigation []service.NavEntry `json:"navigation"`
}

func newSessionResponse(v domain.Verification) sessionResponse {
	role := domain.RoleOf(v.Identity)
	return sessionResponse{
		Phase:      v.Phase,
		Loading:    v.Loading(),
		User:       v.Identity,
		Landing:    service.LandingPath(role),
		Navigation: service.Navigation(role),
	}
}

type profileResponse struct {
	User *domain.Identity `json:"user"`
}

// viewResponse is the model of one routed screen.
type viewResponse struct {
	Path       string             `json:"path"`
	Title      string             `json:"title"`
	Icon       string             `json:"icon,omitempty"`
	Public     bool               `json:"public"`
	User       *domain.Identity   `json:"user"`
	Navigation []service.NavEntry `json:"navigation"`
}

// liveMessage is pushed over the live socket.
type liveMessage struct {
	Type   string               `json:"type"`
	Counts *domain.UnreadCounts `json:"counts,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}
