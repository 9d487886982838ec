package handlers

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/oksasatya/anaqa-user-service/internal/domain/entity"
	repo "github.com/oksasatya/anaqa-user-service/internal/domain/repository"
	"github.com/oksasatya/anaqa-user-service/internal/interface/middleware"
)

// Email is a client-supplied address. Surrounding whitespace is dropped while
// decoding, before the binding rules run.
type Email string

func (e *Email) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	*e = Email(strings.TrimSpace(s))
	return nil
}

func (e *Email) ptr() *string {
	if e == nil {
		return nil
	}
	s := string(*e)
	return &s
}

type RegisterRequest struct {
	Email    Email  `json:"email" binding:"required,email,max=254"`
	Password string `json:"password" binding:"required,pwd"`
	Name     string `json:"name" binding:"required,personname"`
}

func (r *RegisterRequest) Normalize() {
	r.Email = Email(entity.NormalizeEmail(string(r.Email)))
	r.Name = strings.TrimSpace(r.Name)
}

type CreateUserRequest struct {
	Email    Email       `json:"email" binding:"required,email,max=254"`
	Password string      `json:"password" binding:"required,pwd"`
	Name     string      `json:"name" binding:"required,personname"`
	Role     entity.Role `json:"role" binding:"omitempty,userrole"`
}

func (r *CreateUserRequest) Normalize() {
	r.Email = Email(entity.NormalizeEmail(string(r.Email)))
	r.Name = strings.TrimSpace(r.Name)
}

type LoginRequest struct {
	Email    Email  `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type EmailRequest struct {
	Email Email `json:"email" binding:"required,email"`
}

type TokenRequest struct {
	Token string `json:"token" binding:"required"`
}

type ResetPasswordRequest struct {
	Token    string `json:"token" binding:"required"`
	Password string `json:"password" binding:"required,pwd"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" binding:"required"`
	NewPassword     string `json:"newPassword" binding:"required,pwd"`
}

// UpdateSelfRequest is what a user may change on their own account.
type UpdateSelfRequest struct {
	Name  *string `json:"name" binding:"omitempty,personname"`
	Email *Email  `json:"email" binding:"omitempty,email,max=254"`
}

func (r *UpdateSelfRequest) patch() entity.UserPatch {
	return entity.UserPatch{Name: r.Name, Email: r.Email.ptr()}
}

type UpdateUserRequest struct {
	Name            *string      `json:"name" binding:"omitempty,personname"`
	Email           *Email       `json:"email" binding:"omitempty,email,max=254"`
	Role            *entity.Role `json:"role" binding:"omitempty,userrole"`
	IsEmailVerified *bool        `json:"isEmailVerified"`
}

func (r *UpdateUserRequest) patch() entity.UserPatch {
	return entity.UserPatch{Name: r.Name, Email: r.Email.ptr(), Role: r.Role, IsEmailVerified: r.IsEmailVerified}
}

type ListUsersQuery struct {
	middleware.PageQuery
	Role            entity.Role `form:"role" binding:"omitempty,userrole"`
	IsEmailVerified *bool       `form:"isEmailVerified"`
	Search          string      `form:"search" binding:"omitempty,max=100"`
}

func (q *ListUsersQuery) Normalize() {
	q.PageQuery.Normalize()
	q.Search = strings.TrimSpace(q.Search)
}

func (q *ListUsersQuery) filter() repo.UserFilter {
	return repo.UserFilter{Role: q.Role, IsEmailVerified: q.IsEmailVerified, Search: q.Search}
}

type SearchQuery struct {
	middleware.PageQuery
	Q string `form:"q" binding:"required,max=100"`
}

func (q *SearchQuery) Normalize() {
	q.PageQuery.Normalize()
	q.Q = strings.TrimSpace(q.Q)
}

type IDParams struct {
	ID string `uri:"id" binding:"required"`
}

type AddressParams struct {
	AddressID string `uri:"addressId" binding:"required"`
}

type AddressRequest struct {
	Type         entity.AddressType `json:"type" binding:"omitempty,oneof=home office other"`
	FirstName    string             `json:"firstName" binding:"required,max=50"`
	LastName     string             `json:"lastName" binding:"omitempty,max=50"`
	AddressLine1 string             `json:"addressLine1" binding:"required,max=100"`
	AddressLine2 string             `json:"addressLine2" binding:"omitempty,max=100"`
	City         string             `json:"city" binding:"required,max=50"`
	State        string             `json:"state" binding:"required,max=50"`
	ZipCode      string             `json:"zipCode" binding:"required,zipcode"`
	Country      string             `json:"country" binding:"omitempty,max=50"`
	Phone        string             `json:"phone" binding:"omitempty,phone"`
	IsDefault    bool               `json:"isDefault"`
}

func (r AddressRequest) toEntity() entity.Address {
	return entity.Address{
		Type:         r.Type,
		FirstName:    r.FirstName,
		LastName:     r.LastName,
		AddressLine1: r.AddressLine1,
		AddressLine2: r.AddressLine2,
		City:         r.City,
		State:        r.State,
		ZipCode:      r.ZipCode,
		Country:      r.Country,
		Phone:        r.Phone,
		IsDefault:    r.IsDefault,
	}
}

type MeasurementsRequest struct {
	Chest  *float64               `json:"chest" binding:"omitempty,gte=0"`
	Waist  *float64               `json:"waist" binding:"omitempty,gte=0"`
	Hips   *float64               `json:"hips" binding:"omitempty,gte=0"`
	Height *float64               `json:"height" binding:"omitempty,gte=0"`
	Weight *float64               `json:"weight" binding:"omitempty,gte=0"`
	Unit   entity.MeasurementUnit `json:"unit" binding:"omitempty,oneof=metric imperial"`
}

type ProfileRequest struct {
	FirstName    string              `json:"firstName" binding:"required,max=30"`
	LastName     string              `json:"lastName" binding:"omitempty,max=30"`
	DateOfBirth  *time.Time          `json:"dateOfBirth" binding:"omitempty,notfuture"`
	Gender       entity.Gender       `json:"gender" binding:"omitempty,oneof=Male Female"`
	Phone        string              `json:"phone" binding:"omitempty,phone"`
	Addresses    []AddressRequest    `json:"addresses" binding:"omitempty,max=10,dive"`
	SizeProfile  entity.SizeProfile  `json:"sizeProfile"`
	SocialMedia  entity.SocialMedia  `json:"socialMedia"`
	Preferences  entity.Preferences  `json:"preferences"`
	Measurements MeasurementsRequest `json:"measurements"`
}

func (r *ProfileRequest) toEntity() entity.Profile {
	p := entity.Profile{
		FirstName:   r.FirstName,
		LastName:    r.LastName,
		DateOfBirth: r.DateOfBirth,
		Gender:      r.Gender,
		Phone:       r.Phone,
		Addresses:   make([]entity.Address, 0, len(r.Addresses)),
		SizeProfile: r.SizeProfile,
		SocialMedia: r.SocialMedia,
		Preferences: r.Preferences,
		Measurements: entity.Measurements{
			Chest:  r.Measurements.Chest,
			Waist:  r.Measurements.Waist,
			Hips:   r.Measurements.Hips,
			Height: r.Measurements.Height,
			Weight: r.Measurements.Weight,
			Unit:   r.Measurements.Unit,
		},
	}
	for _, a := range r.Addresses {
		p.Addresses = append(p.Addresses, a.toEntity())
	}
	return p
}
