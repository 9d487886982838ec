package entity

import (
	"strings"
	"time"
)

type Gender string

const (
	GenderMale   Gender = "Male"
	GenderFemale Gender = "Female"
)

type AddressType string

const (
	AddressHome   AddressType = "home"
	AddressOffice AddressType = "office"
	AddressOther  AddressType = "other"
)

// DefaultCountry is applied to addresses saved without a country.
const DefaultCountry = "India"

type Address struct {
	ID           string      `json:"id"`
	Type         AddressType `json:"type"`
	FirstName    string      `json:"firstName"`
	LastName     string      `json:"lastName"`
	AddressLine1 string      `json:"addressLine1"`
	AddressLine2 string      `json:"addressLine2,omitempty"`
	City         string      `json:"city"`
	State        string      `json:"state"`
	ZipCode      string      `json:"zipCode"`
	Country      string      `json:"country"`
	Phone        string      `json:"phone,omitempty"`
	IsDefault    bool        `json:"isDefault"`
}

type SizeProfile struct {
	TopSize    string `json:"topSize,omitempty"`
	BottomSize string `json:"bottomSize,omitempty"`
	ShoeSize   string `json:"shoeSize,omitempty"`
	DressSize  string `json:"dressSize,omitempty"`
}

type SocialMedia struct {
	Instagram string `json:"instagram,omitempty"`
	Facebook  string `json:"facebook,omitempty"`
	Twitter   string `json:"twitter,omitempty"`
}

type PreferredSize struct {
	Category string `json:"category"`
	Size     string `json:"size"`
}

type Preferences struct {
	PreferredSizes []PreferredSize `json:"preferredSizes,omitempty"`
	FavoriteColors []string        `json:"favoriteColors,omitempty"`
	StylePref      []string        `json:"stylePref,omitempty"`
	FitPreference  string          `json:"fitPreference,omitempty"` // Slim, Regular, Loose, Oversized
}

type MeasurementUnit string

const (
	UnitMetric   MeasurementUnit = "metric"
	UnitImperial MeasurementUnit = "imperial"
)

type Measurements struct {
	Chest  *float64        `json:"chest,omitempty"`
	Waist  *float64        `json:"waist,omitempty"`
	Hips   *float64        `json:"hips,omitempty"`
	Height *float64        `json:"height,omitempty"`
	Weight *float64        `json:"weight,omitempty"`
	Unit   MeasurementUnit `json:"unit"`
}

// Profile is one-to-one with User.
type Profile struct {
	ID           string       `json:"id"`
	UserID       string       `json:"userId"`
	AvatarURL    string       `json:"avatar,omitempty"`
	FirstName    string       `json:"firstName"`
	LastName     string       `json:"lastName,omitempty"`
	DateOfBirth  *time.Time   `json:"dateOfBirth,omitempty"`
	Gender       Gender       `json:"gender,omitempty"`
	Phone        string       `json:"phone,omitempty"`
	Addresses    []Address    `json:"addresses"`
	SizeProfile  SizeProfile  `json:"sizeProfile"`
	SocialMedia  SocialMedia  `json:"socialMedia"`
	Preferences  Preferences  `json:"preferences"`
	Measurements Measurements `json:"measurements"`
	CreatedAt    time.Time    `json:"createdAt"`
	UpdatedAt    time.Time    `json:"updatedAt"`
}

func (p *Profile) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// DefaultAddress returns the default address, or nil when none is marked.
func (p *Profile) DefaultAddress() *Address {
	for i := range p.Addresses {
		if p.Addresses[i].IsDefault {
			return &p.Addresses[i]
		}
	}
	return nil
}

// BeforeSaveProfile normalizes a profile before persisting. At most one
// address stays default: every default after the first one is demoted.
func BeforeSaveProfile(p *Profile) {
	p.FirstName = strings.TrimSpace(p.FirstName)
	p.LastName = strings.TrimSpace(p.LastName)
	p.SocialMedia.Instagram = strings.TrimSpace(p.SocialMedia.Instagram)
	p.SocialMedia.Facebook = strings.TrimSpace(p.SocialMedia.Facebook)
	p.SocialMedia.Twitter = strings.TrimSpace(p.SocialMedia.Twitter)
	if p.Measurements.Unit == "" {
		p.Measurements.Unit = UnitMetric
	}
	if p.Addresses == nil {
		p.Addresses = []Address{}
	}

	seenDefault := false
	for i := range p.Addresses {
		a := &p.Addresses[i]
		if a.Type == "" {
			a.Type = AddressHome
		}
		a.Country = strings.TrimSpace(a.Country)
		if a.Country == "" {
			a.Country = DefaultCountry
		}
		a.FirstName = strings.TrimSpace(a.FirstName)
		a.LastName = strings.TrimSpace(a.LastName)
		a.AddressLine1 = strings.TrimSpace(a.AddressLine1)
		a.AddressLine2 = strings.TrimSpace(a.AddressLine2)
		a.City = strings.TrimSpace(a.City)
		a.State = strings.TrimSpace(a.State)

		if a.IsDefault {
			if seenDefault {
				a.IsDefault = false
			}
			seenDefault = true
		}
	}
}
