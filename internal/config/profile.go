package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/tournevent/kiosk/pkg/shipper"
	"gopkg.in/yaml.v3"
)

// Profile describes the conference station: where parcels leave from, the
// standard box, and the defaults for the shared pickup.
type Profile struct {
	Sender ProfileAddress `yaml:"sender"`
	Box    Box            `yaml:"box"`
	Pickup PickupDefaults `yaml:"pickup"`
}

// ProfileAddress is the station's sender identity.
type ProfileAddress struct {
	Name       string `yaml:"name"`
	Company    string `yaml:"company"`
	Street     string `yaml:"street"`
	City       string `yaml:"city"`
	Province   string `yaml:"province"`
	PostalCode string `yaml:"postalCode"`
	Phone      string `yaml:"phone"`
	Email      string `yaml:"email"`
}

// Box is the standard parcel size in inches.
type Box struct {
	Length float64 `yaml:"length"`
	Width  float64 `yaml:"width"`
	Height float64 `yaml:"height"`
}

// PickupDefaults fill in pickup fields the operator leaves empty.
type PickupDefaults struct {
	Location     string `yaml:"location"`
	Instructions string `yaml:"instructions"`
	ReadyTime    string `yaml:"readyTime"`
	CloseTime    string `yaml:"closeTime"`
	LoadingDock  bool   `yaml:"loadingDock"`
}

// DefaultProfile is the built-in station at the conference hotel.
func DefaultProfile() Profile {
	return Profile{
		Sender: ProfileAddress{
			Name:       "Campus Stores Canada",
			Company:    "Campus Stores Canada",
			Street:     "5875 Falls Ave",
			City:       "Niagara Falls",
			Province:   "ON",
			PostalCode: "L2G3K7",
			Phone:      "905-358-1430",
			Email:      "info@campusstores.ca",
		},
		Box: Box{Length: 24, Width: 12, Height: 12},
		Pickup: PickupDefaults{
			Location:  "Reception",
			ReadyTime: "09:00",
			CloseTime: "17:00",
		},
	}
}

// LoadProfile reads a YAML profile from path over the defaults. An empty
// path or a missing file yields the defaults.
func LoadProfile(path string) (*Profile, error) {
	p := DefaultProfile()
	if path == "" {
		return &p, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return &p, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading station profile: %w", err)
	}
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parsing station profile %s: %w", path, err)
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("station profile %s: %w", path, err)
	}
	return &p, nil
}

// Validate checks the sender address and box are usable.
func (p *Profile) Validate() error {
	if _, err := shipper.NormalizePostalCode(p.Sender.PostalCode); err != nil {
		return err
	}
	if !shipper.IsProvinceCode(shipper.NormalizeProvince(p.Sender.Province)) {
		return fmt.Errorf("%w: %q", shipper.ErrInvalidProvince, p.Sender.Province)
	}
	if p.Box.Length <= 0 || p.Box.Width <= 0 || p.Box.Height <= 0 {
		return errors.New("box dimensions must be positive")
	}
	return nil
}

// SenderAddress returns the station as a normalized carrier address.
func (p *Profile) SenderAddress() shipper.Address {
	number, name := shipper.ParseStreetAddress(p.Sender.Street)
	postal, err := shipper.NormalizePostalCode(p.Sender.PostalCode)
	if err != nil {
		postal = shipper.FormatPostalCode(p.Sender.PostalCode)
	}
	return shipper.Address{
		Name:         p.Sender.Name,
		Company:      p.Sender.Company,
		StreetNumber: number,
		StreetName:   name,
		City:         p.Sender.City,
		Province:     shipper.NormalizeProvince(p.Sender.Province),
		PostalCode:   postal,
		Country:      shipper.DefaultCountry,
		Phone:        shipper.ParsePhoneNumber(p.Sender.Phone),
		Email:        p.Sender.Email,
	}
}

// StandardPackage returns the standard box at the given weight.
func (p *Profile) StandardPackage(weight float64) shipper.Package {
	return shipper.Package{
		Length: p.Box.Length,
		Width:  p.Box.Width,
		Height: p.Box.Height,
		Weight: weight,
	}
}
