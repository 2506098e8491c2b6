package shipment

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/tournevent/kiosk/pkg/shipper"
)

// Request is the filled-in kiosk wizard.
type Request struct {
	Recipient RecipientInput
	Address   AddressInput
	Package   PackageInput
	Billing   BillingInput
}

// RecipientInput is the scanned or typed attendee contact.
type RecipientInput struct {
	Name         string `validate:"required,max=100"`
	Email        string `validate:"omitempty,email"`
	Phone        string `validate:"max=32"`
	Organization string `validate:"max=100"`
}

// AddressInput is the destination as typed; Street is split on normalization.
type AddressInput struct {
	Street     string `validate:"required,max=120"`
	City       string `validate:"required,max=60"`
	Province   string `validate:"required,caprovince"`
	PostalCode string `validate:"required,capostal"`
	Country    string `validate:"omitempty,eq=CA"`
}

// PackageInput is measured in inches and pounds.
type PackageInput struct {
	Length float64 `validate:"gt=0"`
	Width  float64 `validate:"gt=0"`
	Height float64 `validate:"gt=0"`
	Weight float64 `validate:"gt=0,lte=150"`
}

// BillingInput selects the paying account.
type BillingInput struct {
	Type    BillingType `validate:"required,oneof=csc institution"`
	Account string      `validate:"required,len=8,number"`
}

// ValidationError lists every rejected field. It is raised at the request
// boundary and never reaches the carrier.
type ValidationError struct {
	Fields map[string]string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "invalid request: " + strings.Join(parts, "; ")
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("capostal", func(fl validator.FieldLevel) bool {
		_, err := shipper.NormalizePostalCode(fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("caprovince", func(fl validator.FieldLevel) bool {
		return shipper.IsProvinceCode(shipper.NormalizeProvince(fl.Field().String()))
	})
	v.RegisterStructValidation(func(sl validator.StructLevel) {
		req := sl.Current().Interface().(Request)
		if req.Billing.Type == BillingCSC && strings.TrimSpace(req.Recipient.Email) == "" {
			sl.ReportError(req.Recipient.Email, "Recipient.Email", "Email", "required_for_csc", "")
		}
	}, Request{})
	return v
}

// Validate checks the request and returns a *ValidationError describing
// every failing field.
func (r *Request) Validate() error {
	return ValidateStruct(r)
}

// ValidateStruct checks any kiosk input struct against its validate tags,
// including the capostal and caprovince rules, and returns a
// *ValidationError describing every failing field.
func ValidateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("validating request: %w", err)
	}

	out := &ValidationError{Fields: make(map[string]string, len(fieldErrs))}
	for _, fe := range fieldErrs {
		out.Fields[fieldName(fe)] = describe(fe)
	}
	return out
}

// fieldName strips the root struct name from the namespace.
func fieldName(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		ns = ns[i+1:]
	}
	return ns
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_for_csc":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "capostal":
		return "must be a Canadian postal code (A1A 1A1)"
	case "caprovince":
		return "must be a Canadian province or territory"
	case "len":
		return "must be " + fe.Param() + " characters"
	case "number":
		return "must contain digits only"
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte", "min":
		return "must be at least " + fe.Param()
	case "datetime":
		return "must have the form " + fe.Param()
	case "lte", "max":
		return "must be at most " + fe.Param()
	case "oneof":
		return "must be one of: " + fe.Param()
	case "eq":
		return "must be " + fe.Param()
	}
	return "is invalid"
}

// New validates the request and builds a normalized pending shipment.
func New(req *Request, now time.Time) (*Shipment, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	postal, err := shipper.NormalizePostalCode(req.Address.PostalCode)
	if err != nil {
		return nil, &ValidationError{Fields: map[string]string{"Address.PostalCode": err.Error()}}
	}
	number, name := shipper.ParseStreetAddress(req.Address.Street)

	recipientName := strings.TrimSpace(req.Recipient.Name)
	company := strings.TrimSpace(req.Recipient.Organization)
	if company == "" {
		company = recipientName
	}

	return &Shipment{
		ID: uuid.NewString(),
		Recipient: Recipient{
			Name:         recipientName,
			Email:        strings.TrimSpace(req.Recipient.Email),
			Phone:        shipper.ParsePhoneNumber(req.Recipient.Phone),
			Organization: strings.TrimSpace(req.Recipient.Organization),
		},
		Destination: shipper.Address{
			Name:         recipientName,
			Company:      company,
			StreetNumber: number,
			StreetName:   name,
			City:         strings.TrimSpace(req.Address.City),
			Province:     shipper.NormalizeProvince(req.Address.Province),
			PostalCode:   postal,
			Country:      shipper.DefaultCountry,
			Phone:        shipper.ParsePhoneNumber(req.Recipient.Phone),
			Email:        strings.TrimSpace(req.Recipient.Email),
		},
		Package: shipper.Package{
			Length: req.Package.Length,
			Width:  req.Package.Width,
			Height: req.Package.Height,
			Weight: req.Package.Weight,
		},
		Billing: Billing{
			Type:    req.Billing.Type,
			Account: req.Billing.Account,
		},
		PaymentStatus: PaymentNone,
		Status:        StatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}
