package invoice

import "context"

// APIClient defines the payment-provider calls the invoice client needs.
// This abstraction allows for mock implementations during testing.
type APIClient interface {
	CreateCustomer(ctx context.Context, req *CustomerRequest) (string, error)
	CreateInvoice(ctx context.Context, req *DraftRequest) (*Invoice, error)
	AddLineItem(ctx context.Context, req *LineItemRequest) error
	FinalizeInvoice(ctx context.Context, invoiceID string) (*Invoice, error)
	SendInvoice(ctx context.Context, invoiceID string) (*Invoice, error)
	VoidInvoice(ctx context.Context, invoiceID string) (*Invoice, error)
}

// Currency is the only currency shipments are invoiced in.
const Currency = "cad"

// Metadata keys stored on provider-side objects.
const (
	MetadataShipmentID     = "shipmentId"
	MetadataTrackingNumber = "trackingNumber"
	MetadataOrganization   = "organization"
)

// CustomerRequest describes the per-shipment customer snapshot.
type CustomerRequest struct {
	Name         string
	Email        string
	Phone        string
	Organization string
	Metadata     map[string]string
}

// DraftRequest opens a draft invoice for a customer.
type DraftRequest struct {
	CustomerID   string
	Description  string
	DaysUntilDue int64
	Metadata     map[string]string
}

// LineItemRequest attaches a single charge to a draft invoice.
type LineItemRequest struct {
	CustomerID  string
	InvoiceID   string
	AmountCents int64
	Description string
}

// Invoice is the local mirror of a provider-side invoice.
type Invoice struct {
	ID        string
	HostedURL string
	PDFURL    string
	Status    string
	AmountDue int64
}
