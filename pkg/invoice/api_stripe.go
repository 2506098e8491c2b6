package invoice

import (
	"context"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
)

// StripeAPIClient is the production implementation of APIClient. It uses a
// per-client stripe.API rather than the package-level globals so test and
// live keys never share state.
type StripeAPIClient struct {
	sc *client.API
}

// NewStripeAPIClient creates a Stripe client for the given secret key.
func NewStripeAPIClient(secretKey string) *StripeAPIClient {
	sc := &client.API{}
	sc.Init(secretKey, nil)
	return &StripeAPIClient{sc: sc}
}

// NewStripeAPIClientWithBackend points the client at a custom API URL.
func NewStripeAPIClientWithBackend(secretKey, baseURL string) *StripeAPIClient {
	backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		URL:               stripe.String(baseURL),
		MaxNetworkRetries: stripe.Int64(0),
	})
	sc := &client.API{}
	sc.Init(secretKey, &stripe.Backends{API: backend, Connect: backend, Uploads: backend})
	return &StripeAPIClient{sc: sc}
}

// CreateCustomer creates a new customer. Customers are never looked up or
// reused.
func (c *StripeAPIClient) CreateCustomer(ctx context.Context, req *CustomerRequest) (string, error) {
	params := &stripe.CustomerParams{
		Name:  stripe.String(req.Name),
		Email: stripe.String(req.Email),
	}
	if req.Phone != "" {
		params.Phone = stripe.String(req.Phone)
	}
	if req.Organization != "" {
		params.Description = stripe.String(req.Organization)
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}
	params.Context = ctx

	cus, err := c.sc.Customers.New(params)
	if err != nil {
		return "", wrapError("create customer", err)
	}
	return cus.ID, nil
}

// CreateInvoice opens a send_invoice draft that advances automatically.
func (c *StripeAPIClient) CreateInvoice(ctx context.Context, req *DraftRequest) (*Invoice, error) {
	params := &stripe.InvoiceParams{
		Customer:         stripe.String(req.CustomerID),
		AutoAdvance:      stripe.Bool(true),
		CollectionMethod: stripe.String(string(stripe.InvoiceCollectionMethodSendInvoice)),
		DaysUntilDue:     stripe.Int64(req.DaysUntilDue),
		Currency:         stripe.String(Currency),
	}
	if req.Description != "" {
		params.Description = stripe.String(req.Description)
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}
	params.Context = ctx

	inv, err := c.sc.Invoices.New(params)
	if err != nil {
		return nil, wrapError("create", err)
	}
	return fromStripe(inv), nil
}

// AddLineItem attaches a CAD charge to a draft invoice.
func (c *StripeAPIClient) AddLineItem(ctx context.Context, req *LineItemRequest) error {
	params := &stripe.InvoiceItemParams{
		Customer:    stripe.String(req.CustomerID),
		Invoice:     stripe.String(req.InvoiceID),
		Amount:      stripe.Int64(req.AmountCents),
		Currency:    stripe.String(Currency),
		Description: stripe.String(req.Description),
	}
	params.Context = ctx

	if _, err := c.sc.InvoiceItems.New(params); err != nil {
		return wrapError("add line item", err)
	}
	return nil
}

// FinalizeInvoice finalizes a draft. With send_invoice collection this also
// emails the invoice to the customer.
func (c *StripeAPIClient) FinalizeInvoice(ctx context.Context, invoiceID string) (*Invoice, error) {
	params := &stripe.InvoiceFinalizeInvoiceParams{AutoAdvance: stripe.Bool(true)}
	params.Context = ctx

	inv, err := c.sc.Invoices.FinalizeInvoice(invoiceID, params)
	if err != nil {
		return nil, wrapError("finalize", err)
	}
	return fromStripe(inv), nil
}

// SendInvoice re-sends an open invoice to the customer.
func (c *StripeAPIClient) SendInvoice(ctx context.Context, invoiceID string) (*Invoice, error) {
	params := &stripe.InvoiceSendInvoiceParams{}
	params.Context = ctx

	inv, err := c.sc.Invoices.SendInvoice(invoiceID, params)
	if err != nil {
		return nil, wrapError("send", err)
	}
	return fromStripe(inv), nil
}

// VoidInvoice voids an open invoice.
func (c *StripeAPIClient) VoidInvoice(ctx context.Context, invoiceID string) (*Invoice, error) {
	params := &stripe.InvoiceVoidInvoiceParams{}
	params.Context = ctx

	inv, err := c.sc.Invoices.VoidInvoice(invoiceID, params)
	if err != nil {
		return nil, wrapError("void", err)
	}
	return fromStripe(inv), nil
}

func fromStripe(inv *stripe.Invoice) *Invoice {
	return &Invoice{
		ID:        inv.ID,
		HostedURL: inv.HostedInvoiceURL,
		PDFURL:    inv.InvoicePDF,
		Status:    string(inv.Status),
		AmountDue: inv.AmountDue,
	}
}

var _ APIClient = (*StripeAPIClient)(nil)
