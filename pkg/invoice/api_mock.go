package invoice

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// MockAPIClient is an in-memory APIClient for tests and for running the
// kiosk without payment-provider keys.
type MockAPIClient struct {
	SimulateErrors bool

	OnCreateCustomer  func(ctx context.Context, req *CustomerRequest) (string, error)
	OnCreateInvoice   func(ctx context.Context, req *DraftRequest) (*Invoice, error)
	OnAddLineItem     func(ctx context.Context, req *LineItemRequest) error
	OnFinalizeInvoice func(ctx context.Context, invoiceID string) (*Invoice, error)
	OnSendInvoice     func(ctx context.Context, invoiceID string) (*Invoice, error)
	OnVoidInvoice     func(ctx context.Context, invoiceID string) (*Invoice, error)

	mu        sync.Mutex
	customers []CustomerRequest
	invoices  map[string]*Invoice
}

// NewMockAPIClient creates a new mock API client with default behavior.
func NewMockAPIClient() *MockAPIClient {
	return &MockAPIClient{invoices: make(map[string]*Invoice)}
}

func (m *MockAPIClient) simulate(op string) error {
	if m.SimulateErrors {
		return &Error{Op: op, StatusCode: 402, Code: "mock_error", Cause: errors.New("simulated API error")}
	}
	return nil
}

// Customers returns every customer created so far.
func (m *MockAPIClient) Customers() []CustomerRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]CustomerRequest(nil), m.customers...)
}

// Invoice returns the stored invoice with the given ID.
func (m *MockAPIClient) Invoice(id string) (*Invoice, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.invoices[id]
	if !ok {
		return nil, false
	}
	cp := *inv
	return &cp, true
}

// CreateCustomer records the customer and returns a fresh ID.
func (m *MockAPIClient) CreateCustomer(ctx context.Context, req *CustomerRequest) (string, error) {
	if err := m.simulate("create customer"); err != nil {
		return "", err
	}
	if m.OnCreateCustomer != nil {
		return m.OnCreateCustomer(ctx, req)
	}
	m.mu.Lock()
	m.customers = append(m.customers, *req)
	m.mu.Unlock()
	return "cus_mock_" + uuid.NewString()[:8], nil
}

// CreateInvoice creates a draft invoice.
func (m *MockAPIClient) CreateInvoice(ctx context.Context, req *DraftRequest) (*Invoice, error) {
	if err := m.simulate("create"); err != nil {
		return nil, err
	}
	if m.OnCreateInvoice != nil {
		return m.OnCreateInvoice(ctx, req)
	}
	id := "in_mock_" + uuid.NewString()[:8]
	inv := &Invoice{ID: id, Status: "draft"}
	m.mu.Lock()
	m.invoices[id] = inv
	m.mu.Unlock()
	cp := *inv
	return &cp, nil
}

// AddLineItem adds the amount to the draft.
func (m *MockAPIClient) AddLineItem(ctx context.Context, req *LineItemRequest) error {
	if err := m.simulate("add line item"); err != nil {
		return err
	}
	if m.OnAddLineItem != nil {
		return m.OnAddLineItem(ctx, req)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.invoices[req.InvoiceID]
	if !ok {
		return &Error{Op: "add line item", StatusCode: 404, Code: "resource_missing", Cause: fmt.Errorf("no invoice %s", req.InvoiceID)}
	}
	inv.AmountDue += req.AmountCents
	return nil
}

// FinalizeInvoice opens the draft and assigns hosted and PDF URLs.
func (m *MockAPIClient) FinalizeInvoice(ctx context.Context, invoiceID string) (*Invoice, error) {
	if err := m.simulate("finalize"); err != nil {
		return nil, err
	}
	if m.OnFinalizeInvoice != nil {
		return m.OnFinalizeInvoice(ctx, invoiceID)
	}
	return m.transition("finalize", invoiceID, func(inv *Invoice) {
		inv.Status = "open"
		inv.HostedURL = "https://invoice.stripe.com/i/" + invoiceID
		inv.PDFURL = "https://pay.stripe.com/invoice/" + invoiceID + "/pdf"
	})
}

// SendInvoice returns the invoice unchanged.
func (m *MockAPIClient) SendInvoice(ctx context.Context, invoiceID string) (*Invoice, error) {
	if err := m.simulate("send"); err != nil {
		return nil, err
	}
	if m.OnSendInvoice != nil {
		return m.OnSendInvoice(ctx, invoiceID)
	}
	return m.transition("send", invoiceID, func(*Invoice) {})
}

// VoidInvoice marks the invoice void.
func (m *MockAPIClient) VoidInvoice(ctx context.Context, invoiceID string) (*Invoice, error) {
	if err := m.simulate("void"); err != nil {
		return nil, err
	}
	if m.OnVoidInvoice != nil {
		return m.OnVoidInvoice(ctx, invoiceID)
	}
	return m.transition("void", invoiceID, func(inv *Invoice) { inv.Status = "void" })
}

func (m *MockAPIClient) transition(op, invoiceID string, apply func(*Invoice)) (*Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.invoices[invoiceID]
	if !ok {
		return nil, &Error{Op: op, StatusCode: 404, Code: "resource_missing", Cause: fmt.Errorf("no invoice %s", invoiceID)}
	}
	apply(inv)
	cp := *inv
	return &cp, nil
}

var _ APIClient = (*MockAPIClient)(nil)
