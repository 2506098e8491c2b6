package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/pressly/goose/v3"
	"github.com/tournevent/kiosk/internal/shipment"
	"github.com/tournevent/kiosk/pkg/shipper"
)

//go:embed migrations/*.sql
var migrations embed.FS

const uniqueViolation = "23505"

// PostgresStore persists shipments in PostgreSQL.
type PostgresStore struct {
	db  *sql.DB
	now func() time.Time
}

// OpenPostgres connects to the database at dsn and verifies the connection.
func OpenPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return db, nil
}

// Migrate applies the embedded schema migrations.
func Migrate(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}
	return nil
}

// NewPostgresStore wraps an open database handle.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db, now: time.Now}
}

const shipmentColumns = `id, tracking_number,
	recipient_name, recipient_email, recipient_phone_area_code, recipient_phone_number, recipient_organization,
	street_number, street_name, city, province, postal_code, country,
	length_in, width_in, height_in, weight_lb,
	billing_type, billing_account,
	estimated_cost, label, carrier_response,
	invoice_id, invoice_hosted_url, invoice_pdf_url,
	payment_status, status,
	created_at, updated_at, paid_at, payment_event_at`

// InsertShipment inserts a new shipment row.
func (p *PostgresStore) InsertShipment(ctx context.Context, s *shipment.Shipment) error {
	if err := checkInvariants(s); err != nil {
		return &Error{Op: "insert", ID: s.ID, Cause: err}
	}

	var invoiceID, hostedURL, pdfURL sql.NullString
	if s.Invoice != nil {
		invoiceID = nullString(s.Invoice.ID)
		hostedURL = nullString(s.Invoice.HostedURL)
		pdfURL = nullString(s.Invoice.PDFURL)
	}

	query := `INSERT INTO shipments (` + shipmentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17,
			$18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28, $29, $30, $31)`

	_, err := p.db.ExecContext(ctx, query,
		s.ID, s.TrackingNumber,
		s.Recipient.Name, s.Recipient.Email, s.Recipient.Phone.AreaCode, s.Recipient.Phone.Number, s.Recipient.Organization,
		s.Destination.StreetNumber, s.Destination.StreetName, s.Destination.City, s.Destination.Province, s.Destination.PostalCode, s.Destination.Country,
		s.Package.Length, s.Package.Width, s.Package.Height, s.Package.Weight,
		string(s.Billing.Type), s.Billing.Account,
		nullFloat(s.EstimatedCost), nullString(s.Label), nullString(s.CarrierResponse),
		invoiceID, hostedURL, pdfURL,
		string(s.PaymentStatus), string(s.Status),
		s.CreatedAt, s.UpdatedAt, nullTime(s.PaidAt), nullTime(s.PaymentEventAt),
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			return &Error{Op: "insert", ID: s.ID, Cause: fmt.Errorf("%w: %s", ErrDuplicateTracking, pqErr.Constraint)}
		}
		return &Error{Op: "insert", ID: s.ID, Cause: err}
	}
	return nil
}

// UpdateShipmentFields writes the non-nil fields of u and bumps updated_at.
// A guarded update only matches a row still in the guarded payment state.
func (p *PostgresStore) UpdateShipmentFields(ctx context.Context, id string, u Update) error {
	if u.Empty() {
		return p.checkExists(ctx, id)
	}

	var sets []string
	var args []interface{}
	add := func(column string, value interface{}) {
		args = append(args, value)
		sets = append(sets, column+" = $"+strconv.Itoa(len(args)))
	}

	if u.Label != nil {
		add("label", nullString(*u.Label))
	}
	if u.Invoice != nil {
		add("invoice_id", nullString(u.Invoice.ID))
		add("invoice_hosted_url", nullString(u.Invoice.HostedURL))
		add("invoice_pdf_url", nullString(u.Invoice.PDFURL))
	}
	if u.PaymentStatus != nil {
		add("payment_status", string(*u.PaymentStatus))
	}
	if u.InitialPaymentStatus != nil {
		args = append(args, string(*u.InitialPaymentStatus))
		sets = append(sets, "payment_status = CASE WHEN payment_status = 'none' THEN $"+strconv.Itoa(len(args))+" ELSE payment_status END")
	}
	if u.PaidAt != nil {
		add("paid_at", *u.PaidAt)
	}
	if u.PaymentEventAt != nil {
		add("payment_event_at", *u.PaymentEventAt)
	}
	if u.Status != nil {
		add("status", string(*u.Status))
	}
	add("updated_at", p.now())

	args = append(args, id)
	query := "UPDATE shipments SET " + strings.Join(sets, ", ") + " WHERE id = $" + strconv.Itoa(len(args))
	if g := u.IfPayment; g != nil {
		args = append(args, string(g.Status))
		query += " AND payment_status = $" + strconv.Itoa(len(args))
		args = append(args, nullTime(g.EventAt))
		query += " AND payment_event_at IS NOT DISTINCT FROM $" + strconv.Itoa(len(args))
	}

	res, err := p.db.ExecContext(ctx, query, args...)
	if err != nil {
		return &Error{Op: "update", ID: id, Cause: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return &Error{Op: "update", ID: id, Cause: err}
	}
	if n == 0 && u.IfPayment != nil {
		if err := p.checkExists(ctx, id); err != nil {
			return err
		}
		return &Error{Op: "update", ID: id, Cause: ErrConflict}
	}
	if n == 0 {
		return &Error{Op: "update", ID: id, Cause: ErrNotFound}
	}
	return nil
}

func (p *PostgresStore) checkExists(ctx context.Context, id string) error {
	var exists bool
	err := p.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM shipments WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return &Error{Op: "update", ID: id, Cause: err}
	}
	if !exists {
		return &Error{Op: "update", ID: id, Cause: ErrNotFound}
	}
	return nil
}

// GetShipmentByID loads one shipment.
func (p *PostgresStore) GetShipmentByID(ctx context.Context, id string) (*shipment.Shipment, error) {
	row := p.db.QueryRowContext(ctx, `SELECT `+shipmentColumns+` FROM shipments WHERE id = $1`, id)
	s, err := scanShipment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &Error{Op: "get", ID: id, Cause: ErrNotFound}
	}
	if err != nil {
		return nil, &Error{Op: "get", ID: id, Cause: err}
	}
	return s, nil
}

// ListShipments returns the most recent shipments first.
func (p *PostgresStore) ListShipments(ctx context.Context, limit int) ([]*shipment.Shipment, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := p.db.QueryContext(ctx, `SELECT `+shipmentColumns+` FROM shipments ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, &Error{Op: "list", Cause: err}
	}
	defer rows.Close()

	var out []*shipment.Shipment
	for rows.Next() {
		s, err := scanShipment(rows)
		if err != nil {
			return nil, &Error{Op: "list", Cause: err}
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, &Error{Op: "list", Cause: err}
	}
	return out, nil
}

// Close closes the database handle.
func (p *PostgresStore) Close() error {
	return p.db.Close()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanShipment(row scanner) (*shipment.Shipment, error) {
	var (
		s                            shipment.Shipment
		billingType                  string
		paymentStatus, status        string
		estimatedCost                sql.NullFloat64
		label, carrierResponse       sql.NullString
		invoiceID, hostedURL, pdfURL sql.NullString
		paidAt, paymentEventAt       sql.NullTime
	)

	err := row.Scan(
		&s.ID, &s.TrackingNumber,
		&s.Recipient.Name, &s.Recipient.Email, &s.Recipient.Phone.AreaCode, &s.Recipient.Phone.Number, &s.Recipient.Organization,
		&s.Destination.StreetNumber, &s.Destination.StreetName, &s.Destination.City, &s.Destination.Province, &s.Destination.PostalCode, &s.Destination.Country,
		&s.Package.Length, &s.Package.Width, &s.Package.Height, &s.Package.Weight,
		&billingType, &s.Billing.Account,
		&estimatedCost, &label, &carrierResponse,
		&invoiceID, &hostedURL, &pdfURL,
		&paymentStatus, &status,
		&s.CreatedAt, &s.UpdatedAt, &paidAt, &paymentEventAt,
	)
	if err != nil {
		return nil, err
	}

	s.Recipient.Phone.CountryCode = "1"
	s.Destination.Name = s.Recipient.Name
	s.Destination.Company = s.Recipient.Organization
	s.Destination.Phone = s.Recipient.Phone
	s.Destination.Email = s.Recipient.Email
	if s.Destination.Country == "" {
		s.Destination.Country = shipper.DefaultCountry
	}

	s.Billing.Type = shipment.BillingType(billingType)
	s.PaymentStatus = shipment.PaymentStatus(paymentStatus)
	s.Status = shipment.Status(status)
	s.Label = label.String
	s.CarrierResponse = carrierResponse.String
	if estimatedCost.Valid {
		v := estimatedCost.Float64
		s.EstimatedCost = &v
	}
	if invoiceID.Valid {
		s.Invoice = &shipment.InvoiceRef{ID: invoiceID.String, HostedURL: hostedURL.String, PDFURL: pdfURL.String}
	}
	if paidAt.Valid {
		t := paidAt.Time
		s.PaidAt = &t
	}
	if paymentEventAt.Valid {
		t := paymentEventAt.Time
		s.PaymentEventAt = &t
	}
	return &s, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

var _ Store = (*PostgresStore)(nil)
