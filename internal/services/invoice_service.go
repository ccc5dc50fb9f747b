package services

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/phpdave11/gofpdf"

	"github.com/tourhub/booking-backend/internal/models"
)

// PDFInvoiceRenderer renders invoices as single-page A4 PDFs
type PDFInvoiceRenderer struct {
	companyName string
}

// NewPDFInvoiceRenderer creates a renderer that prints companyName in the header
func NewPDFInvoiceRenderer(companyName string) *PDFInvoiceRenderer {
	if companyName == "" {
		companyName = "Tour Booking"
	}
	return &PDFInvoiceRenderer{companyName: companyName}
}

// Render builds the invoice document
func (r *PDFInvoiceRenderer) Render(data *models.InvoiceData) ([]byte, error) {
	if data == nil {
		return nil, fmt.Errorf("invoice data cannot be nil")
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Invoice "+data.TransactionID, true)
	pdf.SetAuthor(r.companyName, true)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 20)
	pdf.CellFormat(0, 12, r.companyName, "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 11)
	pdf.CellFormat(0, 7, "Invoice", "", 1, "L", false, 0, "")
	pdf.Ln(6)

	label := func(k, v string) {
		pdf.SetFont("Helvetica", "B", 11)
		pdf.CellFormat(45, 7, k, "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 11)
		pdf.CellFormat(0, 7, v, "", 1, "L", false, 0, "")
	}
	label("Transaction ID", data.TransactionID)
	label("Booking ID", data.BookingID.String())
	label("Booking date", data.BookingDate.Format("02 Jan 2006"))
	label("Customer", data.UserName)
	label("Email", data.UserEmail)
	pdf.Ln(6)

	pdf.SetFillColor(235, 235, 235)
	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(110, 8, "Tour", "1", 0, "L", true, 0, "")
	pdf.CellFormat(25, 8, "Guests", "1", 0, "C", true, 0, "")
	pdf.CellFormat(0, 8, "Amount ("+data.Currency+")", "1", 1, "R", true, 0, "")

	pdf.SetFont("Helvetica", "", 11)
	pdf.CellFormat(110, 8, data.TourTitle, "1", 0, "L", false, 0, "")
	pdf.CellFormat(25, 8, strconv.Itoa(data.GuestCount), "1", 0, "C", false, 0, "")
	pdf.CellFormat(0, 8, data.BaseAmount.String(), "1", 1, "R", false, 0, "")

	if data.Discount > 0 {
		pdf.CellFormat(135, 8, "Discount", "1", 0, "R", false, 0, "")
		pdf.CellFormat(0, 8, "-"+data.Discount.String(), "1", 1, "R", false, 0, "")
	}

	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(135, 8, "Total paid", "1", 0, "R", false, 0, "")
	pdf.CellFormat(0, 8, data.TotalAmount.String(), "1", 1, "R", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render invoice: %w", err)
	}
	return buf.Bytes(), nil
}

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// LocalInvoiceStorage writes invoices to a directory served under a public base URL
type LocalInvoiceStorage struct {
	dir     string
	baseURL string
}

// NewLocalInvoiceStorage creates the storage directory if needed
func NewLocalInvoiceStorage(dir, baseURL string) (*LocalInvoiceStorage, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create invoice directory: %w", err)
	}
	return &LocalInvoiceStorage{dir: dir, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Store writes content as <name>.pdf and returns its public URL. An existing
// file with the same name is replaced.
func (s *LocalInvoiceStorage) Store(ctx context.Context, content []byte, name string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	name = unsafeName.ReplaceAllString(name, "_")
	if name == "" || name == "." || name == ".." {
		return "", fmt.Errorf("invalid invoice name")
	}
	file := name + ".pdf"

	tmp, err := os.CreateTemp(s.dir, file+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("failed to create invoice file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to write invoice: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to write invoice: %w", err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, file)); err != nil {
		return "", fmt.Errorf("failed to store invoice: %w", err)
	}

	return s.baseURL + "/" + file, nil
}
