package export

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// CertificateDocument carries everything printed on an authorship certificate.
type CertificateDocument struct {
	CertificateID string
	Fingerprint   string
	Author        string
	Content       string
	Category      string
	CreatedAt     time.Time
	LockedAt      time.Time
}

// CertificatePDFExporter renders authorship certificates as PDF documents.
type CertificatePDFExporter struct{}

// NewCertificatePDFExporter constructs a PDF exporter.
func NewCertificatePDFExporter() *CertificatePDFExporter {
	return &CertificatePDFExporter{}
}

// Render creates a single-page certificate PDF.
func (e *CertificatePDFExporter) Render(doc CertificateDocument) ([]byte, error) {
	if doc.CertificateID == "" || doc.Fingerprint == "" {
		return nil, fmt.Errorf("certificate id and fingerprint required")
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 20, 15)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 18)
	pdf.CellFormat(0, 12, "CERTIFICATE OF AUTHORSHIP", "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "", 11)
	pdf.CellFormat(0, 8, "Orphan Bars", "", 1, "C", false, 0, "")
	pdf.Ln(6)

	pdf.SetFont("Arial", "B", 13)
	pdf.CellFormat(0, 10, doc.CertificateID, "", 1, "C", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Arial", "I", 11)
	for _, line := range strings.Split(doc.Content, "\n") {
		pdf.MultiCell(0, 6, fmt.Sprintf("%q", line), "", "C", false)
	}
	pdf.Ln(8)

	rows := [][2]string{
		{"Author", doc.Author},
		{"Category", doc.Category},
		{"Created", doc.CreatedAt.UTC().Format(time.RFC3339)},
		{"Locked", doc.LockedAt.UTC().Format(time.RFC3339)},
	}
	pdf.SetFont("Arial", "", 10)
	for _, row := range rows {
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(40, 7, row[0], "", 0, "", false, 0, "")
		pdf.SetFont("Arial", "", 10)
		pdf.CellFormat(0, 7, row[1], "", 1, "", false, 0, "")
	}
	pdf.Ln(6)

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(0, 7, "Content fingerprint (SHA-256)", "", 1, "", false, 0, "")
	pdf.SetFont("Courier", "", 9)
	pdf.MultiCell(0, 5, doc.Fingerprint, "", "", false)

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render certificate pdf: %w", err)
	}
	return buf.Bytes(), nil
}
