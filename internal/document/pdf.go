package document

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/frontandrew/attestation/internal/domain"
	"github.com/jung-kurt/gofpdf"
)

const (
	fontName  = "Helvetica"
	dateShort = "02/01/2006"

	pageWidth  = 297.0
	margin     = 10.0
	stubWidth  = 70.0
	slipWidth  = 70.0
	bodyWidth  = pageWidth - 2*margin - stubWidth - slipWidth
	lineHeight = 5.0
)

// Renderer собирает печатный PDF аттестатов: корешок, основной бланк и талон на лобовое стекло
type Renderer struct {
	issuer    string
	publicURL string
}

// NewRenderer создает Renderer. publicURL - базовый адрес публичной проверки аттестата.
func NewRenderer(issuer, publicURL string) *Renderer {
	return &Renderer{
		issuer:    issuer,
		publicURL: strings.TrimRight(publicURL, "/"),
	}
}

// VerificationURL возвращает адрес публичной проверки аттестата
func (r *Renderer) VerificationURL(id fmt.Stringer) string {
	return r.publicURL + "/verify/" + id.String()
}

// Render возвращает PDF, по одной странице A4 (альбомная) на аттестат
func (r *Renderer) Render(certs []*domain.Certificate) ([]byte, error) {
	if len(certs) == 0 {
		return nil, errors.New("no certificates to render")
	}

	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(margin, margin, margin)
	pdf.SetAutoPageBreak(false, margin)
	// Базовые шрифты работают в cp1252; переводим UTF-8 для французских меток
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	for _, cert := range certs {
		pdf.AddPage()
		r.stub(pdf, tr, cert)
		r.body(pdf, tr, cert)
		r.slip(pdf, tr, cert)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

type translator func(string) string

// stub - корешок, остается в агентстве
func (r *Renderer) stub(pdf *gofpdf.Fpdf, tr translator, c *domain.Certificate) {
	x := margin
	pdf.SetXY(x, margin)

	pdf.SetFont(fontName, "B", 10)
	pdf.MultiCell(stubWidth-4, lineHeight, tr(r.issuer), "", "L", false)
	pdf.SetFont(fontName, "", 8)
	pdf.SetX(x)
	pdf.CellFormat(stubWidth-4, lineHeight, tr(fmt.Sprintf("Feuillet N° %d (%s)", c.SheetNumber, c.SheetType)), "", 1, "L", false, 0, "")
	pdf.Ln(2)

	field(pdf, tr, x, stubWidth-4, "Police N°", c.PolicyNumber)
	field(pdf, tr, x, stubWidth-4, "Véhicule N°", c.VehicleID)
	field(pdf, tr, x, stubWidth-4, "Souscripteur", c.Holder)
	field(pdf, tr, x, stubWidth-4, "Valable du", formatDate(c.EffectiveDate))
	field(pdf, tr, x, stubWidth-4, "Au", formatDate(c.ExpiryDate))

	pdf.Ln(6)
	pdf.SetX(x)
	pdf.SetFont(fontName, "I", 7)
	pdf.MultiCell(stubWidth-4, 4, tr("Talon à retourner au siège avec la note de couverture ou la police"), "", "L", false)

	// Линия отрыва
	pdf.SetDashPattern([]float64{1, 1}, 0)
	pdf.Line(margin+stubWidth, margin, margin+stubWidth, 210-margin)
	pdf.SetDashPattern([]float64{}, 0)
}

// body - основной бланк аттестата
func (r *Renderer) body(pdf *gofpdf.Fpdf, tr translator, c *domain.Certificate) {
	x := margin + stubWidth + 4
	w := bodyWidth - 8
	pdf.SetXY(x, margin)

	pdf.SetFont(fontName, "B", 14)
	pdf.CellFormat(w, 8, tr("ATTESTATION D'ASSURANCE"), "", 1, "C", false, 0, "")
	pdf.SetX(x)
	pdf.SetFont(fontName, "", 9)
	pdf.CellFormat(w, lineHeight, tr(r.issuer), "", 1, "C", false, 0, "")
	pdf.Ln(4)

	top := pdf.GetY()
	pdf.SetX(x)
	field(pdf, tr, x, w, "N° de la police", c.PolicyNumber)
	field(pdf, tr, x, w, "Souscripteur (Nom et Prénoms)", c.Holder)
	field(pdf, tr, x, w, "Adresse", safeValue(c.Address))
	field(pdf, tr, x, w, "Valable du", formatDate(c.EffectiveDate)+" 0:00   au "+formatDate(c.ExpiryDate)+" 24:00")
	pdf.Rect(x-1, top-1, w+2, pdf.GetY()-top+2, "D")
	pdf.Ln(4)

	pdf.SetX(x)
	pdf.SetFont(fontName, "B", 9)
	pdf.CellFormat(w, lineHeight, tr("Véhicule assuré"), "", 1, "L", false, 0, "")

	headers := []string{"Genre", "Marque", "N° d'immatriculation", "Nombre de places"}
	values := []string{safeValue(c.Usage), safeValue(c.Brand), c.VehicleID, strconv.Itoa(c.Seats)}
	colWidth := w / float64(len(headers))

	pdf.SetX(x)
	pdf.SetFont(fontName, "B", 8)
	for _, h := range headers {
		pdf.CellFormat(colWidth, 7, tr(h), "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)
	pdf.SetX(x)
	pdf.SetFont(fontName, "", 9)
	for _, v := range values {
		pdf.CellFormat(colWidth, 8, tr(v), "1", 0, "C", false, 0, "")
	}
	pdf.Ln(12)

	pdf.SetX(x)
	pdf.SetFont(fontName, "", 7)
	pdf.CellFormat(w, 4, tr("Vérification : "+r.VerificationURL(c.ID)), "", 1, "L", false, 0, "")
}

// slip - талон на лобовое стекло
func (r *Renderer) slip(pdf *gofpdf.Fpdf, tr translator, c *domain.Certificate) {
	left := pageWidth - margin - slipWidth
	x := left + 4
	w := slipWidth - 4

	pdf.SetDashPattern([]float64{1, 1}, 0)
	pdf.Line(left, margin, left, 210-margin)
	pdf.SetDashPattern([]float64{}, 0)

	pdf.SetXY(x, margin)
	pdf.SetFont(fontName, "B", 9)
	pdf.MultiCell(w, lineHeight, tr(r.issuer), "", "C", false)
	pdf.Ln(3)

	field(pdf, tr, x, w, "MARQUE", safeValue(c.Brand))
	field(pdf, tr, x, w, "N° IMM", c.VehicleID)
	field(pdf, tr, x, w, "VALIDITÉ DU", formatDate(c.EffectiveDate))
	field(pdf, tr, x, w, "AU", formatDate(c.ExpiryDate))

	pdf.Ln(4)
	pdf.SetX(x)
	pdf.SetFont(fontName, "I", 7)
	pdf.MultiCell(w, 4, tr("Volet à apposer sur le pare-brise de votre véhicule"), "1", "C", false)

	pdf.Ln(6)
	pdf.SetX(x)
	pdf.SetFont(fontName, "", 7)
	pdf.CellFormat(w, 4, tr("Délivrée le : "+formatDate(c.CreatedAt)), "", 1, "L", false, 0, "")
	pdf.SetX(x)
	pdf.CellFormat(w, 4, tr("Pour la société, cachet et signature"), "", 1, "L", false, 0, "")
}

func field(pdf *gofpdf.Fpdf, tr translator, x, w float64, label, value string) {
	pdf.SetX(x)
	pdf.SetFont(fontName, "", 7)
	pdf.CellFormat(w, 4, tr(label), "", 1, "L", false, 0, "")
	pdf.SetX(x)
	pdf.SetFont(fontName, "B", 9)
	pdf.MultiCell(w, lineHeight, tr(value), "", "L", false)
}

func safeValue(value string) string {
	if strings.TrimSpace(value) == "" {
		return "-"
	}
	return value
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format(dateShort)
}
