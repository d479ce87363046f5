package pdf

import (
	"bytes"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/jung-kurt/gofpdf"

	"smartcrm/internal/models"
)

// Renderer is the interface handlers and services depend on (easy to mock).
type Renderer interface {
	LeadDossier(d *models.LeadDetail, generatedBy string, at time.Time) ([]byte, error)
}

// DossierGenerator renders lead dossiers. With an empty or missing FontPath
// it falls back to the core Helvetica font, which covers Latin-1 only.
type DossierGenerator struct {
	FontPath string // например "assets/fonts/DejaVuSans.ttf"
	fontName string
}

func NewDossierGenerator(fontPath string) *DossierGenerator {
	return &DossierGenerator{FontPath: fontPath}
}

func (g *DossierGenerator) LeadDossier(d *models.LeadDetail, generatedBy string, at time.Time) ([]byte, error) {
	if d == nil || d.Lead == nil {
		return nil, fmt.Errorf("lead is required")
	}
	l := d.Lead

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Lead "+l.LeadID, true)
	pdf.SetAuthor("SmartCRM", false)
	pdf.SetMargins(20, 20, 20)
	pdf.SetAutoPageBreak(true, 20)
	g.addFont(pdf)
	pdf.AddPage()

	pdf.SetFont(g.fontName, "B", 18)
	pdf.CellFormat(0, 10, "LEAD DOSSIER", "", 1, "C", false, 0, "")
	pdf.SetFont(g.fontName, "", 12)
	pdf.CellFormat(0, 7, fmt.Sprintf("%s  /  %s", l.LeadID, l.CompanyName), "", 1, "C", false, 0, "")
	g.hr(pdf)

	g.sectionTitle(pdf, "Pipeline")
	g.kvLine(pdf, "Status", l.LeadStatus)
	g.kvLine(pdf, "Percentage", strconv.Itoa(l.LeadPercentage)+"%")
	g.kvLine(pdf, "Lead Date", l.LeadDate)
	g.kvLine(pdf, "Aging", fmt.Sprintf("%d days", l.LeadAging))
	g.kvLine(pdf, "Owner", str(l.LeadOwner))
	g.kvLine(pdf, "Assigned To", str(l.AssignedToName))
	g.kvLine(pdf, "Next Follow-up", str(l.NextFollowUpDate))
	g.kvLine(pdf, "Closer Date", str(l.LeadCloserDate))
	g.hr(pdf)

	g.sectionTitle(pdf, "Company")
	g.kvLine(pdf, "Industry", str(l.IndustryType))
	g.kvLine(pdf, "System", str(l.System))
	g.kvLine(pdf, "Project/AMC", str(l.ProjectAMC))
	g.kvLine(pdf, "GSTIN", str(l.GSTIN))
	g.kvLine(pdf, "Location", joinNonEmpty(", ", str(l.City), str(l.District), str(l.State), str(l.PinCode)))
	pdf.SetFont(g.fontName, "", 11)
	if addr := str(l.FullAddress); addr != "" {
		pdf.MultiCell(0, 6, addr, "", "L", false)
	}
	g.hr(pdf)

	g.sectionTitle(pdf, "Contact")
	g.kvLine(pdf, "Customer", str(l.CustomerName))
	g.kvLine(pdf, "Designation", str(l.DesignationCustomer))
	g.kvLine(pdf, "Phone", str(l.ContactNo))
	g.kvLine(pdf, "Email", str(l.EmailID))
	g.kvLine(pdf, "Channel", str(l.MethodOfCommunication))
	g.hr(pdf)

	g.sectionTitle(pdf, "Commercials")
	g.kvLine(pdf, "Approx Value", money(l.ApproxValue))
	g.kvLine(pdf, "Negotiated Value", money(l.NegotiatedValue))
	g.kvLine(pdf, "Closing Amount", money(l.ClosingAmount))
	g.kvLine(pdf, "Received", money(l.ReceivedAmount))
	g.kvLine(pdf, "Balance", money(l.BalanceAmount))
	g.kvLine(pdf, "Payment Term", str(l.PaymentTerm))
	g.hr(pdf)

	if len(d.StatusHistory) > 0 {
		g.sectionTitle(pdf, "Status History")
		pdf.SetFont(g.fontName, "B", 10)
		pdf.CellFormat(35, 6, "Date", "B", 0, "L", false, 0, "")
		pdf.CellFormat(55, 6, "Change", "B", 0, "L", false, 0, "")
		pdf.CellFormat(0, 6, "By", "B", 1, "L", false, 0, "")
		pdf.SetFont(g.fontName, "", 10)
		for _, h := range d.StatusHistory {
			change := h.NewStatus
			if h.OldStatus != nil && *h.OldStatus != "" {
				change = *h.OldStatus + " -> " + h.NewStatus
			}
			pdf.CellFormat(35, 6, h.ChangedAt.Format("2006-01-02 15:04"), "", 0, "L", false, 0, "")
			pdf.CellFormat(55, 6, change, "", 0, "L", false, 0, "")
			pdf.CellFormat(0, 6, str(h.ChangedByName), "", 1, "L", false, 0, "")
		}
	}

	pdf.AliasNbPages("")
	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont(g.fontName, "", 9)
		pdf.CellFormat(0, 10,
			fmt.Sprintf("Generated %s by %s  -  Page %d/{nb}", at.Format("2006-01-02 15:04"), generatedBy, pdf.PageNo()),
			"", 0, "C", false, 0, "",
		)
	})

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ===== helpers =====

func (g *DossierGenerator) addFont(pdf *gofpdf.Fpdf) {
	if g.FontPath != "" {
		if _, err := os.Stat(g.FontPath); err == nil {
			g.fontName = "DejaVu"
			pdf.AddUTF8Font(g.fontName, "", g.FontPath)
			pdf.AddUTF8Font(g.fontName, "B", g.FontPath)
			return
		}
	}
	g.fontName = "Helvetica"
}

func (g *DossierGenerator) sectionTitle(pdf *gofpdf.Fpdf, s string) {
	pdf.SetFont(g.fontName, "B", 12)
	pdf.CellFormat(0, 7, s, "", 1, "L", false, 0, "")
	pdf.SetFont(g.fontName, "", 11)
}

func (g *DossierGenerator) kvLine(pdf *gofpdf.Fpdf, key, val string) {
	if val == "" {
		val = "-"
	}
	pdf.SetFont(g.fontName, "B", 11)
	pdf.CellFormat(45, 6, key+":", "", 0, "L", false, 0, "")
	pdf.SetFont(g.fontName, "", 11)
	pdf.CellFormat(0, 6, val, "", 1, "L", false, 0, "")
}

func (g *DossierGenerator) hr(pdf *gofpdf.Fpdf) {
	y := pdf.GetY() + 1.5
	pdf.SetLineWidth(0.2)
	pdf.Line(20, y, 190, y)
	pdf.SetY(y + 2)
}

func str(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func money(p *float64) string {
	if p == nil {
		return ""
	}
	return strconv.FormatFloat(*p, 'f', 2, 64)
}

func joinNonEmpty(sep string, parts ...string) string {
	out := ""
	for _, p := range parts {
		if p == "" {
			continue
		}
		if out != "" {
			out += sep
		}
		out += p
	}
	return out
}
