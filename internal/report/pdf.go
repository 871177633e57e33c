package report

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/jung-kurt/gofpdf"

	"example.com/psfgate/internal/common"
)

// SaveSummaryPDF renders the summary into a PDF document. A QR code of the
// file digest is placed next to the title when the digest is known.
func SaveSummaryPDF(sum Summary, out string) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("PSF Decode Summary", false)
	pdf.SetAuthor("psfctl", false)
	pdf.SetCreator("psfctl", false)
	pdf.SetMargins(15, 20, 15)
	pdf.SetAutoPageBreak(true, 20)
	pdf.AddPage()

	if err := addDigestQR(pdf, sum.Sha256); err != nil {
		return err
	}
	addPDFTitle(pdf, "PSF Decode Summary")
	addFileSection(pdf, sum)
	addHeaderSection(pdf, sum)
	addSignalSection(pdf, sum.Signals)

	if pdf.Err() {
		return pdf.Error()
	}
	return pdf.OutputFileAndClose(out)
}

func addPDFTitle(pdf *gofpdf.Fpdf, title string) {
	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, title)
	pdf.Ln(12)
}

func addDigestQR(pdf *gofpdf.Fpdf, hash string) error {
	if sanitizeHash(hash) == "" {
		return nil
	}
	png, err := HashToQR(hash, 256)
	if err != nil {
		return err
	}
	opts := gofpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("digest", opts, bytes.NewReader(png))
	w, _ := pdf.GetPageSize()
	_, _, right, _ := pdf.GetMargins()
	pdf.ImageOptions("digest", w-right-30, 15, 30, 30, false, opts, 0, "")
	return nil
}

func addFileSection(pdf *gofpdf.Fpdf, sum Summary) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, "File")
	pdf.Ln(8)

	pdf.SetFont("Helvetica", "", 11)
	items := []struct {
		label string
		value string
	}{
		{label: "Path", value: emptyFallback(sum.File, "-")},
		{label: "Stored Size", value: common.FormatBytes(sum.StoredSize)},
		{label: "Decoded Size", value: common.FormatBytes(sum.DecodedSize)},
		{label: "Compression", value: emptyFallback(sum.Compression, common.CompressionNone)},
		{label: "SHA-256", value: emptyFallback(sum.Sha256, "-")},
		{label: "Sweep", value: emptyFallback(sum.Sweep, "none")},
		{label: "Sweep Points", value: strconv.Itoa(sum.SweepPoints)},
		{label: "Window Size", value: strconv.FormatInt(sum.WindowSize, 10)},
		{label: "Signals", value: strconv.Itoa(len(sum.Signals))},
	}
	for _, item := range items {
		pdf.CellFormat(40, 6, item.label, "", 0, "L", false, 0, "")
		pdf.MultiCell(0, 6, item.value, "", "L", false)
	}
	pdf.Ln(4)
}

func addHeaderSection(pdf *gofpdf.Fpdf, sum Summary) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, "Header")
	pdf.Ln(9)

	keys := sum.HeaderKeys()
	if len(keys) == 0 {
		pdf.SetFont("Helvetica", "", 11)
		pdf.MultiCell(0, 6, "No header properties.", "", "L", false)
		pdf.Ln(4)
		return
	}
	widths := []float64{70, 110}
	addTableHeader(pdf, widths, []string{"Key", "Value"})
	pdf.SetFont("Helvetica", "", 9)
	for _, k := range keys {
		renderTableRow(pdf, widths, []string{k, sum.Header[k]}, 5)
	}
	pdf.Ln(4)
}

func addSignalSection(pdf *gofpdf.Fpdf, signals []SignalSummary) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, "Signals")
	pdf.Ln(9)

	if len(signals) == 0 {
		pdf.SetFont("Helvetica", "", 11)
		pdf.MultiCell(0, 6, "No signals recorded.", "", "L", false)
		return
	}
	widths := []float64{50, 28, 22, 16, 18, 23, 23}
	addTableHeader(pdf, widths, []string{"Name", "Group", "Type", "Units", "Count", "Min", "Max"})
	pdf.SetFont("Helvetica", "", 9)
	for _, s := range signals {
		values := []string{
			s.Name,
			emptyFallback(s.Group, "-"),
			s.Type,
			emptyFallback(s.Units, "-"),
			strconv.Itoa(s.Count),
			formatBound(s.Min),
			formatBound(s.Max),
		}
		renderTableRow(pdf, widths, values, 5)
	}
}

func addTableHeader(pdf *gofpdf.Fpdf, widths []float64, headers []string) {
	pdf.SetFillColor(240, 240, 240)
	pdf.SetFont("Helvetica", "B", 10)
	for i, h := range headers {
		pdf.CellFormat(widths[i], 7, h, "1", 0, "L", true, 0, "")
	}
	pdf.Ln(-1)
}

func renderTableRow(pdf *gofpdf.Fpdf, widths []float64, values []string, lineHeight float64) {
	xStart := pdf.GetX()
	yStart := pdf.GetY()
	maxLines := 1
	splitCols := make([][]string, len(values))
	for i, val := range values {
		text := emptyFallback(val, "-")
		lines := pdf.SplitText(text, widths[i]-2)
		if len(lines) == 0 {
			lines = []string{""}
		}
		splitCols[i] = lines
		if len(lines) > maxLines {
			maxLines = len(lines)
		}
	}
	rowHeight := float64(maxLines) * lineHeight
	x := xStart
	for i, lines := range splitCols {
		pdf.SetXY(x, yStart)
		pdf.MultiCell(widths[i], lineHeight, strings.Join(lines, "\n"), "1", "L", false)
		x += widths[i]
	}
	pdf.SetXY(xStart, yStart+rowHeight)
}

func formatBound(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.4g", *v)
}

func emptyFallback(val, fallback string) string {
	if strings.TrimSpace(val) == "" {
		return fallback
	}
	return val
}
