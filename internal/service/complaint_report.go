package service

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/phpdave11/gofpdf"

	"github.com/citizenhub/complaint-service/internal/domain"
)

const reportRowLimit = 500

// BuildComplaintReport renders the admin table view and statistics as a PDF.
func BuildComplaintReport(page ComplaintPage, stats ComplaintStats, now time.Time) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("CitizenHub complaint report", true)
	pdf.SetMargins(14, 14, 14)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, "CitizenHub Complaint Report")
	pdf.Ln(9)

	pdf.SetFont("Helvetica", "", 10)
	pdf.SetTextColor(80, 80, 80)
	pdf.Cell(0, 6, "Generated "+now.UTC().Format(time.RFC1123))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Matching complaints: %d (page %d of %d)", page.Total, page.Page, max(page.TotalPages, 1)))
	pdf.Ln(9)

	pdf.SetTextColor(20, 20, 20)
	pdf.SetDrawColor(200, 200, 200)
	pdf.SetFillColor(248, 248, 248)
	pdf.SetFont("Helvetica", "B", 11)

	sumW := []float64{45.5, 45.5, 45.5, 45.5}
	pdf.CellFormat(sumW[0], 9, "Total", "1", 0, "C", true, 0, "")
	for i, status := range domain.ComplaintStatuses {
		ln := 0
		if i == len(domain.ComplaintStatuses)-1 {
			ln = 1
		}
		pdf.CellFormat(sumW[i+1], 9, string(status), "1", ln, "C", true, 0, "")
	}
	pdf.SetFont("Helvetica", "", 11)
	pdf.CellFormat(sumW[0], 9, fmt.Sprint(stats.Total), "1", 0, "C", false, 0, "")
	for i, status := range domain.ComplaintStatuses {
		ln := 0
		if i == len(domain.ComplaintStatuses)-1 {
			ln = 1
		}
		pdf.CellFormat(sumW[i+1], 9, fmt.Sprint(stats.ByStatus[status]), "1", ln, "C", false, 0, "")
	}
	pdf.Ln(4)

	if len(stats.ByCategory) > 0 {
		categories := make([]string, 0, len(stats.ByCategory))
		for category := range stats.ByCategory {
			categories = append(categories, category)
		}
		sort.Strings(categories)
		parts := make([]string, 0, len(categories))
		for _, category := range categories {
			parts = append(parts, fmt.Sprintf("%s: %d", category, stats.ByCategory[category]))
		}
		pdf.SetFont("Helvetica", "", 9)
		pdf.MultiCell(0, 5, tr("By category - "+strings.Join(parts, ", ")), "", "L", false)
		pdf.Ln(3)
	}

	colW := []float64{52, 38, 30, 24, 38}
	header := func() {
		pdf.SetFont("Helvetica", "B", 9)
		pdf.SetFillColor(245, 245, 245)
		pdf.CellFormat(colW[0], 8, "TITLE", "1", 0, "L", true, 0, "")
		pdf.CellFormat(colW[1], 8, "CITIZEN", "1", 0, "L", true, 0, "")
		pdf.CellFormat(colW[2], 8, "CATEGORY", "1", 0, "L", true, 0, "")
		pdf.CellFormat(colW[3], 8, "PRIORITY", "1", 0, "C", true, 0, "")
		pdf.CellFormat(colW[4], 8, "STATUS / CREATED", "1", 1, "C", true, 0, "")
		pdf.SetFont("Helvetica", "", 8)
	}
	header()

	for i, c := range page.Items {
		if i >= reportRowLimit {
			pdf.SetFont("Helvetica", "I", 8)
			pdf.CellFormat(0, 8, "truncated", "1", 1, "C", false, 0, "")
			break
		}
		if pdf.GetY() > 270 {
			pdf.AddPage()
			header()
		}
		pdf.CellFormat(colW[0], 7, tr(trimTo(c.Title, 34)), "1", 0, "L", false, 0, "")
		pdf.CellFormat(colW[1], 7, tr(trimTo(c.UserName, 24)), "1", 0, "L", false, 0, "")
		pdf.CellFormat(colW[2], 7, tr(trimTo(c.Category, 20)), "1", 0, "L", false, 0, "")
		pdf.CellFormat(colW[3], 7, string(c.Priority), "1", 0, "C", false, 0, "")
		pdf.CellFormat(colW[4], 7, string(c.Status)+" / "+c.CreatedAt.Format("2006-01-02"), "1", 1, "C", false, 0, "")
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render complaint report: %w", err)
	}
	return buf.Bytes(), nil
}

func trimTo(s string, max int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max <= 3 {
		return string(r[:max])
	}
	return string(r[:max-3]) + "..."
}
