// Package invoice renders orders as PDF invoices. All amounts come from the
// order's product snapshots, so an invoice never changes after checkout.
package invoice

import (
	"fmt"
	"io"

	"github.com/fjod/go_shop/internal/domain"
	"github.com/go-pdf/fpdf"
)

const ContentType = "application/pdf"

func FileName(order *domain.Order) string {
	return fmt.Sprintf("invoice-%s.pdf", order.ID)
}

// Lines returns one "<title> - <qty> x $<price>" line per item followed by
// the total.
func Lines(order *domain.Order) []string {
	lines := make([]string, 0, len(order.Items)+1)
	for _, item := range order.Items {
		lines = append(lines, fmt.Sprintf("%s - %d x $%s",
			item.Product.Title, item.Quantity, item.Product.Price.StringFixed(2)))
	}
	lines = append(lines, "Total Price: $"+order.Total().StringFixed(2))
	return lines
}

func Render(w io.Writer, order *domain.Order) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetCreationDate(order.CreatedAt)
	pdf.SetCatalogSort(true)
	pdf.SetTitle(FileName(order), true)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.AddPage()
	pdf.SetFont("Helvetica", "BU", 26)
	pdf.CellFormat(0, 14, "Invoice", "", 1, "L", false, 0, "")

	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, 6, tr(fmt.Sprintf("Order %s", order.ID)), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, tr(order.UserEmail), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, order.CreatedAt.UTC().Format("2006-01-02 15:04 MST"), "", 1, "L", false, 0, "")
	pdf.Ln(4)
	pdf.CellFormat(0, 4, "-----------------------", "", 1, "L", false, 0, "")
	pdf.Ln(2)

	lines := Lines(order)
	pdf.SetFont("Helvetica", "", 14)
	for _, line := range lines[:len(lines)-1] {
		pdf.MultiCell(0, 8, tr(line), "", "L", false)
	}

	pdf.Ln(2)
	pdf.CellFormat(0, 4, "-----------------------", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "B", 18)
	pdf.CellFormat(0, 10, lines[len(lines)-1], "", 1, "L", false, 0, "")

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("failed to render invoice %s: %w", order.ID, err)
	}
	return nil
}
