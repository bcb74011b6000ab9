package reports

import (
	"bytes"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"towing-system/internal/models"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"
)

const (
	brandName    = "Reboque360"
	dateLayout   = "02/01/2006"
	shareBaseURL = "https://wa.me/"
)

// QuotePDF формирует PDF сметы для отправки клиенту.
func QuotePDF(account *models.Account, quote *models.Quote) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle(tr("Orçamento de Reboque"), false)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.Cell(0, 10, tr(account.DisplayName()))
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 12)
	pdf.Cell(0, 8, tr("Orçamento de Reboque"))
	pdf.Ln(6)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Data: %s", quote.CreatedAt.Format(dateLayout)))
	pdf.Ln(10)

	rows := [][2]string{
		{"Local atual", quote.CurrentLocation},
		{"Origem", quote.Origin},
		{"Destino", quote.Destination},
		{"Retorno", quote.ReturnAddress},
		{"Distância total", formatDistance(quote.DistanceKm) + " km"},
		{"Valor por km", formatMoney(quote.KmValue)},
		{"Valor mínimo", formatMoney(quote.MinCharge)},
		{"Adicionais", formatMoney(quote.Extras)},
	}
	if quote.Discount != nil {
		rows = append(rows, [2]string{"Desconto", formatMoney(*quote.Discount)})
	}

	for _, row := range rows {
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(45, 7, tr(row[0]), "1", 0, "L", false, 0, "")
		pdf.SetFont("Arial", "", 10)
		pdf.CellFormat(135, 7, tr(row[1]), "1", 0, "L", false, 0, "")
		pdf.Ln(-1)
	}

	pdf.Ln(6)
	pdf.SetFont("Arial", "B", 14)
	pdf.Cell(0, 8, tr("Valor total: "+formatMoney(quote.Total)))
	pdf.Ln(10)

	pdf.SetFont("Arial", "", 10)
	pdf.MultiCell(0, 6, tr("Observações: "+notesOrDefault(quote.Notes)), "", "L", false)
	pdf.Ln(4)
	pdf.SetFont("Arial", "I", 8)
	pdf.Cell(0, 6, tr("Gerado por "+brandName))

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render quote pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// FinancialXLSX формирует книгу с листами сводки и операций за период.
func FinancialXLSX(summary models.FinancialSummary, transactions []*models.Transaction, from, to *time.Time) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	summarySheet := "Resumo"
	itemsSheet := "Transações"
	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, fmt.Errorf("failed to rename sheet: %w", err)
	}
	if _, err := f.NewSheet(itemsSheet); err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}

	_ = f.SetCellValue(summarySheet, "A1", "Relatório Financeiro")
	_ = f.SetCellValue(summarySheet, "A3", "Período")
	_ = f.SetCellValue(summarySheet, "B3", formatPeriod(from, to))
	_ = f.SetCellValue(summarySheet, "A4", "Receitas")
	_ = f.SetCellValue(summarySheet, "B4", summary.Revenue)
	_ = f.SetCellValue(summarySheet, "A5", "Despesas")
	_ = f.SetCellValue(summarySheet, "B5", summary.Expenses)
	_ = f.SetCellValue(summarySheet, "A6", "Lucro líquido")
	_ = f.SetCellValue(summarySheet, "B6", summary.NetProfit)
	_ = f.SetCellValue(summarySheet, "A7", "Transações")
	_ = f.SetCellValue(summarySheet, "B7", summary.TransactionsCount)

	_ = f.SetCellValue(summarySheet, "A9", "Despesas por categoria")
	for i, c := range summary.ExpensesByCategory {
		row := i + 10
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("A%d", row), c.Category)
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("B%d", row), c.Total)
	}

	headers := []string{"Data", "Descrição", "Categoria", "Tipo", "Valor"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(itemsSheet, cell, h)
	}
	for i, t := range transactions {
		row := i + 2
		_ = f.SetCellValue(itemsSheet, fmt.Sprintf("A%d", row), t.Date.Format(dateLayout))
		_ = f.SetCellValue(itemsSheet, fmt.Sprintf("B%d", row), t.Description)
		_ = f.SetCellValue(itemsSheet, fmt.Sprintf("C%d", row), t.Category)
		_ = f.SetCellValue(itemsSheet, fmt.Sprintf("D%d", row), transactionTypeLabel(t.Type))
		_ = f.SetCellValue(itemsSheet, fmt.Sprintf("E%d", row), signedAmount(t))
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to render financial xlsx: %w", err)
	}
	return buf.Bytes(), nil
}

// ShareText формирует сообщение со сметой для WhatsApp.
func ShareText(quote *models.Quote) string {
	var b strings.Builder
	b.WriteString("Olá! Segue o seu orçamento de reboque:\n\n")
	fmt.Fprintf(&b, "*Origem:* %s\n", quote.Origin)
	fmt.Fprintf(&b, "*Destino:* %s\n", quote.Destination)
	fmt.Fprintf(&b, "*Distância Total do Serviço:* %s km\n\n", formatDistance(quote.DistanceKm))
	fmt.Fprintf(&b, "*Valor Total: R$ %.2f*\n\n", quote.Total)
	fmt.Fprintf(&b, "*Observações:* %s\n\n", notesOrDefault(quote.Notes))
	b.WriteString("---\nGerado por " + brandName)
	return b.String()
}

// ShareURL возвращает ссылку wa.me с готовым текстом. Пустой телефон оставляет выбор контакта пользователю.
func ShareURL(quote *models.Quote, phone string) string {
	text := strings.ReplaceAll(url.QueryEscape(ShareText(quote)), "+", "%20")
	return shareBaseURL + digitsOnly(phone) + "?text=" + text
}

func formatDistance(km float64) string {
	return strconv.FormatFloat(km, 'f', -1, 64)
}

func formatMoney(v float64) string {
	return fmt.Sprintf("R$ %.2f", v)
}

func notesOrDefault(notes string) string {
	if strings.TrimSpace(notes) == "" {
		return "Nenhuma"
	}
	return notes
}

func formatPeriod(from, to *time.Time) string {
	start, end := "início", "hoje"
	if from != nil {
		start = from.Format(dateLayout)
	}
	if to != nil {
		end = to.Format(dateLayout)
	}
	return start + " - " + end
}

func transactionTypeLabel(t models.TransactionType) string {
	if t == models.TransactionTypeRevenue {
		return "Receita"
	}
	return "Despesa"
}

func signedAmount(t *models.Transaction) float64 {
	if t.Type == models.TransactionTypeExpense {
		return -t.Amount
	}
	return t.Amount
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
