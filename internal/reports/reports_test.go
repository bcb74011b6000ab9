package reports

import (
	"bytes"
	"net/url"
	"strings"
	"testing"
	"time"

	"towing-system/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func sampleQuote() *models.Quote {
	return &models.Quote{
		ID:              uuid.New(),
		CurrentLocation: "Rua A, 1",
		Origin:          "Av. Paulista, 1000",
		Destination:     "Rua Augusta, 500",
		ReturnAddress:   "Rua da Base, 10",
		DistanceKm:      20.1,
		KmValue:         5,
		MinCharge:       150,
		Total:           250.5,
		CreatedAt:       time.Date(2024, 5, 2, 10, 0, 0, 0, time.UTC),
	}
}

func TestShareText(t *testing.T) {
	want := "Olá! Segue o seu orçamento de reboque:\n\n" +
		"*Origem:* Av. Paulista, 1000\n" +
		"*Destino:* Rua Augusta, 500\n" +
		"*Distância Total do Serviço:* 20.1 km\n\n" +
		"*Valor Total: R$ 250.50*\n\n" +
		"*Observações:* Nenhuma\n\n" +
		"---\nGerado por Reboque360"

	assert.Equal(t, want, ShareText(sampleQuote()))

	quote := sampleQuote()
	quote.Notes = "Carro sem chave"
	assert.Contains(t, ShareText(quote), "*Observações:* Carro sem chave")
}

func TestShareURL(t *testing.T) {
	quote := sampleQuote()

	link := ShareURL(quote, "+55 (11) 99999-0000")
	require.True(t, strings.HasPrefix(link, "https://wa.me/5511999990000?text="))
	assert.NotContains(t, link, "+")

	parsed, err := url.Parse(link)
	require.NoError(t, err)
	assert.Equal(t, ShareText(quote), parsed.Query().Get("text"))

	assert.True(t, strings.HasPrefix(ShareURL(quote, ""), "https://wa.me/?text="))
}

func TestQuotePDF(t *testing.T) {
	discount := 10.0
	quote := sampleQuote()
	quote.Discount = &discount

	data, err := QuotePDF(&models.Account{Name: "Carlos", CompanyName: "Reboque São Jorge"}, quote)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF")))
}

func TestFinancialXLSX(t *testing.T) {
	summary := models.FinancialSummary{
		Revenue:            737.5,
		Expenses:           285.7,
		NetProfit:          451.8,
		TransactionsCount:  2,
		ExpensesByCategory: []models.CategoryTotal{{Category: "Combustível", Total: 285.7}},
	}
	transactions := []*models.Transaction{
		{Description: "Serviço", Amount: 737.5, Type: models.TransactionTypeRevenue, Category: "Serviço", Date: time.Now()},
		{Description: "Diesel", Amount: 285.7, Type: models.TransactionTypeExpense, Category: "Combustível", Date: time.Now()},
	}
	from := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	data, err := FinancialXLSX(summary, transactions, &from, nil)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	period, err := f.GetCellValue("Resumo", "B3")
	require.NoError(t, err)
	assert.Equal(t, "01/05/2024 - hoje", period)

	category, err := f.GetCellValue("Resumo", "A10")
	require.NoError(t, err)
	assert.Equal(t, "Combustível", category)

	rows, err := f.GetRows("Transações")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Despesa", rows[2][3])
	assert.Equal(t, "-285.7", rows[2][4])
}
