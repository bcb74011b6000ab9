package models

import (
	"time"

	"github.com/google/uuid"
)

// TransactionType тип финансовой операции
type TransactionType string

const (
	TransactionTypeRevenue TransactionType = "revenue"
	TransactionTypeExpense TransactionType = "expense"
)

// Valid сообщает, входит ли тип в закрытый список
func (t TransactionType) Valid() bool {
	return t == TransactionTypeRevenue || t == TransactionTypeExpense
}

// Transaction представляет доход или расход
type Transaction struct {
	ID          uuid.UUID       `json:"id" db:"id"`
	AccountID   uuid.UUID       `json:"account_id" db:"account_id"`
	Description string          `json:"description" db:"description"`
	Amount      float64         `json:"amount" db:"amount"`
	Type        TransactionType `json:"type" db:"type"`
	Category    string          `json:"category" db:"category"`
	ServiceID   *uuid.UUID      `json:"service_id,omitempty" db:"service_id"`
	Date        time.Time       `json:"date" db:"date"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
}

// CreateTransactionRequest представляет запрос на создание операции
type CreateTransactionRequest struct {
	Description string          `json:"description"`
	Amount      float64         `json:"amount"`
	Type        TransactionType `json:"type"`
	Category    string          `json:"category"`
	ServiceID   *uuid.UUID      `json:"service_id,omitempty"`
	Date        *time.Time      `json:"date,omitempty"`
}

// TransactionFilter задает период выборки операций
type TransactionFilter struct {
	From *time.Time
	To   *time.Time
}

// CategoryTotal сумма расходов по категории
type CategoryTotal struct {
	Category string  `json:"category"`
	Total    float64 `json:"total"`
}

// FinancialSummary агрегаты по операциям за период
type FinancialSummary struct {
	Revenue            float64         `json:"revenue"`
	Expenses           float64         `json:"expenses"`
	NetProfit          float64         `json:"net_profit"`
	ExpensesByCategory []CategoryTotal `json:"expenses_by_category"`
	TransactionsCount  int             `json:"transactions_count"`
}
