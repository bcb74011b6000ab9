package services

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"towing-system/internal/apperror"
	"towing-system/internal/database"
	"towing-system/internal/logger"
	"towing-system/internal/models"

	"github.com/google/uuid"
)

// DefaultTransactionCategory категория операции, если она не указана
const DefaultTransactionCategory = "Outros"

// TransactionService ведет журнал доходов и расходов аккаунта.
type TransactionService struct {
	db  *database.DB
	log *logger.Logger
}

// NewTransactionService создает сервис финансовых операций.
func NewTransactionService(db *database.DB, log *logger.Logger) *TransactionService {
	return &TransactionService{db: db, log: log}
}

// CreateTransaction записывает доход или расход. Дата по умолчанию текущая.
func (s *TransactionService) CreateTransaction(ctx context.Context, accountID uuid.UUID, req *models.CreateTransactionRequest) (*models.Transaction, error) {
	description := strings.TrimSpace(req.Description)
	if description == "" {
		return nil, apperror.Validation("description is required", nil)
	}
	if req.Amount <= 0 || math.IsNaN(req.Amount) || math.IsInf(req.Amount, 0) {
		return nil, apperror.Validation("amount must be greater than zero", nil)
	}
	if !req.Type.Valid() {
		return nil, apperror.Validation("type must be revenue or expense", nil)
	}

	category := strings.TrimSpace(req.Category)
	if category == "" {
		category = DefaultTransactionCategory
	}

	now := time.Now()
	date := now
	if req.Date != nil && !req.Date.IsZero() {
		date = *req.Date
	}

	transaction := &models.Transaction{
		ID:          uuid.New(),
		AccountID:   accountID,
		Description: description,
		Amount:      roundMoney(req.Amount),
		Type:        req.Type,
		Category:    category,
		ServiceID:   req.ServiceID,
		Date:        date,
		CreatedAt:   now,
	}

	query := `
		INSERT INTO transactions (id, account_id, description, amount, type, category, service_id, date, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := s.db.ExecContext(ctx, query, transaction.ID, transaction.AccountID, transaction.Description,
		transaction.Amount, transaction.Type, transaction.Category, transaction.ServiceID, transaction.Date, transaction.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create transaction: %w", err)
	}

	s.log.WithFields(map[string]interface{}{
		"transaction_id": transaction.ID,
		"type":           transaction.Type,
		"amount":         transaction.Amount,
	}).Info("Transaction created")

	return transaction, nil
}

// ListTransactions возвращает операции за период, новые первыми.
func (s *TransactionService) ListTransactions(ctx context.Context, accountID uuid.UUID, filter models.TransactionFilter) ([]*models.Transaction, error) {
	query := `
		SELECT id, account_id, description, amount, type, category, service_id, date, created_at
		FROM transactions
		WHERE account_id = $1
	`
	args := []interface{}{accountID}
	argIndex := 2

	if filter.From != nil {
		query += fmt.Sprintf(" AND date >= $%d", argIndex)
		args = append(args, *filter.From)
		argIndex++
	}
	if filter.To != nil {
		query += fmt.Sprintf(" AND date <= $%d", argIndex)
		args = append(args, *filter.To)
	}

	query += " ORDER BY date DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	transactions := []*models.Transaction{}
	for rows.Next() {
		var (
			t         models.Transaction
			serviceID uuid.NullUUID
		)
		if err := rows.Scan(&t.ID, &t.AccountID, &t.Description, &t.Amount, &t.Type, &t.Category,
			&serviceID, &t.Date, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		if serviceID.Valid {
			id := serviceID.UUID
			t.ServiceID = &id
		}
		transactions = append(transactions, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate transactions: %w", err)
	}

	return transactions, nil
}

// DeleteTransaction удаляет операцию аккаунта.
func (s *TransactionService) DeleteTransaction(ctx context.Context, accountID, transactionID uuid.UUID) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = $1 AND account_id = $2`, transactionID, accountID)
	if err != nil {
		return fmt.Errorf("failed to delete transaction: %w", err)
	}
	if err := requireAffected(result, "transaction not found"); err != nil {
		return err
	}

	s.log.WithField("transaction_id", transactionID).Info("Transaction deleted")
	return nil
}
