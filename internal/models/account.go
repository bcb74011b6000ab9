package models

import (
	"time"

	"github.com/google/uuid"
)

// AccountSettings хранит тарифы и адрес базы, подставляемые в расчет по умолчанию
type AccountSettings struct {
	DefaultKmValue       float64 `json:"default_km_value" db:"default_km_value"`
	DefaultMinCharge     float64 `json:"default_min_charge" db:"default_min_charge"`
	DefaultReturnAddress string  `json:"default_return_address" db:"default_return_address"`
	FuelPrice            float64 `json:"fuel_price" db:"fuel_price"`
}

// Account представляет аккаунт оператора эвакуаторов.
// Передается явно во все операции ядра вместо глобального состояния сессии.
type Account struct {
	ID          uuid.UUID       `json:"id" db:"id"`
	Name        string          `json:"name" db:"name"`
	CompanyName string          `json:"company_name" db:"company_name"`
	Plan        Plan            `json:"plan" db:"plan"`
	Settings    AccountSettings `json:"settings"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
}

// DisplayName возвращает название компании, а если оно не задано, имя владельца
func (a *Account) DisplayName() string {
	if a.CompanyName != "" {
		return a.CompanyName
	}
	return a.Name
}
