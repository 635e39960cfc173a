package domain

import "github.com/shopspring/decimal"

// Денежные значения сериализуются как числа, а не строки: существующие
// клиенты и сохранённые записи ожидают именно числовой формат.
func init() {
	decimal.MarshalJSONWithoutQuotes = true
}
