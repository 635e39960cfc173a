// Пакет pricing пересчитывает сумму заказа по актуальным каталожным ценам.
// Клиентские цены не считаются достоверными: расхождение с каталогом —
// признак подмены цены на стороне клиента.
package pricing

import (
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/vizinhos/orders/internal/domain"
)

// Verifier — движок проверки цен. Чистое чтение: побочных эффектов нет.
type Verifier struct {
	catalog domain.CatalogRepository
	logger  *log.Entry
}

// NewVerifier создаёт движок поверх репозитория каталога.
func NewVerifier(catalog domain.CatalogRepository, logger *log.Entry) *Verifier {
	if logger == nil {
		logger = log.New().WithField("component", "pricing")
	}
	return &Verifier{catalog: catalog, logger: logger}
}

// Verify пересчитывает сумму заказа: каждый лот разрешается в товар, берётся
// его актуальная цена продажи, итог сравнивается с заявленной суммой строго
// (точная десятичная арифметика, без допусков). Возвращает позиции,
// аннотированные данными каталога, для передачи платёжному провайдеру.
func (v *Verifier) Verify(items []domain.OrderItem, declared decimal.Decimal) ([]domain.PaymentLineItem, error) {
	lineItems := make([]domain.PaymentLineItem, 0, len(items))
	total := decimal.Zero

	for _, item := range items {
		lot, err := v.catalog.GetLot(item.LotID)
		if err != nil {
			return nil, err
		}
		product, err := v.catalog.GetProduct(lot.ProductID)
		if err != nil {
			return nil, err
		}

		total = total.Add(product.Price.Mul(decimal.NewFromInt32(item.Quantity)))
		lineItems = append(lineItems, domain.PaymentLineItem{
			ID:          item.LotID,
			Title:       product.Name,
			Description: product.Description,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
		})
	}

	if !total.Equal(declared) {
		v.logger.WithFields(log.Fields{
			"declared":   declared.String(),
			"recomputed": total.String(),
		}).Warn("order total does not match catalog prices")
		return nil, domain.NewValidationError(
			"valor declarado (%s) não corresponde ao total calculado pelo catálogo (%s)", declared, total)
	}

	return lineItems, nil
}
