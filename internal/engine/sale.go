package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"kassa/internal/backend"
	"kassa/internal/models"
)

// executeSale replays one composite sale against the backend. Steps 3 and 4
// (sale header and line items) are the mandatory core: both must succeed or
// the operation stays queued and is retried unmodified. Steps 5 through 7
// (stock, low-stock alert, loyalty) are best-effort post-processing whose
// failures are logged but never roll back the committed sale and never
// re-queue it.
func (e *Engine) executeSale(ctx context.Context, op *models.QueuedOperation) error {
	sale, err := models.DecodeSalePayload(op.Payload)
	if err != nil {
		return &PreconditionError{Reason: fmt.Sprintf("decode sale payload: %v", err)}
	}
	if len(sale.Lines) == 0 {
		return &PreconditionError{Reason: "sale has no cart lines"}
	}

	// Step 1: resolve or create the customer by phone. Select-before-insert
	// keeps the step idempotent: replaying the same payload never creates a
	// second row for the same phone.
	customer, err := e.resolveCustomer(ctx, sale)
	if err != nil {
		return fmt.Errorf("resolve customer: %w", err)
	}

	// Step 2: resolve loyalty configuration for the store.
	loyaltyEnabled, pointsRate, threshold, err := e.resolveStoreSettings(ctx, sale.StoreID)
	if err != nil {
		return fmt.Errorf("resolve store settings: %w", err)
	}
	pointsEarned := 0
	if loyaltyEnabled {
		pointsEarned = int(math.Floor(sale.Total * pointsRate))
	}

	// Step 3: insert the sale header, keyed by the operation id so a replay
	// of a sale whose mandatory steps already committed (crash before
	// dequeue) does not create a second header. An existing header does not
	// mean the sale is complete: a prior attempt may have died between the
	// header and the line items, so the replay resumes from where it
	// stopped instead of skipping.
	existing, err := e.backend.Select(ctx, models.TableSales, map[string]interface{}{"client_ref": op.ID})
	if err != nil {
		return fmt.Errorf("check existing sale: %w", err)
	}
	if len(existing) > 0 {
		saleID := asInt64(existing[0]["id"])
		inserted, err := e.resumeSaleLines(ctx, sale, saleID)
		if err != nil {
			return err
		}
		if inserted == 0 {
			// All mandatory writes landed on a previous attempt; the side
			// effects ran then too. Re-running them would double-apply the
			// stock decrement.
			e.logger.Info().Str("op_id", op.ID).Msg("sale already committed, skipping replay")
			return nil
		}
		e.logger.Info().Str("op_id", op.ID).Int("lines", inserted).Msg("resumed interrupted sale replay")
		e.applySaleSideEffects(ctx, op, sale, saleID, customer, pointsEarned, threshold)
		return nil
	}

	headerValues := map[string]interface{}{
		"client_ref":     op.ID,
		"store_id":       sale.StoreID,
		"employee_id":    sale.EmployeeID,
		"total":          sale.Total,
		"payment_method": sale.PaymentMethod,
		"status":         models.SaleCompleted,
		// The client timestamp is the authoritative sale time, not the
		// moment the queue finally drained.
		"sold_at": sale.SoldAt.Format(time.RFC3339),
	}
	if customer != nil {
		headerValues["customer_id"] = asInt64(customer["id"])
	}

	headerRow, err := e.backend.Insert(ctx, models.TableSales, headerValues)
	if err != nil {
		return fmt.Errorf("insert sale header: %w", err)
	}
	saleID := asInt64(headerRow["id"])

	// Step 4: one line item per cart line, in cart order.
	for i, line := range sale.Lines {
		if _, err := e.backend.Insert(ctx, models.TableSaleItems, saleLineValues(saleID, i, line)); err != nil {
			return fmt.Errorf("insert sale line %d: %w", i, err)
		}
	}

	// Steps 5-7 are best-effort once the sale record is committed.
	e.applySaleSideEffects(ctx, op, sale, saleID, customer, pointsEarned, threshold)
	return nil
}

// resumeSaleLines inserts the cart lines a prior attempt did not commit,
// keyed by (sale_id, position), and reports how many were missing. Zero
// means the mandatory core was already complete.
func (e *Engine) resumeSaleLines(ctx context.Context, sale *models.SalePayload, saleID int64) (int, error) {
	rows, err := e.backend.Select(ctx, models.TableSaleItems, map[string]interface{}{"sale_id": saleID})
	if err != nil {
		return 0, fmt.Errorf("list sale lines: %w", err)
	}

	present := make(map[int64]bool, len(rows))
	for _, row := range rows {
		present[asInt64(row["position"])] = true
	}

	inserted := 0
	for i, line := range sale.Lines {
		if present[int64(i)] {
			continue
		}
		if _, err := e.backend.Insert(ctx, models.TableSaleItems, saleLineValues(saleID, i, line)); err != nil {
			return inserted, fmt.Errorf("insert sale line %d: %w", i, err)
		}
		inserted++
	}
	return inserted, nil
}

func saleLineValues(saleID int64, position int, line models.CartLine) map[string]interface{} {
	return map[string]interface{}{
		"sale_id":    saleID,
		"product_id": line.ProductID,
		"quantity":   line.Quantity,
		"unit_price": line.UnitPrice,
		"subtotal":   line.UnitPrice * float64(line.Quantity),
		"position":   position,
	}
}

func (e *Engine) resolveCustomer(ctx context.Context, sale *models.SalePayload) (map[string]interface{}, error) {
	if sale.CustomerPhone == "" {
		return nil, nil
	}

	rows, err := e.backend.Select(ctx, models.TableCustomers, map[string]interface{}{"phone": sale.CustomerPhone})
	if err != nil {
		return nil, err
	}
	if len(rows) > 0 {
		return rows[0], nil
	}

	row, err := e.backend.Insert(ctx, models.TableCustomers, map[string]interface{}{
		"phone":       sale.CustomerPhone,
		"name":        sale.CustomerName,
		"points":      0,
		"total_spent": 0,
	})
	if err != nil {
		return nil, err
	}
	return row, nil
}

// resolveStoreSettings reads the store's loyalty and stock settings, falling
// back to local config when the backend has no row for the store.
func (e *Engine) resolveStoreSettings(ctx context.Context, storeID int64) (bool, float64, int, error) {
	enabled := e.loyalty.Enabled
	rate := e.loyalty.PointsPerCurrency
	threshold := e.stock.LowStockThreshold

	rows, err := e.backend.Select(ctx, models.TableStoreSettings, map[string]interface{}{"store_id": storeID})
	if err != nil {
		return false, 0, 0, err
	}
	if len(rows) > 0 {
		row := rows[0]
		if v, ok := row["loyalty_enabled"].(bool); ok {
			enabled = v
		}
		if v, ok := row["points_per_currency"].(float64); ok && v > 0 {
			rate = v
		}
		if v := asInt64(row["low_stock_threshold"]); v > 0 {
			threshold = int(v)
		}
	}
	return enabled, rate, threshold, nil
}

// applySaleSideEffects runs steps 5-7. Every failure here is logged and
// swallowed: the sale is already committed and is not retried for the sake
// of a side effect.
func (e *Engine) applySaleSideEffects(ctx context.Context, op *models.QueuedOperation, sale *models.SalePayload, saleID int64, customer map[string]interface{}, pointsEarned, threshold int) {
	// Step 5: decrement stock per line, step 6: low-stock side effect.
	for _, line := range sale.Lines {
		newStock, err := e.decrementStock(ctx, line)
		if err != nil {
			e.logger.Warn().Err(err).Str("op_id", op.ID).Int64("product_id", line.ProductID).Msg("sale: stock decrement failed")
			continue
		}
		if newStock <= threshold {
			e.raiseLowStock(ctx, line, newStock)
		}
	}

	// Step 7: customer aggregate and ledger.
	if customer == nil {
		return
	}
	customerID := asInt64(customer["id"])

	// Read-modify-write on the aggregate; not linearizable under concurrent
	// writers from other devices. The ledger is the correctness backstop: a
	// periodic job can recompute the aggregate from ledger deltas.
	points := asInt64(customer["points"])
	totalSpent := asFloat64(customer["total_spent"])

	err := e.backend.Update(ctx, models.TableCustomers, customerID, map[string]interface{}{
		"points":      points + int64(pointsEarned),
		"total_spent": totalSpent + sale.Total,
		"last_visit":  time.Now().Format(time.RFC3339),
	})
	if err != nil {
		e.logger.Warn().Err(err).Str("op_id", op.ID).Int64("customer_id", customerID).Msg("sale: customer aggregate update failed")
		return
	}

	if pointsEarned > 0 {
		_, err := e.backend.Insert(ctx, models.TableLedger, map[string]interface{}{
			"customer_id": customerID,
			"delta":       pointsEarned,
			"reason":      models.LedgerReasonSale,
			"description": fmt.Sprintf("earned %d points on sale %d", pointsEarned, saleID),
			"sale_ref":    op.ID,
			"created_at":  time.Now().Format(time.RFC3339),
		})
		if err != nil {
			e.logger.Warn().Err(err).Str("op_id", op.ID).Int64("customer_id", customerID).Msg("sale: ledger append failed")
		}
	}
}

// decrementStock prefers the atomic server-side decrement. When the backend
// has no such function, it falls back to writing stock computed from the
// client-held snapshot taken at sale time. The fallback is racy under
// concurrent writers and can lose updates; that limitation comes from the
// backend surface and is documented, not hidden.
func (e *Engine) decrementStock(ctx context.Context, line models.CartLine) (int, error) {
	result, err := e.backend.CallRPC(ctx, models.RPCDecrementStock, map[string]interface{}{
		"product_id": line.ProductID,
		"quantity":   line.Quantity,
	})
	if err == nil {
		return int(asInt64(result["stock"])), nil
	}
	if !errors.Is(err, backend.ErrRPCUnavailable) {
		return 0, err
	}

	newStock := line.StockAtSale - line.Quantity
	if newStock < 0 {
		newStock = 0
	}
	if err := e.backend.Update(ctx, models.TableProducts, line.ProductID, map[string]interface{}{"stock": newStock}); err != nil {
		return 0, err
	}
	return newStock, nil
}

// raiseLowStock records a notification and fires the alert dispatch without
// waiting for it. Alert delivery failure must never fail or retry the sale.
func (e *Engine) raiseLowStock(ctx context.Context, line models.CartLine, stock int) {
	_, err := e.backend.Insert(ctx, models.TableNotifications, map[string]interface{}{
		"type":       "low_stock",
		"product_id": line.ProductID,
		"stock":      stock,
		"message":    fmt.Sprintf("%s is low on stock: %d left", line.ProductName, stock),
		"created_at": time.Now().Format(time.RFC3339),
	})
	if err != nil {
		e.logger.Warn().Err(err).Int64("product_id", line.ProductID).Msg("sale: low-stock notification insert failed")
	}

	if e.alerts == nil {
		return
	}
	go func(name string, stock int) {
		if err := e.alerts.SendLowStockAlert(context.Background(), name, stock); err != nil {
			e.logger.Warn().Err(err).Str("product", name).Msg("low-stock alert dispatch failed")
		}
	}(line.ProductName, stock)
}

func asInt64(v interface{}) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i
		}
	}
	return 0
}

func asFloat64(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	case int:
		return float64(n)
	case json.Number:
		if f, err := n.Float64(); err == nil {
			return f
		}
	}
	return 0
}
