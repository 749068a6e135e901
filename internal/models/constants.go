package models

const (
	OpInsert          = "INSERT"
	OpUpdate          = "UPDATE"
	OpDelete          = "DELETE"
	OpRPC             = "RPC"
	OpSaleTransaction = "SALE_TRANSACTION"
)

const (
	PaymentCash   = "cash"
	PaymentCard   = "card"
	PaymentMobile = "mobile_money"
)

const (
	ProductActive   = "active"
	ProductInactive = "inactive"

	SaleCompleted = "completed"
)

const (
	// TableSales и связанные таблицы на стороне бэкенда
	TableProducts      = "products"
	TableSales         = "sales"
	TableSaleItems     = "sale_items"
	TableCustomers     = "customers"
	TableLedger        = "loyalty_ledger"
	TableNotifications = "notifications"
	TableStoreSettings = "store_settings"

	RPCDecrementStock = "decrement_stock"
)

const (
	// KeyProductSnapshot ключ последнего снимка списка товаров
	KeyProductSnapshot = "products:snapshot"

	// RejectedListKey redis-список отклонённых операций для разбора оператором
	RejectedListKey = "kassa:rejected"
)

const (
	// DefaultLowStockThreshold порог уведомления о низком остатке
	DefaultLowStockThreshold = 10

	// DefaultPointsPerCurrency баллов лояльности за единицу валюты
	DefaultPointsPerCurrency = 0.01

	// DefaultProbeIntervalSeconds интервал проверки доступности бэкенда
	DefaultProbeIntervalSeconds = 5

	// DefaultRefreshIntervalSeconds интервал фонового обновления товаров
	DefaultRefreshIntervalSeconds = 300

	// RefreshMaxAttempts и RefreshInitialDelaySeconds параметры повторов обновления
	RefreshMaxAttempts         = 3
	RefreshInitialDelaySeconds = 1
	RefreshBackoffFactor       = 2
)

const (
	LedgerReasonSale = "sale"
)
