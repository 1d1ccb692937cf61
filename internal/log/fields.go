package log

// Common field names for structured logging
const (
	FieldComponent      = "component"
	FieldError          = "error"
	FieldOperation      = "operation"
	FieldTransactionID  = "transaction_id"
	FieldOriginID       = "origin_id"
	FieldSubscriptionID = "subscription_id"
	FieldAccount        = "account"
	FieldBudget         = "budget"
	FieldDescription    = "description"
	FieldAmountCents    = "amount_cents"
	FieldMonth          = "month"
	FieldStatus         = "status"
	FieldRequestType    = "request_type"
	FieldQueue          = "queue"
	FieldExchange       = "exchange"
)

// Components defines standard component names
const (
	ComponentApp     = "app"
	ComponentLedger  = "ledger"
	ComponentStorage = "storage"
	ComponentAMQP    = "amqp"
	ComponentWorker  = "worker"
	ComponentCache   = "cache"
)

// Operations defines standard operation names
const (
	OpCreate   = "create"
	OpEdit     = "edit"
	OpDelete   = "delete"
	OpConvert  = "convert"
	OpRollover = "rollover"
	OpStartup  = "startup"
	OpShutdown = "shutdown"
)
