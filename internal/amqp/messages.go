package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// RequestType names the ledger operation a message asks for.
type RequestType string

const (
	RequestCreateTransaction  RequestType = "create_transaction"
	RequestCreateInstallments RequestType = "create_installments"
	RequestCreateSplit        RequestType = "create_split"
	RequestCreateSubscription RequestType = "create_subscription"
	RequestEditTransaction    RequestType = "edit_transaction"
	RequestDeleteTransaction  RequestType = "delete_transaction"
	RequestChangeDate         RequestType = "change_date"
	RequestConvert            RequestType = "convert"
	RequestClearPending       RequestType = "clear_pending"
	RequestUpdateBudget       RequestType = "update_budget"
	RequestRollover           RequestType = "rollover"
)

// RequestMessage is the envelope an upstream parser publishes: a type tag
// plus a type-specific payload left raw until the worker dispatches it.
type RequestMessage struct {
	Type      RequestType     `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// NewRequestMessage wraps a payload in an envelope, marshaling it in place.
func NewRequestMessage(reqType RequestType, payload any) (*RequestMessage, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", reqType, err)
	}
	return &RequestMessage{
		Type:      reqType,
		Timestamp: time.Now(),
		Payload:   body,
	}, nil
}

// ToJSON converts the message to JSON bytes
func (m *RequestMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// RequestMessageFromJSON creates a message from JSON bytes
func RequestMessageFromJSON(data []byte) (*RequestMessage, error) {
	var msg RequestMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// DecodePayload unmarshals the raw payload into the given target struct.
func (m *RequestMessage) DecodePayload(target any) error {
	if err := json.Unmarshal(m.Payload, target); err != nil {
		return fmt.Errorf("decode %s payload: %w", m.Type, err)
	}
	return nil
}

// Payload shapes. Dates travel as "2006-01-02" strings and amounts as
// integer cents; the worker maps them onto ledger inputs.

type TransactionPayload struct {
	Date        string `json:"date,omitempty"`
	Description string `json:"description"`
	Account     string `json:"account"`
	AmountCents int64  `json:"amount_cents"`
	IsIncome    bool   `json:"is_income,omitempty"`
	Category    string `json:"category,omitempty"`
	Budget      string `json:"budget,omitempty"`
	Pending     bool   `json:"pending,omitempty"`
	Planning    bool   `json:"planning,omitempty"`
	GraceMonths int    `json:"grace_months,omitempty"`
}

type InstallmentsPayload struct {
	TransactionPayload
	Count      int `json:"count"`
	StartFrom  int `json:"start_from,omitempty"`
	TotalCount int `json:"total_count,omitempty"`
}

type SplitLinePayload struct {
	AmountCents int64  `json:"amount_cents"`
	Category    string `json:"category,omitempty"`
	Budget      string `json:"budget,omitempty"`
}

type SplitPayload struct {
	Date        string             `json:"date,omitempty"`
	Description string             `json:"description"`
	Account     string             `json:"account"`
	TotalCents  int64              `json:"total_cents"`
	Lines       []SplitLinePayload `json:"lines"`
	Pending     bool               `json:"pending,omitempty"`
	GraceMonths int                `json:"grace_months,omitempty"`
}

type SubscriptionPayload struct {
	ID                 string `json:"id"`
	Name               string `json:"name"`
	Category           string `json:"category,omitempty"`
	MonthlyAmountCents int64  `json:"monthly_amount_cents"`
	PaymentAccountID   string `json:"payment_account_id"`
	StartDate          string `json:"start_date"`
	EndDate            string `json:"end_date,omitempty"`
	IsBudget           bool   `json:"is_budget,omitempty"`
	Underspend         string `json:"underspend,omitempty"`
	IsIncome           bool   `json:"is_income,omitempty"`
}

type EditPayload struct {
	ID          int64   `json:"id"`
	Description *string `json:"description,omitempty"`
	AmountCents *int64  `json:"amount_cents,omitempty"`
	Category    *string `json:"category,omitempty"`
	Budget      *string `json:"budget,omitempty"`
	DatePayed   *string `json:"date_payed,omitempty"`
}

type DeletePayload struct {
	ID int64 `json:"id"`
}

type ChangeDatePayload struct {
	ID      int64  `json:"id"`
	NewDate string `json:"new_date"`
}

type ConvertPayload struct {
	ID           int64                `json:"id"`
	Target       string               `json:"target"`
	Simple       *TransactionPayload  `json:"simple,omitempty"`
	Installments *InstallmentsPayload `json:"installments,omitempty"`
	Split        *SplitPayload        `json:"split,omitempty"`
}

type ClearPendingPayload struct {
	ID int64 `json:"id"`
}

type UpdateBudgetPayload struct {
	BudgetID      string `json:"budget_id"`
	AmountCents   int64  `json:"amount_cents"`
	EffectiveDate string `json:"effective_date"`
	Retroactive   bool   `json:"retroactive,omitempty"`
}

type RolloverPayload struct {
	AsOf string `json:"as_of,omitempty"`
}
