package model

// Envelope is the decoded response of a remote read.
//
// Progress is nil when the service omitted it, which means the entity is unknown.
// Present records which payload sections the response actually carried; payload
// fields for categories outside Present are zero.
type Envelope struct {
	Endpoint Endpoint
	Progress []StatementProgress
	Present  Category

	Accounts           []Account
	FraudInfo          []FraudInfo
	Identity           Identity
	Transactions       []Transaction
	CreditRecurring    []RecurringGroup
	DebitRecurring     []RecurringGroup
	Salary             []Transaction
	LenderTransactions []Transaction
}

// Missing returns the categories the endpoint should carry that the response lacks.
func (e *Envelope) Missing() Category {
	return e.Endpoint.Categories() &^ e.Present
}

// UploadResult is the outcome of a successful statement upload.
type UploadResult struct {
	IsAuthentic bool
	EntityID    string
	Identity    Identity
}
