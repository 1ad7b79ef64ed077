package ynab

type account struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	Type            string  `json:"type"`
	OnBudget        bool    `json:"on_budget"`
	Closed          bool    `json:"closed"`
	Note            *string `json:"note"`
	Balance         int64   `json:"balance"`
	ClearedBalance  int64   `json:"cleared_balance"`
	TransferPayeeID *string `json:"transfer_payee_id"`
	Deleted         bool    `json:"deleted"`
}

type accountsResponse struct {
	Data struct {
		Accounts []account `json:"accounts"`
	} `json:"data"`
}

type accountResponse struct {
	Data struct {
		Account account `json:"account"`
	} `json:"data"`
}

// TransactionPayload is one transaction in a create request. Amounts are milliunits.
type TransactionPayload struct {
	AccountID string `json:"account_id"`
	Date      string `json:"date"`
	Amount    int64  `json:"amount"`
	PayeeName string `json:"payee_name,omitempty"`
	Memo      string `json:"memo,omitempty"`
	Cleared   string `json:"cleared"`
	Approved  bool   `json:"approved"`
	FlagColor string `json:"flag_color,omitempty"`
	ImportID  string `json:"import_id,omitempty"`
}

type createTransactionsRequest struct {
	Transactions []TransactionPayload `json:"transactions"`
}

type createTransactionRequest struct {
	Transaction TransactionPayload `json:"transaction"`
}

type createTransactionsResponse struct {
	Data struct {
		TransactionIDs     []string `json:"transaction_ids"`
		DuplicateImportIDs []string `json:"duplicate_import_ids"`
		Transactions       []struct {
			ID       string  `json:"id"`
			ImportID *string `json:"import_id"`
		} `json:"transactions"`
	} `json:"data"`
}

type errorResponse struct {
	Error struct {
		ID     string `json:"id"`
		Name   string `json:"name"`
		Detail string `json:"detail"`
	} `json:"error"`
}
