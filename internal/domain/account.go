package domain

// Account is the billing and ownership scope a group lives in.
type Account struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Group is a VM namespace within an account.
type Group struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	AccountID   string `json:"account_id,omitempty"`
	AccountName string `json:"account_name,omitempty"`
}

func (a Account) GetName() string { return a.Name }
func (g Group) GetName() string   { return g.Name }
