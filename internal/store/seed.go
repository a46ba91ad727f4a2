// ABOUTME: Seed dataset for the mock domain store
// ABOUTME: One customer with two CLP accounts and four October 2025 transactions

package store

// Dataset is the immutable account and transaction data a store starts with.
// Customers keep their declaration order.
type Dataset struct {
	Customers []CustomerData
}

// CustomerData holds one customer's accounts and transactions in seed order.
type CustomerData struct {
	ID           string
	Accounts     []Account
	Transactions []Transaction
}

// DefaultSeed returns a fresh copy of the built-in dataset.
func DefaultSeed() *Dataset {
	return &Dataset{
		Customers: []CustomerData{
			{
				ID: "cust-001",
				Accounts: []Account{
					{ID: "acc-001", Alias: "Cuenta Corriente", Currency: "CLP"},
					{ID: "acc-002", Alias: "Tarjeta Visa", Currency: "CLP"},
				},
				Transactions: []Transaction{
					{AccountID: "acc-001", Date: "2025-10-01", Amount: 1150000, Description: "Sueldo"},
					{AccountID: "acc-001", Date: "2025-10-03", Amount: -180000, Description: "Arriendo"},
					{AccountID: "acc-001", Date: "2025-10-05", Amount: -45000, Description: "Café y snacks"},
					{AccountID: "acc-001", Date: "2025-10-12", Amount: -60000, Description: "Internet y telefonía"},
				},
			},
		},
	}
}

func (d *Dataset) customer(id string) *CustomerData {
	for i := range d.Customers {
		if d.Customers[i].ID == id {
			return &d.Customers[i]
		}
	}
	return nil
}
