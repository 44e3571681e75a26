package account

import "time"

// Account owns invoices and carries the monetary balance credited by topups.
// Balance is only ever mutated through SQL increment/decrement expressions
// inside an invoice transaction, never assigned wholesale.
type Account struct {
	ID        int64     `json:"id" gorm:"primaryKey"`
	Name      string    `json:"name" gorm:"column:name;not null"`
	Email     string    `json:"email" gorm:"column:email;not null;uniqueIndex"`
	Balance   int64     `json:"balance" gorm:"column:balance;not null;default:0"`
	CreatedAt time.Time `json:"created_at" gorm:"column:created_at"`
	UpdatedAt time.Time `json:"updated_at" gorm:"column:updated_at"`
}

func (Account) TableName() string {
	return "accounts"
}
