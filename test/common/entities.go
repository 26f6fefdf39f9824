package common

import (
	"time"

	tk "github.com/quintans/toolkit"
)

// Publisher is read by the bean evaluator through its db tags.
type Publisher struct {
	Id      *int64  `db:"id"`
	Name    *string `db:"name"`
	Address *string `db:"address"`
}

func (p *Publisher) String() string {
	if p == nil {
		return "<nil>"
	}
	sb := tk.NewStrBuffer()
	sb.Add("{Id: ", p.Id, ", Name: ", p.Name, ", Address: ", p.Address, "}")
	return sb.String()
}

type Book struct {
	Id          int64     `db:"id"`
	PublisherId int64     `db:"publisher_id"`
	Name        string    `db:"name"`
	Price       *float64  `db:"price"`
	Published   time.Time `db:"published"`
}

// GetTitle is resolved for |title|, there is no such column.
func (b Book) GetTitle() string {
	return b.Name
}

func strPtr(s string) *string {
	return &s
}

func floatPtr(f float64) *float64 {
	return &f
}
