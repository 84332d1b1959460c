package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// assignID fills in a primary key before insert. Postgres also defaults the
// column to gen_random_uuid(), but the id is needed in Go right after Create.
func assignID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}

func (u *User) BeforeCreate(*gorm.DB) error              { assignID(&u.ID); return nil }
func (c *ConfirmEmailToken) BeforeCreate(*gorm.DB) error { assignID(&c.ID); return nil }
func (s *Shop) BeforeCreate(*gorm.DB) error              { assignID(&s.ID); return nil }
func (c *Category) BeforeCreate(*gorm.DB) error          { assignID(&c.ID); return nil }
func (p *Product) BeforeCreate(*gorm.DB) error           { assignID(&p.ID); return nil }
func (p *ProductInfo) BeforeCreate(*gorm.DB) error       { assignID(&p.ID); return nil }
func (p *Parameter) BeforeCreate(*gorm.DB) error         { assignID(&p.ID); return nil }
func (p *ProductParameter) BeforeCreate(*gorm.DB) error  { assignID(&p.ID); return nil }
func (o *Order) BeforeCreate(*gorm.DB) error             { assignID(&o.ID); return nil }
func (o *OrderItem) BeforeCreate(*gorm.DB) error         { assignID(&o.ID); return nil }
func (c *Contact) BeforeCreate(*gorm.DB) error           { assignID(&c.ID); return nil }
func (e *OutboxEvent) BeforeCreate(*gorm.DB) error       { assignID(&e.ID); return nil }

// All lists every persisted model, in dependency order.
func All() []any {
	return []any{
		&User{},
		&AuthToken{},
		&ConfirmEmailToken{},
		&Shop{},
		&Category{},
		&ShopCategory{},
		&Product{},
		&ProductInfo{},
		&Parameter{},
		&ProductParameter{},
		&Contact{},
		&Order{},
		&OrderItem{},
		&OutboxEvent{},
	}
}
