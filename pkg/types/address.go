package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
)

// Address is the delivery/billing contact block captured on an order.
// Stored as a JSON document so the order keeps its own copy.
type Address struct {
	Name     string  `json:"name" validate:"required"`
	Mobile   string  `json:"mobile" validate:"required"`
	Email    *string `json:"email,omitempty" validate:"omitempty,email"`
	Street   string  `json:"street" validate:"required"`
	District string  `json:"district" validate:"required"`
	City     string  `json:"city" validate:"required"`
	Zip      string  `json:"zip" validate:"required"`
	Notes    *string `json:"notes,omitempty"`
}

// Normalize trims whitespace on every field.
func (a Address) Normalize() Address {
	a.Name = strings.TrimSpace(a.Name)
	a.Mobile = strings.TrimSpace(a.Mobile)
	a.Street = strings.TrimSpace(a.Street)
	a.District = strings.TrimSpace(a.District)
	a.City = strings.TrimSpace(a.City)
	a.Zip = strings.TrimSpace(a.Zip)
	if a.Email != nil {
		trimmed := strings.TrimSpace(*a.Email)
		if trimmed == "" {
			a.Email = nil
		} else {
			a.Email = &trimmed
		}
	}
	return a
}

// IsZero reports whether no field was supplied.
func (a Address) IsZero() bool {
	return a.Name == "" && a.Mobile == "" && a.Street == "" && a.District == "" && a.City == "" && a.Zip == ""
}

// Value marshals the address into JSON for storage.
func (a Address) Value() (driver.Value, error) {
	raw, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("address: marshal: %w", err)
	}
	return string(raw), nil
}

// Scan decodes a stored JSON address.
func (a *Address) Scan(value any) error {
	if value == nil {
		*a = Address{}
		return nil
	}
	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("address: unsupported scan type %T", value)
	}
	if len(raw) == 0 {
		*a = Address{}
		return nil
	}
	return json.Unmarshal(raw, a)
}
