package errors

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// ErrorDump is the log-side view of an error: its chain, the storefront
// context carried in details, and any Postgres diagnostics.
type ErrorDump struct {
	TopMessage string   `json:"top_message"`
	Code       Code     `json:"code,omitempty"`
	Cause      string   `json:"cause,omitempty"`
	Chain      []string `json:"chain,omitempty"`

	ProductID   string `json:"product_id,omitempty"`
	VariationID string `json:"variation_id,omitempty"`
	Available   *int   `json:"available,omitempty"`
	CouponCode  string `json:"coupon_code,omitempty"`

	PGCode       string `json:"pg_code,omitempty"`
	PGConstraint string `json:"pg_constraint,omitempty"`
	PGTable      string `json:"pg_table,omitempty"`
	PGDetail     string `json:"pg_detail,omitempty"`
}

// Dump flattens err for structured logging.
func Dump(err error) ErrorDump {
	if err == nil {
		return ErrorDump{}
	}
	d := ErrorDump{TopMessage: err.Error()}
	for e := err; e != nil; e = errors.Unwrap(e) {
		d.Chain = append(d.Chain, fmt.Sprintf("%T: %v", e, e))
	}

	if te := As(err); te != nil {
		d.Code = te.Code()
		details, _ := te.Details().(map[string]any)
		if cause, ok := details["cause"].(string); ok {
			d.Cause = cause
		}
		// order_creation_failed nests the stock or coupon error's details.
		if inner, ok := details["cause_details"].(map[string]any); ok {
			details = inner
		}
		d.readDetails(details)
	}

	d.readPostgres(err)
	return d
}

func (d *ErrorDump) readDetails(details map[string]any) {
	if details == nil {
		return
	}
	if v, ok := details["productId"].(string); ok {
		d.ProductID = v
	}
	if v, ok := details["variationId"].(string); ok {
		d.VariationID = v
	}
	if v, ok := details["available"].(int); ok {
		d.Available = &v
	}
	if v, ok := details["code"].(string); ok {
		d.CouponCode = v
	}
}

func (d *ErrorDump) readPostgres(err error) {
	var pgxErr *pgconn.PgError
	if errors.As(err, &pgxErr) {
		d.PGCode = pgxErr.Code
		d.PGConstraint = pgxErr.ConstraintName
		d.PGTable = pgxErr.TableName
		d.PGDetail = pgxErr.Detail
		return
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		d.PGCode = string(pqErr.Code)
		d.PGConstraint = pqErr.Constraint
		d.PGTable = pqErr.Table
		d.PGDetail = pqErr.Detail
	}
}

// Fields returns the non-empty parts of the dump as log fields.
func (d ErrorDump) Fields() map[string]any {
	fields := map[string]any{"error": d.TopMessage}
	add := func(key, value string) {
		if value != "" {
			fields[key] = value
		}
	}
	add("error_code", string(d.Code))
	add("error_cause", d.Cause)
	add("product_id", d.ProductID)
	add("variation_id", d.VariationID)
	add("coupon_code", d.CouponCode)
	add("pg_code", d.PGCode)
	add("pg_constraint", d.PGConstraint)
	add("pg_table", d.PGTable)
	add("pg_detail", d.PGDetail)
	if len(d.Chain) > 1 {
		fields["error_chain"] = d.Chain
	}
	if d.Available != nil {
		fields["available"] = *d.Available
	}
	return fields
}
