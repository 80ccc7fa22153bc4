package errors

import (
	stdErrors "errors"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestMetadataForKnownCodes(t *testing.T) {
	tests := []struct {
		code      Code
		status    int
		publicMsg string
		retryable bool
		detailsOK bool
	}{
		{code: CodeValidation, status: http.StatusBadRequest, publicMsg: "validation failed", detailsOK: true},
		{code: CodeUnauthorized, status: http.StatusUnauthorized, publicMsg: "authentication required"},
		{code: CodeForbidden, status: http.StatusForbidden, publicMsg: "access denied"},
		{code: CodeNotFound, status: http.StatusNotFound, publicMsg: "resource not found"},
		{code: CodeConflict, status: http.StatusConflict, publicMsg: "conflict detected"},
		{code: CodeStateConflict, status: http.StatusUnprocessableEntity, publicMsg: "state transition disallowed", detailsOK: true},
		{code: CodeInternal, status: http.StatusInternalServerError, publicMsg: "internal server error", retryable: true},
		{code: CodeDependency, status: http.StatusServiceUnavailable, publicMsg: "dependency unavailable", retryable: true, detailsOK: true},
		{code: CodeOutOfStock, status: http.StatusConflict, publicMsg: "item is out of stock", detailsOK: true},
		{code: CodeInsufficientStock, status: http.StatusConflict, publicMsg: "insufficient stock", detailsOK: true},
		{code: CodeCouponRejected, status: http.StatusUnprocessableEntity, publicMsg: "coupon rejected", detailsOK: true},
		{code: CodeCouponAlreadyApplied, status: http.StatusConflict, publicMsg: "a coupon is already applied", detailsOK: true},
		{code: CodeOrderCreationFailed, status: http.StatusUnprocessableEntity, publicMsg: "order could not be created", detailsOK: true},
	}

	for _, tt := range tests {
		meta := MetadataFor(tt.code)
		if meta.HTTPStatus != tt.status {
			t.Fatalf("code %s expected status %d got %d", tt.code, tt.status, meta.HTTPStatus)
		}
		if meta.PublicMessage != tt.publicMsg {
			t.Fatalf("code %s expected public message %q got %q", tt.code, tt.publicMsg, meta.PublicMessage)
		}
		if meta.Retryable != tt.retryable {
			t.Fatalf("code %s expected retryable %v got %v", tt.code, tt.retryable, meta.Retryable)
		}
		if meta.DetailsAllowed != tt.detailsOK {
			t.Fatalf("code %s expected details allowed %v got %v", tt.code, tt.detailsOK, meta.DetailsAllowed)
		}
	}
}

func TestMetadataForUnknownCodeDefaultsToInternal(t *testing.T) {
	meta := MetadataFor("something_unknown")
	if meta.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("expected internal status, got %d", meta.HTTPStatus)
	}
}

func TestErrorConstructors(t *testing.T) {
	base := New(CodeValidation, "missing foo")
	if base.Code() != CodeValidation {
		t.Fatalf("expected validation code, got %s", base.Code())
	}
	if base.Message() != "missing foo" {
		t.Fatalf("unexpected message %q", base.Message())
	}
	if base.Details() != nil {
		t.Fatalf("details should be nil by default")
	}

	detail := map[string]any{"field": "foo"}
	base.WithDetails(detail)
	if base.Details() == nil {
		t.Fatalf("details should be preserved")
	}

	cause := stdErrors.New("boom")
	wrapped := Wrap(CodeConflict, cause, "ctx")
	if !stdErrors.Is(wrapped, cause) {
		t.Fatalf("Wrap did not preserve cause")
	}
	if wrapped.Code() != CodeConflict {
		t.Fatalf("unexpected code %s", wrapped.Code())
	}
}

func TestAsReturnsTypedError(t *testing.T) {
	err := New(CodeForbidden, "no entry")
	if got := As(err); got == nil || got.Code() != CodeForbidden {
		t.Fatalf("As failed to return typed error")
	}
	if As(nil) != nil {
		t.Fatalf("As(nil) should return nil")
	}
}

func TestOrderCreationFailedWrapsFirstError(t *testing.T) {
	stock := New(CodeInsufficientStock, "Only 1 units available for Linen Shirt").
		WithDetails(map[string]any{"available": 1})

	err := OrderCreationFailed(stock)
	if err.Code() != CodeOrderCreationFailed {
		t.Fatalf("unexpected code %s", err.Code())
	}
	if !stdErrors.Is(err, stock) {
		t.Fatalf("expected cause to be preserved")
	}
	if err.Message() != stock.Message() {
		t.Fatalf("expected inner message, got %q", err.Message())
	}
	details, ok := err.Details().(map[string]any)
	if !ok {
		t.Fatalf("expected map details, got %T", err.Details())
	}
	if details["cause"] != string(CodeInsufficientStock) {
		t.Fatalf("unexpected cause %v", details["cause"])
	}
	if !HasCode(err, CodeOrderCreationFailed) || HasCode(err, CodeInsufficientStock) {
		t.Fatalf("HasCode should inspect the outermost typed error")
	}
}

func TestTaxonomyHelpers(t *testing.T) {
	if !IsStockError(CodeOutOfStock) || !IsStockError(CodeInsufficientStock) || IsStockError(CodeValidation) {
		t.Fatalf("stock taxonomy mismatch")
	}
	if !IsCouponError(CodeCouponRejected) || !IsCouponError(CodeCouponAlreadyApplied) || IsCouponError(CodeConflict) {
		t.Fatalf("coupon taxonomy mismatch")
	}
}

func TestDumpSurfacesStockContext(t *testing.T) {
	stock := New(CodeInsufficientStock, "Only 1 units available").
		WithDetails(map[string]any{"productId": "p-1", "variationId": "v-1", "available": 1})
	fields := Dump(OrderCreationFailed(stock)).Fields()

	if fields["error_code"] != string(CodeOrderCreationFailed) || fields["error_cause"] != string(CodeInsufficientStock) {
		t.Fatalf("unexpected codes %v", fields)
	}
	if fields["product_id"] != "p-1" || fields["variation_id"] != "v-1" || fields["available"] != 1 {
		t.Fatalf("unexpected stock context %v", fields)
	}
}

func TestDumpReadsPostgresDiagnostics(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "orders_idempotency_key_key", TableName: "orders"}
	fields := Dump(Wrap(CodeDependency, pgErr, "insert order")).Fields()

	if fields["pg_code"] != "23505" || fields["pg_constraint"] != "orders_idempotency_key_key" || fields["pg_table"] != "orders" {
		t.Fatalf("unexpected pg fields %v", fields)
	}
	if _, ok := fields["product_id"]; ok {
		t.Fatalf("unexpected product field %v", fields)
	}
}
