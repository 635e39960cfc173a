package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorPredicates(t *testing.T) {
	ve := NewValidationError("valor inválido: %s", "abc")
	nfe := NewNotFoundError("Pedido", "order-1")
	ge := NewGatewayError(503, "gateway unreachable")
	le := &LockedError{Message: "already posted in the last minute"}

	if !IsValidation(ve) || IsValidation(nfe) {
		t.Fatal("IsValidation misclassified")
	}
	if !IsNotFound(nfe) || IsNotFound(ge) {
		t.Fatal("IsNotFound misclassified")
	}
	if !IsGateway(ge) || IsGateway(le) {
		t.Fatal("IsGateway misclassified")
	}
	if !IsLocked(le) || IsLocked(ve) {
		t.Fatal("IsLocked misclassified")
	}
}

func TestErrorPredicates_Wrapped(t *testing.T) {
	wrapped := fmt.Errorf("refresh order: %w", NewGatewayError(500, "boom"))
	if !IsGateway(wrapped) {
		t.Fatal("expected wrapped GatewayError to be detected")
	}

	var ge *GatewayError
	if !errors.As(wrapped, &ge) || ge.StatusCode != 500 {
		t.Fatalf("expected status code 500, got %+v", ge)
	}
}

func TestNotFoundErrorMessage(t *testing.T) {
	err := NewNotFoundError("Lote", "lot-9")
	if err.Error() != "Lote lot-9 não encontrado" {
		t.Fatalf("unexpected message: %s", err.Error())
	}
}

func TestIsVersionConflict(t *testing.T) {
	if !IsVersionConflict(fmt.Errorf("save: %w", ErrOrderVersionConflict)) {
		t.Fatal("expected wrapped version conflict to be detected")
	}
	if IsVersionConflict(errors.New("other")) {
		t.Fatal("unexpected version conflict")
	}
}
