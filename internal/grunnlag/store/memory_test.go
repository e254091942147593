package store_test

import (
	"testing"

	"grunnlag/internal/grunnlag/store"
)

func TestInMemoryLedger(t *testing.T) {
	runLedgerContract(t, func(t *testing.T) ledger {
		return store.NewInMemoryLedger()
	})
}
