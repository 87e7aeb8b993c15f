package repository

import (
	"testing"

	"lawwarden.io/warden/internal/repository/sqlc"
	"lawwarden.io/warden/internal/testutil"
)

func TestStore(t *testing.T) {
	runStoreContract(t, func(t *testing.T) storeUnderTest {
		return NewStore(testutil.OpenPGXPool(t, "repository_store", sqlc.Schema))
	})
}
