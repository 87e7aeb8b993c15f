package openapi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	doc, err := Load()
	require.NoError(t, err)

	ops := map[string]bool{}
	for _, item := range doc.Paths.Map() {
		for _, op := range item.Operations() {
			ops[op.OperationID] = true
		}
	}
	for _, id := range []string{
		"createAuthority", "deleteAuthority", "updateHoldingNodes", "addTerritory", "removeTerritory", "createLaw",
		"createRoute", "getRoute", "deleteRoute", "spawnPatrol",
		"listPatrols", "getPatrol", "joinPatrol", "leavePatrol", "sweepStartTriggers",
		"removeCharacter", "listCharacterNotifications",
		"reportCrime", "listOutstandingCrimes", "getCrime",
	} {
		assert.True(t, ops[id], "missing operation %s", id)
	}
}
