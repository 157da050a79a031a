package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/idea-dashboard/internal/store"
)

func TestDeleteDefaultsToOrphan(t *testing.T) {
	flag := deleteCmd.Flags().Lookup("cascade")
	require.NotNil(t, flag)
	assert.Equal(t, "false", flag.DefValue)

	assert.Equal(t, store.DeleteOrphan, deleteMode())

	deleteCascade = true
	t.Cleanup(func() { deleteCascade = false })
	assert.Equal(t, store.DeleteCascade, deleteMode())
}
