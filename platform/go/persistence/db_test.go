package persistence

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSplitStatementsDropsBlanks(t *testing.T) {
	t.Parallel()

	stmts := splitStatements("CREATE TABLE a (id INT);\n\n  ;CREATE INDEX b ON a (id);\n")
	require.Equal(t, []string{"CREATE TABLE a (id INT)", "CREATE INDEX b ON a (id)"}, stmts)
}

func TestPageWindowClamps(t *testing.T) {
	t.Parallel()

	limit, offset := pageWindow(0, 0)
	require.Equal(t, 20, limit)
	require.Equal(t, 0, offset)

	limit, offset = pageWindow(3, 500)
	require.Equal(t, 100, limit)
	require.Equal(t, 200, offset)
}
