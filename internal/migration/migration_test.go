package migration

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEmbeddedSourceStartsAtInitialVersion(t *testing.T) {
	src, err := Source()
	require.NoError(t, err)
	defer src.Close()

	first, err := src.First()
	require.NoError(t, err)
	require.Equal(t, uint(1), first)

	body, _, err := src.ReadUp(first)
	require.NoError(t, err)
	defer body.Close()

	raw, err := io.ReadAll(body)
	require.NoError(t, err)
	ddl := string(raw)
	require.True(t, strings.Contains(ddl, "ux_transactions_succeeded_payment"))
	require.True(t, strings.Contains(ddl, "payment_webhook_events"))
}

func TestRunMigrationsRequiresHandle(t *testing.T) {
	require.Error(t, RunMigrations(nil))
}

func TestEmbeddedSourceAddsSessionIndex(t *testing.T) {
	src, err := Source()
	require.NoError(t, err)
	defer src.Close()

	next, err := src.Next(1)
	require.NoError(t, err)
	require.Equal(t, uint(2), next)

	body, _, err := src.ReadUp(next)
	require.NoError(t, err)
	defer body.Close()

	raw, err := io.ReadAll(body)
	require.NoError(t, err)
	require.Contains(t, string(raw), "ux_transactions_payment_session")
}
