package persistence

import (
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"
)

func TestNewPgTxRunner_Isolation(t *testing.T) {
	cases := map[string]pgx.TxIsoLevel{
		"":                pgx.Serializable,
		"serializable":    pgx.Serializable,
		"repeatable_read": pgx.RepeatableRead,
		"read_committed":  pgx.Serializable,
	}
	for raw, want := range cases {
		require.Equal(t, want, NewPgTxRunner(raw).opts.IsoLevel, raw)
	}
}
