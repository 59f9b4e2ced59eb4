package checks

import (
	"context"
	"testing"

	"github.com/peterstace/simplefeatures/geom"
	"github.com/stretchr/testify/require"

	"github.com/floodtools/modelchecker/internal/db"
)

func testContext(t *testing.T) *Context {
	t.Helper()
	return &Context{DB: db.OpenTestModel(t)}
}

func exec(t *testing.T, chk *Context, query string, args ...any) {
	t.Helper()
	_, err := chk.DB.Exec(query, args...)
	require.NoError(t, err)
}

// wkb converts WKT into the WKB blob format the model stores.
func wkb(t *testing.T, wkt string) []byte {
	t.Helper()
	g, err := geom.UnmarshalWKT(wkt)
	require.NoError(t, err)
	return g.AsBinary()
}

func invalidIDs(t *testing.T, chk Check, c *Context) []int64 {
	t.Helper()
	rows, err := chk.GetInvalid(context.Background(), c)
	require.NoError(t, err)
	ids := make([]int64, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	return ids
}
