package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookups(t *testing.T) {
	c := C("channels", "the_geom")
	assert.Equal(t, "channels.the_geom", c.QualifiedName())
	assert.Equal(t, Blob, c.Type)
	assert.Equal(t, LineString, c.Geometry)

	assert.Nil(t, T("channels").Column("nope"))
	assert.Panics(t, func() { T("no_such_table") })
	assert.Panics(t, func() { C("channels", "no_such_column") })
}

func TestManifestIntegrity(t *testing.T) {
	seen := map[string]bool{}
	for _, table := range Tables {
		assert.False(t, seen[table.Name], "duplicate table %s", table.Name)
		seen[table.Name] = true

		id := table.Column("id")
		require.NotNil(t, id, "%s has no id column", table.Name)
		assert.True(t, id.PrimaryKey, "%s.id is not the primary key", table.Name)

		for _, col := range table.Columns {
			assert.Equal(t, table.Name, col.Table, "%s backref", col.QualifiedName())

			if col.Geometry != "" {
				assert.Equal(t, Blob, col.Type,
					"%s: geometry columns store WKB blobs", col.QualifiedName())
			}
			if fk := col.ForeignKey; fk != nil {
				target := T(fk.Table).Column(fk.Column)
				require.NotNil(t, target, "%s references unknown %s.%s",
					col.QualifiedName(), fk.Table, fk.Column)
			}
			if col.Enum != nil {
				assert.NotEmpty(t, col.Enum, "%s: empty enum", col.QualifiedName())
			}
		}
	}
}
