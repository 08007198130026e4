package dbsync

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFkConstraintStatements(t *testing.T) {
	fk := FkConstraint{
		Table: "orders",
		Name:  "orders_user_id_fkey",
		Def:   "FOREIGN KEY (user_id) REFERENCES users(id)",
	}

	assert.Equal(t,
		"ALTER TABLE ONLY public.\"orders\" DROP CONSTRAINT IF EXISTS orders_user_id_fkey;\n",
		fk.DropStatement())
	assert.Equal(t,
		"ALTER TABLE ONLY public.\"orders\" ADD CONSTRAINT orders_user_id_fkey FOREIGN KEY (user_id) REFERENCES users(id);\n",
		fk.CreateStatement())
}

func TestIDIndex(t *testing.T) {
	table := &Table{
		Name: "orders",
		columns: []Column{
			{Name: "created_at", Type: "timestamp without time zone"},
			{Name: "id", Type: "integer"},
			{Name: "total", Type: "numeric"},
		},
		loaded: true,
	}

	assert.Equal(t, 1, table.idIndex())
}

func TestIDIndexWithoutIDColumn(t *testing.T) {
	table := &Table{
		Name:    "join_table",
		columns: []Column{{Name: "a_id", Type: "integer"}, {Name: "b_id", Type: "integer"}},
		loaded:  true,
	}

	assert.Equal(t, 2, table.idIndex())
}

func TestAddForeignTable(t *testing.T) {
	table := &Table{Name: "orders"}

	require.NoError(t, table.AddForeignTable("users", []string{"1", "2"}))

	err := table.AddForeignTable("users", []string{"3"})

	assert.EqualError(t, err, "table orders already restricted by users")
}

func TestWhereClause(t *testing.T) {
	table := &Table{Name: "orders"}

	assert.Equal(t, "", table.whereClause())

	require.NoError(t, table.AddForeignTable("users", []string{"1", "2", "3"}))

	assert.Equal(t, "WHERE users_id in (1, 2, 3)", table.whereClause())
}

func TestWhereClauseWithEmptyIDs(t *testing.T) {
	table := &Table{Name: "orders"}

	require.NoError(t, table.AddForeignTable("users", nil))

	assert.Equal(t, "WHERE users_id in (NULL)", table.whereClause())
}

func TestQuotedColumnList(t *testing.T) {
	columns := []Column{{Name: "id"}, {Name: "name"}, {Name: "location"}}

	assert.Equal(t, `"id","name","location"`, quotedColumnList(columns))
}
