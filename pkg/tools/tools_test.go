package tools

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/comigor/askdata-go/internal/datastore"
	"github.com/comigor/askdata-go/internal/datastore/datastoretest"
)

func TestToolManager(t *testing.T) {
	db := datastoretest.Open(t)
	m := NewToolManager(SQLTools(db, 10)...)

	names := []string{}
	for _, tool := range m.List() {
		names = append(names, tool.Name())
	}
	require.Equal(t, []string{"sql_db_list_tables", "sql_db_query", "sql_db_schema"}, names)

	defs := m.Definitions()
	require.Len(t, defs, 3)
	require.Equal(t, "sql_db_list_tables", defs[0].Function.Name)

	_, err := m.GetTool("sql_db_drop")
	require.Error(t, err)
}

func TestSQLQueryTool(t *testing.T) {
	tool := NewSQLQueryTool(datastoretest.Open(t), 10)
	ctx := context.Background()

	out, err := tool.Run(ctx, `{"query":"SELECT name FROM products ORDER BY name"}`)
	require.NoError(t, err)
	require.Equal(t, "name\nApple\nCarrot", out)

	_, err = tool.Run(ctx, `{"query":`)
	require.Error(t, err)

	_, err = tool.Run(ctx, `{"query":"  "}`)
	require.Error(t, err)

	_, err = tool.Run(ctx, `{"query":"DELETE FROM products"}`)
	require.ErrorIs(t, err, datastore.ErrNotReadOnly)
}

func TestListTablesTool(t *testing.T) {
	out, err := NewListTablesTool(datastoretest.Open(t)).Run(context.Background(), "{}")
	require.NoError(t, err)
	require.Equal(t, "group_leaders, order_items, orders, products, users", out)
}

func TestSchemaTool(t *testing.T) {
	tool := NewSchemaTool(datastoretest.Open(t))

	out, err := tool.Run(context.Background(), `{"tables":"group_leaders, order_items"}`)
	require.NoError(t, err)
	require.Equal(t, "Table group_leaders:\n  id INTEGER\n  user_id TEXT\n"+
		"Table order_items:\n  id INTEGER\n  order_id INTEGER\n  product_id TEXT\n  quantity INTEGER", out)

	_, err = tool.Run(context.Background(), `{"tables":"nope"}`)
	require.Error(t, err)

	_, err = tool.Run(context.Background(), `{"tables":""}`)
	require.Error(t, err)
}
