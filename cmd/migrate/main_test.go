package main

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitStatements(t *testing.T) {
	t.Run("注释行被丢弃", func(t *testing.T) {
		script := "-- 建表\nCREATE TABLE a (id INT);\n-- 索引\nCREATE INDEX i ON a (id);"
		stmts := splitStatements(script)
		require.Len(t, stmts, 2)
		assert.Equal(t, "CREATE TABLE a (id INT);", stmts[0])
		assert.Equal(t, "CREATE INDEX i ON a (id);", stmts[1])
	})

	t.Run("语句前的注释不影响语句本身", func(t *testing.T) {
		script := "-- 说明\nCREATE TABLE a (\n    id INT\n);"
		stmts := splitStatements(script)
		require.Len(t, stmts, 1)
		assert.True(t, strings.HasPrefix(stmts[0], "CREATE TABLE"))
	})

	t.Run("字符串中的分号不分割", func(t *testing.T) {
		script := "INSERT INTO a VALUES ('x;y');\nUPDATE a SET v = \"a;b\";"
		stmts := splitStatements(script)
		require.Len(t, stmts, 2)
		assert.Equal(t, "INSERT INTO a VALUES ('x;y');", stmts[0])
	})

	t.Run("末尾缺少分号的语句保留", func(t *testing.T) {
		stmts := splitStatements("SELECT 1")
		require.Len(t, stmts, 1)
		assert.Equal(t, "SELECT 1", stmts[0])
	})

	t.Run("空脚本返回空", func(t *testing.T) {
		assert.Empty(t, splitStatements("-- 只有注释\n\n"))
	})
}

func TestSplitStatementsMigrationFiles(t *testing.T) {
	cases := []struct {
		name string
		path string
		want int
	}{
		{"mysql 升级脚本", "../../migrations/mysql/001_initial_schema.up.sql", 3},
		{"mysql 回滚脚本", "../../migrations/mysql/001_initial_schema.down.sql", 3},
		{"postgres 升级脚本", "../../migrations/postgres/001_initial_schema.up.sql", 7},
		{"postgres 回滚脚本", "../../migrations/postgres/001_initial_schema.down.sql", 3},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			content, err := os.ReadFile(tc.path)
			require.NoError(t, err)

			stmts := splitStatements(string(content))
			require.Len(t, stmts, tc.want)

			for _, stmt := range stmts {
				assert.False(t, strings.HasPrefix(stmt, "--"), "语句不应以注释开头: %s", stmt)
				assert.True(t,
					strings.HasPrefix(stmt, "CREATE") || strings.HasPrefix(stmt, "DROP"),
					"意外的语句开头: %s", stmt)
			}
		})
	}
}
