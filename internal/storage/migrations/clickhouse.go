package migrations

import (
	"context"
	"fmt"
	"io/fs"
	"net/url"
	"strings"

	chstore "backtest-lab/internal/storage/clickhouse"
)

// RunClickhouseMigrations creates the DSN's database if needed and
// applies the embedded schema files in lexical order. The returned
// connection targets the migrated database, ready for stores.
func RunClickhouseMigrations(ctx context.Context, dsn string) (*chstore.Conn, error) {
	dbName, err := databaseFromDSN(dsn)
	if err != nil {
		return nil, err
	}
	if err := ensureDatabase(ctx, dsn, dbName); err != nil {
		return nil, err
	}

	conn, err := chstore.NewConnWithDatabase(ctx, dsn, dbName)
	if err != nil {
		return nil, fmt.Errorf("connect clickhouse db: %w", err)
	}

	files, err := sqlFiles(ClickhouseFS, "clickhouse")
	if err != nil {
		conn.Close()
		return nil, err
	}

	for _, file := range files {
		data, err := fs.ReadFile(ClickhouseFS, "clickhouse/"+file)
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("read migration %s: %w", file, err)
		}

		// the driver rejects multi-statement Exec, so each statement
		// goes over the wire on its own
		stmts, err := splitStatements(string(data))
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("split migration %s: %w", file, err)
		}
		for _, stmt := range stmts {
			if err := conn.Exec(ctx, stmt); err != nil {
				conn.Close()
				return nil, fmt.Errorf("apply migration %s: %w", file, err)
			}
		}
	}

	return conn, nil
}

// ensureDatabase bootstraps the target database over an admin connection
// to the server's default database.
func ensureDatabase(ctx context.Context, dsn, dbName string) error {
	admin, err := chstore.NewConnWithDatabase(ctx, dsn, "")
	if err != nil {
		return fmt.Errorf("connect clickhouse admin: %w", err)
	}
	defer admin.Close()

	if err := admin.Exec(ctx, fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", dbName)); err != nil {
		return fmt.Errorf("create database %s: %w", dbName, err)
	}
	return nil
}

// splitStatements cuts a migration file into single statements at
// semicolons outside string literals. Whole-line `--` comments are
// dropped first. A semicolon inside a literal is an error: the schema
// files must stay simple enough for this splitter, nothing here needs
// one.
func splitStatements(input string) ([]string, error) {
	var sb strings.Builder
	for _, line := range strings.Split(input, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}
		sb.WriteString(line)
		sb.WriteByte('\n')
	}
	src := sb.String()

	var stmts []string
	var stmt []byte
	inString := false
	for i := 0; i < len(src); i++ {
		ch := src[i]
		switch {
		case ch == '\'':
			// '' escapes a quote inside a literal
			if inString && i+1 < len(src) && src[i+1] == '\'' {
				stmt = append(stmt, ch, src[i+1])
				i++
				continue
			}
			inString = !inString
			stmt = append(stmt, ch)
		case ch == ';' && inString:
			return nil, fmt.Errorf("semicolon inside string literal at byte %d", i)
		case ch == ';':
			if s := strings.TrimSpace(string(stmt)); s != "" {
				stmts = append(stmts, s)
			}
			stmt = stmt[:0]
		default:
			stmt = append(stmt, ch)
		}
	}
	if s := strings.TrimSpace(string(stmt)); s != "" {
		stmts = append(stmts, s)
	}
	return stmts, nil
}

// databaseFromDSN extracts the database name from a clickhouse:// DSN
// path.
func databaseFromDSN(dsn string) (string, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("parse clickhouse dsn: %w", err)
	}
	db := strings.TrimPrefix(u.Path, "/")
	if db == "" {
		return "", fmt.Errorf("clickhouse dsn missing database")
	}
	return db, nil
}
