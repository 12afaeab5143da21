package pgstore

import (
	"strings"
	"testing"
	"time"
)

func TestDefaultPgPoolConfig(t *testing.T) {
	cfg := DefaultPgPoolConfig()

	if cfg.ConnectTimeout != 5*time.Second {
		t.Errorf("ConnectTimeout = %v, want 5s", cfg.ConnectTimeout)
	}
	if cfg.MaxConns != 8 {
		t.Errorf("MaxConns = %d, want 8", cfg.MaxConns)
	}
	if cfg.MinConns != 0 {
		t.Errorf("MinConns = %d, want 0", cfg.MinConns)
	}
	if cfg.MaxConnLifetime != time.Hour {
		t.Errorf("MaxConnLifetime = %v, want 1h", cfg.MaxConnLifetime)
	}
	if cfg.MaxConnIdleTime != 30*time.Minute {
		t.Errorf("MaxConnIdleTime = %v, want 30m", cfg.MaxConnIdleTime)
	}
}

func TestPgSchemaStatementsContainsRequiredTables(t *testing.T) {
	required := []string{
		"CREATE SCHEMA IF NOT EXISTS prreviewer",
		"CREATE TABLE IF NOT EXISTS prreviewer.schema_version",
		"CREATE TABLE IF NOT EXISTS prreviewer.prs",
		"CREATE TABLE IF NOT EXISTS prreviewer.reviewers",
		"CREATE TABLE IF NOT EXISTS prreviewer.file_changes",
		"CREATE TABLE IF NOT EXISTS prreviewer.review_metadata",
		"CREATE TABLE IF NOT EXISTS prreviewer.review_history",
		"CREATE TABLE IF NOT EXISTS prreviewer.comment_threads",
	}

	all := strings.Join(pgSchemaStatements(), "\n")
	for _, want := range required {
		if !strings.Contains(all, want) {
			t.Errorf("schema missing: %s", want)
		}
	}
}

func TestPgSchemaStatementsSkipsCommentOnlyChunks(t *testing.T) {
	for _, stmt := range pgSchemaStatements() {
		if strings.TrimSpace(stmt) == "" {
			t.Error("pgSchemaStatements returned a blank statement")
		}
	}

	orig := pgSchemaSQL
	t.Cleanup(func() { pgSchemaSQL = orig })
	pgSchemaSQL = "-- header comment\n;\nCREATE TABLE t (id INT);\n-- trailing comment only\n"
	stmts := pgSchemaStatements()
	if len(stmts) != 1 || !strings.HasPrefix(stmts[0], "CREATE TABLE t") {
		t.Errorf("pgSchemaStatements = %q, want only the CREATE TABLE statement", stmts)
	}
}
