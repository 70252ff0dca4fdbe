package sync

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"

	_ "github.com/microsoft/go-mssqldb"
)

// Field identifies a canonical logical field of a source row. The extractor
// binds configured column names to Fields at read time.
type Field int

const (
	FieldEmail Field = iota
	FieldFirstName
	FieldLastName
	FieldTitle
	FieldAgreed
)

// SourceRecord is one customer row read from the source table.
// A missing or nil value means the column was NULL.
type SourceRecord map[Field]interface{}

// SourceFetcher fetches all source rows for one run.
type SourceFetcher interface {
	FetchSourceRecords(ctx context.Context) ([]SourceRecord, error)
}

// RowExtractor reads customer rows from a SQL Server table in a single
// bulk SELECT.
type RowExtractor struct {
	Settings SQLSettings
}

// DSN builds the sqlserver connection URL. Userinfo is omitted entirely
// when no credentials are configured, which selects integrated (trusted)
// authentication.
func (e RowExtractor) DSN() string {
	u := url.URL{
		Scheme: "sqlserver",
		Host:   e.Settings.Server,
	}
	if e.Settings.Instance != "" {
		u.Path = e.Settings.Instance
	}
	if e.Settings.Username != "" {
		u.User = url.UserPassword(e.Settings.Username, e.Settings.Password)
	}
	q := url.Values{}
	q.Set("database", e.Settings.Database)
	u.RawQuery = q.Encode()
	return u.String()
}

// Query builds the extraction SELECT. Identifiers have already been
// restricted to the allowed character set by Config.Validate.
func (e RowExtractor) Query() string {
	c := e.Settings.Columns
	return fmt.Sprintf("SELECT %s,%s,%s,%s,%s FROM %s.%s",
		c.Email, c.FirstName, c.LastName, c.Title, c.Agreed,
		e.Settings.Schema, e.Settings.Table)
}

// FetchSourceRecords executes the extraction query and materializes every
// matching row. It fails with ConnectionError when the server is
// unreachable or rejects the credentials, and with NoDataError when the
// query succeeds but returns zero rows.
func (e RowExtractor) FetchSourceRecords(ctx context.Context) ([]SourceRecord, error) {
	db, err := sql.Open("sqlserver", e.DSN())
	if err != nil {
		return nil, &ConnectionError{Server: e.Settings.Server, Cause: err}
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return nil, &ConnectionError{Server: e.Settings.Server, Cause: err}
	}

	rows, err := db.QueryContext(ctx, e.Query())
	if err != nil {
		return nil, &ConnectionError{Server: e.Settings.Server, Cause: err}
	}
	defer rows.Close()

	var result []SourceRecord
	for rows.Next() {
		var email, first, last, title, agreed interface{}
		if err := rows.Scan(&email, &first, &last, &title, &agreed); err != nil {
			return nil, &ConnectionError{Server: e.Settings.Server, Cause: err}
		}
		result = append(result, SourceRecord{
			FieldEmail:     normalizeScanned(email),
			FieldFirstName: normalizeScanned(first),
			FieldLastName:  normalizeScanned(last),
			FieldTitle:     normalizeScanned(title),
			FieldAgreed:    normalizeScanned(agreed),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, &ConnectionError{Server: e.Settings.Server, Cause: err}
	}

	if len(result) == 0 {
		return nil, &NoDataError{Schema: e.Settings.Schema, Table: e.Settings.Table}
	}

	return result, nil
}

// normalizeScanned maps driver byte slices to strings so row values
// serialize as JSON strings rather than base64.
func normalizeScanned(v interface{}) interface{} {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
