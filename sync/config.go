package sync

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"go.uber.org/config"
)

const (
	DefaultAPIEndpoint = "https://api.mailchimp.com/3.0"
	DefaultAPIUsername = "mailsync"
	DefaultStatusIfNew = "subscribed"
	DefaultSQLSchema   = "dbo"
)

// DefaultColumns are the column names assumed when the source table follows
// the standard customer layout.
var DefaultColumns = ColumnBindings{
	Email:     "Email",
	FirstName: "FirstName",
	LastName:  "LastName",
	Title:     "Title",
	Agreed:    "PromotionsAgreed",
}

// SubscriptionStatuses are the values the audience API accepts for the
// status applied to members that do not yet exist.
var SubscriptionStatuses = []string{
	"subscribed",
	"unsubscribed",
	"cleaned",
	"pending",
	"transactional",
}

var (
	apiKeyPattern   = regexp.MustCompile(`^[0-9a-f]{32}-[a-z]{2}[0-9]{1,2}$`)
	endpointPattern = regexp.MustCompile(`^(https?://)?[a-z0-9][a-z0-9.\-]*[a-z0-9](/[A-Za-z0-9./\-]*)?$`)
	listIDPattern   = regexp.MustCompile(`^[0-9a-z]{6,16}$`)

	// identifierPattern restricts schema/table/column names before they are
	// interpolated into query text. This only admits identifier-shaped
	// strings, it is not full injection-safety for arbitrary SQL.
	identifierPattern = regexp.MustCompile(`^[A-Za-z0-9 \-_.#@]+$`)

	// dataCenterPrefix matches hosts that already carry a data-center
	// prefix, e.g. "us6." or "gb12.".
	dataCenterPrefix = regexp.MustCompile(`^[a-z]{2}[0-9]{1,2}\.`)
)

type Config struct {
	API APISettings
	SQL SQLSettings
	// MergeFieldTransforms maps a merge tag (e.g. "TITLE") to a named
	// transform applied to the value before it is sent, e.g. "toUpper" or
	// "phone:44". See Init for the registered transforms.
	MergeFieldTransforms map[string]string
}

type APISettings struct {
	Key      string
	Endpoint string
	Username string
	ListID   string `yaml:"listID"`
	// StatusIfNew is applied only when the remote member does not yet exist.
	StatusIfNew string `yaml:"statusIfNew"`
}

type SQLSettings struct {
	Server   string
	Instance string
	Database string
	// Username and Password are optional; when both are absent the
	// connection uses integrated (trusted) authentication.
	Username string
	Password string
	Schema   string
	Table    string
	Columns  ColumnBindings
}

// ColumnBindings names the source table columns holding each logical field.
// The extractor binds these to canonical Fields at read time, so downstream
// code never sees configured column names.
type ColumnBindings struct {
	Email     string
	FirstName string `yaml:"firstName"`
	LastName  string `yaml:"lastName"`
	Title     string
	Agreed    string
}

// CompositeEnvVar resolves ${NAME} references in config sources.
type CompositeEnvVar interface {
	LookupEnv(child string) (string, bool)
}

// JSONCompositeEnvVar resolves references from a single JSON-valued parent
// env var (so a deployment can inject all secrets as one variable), falling
// back to the plain process environment.
type JSONCompositeEnvVar struct {
	Parent string
}

func (c JSONCompositeEnvVar) LookupEnv(child string) (string, bool) {
	if c.Parent != "" {
		s := os.Getenv(c.Parent)
		if s != "" {
			m := make(map[string]string)
			err := json.Unmarshal([]byte(s), &m)
			if err == nil {
				if v, exists := m[child]; exists {
					return v, true
				}
			}
		}
	}
	return os.LookupEnv(child)
}

type YAMLConfigUnmarshaler struct{}

func (u YAMLConfigUnmarshaler) Unmarshal(compev CompositeEnvVar, sources ...io.Reader) (Config, error) {
	var result Config
	var options []config.YAMLOption
	for _, s := range sources {
		options = append(options, config.Source(s))
	}
	options = append(options, config.Expand(compev.LookupEnv))
	yaml, err := config.NewYAML(options...)
	if err != nil {
		return result, fmt.Errorf("failed to read yaml config %w", err)
	}
	readError := func(key string, cause error) error {
		return fmt.Errorf("failed to read '%s' from yaml config %w", key, cause)
	}
	key := "api"
	err = yaml.Get(key).Populate(&result.API)
	if err != nil {
		return result, readError(key, err)
	}
	key = "sql"
	err = yaml.Get(key).Populate(&result.SQL)
	if err != nil {
		return result, readError(key, err)
	}
	key = "mergeFieldTransforms"
	if yaml.Get(key).HasValue() {
		err = yaml.Get(key).Populate(&result.MergeFieldTransforms)
		if err != nil {
			return result, readError(key, err)
		}
	}

	result.applyDefaults()
	if err := result.Validate(); err != nil {
		return result, err
	}

	return result, nil
}

func (c *Config) applyDefaults() {
	if c.API.Endpoint == "" {
		c.API.Endpoint = DefaultAPIEndpoint
	}
	if c.API.Username == "" {
		c.API.Username = DefaultAPIUsername
	}
	if c.API.StatusIfNew == "" {
		c.API.StatusIfNew = DefaultStatusIfNew
	}
	if c.SQL.Schema == "" {
		c.SQL.Schema = DefaultSQLSchema
	}
	if c.SQL.Columns.Email == "" {
		c.SQL.Columns.Email = DefaultColumns.Email
	}
	if c.SQL.Columns.FirstName == "" {
		c.SQL.Columns.FirstName = DefaultColumns.FirstName
	}
	if c.SQL.Columns.LastName == "" {
		c.SQL.Columns.LastName = DefaultColumns.LastName
	}
	if c.SQL.Columns.Title == "" {
		c.SQL.Columns.Title = DefaultColumns.Title
	}
	if c.SQL.Columns.Agreed == "" {
		c.SQL.Columns.Agreed = DefaultColumns.Agreed
	}
}

// Validate checks all configured parameters before any I/O is attempted.
// It returns a ConfigurationError describing the first invalid parameter.
func (c Config) Validate() error {
	fail := func(format string, args ...interface{}) error {
		return &ConfigurationError{Cause: fmt.Errorf(format, args...)}
	}

	if !apiKeyPattern.MatchString(c.API.Key) {
		return fail("api key does not match the expected <hex>-<datacenter> shape")
	}
	if !endpointPattern.MatchString(c.API.Endpoint) {
		return fail("api endpoint %q is not a valid base url", c.API.Endpoint)
	}
	if !listIDPattern.MatchString(c.API.ListID) {
		return fail("list id %q does not match the expected shape", c.API.ListID)
	}
	status := strings.ToLower(c.API.StatusIfNew)
	validStatus := false
	for _, s := range SubscriptionStatuses {
		if status == s {
			validStatus = true
			break
		}
	}
	if !validStatus {
		return fail("status %q is not one of %s", c.API.StatusIfNew, strings.Join(SubscriptionStatuses, ", "))
	}

	if c.SQL.Server == "" {
		return fail("sql server is required")
	}
	if c.SQL.Database == "" {
		return fail("sql database is required")
	}
	if (c.SQL.Username == "") != (c.SQL.Password == "") {
		return fail("sql username and password must be supplied together (omit both for integrated authentication)")
	}
	if c.SQL.Table == "" {
		return fail("sql table is required")
	}
	identifiers := map[string]string{
		"schema":            c.SQL.Schema,
		"table":             c.SQL.Table,
		"email column":      c.SQL.Columns.Email,
		"first name column": c.SQL.Columns.FirstName,
		"last name column":  c.SQL.Columns.LastName,
		"title column":      c.SQL.Columns.Title,
		"agreed column":     c.SQL.Columns.Agreed,
	}
	for name, value := range identifiers {
		if !identifierPattern.MatchString(value) {
			return fail("sql %s %q contains characters outside the allowed set", name, value)
		}
	}

	if len(c.MergeFieldTransforms) > 0 {
		// transforms are registered by Init, so checking them beforehand is
		// a programming error rather than a configuration one
		mustBeInitialised()
	}
	for tag, transform := range c.MergeFieldTransforms {
		if _, exists := MergeTagsByField()[tag]; !exists {
			return fail("transform configured for unknown merge tag %q", tag)
		}
		name := transform
		if i := strings.Index(name, ":"); i >= 0 {
			name = name[:i]
		}
		if !IsRegisteredTransform(name) {
			return fail("unsupported transform %q for merge tag %q", transform, tag)
		}
	}

	return nil
}

// MergeTagsByField returns a set of the merge tags used in upsert payloads,
// keyed by tag for membership checks.
func MergeTagsByField() map[string]Field {
	return map[string]Field{
		MergeTagFirstName: FieldFirstName,
		MergeTagLastName:  FieldLastName,
		MergeTagTitle:     FieldTitle,
		MergeTagAgreed:    FieldAgreed,
	}
}
