package sync

import (
	"errors"
	"strings"
	"testing"
)

func TestConfigValidate(t *testing.T) {
	cases := map[string]func(c *Config){
		"short api key":     func(c *Config) { c.API.Key = "abc-us6" },
		"uppercase api key": func(c *Config) { c.API.Key = "0123456789ABCDEF0123456789ABCDEF-US6" },
		"bad endpoint":      func(c *Config) { c.API.Endpoint = "not a url" },
		"bad list id":       func(c *Config) { c.API.ListID = "ABC!" },
		"unknown status":    func(c *Config) { c.API.StatusIfNew = "maybe" },
		"missing server":    func(c *Config) { c.SQL.Server = "" },
		"missing database":  func(c *Config) { c.SQL.Database = "" },
		"missing table":     func(c *Config) { c.SQL.Table = "" },
		"username without password": func(c *Config) {
			c.SQL.Username = "sa"
			c.SQL.Password = ""
		},
		"table with semicolon": func(c *Config) { c.SQL.Table = "Customers; DROP TABLE x" },
		"column with quote":    func(c *Config) { c.SQL.Columns.Email = `Email"` },
		"unknown merge tag":    func(c *Config) { c.MergeFieldTransforms = map[string]string{"PHONE": "toUpper"} },
		"unknown transform":    func(c *Config) { c.MergeFieldTransforms = map[string]string{"TITLE": "shout"} },
	}

	if err := testConfig.Validate(); err != nil {
		t.Fatalf("Expected the base test config to be valid but have: %v", err)
	}

	for name, mutate := range cases {
		config := testConfig
		mutate(&config)
		err := config.Validate()
		var confErr *ConfigurationError
		if !errors.As(err, &confErr) {
			t.Errorf("%s: expected a ConfigurationError but have: %v", name, err)
		}
	}
}

func TestConfigValidate_AllowedIdentifiers(t *testing.T) {
	config := testConfig
	config.SQL.Schema = "crm reporting"
	config.SQL.Table = "Customer-List.2024#live@eu"
	if err := config.Validate(); err != nil {
		t.Errorf("Expected identifier-shaped names to be allowed but have: %v", err)
	}
}

func TestConfigValidate_TransformsRequireInit(t *testing.T) {
	saved := initialisedFlavour
	initialisedFlavour = nil
	defer func() {
		initialisedFlavour = saved
		if recover() == nil {
			t.Error("Expected Validate to panic when Init has not been called")
		}
	}()
	config := testConfig
	config.MergeFieldTransforms = map[string]string{"TITLE": "toUpper"}
	config.Validate()
}

func TestConfigValidate_TransformWithArgument(t *testing.T) {
	config := testConfig
	config.MergeFieldTransforms = map[string]string{"TITLE": "phone:44"}
	if err := config.Validate(); err != nil {
		t.Errorf("Expected phone:44 to be a valid transform but have: %v", err)
	}
}

func TestUnmarshal_DefaultsAndEnvExpansion(t *testing.T) {
	t.Setenv("TEST_MAILSYNC_KEY", "0123456789abcdef0123456789abcdef-us6")

	yaml := `
api:
  key: ${TEST_MAILSYNC_KEY}
  listID: abc123def9
sql:
  server: dbhost
  database: crm
  table: Customers
`
	config, err := YAMLConfigUnmarshaler{}.Unmarshal(JSONCompositeEnvVar{}, strings.NewReader(yaml))
	if err != nil {
		t.Fatal(err)
	}

	if config.API.Key != "0123456789abcdef0123456789abcdef-us6" {
		t.Errorf("Expected the api key to be expanded from the environment but have: %q", config.API.Key)
	}
	if config.API.Endpoint != DefaultAPIEndpoint {
		t.Errorf("Expected default endpoint but have: %q", config.API.Endpoint)
	}
	if config.API.Username != DefaultAPIUsername {
		t.Errorf("Expected default username but have: %q", config.API.Username)
	}
	if config.API.StatusIfNew != DefaultStatusIfNew {
		t.Errorf("Expected default status but have: %q", config.API.StatusIfNew)
	}
	if config.SQL.Schema != DefaultSQLSchema {
		t.Errorf("Expected default schema but have: %q", config.SQL.Schema)
	}
	if config.SQL.Columns != DefaultColumns {
		t.Errorf("Expected default columns but have: %+v", config.SQL.Columns)
	}
	if config.SQL.Username != "" || config.SQL.Password != "" {
		t.Error("Expected integrated authentication when no credentials are configured")
	}
}

func TestUnmarshal_SecretsFromCompositeEnvVar(t *testing.T) {
	t.Setenv("MAILSYNC_SECRETS", `{"API_KEY":"0123456789abcdef0123456789abcdef-gb1","SQL_PASSWORD":"hunter2"}`)

	yaml := `
api:
  key: ${API_KEY}
  listID: abc123def9
sql:
  server: dbhost
  database: crm
  table: Customers
  username: sa
  password: ${SQL_PASSWORD}
`
	config, err := YAMLConfigUnmarshaler{}.Unmarshal(JSONCompositeEnvVar{Parent: "MAILSYNC_SECRETS"}, strings.NewReader(yaml))
	if err != nil {
		t.Fatal(err)
	}
	if config.API.Key != "0123456789abcdef0123456789abcdef-gb1" {
		t.Errorf("Expected the api key from the composite env var but have: %q", config.API.Key)
	}
	if config.SQL.Password != "hunter2" {
		t.Errorf("Expected the sql password from the composite env var but have: %q", config.SQL.Password)
	}
}

func TestAPIHost(t *testing.T) {
	cases := []struct {
		endpoint string
		key      string
		expected string
	}{
		{"https://api.mailchimp.com/3.0", "0123456789abcdef0123456789abcdef-us6", "us6.api.mailchimp.com/3.0"},
		{"https://us6.api.mailchimp.com/3.0/", "0123456789abcdef0123456789abcdef-us6", "us6.api.mailchimp.com/3.0"},
		{"http://api.mailchimp.com/3.0", "0123456789abcdef0123456789abcdef-gb12", "gb12.api.mailchimp.com/3.0"},
		{"api.mailchimp.com/3.0", "0123456789abcdef0123456789abcdef-us6", "us6.api.mailchimp.com/3.0"},
	}
	for _, c := range cases {
		settings := APISettings{Endpoint: c.endpoint, Key: c.key}
		if have := settings.APIHost(); have != c.expected {
			t.Errorf("Expected host for %q: %s but have: %s", c.endpoint, c.expected, have)
		}
	}
}
