package sync

import (
	"context"
	"errors"
	"testing"

	"github.com/carlmjohnson/requests"
)

func TestFetchAudience(t *testing.T) {
	api := AudienceFetcherAndUpdater{&SyncContext{
		Config: testConfig,
		Transport: requests.ReplayString("HTTP/1.1 200 OK\r\n" +
			"Content-Type: application/json\r\n" +
			"\r\n" +
			`{"id":"abc123def9","name":"Newsletter","stats":{"member_count":42}}`),
	}}

	audience, err := api.FetchAudience(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	expected := Audience{ID: "abc123def9", Name: "Newsletter", MemberCount: 42}
	if audience != expected {
		t.Errorf("Expected audience: %+v but have: %+v", expected, audience)
	}
}

func TestFetchAudience_NotFound(t *testing.T) {
	api := AudienceFetcherAndUpdater{&SyncContext{
		Config: testConfig,
		Transport: requests.ReplayString("HTTP/1.1 404 Not Found\r\n" +
			"Content-Type: application/problem+json\r\n" +
			"\r\n" +
			`{"type":"about:blank","title":"Resource Not Found","status":404,"detail":"The requested resource could not be found."}`),
	}}

	_, err := api.FetchAudience(context.Background())
	var confErr *ConfigurationError
	if !errors.As(err, &confErr) {
		t.Fatalf("Expected a ConfigurationError but have: %v", err)
	}
}

func TestFetchAudience_MissingListName(t *testing.T) {
	api := AudienceFetcherAndUpdater{&SyncContext{
		Config: testConfig,
		Transport: requests.ReplayString("HTTP/1.1 200 OK\r\n" +
			"Content-Type: application/json\r\n" +
			"\r\n" +
			`{"id":"abc123def9"}`),
	}}

	_, err := api.FetchAudience(context.Background())
	var confErr *ConfigurationError
	if !errors.As(err, &confErr) {
		t.Fatalf("Expected a ConfigurationError but have: %v", err)
	}
}

func TestUpsertMember(t *testing.T) {
	api := AudienceFetcherAndUpdater{&SyncContext{
		Config: testConfig,
		Transport: requests.ReplayString("HTTP/1.1 200 OK\r\n" +
			"Content-Type: application/json\r\n" +
			"\r\n" +
			`{"id":"9e26471d35a78862c17e467d87cddedf","email_address":"jane@example.com","status":"subscribed"}`),
	}}

	up := MemberUpsert{
		ID:      "9e26471d35a78862c17e467d87cddedf",
		Payload: `{"email_address":"jane@example.com","status_if_new":"subscribed","merge_fields":{"FNAME":"Jane","LNAME":"Doe","TITLE":"Ms","AGREED":true}}`,
	}
	if err := api.UpsertMember(up, context.Background()); err != nil {
		t.Errorf("Expected a 200 response to be a success but have: %v", err)
	}
}

func TestUpsertMember_BadRequest(t *testing.T) {
	api := AudienceFetcherAndUpdater{&SyncContext{
		Config: testConfig,
		Transport: requests.ReplayString("HTTP/1.1 400 Bad Request\r\n" +
			"Content-Type: application/problem+json\r\n" +
			"\r\n" +
			`{"type":"about:blank","title":"Invalid Resource","status":400,"detail":"Please provide a valid email address."}`),
	}}

	up := MemberUpsert{ID: MemberID("nope"), Payload: `{"email_address":"nope"}`}
	err := api.UpsertMember(up, context.Background())
	if err == nil {
		t.Fatal("Expected a non-200 response to be a failure")
	}
	var apiErr APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Expected the API problem document to be surfaced but have: %v", err)
	}
	if apiErr.Status != 400 {
		t.Errorf("Expected status 400 but have: %d", apiErr.Status)
	}
	if apiErr.Title != "Invalid Resource" || apiErr.Detail != "Please provide a valid email address." {
		t.Errorf("Expected the problem document fields to be captured but have: %+v", apiErr)
	}
}
