package sync

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/carlmjohnson/requests"
	"github.com/tidwall/gjson"
)

// AudienceFetcherAndUpdater handles all audience API operations.
// It embeds *SyncContext for shared sync configuration.
type AudienceFetcherAndUpdater struct {
	*SyncContext
}

// AudienceAPI is the surface of the audience service the run loop needs.
type AudienceAPI interface {
	FetchAudience(ctx context.Context) (Audience, error)
	UpsertMember(up MemberUpsert, ctx context.Context) error
}

// Audience describes the target list as returned by the preflight lookup.
type Audience struct {
	ID          string
	Name        string
	MemberCount int
}

// APIError is the problem document the audience API returns on failure.
type APIError struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail"`
}

func (e APIError) Error() string {
	return fmt.Sprintf("%s (status %d): %s", e.Title, e.Status, e.Detail)
}

// AudienceAPIBuilder returns a new requests.Builder configured for the
// audience API, with Basic authentication and the shared timeout applied.
func (a AudienceFetcherAndUpdater) AudienceAPIBuilder() *requests.Builder {
	result := requests.
		URL("https://" + a.Config.API.APIHost() + "/").
		Client(&http.Client{Timeout: HTTPRequestTimeout}).
		BasicAuth(a.Config.API.Username, a.Config.API.Key)
	if a.Transport != nil {
		result = result.Transport(a.Transport)
	} else if a.RecordRequests {
		result = result.Transport(requests.Record(nil, fmt.Sprintf("testdata/.requests/%s", a.Config.API.ListID)))
	}
	return result
}

// FetchAudience is the preflight call: it confirms the configured list
// exists and is reachable before any row is processed. Failure here is a
// ConfigurationError and aborts the run.
func (a AudienceFetcherAndUpdater) FetchAudience(ctx context.Context) (Audience, error) {
	var result Audience
	apiError := APIError{}

	var body string
	err := a.AudienceAPIBuilder().
		Pathf("lists/%s", a.Config.API.ListID).
		ToString(&body).
		ErrorJSON(&apiError).
		Fetch(ctx)
	if err != nil {
		if apiError.Status != 0 {
			log.Printf("Audience API Error: %+v", apiError)
			err = apiError
		}
		return result, &ConfigurationError{Cause: fmt.Errorf("audience %s lookup failed %w", a.Config.API.ListID, err)}
	}

	data := gjson.Parse(body)
	name := data.Get("name")
	if !gjson.Valid(body) || !name.Exists() {
		log.Printf("Invalid Audience Response:\n%s", body)
		return result, &ConfigurationError{Cause: fmt.Errorf("audience %s lookup returned no list name", a.Config.API.ListID)}
	}
	result.ID = data.Get("id").String()
	result.Name = name.String()
	result.MemberCount = int(data.Get("stats.member_count").Int())

	return result, nil
}

// UpsertMember PUTs one member payload to its identifier path. The API
// treats PUT-to-this-path as create-if-absent, else update, so no prior
// existence check is needed. Only a 200 response counts as success and
// each member gets exactly one attempt.
func (a AudienceFetcherAndUpdater) UpsertMember(up MemberUpsert, ctx context.Context) error {
	apiError := APIError{}

	// only a 200 is a success; on anything else parse the problem document
	err := a.AudienceAPIBuilder().
		Pathf("lists/%s/members/%s", a.Config.API.ListID, up.ID).
		Method(http.MethodPut).
		BodyBytes([]byte(up.Payload)).
		ContentType("application/json").
		AddValidator(requests.ValidatorHandler(requests.CheckStatus(http.StatusOK), requests.ToJSON(&apiError))).
		Fetch(ctx)
	if err != nil {
		if apiError.Status != 0 {
			return apiError
		}
		return err
	}

	return nil
}
