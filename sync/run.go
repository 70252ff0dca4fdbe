package sync

import (
	"context"
	"log"
)

// RunResult tallies per-row outcomes across one run. Exactly one counter is
// incremented per source row, so Succeeded+Failed+Skipped always equals the
// number of rows read. It is the sole output of a run and is never
// persisted.
type RunResult struct {
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}

// Total returns the number of rows accounted for.
func (r RunResult) Total() int {
	return r.Succeeded + r.Failed + r.Skipped
}

// RunParams contains the collaborators for one run.
type RunParams struct {
	Config   Config
	Fetcher  SourceFetcher
	Audience AudienceAPI
	Context  context.Context
}

// Run executes one full synchronization: preflight, bulk read, then one
// upsert per row strictly in input order. Fatal conditions (preflight
// failure, connection failure, empty result) abort with nothing written;
// per-row upsert failures only increment the failed counter.
func Run(params RunParams) (RunResult, error) {
	mustBeInitialised()

	var result RunResult

	audience, err := params.Audience.FetchAudience(params.Context)
	if err != nil {
		return result, err
	}
	log.Printf("Syncing to audience %q (%s)", audience.Name, params.Config.API.ListID)

	records, err := params.Fetcher.FetchSourceRecords(params.Context)
	if err != nil {
		return result, err
	}

	return UpsertSourceRecords(records, params.Audience, params.Config, params.Context), nil
}

// UpsertSourceRecords transforms and upserts each row, tallying outcomes.
// A row without an email address is skipped before any identifier or
// payload is built and makes no network call. A failed upsert is logged
// and the run continues with the next row.
func UpsertSourceRecords(records []SourceRecord, audience AudienceAPI, config Config, ctx context.Context) RunResult {
	var result RunResult

	for _, record := range records {
		up, ok, err := BuildMemberUpsert(record, config)
		if !ok {
			result.Skipped++
			continue
		}
		if err != nil {
			// the row had an email address, so it is not a skip; it counts
			// as failed even though it never reached the network
			log.Printf("Transform failed for member %s: %v", up.ID, err)
			result.Failed++
			continue
		}
		if err := audience.UpsertMember(up, ctx); err != nil {
			log.Printf("Upsert failed for member %s: %v", up.ID, err)
			result.Failed++
			continue
		}
		result.Succeeded++
	}

	return result
}
