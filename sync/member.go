package sync

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Merge tags used in upsert payloads. These are the audience-side names
// for the custom per-member attributes beyond email and status.
const (
	MergeTagFirstName = "FNAME"
	MergeTagLastName  = "LNAME"
	MergeTagTitle     = "TITLE"
	MergeTagAgreed    = "AGREED"
)

// MemberID returns the lowercase hex md5 digest of the lowercased, trimmed
// email address. It is a deterministic function of the email only, so the
// same address always maps to the same remote member — this digest is the
// join key between the source table and the audience.
func MemberID(email string) string {
	sum := md5.Sum([]byte(strings.TrimSpace(strings.ToLower(email))))
	return hex.EncodeToString(sum[:])
}

// MemberUpsert is one transformed row ready to send: the path identifier
// and the serialized payload body.
type MemberUpsert struct {
	ID      string
	Payload string
}

// BuildMemberUpsert converts one source row into its wire representation.
// It returns ok=false when the row has no email address, in which case no
// identifier is computed and no payload is built.
func BuildMemberUpsert(record SourceRecord, config Config) (MemberUpsert, bool, error) {
	var result MemberUpsert

	email, hasEmail := emailValue(record)
	if !hasEmail {
		return result, false, nil
	}

	result.ID = MemberID(email)

	payload, err := sjson.Set("", "email_address", email)
	if err == nil {
		payload, err = sjson.Set(payload, "status_if_new", strings.ToLower(config.API.StatusIfNew))
	}
	merges := []struct {
		tag   string
		field Field
	}{
		{MergeTagFirstName, FieldFirstName},
		{MergeTagLastName, FieldLastName},
		{MergeTagTitle, FieldTitle},
		{MergeTagAgreed, FieldAgreed},
	}
	for _, m := range merges {
		if err != nil {
			break
		}
		// NULL column values pass through as JSON null, no type coercion
		payload, err = sjson.Set(payload, "merge_fields."+m.tag, record[m.field])
	}
	if err != nil {
		return result, true, fmt.Errorf("failed to build payload for member %s %w", result.ID, err)
	}

	payload, err = applyMergeFieldTransforms(payload, config.MergeFieldTransforms)
	if err != nil {
		return result, true, err
	}

	result.Payload = payload
	return result, true, nil
}

// emailValue extracts the trimmed email address from a row. A NULL column
// or a value that trims to the empty string counts as no email.
func emailValue(record SourceRecord) (string, bool) {
	v, exists := record[FieldEmail]
	if !exists || v == nil {
		return "", false
	}
	s := strings.TrimSpace(fmt.Sprintf("%v", v))
	if s == "" {
		return "", false
	}
	return s, true
}

// applyMergeFieldTransforms rewrites merge field values through the
// transforms registered by Init, using gjson's modifier syntax.
func applyMergeFieldTransforms(payload string, transforms map[string]string) (string, error) {
	if len(transforms) == 0 {
		return payload, nil
	}
	mustBeInitialised()
	var err error
	for tag, transform := range transforms {
		path := "merge_fields." + tag
		res := gjson.Get(payload, fmt.Sprintf("%s|@%s", path, transform))
		if !res.Exists() {
			payload, err = sjson.Set(payload, path, nil)
		} else {
			payload, err = sjson.SetRaw(payload, path, res.Raw)
		}
		if err != nil {
			return payload, fmt.Errorf("failed to apply transform %q to %s %w", transform, tag, err)
		}
	}
	return payload, nil
}
