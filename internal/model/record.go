package model

import (
	"strings"
	"time"
)

// NormalizedRecord is one civic-data fact (a permit, license, inspection, or
// job posting) reduced to the common schema by the upstream normalization
// stage. Records are immutable once produced; the engine only reads them.
//
// Dataset and Type are free-text, not enums — Chicago alone ships dozens of
// license codes and permit subtypes, so all downstream matching is
// case-insensitive substring matching.
type NormalizedRecord struct {
	ID           string            `json:"id,omitempty"`
	City         string            `json:"city"`
	Dataset      string            `json:"dataset"`
	Address      string            `json:"address"`
	Lat          *float64          `json:"lat,omitempty"`
	Lon          *float64          `json:"lon,omitempty"`
	BusinessName string            `json:"business_name,omitempty"`
	Type         string            `json:"type,omitempty"`
	Status       string            `json:"status,omitempty"`
	Description  string            `json:"description,omitempty"`
	EventDate    *time.Time        `json:"event_date,omitempty"`
	Payload      map[string]string `json:"payload,omitempty"`
}

// HasCoords reports whether both latitude and longitude are present.
func (r *NormalizedRecord) HasCoords() bool {
	return r.Lat != nil && r.Lon != nil
}

// AgeDays returns the record's age in whole days relative to now. The second
// return is false when the event date is missing — a missing date means
// "cannot determine recency", never "most recent". A negative age means the
// event date is in the future.
func (r *NormalizedRecord) AgeDays(now time.Time) (int, bool) {
	if r.EventDate == nil {
		return 0, false
	}
	return int(now.Sub(*r.EventDate).Hours() / 24), true
}

// Text concatenates the descriptive fields for classification. Business name
// first, then type and description, so short oracle prompts lead with the
// most identifying token.
func (r *NormalizedRecord) Text() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{r.BusinessName, r.Type, r.Description} {
		if strings.TrimSpace(p) != "" {
			parts = append(parts, strings.TrimSpace(p))
		}
	}
	return strings.Join(parts, ". ")
}

// contactPhoneKeys and contactEmailKeys are the payload field names seen
// across civic open-data portals. Payload probing is isolated here so
// dataset-specific key names never leak into scoring code.
var (
	contactPhoneKeys = []string{"phone", "phone_number", "contact_phone", "business_phone", "applicant_phone"}
	contactEmailKeys = []string{"email", "contact_email", "business_email", "applicant_email"}
)

// Contact extracts a phone and email from the raw payload, if present.
// Either value may be empty.
func (r *NormalizedRecord) Contact() (phone, email string) {
	if r.Payload == nil {
		return "", ""
	}
	for _, k := range contactPhoneKeys {
		if v := strings.TrimSpace(r.Payload[k]); v != "" {
			phone = v
			break
		}
	}
	for _, k := range contactEmailKeys {
		if v := strings.TrimSpace(r.Payload[k]); v != "" {
			email = v
			break
		}
	}
	return phone, email
}

// AddressGroup accumulates the records judged to be at the same physical
// location. Groups are ephemeral, rebuilt on every run. Invariant: every
// record matches the group's first record within the matcher tolerance, and
// a record belongs to exactly one group.
type AddressGroup struct {
	Address string             `json:"address"`
	Records []NormalizedRecord `json:"records"`
}

// Name returns the first non-empty business name in the group.
func (g *AddressGroup) Name() string {
	for i := range g.Records {
		if n := strings.TrimSpace(g.Records[i].BusinessName); n != "" {
			return n
		}
	}
	return ""
}

// Subset returns the group's records whose dataset or type contains any of
// the given fragments (case-insensitive).
func (g *AddressGroup) Subset(fragments ...string) []NormalizedRecord {
	var out []NormalizedRecord
	for i := range g.Records {
		hay := strings.ToLower(g.Records[i].Dataset + " " + g.Records[i].Type)
		for _, f := range fragments {
			if strings.Contains(hay, strings.ToLower(f)) {
				out = append(out, g.Records[i])
				break
			}
		}
	}
	return out
}
