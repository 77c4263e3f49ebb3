// ABOUTME: Table-driven field mapping between local contacts and provider fields
// ABOUTME: Applies transforms and validates required fields before any network call
package crm

import (
	"strings"
	"time"

	"github.com/harperreed/amc/models"
)

// Local field names addressable from a FieldMapping.
const (
	FieldName             = "name"
	FieldCompany          = "company"
	FieldTitle            = "title"
	FieldCity             = "city"
	FieldCountry          = "country"
	FieldEmail            = "email"
	FieldPhone            = "phone"
	FieldFirstMetLocation = "first_met_location"
	FieldFirstMetDate     = "first_met_date"
	FieldNetworkingTags   = "networking_tags"
	FieldNetworkingNotes  = "networking_notes"
)

// MapFields builds the provider property map for a contact from the
// connection's mapping table. A missing required field aborts with a
// ValidationError; optional empty fields are simply omitted.
func MapFields(contact *models.Contact, mappings []models.FieldMapping) (map[string]string, error) {
	out := make(map[string]string, len(mappings))

	for _, m := range mappings {
		value := localFieldValue(contact, m.LocalField)
		if value == "" {
			if m.IsRequired {
				return nil, &ValidationError{Field: m.LocalField}
			}
			continue
		}
		out[m.CRMField] = applyTransform(value, m.Transform)
	}

	return out, nil
}

func localFieldValue(c *models.Contact, field string) string {
	switch field {
	case FieldName:
		return c.Name
	case FieldCompany:
		return c.Company
	case FieldTitle:
		return c.Title
	case FieldCity:
		return c.City
	case FieldCountry:
		return c.Country
	case FieldEmail:
		return c.PrimaryEmail()
	case FieldPhone:
		return c.PrimaryPhone()
	case FieldFirstMetLocation:
		return c.FirstMetLocation
	case FieldFirstMetDate:
		if c.FirstMetDate == nil {
			return ""
		}
		return c.FirstMetDate.Format(time.RFC3339)
	case FieldNetworkingTags:
		return strings.Join(c.Tags, ",")
	case FieldNetworkingNotes:
		return c.Notes
	default:
		return ""
	}
}

func applyTransform(value string, transform models.Transform) string {
	switch transform {
	case models.TransformUppercase:
		return strings.ToUpper(value)
	case models.TransformLowercase:
		return strings.ToLower(value)
	case models.TransformPhoneFormat:
		return formatPhone(value)
	default:
		return value
	}
}

// formatPhone strips everything but digits and a leading plus sign.
func formatPhone(value string) string {
	var b strings.Builder
	for i, r := range value {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		} else if r == '+' && i == 0 {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// DefaultHubSpotMappings is the stock mapping table for HubSpot
// connections, including the namespaced custom-field family for data the
// provider has no native field for.
func DefaultHubSpotMappings() []models.FieldMapping {
	return []models.FieldMapping{
		{LocalField: FieldName, CRMField: "firstname", IsRequired: true},
		{LocalField: FieldEmail, CRMField: "email", IsRequired: true, Transform: models.TransformLowercase},
		{LocalField: FieldPhone, CRMField: "phone", Transform: models.TransformPhoneFormat},
		{LocalField: FieldCompany, CRMField: "company"},
		{LocalField: FieldTitle, CRMField: "jobtitle"},
		{LocalField: FieldCity, CRMField: "city"},
		{LocalField: FieldCountry, CRMField: "country"},
		{LocalField: FieldFirstMetLocation, CRMField: "amc_first_met_location"},
		{LocalField: FieldFirstMetDate, CRMField: "amc_first_met_date"},
		{LocalField: FieldNetworkingTags, CRMField: "amc_networking_tags"},
		{LocalField: FieldNetworkingNotes, CRMField: "amc_networking_notes"},
	}
}

// ReverseMap translates provider fields back to local field names using
// the same mapping table. Unknown provider fields are dropped.
func ReverseMap(fields map[string]string, mappings []models.FieldMapping) map[string]string {
	local := make(map[string]string, len(fields))
	for _, m := range mappings {
		if v, ok := fields[m.CRMField]; ok {
			local[m.LocalField] = v
		}
	}
	return local
}
