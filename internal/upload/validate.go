package upload

import (
	"regexp"

	"github.com/tepihealth/ucsuploader/internal/dedup"
	"github.com/tepihealth/ucsuploader/internal/model"
)

// ctcNumberPattern is the fixed CTC client identifier format:
// two digits, two digits, four digits, six digits, dash-separated.
var ctcNumberPattern = regexp.MustCompile(`^\d{2}-\d{2}-\d{4}-\d{6}$`)

// Rejection reasons reported to uploaders. The wording is part of the API.
const (
	ReasonInvalidCTC           = "Invalid CTC number"
	ReasonDuplicateClientCTC   = "Duplicate CTC number in clients file"
	ReasonNoIndexCTCContacts   = "No matching index client CTC number in contacts file"
	ReasonNoIndexCTCResults    = "No matching index client CTC number in results file"
	ReasonDuplicateElicitation = "Duplicate elicitation number, already uploaded!"
	ReasonElicitationHasResult = "Elicitation number has already been registered with results."
)

// Validate decides whether a row is accepted. It returns an empty string to
// accept, or the single rejection reason otherwise. Checks run in a fixed
// precedence: registry existence, then CTC format, then duplicate /
// has-results, so the reported reason is deterministic when a row violates
// more than one rule. Pure: neither the row nor the registry is mutated.
func Validate(t model.UploadType, row *model.Row, reg *dedup.Registry) string {
	switch t {
	case model.TypeClients:
		ctc := row.CTCNumber()
		if !ctcNumberPattern.MatchString(ctc) {
			return ReasonInvalidCTC
		}
		if reg.HasCTC(ctc) {
			return ReasonDuplicateClientCTC
		}

	case model.TypeContacts:
		if !reg.HasCTC(row.IndexCTCNumber()) {
			return ReasonNoIndexCTCContacts
		}
		if !ctcNumberPattern.MatchString(row.IndexCTCNumber()) {
			return ReasonInvalidCTC
		}
		if reg.HasElicitation(row.ElicitationNumber()) {
			return ReasonDuplicateElicitation
		}

	case model.TypeResults:
		if !reg.HasCTC(row.IndexCTCNumber()) {
			return ReasonNoIndexCTCResults
		}
		if !ctcNumberPattern.MatchString(row.IndexCTCNumber()) {
			return ReasonInvalidCTC
		}
		if reg.HasResults(row.ElicitationNumber()) {
			return ReasonElicitationHasResult
		}
	}
	return ""
}
