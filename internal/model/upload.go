package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// UploadType identifies which surveillance dataset a CSV file carries,
// derived from the fixed-format file name `<date>_<type>_...`.
type UploadType string

const (
	TypeClients  UploadType = "clients"
	TypeContacts UploadType = "contacts"
	TypeResults  UploadType = "results"
)

// ParseUploadType extracts the upload type from an uploaded file name.
// An unrecognized type is an error, never a silent default.
func ParseUploadType(filename string) (UploadType, error) {
	parts := strings.Split(filename, "_")
	if len(parts) < 2 {
		return "", fmt.Errorf("invalid upload file name %q: expected <date>_<type>_...", filename)
	}
	switch t := UploadType(parts[1]); t {
	case TypeClients, TypeContacts, TypeResults:
		return t, nil
	default:
		return "", fmt.Errorf("invalid upload type %q in file name %q", parts[1], filename)
	}
}

// UploadDir returns the subdirectory accepted rows of this type are written to.
func (t UploadType) UploadDir() (string, error) {
	switch t {
	case TypeClients:
		return "index_uploads", nil
	case TypeContacts:
		return "contacts_uploads", nil
	case TypeResults:
		return "results_uploads", nil
	default:
		return "", fmt.Errorf("invalid upload type %q", string(t))
	}
}

// Column positions within a raw CSV row, per upload type. The feed has no
// header row; the positions are part of the upstream file contract.
const (
	colClientCTC   = 0  // clients: CTC number
	colIndexCTC    = 12 // contacts/results: index client CTC number
	colElicitation = 13 // contacts/results: elicitation number
)

// Row is one parsed CSV line: the verbatim positional fields, plus the
// submitter identity columns the pipeline appends to accepted rows.
type Row struct {
	Fields []string

	ProviderID string
	Team       string
	TeamID     string
	LocationID string
}

func (r *Row) field(i int) string {
	if i < 0 || i >= len(r.Fields) {
		return ""
	}
	return r.Fields[i]
}

// CTCNumber returns the client CTC number of a clients-file row.
func (r *Row) CTCNumber() string { return r.field(colClientCTC) }

// IndexCTCNumber returns the index client CTC number of a contacts or
// results row.
func (r *Row) IndexCTCNumber() string { return r.field(colIndexCTC) }

// ElicitationNumber returns the elicitation number of a contacts or
// results row.
func (r *Row) ElicitationNumber() string { return r.field(colElicitation) }

// OutputRecord returns the on-disk representation of an accepted row: the
// input columns verbatim, followed by the four identity columns.
func (r *Row) OutputRecord() []string {
	out := make([]string, 0, len(r.Fields)+4)
	out = append(out, r.Fields...)
	return append(out, r.ProviderID, r.Team, r.TeamID, r.LocationID)
}

// RejectedRow is a row refused by validation, with the reason reported to
// the uploader.
type RejectedRow struct {
	Fields []string `json:"fields"`
	Reason string   `json:"rejectionReason"`
}

// UploadStats is one immutable record per completed upload.
type UploadStats struct {
	ID               uuid.UUID
	UserBaseEntityID string
	Username         string
	UploadedFile     string
	UploadedFileType UploadType
	ImportedRows     int
	RejectedRows     int
	UploadDate       time.Time
}

// UserStats aggregates a submitter's upload history for the response payload.
type UserStats struct {
	ClientFiles     int        `json:"clientFiles"`
	ContactFiles    int        `json:"contactFiles"`
	ResultFiles     int        `json:"resultFiles"`
	AcceptedRecords int64      `json:"acceptedRecords"`
	RejectedRecords int64      `json:"rejectedRecords"`
	LastUploadDate  *time.Time `json:"lastUploadDate"`
}

// RegionStats aggregates upload activity across all submitters of a region.
type RegionStats struct {
	Region          string `json:"region"`
	ClientFiles     int    `json:"clientFiles"`
	ContactFiles    int    `json:"contactFiles"`
	ResultFiles     int    `json:"resultFiles"`
	AcceptedRecords int64  `json:"acceptedRecords"`
	RejectedRecords int64  `json:"rejectedRecords"`
}
