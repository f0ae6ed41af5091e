// Package listing defines core types shared across pipeline subsystems.
package listing

import (
	"time"
)

// FieldKind identifies one extractable field on a business listing.
// The set is closed: extraction strategies are registered per kind.
type FieldKind string

// Field kinds extracted from listing pages.
const (
	FieldName            FieldKind = "name"
	FieldAddress         FieldKind = "address"
	FieldPostalCode      FieldKind = "postal_code"
	FieldPhone           FieldKind = "phone"
	FieldEmail           FieldKind = "email"
	FieldWebsite         FieldKind = "website"
	FieldCategory        FieldKind = "category"
	FieldCorporateNumber FieldKind = "corporate_number"
	FieldRepresentative  FieldKind = "representative"
	FieldEstablishedDate FieldKind = "established_date"
	FieldEmployeeCount   FieldKind = "employee_count"
	FieldAnnualSales     FieldKind = "annual_sales"
	FieldNotes           FieldKind = "notes"
)

// AllFieldKinds lists every field kind in a stable order, used when
// iterating extraction strategies and building exports.
var AllFieldKinds = []FieldKind{
	FieldName,
	FieldAddress,
	FieldPostalCode,
	FieldPhone,
	FieldEmail,
	FieldWebsite,
	FieldCategory,
	FieldCorporateNumber,
	FieldRepresentative,
	FieldEstablishedDate,
	FieldEmployeeCount,
	FieldAnnualSales,
	FieldNotes,
}

// FetchResult is the successful outcome of fetching one URL.
type FetchResult struct {
	URL         string
	FinalURL    string
	StatusCode  int
	ContentType string
	Body        []byte
	Attempts    int
	Duration    time.Duration
}

// Candidate is an in-memory record produced by the extractor before it
// has been accepted by the store. Fields hold normalized values; an
// empty string means the field was absent on the page. RawSnapshot keeps
// the pre-normalization values for auditing and reprocessing.
type Candidate struct {
	IdentityKey     string
	Name            string
	Address         string
	PostalCode      string
	Phone           string
	Email           string
	Website         string
	Category        string
	CorporateNumber string
	Representative  string
	EstablishedDate string
	EmployeeCount   string
	AnnualSales     string
	Notes           string
	SourceURL       string
	RawSnapshot     map[FieldKind]string
}

// Field returns the normalized value for the given kind.
func (c Candidate) Field(kind FieldKind) string {
	switch kind {
	case FieldName:
		return c.Name
	case FieldAddress:
		return c.Address
	case FieldPostalCode:
		return c.PostalCode
	case FieldPhone:
		return c.Phone
	case FieldEmail:
		return c.Email
	case FieldWebsite:
		return c.Website
	case FieldCategory:
		return c.Category
	case FieldCorporateNumber:
		return c.CorporateNumber
	case FieldRepresentative:
		return c.Representative
	case FieldEstablishedDate:
		return c.EstablishedDate
	case FieldEmployeeCount:
		return c.EmployeeCount
	case FieldAnnualSales:
		return c.AnnualSales
	case FieldNotes:
		return c.Notes
	default:
		return ""
	}
}

// SetField assigns the normalized value for the given kind.
func (c *Candidate) SetField(kind FieldKind, value string) {
	switch kind {
	case FieldName:
		c.Name = value
	case FieldAddress:
		c.Address = value
	case FieldPostalCode:
		c.PostalCode = value
	case FieldPhone:
		c.Phone = value
	case FieldEmail:
		c.Email = value
	case FieldWebsite:
		c.Website = value
	case FieldCategory:
		c.Category = value
	case FieldCorporateNumber:
		c.CorporateNumber = value
	case FieldRepresentative:
		c.Representative = value
	case FieldEstablishedDate:
		c.EstablishedDate = value
	case FieldEmployeeCount:
		c.EmployeeCount = value
	case FieldAnnualSales:
		c.AnnualSales = value
	case FieldNotes:
		c.Notes = value
	}
}

// BusinessRecord is the canonical persisted unit of data. At most one
// record exists per IdentityKey.
type BusinessRecord struct {
	IdentityKey     string
	Name            string
	Address         string
	PostalCode      string
	Phone           string
	Email           string
	Website         string
	Category        string
	CorporateNumber string
	Representative  string
	EstablishedDate string
	EmployeeCount   string
	AnnualSales     string
	Notes           string
	SourceURL       string
	FirstSeenAt     time.Time
	LastSeenAt      time.Time
	RawSnapshot     map[FieldKind]string
}

// Field returns the stored value for the given kind.
func (r BusinessRecord) Field(kind FieldKind) string {
	switch kind {
	case FieldName:
		return r.Name
	case FieldAddress:
		return r.Address
	case FieldPostalCode:
		return r.PostalCode
	case FieldPhone:
		return r.Phone
	case FieldEmail:
		return r.Email
	case FieldWebsite:
		return r.Website
	case FieldCategory:
		return r.Category
	case FieldCorporateNumber:
		return r.CorporateNumber
	case FieldRepresentative:
		return r.Representative
	case FieldEstablishedDate:
		return r.EstablishedDate
	case FieldEmployeeCount:
		return r.EmployeeCount
	case FieldAnnualSales:
		return r.AnnualSales
	case FieldNotes:
		return r.Notes
	default:
		return ""
	}
}

// SetField assigns the stored value for the given kind.
func (r *BusinessRecord) SetField(kind FieldKind, value string) {
	switch kind {
	case FieldName:
		r.Name = value
	case FieldAddress:
		r.Address = value
	case FieldPostalCode:
		r.PostalCode = value
	case FieldPhone:
		r.Phone = value
	case FieldEmail:
		r.Email = value
	case FieldWebsite:
		r.Website = value
	case FieldCategory:
		r.Category = value
	case FieldCorporateNumber:
		r.CorporateNumber = value
	case FieldRepresentative:
		r.Representative = value
	case FieldEstablishedDate:
		r.EstablishedDate = value
	case FieldEmployeeCount:
		r.EmployeeCount = value
	case FieldAnnualSales:
		r.AnnualSales = value
	case FieldNotes:
		r.Notes = value
	}
}

// UpsertOutcome classifies what an upsert did to the stored row.
type UpsertOutcome string

// Upsert outcomes reported up to the run summary.
const (
	UpsertInserted      UpsertOutcome = "inserted"
	UpsertMergedChanged UpsertOutcome = "merged"
	UpsertMergedNoop    UpsertOutcome = "merged_noop"
)

// URLStatus is the terminal state of one URL's pipeline chain.
type URLStatus string

// Per-URL chain outcomes.
const (
	URLSucceeded        URLStatus = "succeeded"
	URLFetchFailed      URLStatus = "fetch_failed"
	URLExtractionFailed URLStatus = "extraction_failed"
	URLIdentityRejected URLStatus = "identity_rejected"
	URLStoreFailed      URLStatus = "store_failed"
)

// URLOutcome records how a single URL fared, for logging and reporting.
type URLOutcome struct {
	URL         string
	Status      URLStatus
	Outcome     UpsertOutcome
	IdentityKey string
	Attempts    int
	Err         string
}

// RunSummary aggregates per-URL outcomes for one pipeline run.
type RunSummary struct {
	RunID            string
	StartedAt        time.Time
	FinishedAt       time.Time
	Fetched          int
	FetchFailed      int
	Extracted        int
	ExtractionFailed int
	Inserted         int
	Merged           int
	IdentityRejected int
	StoreFailed      int
	Outcomes         []URLOutcome
}

// ListFilter narrows the store read API. Zero value means no filtering.
type ListFilter struct {
	NameContains string
	PostalCode   string
	Limit        int
}
