package store

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"imageref/internal/registration/models"
)

// Ledger column names, in canonical order.
const (
	ColChildName      = "Child Name"
	ColParentName     = "Parent Name"
	ColDateOfBirth    = "Date of Birth"
	ColAge            = "Age"
	ColGender         = "Gender"
	ColEducationBoard = "Education Board"
	ColGrade          = "Grade"
	ColSection        = "Section"
	ColCountryCode    = "Country Code"
	ColPhoneNumber    = "Phone Number"
	ColEmail          = "Email"
	ColRegistrationID = "Registration ID"
	ColStatus         = "Submission-Status"
)

// Columns is the fixed column set every ledger must carry.
var Columns = []string{
	ColChildName, ColParentName, ColDateOfBirth, ColAge, ColGender, ColEducationBoard,
	ColGrade, ColSection, ColCountryCode, ColPhoneNumber, ColEmail, ColRegistrationID, ColStatus,
}

var knownColumns = func() map[string]bool {
	m := make(map[string]bool, len(Columns))
	for _, c := range Columns {
		m[c] = true
	}
	return m
}()

const utf8BOM = "\ufeff"

// Decode parses a ledger and returns its records and header order.
// A missing required column, a ragged row or a non-numeric age is an error.
func Decode(r io.Reader) ([]models.Record, []string, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil, fmt.Errorf("empty ledger: missing header")
	}
	if err != nil {
		return nil, nil, fmt.Errorf("read header: %w", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], utf8BOM)
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.TrimSpace(name)
		header[i] = name
		if _, dup := index[name]; dup {
			return nil, nil, fmt.Errorf("duplicate column %q", name)
		}
		index[name] = i
	}
	for _, c := range Columns {
		if _, ok := index[c]; !ok {
			return nil, nil, fmt.Errorf("missing column %q", c)
		}
	}

	var records []models.Record
	for line := 2; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("read row: %w", err)
		}
		rec, err := decodeRow(header, index, row)
		if err != nil {
			return nil, nil, fmt.Errorf("line %d: %w", line, err)
		}
		records = append(records, rec)
	}
	return records, header, nil
}

func decodeRow(header []string, index map[string]int, row []string) (models.Record, error) {
	get := func(col string) string { return row[index[col]] }

	age, err := parseAge(get(ColAge))
	if err != nil {
		return models.Record{}, err
	}

	rec := models.Record{
		ChildName:      get(ColChildName),
		ParentName:     get(ColParentName),
		DateOfBirth:    get(ColDateOfBirth),
		Age:            age,
		Gender:         get(ColGender),
		EducationBoard: get(ColEducationBoard),
		Grade:          get(ColGrade),
		Section:        get(ColSection),
		CountryCode:    get(ColCountryCode),
		PhoneNumber:    get(ColPhoneNumber),
		Email:          get(ColEmail),
		RegistrationID: get(ColRegistrationID),
		Status:         models.Status(get(ColStatus)),
	}
	if cell := get(ColAge); cell != formatAge(age) {
		rec.AgeCell = cell
	}
	for i, name := range header {
		if knownColumns[name] {
			continue
		}
		if rec.Extra == nil {
			rec.Extra = make(map[string]string)
		}
		rec.Extra[name] = row[i]
	}
	return rec, nil
}

// Encode writes records using header as the column order. A nil header
// means the canonical columns followed by any extra columns, sorted.
func Encode(w io.Writer, header []string, records []models.Record) error {
	if header == nil {
		header = DefaultHeader(records)
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	row := make([]string, len(header))
	for _, rec := range records {
		for i, col := range header {
			row[i] = field(rec, col)
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// DefaultHeader is the canonical column set plus every extra column found in
// records, sorted by name.
func DefaultHeader(records []models.Record) []string {
	header := append([]string(nil), Columns...)
	seen := map[string]bool{}
	var extra []string
	for _, r := range records {
		for k := range r.Extra {
			if !seen[k] && !knownColumns[k] {
				seen[k] = true
				extra = append(extra, k)
			}
		}
	}
	sort.Strings(extra)
	return append(header, extra...)
}

func field(r models.Record, col string) string {
	switch col {
	case ColChildName:
		return r.ChildName
	case ColParentName:
		return r.ParentName
	case ColDateOfBirth:
		return r.DateOfBirth
	case ColAge:
		if r.AgeCell != "" {
			if age, err := parseAge(r.AgeCell); err == nil && age == r.Age {
				return r.AgeCell
			}
		}
		return formatAge(r.Age)
	case ColGender:
		return r.Gender
	case ColEducationBoard:
		return r.EducationBoard
	case ColGrade:
		return r.Grade
	case ColSection:
		return r.Section
	case ColCountryCode:
		return r.CountryCode
	case ColPhoneNumber:
		return r.PhoneNumber
	case ColEmail:
		return r.Email
	case ColRegistrationID:
		return r.RegistrationID
	case ColStatus:
		return string(r.Status)
	default:
		return r.Extra[col]
	}
}

func parseAge(cell string) (int, error) {
	raw := strings.TrimSpace(cell)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("age %q is not a number", raw)
	}
	return n, nil
}

func formatAge(age int) string {
	if age == 0 {
		return ""
	}
	return strconv.Itoa(age)
}
