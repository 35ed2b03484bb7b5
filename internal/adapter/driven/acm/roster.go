package acm

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/mgrist/acm-roster/internal/domain/model"
)

// Column order of the roster export.
const (
	colMemberNumber = iota
	colFirstName
	colLastName
	colEmail
	colAffiliation
	colMemberType
	colDateAdded
	colExpireDate
	colActiveMember

	rosterColumns
)

// dateLayouts are the date renderings the panel has been seen to use. ISO
// comes first; the others are ColdFusion defaults.
var dateLayouts = []string{
	"2006-01-02",
	"1/2/2006",
	"01/02/2006",
	"2006-01-02 15:04:05",
	"January, 02 2006 15:04:05",
	"Jan 2, 2006",
}

// ParseRoster decodes a roster export. The first row is the header and is
// always discarded. Rows with fewer than nine columns or an unreadable date
// are skipped. It returns model.ErrParse when no usable row remains.
func ParseRoster(r io.Reader) ([]model.Member, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	members := []model.Member{}
	var rows, skipped int
	header := true

	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: reading csv: %w", model.ErrParse, err)
		}

		if header {
			header = false
			continue
		}
		rows++

		member, err := memberFromRecord(record)
		if err != nil {
			skipped++
			slog.Debug("roster row skipped", "row", rows, "reason", err)
			continue
		}
		members = append(members, member)
	}

	if len(members) == 0 {
		return nil, fmt.Errorf("%w: no usable records in %d data rows", model.ErrParse, rows)
	}

	if skipped > 0 {
		slog.Warn("roster rows skipped", "skipped", skipped, "rows", rows)
	}
	return members, nil
}

// memberFromRecord maps one CSV record to a Member.
func memberFromRecord(record []string) (model.Member, error) {
	if len(record) < rosterColumns {
		return model.Member{}, fmt.Errorf("expected %d columns, got %d", rosterColumns, len(record))
	}

	field := func(i int) string { return strings.TrimSpace(record[i]) }

	number := field(colMemberNumber)
	if number == "" {
		return model.Member{}, errors.New("empty member number")
	}

	added, err := parseDate(field(colDateAdded))
	if err != nil {
		return model.Member{}, fmt.Errorf("date added: %w", err)
	}
	expires, err := parseDate(field(colExpireDate))
	if err != nil {
		return model.Member{}, fmt.Errorf("expire date: %w", err)
	}

	return model.Member{
		MemberNumber: number,
		FirstName:    field(colFirstName),
		LastName:     field(colLastName),
		Email:        field(colEmail),
		Affiliation:  field(colAffiliation),
		Type:         model.MemberType(field(colMemberType)),
		DateAdded:    added,
		ExpireDate:   expires,
		Subscription: model.Subscription(field(colActiveMember)),
	}, nil
}

// parseDate parses a calendar date in the local zone. Empty input yields the
// zero time.
func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return model.Today(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}
