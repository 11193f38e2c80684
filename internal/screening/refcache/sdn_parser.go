package refcache

import (
	"bytes"
	"encoding/csv"
	"errors"
	"io"
	"regexp"
	"strings"

	"github.com/sentinelrisk/screening/internal/screening"
)

// SDN CSV column layout (treasury.gov sdn.csv).
const (
	sdnColID = iota
	sdnColName
	sdnColType
	sdnColProgram
	sdnColTitle
	sdnColCallSign
	sdnColVessType
	sdnColTonnage
	sdnColGRT
	sdnColVessFlag
	sdnColVessOwner
	sdnColRemarks
	sdnColCount
)

// sdnNull is the placeholder OFAC uses for empty fields.
const sdnNull = "-0-"

var aliasPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)a\.k\.a\.?\s+'?([^';,.\n]+)'?`),
	regexp.MustCompile(`(?i)f\.k\.a\.?\s+'?([^';,.\n]+)'?`),
	regexp.MustCompile(`(?i)also\s+known\s+as\s+([^;,.\n]+)`),
	regexp.MustCompile(`(?i)formerly\s+known\s+as\s+([^;,.\n]+)`),
}

var (
	dobPattern         = regexp.MustCompile(`(?i)DOB\s+([0-9]{1,2}\s+\w{3}\s+[0-9]{4}|[0-9]{4})`)
	nationalityPattern = regexp.MustCompile(`(?i)nationality:?\s+([A-Za-z ]+?)[;.]`)
	// Covers "Digital Currency Address - XBT <addr>;" and similar tags for
	// ETH, LTC, XMR and other currency codes.
	cryptoAddrPattern = regexp.MustCompile(`(?i)Digital\s+Currency\s+Address\s+-\s+[A-Z0-9]{2,5}\s+([A-Za-z0-9]{20,});?`)
)

// ParseSDN parses the OFAC SDN CSV export into reference records. Malformed
// individual rows are skipped, not fatal; an error is returned only when the
// payload yields no records at all.
func ParseSDN(data []byte) ([]screening.ReferenceRecord, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	var records []screening.ReferenceRecord
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// Quoted-field damage on one row; the reader resumes at the
			// next line.
			continue
		}
		if len(row) < sdnColCount {
			continue
		}

		name := sdnField(row[sdnColName])
		if name == "" {
			continue
		}

		remarks := sdnField(row[sdnColRemarks])
		rec := screening.ReferenceRecord{
			ID:          sdnField(row[sdnColID]),
			PrimaryName: name,
			Kind:        sdnKind(sdnField(row[sdnColType])),
			Programs:    splitPrograms(sdnField(row[sdnColProgram])),
			Remarks:     remarks,
			Aliases:     ExtractAliases(remarks),
			DateOfBirth: extractFirst(dobPattern, remarks),
			Nationality: extractFirst(nationalityPattern, remarks),
			Addresses:   cryptoAddresses(remarks),
		}
		records = append(records, rec)
	}

	if len(records) == 0 {
		return nil, errors.New("no parseable SDN rows")
	}
	return records, nil
}

func sdnField(v string) string {
	v = strings.TrimSpace(v)
	if v == sdnNull {
		return ""
	}
	return v
}

func sdnKind(sdnType string) screening.EntityKind {
	switch strings.ToLower(sdnType) {
	case "individual":
		return screening.KindIndividual
	case "vessel":
		return screening.KindVessel
	case "aircraft":
		return screening.KindAircraft
	case "", "entity":
		return screening.KindOrganization
	default:
		return screening.KindUnknown
	}
}

func splitPrograms(programs string) []string {
	if programs == "" {
		return nil
	}
	var out []string
	for _, p := range strings.FieldsFunc(programs, func(r rune) bool {
		return r == ';' || r == '[' || r == ']'
	}) {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ExtractAliases pulls a.k.a./f.k.a. alternate names out of free-text
// remarks.
func ExtractAliases(remarks string) []string {
	var aliases []string
	seen := make(map[string]struct{})
	for _, pattern := range aliasPatterns {
		for _, m := range pattern.FindAllStringSubmatch(remarks, -1) {
			if len(m) < 2 {
				continue
			}
			alias := strings.TrimSpace(strings.Trim(m[1], "'\""))
			if alias == "" {
				continue
			}
			if _, dup := seen[alias]; dup {
				continue
			}
			seen[alias] = struct{}{}
			aliases = append(aliases, alias)
		}
	}
	return aliases
}

func extractFirst(pattern *regexp.Regexp, remarks string) string {
	if m := pattern.FindStringSubmatch(remarks); len(m) > 1 {
		return strings.TrimSpace(m[1])
	}
	return ""
}

func cryptoAddresses(remarks string) []string {
	var addrs []string
	for _, m := range cryptoAddrPattern.FindAllStringSubmatch(remarks, -1) {
		if len(m) > 1 {
			addrs = append(addrs, m[1])
		}
	}
	return addrs
}
