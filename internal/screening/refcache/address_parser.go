package refcache

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/sentinelrisk/screening/internal/screening"
)

// ParseAddressList parses a newline-delimited sanctioned-address list (one
// wallet address per line, comments starting with #). Blank and obviously
// invalid lines are skipped.
func ParseAddressList(data []byte) ([]screening.ReferenceRecord, error) {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	// Some lists carry long annotation lines.
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var records []screening.ReferenceRecord
	line := 0
	for scanner.Scan() {
		line++
		addr := strings.TrimSpace(scanner.Text())
		if addr == "" || strings.HasPrefix(addr, "#") {
			continue
		}
		// Address lines are a single token; anything else is a malformed or
		// annotated line.
		if strings.ContainsAny(addr, " \t,") || len(addr) < 20 {
			continue
		}
		records = append(records, screening.ReferenceRecord{
			ID:          fmt.Sprintf("addr-%d", line),
			PrimaryName: addr,
			Kind:        screening.KindWallet,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan address list: %w", err)
	}
	if len(records) == 0 {
		return nil, errors.New("no parseable addresses")
	}
	return records, nil
}
