package tle

import (
	"bufio"
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/Forken21/botsat/internal/sgp4"
)

// LineLength is the fixed width of both element lines, checksum included.
const LineLength = 69

// Epochs before the first launch or more than a year past the fetch are rejected.
var firstLaunch = time.Date(1957, time.October, 4, 0, 0, 0, 0, time.UTC)

const maxEpochLead = 365 * 24 * time.Hour

// Alpha-5 leading letters for catalog numbers above 99999. I and O are skipped.
var alpha5 = map[byte]int{
	'A': 10, 'B': 11, 'C': 12, 'D': 13, 'E': 14, 'F': 15, 'G': 16, 'H': 17,
	'J': 18, 'K': 19, 'L': 20, 'M': 21, 'N': 22,
	'P': 23, 'Q': 24, 'R': 25, 'S': 26, 'T': 27, 'U': 28, 'V': 29, 'W': 30,
	'X': 31, 'Y': 32, 'Z': 33,
}

type numberedLine struct {
	n    int
	text string
}

// Load parses raw element text for group into a catalog snapshot.
//
// Both the three-line (name, line 1, line 2) and the bare two-line form are
// accepted; a two-line record is named by its catalog number. Records that
// fail validation are skipped and recorded in Catalog.ParseErrors. Load only
// fails when the input is non-empty and no record survives; that error is a
// *ParseError wrapping ErrNoRecords. When two records share a name the later
// one wins.
func Load(group, source string, raw []byte, fetchedAt time.Time) (*Catalog, error) {
	if fetchedAt.IsZero() {
		fetchedAt = time.Now().UTC()
	}

	var lines []numberedLine
	sc := bufio.NewScanner(bytes.NewReader(raw))
	for n := 1; sc.Scan(); n++ {
		text := strings.TrimRight(sc.Text(), " \t\r")
		if strings.TrimSpace(text) != "" {
			lines = append(lines, numberedLine{n: n, text: text})
		}
	}
	if err := sc.Err(); err != nil {
		return nil, &ParseError{Err: fmt.Errorf("%w: reading input: %v", ErrFormat, err)}
	}

	sets := make(map[string]*ElementSet)
	var perrs []*ParseError

	for i := 0; i < len(lines); {
		first := lines[i]

		if isElementLine(first.text, '1') {
			if i+1 >= len(lines) || !isElementLine(lines[i+1].text, '2') {
				perrs = append(perrs, &ParseError{Line: first.n, Err: fmt.Errorf("%w: line 1 without line 2", ErrFormat)})
				i++
				continue
			}
			es, err := ParseLines("", first.text, lines[i+1].text, fetchedAt)
			if err != nil {
				perrs = append(perrs, &ParseError{Line: first.n, Err: err})
			} else {
				sets[es.Name] = es
			}
			i += 2
			continue
		}

		name := cleanName(first.text)
		if i+1 >= len(lines) || !isElementLine(lines[i+1].text, '1') {
			perrs = append(perrs, &ParseError{Line: first.n, Name: name, Err: fmt.Errorf("%w: name line not followed by line 1", ErrFormat)})
			i++
			continue
		}
		if i+2 >= len(lines) || !isElementLine(lines[i+2].text, '2') {
			// Resume at whatever follows line 1; it may be the next name line.
			perrs = append(perrs, &ParseError{Line: first.n, Name: name, Err: fmt.Errorf("%w: missing line 2", ErrFormat)})
			i += 2
			continue
		}
		es, err := ParseLines(name, lines[i+1].text, lines[i+2].text, fetchedAt)
		if err != nil {
			perrs = append(perrs, &ParseError{Line: first.n, Name: name, Err: err})
		} else {
			sets[es.Name] = es
		}
		i += 3
	}

	if len(sets) == 0 && len(lines) > 0 {
		return nil, &ParseError{Err: fmt.Errorf("%w: %d record(s) rejected", ErrNoRecords, len(perrs))}
	}

	return newCatalog(group, source, fetchedAt, sets, perrs), nil
}

// isElementLine reports whether s looks like element line n ("1 " or "2 ").
func isElementLine(s string, n byte) bool {
	return len(s) >= 2 && s[0] == n && s[1] == ' '
}

// cleanName strips the "0 " prefix some sources put on name lines.
func cleanName(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "0 ") {
		s = strings.TrimSpace(s[2:])
	}
	return s
}

// ParseLines validates and decodes one element set and initialises its SGP4
// model. An empty name defaults to the catalog number. now bounds the epoch.
func ParseLines(name, line1, line2 string, now time.Time) (*ElementSet, error) {
	line1 = strings.TrimRight(line1, " \t\r")
	line2 = strings.TrimRight(line2, " \t\r")

	if len(line1) != LineLength {
		return nil, fmt.Errorf("%w: line 1 has %d", ErrLineLength, len(line1))
	}
	if len(line2) != LineLength {
		return nil, fmt.Errorf("%w: line 2 has %d", ErrLineLength, len(line2))
	}
	if line1[0] != '1' || line2[0] != '2' {
		return nil, fmt.Errorf("%w: line numbers %q and %q", ErrFormat, line1[0], line2[0])
	}
	if !validChecksum(line1) {
		return nil, fmt.Errorf("%w: line 1", ErrChecksum)
	}
	if !validChecksum(line2) {
		return nil, fmt.Errorf("%w: line 2", ErrChecksum)
	}

	es := &ElementSet{Line1: line1, Line2: line2}
	if err := parseLine1(es, line1); err != nil {
		return nil, err
	}
	if err := parseLine2(es, line2); err != nil {
		return nil, err
	}

	num2, err := parseCatalogNumber(line2[2:7])
	if err != nil {
		return nil, err
	}
	if num2 != es.CatalogNumber {
		return nil, fmt.Errorf("%w: %d and %d", ErrNoradMismatch, es.CatalogNumber, num2)
	}

	if es.Epoch.Before(firstLaunch) || es.Epoch.After(now.Add(maxEpochLead)) {
		return nil, fmt.Errorf("%w: %s", ErrEpoch, es.Epoch.Format(time.RFC3339))
	}

	es.Name = strings.TrimSpace(name)
	if es.Name == "" {
		es.Name = strconv.Itoa(es.CatalogNumber)
	}

	model, err := sgp4.New(es.Elements())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFieldRange, err)
	}
	es.model = model
	return es, nil
}

// Line 1 columns (1-based):
//
//	3-7    catalog number (Alpha-5 allowed)
//	8      classification
//	10-17  international designator
//	19-32  epoch YYDDD.DDDDDDDD
//	34-43  first derivative of mean motion
//	45-52  second derivative of mean motion, implied decimal
//	54-61  B*, implied decimal
//	65-68  element set number
func parseLine1(es *ElementSet, line string) error {
	var err error

	if es.CatalogNumber, err = parseCatalogNumber(line[2:7]); err != nil {
		return err
	}
	es.Classification = string(line[7])
	es.IntlDesignator = strings.TrimSpace(line[9:17])

	if es.Epoch, err = parseEpoch(strings.TrimSpace(line[18:32])); err != nil {
		return err
	}
	if es.MeanMotionDot, err = parseFloat("mean motion dot", line[33:43]); err != nil {
		return err
	}
	if es.MeanMotionDDot, err = parseExponent("mean motion ddot", line[44:52]); err != nil {
		return err
	}
	if es.BStar, err = parseExponent("bstar", line[53:61]); err != nil {
		return err
	}
	if s := strings.TrimSpace(line[64:68]); s != "" {
		if es.ElementNumber, err = strconv.Atoi(s); err != nil {
			return fmt.Errorf("%w: element set number %q", ErrFormat, s)
		}
	}
	return nil
}

// Line 2 columns (1-based):
//
//	9-16   inclination
//	18-25  right ascension of the ascending node
//	27-33  eccentricity, implied leading decimal point
//	35-42  argument of perigee
//	44-51  mean anomaly
//	53-63  mean motion, rev/day
//	64-68  revolution number at epoch
func parseLine2(es *ElementSet, line string) error {
	var err error

	if es.Inclination, err = parseAngle("inclination", line[8:16], 180, true); err != nil {
		return err
	}
	if es.RAAN, err = parseAngle("raan", line[17:25], 360, false); err != nil {
		return err
	}

	ecc := strings.TrimSpace(line[26:33])
	if ecc == "" || strings.Trim(ecc, "0123456789") != "" {
		return fmt.Errorf("%w: eccentricity %q", ErrFormat, ecc)
	}
	if es.Eccentricity, err = strconv.ParseFloat("0."+ecc, 64); err != nil {
		return fmt.Errorf("%w: eccentricity %q", ErrFormat, ecc)
	}

	if es.ArgPerigee, err = parseAngle("argument of perigee", line[34:42], 360, false); err != nil {
		return err
	}
	if es.MeanAnomaly, err = parseAngle("mean anomaly", line[43:51], 360, false); err != nil {
		return err
	}

	if es.MeanMotion, err = parseFloat("mean motion", line[52:63]); err != nil {
		return err
	}
	if !(es.MeanMotion > 0 && es.MeanMotion <= 20) {
		return fmt.Errorf("%w: mean motion %g rev/day", ErrFieldRange, es.MeanMotion)
	}

	if s := strings.TrimSpace(line[63:68]); s != "" {
		if es.RevNumber, err = strconv.Atoi(s); err != nil {
			return fmt.Errorf("%w: revolution number %q", ErrFormat, s)
		}
	}
	return nil
}

func parseFloat(field, s string) (float64, error) {
	s = strings.TrimSpace(s)
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s %q", ErrFormat, field, s)
	}
	return v, nil
}

// parseAngle parses a degree field and checks it against [0, max] when
// inclusive, [0, max) otherwise.
func parseAngle(field, s string, max float64, inclusive bool) (float64, error) {
	v, err := parseFloat(field, s)
	if err != nil {
		return 0, err
	}
	if v < 0 || v > max || (!inclusive && v == max) {
		return 0, fmt.Errorf("%w: %s %g", ErrFieldRange, field, v)
	}
	return v, nil
}

// parseExponent decodes the packed "[-]NNNNN[-+]E" notation, meaning
// ±0.NNNNN × 10^(±E).
func parseExponent(field, s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}

	sign := 1.0
	switch s[0] {
	case '-':
		sign = -1
		s = s[1:]
	case '+':
		s = s[1:]
	}

	expPos := strings.LastIndexAny(s, "+-")
	if expPos <= 0 {
		return 0, fmt.Errorf("%w: %s %q", ErrFormat, field, s)
	}
	mantissa, err := strconv.ParseFloat("0."+strings.TrimSpace(s[:expPos]), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s mantissa %q", ErrFormat, field, s)
	}
	exp, err := strconv.Atoi(s[expPos:])
	if err != nil {
		return 0, fmt.Errorf("%w: %s exponent %q", ErrFormat, field, s)
	}
	return sign * mantissa * math.Pow10(exp), nil
}

// parseCatalogNumber decodes a five-column catalog number, including the
// Alpha-5 form where a leading letter stands for 10..33.
func parseCatalogNumber(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: empty catalog number", ErrFormat)
	}
	if prefix, ok := alpha5[s[0]]; ok {
		if len(s) != 5 {
			return 0, fmt.Errorf("%w: alpha-5 catalog number %q", ErrFormat, s)
		}
		rest, err := strconv.Atoi(s[1:])
		if err != nil {
			return 0, fmt.Errorf("%w: alpha-5 catalog number %q", ErrFormat, s)
		}
		return prefix*10000 + rest, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: catalog number %q", ErrFormat, s)
	}
	return n, nil
}

// parseEpoch converts YYDDD.DDDDDDDD to UTC. Years 57-99 are 1900s, 00-56 are 2000s.
func parseEpoch(s string) (time.Time, error) {
	if len(s) < 5 {
		return time.Time{}, fmt.Errorf("%w: epoch %q", ErrFormat, s)
	}

	year, err := strconv.Atoi(s[:2])
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: epoch year %q", ErrFormat, s[:2])
	}
	if year >= 57 {
		year += 1900
	} else {
		year += 2000
	}

	day, err := strconv.ParseFloat(s[2:], 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: epoch day %q", ErrFormat, s[2:])
	}
	daysInYear := 365.0
	if year%4 == 0 && (year%100 != 0 || year%400 == 0) {
		daysInYear = 366
	}
	if day < 1 || day >= daysInYear+1 {
		return time.Time{}, fmt.Errorf("%w: day of year %g in %d", ErrEpoch, day, year)
	}

	// Day 1.0 is 00:00 on 1 January.
	base := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	return base.Add(time.Duration(math.Round((day - 1) * float64(24*time.Hour)))), nil
}

// validChecksum checks column 69 against the mod-10 sum of the first 68
// columns, where digits count their value and '-' counts as 1.
func validChecksum(line string) bool {
	if len(line) < LineLength {
		return false
	}
	want := line[LineLength-1]
	if want < '0' || want > '9' {
		return false
	}
	return Checksum(line[:LineLength-1]) == int(want-'0')
}

// Checksum returns the mod-10 element line checksum of s.
func Checksum(s string) int {
	sum := 0
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c >= '0' && c <= '9':
			sum += int(c - '0')
		case c == '-':
			sum++
		}
	}
	return sum % 10
}
