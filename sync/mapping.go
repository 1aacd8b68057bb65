package sync

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/iancoleman/strcase"
	"github.com/tidwall/gjson"
)

// Target identifies the ticket field a spreadsheet column feeds.
type Target int

const (
	TargetNone Target = iota
	TargetTicketID
	TargetSummary
	TargetDescription
	TargetPrependSummary
	TargetAppendSummary
	TargetPrependDescription
	TargetAppendDescription
	TargetIssueType
	TargetPriority
	TargetLabels
	TargetComponents
	TargetEpicLink
	TargetAssignee
	TargetReporter
	TargetDueDate
	// TargetCustomField writes the column straight into a Jira field id held by MappingEntry.FieldID.
	TargetCustomField
)

var targetNames = map[Target]string{
	TargetNone:               "none",
	TargetTicketID:           "ticketId",
	TargetSummary:            "summary",
	TargetDescription:        "description",
	TargetPrependSummary:     "prependSummary",
	TargetAppendSummary:      "appendSummary",
	TargetPrependDescription: "prependDescription",
	TargetAppendDescription:  "appendDescription",
	TargetIssueType:          "issueType",
	TargetPriority:           "priority",
	TargetLabels:             "labels",
	TargetComponents:         "components",
	TargetEpicLink:           "epicLink",
	TargetAssignee:           "assignee",
	TargetReporter:           "reporter",
	TargetDueDate:            "dueDate",
	TargetCustomField:        "customField",
}

// targetAliases is keyed by the lower-cased CamelCase form of a target name so that
// "prepend_summary", "Prepend Summary" and "prependSummary" all resolve alike.
var targetAliases = map[string]Target{
	"":          TargetNone,
	"ticketkey": TargetTicketID,
	"key":       TargetTicketID,
	"epic":      TargetEpicLink,
	"duedate":   TargetDueDate,
	"issuetype": TargetIssueType,
	"type":      TargetIssueType,
}

func init() {
	for t, name := range targetNames {
		if t == TargetCustomField {
			continue
		}
		targetAliases[strings.ToLower(strcase.ToCamel(name))] = t
	}
}

var customFieldPattern = regexp.MustCompile(`^(?i)customfield_\d+$`)

func (t Target) String() string {
	if name, ok := targetNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Target(%d)", int(t))
}

// IsModifier reports whether the target modifies summary or description instead of setting a field.
func (t Target) IsModifier() bool {
	switch t {
	case TargetPrependSummary, TargetAppendSummary, TargetPrependDescription, TargetAppendDescription:
		return true
	}
	return false
}

// ParseTarget resolves a persisted target name. Unknown names are rejected with ErrInvalidMapping.
// The returned field id is only set for TargetCustomField.
func ParseTarget(s string) (Target, string, error) {
	s = strings.TrimSpace(s)
	if customFieldPattern.MatchString(s) {
		return TargetCustomField, strings.ToLower(s), nil
	}
	if t, ok := targetAliases[strings.ToLower(strcase.ToCamel(s))]; ok {
		return t, "", nil
	}
	return TargetNone, "", fmt.Errorf("%w: unknown target %q", ErrInvalidMapping, s)
}

// MappingEntry describes how one spreadsheet column feeds one ticket field.
type MappingEntry struct {
	Target   Target
	FieldID  string
	Required bool
	// Separator joins prepend/append values to the base field. Empty means a single space.
	Separator string
}

// EnforcesRequired reports whether the required flag takes part in row validation.
// Modifier targets and the ticket id sink never do.
func (e MappingEntry) EnforcesRequired() bool {
	return e.Required && e.Target != TargetNone && e.Target != TargetTicketID && !e.Target.IsModifier()
}

func (e MappingEntry) JoinSeparator() string {
	if e.Separator == "" {
		return " "
	}
	return e.Separator
}

// TargetName returns the persisted spelling of the target.
func (e MappingEntry) TargetName() string {
	if e.Target == TargetCustomField {
		return e.FieldID
	}
	return e.Target.String()
}

type persistedEntry struct {
	Mapped    string `json:"mapped"`
	Required  bool   `json:"required"`
	Separator string `json:"separator,omitempty"`
}

// ColumnMapping maps a column header to its mapping entry.
type ColumnMapping map[string]MappingEntry

// MarshalJSON writes the {header: {mapped, required, separator}} shape.
func (m ColumnMapping) MarshalJSON() ([]byte, error) {
	out := make(map[string]persistedEntry, len(m))
	for header, entry := range m {
		p := persistedEntry{Mapped: entry.TargetName(), Required: entry.Required}
		if entry.Target.IsModifier() {
			p.Separator = entry.Separator
		}
		out[header] = p
	}
	return json.Marshal(out)
}

// UnmarshalJSON accepts both the object form and the legacy form where the value is the bare target name.
func (m *ColumnMapping) UnmarshalJSON(data []byte) error {
	parsed, err := ParseColumnMapping(data)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// ParseColumnMapping normalises a persisted column mapping. Legacy string entries become entries
// with Required=false; unknown targets fail the whole load.
func ParseColumnMapping(data []byte) (ColumnMapping, error) {
	result := make(ColumnMapping)
	if len(strings.TrimSpace(string(data))) == 0 {
		return result, nil
	}
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%w: malformed json", ErrInvalidMapping)
	}
	root := gjson.ParseBytes(data)
	if root.Type == gjson.Null {
		return result, nil
	}
	if !root.IsObject() {
		return nil, fmt.Errorf("%w: expected an object of headers", ErrInvalidMapping)
	}
	var err error
	root.ForEach(func(key, value gjson.Result) bool {
		header := strings.TrimSpace(key.String())
		var entry MappingEntry
		entry, err = parseMappingEntry(value)
		if err != nil {
			err = fmt.Errorf("column %q: %w", header, err)
			return false
		}
		result[header] = entry
		return true
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ParseMappingEntry reads a single entry in either persisted form.
func ParseMappingEntry(data []byte) (MappingEntry, error) {
	if !gjson.ValidBytes(data) {
		return MappingEntry{}, fmt.Errorf("%w: malformed json", ErrInvalidMapping)
	}
	return parseMappingEntry(gjson.ParseBytes(data))
}

func parseMappingEntry(value gjson.Result) (MappingEntry, error) {
	var entry MappingEntry
	var err error
	switch {
	case value.Type == gjson.String:
		entry.Target, entry.FieldID, err = ParseTarget(value.String())
	case value.IsObject():
		entry.Target, entry.FieldID, err = ParseTarget(value.Get("mapped").String())
		entry.Required = value.Get("required").Bool()
		if sep := value.Get("separator"); sep.Exists() {
			entry.Separator = sep.String()
		}
	default:
		err = fmt.Errorf("%w: unsupported entry %s", ErrInvalidMapping, value.Raw)
	}
	return entry, err
}

// Headers returns the mapped headers in sorted order.
func (m ColumnMapping) Headers() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Literal header names recognised without a mapping entry.
const (
	HeaderTicketKey = "Ticket Key"
	HeaderStatus    = "Status"
	HeaderRowNumber = "#"
	HeaderProcess   = "Process"
	HeaderSummary   = "Summary"
)

// isReservedHeader reports headers that are maintained by the sync itself and are never ticket input.
func isReservedHeader(header string) bool {
	switch header {
	case HeaderStatus, HeaderRowNumber, HeaderProcess:
		return true
	}
	return false
}

func isEpicHeader(header string) bool {
	return header == "EPIC" || header == "Epic"
}

// ResolvedColumn is a header position together with its effective mapping.
type ResolvedColumn struct {
	Index  int
	Header string
	Entry  MappingEntry
}

// ResolveColumns determines which target every header feeds. An explicit entry wins unless it maps
// to none; otherwise the literal headers Summary, EPIC/Epic and Ticket Key apply. Reserved headers
// and unmapped columns are left out. Columns come back in sheet order.
func ResolveColumns(headers []string, mapping ColumnMapping) []ResolvedColumn {
	var result []ResolvedColumn
	for i, raw := range headers {
		header := strings.TrimSpace(raw)
		if header == "" || isReservedHeader(header) {
			continue
		}
		entry, ok := mapping[header]
		if !ok || entry.Target == TargetNone {
			entry, ok = literalEntry(header)
			if !ok {
				continue
			}
		}
		result = append(result, ResolvedColumn{Index: i, Header: header, Entry: entry})
	}
	return result
}

func literalEntry(header string) (MappingEntry, bool) {
	switch {
	case header == HeaderSummary:
		return MappingEntry{Target: TargetSummary}, true
	case isEpicHeader(header):
		return MappingEntry{Target: TargetEpicLink}, true
	case header == HeaderTicketKey:
		return MappingEntry{Target: TargetTicketID}, true
	}
	return MappingEntry{}, false
}

// headerIndex returns the position of a literal header, or -1.
func headerIndex(headers []string, name string) int {
	for i, h := range headers {
		if strings.TrimSpace(h) == name {
			return i
		}
	}
	return -1
}

var epicKeyPattern = regexp.MustCompile(`^([A-Za-z][A-Za-z0-9_]*)-\d+$`)

// ProjectKeyFromEpic derives the project key from an issue key formatted PREFIX-NUMBER.
func ProjectKeyFromEpic(value string) (string, bool) {
	m := epicKeyPattern.FindStringSubmatch(strings.TrimSpace(value))
	if m == nil {
		return "", false
	}
	return m[1], true
}
