package sync

import (
	"errors"
	"reflect"
	"testing"
)

var validatorHeaders = []string{"Summary", "Epic", "Priority", "Status"}

var validatorMapping = ColumnMapping{
	"Priority": {Target: TargetPriority, Required: true},
}

func TestValidateRow_Valid(t *testing.T) {
	result := ValidateRow(Row{"Fix login", "PROJ-123", "High", ""}, validatorHeaders, validatorMapping, TabSettings{})
	if !result.OK || len(result.Errors) != 0 {
		t.Errorf("Expected a valid row but have: %v", result.Messages())
	}
}

func TestValidateRow_EmptyRowReportsOnlyEmptyRow(t *testing.T) {
	// the Status column is sync output and does not make a row non-empty
	for _, row := range []Row{{}, {nil, " ", "", "Done"}} {
		result := ValidateRow(row, validatorHeaders, validatorMapping, TabSettings{ProjectKey: "PROJ"})
		if result.OK || len(result.Errors) != 1 || !errors.Is(result.Errors[0], ErrEmptyRow) {
			t.Errorf("Expected only ErrEmptyRow for %v but have: %v", row, result.Messages())
		}
	}
}

func TestValidateRow_MissingSummary(t *testing.T) {
	result := ValidateRow(Row{"", "PROJ-123", "High"}, validatorHeaders, validatorMapping, TabSettings{})
	if result.OK {
		t.Fatal("Expected the row to be invalid")
	}
	if len(result.Errors) != 1 || !errors.Is(result.Errors[0], ErrMissingSummary) {
		t.Errorf("Expected only ErrMissingSummary (project comes from the epic) but have: %v", result.Messages())
	}
}

func TestValidateRow_EpicWithoutNumberNeedsTabProject(t *testing.T) {
	row := Row{"Fix login", "NOPROJECTNUMBER", "High"}
	result := ValidateRow(row, validatorHeaders, validatorMapping, TabSettings{})
	if len(result.Errors) != 1 || !errors.Is(result.Errors[0], ErrMissingProjectKey) {
		t.Errorf("Expected ErrMissingProjectKey but have: %v", result.Messages())
	}
	result = ValidateRow(row, validatorHeaders, validatorMapping, TabSettings{ProjectKey: "OPS"})
	if !result.OK {
		t.Errorf("Expected the tab project to be used but have: %v", result.Messages())
	}
}

func TestValidateRow_RequiredFields(t *testing.T) {
	mapping := ColumnMapping{
		"Priority": {Target: TargetPriority, Required: true},
		"Team":     {Target: TargetLabels, Required: true},
		"Prefix":   {Target: TargetPrependSummary, Required: true},
	}
	result := ValidateRow(Row{"Fix login", "PROJ-1", ""}, validatorHeaders, mapping, TabSettings{})

	var missing []string
	for _, err := range result.Errors {
		var required *MissingRequiredFieldError
		if errors.As(err, &required) {
			missing = append(missing, required.Column)
		}
	}
	// present columns first, then columns absent from the sheet; modifiers never enforce
	expected := []string{"Priority", "Team"}
	if !reflect.DeepEqual(missing, expected) {
		t.Errorf("Expected missing %v but have: %v", expected, missing)
	}
}

func TestValidateRow_IsIdempotent(t *testing.T) {
	mapping := ColumnMapping{
		"Priority": {Target: TargetPriority, Required: true},
		"Team":     {Target: TargetLabels, Required: true},
		"Area":     {Target: TargetComponents, Required: true},
	}
	row := Row{"", "NOPROJECTNUMBER", ""}
	first := ValidateRow(row, validatorHeaders, mapping, TabSettings{})
	for i := 0; i < 5; i++ {
		again := ValidateRow(row, validatorHeaders, mapping, TabSettings{})
		if !reflect.DeepEqual(first.Messages(), again.Messages()) {
			t.Fatalf("Expected identical results but have: %v and %v", first.Messages(), again.Messages())
		}
	}
	if len(first.Errors) != 5 {
		t.Errorf("Expected all five defects to be reported but have: %v", first.Messages())
	}
}

func TestValidateRowForTemplate_TemplateSuppliesSummary(t *testing.T) {
	tpl := TicketTemplate{Summary: "Incident: ${Priority}"}
	row := Row{"", "PROJ-2", "High"}
	if result := ValidateRow(row, validatorHeaders, validatorMapping, TabSettings{}); result.OK {
		t.Error("Expected the row to need a summary without the template")
	}
	if result := ValidateRowForTemplate(tpl, row, validatorHeaders, validatorMapping, TabSettings{}); !result.OK {
		t.Errorf("Expected the template summary to satisfy validation but have: %v", result.Messages())
	}
}

func TestEffectiveProjectKey_LastParseableEpicWins(t *testing.T) {
	headers := []string{"Summary", "EPIC", "Epic", "Parent"}
	mapping := ColumnMapping{"Parent": {Target: TargetEpicLink}}
	columns := ResolveColumns(headers, mapping)

	key := EffectiveProjectKey(Row{"x", "AAA-1", "BBB-2", "not a key"}, columns, TabSettings{ProjectKey: "TAB"})
	if key != "BBB" {
		t.Errorf("Expected BBB but have: %s", key)
	}
	key = EffectiveProjectKey(Row{"x", "", "", ""}, columns, TabSettings{ProjectKey: "TAB"})
	if key != "TAB" {
		t.Errorf("Expected the tab project TAB but have: %s", key)
	}
}

func TestValidateRow_RequiredTicketKeyIsNotInput(t *testing.T) {
	headers := []string{"Summary", "Epic", "Ticket Key"}
	mapping := ColumnMapping{"Ticket Key": {Target: TargetTicketID, Required: true}}
	result := ValidateRow(Row{"Fix login", "PROJ-1", ""}, headers, mapping, TabSettings{})
	if !result.OK {
		t.Errorf("Expected a row without a ticket yet to be valid but have: %v", result.Messages())
	}
}

func TestValidateRow_ErrorOrder(t *testing.T) {
	mapping := ColumnMapping{"Priority": {Target: TargetPriority, Required: true}}
	result := ValidateRow(Row{"", "NOPROJECTNUMBER", ""}, validatorHeaders, mapping, TabSettings{})
	if len(result.Errors) != 3 {
		t.Fatalf("Expected 3 errors but have: %v", result.Messages())
	}
	var required *MissingRequiredFieldError
	if !errors.Is(result.Errors[0], ErrMissingProjectKey) || !errors.As(result.Errors[1], &required) || !errors.Is(result.Errors[2], ErrMissingSummary) {
		t.Errorf("Expected project key, required field, then summary but have: %v", result.Messages())
	}
}
