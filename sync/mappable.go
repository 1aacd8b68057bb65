package sync

// Mappable is implemented by anything holding a free-form field map that mapped columns write into.
type Mappable interface {
	GetFields() map[string]interface{}
	SetField(key string, value interface{})
	DeleteField(key string)
}

// GetFields returns the payload's custom field writes.
func (p *TicketPayload) GetFields() map[string]interface{} { return p.CustomFields }

// SetField records a custom field write.
func (p *TicketPayload) SetField(key string, value interface{}) {
	if p.CustomFields == nil {
		p.CustomFields = make(map[string]interface{})
	}
	p.CustomFields[key] = value
}

// DeleteField drops a custom field write.
func (p *TicketPayload) DeleteField(key string) { delete(p.CustomFields, key) }

// mapCustomField writes a cell into any Mappable, converting dates to the Jira date format.
func mapCustomField(destination Mappable, fieldID string, value interface{}) {
	switch v := value.(type) {
	case string:
		destination.SetField(fieldID, CellString(v))
	case []string, float64, bool:
		destination.SetField(fieldID, v)
	default:
		destination.SetField(fieldID, CellString(v))
	}
}
