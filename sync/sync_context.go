package sync

// SyncContext holds what one run needs: the configuration it read at start, the tab it works on
// and a run ID for log correlation. It is not modified once a run has started.
type SyncContext struct {
	Config         Configuration
	Tab            string
	RunID          string
	RecordRequests bool
}

// TabSettings returns the settings of the tab this run works on.
func (c *SyncContext) TabSettings() TabSettings {
	return c.Config.Settings.Tab(c.Tab)
}
