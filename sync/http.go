package sync

import "time"

// HTTPRequestTimeout bounds every call to the Jira REST API.
const HTTPRequestTimeout = 30 * time.Second

// UserAgent identifies the sync in Jira's audit log.
const UserAgent = "sheetjira/1.0"
