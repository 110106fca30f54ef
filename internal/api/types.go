package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// WorkflowStatus summarizes workflow execution state.
type WorkflowStatus struct {
	Running            bool   `json:"running"`
	PendingUploads     int    `json:"pendingUploads"`
	ActiveTranslations int    `json:"activeTranslations"`
	Batches            int    `json:"batches"`
	FilesSucceeded     int    `json:"filesSucceeded"`
	FilesFailed        int    `json:"filesFailed"`
	Translations       int    `json:"translations"`
	TranslationsFailed int    `json:"translationsFailed"`
	LastBatchAt        string `json:"lastBatchAt,omitempty"`
	LastError          string `json:"lastError,omitempty"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running        bool           `json:"running"`
	PID            int            `json:"pid"`
	StartedAt      string         `json:"startedAt,omitempty"`
	BotUser        string         `json:"botUser,omitempty"`
	MappingsDBPath string         `json:"mappingsDbPath"`
	MappingCount   int            `json:"mappingCount"`
	LockFilePath   string         `json:"lockFilePath"`
	DriveEnabled   bool           `json:"driveEnabled"`
	Workflow       WorkflowStatus `json:"workflow"`
}

// Mapping is a single file-to-document association.
type Mapping struct {
	SourceFileID string `json:"sourceFileId"`
	DocumentID   string `json:"documentId"`
	CreatedAt    string `json:"createdAt,omitempty"`
	UpdatedAt    string `json:"updatedAt,omitempty"`
}

// MappingListResponse wraps a page of mappings.
type MappingListResponse struct {
	Mappings []Mapping `json:"mappings"`
	Total    int       `json:"total"`
}

// MappingResponse wraps a single mapping.
type MappingResponse struct {
	Mapping Mapping `json:"mapping"`
}

// PutMappingRequest is the body of PUT /api/mappings/{id}.
type PutMappingRequest struct {
	DocumentID string `json:"documentId"`
}

// DeleteMappingResponse reports whether a mapping existed.
type DeleteMappingResponse struct {
	Deleted bool `json:"deleted"`
}

// ErrorResponse is returned with every non-2xx status.
type ErrorResponse struct {
	Error string `json:"error"`
}
