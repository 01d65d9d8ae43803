package response

type AskResponse struct {
	Answer      string `json:"answer"`
	SQL         string `json:"sql"`
	RowCount    int    `json:"rowCount"`
	Attempts    int    `json:"attempts"`
	TotalTimeMS int64  `json:"totalTimeMs"`
}

type ClarificationResponse struct {
	ClarificationNeeded string `json:"clarificationNeeded"`
}

type AskError struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
	SQL   string `json:"sql,omitempty"`
}

type IndexResponse struct {
	Status     string `json:"status"`
	TableCount int    `json:"tableCount"`
}

type TablePreview struct {
	TableName string `json:"tableName"`
	Preview   string `json:"preview"`
}

type SchemaPreviewResponse struct {
	Tables []TablePreview `json:"tables"`
}

type HealthResponse struct {
	Status      string `json:"status"`
	Database    bool   `json:"database"`
	VectorStore bool   `json:"vectorStore"`
	Inference   bool   `json:"inference"`
}
