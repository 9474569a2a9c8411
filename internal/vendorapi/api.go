package vendorapi

// statusResponse models the envelope every vendor endpoint shares. The
// vendor signals success through the message field, not the HTTP status.
type statusResponse struct {
	Message string `json:"message"`
	Status  int    `json:"status"`
}

// lookupResponse models the nameByDevice endpoint's response.
type lookupResponse struct {
	statusResponse
	Result []struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"result"`
}

// detailResponse models the device detail endpoint's response.
type detailResponse struct {
	statusResponse
	Result struct {
		ID    string `json:"id"`
		Name  string `json:"name"`
		State struct {
			Value string `json:"value"`
			Text  string `json:"text"`
		} `json:"state"`
	} `json:"result"`
}

// logsResponse models the device logs endpoint's response.
type logsResponse struct {
	statusResponse
	Result struct {
		Total int        `json:"total"`
		Data  []LogEntry `json:"data"`
	} `json:"result"`
}

// LogEntry is one event or property report from the vendor's device log.
type LogEntry struct {
	Type      string `json:"type"`
	Content   string `json:"content"`
	Timestamp int64  `json:"timestamp"`
}

// DeviceDetail is the subset of the vendor's detail payload exposed to
// callers of the client.
type DeviceDetail struct {
	ID    string
	Name  string
	State string
}

// logTerm is one filter clause of a logs query.
type logTerm struct {
	Type     string `json:"type"`
	Value    string `json:"value"`
	TermType string `json:"termType"`
	Column   string `json:"column"`
}

// logQuery is the request body of the logs endpoint.
type logQuery struct {
	PageIndex int       `json:"pageIndex"`
	PageSize  int       `json:"pageSize"`
	Terms     []logTerm `json:"terms"`
}

// bindRequest is the request body of the bind and unbind endpoints.
type bindRequest struct {
	DeviceID string `json:"deviceId"`
	UserID   string `json:"userId"`
	TenantID string `json:"tenantId"`
}
