// internal/workers/discovery/process-citizen-query/models.go
package processcitizenquery

import "service-discovery/internal/models"

type Input struct {
	SessionID string                 `json:"sessionId"`
	Query     string                 `json:"query"`
	Profile   *models.CitizenProfile `json:"profile,omitempty"`
}

// request maps the job variables onto the query request document.
func (in *Input) request() map[string]interface{} {
	doc := map[string]interface{}{"sessionId": in.SessionID, "text": in.Query}
	if in.Profile != nil {
		doc["profile"] = in.Profile
	}
	return doc
}

// Output is flattened for gateway conditions in the process model.
type Output struct {
	RequestID             string                  `json:"requestId"`
	SessionID             string                  `json:"sessionId"`
	ResponseText          string                  `json:"responseText"`
	NeedsClarification    bool                    `json:"needsClarification"`
	ClarificationQuestion string                  `json:"clarificationQuestion,omitempty"`
	ServiceIDs            []string                `json:"serviceIds"`
	AlternativeIDs        []string                `json:"alternativeIds,omitempty"`
	NoMatch               bool                    `json:"noMatch"`
	HumanAssistance       *models.HumanAssistance `json:"humanAssistance,omitempty"`
	Confidence            float64                 `json:"confidence"`
	Degraded              bool                    `json:"degraded"`
	ResponseTimeMs        int64                   `json:"responseTimeMs"`
	Response              *models.QueryResponse   `json:"response"`
}
