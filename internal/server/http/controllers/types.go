package controllers

import "encoding/json"

// createReq is the body of POST /{queue}.
type createReq struct {
	Subject     string          `json:"subject"`
	RequestBody json.RawMessage `json:"requestBody"`
}

// postbackReq is the body of PATCH /{queue}/{id}/postback.
type postbackReq struct {
	Status       string          `json:"status"`
	ResponseBody json.RawMessage `json:"responseBody"`
}
