package dto

import "encoding/json"

type ClaimRequest struct {
	Key string `json:"key" binding:"required"`
}

type ClaimResponse struct {
	Claimed bool `json:"claimed"`
}

type JobResponse struct {
	ID        string  `json:"id"`
	Status    string  `json:"status"`
	ErrorCode *string `json:"error_code"`
	ErrorMsg  *string `json:"error_msg"`
	Attempts  int     `json:"attempts"`
}

type JobUpdateRequest struct {
	Status    string          `json:"status" binding:"required"`
	Result    json.RawMessage `json:"result,omitempty"`
	ErrorCode *string         `json:"error_code,omitempty"`
	ErrorMsg  *string         `json:"error_msg,omitempty"`
}
