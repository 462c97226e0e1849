package main

// IssueRequest is the direct-invoke payload.
type IssueRequest struct {
	UserID string `json:"user_id"`
}

// IssueResponse carries the signed credential.
type IssueResponse struct {
	VC string `json:"vc"`
}
