package api

type ErrorResponse struct {
	Error string `json:"error" example:"something went wrong"`
}

type MessageResponse struct {
	Message string `json:"message" example:"ok"`
}

type HealthResponse struct {
	Status string `json:"status" example:"ok"`
}

type ValidationErrorResponse struct {
	Error   string            `json:"error" example:"validation failed"`
	Details []ValidationError `json:"details"`
}

// PlanInUseResponse is returned when a plan delete needs confirmation.
type PlanInUseResponse struct {
	Error                string `json:"error"`
	MemberCount          int    `json:"member_count" example:"3"`
	RequiresConfirmation bool   `json:"requires_confirmation" example:"true"`
}
