// Request types decoded from JSON bodies and checked with
// go-playground/validator struct tags before they touch the scheduler.
package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"
)

const (
	proofTargetTask    = "task"
	proofTargetLoyalty = "loyalty"
	proofTargetOrgasm  = "orgasm"
)

type taskRequest struct {
	Task  string  `json:"task" validate:"required,oneof=morning_ritual wear_time audio_session affirmations evening_ritual"`
	Value float64 `json:"value" validate:"gte=0"`
}

type proofRequest struct {
	Target  string `json:"target" validate:"required,oneof=task loyalty orgasm"`
	Task    string `json:"task" validate:"required_if=Target task,omitempty,oneof=morning_ritual wear_time audio_session affirmations evening_ritual"`
	CheckID string `json:"check_id" validate:"required_if=Target loyalty"`
	Data    []byte `json:"data" validate:"required"`
}

type proofResponse struct {
	ProofID  string `json:"proof_id"`
	Accepted bool   `json:"accepted"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// decodeAndValidate fills req from the body and writes a 400 on failure.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, req any) bool {
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		http.Error(w, "invalid JSON: "+err.Error(), http.StatusBadRequest)
		return false
	}
	if err := validate.Struct(req); err != nil {
		http.Error(w, "invalid request: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}
