package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Claim represents an incoming medical insurance claim to be audited
type Claim struct {
	ClaimID      string    `json:"claim_id"`
	PatientID    string    `json:"patient_id"`
	CPTCodes     []string  `json:"cpt_codes"`           // At least one CPT/HCPCS procedure code
	ICDCodes     []string  `json:"icd_codes,omitempty"` // ICD-10 diagnosis codes, may be empty
	ServiceDate  time.Time `json:"service_date"`
	Payer        string    `json:"payer"`
	ProviderNPI  string    `json:"provider_npi"`
	BilledAmount float64   `json:"billed_amount"`
	PolicyID     string    `json:"policy_id,omitempty"` // Optional explicit policy scope
	Notes        string    `json:"notes,omitempty"`
}

// EnsureID assigns a generated claim id if none was provided
func (c *Claim) EnsureID() {
	if c.ClaimID == "" {
		c.ClaimID = uuid.NewString()
	}
}

// Validate checks the claim preconditions. Transport rejects invalid claims
// before any pipeline state is entered; the core does not re-validate.
func (c *Claim) Validate() error {
	if len(c.CPTCodes) == 0 {
		return fmt.Errorf("claim %s: at least one CPT code is required", c.ClaimID)
	}
	if c.BilledAmount <= 0 {
		return fmt.Errorf("claim %s: billed amount must be positive, got %.2f", c.ClaimID, c.BilledAmount)
	}
	return nil
}
