package auth

import "github.com/golang-jwt/jwt/v5"

const linkPurpose = "recording_download"

// LinkClaims are the only supported JWT claims shape for this service.
// A token grants read access to exactly one stored recording.
type LinkClaims struct {
	jwt.RegisteredClaims

	CallID  string `json:"call_id"`
	Purpose string `json:"purpose"`
}
