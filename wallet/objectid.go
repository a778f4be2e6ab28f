package wallet

import "strings"

// ObjectID returns the wallet object reference for a user. Object identifiers are
// never generated or stored locally; they are always derived from the issuer and user.
func ObjectID(issuerID, userID string) string {
	return issuerID + "." + userID
}

// ClassID returns the class reference for the configured class suffix.
func ClassID(issuerID, suffix string) string {
	return issuerID + "." + strings.TrimPrefix(suffix, issuerID+".")
}
