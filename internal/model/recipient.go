package model

// RecipientRecord is one data row of an uploaded sheet.
type RecipientRecord struct {
	Name      string
	RawNumber string
}

// Recipient is the normalized, ready-to-send form of a record.
// Address is the bare country-prefixed number; routing suffixes are added by the transport.
type Recipient struct {
	DisplayName string
	Address     string
	Message     string
}
