package hashchain

import "strings"

// ReceiptLength is the number of fingerprint hex characters kept in a receipt code.
const ReceiptLength = 16

// receiptPlaceholder has the length of a real code but contains non-hex
// characters, so it can never match a stored receipt.
var receiptPlaceholder = strings.Repeat("Z", ReceiptLength)

// DeriveReceipt returns the voter-facing receipt code for a fingerprint.
func DeriveReceipt(fingerprint string) string {
	if len(fingerprint) < ReceiptLength {
		return strings.ToUpper(fingerprint)
	}
	return strings.ToUpper(fingerprint[:ReceiptLength])
}

// NormalizeReceipt uppercases and trims a user supplied code and reports
// whether it is well formed.
func NormalizeReceipt(code string) (string, bool) {
	normalized := strings.ToUpper(strings.TrimSpace(code))
	if len(normalized) != ReceiptLength {
		return normalized, false
	}
	for i := 0; i < len(normalized); i++ {
		c := normalized[i]
		if (c < '0' || c > '9') && (c < 'A' || c > 'F') {
			return normalized, false
		}
	}
	return normalized, true
}

// LookupKey returns the value to query the store with. Malformed codes map to
// a placeholder so the lookup path is identical for every input.
func LookupKey(code string) string {
	normalized, ok := NormalizeReceipt(code)
	if !ok {
		return receiptPlaceholder
	}
	return normalized
}
