// SPDX-License-Identifier: GPL-3.0-or-later
package identify

const (
	// DuplicateThreshold is the confidence at which two identifications
	// count as the same message.
	DuplicateThreshold = 0.7

	transactionHashWeight = 0.6
	orderIDWeight         = 0.4
)

type Comparison struct {
	IsDuplicate   bool
	Confidence    float64
	MatchedFields []string
}

type Validation struct {
	IsValid  bool
	Errors   []string
	Warnings []string
}

// emptyContentHash is sha256 of the degenerate empty input; a fingerprint of
// nothing identifies nothing.
const emptyContentHash = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"

// Validate flags degenerate identifications. Missing transaction hashes or
// order ids are warnings only; plenty of legitimate broker mail carries
// neither.
func Validate(id Identification) Validation {
	v := Validation{Errors: []string{}, Warnings: []string{}}

	switch {
	case len(id.ContentHash) == 0:
		v.Errors = append(v.Errors, "content hash is empty")
	case len(id.ContentHash) != 64:
		v.Errors = append(v.Errors, "content hash has unexpected length")
	case id.ContentHash == emptyContentHash:
		v.Errors = append(v.Errors, "content hash is the fingerprint of empty content")
	}

	if len(id.TransactionHash) == 0 {
		v.Warnings = append(v.Warnings, "no transaction pattern recognized")
	}
	if len(id.OrderIDs) == 0 {
		v.Warnings = append(v.Warnings, "no broker order ids found")
	}

	v.IsValid = len(v.Errors) == 0
	return v
}

// Compare grades how likely a and b describe the same message. An exact
// content-hash match is conclusive; otherwise matching transaction hashes
// and shared order ids are weighted against DuplicateThreshold.
// Compare(x, x) yields confidence 1.0 for any identification that passes
// Validate; a zero-value identification compares at 0.0 even to itself.
func Compare(a, b Identification) Comparison {
	if len(a.ContentHash) > 0 && a.ContentHash == b.ContentHash {
		return Comparison{
			IsDuplicate:   true,
			Confidence:    1.0,
			MatchedFields: []string{"contentHash"},
		}
	}

	confidence := 0.0
	matched := []string{}

	if len(a.TransactionHash) > 0 && a.TransactionHash == b.TransactionHash {
		confidence += transactionHashWeight
		matched = append(matched, "transactionHash")
	}

	if sharesOrderID(a.OrderIDs, b.OrderIDs) {
		confidence += orderIDWeight
		matched = append(matched, "orderIds")
	}

	return Comparison{
		IsDuplicate:   confidence >= DuplicateThreshold,
		Confidence:    confidence,
		MatchedFields: matched,
	}
}

func sharesOrderID(a, b []string) bool {
	for _, ida := range a {
		for _, idb := range b {
			if ida == idb {
				return true
			}
		}
	}
	return false
}
