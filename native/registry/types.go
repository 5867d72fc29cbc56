package registry

// TokenURIDefault is the metadata URI shared by every minted unit. The issuer
// is deliberately minimal: one collection, one static document.
const TokenURIDefault = "ipfs://bafybeig37ioir76s7mg5oobetncojcm3c3hxasyd4rvid4jqhy4gkaheg4/?filename=0-PUG.json"

// Token is the per-unit ownership record. Approved is the single operator
// allowed to move the unit on the owner's behalf; the zero address means no
// unit-level approval is outstanding.
type Token struct {
	Owner    [20]byte
	Approved [20]byte
}

// HasApproval reports whether a unit-level approval is set.
func (t *Token) HasApproval() bool {
	if t == nil {
		return false
	}
	return t.Approved != [20]byte{}
}
