package normalize

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/JakeFAU/ec-listings-pipeline/internal/listing"
)

// keyVersion pins the identity derivation algorithm. Bump it only when
// the derivation input changes, so that re-runs after a normalization
// rule change never silently fork identities.
const keyVersion = "v1"

// DeriveIdentityKey computes the stable identity key for a candidate
// whose fields have already been normalized. A corporate registration
// number, when present, identifies the business on its own; otherwise
// the key derives from the name/address pair. When neither source is
// available the candidate has no stable identity and is rejected.
func DeriveIdentityKey(c listing.Candidate) (string, error) {
	var source string
	switch {
	case c.CorporateNumber != "":
		source = "corp\x00" + c.CorporateNumber
	case c.Name != "" || c.Address != "":
		source = "na\x00" + strings.ToLower(c.Name) + "\x00" + strings.ToLower(c.Address)
	default:
		return "", fmt.Errorf("derive identity key: %w", listing.ErrIdentity)
	}
	sum := sha256.Sum256([]byte(source))
	return keyVersion + ":" + hex.EncodeToString(sum[:]), nil
}
