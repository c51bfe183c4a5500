package dicom

import (
	"math/big"

	"github.com/google/uuid"
)

// GenerateDeterministicUID derives a DICOM UID from seed under the 2.25
// root, which embeds a UUID as a decimal integer. Equal seeds give equal
// UIDs.
func GenerateDeterministicUID(seed string) string {
	u := uuid.NewSHA1(uuid.NameSpaceOID, []byte(seed))
	return "2.25." + new(big.Int).SetBytes(u[:]).String()
}
