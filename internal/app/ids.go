package app

import "github.com/google/uuid"

// refundNamespace scopes refund ids derived from client idempotency keys.
var refundNamespace = uuid.MustParse("6f1c2a4e-8d53-4b7a-9e0f-3c5d7a91b2e4")

func newID() string {
	return uuid.NewString()
}

// refundID is stable for a reservation and idempotency key, so a retry
// after a lost commit reuses the gateway and point keys of the first try.
func refundID(reservationID, idempotencyKey string) string {
	return uuid.NewSHA1(refundNamespace, []byte(reservationID+"|"+idempotencyKey)).String()
}
