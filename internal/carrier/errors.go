package carrier

import (
	"fmt"

	"github.com/go-faster/errors"
)

// ErrMalformedWebhook is returned when no known payload shape yields both
// a tracking code and a status.
var ErrMalformedWebhook = errors.New("malformed webhook payload")

// ShippingError is a failed parcel creation. Payload is the raw carrier
// response, empty when the request never got one.
type ShippingError struct {
	StatusCode int
	Payload    []byte
	Err        error
}

func (e *ShippingError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("carrier rejected parcel: %v", e.Err)
	}
	return fmt.Sprintf("carrier rejected parcel: status %d: %s", e.StatusCode, truncate(string(e.Payload), 512))
}

func (e *ShippingError) Unwrap() error {
	return e.Err
}
