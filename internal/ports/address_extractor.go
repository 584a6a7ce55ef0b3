package ports

import "context"

// Contract for reading delivery addresses off a photographed label.
type AddressExtractor interface {
	// Return every address found in the image, in reading order.
	// An image with no recognisable address yields an empty slice and no error.
	ExtractAddresses(ctx context.Context, image []byte) ([]string, error)
}
