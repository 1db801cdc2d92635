package domain

import "errors"

var (
	// ErrImageDecode signals an unreadable or corrupt source image.
	ErrImageDecode = errors.New("image decode failed")
	// ErrEmbeddingProvider signals an embedding provider failure.
	ErrEmbeddingProvider = errors.New("embedding provider error")
	// ErrIndexUnavailable signals that the vector index cannot be reached.
	ErrIndexUnavailable = errors.New("vector index unavailable")
	// ErrCardNotFound signals that no card metadata exists for an identifier.
	ErrCardNotFound = errors.New("card not found")
	// ErrPriceUnavailable signals an absent or non-numeric card price.
	ErrPriceUnavailable = errors.New("price unavailable")
	// ErrVectorDimMismatch signals a vector dimension mismatch.
	ErrVectorDimMismatch = errors.New("vector dimension mismatch")
)
