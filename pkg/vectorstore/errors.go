package vectorstore

import "github.com/masaic-ai-platform/gateway/pkg/gatewayerr"

func ErrVectorStoreNotFound(id string) *gatewayerr.GatewayError {
	return gatewayerr.NewNotFoundError("vector_store", id)
}

func ErrVectorStoreFileNotFound(storeID, fileID string) *gatewayerr.GatewayError {
	return gatewayerr.NewNotFoundError("vector_store_file", storeID+"/"+fileID)
}

func ErrFileNotFound(fileID string) *gatewayerr.GatewayError {
	return gatewayerr.NewNotFoundError("file", fileID)
}

func ErrInvalidChunkingStrategy(msg string) *gatewayerr.GatewayError {
	return gatewayerr.NewValidationError("invalid_chunking_strategy", msg)
}

func ErrEmbeddingDimensionMismatch(msg string) *gatewayerr.GatewayError {
	return gatewayerr.NewValidationError("embedding_dimension_mismatch", msg)
}

// ErrVectorStoreExpired reports a write or search attempted against an
// expired store, per SPEC_FULL's "writes are refused" and "a subsequent
// search returns validation_error" invariants.
func ErrVectorStoreExpired(id string) *gatewayerr.GatewayError {
	return gatewayerr.NewValidationError("vector_store_expired", "vector store "+id+" has expired")
}
