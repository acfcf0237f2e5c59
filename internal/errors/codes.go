package errors

// Error codes for the retrieval core. The numeric band encodes the category:
// 1xx config, 2xx corpus/storage, 3xx retrieval pipeline, 4xx external backends.
const (
	ErrCodeConfigInvalid = "ERR_101_CONFIG_INVALID"
	ErrCodeConfigMissing = "ERR_102_CONFIG_MISSING"

	ErrCodeCorpusLoad    = "ERR_201_CORPUS_LOAD"
	ErrCodeCorpusInvalid = "ERR_202_CORPUS_INVALID"
	ErrCodeStoreFailure  = "ERR_203_STORE_FAILURE"

	ErrCodeNotReady       = "ERR_301_NOT_READY"
	ErrCodeScopeSelection = "ERR_302_SCOPE_SELECTION"
	ErrCodeIndexStale     = "ERR_303_INDEX_STALE"
	ErrCodeCacheBackend   = "ERR_304_CACHE_BACKEND"

	ErrCodeVectorBackend    = "ERR_401_VECTOR_BACKEND"
	ErrCodeEmbeddingBackend = "ERR_402_EMBEDDING_BACKEND"

	ErrCodeInternal = "ERR_900_INTERNAL"
)

// Category groups errors by subsystem.
type Category string

const (
	CategoryConfig    Category = "config"
	CategoryCorpus    Category = "corpus"
	CategoryRetrieval Category = "retrieval"
	CategoryBackend   Category = "backend"
	CategoryInternal  Category = "internal"
)

// Severity indicates how an error should be handled by callers.
type Severity string

const (
	// SeverityWarning errors are recovered locally (degraded results, fallbacks).
	SeverityWarning Severity = "warning"
	// SeverityError errors fail the current request but not the process.
	SeverityError Severity = "error"
	// SeverityFatal errors should abort startup.
	SeverityFatal Severity = "fatal"
)

// categoryFromCode derives the category from the code's numeric band.
func categoryFromCode(code string) Category {
	switch {
	case len(code) > 5 && code[4] == '1':
		return CategoryConfig
	case len(code) > 5 && code[4] == '2':
		return CategoryCorpus
	case len(code) > 5 && code[4] == '3':
		return CategoryRetrieval
	case len(code) > 5 && code[4] == '4':
		return CategoryBackend
	default:
		return CategoryInternal
	}
}

// severityFromCode derives the default severity for a code.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeConfigInvalid, ErrCodeConfigMissing, ErrCodeCorpusLoad, ErrCodeCorpusInvalid:
		return SeverityFatal
	case ErrCodeScopeSelection, ErrCodeVectorBackend, ErrCodeEmbeddingBackend, ErrCodeCacheBackend:
		// Recovered locally: fallback namespaces, lexical-only fusion, cache bypass.
		return SeverityWarning
	default:
		return SeverityError
	}
}

// isRetryableCode reports whether the operation behind the code is worth retrying.
func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeNotReady, ErrCodeVectorBackend, ErrCodeEmbeddingBackend:
		return true
	default:
		return false
	}
}
