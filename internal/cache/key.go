package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/mohik-agnext/docker-chatbot/internal/corpus"
)

// KeyInputs are the fields that determine a query's answer. Any change to
// any field must produce a different key, or the cache would serve results
// computed under different parameters.
type KeyInputs struct {
	// Query is the raw query text; it is normalized here.
	Query string
	// Namespaces is the selected namespace set; order-insensitive.
	Namespaces []string
	// TopK is the requested result count.
	TopK int
	// RRFConstant and the weights are the fusion parameters.
	RRFConstant   float64
	LexicalWeight float64
	VectorWeight  float64
	// CorpusHash ties the entry to one corpus version, so a corpus swap
	// implicitly invalidates every prior entry.
	CorpusHash string
}

// Key derives the cache key digest. Query text is case- and
// whitespace-normalized so trivially different spellings of the same
// question share an entry; namespaces are sorted so selection order does
// not fragment the cache.
func Key(in KeyInputs) string {
	h := sha256.New()

	writeField := func(s string) {
		h.Write([]byte(s))
		h.Write([]byte{0})
	}

	writeField(strings.Join(strings.Fields(strings.ToLower(in.Query)), " "))
	writeField(strings.Join(corpus.SortedNames(in.Namespaces), ","))
	writeField(fmt.Sprintf("%d", in.TopK))
	writeField(fmt.Sprintf("%g:%g:%g", in.RRFConstant, in.LexicalWeight, in.VectorWeight))
	writeField(in.CorpusHash)

	return hex.EncodeToString(h.Sum(nil))
}
