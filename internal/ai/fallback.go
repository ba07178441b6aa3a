package ai

import (
	"crypto/sha256"
	"encoding/binary"
)

// FallbackEmbedding derives a deterministic pseudo-embedding from the text
// bytes. Equal (text, mode) inputs always produce bit-identical vectors, so
// documents indexed under the fallback remain self-consistent and searchable
// against queries embedded the same way. The vectors carry no semantic
// meaning.
//
// Each 32-byte hash block is keyed by the mode and a running block counter,
// and every hash byte maps linearly onto [-1, 1].
func FallbackEmbedding(text string, mode EmbedMode, dim int) []float32 {
	vec := make([]float32, 0, dim)

	var counter [8]byte
	for block := 0; len(vec) < dim; block++ {
		binary.BigEndian.PutUint64(counter[:], uint64(block))

		h := sha256.New()
		h.Write([]byte(text))
		h.Write([]byte(mode))
		h.Write(counter[:])

		for _, b := range h.Sum(nil) {
			if len(vec) == dim {
				break
			}
			vec = append(vec, float32(b)/127.5-1.0)
		}
	}

	return vec
}

// VectorLooksReal reports whether a vector plausibly came from the remote
// model rather than the fallback. Model embeddings concentrate tightly around
// zero, while fallback components are spread uniformly over [-1, 1]
// (variance around 1/3). This is a health signal only and never gates
// business logic.
func VectorLooksReal(vec []float32) bool {
	if len(vec) == 0 {
		return false
	}

	var mean float64
	for _, v := range vec {
		mean += float64(v)
	}
	mean /= float64(len(vec))

	var variance float64
	for _, v := range vec {
		d := float64(v) - mean
		variance += d * d
	}
	variance /= float64(len(vec))

	return variance < 0.2
}
