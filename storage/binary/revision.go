package binary

import (
	"crypto/sha1"
	"encoding/hex"
	"strconv"
	"strings"
)

// NextRevision implements the revision engine (spec §4.B): a pure function
// from the previous revision marker and the newly encoded body to the next
// marker, "N-H".
//
// N increases by exactly 1 from the previous marker's generation number;
// an empty or malformed previous marker starts a fresh document at N=1. H
// is the lowercase hex SHA-1 of encodedBody, giving clients a
// content-addressed integrity check that is stable across re-encodes
// because the codec is deterministic.
func NextRevision(previous string, encodedBody []byte) string {
	n := nextGeneration(previous)
	sum := sha1.Sum(encodedBody)
	return strconv.FormatInt(n, 10) + "-" + hex.EncodeToString(sum[:])
}

// nextGeneration parses the "N-" prefix of a revision marker and returns
// N+1, or 1 if previous is empty or malformed.
func nextGeneration(previous string) int64 {
	if previous == "" {
		return 1
	}
	dash := strings.IndexByte(previous, '-')
	if dash <= 0 {
		return 1
	}
	n, err := strconv.ParseInt(previous[:dash], 10, 64)
	if err != nil || n < 1 {
		return 1
	}
	return n + 1
}

// RevisionGeneration returns the N part of a revision marker, or 0 if rev
// is empty or malformed. Used by property tests verifying monotonicity.
func RevisionGeneration(rev string) int64 {
	if rev == "" {
		return 0
	}
	dash := strings.IndexByte(rev, '-')
	if dash <= 0 {
		return 0
	}
	n, err := strconv.ParseInt(rev[:dash], 10, 64)
	if err != nil {
		return 0
	}
	return n
}
