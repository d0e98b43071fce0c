package discovery

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// Cursor is the composite pagination state: which niche query is active and
// the upstream provider's continuation token for it. Opaque to callers via
// Encode/Decode; never stored server-side.
type Cursor struct {
	QueryIndex int    `json:"queryIndex"`
	PageToken  string `json:"pageToken,omitempty"`
}

// CacheEligible reports whether this cursor addresses the very first page of
// the very first niche query — the only request the feed cache serves.
// Every other request bypasses cache and hits the provider, trading some
// quota efficiency for pagination continuity.
func (c Cursor) CacheEligible() bool {
	return c.QueryIndex == 0 && c.PageToken == ""
}

// Encode renders the cursor as an opaque continuation token.
func (c Cursor) Encode() string {
	payload, _ := json.Marshal(c)
	return base64.RawURLEncoding.EncodeToString(payload)
}

// DecodeCursor parses an opaque continuation token. An empty token is the
// zero cursor (first page of the first query).
func DecodeCursor(token string) (Cursor, error) {
	if token == "" {
		return Cursor{}, nil
	}

	payload, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return Cursor{}, fmt.Errorf("decode cursor: %w", err)
	}

	var c Cursor
	if err := json.Unmarshal(payload, &c); err != nil {
		return Cursor{}, fmt.Errorf("decode cursor: %w", err)
	}

	if c.QueryIndex < 0 {
		return Cursor{}, fmt.Errorf("decode cursor: negative query index")
	}

	return c, nil
}

// advance computes the next cursor after a page fetch. If the provider
// returned a continuation token, the same query continues with it; once a
// query is exhausted the cursor moves to the next query's first page. This
// yields a single linear traversal: all of query 0's pages, then query 1's,
// and so on.
func advance(current Cursor, nextPageToken string, totalQueries int) (next *Cursor, hasMore bool) {
	if nextPageToken != "" {
		return &Cursor{QueryIndex: current.QueryIndex, PageToken: nextPageToken}, true
	}
	if current.QueryIndex+1 < totalQueries {
		return &Cursor{QueryIndex: current.QueryIndex + 1}, true
	}
	return nil, false
}
