package snapshot

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/isoapp/iso_server/internal/market"
)

var (
	// ErrPersistence wraps every failure to read or write a snapshot.
	ErrPersistence = errors.New("snapshot persistence failure")

	// ErrNoSnapshot is returned by sinks when nothing has been saved yet.
	ErrNoSnapshot = errors.New("no snapshot stored")
)

// Encode renders data as indented JSON.
func Encode(data market.Data) ([]byte, error) {
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("%w: encode: %v", ErrPersistence, err)
	}
	return b, nil
}

// Decode reads the first JSON value in b. Bytes after that value are
// ignored so snapshots with trailing garbage from a torn rewrite still load.
func Decode(b []byte) (market.Data, error) {
	var data market.Data
	if err := json.NewDecoder(bytes.NewReader(b)).Decode(&data); err != nil {
		return market.Data{}, fmt.Errorf("%w: decode: %v", ErrPersistence, err)
	}
	return data, nil
}
