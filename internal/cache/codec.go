package cache

import (
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/mstavrou/macrodash/internal/domain"
)

// envelope is the serialized form of an entry. Payload, timestamp, and the
// fallback flag travel as one value so a backend replace can never leave
// them mismatched.
type envelope struct {
	Payload   domain.Payload `msgpack:"payload"`
	FetchedAt int64          `msgpack:"fetched_at"` // unix seconds, 0 = never
	Fallback  bool           `msgpack:"fallback"`
}

func encodeEntry(payload domain.Payload, fetchedAt time.Time, fallback bool) ([]byte, error) {
	env := envelope{Payload: payload, Fallback: fallback}
	if !fetchedAt.IsZero() {
		env.FetchedAt = fetchedAt.Unix()
	}

	raw, err := msgpack.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal cache envelope: %w", err)
	}
	return raw, nil
}

func decodeEntry(freq domain.Frequency, raw []byte) (Entry, error) {
	var env envelope
	if err := msgpack.Unmarshal(raw, &env); err != nil {
		return Entry{}, fmt.Errorf("failed to unmarshal cache envelope: %w", err)
	}

	entry := Entry{
		Frequency: freq,
		Payload:   env.Payload,
		Fallback:  env.Fallback,
	}
	if env.FetchedAt != 0 {
		entry.FetchedAt = time.Unix(env.FetchedAt, 0).UTC()
	}
	return entry, nil
}
