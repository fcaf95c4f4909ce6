package archive

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/galaxycore/galaxyview/pkg/core"
	"github.com/pierrec/lz4/v4"
	"lukechampine.com/blake3"
)

// encoded is a snapshot ready to store. The fetch time is kept out of the
// payload so two fetches of the same turn share a digest.
type encoded struct {
	payload   []byte
	digest    string
	fetchedAt time.Time
}

func encode(snap *core.Snapshot) (encoded, error) {
	body := *snap
	body.FetchedAt = time.Time{}

	raw, err := json.Marshal(&body)
	if err != nil {
		return encoded{}, fmt.Errorf("marshal snapshot: %w", err)
	}
	sum := blake3.Sum256(raw)

	var buf bytes.Buffer
	zw := lz4.NewWriter(&buf)
	if _, err := zw.Write(raw); err != nil {
		return encoded{}, fmt.Errorf("compress snapshot: %w", err)
	}
	if err := zw.Close(); err != nil {
		return encoded{}, fmt.Errorf("compress snapshot: %w", err)
	}

	return encoded{
		payload:   buf.Bytes(),
		digest:    hex.EncodeToString(sum[:]),
		fetchedAt: snap.FetchedAt,
	}, nil
}

func decode(payload []byte, fetchedAt time.Time) (*core.Snapshot, error) {
	raw, err := io.ReadAll(lz4.NewReader(bytes.NewReader(payload)))
	if err != nil {
		return nil, fmt.Errorf("decompress snapshot: %w", err)
	}
	var snap core.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	if err := snap.Validate(); err != nil {
		return nil, fmt.Errorf("archived snapshot invalid: %w", err)
	}
	snap.FetchedAt = fetchedAt
	return &snap, nil
}
