// Package snapshot writes and reads a point-in-time dump of every open job
// and its task tree; neither cmd/swarmforged nor cmd/swarmctl calls it. The
// on-disk envelope is a
// header line, a hex sha256 digest of the uncompressed body, then the body
// itself compressed with flate (§6.3).
package snapshot

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/flate"
)

// Header identifies the snapshot's provenance, written uncompressed as the
// first line so a reader can sanity-check version/tick before paying the
// cost of inflating the body.
type Header struct {
	Version int    `json:"version"`
	WorldID string `json:"world_id"`
	Tick    uint64 `json:"tick"`
}

// JobV1 is one job's persisted state (§3, §4.2).
type JobV1 struct {
	ID      string `json:"id"`
	Kind    string `json:"kind"`
	Creator string `json:"creator"`
	State   int    `json:"state"`

	PrimaryTaskKind string  `json:"primary_task_kind"`
	PrimaryTask     *TaskV1 `json:"primary_task,omitempty"`

	Participants []string `json:"participants"`
}

// TaskV1 is one task-tree node's persisted state, recursive over Children
// (§4.3).
type TaskV1 struct {
	ID                string    `json:"id"`
	Kind              string    `json:"kind"`
	State             int       `json:"state"`
	CurrentChildIndex int       `json:"current_child_index"`
	Children          []*TaskV1 `json:"children,omitempty"`
}

// SnapshotV1 is the full persisted envelope body: every job the Job
// Manager still tracks as pending or active, plus the tick it was taken at.
type SnapshotV1 struct {
	Header Header  `json:"header"`
	Jobs   []JobV1 `json:"jobs"`
}

// envelope is the on-disk wire shape: a header line, a hex sha256 digest of
// the (uncompressed) JSON body, then the flate-compressed body itself. The
// digest lets a reader detect silent corruption (e.g. a truncated write)
// before trying to json.Unmarshal.
type envelope struct {
	Header Header `json:"header"`
	Digest string `json:"digest"`
}

// WriteSnapshot writes snap to path, creating parent directories as needed.
func WriteSnapshot(path string, snap SnapshotV1) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	body, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot body: %w", err)
	}
	sum := sha256.Sum256(body)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	env := envelope{Header: snap.Header, Digest: hex.EncodeToString(sum[:])}
	hb, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope header: %w", err)
	}
	bw := bufio.NewWriter(f)
	if _, err := bw.Write(hb); err != nil {
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		return err
	}

	fw, err := flate.NewWriter(bw, flate.DefaultCompression)
	if err != nil {
		return fmt.Errorf("new flate writer: %w", err)
	}
	if _, err := fw.Write(body); err != nil {
		return err
	}
	if err := fw.Close(); err != nil {
		return fmt.Errorf("flate close: %w", err)
	}
	return bw.Flush()
}

// ReadSnapshot reads path back, verifying the body's digest against the
// envelope header before returning it.
func ReadSnapshot(path string) (SnapshotV1, error) {
	var snap SnapshotV1

	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()

	br := bufio.NewReader(f)
	line, err := br.ReadBytes('\n')
	if err != nil {
		return snap, fmt.Errorf("read envelope header: %w", err)
	}
	var env envelope
	if err := json.Unmarshal(line, &env); err != nil {
		return snap, fmt.Errorf("unmarshal envelope header: %w", err)
	}

	fr := flate.NewReader(br)
	defer fr.Close()

	body := make([]byte, 0, 64*1024)
	buf := make([]byte, 32*1024)
	for {
		n, rerr := fr.Read(buf)
		if n > 0 {
			body = append(body, buf[:n]...)
		}
		if rerr != nil {
			break
		}
	}

	sum := sha256.Sum256(body)
	if hex.EncodeToString(sum[:]) != env.Digest {
		return snap, fmt.Errorf("snapshot digest mismatch: %s", path)
	}

	if err := json.Unmarshal(body, &snap); err != nil {
		return snap, fmt.Errorf("unmarshal snapshot body: %w", err)
	}
	return snap, nil
}
