// Package persistence implements the streaming, encrypted backup/restore
// pipeline (spec.md §4.8): a framed, AES-256-CBC-encrypted byte stream,
// independent of destination medium.
package persistence

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/cachify/cachify/cerr"
	"github.com/cachify/cachify/encoding"
	"github.com/cachify/cachify/internal/queue"
	"github.com/cachify/cachify/record"
)

// restoreQueueConcurrency bounds in-flight frame-decode memory during
// restore (spec.md §4.8 "bounded restore-queue").
const restoreQueueConcurrency = 4

// kvsStore is the subset of kvs.Manager the pipeline depends on.
type kvsStore interface {
	ExportAll() []record.KVS
	RestoreRecord(ctx context.Context, rec record.KVS) error
}

// filesStore is the subset of files.Manager the pipeline depends on.
type filesStore interface {
	ExportAll() []record.File
	RestoreRecord(ctx context.Context, rec record.File) error
}

// Pipeline is the backup/restore orchestrator. It is independent of
// destination: Use registers a named Destination; Backup/Restore address it
// by name.
type Pipeline struct {
	mu    sync.Mutex
	dests map[string]Destination
	kv    kvsStore
	fl    filesStore
	key   []byte
}

// New creates a pipeline over kv and fl. If key is nil, DefaultKey is
// derived lazily on first use.
func New(kv kvsStore, fl filesStore, key []byte) *Pipeline {
	return &Pipeline{dests: make(map[string]Destination), kv: kv, fl: fl, key: key}
}

// Use registers dest under service, per spec.md §6 "use(service, configs)".
func (p *Pipeline) Use(service string, dest Destination) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dests[service] = dest
}

func (p *Pipeline) resolveKey() []byte {
	if len(p.key) > 0 {
		return p.key
	}
	return DefaultKey()
}

func (p *Pipeline) dest(service string) (Destination, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	d, ok := p.dests[service]
	if !ok {
		return nil, cerr.NewError(cerr.Validation, fmt.Errorf("persistence: destination %q is not registered", service), service)
	}
	return d, nil
}

// Backup streams every flavor whose manager has at least one record to
// service as "<flavor>-<name>.backup".
func (p *Pipeline) Backup(ctx context.Context, service, name string) error {
	d, err := p.dest(service)
	if err != nil {
		return err
	}

	if kvRecords := p.kv.ExportAll(); len(kvRecords) > 0 {
		frames, err := encodeAll("kvs", kvRecords)
		if err != nil {
			return err
		}
		if err := p.writeBackup(ctx, d, "kvs", name, frames); err != nil {
			return err
		}
	}
	if fileRecords := p.fl.ExportAll(); len(fileRecords) > 0 {
		frames, err := encodeAll("files", fileRecords)
		if err != nil {
			return err
		}
		if err := p.writeBackup(ctx, d, "files", name, frames); err != nil {
			return err
		}
	}
	return nil
}

func encodeAll[T any](flavor string, records []T) ([][]byte, error) {
	frames := make([][]byte, 0, len(records))
	for _, rec := range records {
		f, err := encodeFrame(flavor, rec)
		if err != nil {
			return nil, cerr.NewError(cerr.Validation, err, nil)
		}
		frames = append(frames, f)
	}
	return frames, nil
}

func (p *Pipeline) writeBackup(ctx context.Context, d Destination, flavor, name string, frames [][]byte) error {
	var buf bytes.Buffer
	if err := writeFrames(&buf, frames); err != nil {
		return cerr.NewError(cerr.Validation, err, nil)
	}
	iv, ciphertext, err := encrypt(p.resolveKey(), buf.Bytes())
	if err != nil {
		return cerr.NewError(cerr.Validation, err, nil)
	}

	fileName := fmt.Sprintf("%s-%s.backup", flavor, name)
	w, err := d.Create(ctx, fileName)
	if err != nil {
		return cerr.NewError(cerr.Validation, err, fileName)
	}
	defer w.Close()

	if _, err := w.Write(iv); err != nil {
		return cerr.NewError(cerr.EngineTransport, err, fileName)
	}
	if _, err := w.Write(ciphertext); err != nil {
		return cerr.NewError(cerr.EngineTransport, err, fileName)
	}
	return nil
}

// Restore reads every backup file present for name at service, decrypts,
// reassembles frames, and inserts each decoded record via the matching
// manager's restore-mode path. A malformed frame is logged and skipped;
// the rest of that file's restore continues. A decrypt failure (wrong key)
// aborts that file's restore entirely.
func (p *Pipeline) Restore(ctx context.Context, service, name string) error {
	d, err := p.dest(service)
	if err != nil {
		return err
	}
	for _, flavor := range [2]string{"kvs", "files"} {
		fileName := fmt.Sprintf("%s-%s.backup", flavor, name)
		if err := p.restoreFile(ctx, d, flavor, fileName); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return err
		}
	}
	return nil
}

func (p *Pipeline) restoreFile(ctx context.Context, d Destination, flavor, fileName string) error {
	r, err := d.Open(ctx, fileName)
	if err != nil {
		return err
	}
	defer r.Close()

	iv := make([]byte, ivSize)
	if _, err := io.ReadFull(r, iv); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return cerr.NewError(cerr.EngineTransport, err, fileName)
	}
	ciphertext, err := io.ReadAll(r)
	if err != nil {
		return cerr.NewError(cerr.EngineTransport, err, fileName)
	}

	plaintext, err := decrypt(p.resolveKey(), iv, ciphertext)
	if err != nil {
		return cerr.NewError(cerr.RestoreKeyMismatch, err, fileName)
	}

	rq := queue.New(ctx, restoreQueueConcurrency)
	fr := newFrameReader(bytes.NewReader(plaintext))
	idx := 0
	for {
		data, ferr := fr.next()
		if ferr == io.EOF {
			break
		}
		if ferr != nil {
			slog.Warn("cachify: restore frame stream truncated, stopping", "file", fileName, "error", ferr)
			break
		}
		frameFlavor, payload, derr := decodeFrame(data)
		if derr != nil {
			slog.Warn("cachify: restore frame decode failed, skipping frame", "file", fileName, "error", derr)
			continue
		}
		if frameFlavor != flavor {
			slog.Warn("cachify: restore frame flavor mismatch, skipping frame", "file", fileName, "want", flavor, "got", frameFlavor)
			continue
		}
		idx++
		taskID := fmt.Sprintf("restore:%s:%d", fileName, idx)
		payload := payload
		_ = rq.Enqueue(&queue.Task{
			ID:       taskID,
			Type:     "restore-frame",
			Priority: queue.PriorityHigh,
			Action: func(taskCtx context.Context) error {
				return p.restoreOne(taskCtx, flavor, payload)
			},
			OnReject: func(err error) {
				slog.Warn("cachify: restore frame failed, skipping", "file", fileName, "error", err)
			},
		})
	}
	rq.WaitForIdle()
	rq.Close()
	return nil
}

func (p *Pipeline) restoreOne(ctx context.Context, flavor string, payload json.RawMessage) error {
	switch flavor {
	case "kvs":
		var rec record.KVS
		if err := encoding.DefaultMarshaler.Unmarshal(payload, &rec); err != nil {
			return err
		}
		return p.kv.RestoreRecord(ctx, rec)
	case "files":
		var rec record.File
		if err := encoding.DefaultMarshaler.Unmarshal(payload, &rec); err != nil {
			return err
		}
		return p.fl.RestoreRecord(ctx, rec)
	default:
		return fmt.Errorf("persistence: unknown flavor %q", flavor)
	}
}
