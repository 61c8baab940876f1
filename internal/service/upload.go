package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"iams/internal/domain"
	"iams/internal/model"
)

// UploadState is one state of the per-slot upload machine.
type UploadState string

const (
	UploadIdle        UploadState = "idle"
	UploadNaming      UploadState = "naming"
	UploadChecking    UploadState = "checking"
	UploadRestricted  UploadState = "restricted"
	UploadHashing     UploadState = "hashing"
	UploadRouting     UploadState = "routing"
	UploadWriting     UploadState = "writing"
	UploadRegistering UploadState = "registering"
	UploadRollback    UploadState = "rollback"
	UploadComplete    UploadState = "complete"
	UploadError       UploadState = "error"
)

// ProgressEvent is one tick of upload progress; percent is monotonically
// non-decreasing over a slot's lifetime and reaches 100 only on completion.
type ProgressEvent struct {
	Stage   string `json:"stage"`
	Percent int    `json:"percent"`
}

// UploadStatus is a point-in-time snapshot of a slot.
type UploadStatus struct {
	ID           string      `json:"id"`
	State        UploadState `json:"state"`
	Percent      int         `json:"percent"`
	Message      string      `json:"message,omitempty"`
	OriginalName string      `json:"original_name"`
	FinalName    string      `json:"final_name,omitempty"`
	FileID       *int64      `json:"file_id,omitempty"`
}

// restrictedMessage names the two destinations uploads are allowed into.
const restrictedMessage = "uploads are only allowed into your own directories or into other users' public folders"

// hashChunkSize bounds the work between two suspension points while hashing.
const hashChunkSize = 1 << 20

// UploadSlot drives a single file from submission to committed storage.
// The machine runs on its own goroutine once the name is confirmed; every
// progress emission and external I/O boundary is a suspension point where
// cancellation is honoured.
type UploadSlot struct {
	ID string

	mgr       *UploadManager
	requester int64
	dirID     *int64
	origName  string
	finalName string
	data      []byte

	mu       sync.Mutex
	state    UploadState
	percent  int
	message  string
	fileID   *int64
	cancel   context.CancelFunc
	finished bool

	events chan ProgressEvent
	done   chan struct{}
}

// UploadManager owns the live upload slots of all sessions.
type UploadManager struct {
	dirs    DirectoryService
	files   FileService
	content ContentStore
	timeout time.Duration
	log     *zap.Logger

	mu    sync.Mutex
	slots map[string]*UploadSlot
}

// NewUploadManager constructs an UploadManager. timeout bounds the database
// calls made while registering.
func NewUploadManager(dirs DirectoryService, files FileService, content ContentStore, timeout time.Duration, log *zap.Logger) *UploadManager {
	return &UploadManager{
		dirs:    dirs,
		files:   files,
		content: content,
		timeout: timeout,
		log:     log,
		slots:   make(map[string]*UploadSlot),
	}
}

// Begin accepts submitted bytes plus their original filename and opens a
// slot in the naming state, waiting for the rename confirmation.
func (m *UploadManager) Begin(requester int64, directoryID *int64, originalName string, data []byte) (*UploadSlot, error) {
	if strings.TrimSpace(originalName) == "" {
		return nil, domain.Errf(domain.KindInvalidName, "original filename must not be empty")
	}
	slot := &UploadSlot{
		ID:        uuid.NewString(),
		mgr:       m,
		requester: requester,
		dirID:     directoryID,
		origName:  originalName,
		data:      data,
		state:     UploadNaming,
		events:    make(chan ProgressEvent, 64),
		done:      make(chan struct{}),
	}
	m.mu.Lock()
	m.slots[slot.ID] = slot
	m.mu.Unlock()
	return slot, nil
}

// Get returns a live slot by id.
func (m *UploadManager) Get(id string) (*UploadSlot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.slots[id]
	return s, ok
}

func (m *UploadManager) remove(id string) {
	m.mu.Lock()
	delete(m.slots, id)
	m.mu.Unlock()
}

// FinalFilename applies the rename rule: the original extension survives the
// custom name; without one the custom name is used as-is.
func FinalFilename(originalName, customName string) string {
	if ext := filepath.Ext(originalName); ext != "" {
		return customName + ext
	}
	return customName
}

// Status returns a snapshot of the slot.
func (s *UploadSlot) Status() UploadStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return UploadStatus{
		ID:           s.ID,
		State:        s.state,
		Percent:      s.percent,
		Message:      s.message,
		OriginalName: s.origName,
		FinalName:    s.finalName,
		FileID:       s.fileID,
	}
}

// Events exposes the slot's progress stream. The channel is closed when the
// machine reaches a terminal state.
func (s *UploadSlot) Events() <-chan ProgressEvent {
	return s.events
}

// Done is closed together with the event stream.
func (s *UploadSlot) Done() <-chan struct{} {
	return s.done
}

// Confirm accepts the custom name and starts the machine. It returns
// immediately; progress is observed through Events.
func (s *UploadSlot) Confirm(customName string) error {
	if err := validation.Validate(strings.TrimSpace(customName),
		validation.Required,
		validation.Length(1, 255),
	); err != nil {
		return domain.Errf(domain.KindInvalidName, "invalid name: %v", err)
	}

	s.mu.Lock()
	if s.state != UploadNaming {
		state := s.state
		s.mu.Unlock()
		return domain.Errf(domain.KindConflict, "upload slot is %s, not awaiting a name", state)
	}
	s.finalName = FinalFilename(s.origName, strings.TrimSpace(customName))
	s.state = UploadChecking
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.mu.Unlock()

	go s.run(ctx)
	return nil
}

// Cancel aborts the upload. In naming or restricted the slot returns to idle
// at once; while the machine is running, cancellation is honoured at the
// next suspension point (with rollback if bytes were already written).
func (s *UploadSlot) Cancel() {
	s.mu.Lock()
	switch s.state {
	case UploadNaming, UploadRestricted:
		s.state = UploadIdle
		s.data = nil
		s.mu.Unlock()
		s.finish()
		s.mgr.remove(s.ID)
		return
	}
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Acknowledge clears a terminal state back to idle and retires the slot.
// It has no effect while the machine is still running.
func (s *UploadSlot) Acknowledge() {
	s.mu.Lock()
	terminal := s.state == UploadRestricted || s.state == UploadError || s.state == UploadComplete
	if terminal {
		s.state = UploadIdle
		s.data = nil
	}
	s.mu.Unlock()
	if terminal {
		s.mgr.remove(s.ID)
	}
}

func (s *UploadSlot) setState(state UploadState, message string) {
	s.mu.Lock()
	s.state = state
	s.message = message
	s.mu.Unlock()
}

// emit records and publishes one progress tick, then yields so the consumer
// can observe it before the machine continues.
func (s *UploadSlot) emit(stage string, percent int) {
	s.mu.Lock()
	if percent < s.percent {
		percent = s.percent
	}
	s.percent = percent
	finished := s.finished
	s.mu.Unlock()
	if finished {
		return
	}

	select {
	case s.events <- ProgressEvent{Stage: stage, Percent: percent}:
	default:
		// Consumer fell too far behind; the snapshot still carries progress.
	}
	runtime.Gosched()
}

func (s *UploadSlot) finish() {
	s.mu.Lock()
	if s.finished {
		s.mu.Unlock()
		return
	}
	s.finished = true
	s.mu.Unlock()
	close(s.events)
	close(s.done)
}

func (s *UploadSlot) fail(message string) {
	s.setState(UploadError, message)
	s.emit("error", s.Status().Percent)
	s.finish()
}

func (s *UploadSlot) run(ctx context.Context) {
	m := s.mgr

	// checking
	s.emit("checking access", 5)
	if s.dirID == nil {
		s.setState(UploadRestricted, restrictedMessage)
		s.emit("restricted", 5)
		s.finish()
		return
	}
	access, err := m.dirs.Access(ctx, s.requester, *s.dirID)
	if err != nil {
		s.fail(err.Error())
		return
	}
	if !access.CanUpload {
		s.setState(UploadRestricted, restrictedMessage)
		s.emit("restricted", 5)
		s.finish()
		return
	}

	// hashing: chunked so cancellation and progress interleave with work.
	s.setState(UploadHashing, "")
	size := int64(len(s.data))
	h := sha256.New()
	var hashed int64
	lastTick := -1
	for hashed < size || size == 0 {
		if err := ctx.Err(); err != nil {
			s.fail("upload cancelled")
			return
		}
		end := hashed + hashChunkSize
		if end > size {
			end = size
		}
		h.Write(s.data[hashed:end])
		hashed = end

		pct := 10
		if size > 0 {
			pct = 10 + int(30*hashed/size)
		}
		// Tick at most every 5 points to bound the event stream.
		if pct/5 > lastTick {
			lastTick = pct / 5
			s.emit("hashing", pct)
		}
		if size == 0 {
			break
		}
	}
	checksum := hex.EncodeToString(h.Sum(nil))

	// routing
	s.setState(UploadRouting, "")
	kind := model.KindForFilename(s.origName)
	placement := m.content.PlacementFor(kind, size)
	s.emit("routing", 45)

	// writing
	s.setState(UploadWriting, "")
	s.emit("writing", 50)
	var handle string
	if placement == model.PlacementExternal {
		if err := ctx.Err(); err != nil {
			s.fail("upload cancelled")
			return
		}
		handle, err = m.content.WriteExternal(ctx, s.finalName, bytes.NewReader(s.data), size)
		if err != nil {
			s.fail(err.Error())
			return
		}
	}
	s.emit("writing", 80)

	// registering, bounded by the configured database deadline.
	s.setState(UploadRegistering, "")
	s.emit("registering", 90)
	regCtx, cancelReg := context.WithTimeout(ctx, m.timeout)
	defer cancelReg()

	var inline []byte
	if placement == model.PlacementInline {
		inline = s.data
	}
	file, err := m.files.Register(regCtx, RegisterInput{
		Requester:        s.requester,
		DirectoryID:      s.dirID,
		Filename:         s.finalName,
		OriginalFilename: s.origName,
		Kind:             kind,
		MimeType:         mimeForKind(kind),
		Size:             size,
		Checksum:         checksum,
		Placement:        placement,
		ExternalHandle:   handle,
		Inline:           inline,
	})
	if err != nil {
		// rollback: written external bytes must not outlive the failure.
		if placement == model.PlacementExternal {
			s.setState(UploadRollback, "")
			s.emit("rolling back", 90)
			_ = m.content.DeleteExternal(context.Background(), handle)
		}
		s.fail(err.Error())
		return
	}

	s.mu.Lock()
	s.fileID = &file.ID
	s.state = UploadComplete
	s.data = nil
	s.mu.Unlock()
	s.emit("complete", 100)
	s.finish()

	m.log.Info("upload complete",
		zap.String("slot_id", s.ID),
		zap.Int64("file_id", file.ID),
		zap.String("filename", s.finalName),
		zap.String("placement", string(placement)),
	)
}

func mimeForKind(kind model.FileKind) string {
	switch kind {
	case model.FileKindMarkdown:
		return "text/markdown"
	case model.FileKindText:
		return "text/plain"
	case model.FileKindPDF:
		return "application/pdf"
	case model.FileKindSVG:
		return "image/svg+xml"
	case model.FileKindPNG:
		return "image/png"
	case model.FileKindJPEG:
		return "image/jpeg"
	default:
		return "application/octet-stream"
	}
}
