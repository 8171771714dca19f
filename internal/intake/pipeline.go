package intake

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/png"
	"log/slog"
	"sync"

	"github.com/zarlcorp/zclover/internal/handle"
	"github.com/zarlcorp/zclover/internal/notify"
)

// State is a snapshot of the pipeline.
type State struct {
	RawFile        *File
	DecodedPreview *Preview
	ObjectURL      handle.Handle
	CropOpen       bool
	Decoding       bool
}

// Cropped is the outcome of a finished crop step.
type Cropped struct {
	Handle handle.Handle
	PNG    []byte
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the pipeline logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) { p.log = l }
}

// WithDecoder replaces the image decoder.
func WithDecoder(fn DecodeFunc) Option {
	return func(p *Pipeline) { p.decode = fn }
}

type attempt struct {
	gen    uint64
	cancel context.CancelFunc
	done   chan struct{}
}

// Pipeline validates, decodes and crops one avatar image at a time. The
// most recently selected file always wins: a decode superseded by a newer
// selection or by Teardown never touches the state.
type Pipeline struct {
	slot   *handle.Slot
	notify notify.Notifier
	decode DecodeFunc
	log    *slog.Logger

	mu      sync.Mutex
	state   State
	gen     uint64
	current *attempt
	err     error
	closed  bool
	wg      sync.WaitGroup
}

// New creates a pipeline that keeps its preview handle in slot.
func New(slot *handle.Slot, n notify.Notifier, opts ...Option) *Pipeline {
	p := &Pipeline{
		slot:   slot,
		notify: n,
		decode: Decode,
		log:    slog.New(slog.DiscardHandler),
	}
	for _, o := range opts {
		o(p)
	}
	if p.notify == nil {
		p.notify = notify.Discard{}
	}
	return p
}

// Select validates f and starts decoding it. A rejected file leaves the
// state untouched.
func (p *Pipeline) Select(ctx context.Context, f File) error {
	if !Accepts(f.Type) {
		p.notify.Error(UnsupportedFormatMessage)
		return fmt.Errorf("select %s (%q): %w", f.Name, f.Type, ErrUnsupportedFormat)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrClosed
	}

	if p.current != nil {
		p.current.cancel()
	}

	prev := p.state
	prev.Decoding = false

	p.gen++
	dctx, cancel := context.WithCancel(ctx)
	a := &attempt{gen: p.gen, cancel: cancel, done: make(chan struct{})}
	p.current = a
	p.err = nil

	p.state.RawFile = &f
	p.state.DecodedPreview = nil
	p.state.CropOpen = false
	p.state.Decoding = true

	p.log.Debug("decode start", "file", f.Name, "gen", a.gen)

	p.wg.Add(1)
	go p.run(dctx, a, f, prev)
	return nil
}

func (p *Pipeline) run(ctx context.Context, a *attempt, f File, prev State) {
	defer p.wg.Done()
	defer close(a.done)
	defer a.cancel()

	preview, err := p.decode(ctx, f)

	p.mu.Lock()
	defer p.mu.Unlock()

	if a.gen != p.gen || ctx.Err() != nil {
		p.log.Debug("decode dropped", "file", f.Name, "gen", a.gen)
		return
	}

	if err != nil {
		if !errors.Is(err, ErrDecodeFailed) {
			err = fmt.Errorf("%w: %s: %v", ErrDecodeFailed, f.Name, err)
		}
		p.err = err
		p.state = prev
		p.log.Debug("decode failed", "file", f.Name, "err", err)
		p.notify.Error(DecodeFailedMessage)
		return
	}

	p.state.Decoding = false
	p.openCropLocked(preview)
	p.log.Debug("decode done", "file", f.Name, "gen", a.gen)
}

// OpenCropStep shows the crop step for preview.
func (p *Pipeline) OpenCropStep(preview Preview) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.openCropLocked(preview)
}

func (p *Pipeline) openCropLocked(preview Preview) {
	p.state.DecodedPreview = &preview
	p.state.CropOpen = true
}

// Crop runs c over the decoded preview, stores the result as the new
// preview handle and closes the crop step.
func (p *Pipeline) Crop(ctx context.Context, c Cropper) (Cropped, error) {
	p.mu.Lock()
	if !p.state.CropOpen || p.state.DecodedPreview == nil {
		p.mu.Unlock()
		return Cropped{}, ErrNoPreview
	}
	preview := *p.state.DecodedPreview
	p.mu.Unlock()

	if c == nil {
		c = CenterSquare
	}
	img, err := c.Crop(ctx, preview.Image)
	if err != nil {
		return Cropped{}, fmt.Errorf("crop: %w", err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return Cropped{}, fmt.Errorf("encode png: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return Cropped{}, ErrClosed
	}

	h := p.slot.Registry().Create(buf.Bytes(), "image/png")
	p.slot.Replace(h)
	p.state.DecodedPreview = nil
	p.state.CropOpen = false
	return Cropped{Handle: h, PNG: buf.Bytes()}, nil
}

// CancelCrop closes the crop step without producing an image.
func (p *Pipeline) CancelCrop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state.DecodedPreview = nil
	p.state.CropOpen = false
}

// SetPreview makes h the displayed preview and releases the previous one.
func (p *Pipeline) SetPreview(h handle.Handle) {
	p.slot.Replace(h)
}

// Teardown cancels any in-flight decode, waits for it to exit and releases
// the current preview handle. The pipeline rejects further selections.
func (p *Pipeline) Teardown() {
	p.mu.Lock()
	if p.current != nil {
		p.current.cancel()
	}
	p.gen++
	p.closed = true
	p.state = State{}
	p.mu.Unlock()

	p.wg.Wait()
	p.slot.Release()
}

// Wait blocks until the most recent decode has settled.
func (p *Pipeline) Wait() {
	p.mu.Lock()
	a := p.current
	p.mu.Unlock()

	if a != nil {
		<-a.done
	}
}

// State returns a snapshot of the pipeline.
func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := p.state
	s.ObjectURL = p.slot.Current()
	return s
}

// Err returns the failure of the most recent decode, if any.
func (p *Pipeline) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}
