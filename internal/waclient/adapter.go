// Package waclient adapts an external messaging-client runner to the
// ingestion pipeline. The runner is a child process owning the actual
// protocol session (authentication, encryption, wire protocol); it emits
// line-delimited JSON events on stdout and accepts JSON commands on
// stdin. Message events may carry an attachment inline, base64-encoded;
// the adapter stores it and stamps the record with its serving URL. This
// package never parses the underlying chat protocol.
package waclient

import (
	"bufio"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"os/exec"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/chatwire/wabridge/internal/ingest"
	"github.com/chatwire/wabridge/internal/media"
	"github.com/chatwire/wabridge/internal/model"
)

// event is one line emitted by the runner.
type event struct {
	Event string `json:"event"` // qr, status, message, ack, disconnected

	QR      string         `json:"qr,omitempty"`
	Stage   string         `json:"stage,omitempty"`
	Reason  string         `json:"reason,omitempty"`
	Percent int            `json:"percent,omitempty"`
	Text    string         `json:"message,omitempty"`
	ID      string         `json:"id,omitempty"`
	Ack     int            `json:"ack,omitempty"`
	Record  *model.Message `json:"record,omitempty"`
	Media   *attachment    `json:"media,omitempty"`
}

// attachment is inline media on a message event.
type attachment struct {
	Mimetype string `json:"mimetype"`
	Filename string `json:"filename,omitempty"`
	Data     string `json:"data"` // base64
}

// command is one line written to the runner.
type command struct {
	Op   string `json:"op"` // init, send
	To   string `json:"to,omitempty"`
	Body string `json:"body,omitempty"`
}

// Adapter supervises the runner process and forwards its events to a
// Sink. It caches the last reported stage so state polls stay cheap.
type Adapter struct {
	cmdline []string
	media   *media.Store // nil drops inline attachments
	log     zerolog.Logger

	mu    sync.Mutex
	stdin io.Writer
	stage model.ClientState
}

// New builds an adapter around the given runner command line.
func New(cmdline string, mediaStore *media.Store, log zerolog.Logger) (*Adapter, error) {
	fields := strings.Fields(cmdline)
	if len(fields) == 0 {
		return nil, errors.New("client command is empty")
	}
	return &Adapter{cmdline: fields, media: mediaStore, log: log, stage: model.StateInitializing}, nil
}

// Start launches the runner and pumps its events into sink until the
// process exits or ctx is canceled.
func (a *Adapter) Start(ctx context.Context, sink ingest.Sink) error {
	cmd := exec.CommandContext(ctx, a.cmdline[0], a.cmdline[1:]...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	if err := cmd.Start(); err != nil {
		return errors.Wrap(err, "start client runner")
	}

	a.mu.Lock()
	a.stdin = stdin
	a.mu.Unlock()

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		a.handleLine(scanner.Bytes(), sink)
	}

	err = cmd.Wait()
	sink.OnDisconnected("runner exited")
	return err
}

func (a *Adapter) handleLine(line []byte, sink ingest.Sink) {
	var ev event
	if err := json.Unmarshal(line, &ev); err != nil {
		a.log.Debug().Err(err).Msg("undecodable runner event")
		return
	}
	switch ev.Event {
	case "qr":
		sink.OnSessionCode(ev.QR)
	case "status":
		st := &model.StateChange{
			Stage:   model.ClientState(ev.Stage),
			Reason:  ev.Reason,
			Percent: ev.Percent,
			Message: ev.Text,
		}
		a.setStage(st.Stage)
		sink.OnStateChange(st)
	case "message":
		if ev.Record == nil {
			return
		}
		if ev.Media != nil {
			a.saveMedia(ev.Record, ev.Media)
		}
		sink.OnMessage(ev.Record)
	case "ack":
		sink.OnAck(ev.ID, ev.Ack)
	case "disconnected":
		a.setStage(model.StateDisconnected)
		sink.OnDisconnected(ev.Reason)
	default:
		a.log.Debug().Str("event", ev.Event).Msg("unknown runner event")
	}
}

// saveMedia decodes an inline attachment and stores it under the record
// identity. Failures log and leave the record without media.
func (a *Adapter) saveMedia(rec *model.Message, att *attachment) {
	if a.media == nil {
		return
	}
	data, err := base64.StdEncoding.DecodeString(att.Data)
	if err != nil {
		a.log.Warn().Err(err).Str("id", rec.Key()).Msg("undecodable attachment data")
		return
	}
	saved, err := a.media.Save(rec.Key(), att.Mimetype, data)
	if err != nil {
		a.log.Warn().Err(err).Str("id", rec.Key()).Msg("attachment save failed")
		return
	}
	saved.Filename = att.Filename
	rec.Media = saved
}

// State returns the stage most recently reported by the runner.
func (a *Adapter) State(context.Context) (model.ClientState, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stage, nil
}

// Initialize asks the runner to (re)start its protocol session.
func (a *Adapter) Initialize(context.Context) error {
	return a.write(command{Op: "init"})
}

// SendMessage forwards one outbound message to the runner. Transport
// failures surface synchronously to the caller.
func (a *Adapter) SendMessage(_ context.Context, to, body string) error {
	if to == "" || body == "" {
		return model.ErrValidation
	}
	return a.write(command{Op: "send", To: to, Body: body})
}

func (a *Adapter) setStage(st model.ClientState) {
	a.mu.Lock()
	a.stage = st
	a.mu.Unlock()
}

func (a *Adapter) write(cmd command) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.stdin == nil {
		return errors.New("client runner not started")
	}
	raw, err := json.Marshal(cmd)
	if err != nil {
		return err
	}
	_, err = a.stdin.Write(append(raw, '\n'))
	return err
}

// Disabled is a Client used when no runner is configured: every
// operation reports the client as unavailable.
type Disabled struct{}

func (Disabled) State(context.Context) (model.ClientState, error) {
	return model.StateDisconnected, errors.New("client not configured")
}
func (Disabled) Initialize(context.Context) error { return errors.New("client not configured") }
func (Disabled) SendMessage(context.Context, string, string) error {
	return errors.New("client not configured")
}
func (Disabled) Start(context.Context, ingest.Sink) error {
	return errors.New("client not configured")
}
