package jail

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os/exec"
	"sync"
	"time"

	apperrors "github.com/louisbranch/tutormark/internal/platform/errors"
	"github.com/louisbranch/tutormark/internal/platform/timeouts"
)

// ErrProcessCrashed reports that the jailed process closed its stdout before
// a response arrived.
var ErrProcessCrashed = apperrors.New(apperrors.CodeJailProcessCrashed, "jail process crashed")

// Client talks to one jailed process. Sends and receives are safe for
// concurrent use, but the protocol itself is request/response: callers should
// hold one exchange in flight at a time.
type Client struct {
	cmd   *exec.Cmd
	stdin io.WriteCloser

	writeMu sync.Mutex

	// inbound carries decoded frames from the reader pump. readErr is set
	// before inbound closes.
	inbound chan frame
	readMu  sync.Mutex
	readErr error

	waitOnce sync.Once
	waitErr  error
}

func spawn(command string, args []string, entrypoint string) (*Client, error) {
	cmd := exec.Command(command, append(append([]string{}, args...), entrypoint)...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeJailSpawn, "open stdin pipe", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeJailSpawn, "open stdout pipe", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeJailSpawn, "open stderr pipe", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeJailSpawn, "start jail process", err)
	}

	client := &Client{
		cmd:     cmd,
		stdin:   stdin,
		inbound: make(chan frame, 4),
	}
	go client.pumpStdout(stdout)
	go pumpStderr(stderr)
	return client, nil
}

// frame is one decoded stdout line, or the decode error for that line.
type frame struct {
	msg Message
	err error
}

// pumpStdout decodes stdout lines into frames until EOF. A malformed line
// fails only the frame it arrived on; later lines keep flowing.
func (c *Client) pumpStdout(stdout io.Reader) {
	defer close(c.inbound)

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		msg, err := Decode(line)
		if err != nil {
			c.inbound <- frame{err: err}
			continue
		}
		c.inbound <- frame{msg: msg}
	}
	if err := scanner.Err(); err != nil {
		c.setReadErr(apperrors.Wrap(apperrors.CodeJailRead, "read jail stdout", err))
		return
	}
	c.setReadErr(ErrProcessCrashed)
}

// pumpStderr forwards jail log lines. Stderr never carries protocol frames.
func pumpStderr(stderr io.Reader) {
	scanner := bufio.NewScanner(stderr)
	for scanner.Scan() {
		log.Printf("jail: %s", scanner.Text())
	}
}

func (c *Client) setReadErr(err error) {
	c.readMu.Lock()
	defer c.readMu.Unlock()
	if c.readErr == nil {
		c.readErr = err
	}
}

func (c *Client) getReadErr() error {
	c.readMu.Lock()
	defer c.readMu.Unlock()
	if c.readErr == nil {
		return ErrProcessCrashed
	}
	return c.readErr
}

// Send writes one frame to the jail's stdin.
func (c *Client) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c == nil || c.stdin == nil {
		return fmt.Errorf("jail client is not connected")
	}

	encoded, err := msg.Encode()
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if _, err := c.stdin.Write(append(encoded, '\n')); err != nil {
		return apperrors.Wrap(apperrors.CodeJailWrite, "write to jail stdin", err)
	}
	return nil
}

// Receive blocks until the next frame arrives, the stream ends, or the
// context expires. A malformed line surfaces as the error for that frame
// only; the client stays usable afterwards.
func (c *Client) Receive(ctx context.Context) (Message, error) {
	select {
	case f, ok := <-c.inbound:
		if !ok {
			return Message{}, c.getReadErr()
		}
		if f.err != nil {
			return Message{}, f.err
		}
		return f.msg, nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return Message{}, apperrors.Wrap(apperrors.CodeJailTimeout, "wait for jail response", ctx.Err())
		}
		return Message{}, ctx.Err()
	}
}

// Exchange sends a request frame and waits for the matching response.
// Ack frames are consumed silently; an Error frame fails the exchange.
// Feedback responses carrying a different request id are discarded: they
// belong to an earlier exchange that already timed out, and returning them
// would attribute one assignment's feedback to another.
func (c *Client) Exchange(ctx context.Context, msg Message) (Message, error) {
	if err := c.Send(ctx, msg); err != nil {
		return Message{}, err
	}
	var wantID string
	if msg.Kind == KindFeedbackRequest && msg.FeedbackRequest != nil {
		wantID = msg.FeedbackRequest.RequestID
	}
	for {
		reply, err := c.Receive(ctx)
		if err != nil {
			return Message{}, err
		}
		switch reply.Kind {
		case KindAck:
			continue
		case KindError:
			return Message{}, apperrors.WithMetadata(apperrors.CodeJailRemoteError,
				"jail reported an error", map[string]string{"message": reply.Error.Message})
		case KindFeedbackResponse:
			if msg.Kind != KindFeedbackRequest || reply.FeedbackResponse.RequestID != wantID {
				log.Printf("jail: discarding stale response %q", reply.FeedbackResponse.RequestID)
				continue
			}
			return reply, nil
		default:
			return reply, nil
		}
	}
}

// Ping sends a health probe and waits for the Pong.
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, timeouts.JailPing)
	defer cancel()

	reply, err := c.Exchange(ctx, NewPing(time.Now().Unix()))
	if err != nil {
		return err
	}
	if reply.Kind != KindPong {
		return apperrors.New(apperrors.CodeJailInvalidMessage,
			"unexpected "+string(reply.Kind)+" reply to ping")
	}
	return nil
}

// Shutdown asks the jail to exit and waits for the process to stop. The
// shutdown frame is best effort; the wait always happens.
func (c *Client) Shutdown(ctx context.Context) error {
	if c == nil || c.cmd == nil {
		return nil
	}

	sendCtx, cancel := context.WithTimeout(ctx, timeouts.JailShutdown)
	defer cancel()
	_ = c.Send(sendCtx, NewShutdown())
	_ = c.stdin.Close()

	done := make(chan error, 1)
	go func() { done <- c.wait() }()
	select {
	case err := <-done:
		return err
	case <-sendCtx.Done():
		_ = c.cmd.Process.Kill()
		return c.wait()
	}
}

func (c *Client) wait() error {
	c.waitOnce.Do(func() {
		c.waitErr = c.cmd.Wait()
	})
	return c.waitErr
}
