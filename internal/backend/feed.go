package backend

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/family-kitchen/internal/model"
)

// Subscription is a live change stream.
type Subscription interface {
	Close()
}

const (
	minReconnect = time.Second
	maxReconnect = 30 * time.Second
)

type stream struct {
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

func (s *stream) Close() {
	s.once.Do(s.cancel)
	<-s.done
}

// Subscribe opens the family's change stream and calls onChange for every
// event, whatever table or fields it names. A dropped stream is reopened
// with backoff, and onChange is called once after each reconnect since
// events may have been missed in between. The first connection is made
// before Subscribe returns so auth and family errors surface directly.
func (c *Client) Subscribe(ctx context.Context, family string, onChange func(model.ChangeEvent)) (Subscription, error) {
	ctx, cancel := context.WithCancel(ctx)
	body, err := c.openStream(ctx, family)
	if err != nil {
		cancel()
		return nil, err
	}
	s := &stream{cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(s.done)
		log := c.log.With(zap.String("family", family))
		wait := minReconnect
		for {
			err := readEvents(body, onChange)
			body.Close()
			if ctx.Err() != nil {
				return
			}
			log.Warn("change stream dropped", zap.Error(err))
			for {
				select {
				case <-ctx.Done():
					return
				case <-time.After(wait):
				}
				wait = min(wait*2, maxReconnect)
				if body, err = c.openStream(ctx, family); err == nil {
					break
				}
				log.Warn("change stream reconnect failed", zap.Error(err))
			}
			wait = minReconnect
			onChange(model.ChangeEvent{FamilyCode: family, At: time.Now().UTC()})
		}
	}()
	return s, nil
}

func (c *Client) openStream(ctx context.Context, family string) (io.ReadCloser, error) {
	open := func() (int, io.ReadCloser, error) {
		r := c.stream.R().SetContext(ctx).SetDoNotParseResponse(true)
		if s := c.current(); s != nil {
			r.SetAuthToken(s.AccessToken)
		}
		resp, err := r.Get(familyPath(family, "changes"))
		if err != nil {
			return 0, nil, err
		}
		return resp.StatusCode(), resp.RawBody(), nil
	}
	if c.current() == nil {
		return nil, ErrNoSession
	}
	status, body, err := open()
	if err == nil && status == http.StatusUnauthorized {
		body.Close()
		if rerr := c.refresh(ctx); rerr != nil {
			return nil, rerr
		}
		status, body, err = open()
	}
	if err != nil {
		return nil, fmt.Errorf("open change stream: %w", err)
	}
	if status != http.StatusOK {
		defer body.Close()
		var eb errorBody
		_ = json.NewDecoder(io.LimitReader(body, 4096)).Decode(&eb)
		return nil, &APIError{Status: status, Message: eb.Error}
	}
	return body, nil
}

// readEvents parses a text/event-stream body until it ends. Comments
// (heartbeats) are skipped; every "change" event is decoded and delivered.
func readEvents(r io.Reader, onChange func(model.ChangeEvent)) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 4096), 1<<20)
	var event, data string
	for sc.Scan() {
		line := sc.Text()
		switch {
		case line == "":
			if data != "" && (event == "" || event == "change") {
				var ev model.ChangeEvent
				if err := json.Unmarshal([]byte(data), &ev); err == nil {
					onChange(ev)
				}
			}
			event, data = "", ""
		case strings.HasPrefix(line, ":"):
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			if data != "" {
				data += "\n"
			}
			data += strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		}
	}
	if err := sc.Err(); err != nil {
		return err
	}
	return errors.New("stream closed by server")
}
