// Package riva streams microphone audio to a Riva ASR server and reports
// interim and final recognition results.
package riva

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"

	"github.com/rbright/rehearse/internal/speech"
)

const SampleRateHz = 16000

// SpeechPhrase is one vocabulary boost phrase in request-ready form.
type SpeechPhrase struct {
	Phrase string
	Boost  float32
}

// StreamConfig controls stream initialization and recognition behavior.
type StreamConfig struct {
	Endpoint              string
	LanguageCode          string
	Model                 string
	AutomaticPunctuation  bool
	SpeechPhrases         []SpeechPhrase
	DialTimeout           time.Duration
	DebugResponseSinkJSON io.Writer
	DialOptions           []grpc.DialOption
}

// Stream wraps one StreamingRecognize RPC. Every response is converted to a
// speech.Event and handed to the event callback from the receive goroutine.
type Stream struct {
	conn   *grpc.ClientConn
	stream grpc.ClientStream

	onEvent  func(speech.Event)
	recvDone chan struct{}

	mu            sync.Mutex
	recvErr       error
	closedSend    bool
	debugSinkJSON io.Writer
}

// DialStream establishes a stream, sends config, and starts the receive loop.
func DialStream(ctx context.Context, cfg StreamConfig, onEvent func(speech.Event)) (*Stream, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, errors.New("riva endpoint is empty")
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 3 * time.Second
	}
	if strings.TrimSpace(cfg.LanguageCode) == "" {
		cfg.LanguageCode = "en-US"
	}
	if onEvent == nil {
		onEvent = func(speech.Event) {}
	}

	opts := append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, cfg.DialOptions...)
	conn, err := grpc.NewClient(endpoint, opts...)
	if err != nil {
		return nil, fmt.Errorf("dial riva grpc %q: %w", endpoint, err)
	}

	readyCtx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
	defer cancel()
	conn.Connect()
	if err := waitForReady(readyCtx, conn); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("wait for riva grpc readiness: %w", err)
	}

	desc := &grpc.StreamDesc{StreamName: "StreamingRecognize", ServerStreams: true, ClientStreams: true}
	stream, err := conn.NewStream(ctx, desc, streamingMethod)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open streaming recognizer: %w", err)
	}

	if err := runWithTimeout(ctx, cfg.DialTimeout, func() error {
		return stream.SendMsg(configRequest(cfg))
	}); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("send initial streaming config: %w", err)
	}

	s := &Stream{
		conn:          conn,
		stream:        stream,
		onEvent:       onEvent,
		recvDone:      make(chan struct{}),
		debugSinkJSON: cfg.DebugResponseSinkJSON,
	}
	go s.recvLoop()
	return s, nil
}

func configRequest(cfg StreamConfig) *dynamicpb.Message {
	rc := dynamicpb.NewMessage(schema.recognitionConfig)
	rc.Set(field(schema.recognitionConfig, "encoding"), protoreflect.ValueOfEnum(encodingLinearPCM))
	rc.Set(field(schema.recognitionConfig, "sample_rate_hertz"), protoreflect.ValueOfInt32(SampleRateHz))
	rc.Set(field(schema.recognitionConfig, "language_code"), protoreflect.ValueOfString(cfg.LanguageCode))
	rc.Set(field(schema.recognitionConfig, "max_alternatives"), protoreflect.ValueOfInt32(1))
	rc.Set(field(schema.recognitionConfig, "audio_channel_count"), protoreflect.ValueOfInt32(1))
	rc.Set(field(schema.recognitionConfig, "enable_automatic_punctuation"), protoreflect.ValueOfBool(cfg.AutomaticPunctuation))
	if model := strings.TrimSpace(cfg.Model); model != "" {
		rc.Set(field(schema.recognitionConfig, "model"), protoreflect.ValueOfString(model))
	}

	contexts := rc.Mutable(field(schema.recognitionConfig, "speech_contexts")).List()
	for _, phrase := range cfg.SpeechPhrases {
		text := strings.TrimSpace(phrase.Phrase)
		if text == "" {
			continue
		}
		sc := dynamicpb.NewMessage(schema.speechContext)
		sc.Mutable(field(schema.speechContext, "phrases")).List().Append(protoreflect.ValueOfString(text))
		sc.Set(field(schema.speechContext, "boost"), protoreflect.ValueOfFloat32(phrase.Boost))
		contexts.Append(protoreflect.ValueOfMessage(sc))
	}

	sc := dynamicpb.NewMessage(schema.streamingConfig)
	sc.Set(field(schema.streamingConfig, "config"), protoreflect.ValueOfMessage(rc))
	sc.Set(field(schema.streamingConfig, "interim_results"), protoreflect.ValueOfBool(true))

	req := dynamicpb.NewMessage(schema.request)
	req.Set(field(schema.request, "streaming_config"), protoreflect.ValueOfMessage(sc))
	return req
}

func audioRequest(chunk []byte) *dynamicpb.Message {
	req := dynamicpb.NewMessage(schema.request)
	req.Set(field(schema.request, "audio_content"), protoreflect.ValueOfBytes(chunk))
	return req
}

// recvLoop receives recognition responses until stream close or error.
func (s *Stream) recvLoop() {
	defer close(s.recvDone)

	for {
		resp := dynamicpb.NewMessage(schema.response)
		err := s.stream.RecvMsg(resp)
		if err == nil {
			s.recordResponse(resp)
			continue
		}
		if errors.Is(err, io.EOF) {
			return
		}

		s.mu.Lock()
		s.recvErr = err
		s.mu.Unlock()
		return
	}
}

// recordResponse forwards one response as a speech event.
func (s *Stream) recordResponse(resp protoreflect.Message) {
	if sink := s.debugSinkJSON; sink != nil {
		b, err := protojson.Marshal(resp.Interface())
		if err == nil {
			_, _ = sink.Write(append(b, '\n'))
		}
	}

	if ev, ok := eventFromResponse(resp); ok {
		s.onEvent(ev)
	}
}

// eventFromResponse converts the top alternative of every result into a
// segment. Results without text are skipped.
func eventFromResponse(resp protoreflect.Message) (speech.Event, bool) {
	results := resp.Get(field(schema.response, "results")).List()
	var ev speech.Event
	for i := 0; i < results.Len(); i++ {
		result := results.Get(i).Message()
		alternatives := result.Get(field(schema.result, "alternatives")).List()
		if alternatives.Len() == 0 {
			continue
		}
		transcript := cleanSegment(alternatives.Get(0).Message().Get(field(schema.alternative, "transcript")).String())
		if transcript == "" {
			continue
		}
		ev.Segments = append(ev.Segments, speech.Segment{
			Text:  transcript,
			Final: result.Get(field(schema.result, "is_final")).Bool(),
		})
	}
	return ev, len(ev.Segments) > 0
}

// SendAudio sends one chunk of PCM audio over the active stream.
func (s *Stream) SendAudio(chunk []byte) error {
	if len(chunk) == 0 {
		return nil
	}

	s.mu.Lock()
	closed := s.closedSend
	recvErr := s.recvErr
	s.mu.Unlock()

	if closed {
		return errors.New("stream already closed for sending")
	}
	if recvErr != nil {
		return fmt.Errorf("stream receive loop failed: %w", recvErr)
	}

	return s.stream.SendMsg(audioRequest(chunk))
}

// CloseSend half-closes the stream; the server flushes remaining results.
func (s *Stream) CloseSend() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closedSend {
		s.closedSend = true
		_ = s.stream.CloseSend()
	}
}

// Wait blocks until the server ends the stream, then releases the
// connection and returns the receive error, if any.
func (s *Stream) Wait(ctx context.Context) error {
	select {
	case <-s.recvDone:
	case <-ctx.Done():
		_ = s.conn.Close()
		return ctx.Err()
	}

	s.mu.Lock()
	recvErr := s.recvErr
	s.mu.Unlock()
	_ = s.conn.Close()
	return recvErr
}

// Cancel aborts stream processing and closes the underlying grpc connection.
func (s *Stream) Cancel() error {
	s.CloseSend()
	return s.conn.Close()
}

// cleanSegment normalizes transcript whitespace.
func cleanSegment(raw string) string {
	return strings.Join(strings.Fields(raw), " ")
}

// runWithTimeout bounds one blocking stream operation such as the initial send.
func runWithTimeout(ctx context.Context, timeout time.Duration, call func() error) error {
	if timeout <= 0 {
		return call()
	}

	resultCh := make(chan error, 1)
	go func() {
		resultCh <- call()
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return fmt.Errorf("timed out after %s", timeout)
	case err := <-resultCh:
		return err
	}
}
