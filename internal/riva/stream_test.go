package riva

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"

	"github.com/rbright/rehearse/internal/speech"
)

type resultSpec struct {
	text  string
	final bool
}

func responseMsg(results ...resultSpec) *dynamicpb.Message {
	resp := dynamicpb.NewMessage(schema.response)
	list := resp.Mutable(field(schema.response, "results")).List()
	for _, r := range results {
		result := dynamicpb.NewMessage(schema.result)
		alt := dynamicpb.NewMessage(schema.alternative)
		alt.Set(field(schema.alternative, "transcript"), protoreflect.ValueOfString(r.text))
		result.Mutable(field(schema.result, "alternatives")).List().Append(protoreflect.ValueOfMessage(alt))
		result.Set(field(schema.result, "is_final"), protoreflect.ValueOfBool(r.final))
		list.Append(protoreflect.ValueOfMessage(result))
	}
	return resp
}

type receivedConfig struct {
	sampleRate   int32
	channels     int32
	language     string
	model        string
	punctuation  bool
	interim      bool
	phrases      []string
	boosts       []float32
	encoding     protoreflect.EnumNumber
	contextCount int
}

type testRivaServer struct {
	responses []*dynamicpb.Message
	streamErr error

	mu          sync.Mutex
	method      string
	config      *receivedConfig
	audioChunks int
}

func (s *testRivaServer) handle(_ any, stream grpc.ServerStream) error {
	method, _ := grpc.MethodFromServerStream(stream)
	s.mu.Lock()
	s.method = method
	s.mu.Unlock()

	for {
		req := dynamicpb.NewMessage(schema.request)
		err := stream.RecvMsg(req)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}

		if req.Has(field(schema.request, "streaming_config")) {
			s.mu.Lock()
			s.config = decodeConfig(req.Get(field(schema.request, "streaming_config")).Message())
			s.mu.Unlock()
			continue
		}
		if len(req.Get(field(schema.request, "audio_content")).Bytes()) > 0 {
			s.mu.Lock()
			s.audioChunks++
			s.mu.Unlock()
		}
	}

	for _, resp := range s.responses {
		if err := stream.SendMsg(resp); err != nil {
			return err
		}
	}
	return s.streamErr
}

func decodeConfig(sc protoreflect.Message) *receivedConfig {
	rc := sc.Get(field(schema.streamingConfig, "config")).Message()
	out := &receivedConfig{
		sampleRate:  int32(rc.Get(field(schema.recognitionConfig, "sample_rate_hertz")).Int()),
		channels:    int32(rc.Get(field(schema.recognitionConfig, "audio_channel_count")).Int()),
		language:    rc.Get(field(schema.recognitionConfig, "language_code")).String(),
		model:       rc.Get(field(schema.recognitionConfig, "model")).String(),
		punctuation: rc.Get(field(schema.recognitionConfig, "enable_automatic_punctuation")).Bool(),
		interim:     sc.Get(field(schema.streamingConfig, "interim_results")).Bool(),
		encoding:    rc.Get(field(schema.recognitionConfig, "encoding")).Enum(),
	}
	contexts := rc.Get(field(schema.recognitionConfig, "speech_contexts")).List()
	out.contextCount = contexts.Len()
	for i := 0; i < contexts.Len(); i++ {
		c := contexts.Get(i).Message()
		phrases := c.Get(field(schema.speechContext, "phrases")).List()
		for j := 0; j < phrases.Len(); j++ {
			out.phrases = append(out.phrases, phrases.Get(j).String())
		}
		out.boosts = append(out.boosts, float32(c.Get(field(schema.speechContext, "boost")).Float()))
	}
	return out
}

func startTestRivaServer(t *testing.T, srv *testRivaServer) (string, func()) {
	t.Helper()

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	grpcServer := grpc.NewServer(grpc.UnknownServiceHandler(srv.handle))
	go func() {
		_ = grpcServer.Serve(lis)
	}()

	shutdown := func() {
		grpcServer.Stop()
		_ = lis.Close()
	}
	return lis.Addr().String(), shutdown
}

type eventLog struct {
	mu     sync.Mutex
	events []speech.Event
}

func (l *eventLog) add(ev speech.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
}

func TestSchemaBuilds(t *testing.T) {
	set, err := buildSchema()
	require.NoError(t, err)
	require.Equal(t, protoreflect.FullName("nvidia.riva.asr.StreamingRecognizeRequest"), set.request.FullName())
	require.NotNil(t, set.request.Oneofs().ByName("streaming_request"))
}

func TestEventFromResponse(t *testing.T) {
	ev, ok := eventFromResponse(responseMsg(
		resultSpec{text: "  hello   world ", final: true},
		resultSpec{text: "   "},
		resultSpec{text: "how are"},
	))
	require.True(t, ok)
	require.Equal(t, speech.Event{Segments: []speech.Segment{
		{Text: "hello world", Final: true},
		{Text: "how are"},
	}}, ev)

	_, ok = eventFromResponse(responseMsg())
	require.False(t, ok)
}

func TestDialStreamEndToEndWithDebugSinkAndSpeechContexts(t *testing.T) {
	server := &testRivaServer{
		responses: []*dynamicpb.Message{
			responseMsg(resultSpec{text: "hello wor"}),
			responseMsg(resultSpec{text: "hello world", final: true}),
			responseMsg(resultSpec{text: "second phrase"}),
		},
	}
	endpoint, shutdown := startTestRivaServer(t, server)
	defer shutdown()

	var debug bytes.Buffer
	events := &eventLog{}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stream, err := DialStream(ctx, StreamConfig{
		Endpoint:             endpoint,
		LanguageCode:         "en-US",
		Model:                "parakeet",
		AutomaticPunctuation: true,
		SpeechPhrases: []SpeechPhrase{
			{Phrase: "  Kubernetes  ", Boost: 12},
			{Phrase: "", Boost: 20},
		},
		DialTimeout:           2 * time.Second,
		DebugResponseSinkJSON: &debug,
	}, events.add)
	require.NoError(t, err)

	require.NoError(t, stream.SendAudio([]byte{1, 2, 3, 4}))
	require.NoError(t, stream.SendAudio(nil))

	stream.CloseSend()
	require.NoError(t, stream.Wait(ctx))

	require.Equal(t, []speech.Event{
		{Segments: []speech.Segment{{Text: "hello wor"}}},
		{Segments: []speech.Segment{{Text: "hello world", Final: true}}},
		{Segments: []speech.Segment{{Text: "second phrase"}}},
	}, events.events)

	server.mu.Lock()
	defer server.mu.Unlock()
	require.Equal(t, streamingMethod, server.method)
	require.NotNil(t, server.config)
	require.Equal(t, int32(16000), server.config.sampleRate)
	require.Equal(t, int32(1), server.config.channels)
	require.Equal(t, "en-US", server.config.language)
	require.Equal(t, "parakeet", server.config.model)
	require.True(t, server.config.punctuation)
	require.True(t, server.config.interim)
	require.Equal(t, protoreflect.EnumNumber(encodingLinearPCM), server.config.encoding)
	require.Equal(t, 1, server.config.contextCount)
	require.Equal(t, []string{"Kubernetes"}, server.config.phrases)
	require.Equal(t, []float32{12}, server.config.boosts)
	require.Equal(t, 1, server.audioChunks)

	require.Contains(t, debug.String(), "results")
}

func TestDialStreamEmptyEndpoint(t *testing.T) {
	_, err := DialStream(context.Background(), StreamConfig{Endpoint: "   "}, nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "endpoint is empty")
}

func TestDialStreamReadinessTimeout(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := DialStream(ctx, StreamConfig{
		Endpoint:    "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
	}, nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "readiness")
}

func TestCheckReady(t *testing.T) {
	endpoint, shutdown := startTestRivaServer(t, &testRivaServer{})
	defer shutdown()

	require.NoError(t, CheckReady(context.Background(), endpoint, time.Second))
	require.Error(t, CheckReady(context.Background(), "127.0.0.1:1", 100*time.Millisecond))
	require.ErrorContains(t, CheckReady(context.Background(), "", time.Second), "endpoint is empty")
}

func TestRunWithTimeoutTimesOut(t *testing.T) {
	err := runWithTimeout(context.Background(), 20*time.Millisecond, func() error {
		time.Sleep(120 * time.Millisecond)
		return nil
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "timed out")
}

func TestRunWithTimeoutReturnsCallError(t *testing.T) {
	want := errors.New("boom")
	err := runWithTimeout(context.Background(), time.Second, func() error {
		return want
	})
	require.ErrorIs(t, err, want)
}

func TestWaitReturnsServerStreamError(t *testing.T) {
	server := &testRivaServer{streamErr: status.Error(codes.Internal, "boom")}
	endpoint, shutdown := startTestRivaServer(t, server)
	defer shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	stream, err := DialStream(ctx, StreamConfig{Endpoint: endpoint, DialTimeout: time.Second}, nil)
	require.NoError(t, err)
	require.NoError(t, stream.SendAudio([]byte{1, 2}))

	stream.CloseSend()
	err = stream.Wait(ctx)
	require.Error(t, err)
	require.Contains(t, err.Error(), "boom")
}

func TestSendAudioAfterCloseReturnsError(t *testing.T) {
	endpoint, shutdown := startTestRivaServer(t, &testRivaServer{})
	defer shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	stream, err := DialStream(ctx, StreamConfig{Endpoint: endpoint, DialTimeout: time.Second}, nil)
	require.NoError(t, err)

	stream.CloseSend()
	require.NoError(t, stream.Wait(ctx))

	err = stream.SendAudio([]byte{9, 9, 9})
	require.Error(t, err)
	require.Contains(t, err.Error(), "closed")
}
