package workflow

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"image-translator/internal/imaging"
	"image-translator/internal/model/llm"
	apperrors "image-translator/pkg/errors"
)

type call struct {
	prompt string
	image  string
}

// scriptedClient 按顺序返回预设结果
type scriptedClient struct {
	mu      sync.Mutex
	calls   []call
	results []func() (string, error)
}

func (c *scriptedClient) Invoke(ctx context.Context, prompt, imageBase64 string) (string, error) {
	c.mu.Lock()
	i := len(c.calls)
	c.calls = append(c.calls, call{prompt: prompt, image: imageBase64})
	c.mu.Unlock()
	if i >= len(c.results) {
		return "", errors.New("unexpected call")
	}
	return c.results[i]()
}

func (c *scriptedClient) Model() string    { return "scripted" }
func (c *scriptedClient) Provider() string { return "test" }

func (c *scriptedClient) Calls() []call {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]call(nil), c.calls...)
}

func text(s string) func() (string, error) {
	return func() (string, error) { return s, nil }
}

func fails(err error) func() (string, error) {
	return func() (string, error) { return "", err }
}

func testImage() *imaging.UploadedImage {
	return imaging.NewUploadedImage("sign.png", "image/png", 3, imaging.SourceFunc(func() (io.ReadCloser, error) {
		return io.NopCloser(strings.NewReader("ABC")), nil
	}))
}

func recordStates(states *[]State, mu *sync.Mutex) Observer {
	return func(t Transition) {
		mu.Lock()
		*states = append(*states, t.To)
		mu.Unlock()
	}
}

func TestRun_HelloToHola(t *testing.T) {
	client := &scriptedClient{results: []func() (string, error){text("Hello"), text("Hola")}}
	var states []State
	var mu sync.Mutex
	w := New(client, WithObserver(recordStates(&states, &mu)))

	err := w.Run(context.Background(), testImage(), Spanish)
	require.NoError(t, err)

	snap := w.Snapshot()
	assert.Equal(t, StateSucceeded, snap.State)
	assert.Equal(t, "Hello", snap.ExtractedText)
	assert.Equal(t, "Hola", snap.TranslatedText)
	assert.Empty(t, snap.Error)
	assert.False(t, snap.Running)
	assert.Equal(t, []State{StateExtracting, StateTranslating, StateSucceeded}, states)

	calls := client.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, ExtractionPrompt, calls[0].prompt)
	assert.Equal(t, "QUJD", calls[0].image)
	assert.Equal(t, `Translate the following text to Spanish: "Hello"`, calls[1].prompt)
	assert.Empty(t, calls[1].image)
}

func TestRun_ExtractionEmpty(t *testing.T) {
	client := &scriptedClient{results: []func() (string, error){text("")}}
	w := New(client)

	err := w.Run(context.Background(), testImage(), English)
	require.Error(t, err)
	assert.Equal(t, MsgExtractFailed, err.Error())

	snap := w.Snapshot()
	assert.Equal(t, StateFailed, snap.State)
	assert.Equal(t, MsgExtractFailed, snap.Error)
	assert.Empty(t, snap.TranslatedText)
	assert.Equal(t, apperrors.KindEmptyResponse, snap.Kind)
	assert.Len(t, client.Calls(), 1)
}

func TestRun_ExtractionAPIErrorKeepsCause(t *testing.T) {
	client := &scriptedClient{results: []func() (string, error){fails(apperrors.API("invalid key"))}}
	w := New(client)

	err := w.Run(context.Background(), testImage(), English)
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindAPI))

	snap := w.Snapshot()
	assert.Equal(t, MsgExtractFailed, snap.Error)
	assert.Equal(t, "API Error: invalid key", snap.Cause)
	assert.Equal(t, apperrors.KindAPI, snap.Kind)
	assert.Empty(t, snap.ExtractedText)
}

func TestRun_NilImageNoStateChange(t *testing.T) {
	client := &scriptedClient{}
	var states []State
	var mu sync.Mutex
	w := New(client, WithObserver(recordStates(&states, &mu)))

	err := w.Run(context.Background(), nil, English)
	require.Error(t, err)
	assert.Equal(t, MsgSelectImage, err.Error())
	assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))
	assert.Equal(t, StateIdle, w.Snapshot().State)
	assert.Empty(t, states)
	assert.Empty(t, client.Calls())

	_, err = w.StartCurrent()
	assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))
}

func TestRun_TranslationFailureKeepsExtraction(t *testing.T) {
	client := &scriptedClient{results: []func() (string, error){text("Hello"), fails(apperrors.EmptyResponse(nil))}}
	w := New(client)

	err := w.Run(context.Background(), testImage(), French)
	require.Error(t, err)

	snap := w.Snapshot()
	assert.Equal(t, StateFailed, snap.State)
	assert.Equal(t, MsgTranslateFailed, snap.Error)
	assert.Equal(t, "invalid or empty API response", snap.Cause)
	assert.Equal(t, "Hello", snap.ExtractedText)
	assert.Empty(t, snap.TranslatedText)
}

func TestRun_ReadFailure(t *testing.T) {
	client := &scriptedClient{}
	w := New(client)
	img := imaging.NewUploadedImage("gone.png", "image/png", 1, imaging.SourceFunc(func() (io.ReadCloser, error) {
		return nil, errors.New("file vanished")
	}))

	err := w.Run(context.Background(), img, English)
	require.Error(t, err)

	snap := w.Snapshot()
	assert.Equal(t, StateFailed, snap.State)
	assert.Equal(t, "failed to read image: file vanished", snap.Error)
	assert.Equal(t, apperrors.KindRead, snap.Kind)
	assert.Empty(t, client.Calls())
}

func TestRun_PanicBecomesUnexpected(t *testing.T) {
	client := &scriptedClient{results: []func() (string, error){func() (string, error) { panic("boom") }}}
	w := New(client)

	err := w.Run(context.Background(), testImage(), English)
	require.Error(t, err)
	assert.Equal(t, "an error occurred: boom", err.Error())

	snap := w.Snapshot()
	assert.Equal(t, StateFailed, snap.State)
	assert.Equal(t, apperrors.KindUnexpected, snap.Kind)
	assert.False(t, snap.Running)
}

func TestRun_ClearsPreviousResults(t *testing.T) {
	client := &scriptedClient{results: []func() (string, error){text("Hello"), text("Hola"), text("")}}
	w := New(client)

	require.NoError(t, w.Run(context.Background(), testImage(), Spanish))
	require.Error(t, w.Run(context.Background(), testImage(), Spanish))

	snap := w.Snapshot()
	assert.Empty(t, snap.ExtractedText)
	assert.Empty(t, snap.TranslatedText)
	assert.Equal(t, MsgExtractFailed, snap.Error)
}

// blockingClient 第一次调用阻塞直到 release 关闭
type blockingClient struct {
	entered chan struct{}
	release chan struct{}
}

func newBlockingClient() *blockingClient {
	return &blockingClient{entered: make(chan struct{}, 4), release: make(chan struct{})}
}

func (c *blockingClient) Invoke(ctx context.Context, prompt, imageBase64 string) (string, error) {
	c.entered <- struct{}{}
	<-c.release
	if imageBase64 != "" {
		return "Hello", nil
	}
	return "Bonjour", nil
}

func (c *blockingClient) Model() string    { return "blocking" }
func (c *blockingClient) Provider() string { return "test" }

func TestStart_BusyWhileRunning(t *testing.T) {
	client := newBlockingClient()
	w := New(client)

	e, err := w.Start(testImage(), French)
	require.NoError(t, err)
	assert.Equal(t, StateExtracting, w.Snapshot().State)
	assert.True(t, w.Running())

	errCh := make(chan error, 1)
	go func() { errCh <- e.Execute(context.Background()) }()
	<-client.entered

	_, err = w.Start(testImage(), French)
	assert.True(t, apperrors.IsKind(err, apperrors.KindBusy))
	assert.True(t, apperrors.IsKind(w.SetLanguage(German), apperrors.KindBusy))

	close(client.release)
	require.NoError(t, <-errCh)
	require.NoError(t, w.Wait(context.Background()))

	snap := w.Snapshot()
	assert.Equal(t, StateSucceeded, snap.State)
	assert.Equal(t, "Bonjour", snap.TranslatedText)
	assert.Equal(t, French, snap.Language)
	assert.NoError(t, w.SetLanguage(German))
}

func TestReset_DropsInFlightWrites(t *testing.T) {
	client := newBlockingClient()
	w := New(client)

	e, err := w.Start(testImage(), Spanish)
	require.NoError(t, err)
	errCh := make(chan error, 1)
	go func() { errCh <- e.Execute(context.Background()) }()
	<-client.entered

	next := testImage()
	w.Reset(next)
	snap := w.Snapshot()
	assert.Equal(t, StateIdle, snap.State)
	assert.Same(t, next, snap.Image)

	close(client.release)
	require.NoError(t, <-errCh)

	snap = w.Snapshot()
	assert.Equal(t, StateIdle, snap.State)
	assert.Empty(t, snap.ExtractedText)
	assert.Empty(t, snap.TranslatedText)
	assert.Empty(t, snap.Error)
	assert.False(t, snap.Running)

	ok := &scriptedClient{results: []func() (string, error){text("Hi"), text("Hola")}}
	w.client = ok
	_, err = w.StartCurrent()
	require.NoError(t, err)
}

func TestWait_Timeout(t *testing.T) {
	client := newBlockingClient()
	w := New(client)
	e, err := w.Start(testImage(), English)
	require.NoError(t, err)
	go func() { _ = e.Execute(context.Background()) }()
	<-client.entered

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, w.Wait(ctx), context.DeadlineExceeded)

	close(client.release)
	require.NoError(t, w.Wait(context.Background()))
}

func TestRun_RateLimitedClient(t *testing.T) {
	inner := &scriptedClient{results: []func() (string, error){text("Hello"), text("Hallo")}}
	client := llm.NewRateLimitedClient(inner, llm.NewRateLimiter(llm.LimitConfig{MaxConcurrent: 1}))
	w := New(client)

	require.NoError(t, w.Run(context.Background(), testImage(), German))
	assert.Equal(t, "Hallo", w.Snapshot().TranslatedText)
}

func TestExecute_SupersededRunLogsOnce(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&syncWriter{w: &buf}, nil))
	client := newBlockingClient()
	w := New(client, WithLogger(logger))

	e, err := w.Start(testImage(), Spanish)
	require.NoError(t, err)
	errCh := make(chan error, 1)
	go func() { errCh <- e.Execute(context.Background()) }()
	<-client.entered

	w.Reset(testImage())
	close(client.release)
	require.NoError(t, <-errCh)

	out := buf.String()
	assert.Contains(t, out, "workflow run superseded by a new upload")
	assert.NotContains(t, out, "workflow run succeeded")
	assert.NotContains(t, out, "workflow run failed")
	assert.Len(t, client.entered, 0)
}

func TestStart_RejectsUnknownLanguage(t *testing.T) {
	client := &scriptedClient{results: []func() (string, error){text("Hello"), text("Hola")}}
	w := New(client)

	_, err := w.Start(testImage(), Language("Klingon"))
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))
	assert.Equal(t, `unsupported language: "Klingon"`, err.Error())

	snap := w.Snapshot()
	assert.Equal(t, StateIdle, snap.State)
	assert.Equal(t, DefaultLanguage, snap.Language)
	assert.Nil(t, snap.Image)
	assert.False(t, snap.Running)
	assert.Empty(t, client.Calls())
}

func TestSetLanguage_RejectsUnknownLanguage(t *testing.T) {
	w := New(&scriptedClient{})

	err := w.SetLanguage(Language("Klingon"))
	assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))
	assert.Equal(t, DefaultLanguage, w.Snapshot().Language)

	require.NoError(t, w.SetLanguage(Korean))
	assert.Equal(t, Korean, w.Snapshot().Language)
}

type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}
