package video

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"studio/internal/domain"
	"studio/internal/providers/genai"
)

type fakePlatform struct {
	submitted genai.VideoRequest
	polls     []func() (*genai.Operation, error)
	pollCount int
	download  func(uri string) ([]byte, string, error)
}

func (f *fakePlatform) SubmitVideo(ctx context.Context, model string, req genai.VideoRequest) (*genai.Operation, error) {
	f.submitted = req
	return &genai.Operation{Name: "models/veo/operations/op1"}, nil
}

func (f *fakePlatform) GetOperation(ctx context.Context, name string) (*genai.Operation, error) {
	i := f.pollCount
	f.pollCount++
	if i < len(f.polls) {
		return f.polls[i]()
	}
	return &genai.Operation{Name: name}, nil
}

func (f *fakePlatform) Download(ctx context.Context, uri string) ([]byte, string, error) {
	if f.download != nil {
		return f.download(uri)
	}
	return []byte("mp4:" + uri), "video/mp4", nil
}

type fakeClock struct {
	elapsed time.Duration
	sleeps  int
}

func (c *fakeClock) sleep(ctx context.Context, d time.Duration) error {
	c.sleeps++
	c.elapsed += d
	return ctx.Err()
}

func newOrchestrator(t *testing.T, p Platform, clock *fakeClock) *Orchestrator {
	t.Helper()
	o, err := NewOrchestrator(Options{Client: p, Sleep: clock.sleep})
	require.NoError(t, err)
	return o
}

func doneWith(resp *genai.GenerateVideoResponse) func() (*genai.Operation, error) {
	return func() (*genai.Operation, error) {
		return &genai.Operation{Done: true, Response: &genai.OperationResponse{GenerateVideoResponse: resp}}, nil
	}
}

func readyResponse(uri string) *genai.GenerateVideoResponse {
	return &genai.GenerateVideoResponse{GeneratedSamples: []genai.GeneratedSample{{Video: &genai.VideoRef{URI: uri}}}}
}

func TestBackendAspectIsTotal(t *testing.T) {
	cases := map[domain.AspectRatio]string{
		domain.AspectSquare:    "16:9",
		domain.AspectFourFive:  "9:16",
		domain.AspectLandscape: "16:9",
		domain.AspectPortrait:  "9:16",
	}
	for in, want := range cases {
		if got := BackendAspect(in); got != want {
			t.Fatalf("BackendAspect(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestComposePromptCapsInstruction(t *testing.T) {
	for _, instruction := range []string{"", "corto", strings.Repeat("ñ", 200), strings.Repeat("a", 80)} {
		got := ComposePrompt(instruction)
		require.True(t, strings.HasPrefix(got, SafetyPreamble))
		user := strings.TrimPrefix(got, SafetyPreamble)
		require.LessOrEqual(t, len([]rune(user)), MaxInstructionRunes)
	}
}

func TestGenerateSucceeds(t *testing.T) {
	p := &fakePlatform{polls: []func() (*genai.Operation, error){
		func() (*genai.Operation, error) { return &genai.Operation{Name: "op"}, nil },
		doneWith(readyResponse("https://files/v1")),
	}}
	clock := &fakeClock{}
	o := newOrchestrator(t, p, clock)

	asset, err := o.Generate(context.Background(), Request{Image: []byte("img"), Instruction: "shoes", AspectRatio: domain.AspectSquare})
	require.NoError(t, err)
	require.Equal(t, "mp4:https://files/v1", string(asset.Data))
	require.Equal(t, "video/mp4", asset.MIME)
	require.Equal(t, "16:9", p.submitted.AspectRatio)
	require.Equal(t, "720p", p.submitted.Resolution)
	require.Equal(t, 2, clock.sleeps)
	require.Equal(t, 20*time.Second, clock.elapsed)
}

func TestGenerateTimesOutAtCeiling(t *testing.T) {
	p := &fakePlatform{}
	clock := &fakeClock{}
	o := newOrchestrator(t, p, clock)

	_, err := o.Generate(context.Background(), Request{Image: []byte("img")})
	require.ErrorIs(t, err, domain.ErrTimeout)
	require.Equal(t, 600*time.Second, clock.elapsed)
	require.Equal(t, 60, p.pollCount)
}

func TestTransientPollErrorsAreRetried(t *testing.T) {
	p := &fakePlatform{polls: []func() (*genai.Operation, error){
		func() (*genai.Operation, error) { return nil, errors.New("connection reset by peer") },
		func() (*genai.Operation, error) { return nil, &genai.APIError{StatusCode: 503, Message: "unavailable"} },
		doneWith(readyResponse("https://files/v2")),
	}}
	o := newOrchestrator(t, p, &fakeClock{})

	asset, err := o.Generate(context.Background(), Request{Image: []byte("img")})
	require.NoError(t, err)
	require.Equal(t, "https://files/v2", asset.URI)
}

func TestNotFoundPollIsFatal(t *testing.T) {
	p := &fakePlatform{polls: []func() (*genai.Operation, error){
		func() (*genai.Operation, error) { return nil, &genai.APIError{StatusCode: 404, Message: "Requested entity was not found."} },
		doneWith(readyResponse("never")),
	}}
	o := newOrchestrator(t, p, &fakeClock{})

	_, err := o.Generate(context.Background(), Request{Image: []byte("img")})
	require.ErrorIs(t, err, domain.ErrOperationNotFound)
	require.Equal(t, 1, p.pollCount)
}

func TestClassificationOrder(t *testing.T) {
	cases := []struct {
		name string
		op   *genai.Operation
		want error
	}{
		{
			name: "platform error wins over filter",
			op: &genai.Operation{Done: true, Error: &genai.OperationError{Message: "quota"}, Response: &genai.OperationResponse{
				GenerateVideoResponse: &genai.GenerateVideoResponse{RAIMediaFilteredCount: 1},
			}},
			want: domain.ErrPlatform,
		},
		{
			name: "filter reasons win over empty",
			op: &genai.Operation{Done: true, Response: &genai.OperationResponse{
				GenerateVideoResponse: &genai.GenerateVideoResponse{RAIMediaFilteredReasons: []string{"faces", "logo"}},
			}},
			want: domain.ErrSafetyFilter,
		},
		{
			name: "missing container",
			op:   &genai.Operation{Done: true},
			want: domain.ErrProtocol,
		},
		{
			name: "empty list",
			op:   &genai.Operation{Done: true, Response: &genai.OperationResponse{GenerateVideoResponse: &genai.GenerateVideoResponse{}}},
			want: domain.ErrEmptyResult,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := &fakePlatform{polls: []func() (*genai.Operation, error){
				func() (*genai.Operation, error) { return tc.op, nil },
			}}
			o := newOrchestrator(t, p, &fakeClock{})
			_, err := o.Generate(context.Background(), Request{Image: []byte("img")})
			require.ErrorIs(t, err, tc.want)
		})
	}
}

func TestFilteredCarriesFirstReason(t *testing.T) {
	out := Classify(&genai.Operation{Done: true, Response: &genai.OperationResponse{
		GenerateVideoResponse: &genai.GenerateVideoResponse{RAIMediaFilteredReasons: []string{"faces", "logo"}},
	}})
	require.Equal(t, Filtered{Reason: "faces"}, out)

	out = Classify(&genai.Operation{Done: true, Response: &genai.OperationResponse{
		GenerateVideoResponse: &genai.GenerateVideoResponse{RAIMediaFilteredCount: 2},
	}})
	require.Equal(t, Filtered{Reason: DefaultFilterReason}, out)

	_, err := resolve(Filtered{Reason: "faces"})
	var safety *domain.SafetyFilterError
	require.ErrorAs(t, err, &safety)
	require.Equal(t, "faces", safety.Reason)
}

func TestDownloadFailureKeepsStatus(t *testing.T) {
	p := &fakePlatform{
		polls: []func() (*genai.Operation, error){doneWith(readyResponse("https://files/v3"))},
		download: func(uri string) ([]byte, string, error) {
			return nil, "", &domain.DownloadError{StatusCode: 403}
		},
	}
	o := newOrchestrator(t, p, &fakeClock{})

	_, err := o.Generate(context.Background(), Request{Image: []byte("img")})
	var dl *domain.DownloadError
	require.ErrorAs(t, err, &dl)
	require.Equal(t, 403, dl.StatusCode)
}

func TestCancelledContextStopsPolling(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	o := newOrchestrator(t, &fakePlatform{}, &fakeClock{})

	_, err := o.Generate(ctx, Request{Image: []byte("img")})
	require.ErrorIs(t, err, context.Canceled)
}
