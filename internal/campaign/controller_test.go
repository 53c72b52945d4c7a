package campaign

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"studio/internal/domain"
	"studio/internal/media"
	"studio/internal/providers/copywriter"
	"studio/internal/providers/image"
	"studio/internal/providers/video"
	"studio/internal/storage"
)

var fixedNow = time.Date(2026, 10, 14, 9, 30, 0, 0, time.UTC)

type fakeCredits struct {
	mu      sync.Mutex
	balance int
	calls   int
}

func (f *fakeCredits) DeductCredit(_ context.Context, id string) (domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.balance <= 0 {
		return domain.User{}, domain.ErrInsufficientCredits
	}
	f.balance--
	return domain.User{ID: id, Credits: f.balance}, nil
}

type fakeImages struct {
	mu           sync.Mutex
	n            int
	descriptions []string
	edits        []string
	err          error
}

func (f *fakeImages) Catalogue(_ context.Context, src image.Source, description, style string) (*image.Asset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.n++
	f.descriptions = append(f.descriptions, description)
	return &image.Asset{Data: []byte(fmt.Sprintf("catalogue-%d-%s", f.n, src.Data)), MIME: "image/png"}, nil
}

func (f *fakeImages) Edit(_ context.Context, src image.Source, instruction string) (*image.Asset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.edits = append(f.edits, instruction)
	return &image.Asset{Data: append([]byte("edited-"), src.Data...), MIME: "image/png"}, nil
}

type fakeVideos struct {
	mu       sync.Mutex
	requests []video.Request
	err      error
	started  chan struct{}
	release  chan struct{}
}

func (f *fakeVideos) Generate(ctx context.Context, req video.Request) (*video.Asset, error) {
	if f.started != nil {
		f.started <- struct{}{}
		<-f.release
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	return &video.Asset{Data: []byte("mp4"), MIME: "video/mp4", URI: "https://files/v.mp4"}, nil
}

type fakeNarrator struct{ wav []byte }

func (f *fakeNarrator) VoiceOver(context.Context, string) []byte { return f.wav }

type fakeCopywriter struct {
	research string
	caption  string
}

func (f *fakeCopywriter) Research(context.Context, string) string { return f.research }

func (f *fakeCopywriter) SocialPost(_ context.Context, description, style, name string) string {
	return f.caption + " " + name
}

type fakeExporter struct {
	dir   string
	files []storage.File
}

func (f *fakeExporter) WriteAll(_ context.Context, dir string, files []storage.File) ([]string, error) {
	f.dir, f.files = dir, files
	keys := make([]string, 0, len(files))
	for _, file := range files {
		keys = append(keys, dir+"/"+file.Name)
	}
	return keys, nil
}

type fixture struct {
	ctl      *Controller
	credits  *fakeCredits
	images   *fakeImages
	videos   *fakeVideos
	narrator *fakeNarrator
	copy     *fakeCopywriter
	exporter *fakeExporter
	media    *media.Registry
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		credits:  &fakeCredits{balance: 100},
		images:   &fakeImages{},
		videos:   &fakeVideos{},
		narrator: &fakeNarrator{wav: []byte("RIFF....WAVE")},
		copy:     &fakeCopywriter{research: "Zapatillas ligeras para corredores urbanos.", caption: "Corre mas #run"},
		exporter: &fakeExporter{},
		media:    media.NewRegistry(),
	}
	ctl, err := NewController(Options{
		Credits:    f.credits,
		Media:      f.media,
		Images:     f.images,
		Videos:     f.videos,
		Narrator:   f.narrator,
		Copywriter: f.copy,
		Exporter:   f.exporter,
		Now:        func() time.Time { return fixedNow },
	})
	require.NoError(t, err)
	f.ctl = ctl
	return f
}

func shoeRequest() Request {
	return Request{
		UserID:      "user-1",
		Photos:      []Upload{{Data: []byte("photo"), MIME: "image/jpeg"}},
		Description: "red running shoes",
		Style:       "Estudio Minimalista",
		AspectRatio: domain.AspectPortrait,
	}
}

func TestGenerateEndToEnd(t *testing.T) {
	f := newFixture(t)

	p, err := f.ctl.Generate(context.Background(), shoeRequest())
	require.NoError(t, err)

	require.Len(t, p.Assets, 5)
	require.Equal(t, 3, p.CountKind(domain.AssetKindImage))
	require.Equal(t, 1, p.CountKind(domain.AssetKindAudio))
	require.Equal(t, 1, p.CountKind(domain.AssetKindVideo))
	require.Equal(t, "Campaña 14/10/2026", p.Name)
	require.True(t, strings.HasPrefix(p.ID, "proj-"))

	for i := 0; i < 3; i++ {
		require.True(t, strings.HasPrefix(p.Assets[i].ID, "img-"))
		require.True(t, strings.HasSuffix(p.Assets[i].ID, fmt.Sprintf("-%d", i)))
	}
	audio := p.Assets[3]
	require.Equal(t, domain.AssetSubTypeVoiceOver, audio.SubType)
	require.True(t, strings.HasPrefix(audio.ID, "aud-"))

	vid := p.Assets[4]
	require.True(t, strings.HasPrefix(vid.ID, "vid-"))
	require.Equal(t, p.Assets[0].URL, vid.Thumbnail)

	require.Len(t, f.videos.requests, 1)
	first, _, err := f.media.Open(p.Assets[0].URL)
	require.NoError(t, err)
	require.Equal(t, first, f.videos.requests[0].Image)
	require.Equal(t, domain.AspectPortrait, f.videos.requests[0].AspectRatio)
	require.Equal(t, "red running shoes", f.videos.requests[0].Instruction)

	// photo + 3 images + audio + video; the thumbnail shares the first image.
	require.Equal(t, 6, f.media.Len())
	require.Equal(t, 99, f.credits.balance)
	require.Equal(t, StateComplete, f.ctl.Status("user-1").State)
	require.Len(t, f.ctl.Projects("user-1"), 1)
}

func TestGenerateRequiresPhoto(t *testing.T) {
	f := newFixture(t)
	req := shoeRequest()
	req.Photos = nil

	_, err := f.ctl.Generate(context.Background(), req)
	require.ErrorIs(t, err, domain.ErrInvalidInput)
	require.Zero(t, f.credits.calls)
}

func TestGenerateWithoutCredits(t *testing.T) {
	f := newFixture(t)
	f.credits.balance = 0

	_, err := f.ctl.Generate(context.Background(), shoeRequest())
	require.ErrorIs(t, err, domain.ErrInsufficientCredits)
	require.Zero(t, f.images.n)
	require.Zero(t, f.media.Len())
}

func TestGenerateFailureCreatesNoProject(t *testing.T) {
	f := newFixture(t)
	f.videos.err = &domain.SafetyFilterError{Reason: "celebrity"}

	_, err := f.ctl.Generate(context.Background(), shoeRequest())
	var sf *domain.SafetyFilterError
	require.ErrorAs(t, err, &sf)
	require.Equal(t, "celebrity", sf.Reason)

	require.Empty(t, f.ctl.Projects("user-1"))
	require.Zero(t, f.media.Len(), "run references must be released")
	require.Equal(t, 99, f.credits.balance, "credit is not refunded")
	st := f.ctl.Status("user-1")
	require.Equal(t, StateError, st.State)
	require.Contains(t, st.Error, "celebrity")
}

func TestGenerateWithoutVoiceOver(t *testing.T) {
	f := newFixture(t)
	f.narrator.wav = nil

	p, err := f.ctl.Generate(context.Background(), shoeRequest())
	require.NoError(t, err)
	require.Len(t, p.Assets, 4)
	require.Zero(t, p.CountKind(domain.AssetKindAudio))
}

func TestGenerateAppendsResearch(t *testing.T) {
	f := newFixture(t)
	req := shoeRequest()
	req.URL = "https://shop.example/shoes"

	p, err := f.ctl.Generate(context.Background(), req)
	require.NoError(t, err)
	want := "red running shoes\n\nZapatillas ligeras para corredores urbanos."
	require.Equal(t, want, p.Input.Description)
	require.Equal(t, want, f.images.descriptions[0])
}

func TestGenerateKeepsFiveMostRecent(t *testing.T) {
	f := newFixture(t)
	var ids []string
	for i := 0; i < MaxProjects+1; i++ {
		req := shoeRequest()
		req.Name = fmt.Sprintf("run %d", i)
		p, err := f.ctl.Generate(context.Background(), req)
		require.NoError(t, err)
		ids = append(ids, p.ID)
	}
	list := f.ctl.Projects("user-1")
	require.Len(t, list, MaxProjects)
	require.Equal(t, ids[len(ids)-1], list[0].ID)
	_, err := f.ctl.Project("user-1", ids[0])
	require.ErrorIs(t, err, domain.ErrNotFound)
	require.Equal(t, MaxProjects*6, f.media.Len(), "evicted project references must be released")
}

func TestProjectsAreScopedToOwner(t *testing.T) {
	f := newFixture(t)
	p, err := f.ctl.Generate(context.Background(), shoeRequest())
	require.NoError(t, err)
	ctx := context.Background()
	const other = "user-2"

	require.Empty(t, f.ctl.Projects(other))
	_, err = f.ctl.Project(other, p.ID)
	require.ErrorIs(t, err, domain.ErrNotFound)
	_, err = f.ctl.EditAsset(ctx, other, p.ID, p.Assets[0].ID, "fondo rojo")
	require.ErrorIs(t, err, domain.ErrNotFound)
	_, err = f.ctl.GenerateSocialCopy(ctx, other, p.ID)
	require.ErrorIs(t, err, domain.ErrNotFound)
	_, err = f.ctl.Archive(other, p.ID)
	require.ErrorIs(t, err, domain.ErrNotFound)
	_, err = f.ctl.Export(ctx, other, p.ID)
	require.ErrorIs(t, err, domain.ErrNotFound)
	require.Empty(t, f.images.edits)

	require.True(t, f.ctl.OwnsMedia("user-1", p.Assets[0].URL))
	require.True(t, f.ctl.OwnsMedia("user-1", p.Input.Photos[0]))
	require.False(t, f.ctl.OwnsMedia(other, p.Assets[0].URL))
	require.Equal(t, StateIdle, f.ctl.Status(other).State)

	after, err := f.ctl.Project("user-1", p.ID)
	require.NoError(t, err)
	require.Len(t, after.Assets, len(p.Assets))
}

func TestEvictionIsPerUser(t *testing.T) {
	f := newFixture(t)
	first, err := f.ctl.Generate(context.Background(), shoeRequest())
	require.NoError(t, err)

	for i := 0; i < MaxProjects+1; i++ {
		req := shoeRequest()
		req.UserID = "user-2"
		_, err := f.ctl.Generate(context.Background(), req)
		require.NoError(t, err)
	}

	require.Len(t, f.ctl.Projects("user-2"), MaxProjects)
	kept, err := f.ctl.Project("user-1", first.ID)
	require.NoError(t, err)
	_, _, err = f.media.Open(kept.Assets[0].URL)
	require.NoError(t, err, "another user's runs must not release this project")
	require.Equal(t, (MaxProjects+1)*6, f.media.Len())
}

func TestGenerateRequiresUser(t *testing.T) {
	f := newFixture(t)
	req := shoeRequest()
	req.UserID = " "
	_, err := f.ctl.Generate(context.Background(), req)
	require.ErrorIs(t, err, domain.ErrInvalidInput)
	require.Zero(t, f.credits.calls)
}

func TestGenerateBusy(t *testing.T) {
	f := newFixture(t)
	f.videos.started = make(chan struct{})
	f.videos.release = make(chan struct{})

	done := make(chan error, 1)
	go func() {
		_, err := f.ctl.Generate(context.Background(), shoeRequest())
		done <- err
	}()
	<-f.videos.started
	require.Equal(t, StateGeneratingVideo, f.ctl.Status("user-1").State)

	_, err := f.ctl.Generate(context.Background(), shoeRequest())
	require.ErrorIs(t, err, domain.ErrPipelineBusy)

	close(f.videos.release)
	require.NoError(t, <-done)
}

func TestEditImagePrependsVersion(t *testing.T) {
	f := newFixture(t)
	p, err := f.ctl.Generate(context.Background(), shoeRequest())
	require.NoError(t, err)
	target := p.Assets[1]

	edited, err := f.ctl.EditAsset(context.Background(), "user-1", p.ID, target.ID, "fondo azul")
	require.NoError(t, err)
	require.Len(t, edited.Assets, 6)
	head := edited.Assets[0]
	require.True(t, strings.HasPrefix(head.ID, "img-edit-"))
	require.Equal(t, domain.AssetKindImage, head.Kind)
	require.Equal(t, []string{"fondo azul"}, f.images.edits)

	data, _, err := f.media.Open(head.URL)
	require.NoError(t, err)
	orig, _, _ := f.media.Open(target.URL)
	require.Equal(t, append([]byte("edited-"), orig...), data)
}

func TestEditVideoRegeneratesFromFirstImage(t *testing.T) {
	f := newFixture(t)
	req := shoeRequest()
	req.AspectRatio = domain.AspectSquare
	p, err := f.ctl.Generate(context.Background(), req)
	require.NoError(t, err)
	vid, _ := p.FirstOfKind(domain.AssetKindVideo)

	edited, err := f.ctl.EditAsset(context.Background(), "user-1", p.ID, vid.ID, "mas lento")
	require.NoError(t, err)
	head := edited.Assets[0]
	require.True(t, strings.HasPrefix(head.ID, "vid-edit-"))
	require.Equal(t, p.Assets[0].URL, head.Thumbnail)

	last := f.videos.requests[len(f.videos.requests)-1]
	require.Equal(t, "mas lento", last.Instruction)
	require.Equal(t, domain.AspectSquare, last.AspectRatio)
	first, _, _ := f.media.Open(p.Assets[0].URL)
	require.Equal(t, first, last.Image)
}

func TestEditFailureLeavesProjectUntouched(t *testing.T) {
	f := newFixture(t)
	p, err := f.ctl.Generate(context.Background(), shoeRequest())
	require.NoError(t, err)
	before := f.media.Len()

	f.images.err = fmt.Errorf("%w: no image", domain.ErrGeneration)
	_, err = f.ctl.EditAsset(context.Background(), "user-1", p.ID, p.Assets[0].ID, "otro fondo")
	require.ErrorIs(t, err, domain.ErrGeneration)

	after, err := f.ctl.Project("user-1", p.ID)
	require.NoError(t, err)
	require.Equal(t, p.Assets, after.Assets)
	require.Equal(t, before, f.media.Len())
}

func TestEditRejections(t *testing.T) {
	f := newFixture(t)
	p, err := f.ctl.Generate(context.Background(), shoeRequest())
	require.NoError(t, err)
	audio, _ := p.FirstOfKind(domain.AssetKindAudio)

	_, err = f.ctl.EditAsset(context.Background(), "user-1", p.ID, audio.ID, "mas grave")
	require.ErrorIs(t, err, domain.ErrUnsupportedEdit)

	_, err = f.ctl.EditAsset(context.Background(), "user-1", p.ID, "missing", "x")
	require.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.ctl.EditAsset(context.Background(), "user-1", "proj-0", audio.ID, "x")
	require.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.ctl.EditAsset(context.Background(), "user-1", p.ID, audio.ID, "  ")
	require.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestSocialCopyArchiveAndExport(t *testing.T) {
	f := newFixture(t)
	p, err := f.ctl.Generate(context.Background(), shoeRequest())
	require.NoError(t, err)

	withCopy, err := f.ctl.GenerateSocialCopy(context.Background(), "user-1", p.ID)
	require.NoError(t, err)
	require.Equal(t, "Corre mas #run "+p.Name, withCopy.SocialPost)

	out, err := f.ctl.Archive("user-1", p.ID)
	require.NoError(t, err)
	zr, err := zip.NewReader(bytes.NewReader(out), int64(len(out)))
	require.NoError(t, err)
	require.Len(t, zr.File, 6)
	require.Equal(t, p.Assets[0].ID+".png", zr.File[0].Name)
	require.Equal(t, p.Assets[3].ID+".wav", zr.File[3].Name)
	require.Equal(t, p.Assets[4].ID+".mp4", zr.File[4].Name)
	require.Equal(t, CaptionFile, zr.File[5].Name)

	keys, err := f.ctl.Export(context.Background(), "user-1", p.ID)
	require.NoError(t, err)
	require.Len(t, keys, 6)
	require.Equal(t, p.ID, f.exporter.dir)

	_, err = f.ctl.Archive("user-1", "proj-missing")
	require.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestAppendResearch(t *testing.T) {
	require.Equal(t, "a", AppendResearch("a", ""))
	require.Equal(t, "a", AppendResearch("a", copywriter.NoResearchFound))
	require.Equal(t, "b", AppendResearch("", "b"))
	require.Equal(t, "a\n\nb", AppendResearch("a", " b "))
}

func TestDefaultName(t *testing.T) {
	d := time.Date(2026, 3, 7, 0, 0, 0, 0, time.UTC)
	require.Equal(t, "Campaña 7/3/2026", DefaultName(d, "es"))
	require.Equal(t, "Campaña 3/7/2026", DefaultName(d, "en-US"))
}

func TestExtension(t *testing.T) {
	require.Equal(t, ".wav", Extension("audio/wav"))
	require.Equal(t, ".jpg", Extension("image/jpeg; charset=binary"))
	require.Equal(t, ".bin", Extension(""))
}
