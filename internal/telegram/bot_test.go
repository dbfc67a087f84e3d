package telegram

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/tubebeam/tubebeam/internal/model"
)

func TestExtractMediaID(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://youtu.be/dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://youtube.com/shorts/dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://www.youtube.com/embed/dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ&t=42s", "dQw4w9WgXcQ"},
		{"check this out https://youtu.be/dQw4w9WgXcQ please", "dQw4w9WgXcQ"},
		{"hello", ""},
		{"https://example.com/watch?v=short", ""},
		{"", ""},
	}

	for _, test := range tests {
		if got := extractMediaID(test.input); got != test.expected {
			t.Errorf("extractMediaID(%q) = %q, expected %q", test.input, got, test.expected)
		}
	}
}

func TestCallbackRoundTrip(t *testing.T) {
	data := callbackData("dQw4w9WgXcQ", "137", "1080p", "v")

	mediaID, formatID, quality, format, ok := parseCallback(data)
	if !ok {
		t.Fatal("Expected callback data to parse")
	}
	if mediaID != "dQw4w9WgXcQ" {
		t.Errorf("Expected media id 'dQw4w9WgXcQ', got '%s'", mediaID)
	}
	if formatID != "137" {
		t.Errorf("Expected format id '137', got '%s'", formatID)
	}
	if quality != "1080p" {
		t.Errorf("Expected quality '1080p', got '%s'", quality)
	}
	if format != model.FormatVideo {
		t.Errorf("Expected video format, got %s", format)
	}

	// telebot prefixes raw callback data with \f
	_, _, _, format, ok = parseCallback("\f" + callbackData("dQw4w9WgXcQ", "140", "192k", "a"))
	if !ok {
		t.Fatal("Expected prefixed callback data to parse")
	}
	if format != model.FormatAudio {
		t.Errorf("Expected audio format, got %s", format)
	}
}

func TestParseCallbackRejectsGarbage(t *testing.T) {
	for _, data := range []string{"", "dl|too|few", "other|a|b|c|d", "dl|a|b|c|d|e"} {
		if _, _, _, _, ok := parseCallback(data); ok {
			t.Errorf("Expected %q to be rejected", data)
		}
	}
}

func TestQualityKeyboard(t *testing.T) {
	info := &model.MediaInfo{
		ID: "dQw4w9WgXcQ",
		Formats: []model.FormatOption{
			{FormatID: "18", Quality: "360p", SizeApprox: 10 << 20},
			{FormatID: "22", Quality: "720p"},
			{FormatID: "140", Quality: "129k", AudioOnly: true},
		},
	}

	markup := qualityKeyboard(info)
	if len(markup.InlineKeyboard) != 2 {
		t.Fatalf("Expected 2 rows (video + audio), got %d", len(markup.InlineKeyboard))
	}

	videoRow := markup.InlineKeyboard[0]
	if len(videoRow) != 2 {
		t.Fatalf("Expected 2 video buttons, got %d", len(videoRow))
	}
	if !strings.Contains(videoRow[0].Text, "360p") {
		t.Errorf("Expected first button to show 360p, got '%s'", videoRow[0].Text)
	}
	if !strings.Contains(videoRow[0].Text, "MiB") {
		t.Errorf("Expected a size label on the first button, got '%s'", videoRow[0].Text)
	}

	audioRow := markup.InlineKeyboard[1]
	if len(audioRow) != len(audioBitrates) {
		t.Fatalf("Expected %d audio buttons, got %d", len(audioBitrates), len(audioRow))
	}
	for _, button := range audioRow {
		_, formatID, _, format, ok := parseCallback(button.Data)
		if !ok {
			t.Fatalf("Expected button data to parse, got %q", button.Data)
		}
		if format != model.FormatAudio {
			t.Errorf("Expected audio format on button '%s'", button.Text)
		}
		if formatID != "140" {
			t.Errorf("Expected the probed audio format id '140', got '%s'", formatID)
		}
	}
}

func TestProgressText(t *testing.T) {
	sample := model.ProgressSample{
		Percent:     42.5,
		Transferred: "10.00MiB",
		Rate:        "1.21MiB/s",
		Stage:       model.StageFetching,
		SampledAt:   time.Now(),
	}
	text := progressText(sample)
	for _, want := range []string{"42.5%", "10.00MiB", "1.21MiB/s"} {
		if !strings.Contains(text, want) {
			t.Errorf("Expected %q in %q", want, text)
		}
	}

	text = progressText(model.ProgressSample{Percent: 80, Stage: model.StageConverting})
	if !strings.Contains(text, "Converting") || !strings.Contains(text, "80%") {
		t.Errorf("Expected converting text with percent, got %q", text)
	}
}

func TestFailureText(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{&model.CancelledError{MediaID: "a"}, "Cancelled"},
		{&model.FetchError{MediaID: "a", ExitCode: 1}, "Download failed"},
		{&model.TranscodeError{Source: "a.webm", ExitCode: 1}, "Conversion failed"},
		{&model.ProbeError{MediaID: "a"}, "Something went wrong"},
	}

	for _, test := range tests {
		if got := failureText(test.err); !strings.Contains(got, test.want) {
			t.Errorf("failureText(%T) = %q, expected it to contain %q", test.err, got, test.want)
		}
	}
}

func TestAdmissionText(t *testing.T) {
	got := admissionText(&model.AlreadyInProgressError{RequesterID: 1, MediaID: "a"})
	if !strings.Contains(got, "already downloading") {
		t.Errorf("Expected duplicate message, got %q", got)
	}

	got = admissionText(&model.ConcurrencyLimitError{RequesterID: 1, Count: 2, Limit: 2})
	if !strings.Contains(got, "2 download(s)") {
		t.Errorf("Expected the active count in the message, got %q", got)
	}
}

func TestSessionStoreMemoryFallback(t *testing.T) {
	store := NewSessionStore("", "")
	defer store.Close()

	ctx := context.Background()
	if store.Get(ctx, 1) != nil {
		t.Error("Expected no session for a fresh chat")
	}

	store.Put(ctx, 1, &Session{JobID: "job-1", StatusMessage: 7, MediaID: "abc"})
	sess := store.Get(ctx, 1)
	if sess == nil {
		t.Fatal("Expected the stored session")
	}
	if sess.JobID != "job-1" || sess.StatusMessage != 7 {
		t.Errorf("Expected stored fields to round-trip, got %+v", sess)
	}

	store.Clear(ctx, 1)
	if store.Get(ctx, 1) != nil {
		t.Error("Expected the session to be cleared")
	}
}

func TestAllowEditThrottles(t *testing.T) {
	store := NewSessionStore("", "")
	defer store.Close()

	if !store.AllowEdit(1) {
		t.Error("Expected the first edit to pass")
	}
	if store.AllowEdit(1) {
		t.Error("Expected an immediate second edit to be throttled")
	}

	// A different chat has its own budget
	if !store.AllowEdit(2) {
		t.Error("Expected another chat's first edit to pass")
	}
}
