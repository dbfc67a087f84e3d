package progress

import (
	"testing"

	"github.com/tubebeam/tubebeam/internal/model"
)

func TestParseFetch(t *testing.T) {
	tests := []struct {
		line        string
		wantOK      bool
		percent     float64
		transferred string
		rate        string
	}{
		{"[download]  42.5% of   10.00MiB at    1.21MiB/s ETA 00:12", true, 42.5, "10.00MiB", "1.21MiB/s"},
		{"[download] 100% of 10.00MiB in 00:08", true, 100, "10.00MiB", ""},
		{"[download]   0.1% of ~  1.20GiB at  512.00KiB/s ETA 41:23", true, 0.1, "1.20GiB", "512.00KiB/s"},
		{"[download]  55.0% of 4.00MiB at Unknown B/s ETA Unknown", true, 55, "4.00MiB", ""},
		{"[download] Destination: downloads/source.webm", false, 0, "", ""},
		{"[youtube] dQw4w9WgXcQ: Downloading webpage", false, 0, "", ""},
		{"", false, 0, "", ""},
		{"garbage % of nothing", false, 0, "", ""},
	}

	for _, test := range tests {
		sample, ok := ParseFetch(test.line)
		if ok != test.wantOK {
			t.Errorf("ParseFetch(%q) ok = %v, expected %v", test.line, ok, test.wantOK)
			continue
		}
		if !ok {
			continue
		}
		if sample.Percent != test.percent {
			t.Errorf("ParseFetch(%q) percent = %v, expected %v", test.line, sample.Percent, test.percent)
		}
		if sample.Transferred != test.transferred {
			t.Errorf("ParseFetch(%q) transferred = %q, expected %q", test.line, sample.Transferred, test.transferred)
		}
		if sample.Rate != test.rate {
			t.Errorf("ParseFetch(%q) rate = %q, expected %q", test.line, sample.Rate, test.rate)
		}
		if sample.Stage != model.StageFetching {
			t.Errorf("ParseFetch(%q) stage = %s, expected %s", test.line, sample.Stage, model.StageFetching)
		}
		if sample.SampledAt.IsZero() {
			t.Errorf("ParseFetch(%q) returned zero SampledAt", test.line)
		}
	}
}

func TestFrameParser(t *testing.T) {
	parser := &FrameParser{}

	// No total yet, every line is suppressed
	if _, ok := parser.Parse("frame=  100 fps= 30 q=28.0 size=    1024kB"); ok {
		t.Error("Expected sample to be suppressed before total frames is known")
	}

	parser.SetTotalFrames(200)

	sample, ok := parser.Parse("frame=  100 fps= 30 q=28.0 size=    1024kB")
	if !ok {
		t.Fatal("Expected a sample after total frames is set")
	}
	if sample.Percent != 50 {
		t.Errorf("Expected 50 percent, got %v", sample.Percent)
	}
	if sample.Stage != model.StageConverting {
		t.Errorf("Expected stage %s, got %s", model.StageConverting, sample.Stage)
	}

	// Counter past the total clamps to 100
	sample, ok = parser.Parse("frame=  250 fps= 30 q=28.0")
	if !ok {
		t.Fatal("Expected a sample for an over-total frame counter")
	}
	if sample.Percent != 100 {
		t.Errorf("Expected clamp to 100 percent, got %v", sample.Percent)
	}

	if _, ok := parser.Parse("size=    1024kB time=00:00:04.00"); ok {
		t.Error("Expected no sample for a line without a frame counter")
	}
}

func TestParseTotalFrames(t *testing.T) {
	n, ok := ParseTotalFrames("frame= 5397 fps=999 q=-1.0 Lsize=N/A time=00:03:35.88")
	if !ok {
		t.Fatal("Expected total frames to parse")
	}
	if n != 5397 {
		t.Errorf("Expected 5397 frames, got %d", n)
	}

	if _, ok := ParseTotalFrames("video:0kB audio:3374kB subtitle:0kB"); ok {
		t.Error("Expected no total for a line without a frame counter")
	}
}

func TestClamp(t *testing.T) {
	tests := []struct {
		input    float64
		expected float64
	}{
		{-5, 0},
		{0, 0},
		{42.5, 42.5},
		{100, 100},
		{101.3, 100},
	}

	for _, test := range tests {
		if got := clamp(test.input); got != test.expected {
			t.Errorf("clamp(%v) = %v, expected %v", test.input, got, test.expected)
		}
	}
}
