package ffmpeg

import (
	"bufio"
	"context"
	"flag"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var keepFiles = flag.Bool("keep", false, "keep generated test files for inspection")

func TestCommandBuild(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		output   string
		opts     []Option
		wantArgs []string
	}{
		{
			name:   "simple copy",
			input:  "input.mkv",
			output: "output.mov",
			opts:   []Option{CopyAll},
			wantArgs: []string{
				"-hide_banner", "-y",
				"-i", "input.mkv",
				"-c", "copy",
				"-movflags", "+faststart",
				"output.mov",
			},
		},
		{
			name:   "no faststart for images",
			input:  "input.mp4",
			output: "poster.jpg",
			opts:   []Option{Seek(1500 * time.Millisecond), Frames(1), Quality(4)},
			wantArgs: []string{
				"-hide_banner", "-y",
				"-ss", "1.500",
				"-i", "input.mp4",
				"-frames:v", "1",
				"-q:v", "4",
				"poster.jpg",
			},
		},
		{
			name:   "rotated crop",
			input:  "in.mov",
			output: "out.mov",
			opts: []Option{
				NoAutoRotate,
				Transpose(TransposeClock),
				CropPixels(1080, 1080, 0, 420),
				EvenDimensions(),
				VideoCodec("libx264"),
				ClearRotation,
			},
			wantArgs: []string{
				"-hide_banner", "-y",
				"-noautorotate",
				"-i", "in.mov",
				"-c:v", "libx264",
				"-metadata:s:v:0", "rotate=0",
				"-vf", "transpose=1,crop=1080:1080:0:420,scale=trunc(iw/2)*2:trunc(ih/2)*2",
				"-movflags", "+faststart",
				"out.mov",
			},
		},
		{
			name:   "display matrix dropped",
			input:  "in.mov",
			output: "out.mp4",
			opts:   []Option{NoAutoRotate, DisplayRotation(0), HFlip, LogLevel("error")},
			wantArgs: []string{
				"-hide_banner", "-y",
				"-loglevel", "error",
				"-noautorotate",
				"-display_rotation:v:0", "0",
				"-i", "in.mov",
				"-vf", "hflip",
				"-movflags", "+faststart",
				"out.mp4",
			},
		},
		{
			name:   "empty filters are skipped",
			input:  "a.mp4",
			output: "b.mkv",
			opts:   []Option{Filter(""), HFlip, Filter(""), VFlip},
			wantArgs: []string{
				"-hide_banner", "-y",
				"-i", "a.mp4",
				"-vf", "hflip,vflip",
				"b.mkv",
			},
		},
		{
			name:   "loglevel goes first",
			input:  "a.mp4",
			output: "b.mp4",
			opts:   []Option{NoAutoRotate, LogLevel("error"), NoAudio},
			wantArgs: []string{
				"-hide_banner", "-y",
				"-loglevel", "error", "-noautorotate",
				"-i", "a.mp4",
				"-an",
				"-movflags", "+faststart",
				"b.mp4",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := NewCommand(tt.input, tt.output, tt.opts...)
			assert.Equal(t, tt.wantArgs, cmd.Build())
		})
	}
}

func TestBuildWithProgress(t *testing.T) {
	cmd := NewCommand("in.mp4", "out.mov", CopyAll)
	args := cmd.buildWithProgress()
	assert.Equal(t, []string{"-hide_banner", "-y", "-progress", "pipe:1", "-nostats", "-i", "in.mp4"}, args[:7])
	assert.Equal(t, "out.mov", args[len(args)-1])
}

func TestFlatten(t *testing.T) {
	p, ok := LookupExportPreset(PresetH2641280x720)
	require.True(t, ok)

	cmd := NewCommand("in.mp4", "out.mov", Flatten(p.Video, p.Audio)...)
	args := strings.Join(cmd.Build(), " ")
	assert.Contains(t, args, "-c:v libx264")
	assert.Contains(t, args, "-c:a aac -b:a 192k")
}

func TestProgressParser(t *testing.T) {
	output := `frame=10
fps=25.00
total_size=4096
out_time_us=400000
out_time=00:00:00.400000
speed=1.5x
progress=continue
frame=50
fps=25.00
total_size=20480
out_time_us=2000000
speed=2x
progress=end
`
	ch := make(chan Progress, 10)
	ParseProgressOutput(bufio.NewScanner(strings.NewReader(output)), ch)
	close(ch)

	var got []Progress
	for p := range ch {
		got = append(got, p)
	}
	require.Len(t, got, 2)

	assert.Equal(t, int64(10), got[0].Frame)
	assert.Equal(t, 400*time.Millisecond, got[0].OutTime())
	assert.Equal(t, "1.5x", got[0].Speed)
	assert.Equal(t, "continue", got[0].Progress)

	assert.Equal(t, int64(50), got[1].Frame)
	assert.Equal(t, int64(20480), got[1].TotalSize)
	assert.Equal(t, "end", got[1].Progress)
}

func TestProgressParser_ClockFallback(t *testing.T) {
	p := NewProgressParser()
	assert.False(t, p.ParseLine("out_time=00:01:02.500000"))
	assert.False(t, p.ParseLine("garbage"))
	assert.False(t, p.ParseLine(""))
	assert.True(t, p.ParseLine("progress=continue"))
	assert.Equal(t, 62500*time.Millisecond, p.Current().OutTime())
}

func TestProgressFraction(t *testing.T) {
	tests := []struct {
		name  string
		p     Progress
		total time.Duration
		want  float64
	}{
		{"halfway", Progress{OutTimeUS: 5_000_000}, 10 * time.Second, 0.5},
		{"clamped", Progress{OutTimeUS: 12_000_000}, 10 * time.Second, 1},
		{"unknown total", Progress{OutTimeUS: 5_000_000}, 0, 0},
		{"negative out time", Progress{OutTimeUS: -1}, 10 * time.Second, 0},
		{"end", Progress{Progress: "end"}, 0, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, tt.p.Fraction(tt.total), 1e-9)
		})
	}
}

func TestParseProbeOutput(t *testing.T) {
	tests := []struct {
		name         string
		json         string
		wantRotation int
		wantMirrored bool
		wantW        int
		wantH        int
		wantVideo    bool
	}{
		{
			name: "display matrix counter-clockwise",
			json: `{"format":{"duration":"3.5","size":"1000","format_name":"mov,mp4"},
				"streams":[{"codec_type":"video","codec_name":"h264","width":1920,"height":1080,"r_frame_rate":"30/1",
				"side_data_list":[{"side_data_type":"Display Matrix","rotation":-90}]},
				{"codec_type":"audio","codec_name":"aac"}]}`,
			wantRotation: 90,
			wantW:        1080,
			wantH:        1920,
			wantVideo:    true,
		},
		{
			name: "rotate tag clockwise",
			json: `{"format":{"duration":"1"},"streams":[{"codec_type":"video","codec_name":"h264",
				"width":640,"height":480,"r_frame_rate":"30000/1001","tags":{"rotate":"270"}}]}`,
			wantRotation: 270,
			wantW:        480,
			wantH:        640,
			wantVideo:    true,
		},
		{
			name: "upside down",
			json: `{"format":{},"streams":[{"codec_type":"video","width":100,"height":50,
				"side_data_list":[{"side_data_type":"Display Matrix","rotation":180}]}]}`,
			wantRotation: 180,
			wantW:        100,
			wantH:        50,
			wantVideo:    true,
		},
		{
			name: "display matrix portrait",
			json: `{"format":{},"streams":[{"codec_type":"video","width":1920,"height":1080,
				"side_data_list":[{"side_data_type":"Display Matrix",
				"displaymatrix":"\n00000000:            0       65536           0\n00000001:       -65536           0           0\n00000002:            0           0  1073741824\n",
				"rotation":-90}]}]}`,
			wantRotation: 90,
			wantW:        1080,
			wantH:        1920,
			wantVideo:    true,
		},
		{
			name: "display matrix horizontal flip",
			json: `{"format":{},"streams":[{"codec_type":"video","width":320,"height":240,
				"side_data_list":[{"side_data_type":"Display Matrix",
				"displaymatrix":"\n00000000:       -65536           0           0\n00000001:            0       65536           0\n00000002:            0           0  1073741824\n",
				"rotation":-180}]}]}`,
			wantRotation: 0,
			wantMirrored: true,
			wantW:        320,
			wantH:        240,
			wantVideo:    true,
		},
		{
			name: "display matrix transpose",
			json: `{"format":{},"streams":[{"codec_type":"video","width":1920,"height":1080,
				"side_data_list":[{"side_data_type":"Display Matrix",
				"displaymatrix":"\n00000000:            0       65536           0\n00000001:        65536           0           0\n00000002:            0           0  1073741824\n",
				"rotation":-90}]}]}`,
			wantRotation: 270,
			wantMirrored: true,
			wantW:        1080,
			wantH:        1920,
			wantVideo:    true,
		},
		{
			name: "unreadable display matrix falls back to rotation",
			json: `{"format":{},"streams":[{"codec_type":"video","width":100,"height":50,
				"side_data_list":[{"side_data_type":"Display Matrix","displaymatrix":"garbage","rotation":90}]}]}`,
			wantRotation: 270,
			wantW:        50,
			wantH:        100,
			wantVideo:    true,
		},
		{
			name:      "cover art only",
			json:      `{"format":{},"streams":[{"codec_type":"video","width":600,"height":600,"disposition":{"attached_pic":1}},{"codec_type":"audio","codec_name":"mp3"}]}`,
			wantVideo: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := ParseProbeOutput([]byte(tt.json))
			require.NoError(t, err)
			assert.Equal(t, tt.wantVideo, res.HasVideo())
			if !tt.wantVideo {
				return
			}
			assert.Equal(t, tt.wantRotation, res.Rotation)
			assert.Equal(t, tt.wantMirrored, res.Mirrored)
			assert.Equal(t, tt.wantRotation == 0 && !tt.wantMirrored, res.Upright())
			w, h := res.DisplaySize()
			assert.Equal(t, tt.wantW, w)
			assert.Equal(t, tt.wantH, h)
		})
	}

	_, err := ParseProbeOutput([]byte("not json"))
	assert.Error(t, err)
}

func TestParseProbeOutput_Metadata(t *testing.T) {
	res, err := ParseProbeOutput([]byte(`{"format":{"duration":"2.5","size":"2048","format_name":"mov,mp4,m4a"},
		"streams":[{"codec_type":"video","codec_name":"hevc","pix_fmt":"yuv420p","width":10,"height":10,"r_frame_rate":"30000/1001"}]}`))
	require.NoError(t, err)
	assert.Equal(t, 2500*time.Millisecond, res.Duration)
	assert.Equal(t, int64(2048), res.Size)
	assert.Equal(t, "hevc", res.VideoCodec)
	assert.InDelta(t, 29.97, res.FPS, 0.01)
	assert.Equal(t, 0, res.AudioStreams)
}

func TestNormalizeRotation(t *testing.T) {
	tests := []struct {
		in   float64
		want int
	}{
		{0, 0}, {90, 90}, {-90, 270}, {180, 180}, {-180, 180}, {270, 270}, {360, 0}, {89.6, 90}, {-270, 90},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, normalizeRotation(tt.in), "rotation %v", tt.in)
	}
}

func TestFrameCommand(t *testing.T) {
	cmd := frameCommand("in.mov", "poster.jpg", &FrameOptions{Offset: 2 * time.Second, Width: 640})
	assert.Equal(t, []string{
		"-hide_banner", "-y",
		"-ss", "2.000",
		"-i", "in.mov",
		"-frames:v", "1",
		"-q:v", "4",
		"-vf", "scale=640:-2",
		"poster.jpg",
	}, cmd.Build())

	assert.Empty(t, frameCommand("in.mov", "poster.jpg", nil).Filters(), "full size without a width")
}

func TestMatrixOrientation(t *testing.T) {
	const one = 1 << 16
	tests := []struct {
		name         string
		m            [9]int64
		wantRotation int
		wantMirrored bool
	}{
		{"identity", [9]int64{one, 0, 0, 0, one, 0, 0, 0, 1 << 30}, 0, false},
		{"clockwise", [9]int64{0, one, 0, -one, 0, 0, 0, 0, 1 << 30}, 90, false},
		{"upside down", [9]int64{-one, 0, 0, 0, -one, 0, 0, 0, 1 << 30}, 180, false},
		{"counter-clockwise", [9]int64{0, -one, 0, one, 0, 0, 0, 0, 1 << 30}, 270, false},
		{"horizontal flip", [9]int64{-one, 0, 0, 0, one, 0, 0, 0, 1 << 30}, 0, true},
		{"vertical flip", [9]int64{one, 0, 0, 0, -one, 0, 0, 0, 1 << 30}, 180, true},
		{"transpose", [9]int64{0, one, 0, one, 0, 0, 0, 0, 1 << 30}, 270, true},
		{"anti-transpose", [9]int64{0, -one, 0, -one, 0, 0, 0, 0, 1 << 30}, 90, true},
		{"near quarter turn", [9]int64{3000, one, 0, -one, 2000, 0, 0, 0, 1 << 30}, 90, false},
		{"degenerate", [9]int64{}, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rotation, mirrored := matrixOrientation(tt.m)
			assert.Equal(t, tt.wantRotation, rotation)
			assert.Equal(t, tt.wantMirrored, mirrored)
		})
	}
}

func TestParseDisplayMatrix(t *testing.T) {
	m, err := parseDisplayMatrix("\n00000000:            0       65536           0\n00000001:       -65536           0           0\n00000002:            0           0  1073741824\n")
	require.NoError(t, err)
	assert.Equal(t, [9]int64{0, 65536, 0, -65536, 0, 0, 0, 0, 1073741824}, m)

	_, err = parseDisplayMatrix("00000000: 1 2 3\n")
	assert.Error(t, err)
	_, err = parseDisplayMatrix("00000000: 1 2 x\n00000001: 0 0 0\n00000002: 0 0 0\n")
	assert.Error(t, err)
}

func TestParseEncoders(t *testing.T) {
	out := `Encoders:
 V..... = Video
 A..... = Audio
 ------
 V....D libx264              libx264 H.264 / AVC / MPEG-4 AVC / MPEG-4 part 10 (codec h264)
 V....D libx265              libx265 H.265 / HEVC (codec hevc)
 A....D aac                  AAC (Advanced Audio Coding)
`
	set := ParseEncoders(out)
	assert.True(t, set.Has("libx264"))
	assert.True(t, set.Has("libx265"))
	assert.True(t, set.Has("aac"))
	assert.False(t, set.Has("Video"), "legend lines are not encoders")
	assert.Len(t, set, 3)
}

func TestOptimalExportPreset(t *testing.T) {
	tests := []struct {
		name     string
		encoders EncoderSet
		want     string
		wantErr  bool
	}{
		{"hevc available", NewEncoderSet("libx264", "libx265", "aac"), PresetHEVC1920x1080, false},
		{"h264 only", NewEncoderSet("libx264", "aac"), PresetH2641920x1080, false},
		{"nothing usable", NewEncoderSet("mpeg4"), "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := OptimalExportPreset(tt.encoders)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.Name)
		})
	}
}

func TestExportPresets(t *testing.T) {
	names := ExportPresetNames()
	assert.Contains(t, names, PresetPassthrough)
	assert.IsIncreasing(t, names)

	pass, ok := LookupExportPreset(PresetPassthrough)
	require.True(t, ok)
	assert.True(t, pass.Passthrough)
	assert.True(t, pass.Supported(NewEncoderSet()))

	hevc, _ := LookupExportPreset(PresetHEVC1920x1080)
	args := strings.Join(NewCommand("a", "b.mov", hevc.Video...).Build(), " ")
	assert.Contains(t, args, "-tag:v hvc1")

	_, ok = LookupExportPreset("av1-8k")
	assert.False(t, ok)
}

func TestErrorMessage(t *testing.T) {
	err := &Error{
		Args:   []string{"-i", "x"},
		Stderr: "line1\nline2\nline3\nline4\n",
		Err:    assert.AnError,
	}
	assert.NotContains(t, err.Error(), "line1")
	assert.Contains(t, err.Error(), "line4")
	assert.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, Binary+" -i x", err.Command())
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "0.000"},
		{1 * time.Second, "1.000"},
		{1500 * time.Millisecond, "1.500"},
		{time.Hour + 30*time.Minute + 45*time.Second + 500*time.Millisecond, "5445.500"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, formatDuration(tt.d))
	}
}

// =============================================================================
// Integration tests - require ffmpeg to be installed
// =============================================================================

func requireFFmpeg(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	if _, err := exec.LookPath(Binary); err != nil {
		t.Skip("ffmpeg not installed")
	}
	if _, err := exec.LookPath(ProbeBinary); err != nil {
		t.Skip("ffprobe not installed")
	}
}

func artifactDir(t *testing.T) string {
	t.Helper()
	if !*keepFiles {
		return t.TempDir()
	}
	dir := filepath.Join(".", "testdata", "artifacts", t.Name())
	require.NoError(t, os.MkdirAll(dir, 0755))
	t.Logf("Keeping test files in: %s", dir)
	return dir
}

// generateTestVideo creates a 320x240 test pattern with a sine tone.
func generateTestVideo(t *testing.T, duration time.Duration) string {
	t.Helper()

	output := filepath.Join(artifactDir(t), "test_input.mov")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	durStr := formatDuration(duration)
	args := []string{
		"-hide_banner", "-y",
		"-f", "lavfi", "-i", "testsrc2=duration=" + durStr + ":size=320x240:rate=30",
		"-f", "lavfi", "-i", "sine=frequency=440:duration=" + durStr,
		"-c:v", "libx264", "-preset", "ultrafast", "-crf", "28",
		"-c:a", "aac", "-b:a", "64k",
		"-pix_fmt", "yuv420p",
		"-shortest",
		output,
	}

	proc, err := Start(ctx, args, nil)
	require.NoError(t, err)
	require.NoError(t, proc.Wait(), "failed to generate test video, stderr: %s", proc.Stderr())
	return output
}

func TestIntegration_Probe(t *testing.T) {
	requireFFmpeg(t)

	input := generateTestVideo(t, 2*time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	result, err := Probe(ctx, input)
	require.NoError(t, err)

	assert.Equal(t, 320, result.Width)
	assert.Equal(t, 240, result.Height)
	assert.InDelta(t, 2.0, result.Duration.Seconds(), 0.5)
	assert.InDelta(t, 30.0, result.FPS, 1.0)
	assert.Equal(t, "h264", result.VideoCodec)
	assert.Equal(t, "aac", result.AudioCodec)
	assert.Equal(t, 1, result.VideoStreams)
	assert.Equal(t, 1, result.AudioStreams)
	assert.Equal(t, 0, result.Rotation)
}

func TestIntegration_ProgressReporting(t *testing.T) {
	requireFFmpeg(t)

	input := generateTestVideo(t, 3*time.Second)
	output := filepath.Join(filepath.Dir(input), "output.mov")

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	progress := make(chan Progress, 100)
	cmd := NewCommand(input, output,
		VideoCodec("libx264"),
		Preset("ultrafast"),
		CRF(28),
		PixelFormat("yuv420p"),
		AudioCodec("aac"),
	)
	proc, err := cmd.StartWithProgress(ctx, progress)
	require.NoError(t, err)

	var updates []Progress
	for p := range progress {
		updates = append(updates, p)
	}
	require.NoError(t, proc.Wait())

	require.NotEmpty(t, updates)
	last := updates[len(updates)-1]
	assert.Equal(t, "end", last.Progress)
	assert.Greater(t, last.Frame, int64(0))
}

func TestIntegration_ProcessKill(t *testing.T) {
	requireFFmpeg(t)

	output := filepath.Join(artifactDir(t), "never_finish.mov")

	proc, err := Start(context.Background(), []string{
		"-hide_banner", "-y",
		"-f", "lavfi", "-i", "testsrc2=duration=60:size=640x480:rate=30",
		"-c:v", "libx264", "-preset", "veryslow",
		"-pix_fmt", "yuv420p",
		output,
	}, nil)
	require.NoError(t, err)
	require.NotEqual(t, 0, proc.PID())

	time.Sleep(100 * time.Millisecond)
	require.NoError(t, proc.Kill())
	assert.Error(t, proc.Wait(), "Wait() should return error after Kill()")
}

func TestIntegration_ExtractFrame(t *testing.T) {
	requireFFmpeg(t)

	input := generateTestVideo(t, 2*time.Second)
	output := filepath.Join(filepath.Dir(input), "poster.jpg")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	require.NoError(t, ExtractFrame(ctx, input, output, &FrameOptions{Offset: time.Second, Width: 160}))
	info, err := os.Stat(output)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestIntegration_Encoders(t *testing.T) {
	requireFFmpeg(t)

	set, err := Encoders(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, set)
}
